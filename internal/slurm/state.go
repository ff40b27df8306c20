package slurm

import "strings"

// Slurm decorates short state names with suffixes such as "*" (not
// responding) or "~" (powered off).
const stateSuffixes = "*~#!%$@^-"

// splitState normalizes a state value into upper-case flags.
// "idle+drain*" becomes ["IDLE", "DRAIN"].
func splitState(raw []string) []string {
	var flags []string
	for _, r := range raw {
		for _, part := range strings.Split(r, "+") {
			part = strings.ToUpper(strings.TrimRight(strings.TrimSpace(part), stateSuffixes))
			if part != "" {
				flags = append(flags, part)
			}
		}
	}
	return flags
}

var nodeBaseStates = map[string]NodeState{
	"IDLE":       NodeIdle,
	"ALLOCATED":  NodeAllocated,
	"ALLOC":      NodeAllocated,
	"COMPLETING": NodeAllocated,
	"COMP":       NodeAllocated,
	"MIXED":      NodeMixed,
	"MIX":        NodeMixed,
	"DOWN":       NodeDown,
	"DRAINED":    NodeDrained,
	"DRAIN":      NodeDrained,
	"DRAINING":   NodeDrained,
	"DRNG":       NodeDrained,
}

// nodeState maps scheduler flags to a NodeState. DOWN outranks any drain
// flag, which outranks the base state. Unrecognized states map to unknown.
func nodeState(flags []string) NodeState {
	down, drained := false, false
	for _, f := range flags {
		switch f {
		case "DOWN", "FAIL", "NOT_RESPONDING", "NO_RESPOND":
			down = true
		case "DRAIN", "DRAINED", "DRAINING", "DRNG", "FAILING":
			drained = true
		}
	}
	switch {
	case down:
		return NodeDown
	case drained:
		return NodeDrained
	case len(flags) == 0:
		return NodeUnknown
	}
	if s, ok := nodeBaseStates[flags[0]]; ok {
		return s
	}
	return NodeUnknown
}

var jobStates = map[string]JobState{
	"PENDING":       JobPending,
	"PD":            JobPending,
	"CONFIGURING":   JobPending,
	"CF":            JobPending,
	"REQUEUED":      JobPending,
	"RUNNING":       JobRunning,
	"R":             JobRunning,
	"COMPLETING":    JobCompleting,
	"CG":            JobCompleting,
	"COMPLETED":     JobCompleted,
	"CD":            JobCompleted,
	"SUSPENDED":     JobSuspended,
	"S":             JobSuspended,
	"STOPPED":       JobSuspended,
	"ST":            JobSuspended,
	"FAILED":        JobFailed,
	"F":             JobFailed,
	"TIMEOUT":       JobFailed,
	"TO":            JobFailed,
	"NODE_FAIL":     JobFailed,
	"NF":            JobFailed,
	"OUT_OF_MEMORY": JobFailed,
	"OOM":           JobFailed,
	"BOOT_FAIL":     JobFailed,
	"BF":            JobFailed,
	"DEADLINE":      JobFailed,
	"DL":            JobFailed,
	"CANCELLED":     JobCancelled,
	"CA":            JobCancelled,
	"PREEMPTED":     JobCancelled,
	"PR":            JobCancelled,
}

// jobState maps scheduler flags to a JobState. A COMPLETING flag wins over
// the base state since squeue reports e.g. ["RUNNING","COMPLETING"].
func jobState(flags []string) JobState {
	if len(flags) == 0 {
		return JobUnknown
	}
	for _, f := range flags[1:] {
		if f == "COMPLETING" {
			return JobCompleting
		}
	}
	if s, ok := jobStates[flags[0]]; ok {
		return s
	}
	return JobUnknown
}
