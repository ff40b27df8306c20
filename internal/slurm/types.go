// Package slurm turns scheduler JSON output into node and job records.
package slurm

import "time"

// NodeState is the normalized state of a compute node.
type NodeState string

const (
	NodeIdle      NodeState = "idle"
	NodeAllocated NodeState = "allocated"
	NodeMixed     NodeState = "mixed"
	NodeDown      NodeState = "down"
	NodeDrained   NodeState = "drained"
	NodeUnknown   NodeState = "unknown"
)

// JobState is the normalized state of a job.
type JobState string

const (
	JobPending    JobState = "pending"
	JobRunning    JobState = "running"
	JobCompleting JobState = "completing"
	JobCompleted  JobState = "completed"
	JobSuspended  JobState = "suspended"
	JobFailed     JobState = "failed"
	JobCancelled  JobState = "cancelled"
	JobUnknown    JobState = "unknown"
)

// NodeRecord is one compute node as reported by the scheduler.
type NodeRecord struct {
	Name  string    `json:"name"`
	State NodeState `json:"state"`
	// RawState keeps the scheduler's own state flags, upper-cased.
	RawState   []string `json:"raw_state,omitempty"`
	Partitions []string `json:"partitions"`
	CPUs       int      `json:"cpus"`
	MemoryMB   int64    `json:"memory_mb"`
}

// JobRecord is one queued or running job.
type JobRecord struct {
	ID        string   `json:"id"`
	User      string   `json:"user"`
	Name      string   `json:"name"`
	Partition string   `json:"partition"`
	State     JobState `json:"state"`
	RawState  []string `json:"raw_state,omitempty"`

	CPUs     int   `json:"cpus"`
	Nodes    int   `json:"nodes"`
	MemoryMB int64 `json:"memory_mb"`

	SubmitTime time.Time `json:"submit_time"`
	// StartTime is nil until the job has actually started.
	StartTime *time.Time `json:"start_time,omitempty"`
}
