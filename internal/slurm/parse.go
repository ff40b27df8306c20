package slurm

import (
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/slurmdash/internal/errors"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
)

// ParseNodeInventory parses node inventory JSON. It accepts the flat
// {"nodes":[...]} form (slurmrestd, scontrol show nodes --json) and the
// grouped {"sinfo":[...]} form of sinfo --json, where a node appears once
// per partition it belongs to.
func ParseNodeInventory(raw []byte) ([]NodeRecord, error) {
	doc, err := document(raw, "node inventory")
	if err != nil {
		return nil, err
	}

	merged := newNodeSet()

	switch {
	case doc.Get("sinfo").IsArray():
		for i, group := range doc.Get("sinfo").Array() {
			if err := merged.addGroup(i, group); err != nil {
				return nil, err
			}
		}
	case doc.Get("nodes").IsArray():
		for i, n := range doc.Get("nodes").Array() {
			name := n.Get("name").String()
			if name == "" {
				name = n.Get("hostname").String()
			}
			if name == "" {
				return nil, parseError("node inventory", fmt.Sprintf("nodes[%d] has no name", i))
			}
			merged.add(NodeRecord{
				Name:       name,
				RawState:   splitState(stringList(n.Get("state"))),
				Partitions: partitionsOf(n),
				CPUs:       int(numberOf(n.Get("cpus"))),
				MemoryMB:   firstNumber(n, "real_memory", "memory"),
			})
		}
	default:
		return nil, parseError("node inventory", missingKey(doc, `"nodes" or "sinfo"`))
	}

	return merged.records(), nil
}

// ParseJobQueue parses squeue --json (or slurmrestd) job output.
func ParseJobQueue(raw []byte) ([]JobRecord, error) {
	doc, err := document(raw, "job queue")
	if err != nil {
		return nil, err
	}

	jobs := doc.Get("jobs")
	if !jobs.IsArray() {
		return nil, parseError("job queue", missingKey(doc, `"jobs"`))
	}

	records := make([]JobRecord, 0, len(jobs.Array()))
	for i, j := range jobs.Array() {
		id, ok := jobID(j)
		if !ok {
			return nil, parseError("job queue", fmt.Sprintf("jobs[%d] has no job_id", i))
		}

		flags := splitState(stringList(j.Get("job_state")))
		rec := JobRecord{
			ID:         id,
			User:       firstString(j, "user_name", "user"),
			Name:       j.Get("name").String(),
			Partition:  j.Get("partition").String(),
			State:      jobState(flags),
			RawState:   flags,
			CPUs:       int(numberOf(j.Get("cpus"))),
			Nodes:      int(numberOf(j.Get("node_count"))),
			MemoryMB:   jobMemory(j),
			SubmitTime: unixTime(j.Get("submit_time")),
		}
		// Pending jobs carry an estimated start time; only report real ones.
		if rec.State != JobPending {
			if start := unixTime(j.Get("start_time")); !start.IsZero() {
				rec.StartTime = &start
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func document(raw []byte, what string) (gjson.Result, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return gjson.Result{}, parseError(what, "output was empty")
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, parseError(what, "output is not valid JSON")
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return gjson.Result{}, parseError(what, "expected a JSON object at the top level")
	}
	return doc, nil
}

func parseError(what, detail string) error {
	return errors.New(errors.ErrParse,
		fmt.Sprintf("Couldn't parse %s: %s", what, detail),
		"Make sure the cluster's Slurm supports --json output (Slurm 21.08 or newer).")
}

// missingKey describes a document that lacks key, surfacing the scheduler's
// own error message when the output carries one.
func missingKey(doc gjson.Result, key string) string {
	for _, e := range doc.Get("errors").Array() {
		if msg := firstString(e, "error", "description"); msg != "" {
			return fmt.Sprintf("missing %s (scheduler reported: %s)", key, msg)
		}
	}
	return "missing " + key
}

// nodeSet merges records for the same node name, keeping first-seen order.
type nodeSet struct {
	order  []string
	byName map[string]*NodeRecord
}

func newNodeSet() *nodeSet {
	return &nodeSet{byName: make(map[string]*NodeRecord)}
}

func (s *nodeSet) add(rec NodeRecord) {
	existing, ok := s.byName[rec.Name]
	if !ok {
		if rec.Partitions == nil {
			rec.Partitions = []string{}
		}
		s.order = append(s.order, rec.Name)
		s.byName[rec.Name] = &rec
		return
	}
	for _, p := range rec.Partitions {
		if !lo.Contains(existing.Partitions, p) {
			existing.Partitions = append(existing.Partitions, p)
		}
	}
	if existing.CPUs == 0 {
		existing.CPUs = rec.CPUs
	}
	if existing.MemoryMB == 0 {
		existing.MemoryMB = rec.MemoryMB
	}
	if len(existing.RawState) == 0 {
		existing.RawState = rec.RawState
	}
}

// addGroup expands one sinfo group, which describes a set of nodes sharing
// a partition, state, and hardware shape.
func (s *nodeSet) addGroup(i int, group gjson.Result) error {
	names := stringList(group.Get("nodes.nodes"))
	if len(names) == 0 {
		return parseError("node inventory", fmt.Sprintf("sinfo[%d] lists no nodes", i))
	}

	var partitions []string
	if p := group.Get("partition.name").String(); p != "" {
		partitions = []string{p}
	}
	flags := splitState(stringList(group.Get("node.state")))
	cpus := int(firstNumber(group, "cpus.maximum", "cpus.total"))
	mem := firstNumber(group, "memory.maximum", "memory.total")

	for _, name := range names {
		s.add(NodeRecord{
			Name:       name,
			RawState:   flags,
			Partitions: partitions,
			CPUs:       cpus,
			MemoryMB:   mem,
		})
	}
	return nil
}

func (s *nodeSet) records() []NodeRecord {
	out := make([]NodeRecord, 0, len(s.order))
	for _, name := range s.order {
		rec := *s.byName[name]
		rec.State = nodeState(rec.RawState)
		out = append(out, rec)
	}
	return out
}

func partitionsOf(n gjson.Result) []string {
	if p := n.Get("partitions"); p.Exists() {
		return stringList(p)
	}
	return stringList(n.Get("partition"))
}

func jobID(j gjson.Result) (string, bool) {
	id := numberOf(j.Get("job_id"))
	if id <= 0 {
		return "", false
	}
	// Non-array jobs report an unset task id, or NO_VAL in older releases.
	task := j.Get("array_task_id")
	if arrayID := numberOf(j.Get("array_job_id")); arrayID > 0 && isSet(task) {
		if n := numberOf(task); n >= 0 && n < noVal {
			return fmt.Sprintf("%d_%d", arrayID, n), true
		}
	}
	return fmt.Sprintf("%d", id), true
}

// jobMemory returns the requested memory in MB, scaling a per-CPU request
// by the CPU count.
func jobMemory(j gjson.Result) int64 {
	if mem := numberOf(j.Get("memory_per_node")); mem > 0 {
		return mem
	}
	if mem := numberOf(j.Get("memory_per_cpu")); mem > 0 {
		cpus := numberOf(j.Get("cpus"))
		if cpus < 1 {
			cpus = 1
		}
		return mem * cpus
	}
	return 0
}

// numberOf reads a number that may be bare or wrapped in Slurm's
// {"set": true, "infinite": false, "number": N} form. Unset or infinite
// values read as 0.
func numberOf(r gjson.Result) int64 {
	switch {
	case r.IsObject():
		if !isSet(r) || r.Get("infinite").Bool() {
			return 0
		}
		return r.Get("number").Int()
	case r.Type == gjson.Number, r.Type == gjson.String:
		return r.Int()
	}
	return 0
}

// noVal is Slurm's NO_VAL sentinel for unset 32-bit fields.
const noVal = 0xfffffffe

func isSet(r gjson.Result) bool {
	if !r.IsObject() {
		return r.Exists()
	}
	set := r.Get("set")
	return !set.Exists() || set.Bool()
}

func firstNumber(r gjson.Result, paths ...string) int64 {
	for _, p := range paths {
		if n := numberOf(r.Get(p)); n != 0 {
			return n
		}
	}
	return 0
}

func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if s := r.Get(p).String(); s != "" {
			return s
		}
	}
	return ""
}

// stringList reads either a single string or an array of strings.
// A comma-separated string is split.
func stringList(r gjson.Result) []string {
	var out []string
	if r.IsArray() {
		for _, v := range r.Array() {
			if s := strings.TrimSpace(v.String()); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if s := strings.TrimSpace(r.String()); s != "" {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func unixTime(r gjson.Result) time.Time {
	sec := numberOf(r)
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
