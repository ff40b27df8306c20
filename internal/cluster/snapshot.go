// Package cluster keeps the latest scheduler state for each cluster and
// decides when to fetch it again.
package cluster

import (
	"time"

	"github.com/rileyhilliard/slurmdash/internal/errors"
	"github.com/rileyhilliard/slurmdash/internal/slurm"
)

// Source names one of the two fetches that make up a refresh.
type Source string

const (
	SourceNodes Source = "sinfo"
	SourceJobs  Source = "squeue"
)

// OutcomeKind classifies how a refresh went.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomePartial OutcomeKind = "partial_failure"
	OutcomeTotal   OutcomeKind = "total_failure"
)

// FetchOutcome records how the refresh that produced a snapshot went.
type FetchOutcome struct {
	Kind OutcomeKind `json:"kind"`
	// Failed is set for a partial failure.
	Failed Source `json:"failed,omitempty"`
	// Code is the error code of Err (SSH, COMMAND, PARSE, TIMEOUT).
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Err     error  `json:"-"`
}

// Success is the outcome of a refresh where both fetches worked.
func Success() FetchOutcome {
	return FetchOutcome{Kind: OutcomeSuccess}
}

// PartialFailure is the outcome of a refresh where only failed broke.
func PartialFailure(failed Source, err error) FetchOutcome {
	return FetchOutcome{
		Kind:    OutcomePartial,
		Failed:  failed,
		Code:    errors.Code(err),
		Message: errors.Summary(err),
		Err:     err,
	}
}

// TotalFailure is the outcome of a refresh that produced no new data.
func TotalFailure(err error) FetchOutcome {
	return FetchOutcome{
		Kind:    OutcomeTotal,
		Code:    errors.Code(err),
		Message: errors.Summary(err),
		Err:     err,
	}
}

// Snapshot is the state of one cluster as of a refresh. Snapshots are never
// modified after they are stored; a refresh stores a new one.
type Snapshot struct {
	Cluster string             `json:"cluster"`
	Nodes   []slurm.NodeRecord `json:"nodes"`
	Jobs    []slurm.JobRecord  `json:"jobs"`

	// CapturedAt is when the refresh that fetched the newest data started.
	// A total failure carries the previous data and keeps its CapturedAt.
	CapturedAt time.Time `json:"captured_at"`
	// AttemptedAt is when the refresh that produced this snapshot finished.
	AttemptedAt time.Time `json:"attempted_at"`

	Outcome FetchOutcome `json:"outcome"`
	Seq     uint64       `json:"seq"`
}

// HasData reports whether the snapshot holds data from at least one
// successful fetch.
func (s *Snapshot) HasData() bool {
	return s != nil && !s.CapturedAt.IsZero()
}

// Age returns how old the snapshot's data is at now.
func (s *Snapshot) Age(now time.Time) time.Duration {
	if !s.HasData() {
		return 0
	}
	return now.Sub(s.CapturedAt)
}
