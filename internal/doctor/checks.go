// Package doctor diagnoses why a cluster isn't showing up.
package doctor

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// CheckStatus represents the result status of a check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

// String returns a human-readable status string.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name in JSON output.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CheckResult contains the outcome of running a check.
type CheckResult struct {
	Name       string      `json:"name"`
	Category   string      `json:"category"`
	Status     CheckStatus `json:"status"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
}

// Check defines the interface for diagnostic checks.
type Check interface {
	// Name returns the check's identifier.
	Name() string

	// Category returns the check's category (e.g., "CONFIG", "SSH", "CLUSTER").
	Category() string

	// Run executes the check. It must respect ctx for anything remote.
	Run(ctx context.Context) CheckResult
}

// RunAll executes all checks in parallel. Results keep the order of checks.
func RunAll(ctx context.Context, checks []Check) []CheckResult {
	results := make([]CheckResult, len(checks))
	var g errgroup.Group
	for i, check := range checks {
		i, check := i, check
		g.Go(func() error {
			r := check.Run(ctx)
			r.Name = check.Name()
			r.Category = check.Category()
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// CountByStatus counts results by status.
func CountByStatus(results []CheckResult) map[CheckStatus]int {
	counts := make(map[CheckStatus]int)
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}

// HasFailures returns true if any result has a fail status.
func HasFailures(results []CheckResult) bool {
	return CountByStatus(results)[StatusFail] > 0
}

// Summary returns a summary string of the check results.
func Summary(results []CheckResult) string {
	counts := CountByStatus(results)
	total := counts[StatusWarn] + counts[StatusFail]
	if total == 0 {
		return "Everything looks good"
	}
	return fmt.Sprintf("%d issue%s found", total, pluralize(total))
}

func pluralize(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func pass(msg string) CheckResult {
	return CheckResult{Status: StatusPass, Message: msg}
}

func warn(msg, suggestion string) CheckResult {
	return CheckResult{Status: StatusWarn, Message: msg, Suggestion: suggestion}
}

func fail(msg, suggestion string) CheckResult {
	return CheckResult{Status: StatusFail, Message: msg, Suggestion: suggestion}
}
