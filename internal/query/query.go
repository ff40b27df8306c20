// Package query answers viewer requests for cluster state.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/slurmdash/internal/cluster"
	"github.com/rileyhilliard/slurmdash/internal/errors"
	"golang.org/x/sync/errgroup"
)

// Mode controls whether a read may cause or wait for a refresh.
type Mode string

const (
	// ModeCached returns what is stored without touching the cluster.
	ModeCached Mode = "cached"
	// ModeBackground returns what is stored and starts a refresh if the
	// data is older than the configured staleness.
	ModeBackground Mode = "background"
	// ModeWait refreshes stale data and waits for the result.
	ModeWait Mode = "wait"
)

// ParseMode parses a mode name. An empty string selects ModeBackground.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeBackground:
		return ModeBackground, nil
	case ModeCached:
		return ModeCached, nil
	case ModeWait:
		return ModeWait, nil
	}
	return "", errors.New(errors.ErrConfig,
		fmt.Sprintf("Unknown mode '%s'", s),
		"Use one of: cached, background, wait")
}

// Health summarizes a cluster's state for display.
type Health string

const (
	HealthOK      Health = "ok"
	HealthPartial Health = "partial"
	HealthFailed  Health = "failed"
	HealthPending Health = "pending"
	HealthStale   Health = "stale"
)

// Status is a snapshot plus what a viewer needs to judge it.
type Status struct {
	Cluster     string            `json:"cluster"`
	Host        string            `json:"host"`
	Health      Health            `json:"health"`
	Snapshot    *cluster.Snapshot `json:"snapshot"`
	InFlight    bool              `json:"in_flight"`
	LastAttempt *time.Time        `json:"last_attempt,omitempty"`
	LastSuccess *time.Time        `json:"last_success,omitempty"`
	RetryAt     *time.Time        `json:"retry_at,omitempty"`
	// Message explains a health other than ok.
	Message string `json:"message,omitempty"`
}

// Service reads cluster state from the store and asks the coordinator for
// refreshes according to the requested Mode.
type Service struct {
	store        *cluster.Store
	coord        *cluster.Coordinator
	maxStaleness time.Duration
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a service. maxStaleness is how old data may get
// before a background or wait read refreshes it.
func NewService(store *cluster.Store, coord *cluster.Coordinator, maxStaleness time.Duration, opts ...Option) *Service {
	s := &Service{
		store:        store,
		coord:        coord,
		maxStaleness: maxStaleness,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Clusters returns the configured cluster names in order.
func (s *Service) Clusters() []string {
	return s.coord.Clusters()
}

// Snapshot returns the status of one cluster. The only error is NOT_FOUND
// for a cluster that is not configured; remote failures are reported
// through Status.Health.
func (s *Service) Snapshot(ctx context.Context, id string, mode Mode) (Status, error) {
	target, ok := s.coord.Target(id)
	if !ok {
		return Status{}, errors.NewNotFound(id)
	}

	switch mode {
	case ModeWait:
		res, err := s.coord.RequestRefresh(ctx, id, s.maxStaleness)
		if err != nil {
			return Status{}, err
		}
		return s.status(target, res.Snapshot, res.Stale), nil
	case ModeBackground:
		s.coord.Trigger(id, s.maxStaleness)
	}

	snap, _ := s.store.Get(id)
	return s.status(target, snap, false), nil
}

// AllSnapshots returns the status of every configured cluster, ordered by
// name. In ModeWait the clusters are refreshed in parallel.
func (s *Service) AllSnapshots(ctx context.Context, mode Mode) []Status {
	names := s.coord.Clusters()
	out := make([]Status, len(names))

	var g errgroup.Group
	for i, name := range names {
		if mode != ModeWait {
			out[i], _ = s.Snapshot(ctx, name, mode)
			continue
		}
		i, name := i, name
		g.Go(func() error {
			st, err := s.Snapshot(ctx, name, mode)
			out[i] = st
			return err
		})
	}
	_ = g.Wait()
	return out
}

func (s *Service) status(target cluster.Target, snap *cluster.Snapshot, stale bool) Status {
	st := Status{
		Cluster:  target.Name,
		Host:     target.Host,
		Snapshot: snap,
	}

	if h, ok := s.coord.Health(target.Name); ok {
		st.InFlight = h.InFlight
		st.LastAttempt = timePtr(h.LastAttempt)
		st.LastSuccess = timePtr(h.LastSuccess)
		if h.RetryAt.After(s.now()) {
			st.RetryAt = timePtr(h.RetryAt)
		}
	}

	st.Health, st.Message = s.health(snap, stale)
	return st
}

func (s *Service) health(snap *cluster.Snapshot, stale bool) (Health, string) {
	if snap == nil {
		return HealthPending, "Waiting for the first refresh"
	}

	switch snap.Outcome.Kind {
	case cluster.OutcomeTotal:
		if !snap.HasData() {
			return HealthFailed, snap.Outcome.Message
		}
		return HealthStale, fmt.Sprintf("Showing data from %s: %s",
			snap.CapturedAt.Format(time.RFC3339), snap.Outcome.Message)
	case cluster.OutcomePartial:
		return HealthPartial, fmt.Sprintf("%s failed, its data is from an earlier refresh: %s",
			snap.Outcome.Failed, snap.Outcome.Message)
	}

	if stale || (s.maxStaleness > 0 && snap.Age(s.now()) > s.maxStaleness) {
		return HealthStale, fmt.Sprintf("Data is %s old", snap.Age(s.now()).Round(time.Second))
	}
	return HealthOK, ""
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
