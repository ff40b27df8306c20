package cluster

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rileyhilliard/slurmdash/internal/errors"
	"github.com/rileyhilliard/slurmdash/internal/logger"
	"github.com/rileyhilliard/slurmdash/internal/remote"
	"github.com/rileyhilliard/slurmdash/internal/slurm"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Defaults for refresh timing.
const (
	DefaultTimeout     = 10 * time.Second
	DefaultBackoffBase = 5 * time.Second
	DefaultBackoffMax  = 5 * time.Minute
)

// Target is a cluster and the commands that report its state.
type Target struct {
	Name         string
	Host         string
	NodesCommand string
	JobsCommand  string
}

// RefreshState is the coordinator's bookkeeping for one cluster.
type RefreshState struct {
	LastAttempt time.Time `json:"last_attempt"`
	LastSuccess time.Time `json:"last_success"`
	InFlight    bool      `json:"in_flight"`
	// ConsecutiveFailures counts total failures since the last refresh that
	// produced any data.
	ConsecutiveFailures int `json:"consecutive_failures"`
	// RetryAt is the earliest time a refresh is retried after a total failure.
	RetryAt time.Time `json:"retry_at"`
	// Seq is the sequence number of the most recently started refresh.
	Seq uint64 `json:"seq"`
}

// Result is what a refresh request resolved to.
type Result struct {
	// Snapshot is nil if the cluster has never completed a refresh.
	Snapshot *Snapshot
	// Refreshed is true when the caller waited for a refresh to finish.
	Refreshed bool
	// Stale is true when the snapshot's data could not be brought up to date.
	Stale bool
	// RetryAt is set while a failing cluster is cooling down.
	RetryAt time.Time
}

// Observer is notified about refresh activity.
type Observer interface {
	RefreshStarted(cluster string)
	RefreshFinished(cluster string, outcome OutcomeKind, took time.Duration)
	// RefreshSkipped is called when a request is answered without starting a
	// refresh. reason is one of "fresh", "joined", or "cooldown".
	RefreshSkipped(cluster, reason string)
}

type noopObserver struct{}

func (noopObserver) RefreshStarted(string)                              {}
func (noopObserver) RefreshFinished(string, OutcomeKind, time.Duration) {}
func (noopObserver) RefreshSkipped(string, string)                      {}

// flight is a refresh in progress. done is closed once its snapshot has
// been stored and the cluster's guard released.
type flight struct {
	seq  uint64
	done chan struct{}
}

type clusterState struct {
	target Target

	mu     sync.Mutex
	state  RefreshState
	flight *flight
}

// Coordinator runs at most one refresh per cluster at a time and writes the
// results into a Store.
type Coordinator struct {
	exec     remote.Executor
	store    *Store
	clusters map[string]*clusterState
	names    []string

	timeout     time.Duration
	backoffBase time.Duration
	backoffMax  time.Duration
	now         func() time.Time
	log         logger.Logger
	observer    Observer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
	closed    chan struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTimeout sets the hard deadline for one refresh.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithBackoff sets the cooldown after the first total failure and its cap.
// The cooldown doubles with each consecutive total failure.
func WithBackoff(base, max time.Duration) Option {
	return func(c *Coordinator) {
		if base > 0 {
			c.backoffBase = base
		}
		if max > 0 {
			c.backoffMax = max
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// WithObserver sets the observer notified about refreshes.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) { c.observer = o }
}

// NewCoordinator creates a coordinator for targets. Cluster names must be unique.
func NewCoordinator(exec remote.Executor, store *Store, targets []Target, opts ...Option) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		exec:        exec,
		store:       store,
		clusters:    make(map[string]*clusterState, len(targets)),
		timeout:     DefaultTimeout,
		backoffBase: DefaultBackoffBase,
		backoffMax:  DefaultBackoffMax,
		now:         time.Now,
		log:         logger.Noop(),
		observer:    noopObserver{},
		ctx:         ctx,
		cancel:      cancel,
		closed:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.backoffMax < c.backoffBase {
		c.backoffMax = c.backoffBase
	}

	for _, t := range targets {
		c.clusters[t.Name] = &clusterState{target: t}
		c.names = append(c.names, t.Name)
	}
	slices.Sort(c.names)
	return c
}

// Clusters returns the configured cluster names in order.
func (c *Coordinator) Clusters() []string {
	return slices.Clone(c.names)
}

// Target returns the configuration of cluster.
func (c *Coordinator) Target(cluster string) (Target, bool) {
	cs, ok := c.clusters[cluster]
	if !ok {
		return Target{}, false
	}
	return cs.target, true
}

// Health returns a copy of the refresh bookkeeping for cluster.
func (c *Coordinator) Health(cluster string) (RefreshState, bool) {
	cs, ok := c.clusters[cluster]
	if !ok {
		return RefreshState{}, false
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.state, true
}

// RequestRefresh returns a snapshot of cluster no older than maxStaleness,
// refreshing it if needed. Concurrent callers share one refresh. While the
// cluster is cooling down after a total failure, the last snapshot is
// returned marked stale instead.
//
// Remote failures are reported through the snapshot's outcome. The only
// error is a NOT_FOUND for an unknown cluster. If ctx ends while waiting,
// the refresh keeps going and the current snapshot is returned marked stale.
func (c *Coordinator) RequestRefresh(ctx context.Context, cluster string, maxStaleness time.Duration) (Result, error) {
	cs, ok := c.clusters[cluster]
	if !ok {
		return Result{}, errors.NewNotFound(cluster)
	}

	f, _, res := c.begin(cs, maxStaleness)
	if f == nil {
		return res, nil
	}

	select {
	case <-f.done:
		res := c.current(cs)
		res.Refreshed = true
		return res, nil
	case <-ctx.Done():
		res := c.current(cs)
		res.Stale = true
		return res, nil
	}
}

// Trigger starts a refresh of cluster if its data is older than
// maxStaleness and it is not cooling down, without waiting for it. It
// reports whether a new refresh was started.
func (c *Coordinator) Trigger(cluster string, maxStaleness time.Duration) bool {
	cs, ok := c.clusters[cluster]
	if !ok {
		return false
	}
	_, started, _ := c.begin(cs, maxStaleness)
	return started
}

// Close cancels refreshes in progress and waits for them to finish.
// Later requests are answered from the store without refreshing.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.cancel()
	})
	c.wg.Wait()
}

func (c *Coordinator) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// begin decides what to do with a request. It returns the flight to wait
// on and whether this call started it, or nil and an immediate answer.
func (c *Coordinator) begin(cs *clusterState, maxStaleness time.Duration) (*flight, bool, Result) {
	name := cs.target.Name

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.flight != nil {
		c.observer.RefreshSkipped(name, "joined")
		return cs.flight, false, Result{}
	}

	now := c.now()
	snap, _ := c.store.Get(name)

	if snap.HasData() && maxStaleness > 0 && snap.Age(now) < maxStaleness {
		c.observer.RefreshSkipped(name, "fresh")
		return nil, false, Result{Snapshot: snap}
	}

	if now.Before(cs.state.RetryAt) {
		c.observer.RefreshSkipped(name, "cooldown")
		return nil, false, Result{Snapshot: snap, Stale: true, RetryAt: cs.state.RetryAt}
	}

	if c.isClosed() {
		return nil, false, Result{Snapshot: snap, Stale: true}
	}

	cs.state.Seq++
	cs.state.LastAttempt = now
	cs.state.InFlight = true
	f := &flight{seq: cs.state.Seq, done: make(chan struct{})}
	cs.flight = f

	c.wg.Add(1)
	go c.run(cs, f)
	return f, true, Result{}
}

// current answers from the store after a refresh.
func (c *Coordinator) current(cs *clusterState) Result {
	snap, _ := c.store.Get(cs.target.Name)

	cs.mu.Lock()
	retryAt := cs.state.RetryAt
	cs.mu.Unlock()

	res := Result{Snapshot: snap}
	if snap == nil || snap.Outcome.Kind == OutcomeTotal {
		res.Stale = true
		if retryAt.After(c.now()) {
			res.RetryAt = retryAt
		}
	}
	return res
}

// fetched is what the two fetches of one refresh produced.
type fetched struct {
	nodes    []slurm.NodeRecord
	jobs     []slurm.JobRecord
	nodesErr error
	jobsErr  error
}

// run performs one refresh. It always stores a snapshot and releases the
// guard, even when the fetches outlive the deadline; their results are then
// dropped.
func (c *Coordinator) run(cs *clusterState, f *flight) {
	defer c.wg.Done()

	t := cs.target
	c.observer.RefreshStarted(t.Name)
	start := c.now()
	c.log.Debug("refreshing %s (seq %d)", t.Name, f.seq)

	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()

	results := make(chan fetched, 1)
	go func() {
		results <- c.fetch(ctx, t)
	}()

	var outcome FetchOutcome
	var got fetched
	select {
	case got = <-results:
		outcome = classify(t, got)
	case <-ctx.Done():
		outcome = TotalFailure(c.deadlineError(t))
	}

	snap := c.assemble(t.Name, f.seq, start, got, outcome)
	stored := c.store.Put(snap)

	cs.mu.Lock()
	if outcome.Kind == OutcomeTotal {
		cs.state.ConsecutiveFailures++
		cs.state.RetryAt = snap.AttemptedAt.Add(c.backoff(cs.state.ConsecutiveFailures))
	} else {
		cs.state.ConsecutiveFailures = 0
		cs.state.RetryAt = time.Time{}
		cs.state.LastSuccess = snap.AttemptedAt
	}
	cs.state.InFlight = false
	cs.flight = nil
	retryAt := cs.state.RetryAt
	cs.mu.Unlock()
	close(f.done)

	took := snap.AttemptedAt.Sub(start)
	c.observer.RefreshFinished(t.Name, outcome.Kind, took)

	switch {
	case !stored:
		c.log.Warn("%s: discarded refresh seq %d, a newer snapshot is already stored", t.Name, f.seq)
	case outcome.Kind == OutcomeTotal:
		c.log.Warn("%s: refresh failed, retrying after %s: %s", t.Name, retryAt.Format(time.RFC3339), outcome.Message)
	case outcome.Kind == OutcomePartial:
		c.log.Warn("%s: %s failed, keeping previous data for it: %s", t.Name, outcome.Failed, outcome.Message)
	default:
		c.log.Debug("%s: refreshed in %s (%d nodes, %d jobs)", t.Name, took, len(snap.Nodes), len(snap.Jobs))
	}
}

// fetch runs the node and job commands concurrently and parses whatever
// came back.
func (c *Coordinator) fetch(ctx context.Context, t Target) fetched {
	var out fetched
	var g errgroup.Group

	// Clusters behind the same login host still get their own connections.
	ctx = remote.WithConnectionScope(ctx, t.Name)

	g.Go(func() error {
		raw, err := remote.Run(ctx, c.exec, t.Host, t.NodesCommand)
		if err == nil {
			out.nodes, err = slurm.ParseNodeInventory(raw)
		}
		out.nodesErr = err
		return nil
	})
	g.Go(func() error {
		raw, err := remote.Run(ctx, c.exec, t.Host, t.JobsCommand)
		if err == nil {
			out.jobs, err = slurm.ParseJobQueue(raw)
		}
		out.jobsErr = err
		return nil
	})

	_ = g.Wait()
	return out
}

func classify(t Target, got fetched) FetchOutcome {
	switch {
	case got.nodesErr != nil && got.jobsErr != nil:
		merr := &multierror.Error{ErrorFormat: summaryFormat}
		merr = multierror.Append(merr, got.nodesErr, got.jobsErr)
		code := errors.Code(got.nodesErr)
		if code == "" {
			code = errors.Code(got.jobsErr)
		}
		return TotalFailure(errors.WrapWithCode(merr, code,
			fmt.Sprintf("Both %s and %s failed on '%s'", SourceNodes, SourceJobs, t.Name), ""))
	case got.nodesErr != nil:
		return PartialFailure(SourceNodes, got.nodesErr)
	case got.jobsErr != nil:
		return PartialFailure(SourceJobs, got.jobsErr)
	}
	return Success()
}

func summaryFormat(errs []error) string {
	msgs := lo.Uniq(lo.Map(errs, func(err error, _ int) string {
		return errors.Summary(err)
	}))
	return strings.Join(msgs, "; ")
}

func (c *Coordinator) deadlineError(t Target) error {
	if c.ctx.Err() != nil {
		return errors.New(errors.ErrTimeout,
			fmt.Sprintf("Refresh of '%s' was cancelled by shutdown", t.Name), "")
	}
	return errors.New(errors.ErrTimeout,
		fmt.Sprintf("Refresh of '%s' took longer than %s", t.Name, c.timeout),
		"Raise refresh.timeout if the scheduler is just slow to answer.")
}

// assemble builds the snapshot for a finished refresh. New data is dated
// from start, when the commands were issued. A failed half is filled from
// the previous snapshot; a total failure keeps the previous data and its
// capture time.
func (c *Coordinator) assemble(cluster string, seq uint64, start time.Time, got fetched, outcome FetchOutcome) *Snapshot {
	now := c.now()
	prev, _ := c.store.Get(cluster)

	snap := &Snapshot{
		Cluster:     cluster,
		Nodes:       []slurm.NodeRecord{},
		Jobs:        []slurm.JobRecord{},
		AttemptedAt: now,
		Outcome:     outcome,
		Seq:         seq,
	}

	if outcome.Kind == OutcomeTotal {
		if prev != nil {
			snap.Nodes, snap.Jobs = prev.Nodes, prev.Jobs
			snap.CapturedAt = prev.CapturedAt
		}
		return snap
	}

	snap.CapturedAt = start
	if got.nodesErr == nil {
		snap.Nodes = got.nodes
	} else if prev != nil {
		snap.Nodes = prev.Nodes
	}
	if got.jobsErr == nil {
		snap.Jobs = got.jobs
	} else if prev != nil {
		snap.Jobs = prev.Jobs
	}
	if snap.Nodes == nil {
		snap.Nodes = []slurm.NodeRecord{}
	}
	if snap.Jobs == nil {
		snap.Jobs = []slurm.JobRecord{}
	}
	return snap
}

// backoff returns the cooldown after the n-th consecutive total failure:
// base * 2^(n-1), capped at max.
func (c *Coordinator) backoff(n int) time.Duration {
	d := c.backoffBase
	for i := 1; i < n; i++ {
		d *= 2
		if d >= c.backoffMax {
			return c.backoffMax
		}
	}
	if d > c.backoffMax {
		return c.backoffMax
	}
	return d
}
