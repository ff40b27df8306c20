package cluster

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rileyhilliard/slurmdash/internal/remote"
	remotetesting "github.com/rileyhilliard/slurmdash/internal/remote/testing"
)

const (
	testHost    = "hpc1-login"
	nodesCmd    = "sinfo --json"
	jobsCmd     = "squeue --json"
	nodesJSON   = `{"nodes":[{"name":"node01","state":"IDLE","partition":"batch","cpus":32}]}`
	jobsJSON    = `{"jobs":[{"job_id":1,"user_name":"alice","job_state":"RUNNING","partition":"batch"}]}`
	twoJobsJSON = `{"jobs":[{"job_id":1,"job_state":"RUNNING"},{"job_id":2,"job_state":"PENDING"}]}`
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: epoch}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingObserver struct {
	mu       sync.Mutex
	started  int
	finished map[OutcomeKind]int
	skipped  map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		finished: make(map[OutcomeKind]int),
		skipped:  make(map[string]int),
	}
}

func (o *recordingObserver) RefreshStarted(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *recordingObserver) RefreshFinished(_ string, outcome OutcomeKind, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished[outcome]++
}

func (o *recordingObserver) RefreshSkipped(_, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.skipped[reason]++
}

func (o *recordingObserver) Skipped(reason string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.skipped[reason]
}

func (o *recordingObserver) Finished(kind OutcomeKind) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.finished[kind]
}

func testTargets() []Target {
	return []Target{{Name: "hpc1", Host: testHost, NodesCommand: nodesCmd, JobsCommand: jobsCmd}}
}

func healthyExecutor() *remotetesting.FakeExecutor {
	return remotetesting.NewFakeExecutor().
		SetOutput(testHost, nodesCmd, nodesJSON).
		SetOutput(testHost, jobsCmd, jobsJSON)
}

func newTestCoordinator(t *testing.T, exec remote.Executor, clock *testClock, opts ...Option) (*Coordinator, *Store) {
	t.Helper()
	store := NewStore()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	c := NewCoordinator(exec, store, testTargets(), opts...)
	t.Cleanup(c.Close)
	return c, store
}

// blockUntil returns a handler that waits for release before answering
// with stdout. It ignores its context, like a transport that hangs.
func blockUntil(release <-chan struct{}, stdout string) remotetesting.Handler {
	return func(context.Context, int) (remote.Result, error) {
		<-release
		return remote.Result{Stdout: []byte(stdout)}, nil
	}
}
