package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rileyhilliard/slurmdash/internal/cluster"
	"github.com/rileyhilliard/slurmdash/internal/errors"
	"github.com/rileyhilliard/slurmdash/internal/logger"
	"github.com/rileyhilliard/slurmdash/internal/remote"
	remotetesting "github.com/rileyhilliard/slurmdash/internal/remote/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRefresher struct {
	mu        sync.Mutex
	clusters  []string
	calls     map[string]int
	staleness []time.Duration
	start     bool
}

func newFakeRefresher(clusters ...string) *fakeRefresher {
	return &fakeRefresher{clusters: clusters, calls: make(map[string]int), start: true}
}

func (f *fakeRefresher) Clusters() []string { return f.clusters }

func (f *fakeRefresher) Trigger(cluster string, maxStaleness time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[cluster]++
	f.staleness = append(f.staleness, maxStaleness)
	return f.start
}

func (f *fakeRefresher) count(cluster string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[cluster]
}

func TestTickTriggersEveryCluster(t *testing.T) {
	r := newFakeRefresher("hpc1", "hpc2")
	p := New(r, 30*time.Second, nil)

	assert.Equal(t, 2, p.tick())
	assert.Equal(t, 1, r.count("hpc1"))
	assert.Equal(t, 1, r.count("hpc2"))
	assert.Equal(t, []time.Duration{27 * time.Second, 27 * time.Second}, r.staleness)

	r.start = false
	assert.Equal(t, 0, p.tick())
	assert.Equal(t, 2, r.count("hpc1"))
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestTickRefreshesOncePerIntervalWithSlowFetches(t *testing.T) {
	const (
		interval = 10 * time.Second
		fetch    = 2 * time.Second
	)
	epoch := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &manualClock{now: epoch}

	// Each command takes fetch of simulated time to answer.
	slow := func(stdout string) remotetesting.Handler {
		return func(context.Context, int) (remote.Result, error) {
			clock.Advance(fetch)
			return remote.Result{Stdout: []byte(stdout)}, nil
		}
	}
	exec := remotetesting.NewFakeExecutor().
		Handle("hpc1", "sinfo --json", slow(`{"nodes":[{"name":"n1","state":"IDLE"}]}`)).
		Handle("hpc1", "squeue --json", slow(`{"jobs":[]}`))

	coord := cluster.NewCoordinator(exec, cluster.NewStore(), []cluster.Target{
		{Name: "hpc1", Host: "hpc1", NodesCommand: "sinfo --json", JobsCommand: "squeue --json"},
	}, cluster.WithClock(clock.Now))
	t.Cleanup(coord.Close)

	p := New(coord, interval, nil)

	const ticks = 4
	for i := 0; i < ticks; i++ {
		// Ticks fire on the schedule regardless of how long refreshes take.
		clock.Set(epoch.Add(time.Duration(i) * interval))
		assert.Equal(t, 1, p.tick(), "tick %d", i)

		require.Eventually(t, func() bool {
			h, _ := coord.Health("hpc1")
			return !h.InFlight
		}, 2*time.Second, 5*time.Millisecond)
	}

	assert.Equal(t, 2*ticks, exec.TotalCalls())
}

func TestTickSkipsClustersRefreshedSinceLastTick(t *testing.T) {
	epoch := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &manualClock{now: epoch}
	exec := remotetesting.NewFakeExecutor().
		SetOutput("hpc1", "sinfo --json", `{"nodes":[{"name":"n1","state":"IDLE"}]}`).
		SetOutput("hpc1", "squeue --json", `{"jobs":[]}`)
	coord := cluster.NewCoordinator(exec, cluster.NewStore(), []cluster.Target{
		{Name: "hpc1", Host: "hpc1", NodesCommand: "sinfo --json", JobsCommand: "squeue --json"},
	}, cluster.WithClock(clock.Now))
	t.Cleanup(coord.Close)

	// A viewer refreshed the cluster halfway through the interval.
	clock.Set(epoch.Add(5 * time.Second))
	_, err := coord.RequestRefresh(context.Background(), "hpc1", 0)
	require.NoError(t, err)

	clock.Set(epoch.Add(10 * time.Second))
	assert.Equal(t, 0, New(coord, 10*time.Second, nil).tick())
	assert.Equal(t, 2, exec.TotalCalls())
}

func TestStartWarmsImmediately(t *testing.T) {
	r := newFakeRefresher("hpc1")
	log := logger.NewBufferLogger()
	p := New(r, time.Hour, log)

	require.NoError(t, p.Start())
	defer p.Stop()

	assert.Equal(t, 1, r.count("hpc1"))
	assert.True(t, log.Contains("every 1h0m0s"))
}

func TestStartSchedulesTicks(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a real cron tick")
	}
	r := newFakeRefresher("hpc1")
	p := New(r, time.Second, nil)

	require.NoError(t, p.Start())
	defer p.Stop()

	require.Eventually(t, func() bool {
		return r.count("hpc1") >= 2
	}, 3*time.Second, 50*time.Millisecond)
}

func TestStartRejectsShortInterval(t *testing.T) {
	for _, d := range []time.Duration{0, 500 * time.Millisecond} {
		err := New(newFakeRefresher("hpc1"), d, nil).Start()
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrConfig))
	}
}

func TestStopWithoutStart(t *testing.T) {
	p := New(newFakeRefresher(), time.Minute, nil)
	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked")
	}
}

func TestCronLogger(t *testing.T) {
	log := logger.NewBufferLogger()
	l := cronLogger{log}

	l.Info("schedule", "now", "x", "entry", 1)
	l.Error(assert.AnError, "panic", "job", "tick")

	assert.True(t, log.Contains("cron: schedule now=x entry=1"))
	assert.True(t, log.HasLevel("error"))
	assert.True(t, log.Contains(assert.AnError.Error()))
}
