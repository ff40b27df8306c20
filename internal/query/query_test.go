package query

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rileyhilliard/slurmdash/internal/cluster"
	"github.com/rileyhilliard/slurmdash/internal/errors"
	"github.com/rileyhilliard/slurmdash/internal/remote"
	remotetesting "github.com/rileyhilliard/slurmdash/internal/remote/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	nodesCmd  = "sinfo --json"
	jobsCmd   = "squeue --json"
	nodesJSON = `{"nodes":[{"name":"node01","state":"IDLE","partition":"batch","cpus":32}]}`
	jobsJSON  = `{"jobs":[{"job_id":1,"user_name":"alice","job_state":"RUNNING"}]}`
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	exec  *remotetesting.FakeExecutor
	clock *clock
	store *cluster.Store
	coord *cluster.Coordinator
	svc   *Service
}

func newFixture(t *testing.T, hosts ...string) *fixture {
	t.Helper()
	f := &fixture{
		exec:  remotetesting.NewFakeExecutor(),
		clock: &clock{now: epoch},
		store: cluster.NewStore(),
	}

	var targets []cluster.Target
	for _, h := range hosts {
		f.exec.SetOutput(h, nodesCmd, nodesJSON).SetOutput(h, jobsCmd, jobsJSON)
		targets = append(targets, cluster.Target{Name: h, Host: h, NodesCommand: nodesCmd, JobsCommand: jobsCmd})
	}

	f.coord = cluster.NewCoordinator(f.exec, f.store, targets, cluster.WithClock(f.clock.Now))
	t.Cleanup(f.coord.Close)
	f.svc = NewService(f.store, f.coord, 30*time.Second, WithClock(f.clock.Now))
	return f
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeBackground, false},
		{"background", ModeBackground, false},
		{"cached", ModeCached, false},
		{" WAIT ", ModeWait, false},
		{"eventually", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			assert.True(t, errors.IsCode(err, errors.ErrConfig))
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestSnapshot_UnknownCluster(t *testing.T) {
	f := newFixture(t, "hpc1")

	for _, mode := range []Mode{ModeCached, ModeBackground, ModeWait} {
		_, err := f.svc.Snapshot(context.Background(), "nope", mode)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrNotFound))
	}
	assert.Zero(t, f.exec.TotalCalls())
}

func TestSnapshot_CachedNeverFetches(t *testing.T) {
	f := newFixture(t, "hpc1")

	st, err := f.svc.Snapshot(context.Background(), "hpc1", ModeCached)
	require.NoError(t, err)

	assert.Equal(t, "hpc1", st.Cluster)
	assert.Equal(t, "hpc1", st.Host)
	assert.Equal(t, HealthPending, st.Health)
	assert.Nil(t, st.Snapshot)
	assert.False(t, st.InFlight)
	assert.Nil(t, st.LastAttempt)
	assert.Zero(t, f.exec.TotalCalls())
}

func TestSnapshot_WaitRefreshes(t *testing.T) {
	f := newFixture(t, "hpc1")

	st, err := f.svc.Snapshot(context.Background(), "hpc1", ModeWait)
	require.NoError(t, err)

	assert.Equal(t, HealthOK, st.Health)
	require.NotNil(t, st.Snapshot)
	assert.Len(t, st.Snapshot.Nodes, 1)
	require.NotNil(t, st.LastSuccess)
	assert.Equal(t, epoch, *st.LastSuccess)
	assert.Empty(t, st.Message)

	// Within the staleness window a second wait read is served from the store.
	f.clock.Advance(10 * time.Second)
	_, err = f.svc.Snapshot(context.Background(), "hpc1", ModeWait)
	require.NoError(t, err)
	assert.Equal(t, 2, f.exec.TotalCalls())
}

func TestSnapshot_BackgroundTriggersWithoutWaiting(t *testing.T) {
	f := newFixture(t, "hpc1")
	release := make(chan struct{})
	f.exec.Handle("hpc1", nodesCmd, func(context.Context, int) (remote.Result, error) {
		<-release
		return remote.Result{Stdout: []byte(nodesJSON)}, nil
	})

	st, err := f.svc.Snapshot(context.Background(), "hpc1", ModeBackground)
	require.NoError(t, err)
	assert.Equal(t, HealthPending, st.Health)
	assert.True(t, st.InFlight)

	close(release)
	require.Eventually(t, func() bool {
		st, _ := f.svc.Snapshot(context.Background(), "hpc1", ModeCached)
		return st.Health == HealthOK
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSnapshot_StaleWhenOld(t *testing.T) {
	f := newFixture(t, "hpc1")

	_, err := f.svc.Snapshot(context.Background(), "hpc1", ModeWait)
	require.NoError(t, err)

	f.clock.Advance(45 * time.Second)
	st, err := f.svc.Snapshot(context.Background(), "hpc1", ModeCached)
	require.NoError(t, err)
	assert.Equal(t, HealthStale, st.Health)
	assert.Contains(t, st.Message, "45s")
}

func TestSnapshot_HealthFromOutcome(t *testing.T) {
	t.Run("partial", func(t *testing.T) {
		f := newFixture(t, "hpc1")
		f.exec.SetExit("hpc1", jobsCmd, 1, "squeue: error: Invalid user")

		st, err := f.svc.Snapshot(context.Background(), "hpc1", ModeWait)
		require.NoError(t, err)
		assert.Equal(t, HealthPartial, st.Health)
		assert.Contains(t, st.Message, "squeue")
		assert.Len(t, st.Snapshot.Nodes, 1)
	})

	t.Run("failed without data", func(t *testing.T) {
		f := newFixture(t, "hpc1")
		f.exec.SetFail("hpc1", nodesCmd, errors.New(errors.ErrSSH, "unreachable", ""))
		f.exec.SetFail("hpc1", jobsCmd, errors.New(errors.ErrSSH, "unreachable", ""))

		st, err := f.svc.Snapshot(context.Background(), "hpc1", ModeWait)
		require.NoError(t, err)
		assert.Equal(t, HealthFailed, st.Health)
		assert.Contains(t, st.Message, "unreachable")
		require.NotNil(t, st.RetryAt)
		assert.Equal(t, epoch.Add(5*time.Second), *st.RetryAt)
	})

	t.Run("stale after failure with data", func(t *testing.T) {
		f := newFixture(t, "hpc1")
		_, err := f.svc.Snapshot(context.Background(), "hpc1", ModeWait)
		require.NoError(t, err)

		f.exec.SetFail("hpc1", nodesCmd, errors.New(errors.ErrSSH, "unreachable", ""))
		f.exec.SetFail("hpc1", jobsCmd, errors.New(errors.ErrSSH, "unreachable", ""))
		f.clock.Advance(time.Minute)

		st, err := f.svc.Snapshot(context.Background(), "hpc1", ModeWait)
		require.NoError(t, err)
		assert.Equal(t, HealthStale, st.Health)
		assert.Len(t, st.Snapshot.Nodes, 1)
		assert.Contains(t, st.Message, epoch.Format(time.RFC3339))
	})
}

func TestAllSnapshots(t *testing.T) {
	f := newFixture(t, "zeta", "alpha", "mid")
	f.exec.SetFail("mid", nodesCmd, errors.New(errors.ErrSSH, "down", ""))
	f.exec.SetFail("mid", jobsCmd, errors.New(errors.ErrSSH, "down", ""))

	cached := f.svc.AllSnapshots(context.Background(), ModeCached)
	require.Len(t, cached, 3)
	for _, st := range cached {
		assert.Equal(t, HealthPending, st.Health)
	}

	all := f.svc.AllSnapshots(context.Background(), ModeWait)
	require.Len(t, all, 3)
	assert.Equal(t, "alpha", all[0].Cluster)
	assert.Equal(t, "mid", all[1].Cluster)
	assert.Equal(t, "zeta", all[2].Cluster)

	assert.Equal(t, HealthOK, all[0].Health)
	assert.Equal(t, HealthFailed, all[1].Health)
	assert.Equal(t, HealthOK, all[2].Health)

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, f.svc.Clusters())
}

func TestAllSnapshots_WaitRunsInParallel(t *testing.T) {
	f := newFixture(t, "a", "b")

	var mu sync.Mutex
	arrived := 0
	both := make(chan struct{})
	barrier := func(context.Context, int) (remote.Result, error) {
		mu.Lock()
		arrived++
		if arrived == 2 {
			close(both)
		}
		mu.Unlock()
		select {
		case <-both:
		case <-time.After(2 * time.Second):
		}
		return remote.Result{Stdout: []byte(nodesJSON)}, nil
	}
	f.exec.Handle("a", nodesCmd, barrier).Handle("b", nodesCmd, barrier)

	start := time.Now()
	all := f.svc.AllSnapshots(context.Background(), ModeWait)
	assert.Less(t, time.Since(start), time.Second)
	for _, st := range all {
		assert.Equal(t, HealthOK, st.Health)
	}
}
