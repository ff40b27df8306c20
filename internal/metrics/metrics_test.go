package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rileyhilliard/slurmdash/internal/cluster"
	"github.com/rileyhilliard/slurmdash/internal/slurm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderObserver(t *testing.T) {
	r := NewRecorder(nil)

	r.RefreshStarted("hpc1")
	assert.Equal(t, 1.0, testutil.ToFloat64(r.inFlight.WithLabelValues("hpc1")))

	r.RefreshFinished("hpc1", cluster.OutcomeSuccess, 250*time.Millisecond)
	r.RefreshStarted("hpc1")
	r.RefreshFinished("hpc1", cluster.OutcomeTotal, time.Second)
	r.RefreshSkipped("hpc1", "fresh")
	r.RefreshSkipped("hpc1", "fresh")

	assert.Equal(t, 0.0, testutil.ToFloat64(r.inFlight.WithLabelValues("hpc1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.refreshes.WithLabelValues("hpc1", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.refreshes.WithLabelValues("hpc1", "total_failure")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.skipped.WithLabelValues("hpc1", "fresh")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.duration))
}

func TestStoreCollector(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := cluster.NewStore()
	store.Put(&cluster.Snapshot{
		Cluster: "hpc1",
		Nodes: []slurm.NodeRecord{
			{Name: "n1", State: slurm.NodeIdle},
			{Name: "n2", State: slurm.NodeIdle},
			{Name: "n3", State: slurm.NodeDown},
		},
		Jobs:       []slurm.JobRecord{{ID: "1", State: slurm.JobRunning}},
		CapturedAt: now.Add(-42 * time.Second),
		Outcome:    cluster.Success(),
		Seq:        1,
	})
	store.Put(&cluster.Snapshot{Cluster: "hpc2", Outcome: cluster.TotalFailure(assert.AnError), Seq: 1})

	c := newStoreCollector(store, func() time.Time { return now })

	expected := `
# HELP slurmdash_cluster_data_age_seconds Age of the newest data held for the cluster.
# TYPE slurmdash_cluster_data_age_seconds gauge
slurmdash_cluster_data_age_seconds{cluster="hpc1"} 42
# HELP slurmdash_cluster_jobs Jobs in the latest snapshot by state.
# TYPE slurmdash_cluster_jobs gauge
slurmdash_cluster_jobs{cluster="hpc1",state="running"} 1
# HELP slurmdash_cluster_nodes Nodes in the latest snapshot by state.
# TYPE slurmdash_cluster_nodes gauge
slurmdash_cluster_nodes{cluster="hpc1",state="down"} 1
slurmdash_cluster_nodes{cluster="hpc1",state="idle"} 2
# HELP slurmdash_cluster_up 1 if the last refresh fetched both node and job data.
# TYPE slurmdash_cluster_up gauge
slurmdash_cluster_up{cluster="hpc1"} 1
slurmdash_cluster_up{cluster="hpc2"} 0
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
}

func TestHandler(t *testing.T) {
	r := NewRecorder(cluster.NewStore())
	r.RefreshFinished("hpc1", cluster.OutcomePartial, time.Second)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `slurmdash_refresh_total{cluster="hpc1",outcome="partial_failure"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
