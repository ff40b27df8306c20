package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rileyhilliard/slurmdash/internal/cluster"
	"github.com/rileyhilliard/slurmdash/internal/errors"
	"github.com/rileyhilliard/slurmdash/internal/logger"
	"github.com/rileyhilliard/slurmdash/internal/metrics"
	"github.com/rileyhilliard/slurmdash/internal/query"
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

type listResponse struct {
	Count   int            `json:"count"`
	Results []query.Status `json:"results"`
	Detail  string         `json:"detail"`
}

type singleResponse struct {
	Count   int          `json:"count"`
	Results query.Status `json:"results"`
	Detail  string       `json:"detail"`
}

func newTestServer(t *testing.T) (*Server, *remotetesting.FakeExecutor, *logger.BufferLogger) {
	t.Helper()

	exec := remotetesting.NewFakeExecutor().
		SetOutput("hpc1-login", nodesCmd, nodesJSON).
		SetOutput("hpc1-login", jobsCmd, jobsJSON).
		SetFail("hpc2", nodesCmd, errors.New(errors.ErrSSH, "Can't reach 'hpc2'", "")).
		SetFail("hpc2", jobsCmd, errors.New(errors.ErrSSH, "Can't reach 'hpc2'", ""))

	store := cluster.NewStore()
	rec := metrics.NewRecorder(store)
	coord := cluster.NewCoordinator(exec, store, []cluster.Target{
		{Name: "hpc1", Host: "hpc1-login", NodesCommand: nodesCmd, JobsCommand: jobsCmd},
		{Name: "hpc2", Host: "hpc2", NodesCommand: nodesCmd, JobsCommand: jobsCmd},
	}, cluster.WithObserver(rec))
	t.Cleanup(coord.Close)

	log := logger.NewBufferLogger()
	svc := query.NewService(store, coord, 30*time.Second)
	return New(svc, Options{Metrics: rec.Handler(), Logger: log}), exec, log
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","clusters":2}`, rec.Body.String())
}

func TestListClusters_Cached(t *testing.T) {
	s, exec, _ := newTestServer(t)

	rec := get(t, s, "/api/v1/clusters?mode=cached")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "hpc1", resp.Results[0].Cluster)
	assert.Equal(t, query.HealthPending, resp.Results[0].Health)
	assert.NotEmpty(t, resp.Detail)
	assert.Zero(t, exec.TotalCalls())
}

func TestListClusters_WaitNeverFailsOnRemoteErrors(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := get(t, s, "/api/v1/clusters?mode=wait")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)

	assert.Equal(t, query.HealthOK, resp.Results[0].Health)
	require.NotNil(t, resp.Results[0].Snapshot)
	assert.Equal(t, "node01", resp.Results[0].Snapshot.Nodes[0].Name)

	assert.Equal(t, query.HealthFailed, resp.Results[1].Health)
	assert.Contains(t, resp.Results[1].Message, "Can't reach 'hpc2'")
	assert.NotNil(t, resp.Results[1].RetryAt)
}

func TestListClusters_BadMode(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := get(t, s, "/api/v1/clusters?mode=sometimes")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "sometimes")
}

func TestGetCluster(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := get(t, s, "/api/v1/clusters/hpc1?mode=wait")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp singleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "hpc1", resp.Results.Cluster)
	assert.Equal(t, "hpc1-login", resp.Results.Host)
	assert.Equal(t, query.HealthOK, resp.Results.Health)
	assert.Equal(t, cluster.OutcomeSuccess, resp.Results.Snapshot.Outcome.Kind)
}

func TestGetCluster_NotFound(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := get(t, s, "/api/v1/clusters/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not configured")
}

func TestData(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := get(t, s, "/data/hpc1")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DataResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "hpc1-login", resp.Host)
	assert.Len(t, resp.Nodes, 1)
	assert.Len(t, resp.Jobs, 1)
}

func TestData_UnreachableIsAnErrorPayload(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := get(t, s, "/data/hpc2")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DataResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "failed", resp.Health)
	assert.Contains(t, resp.Message, "Can't reach")
}

func TestData_UnknownCluster(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := get(t, s, "/data/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"error"`)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)
	get(t, s, "/api/v1/clusters?mode=wait")

	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `slurmdash_refresh_total{cluster="hpc1",outcome="success"} 1`)
	assert.Contains(t, rec.Body.String(), `slurmdash_cluster_nodes{cluster="hpc1",state="idle"} 1`)
}

func TestRequestsAreLogged(t *testing.T) {
	s, _, log := newTestServer(t)
	get(t, s, "/healthz")
	assert.True(t, log.Contains("GET /healthz 200"))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s, _, _ := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunBadAddress(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.opts.Listen = "256.0.0.1:99999"

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}
