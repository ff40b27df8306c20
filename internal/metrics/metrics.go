// Package metrics exposes refresh activity and cluster state to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rileyhilliard/slurmdash/internal/cluster"
	"github.com/rileyhilliard/slurmdash/internal/slurm"
	"github.com/samber/lo"
)

// Namespace prefixes every metric name.
const Namespace = "slurmdash"

// Recorder counts refreshes and serves them, together with the current
// contents of a Store, on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	refreshes *prometheus.CounterVec
	skipped   *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	inFlight  *prometheus.GaugeVec
}

var _ cluster.Observer = (*Recorder)(nil)

// NewRecorder creates a recorder. When store is non-nil, node and job
// counts are read from it at scrape time.
func NewRecorder(store *cluster.Store) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "refresh",
			Name:      "total",
			Help:      "Completed refreshes by outcome.",
		}, []string{"cluster", "outcome"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "refresh",
			Name:      "skipped_total",
			Help:      "Refresh requests answered without starting a refresh, by reason.",
		}, []string{"cluster", "reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "refresh",
			Name:      "duration_seconds",
			Help:      "Time taken by a refresh.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"cluster"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "refresh",
			Name:      "in_flight",
			Help:      "1 while a refresh of the cluster is running.",
		}, []string{"cluster"}),
	}

	r.registry.MustRegister(
		r.refreshes, r.skipped, r.duration, r.inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if store != nil {
		r.registry.MustRegister(newStoreCollector(store, time.Now))
	}
	return r
}

// Registry returns the registry metrics are registered on.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) RefreshStarted(c string) {
	r.inFlight.WithLabelValues(c).Set(1)
}

func (r *Recorder) RefreshFinished(c string, outcome cluster.OutcomeKind, took time.Duration) {
	r.inFlight.WithLabelValues(c).Set(0)
	r.refreshes.WithLabelValues(c, string(outcome)).Inc()
	r.duration.WithLabelValues(c).Observe(took.Seconds())
}

func (r *Recorder) RefreshSkipped(c, reason string) {
	r.skipped.WithLabelValues(c, reason).Inc()
}

// storeCollector reports the stored snapshots as gauges.
type storeCollector struct {
	store *cluster.Store
	now   func() time.Time

	nodes *prometheus.Desc
	jobs  *prometheus.Desc
	age   *prometheus.Desc
	up    *prometheus.Desc
}

func newStoreCollector(store *cluster.Store, now func() time.Time) *storeCollector {
	return &storeCollector{
		store: store,
		now:   now,
		nodes: prometheus.NewDesc(prometheus.BuildFQName(Namespace, "cluster", "nodes"),
			"Nodes in the latest snapshot by state.", []string{"cluster", "state"}, nil),
		jobs: prometheus.NewDesc(prometheus.BuildFQName(Namespace, "cluster", "jobs"),
			"Jobs in the latest snapshot by state.", []string{"cluster", "state"}, nil),
		age: prometheus.NewDesc(prometheus.BuildFQName(Namespace, "cluster", "data_age_seconds"),
			"Age of the newest data held for the cluster.", []string{"cluster"}, nil),
		up: prometheus.NewDesc(prometheus.BuildFQName(Namespace, "cluster", "up"),
			"1 if the last refresh fetched both node and job data.", []string{"cluster"}, nil),
	}
}

func (c *storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.nodes
	ch <- c.jobs
	ch <- c.age
	ch <- c.up
}

func (c *storeCollector) Collect(ch chan<- prometheus.Metric) {
	now := c.now()
	for _, snap := range c.store.GetAll() {
		byNode := lo.GroupBy(snap.Nodes, func(n slurm.NodeRecord) slurm.NodeState { return n.State })
		for state, nodes := range byNode {
			ch <- prometheus.MustNewConstMetric(c.nodes, prometheus.GaugeValue,
				float64(len(nodes)), snap.Cluster, string(state))
		}

		byJob := lo.GroupBy(snap.Jobs, func(j slurm.JobRecord) slurm.JobState { return j.State })
		for state, jobs := range byJob {
			ch <- prometheus.MustNewConstMetric(c.jobs, prometheus.GaugeValue,
				float64(len(jobs)), snap.Cluster, string(state))
		}

		if snap.HasData() {
			ch <- prometheus.MustNewConstMetric(c.age, prometheus.GaugeValue,
				snap.Age(now).Seconds(), snap.Cluster)
		}

		up := 0.0
		if snap.Outcome.Kind == cluster.OutcomeSuccess {
			up = 1
		}
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, up, snap.Cluster)
	}
}
