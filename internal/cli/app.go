package cli

import (
	"github.com/rileyhilliard/slurmdash/internal/cluster"
	"github.com/rileyhilliard/slurmdash/internal/config"
	"github.com/rileyhilliard/slurmdash/internal/logger"
	"github.com/rileyhilliard/slurmdash/internal/metrics"
	"github.com/rileyhilliard/slurmdash/internal/query"
	"github.com/rileyhilliard/slurmdash/internal/remote"
	"github.com/rileyhilliard/slurmdash/pkg/sshutil"
)

// newExecutor builds the transport used to run scheduler commands.
// Tests replace it with a fake.
var newExecutor = func(cfg *config.Config, log logger.Logger) (remote.Executor, func()) {
	pool := remote.NewSSHPool(sshutil.DialOptions{
		Timeout:               cfg.SSH.DialTimeout,
		StrictHostKeyChecking: cfg.SSH.StrictHostKeyChecking,
		Logger:                log,
	}, log)
	exec := remote.NewSSHExecutor(pool)
	return exec, exec.Close
}

// app is the wired set of components shared by serve and status.
type app struct {
	cfg     *config.Config
	store   *cluster.Store
	coord   *cluster.Coordinator
	metrics *metrics.Recorder
	svc     *query.Service

	closeExec func()
}

func newApp(cfg *config.Config, log logger.Logger) *app {
	exec, closeExec := newExecutor(cfg, log)

	store := cluster.NewStore()
	rec := metrics.NewRecorder(store)
	coord := cluster.NewCoordinator(exec, store, targets(cfg),
		cluster.WithTimeout(cfg.Refresh.Timeout),
		cluster.WithBackoff(cfg.Refresh.BackoffBase, cfg.Refresh.BackoffMax),
		cluster.WithLogger(log),
		cluster.WithObserver(rec),
	)

	return &app{
		cfg:       cfg,
		store:     store,
		coord:     coord,
		metrics:   rec,
		svc:       query.NewService(store, coord, cfg.Refresh.MaxStaleness),
		closeExec: closeExec,
	}
}

// Close stops in-flight refreshes, then the transport they use.
func (a *app) Close() {
	a.coord.Close()
	a.closeExec()
}

func targets(cfg *config.Config) []cluster.Target {
	names := cfg.ClusterNames()
	out := make([]cluster.Target, 0, len(names))
	for _, name := range names {
		cl := cfg.Clusters[name].Resolved(name)
		out = append(out, cluster.Target{
			Name:         name,
			Host:         cl.Host,
			NodesCommand: cl.NodesCommand,
			JobsCommand:  cl.JobsCommand,
		})
	}
	return out
}
