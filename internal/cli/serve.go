package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rileyhilliard/slurmdash/internal/config"
	"github.com/rileyhilliard/slurmdash/internal/poller"
	"github.com/rileyhilliard/slurmdash/internal/server"
	"github.com/spf13/cobra"
)

var serveListenFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll clusters and serve their state over HTTP",
	Long: `Start the background poller and the HTTP API.

Endpoints:
  GET /api/v1/clusters[?mode=cached|background|wait]
  GET /api/v1/clusters/{id}[?mode=...]
  GET /data/{id}
  GET /healthz
  GET /metrics

Examples:
  slurmdash serve
  slurmdash serve --listen 0.0.0.0:8080`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serveCommand(ctx, serveListenFlag)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListenFlag, "listen", "", "listen address (overrides server.listen)")
}

func serveCommand(ctx context.Context, listen string) error {
	cfg, path, err := config.LoadFrom(configFlag)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Server.Listen = listen
	}

	log, syncLog, err := newLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = syncLog() }()
	log.Info("loaded %d cluster(s) from %s", len(cfg.Clusters), path)

	a := newApp(cfg, log)
	defer a.Close()

	if cfg.Refresh.PollInterval > 0 {
		p := poller.New(a.coord, cfg.Refresh.PollInterval, log)
		if err := p.Start(); err != nil {
			return err
		}
		defer p.Stop()
	} else {
		log.Info("polling disabled, clusters refresh when read")
	}

	srv := server.New(a.svc, server.Options{
		Listen:          cfg.Server.Listen,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Metrics:         a.metrics.Handler(),
		Logger:          log,
	})
	return srv.Run(ctx)
}
