package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rileyhilliard/slurmdash/internal/client"
	"github.com/rileyhilliard/slurmdash/internal/config"
	"github.com/rileyhilliard/slurmdash/internal/errors"
	"github.com/rileyhilliard/slurmdash/internal/query"
	"github.com/rileyhilliard/slurmdash/internal/ui"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// StatusOptions holds the flags of the status command.
type StatusOptions struct {
	Server  string
	Wait    bool
	JSON    bool
	Timeout time.Duration
}

var statusOpts StatusOptions

var statusCmd = &cobra.Command{
	Use:   "status [cluster...]",
	Short: "Show node and job summaries for each cluster",
	Long: `Refresh every configured cluster once and print a summary table.

With --server, ask a running 'slurmdash serve' instead of connecting to the
clusters directly. By default the server answers with what it has and
refreshes in the background; --wait makes it refresh stale clusters first.

Exits non-zero when any cluster has no data.

Examples:
  slurmdash status
  slurmdash status hpc1 --json
  slurmdash status --server 127.0.0.1:5001 --wait`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusCommand(cmd.Context(), cmd.OutOrStdout(), args, statusOpts)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	f := statusCmd.Flags()
	f.StringVar(&statusOpts.Server, "server", "", "read from a running slurmdash server at this address")
	f.BoolVar(&statusOpts.Wait, "wait", false, "with --server, wait for fresh data instead of answering from cache")
	f.BoolVar(&statusOpts.JSON, "json", false, "print JSON instead of a table")
	f.DurationVar(&statusOpts.Timeout, "timeout", 60*time.Second, "give up after this long")
}

func statusCommand(ctx context.Context, out io.Writer, only []string, opts StatusOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	statuses, err := fetchStatuses(ctx, opts)
	if err != nil {
		if opts.JSON {
			_ = WriteJSONFromError(out, err)
		}
		return err
	}

	statuses, err = filterStatuses(statuses, only)
	if err != nil {
		if opts.JSON {
			_ = WriteJSONFromError(out, err)
		}
		return err
	}

	if opts.JSON {
		if err := WriteJSONSuccess(out, statuses); err != nil {
			return err
		}
	} else {
		ui.ConfigureColor(out, noColorFlag)
		fmt.Fprint(out, ui.RenderStatusTable(statuses, time.Now()))
		fmt.Fprintln(out, ui.RenderSummary(statuses))
	}

	failed := lo.Filter(statuses, func(st query.Status, _ int) bool {
		return !st.Snapshot.HasData()
	})
	if len(failed) > 0 {
		names := lo.Map(failed, func(st query.Status, _ int) string { return st.Cluster })
		return errors.New(errors.ErrSSH,
			fmt.Sprintf("No data for %d cluster(s): %v", len(failed), names),
			"Run with --log-level debug to see each refresh attempt.")
	}
	return nil
}

func fetchStatuses(ctx context.Context, opts StatusOptions) ([]query.Status, error) {
	if opts.Server != "" {
		mode := query.ModeBackground
		if opts.Wait {
			mode = query.ModeWait
		}
		return client.New(opts.Server, opts.Timeout).Clusters(ctx, mode)
	}

	cfg, _, err := config.LoadFrom(configFlag)
	if err != nil {
		return nil, err
	}
	log, syncLog, err := newLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, err
	}
	defer func() { _ = syncLog() }()

	a := newApp(cfg, log)
	defer a.Close()

	// A fresh process has nothing cached, so every cluster is refreshed.
	return a.svc.AllSnapshots(ctx, query.ModeWait), nil
}

func filterStatuses(statuses []query.Status, only []string) ([]query.Status, error) {
	if len(only) == 0 {
		return statuses, nil
	}
	known := lo.Map(statuses, func(st query.Status, _ int) string { return st.Cluster })
	for _, name := range only {
		if !lo.Contains(known, name) {
			return nil, errors.NewNotFound(name)
		}
	}
	return lo.Filter(statuses, func(st query.Status, _ int) bool {
		return lo.Contains(only, st.Cluster)
	}), nil
}
