package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/rileyhilliard/slurmdash/internal/config"
	"github.com/rileyhilliard/slurmdash/internal/doctor"
	"github.com/rileyhilliard/slurmdash/internal/errors"
	"github.com/rileyhilliard/slurmdash/internal/logger"
	"github.com/rileyhilliard/slurmdash/internal/ui"
	"github.com/rileyhilliard/slurmdash/pkg/sshutil"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var doctorJSONFlag bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose config, SSH and scheduler problems",
	Long: `Check everything a refresh depends on:

  - the config file exists and is valid
  - ~/.ssh/config parses and some SSH credential is available
  - each cluster's scheduler commands run and print parseable JSON

Examples:
  slurmdash doctor
  slurmdash doctor --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return doctorCommand(cmd.Context(), cmd.OutOrStdout(), sshutil.UserConfigPath(), doctorJSONFlag)
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorJSONFlag, "json", false, "print JSON instead of a report")
}

func doctorCommand(ctx context.Context, out io.Writer, sshConfigPath string, asJSON bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	checks := []doctor.Check{
		&doctor.ConfigCheck{ConfigPath: configFlag},
		&doctor.SSHConfigCheck{Path: sshConfigPath},
		&doctor.SSHAuthCheck{},
	}

	// Cluster checks need a valid config; the config check reports why not.
	if cfg, _, err := config.LoadFrom(configFlag); err == nil {
		exec, closeExec := newExecutor(cfg, logger.Noop())
		defer closeExec()
		for _, t := range targets(cfg) {
			checks = append(checks, &doctor.ClusterCheck{
				Cluster:      t.Name,
				Host:         t.Host,
				NodesCommand: t.NodesCommand,
				JobsCommand:  t.JobsCommand,
				Exec:         exec,
				Timeout:      cfg.Refresh.Timeout,
			})
		}
	}

	results := doctor.RunAll(ctx, checks)

	if asJSON {
		if err := WriteJSONSuccess(out, results); err != nil {
			return err
		}
	} else {
		ui.ConfigureColor(out, noColorFlag)
		rows := lo.Map(results, func(r doctor.CheckResult, _ int) ui.CheckRow {
			return ui.CheckRow{
				Status:     r.Status.String(),
				Category:   r.Category,
				Message:    r.Message,
				Suggestion: r.Suggestion,
			}
		})
		fmt.Fprint(out, ui.RenderCheckList(rows))
		fmt.Fprintln(out, doctor.Summary(results))
	}

	if doctor.HasFailures(results) {
		return errors.New(errors.ErrConfig, doctor.Summary(results), "See the report above.")
	}
	return nil
}
