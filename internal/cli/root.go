package cli

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/rileyhilliard/slurmdash/internal/errors"
	"github.com/rileyhilliard/slurmdash/internal/logger"
	"github.com/spf13/cobra"
)

// Global flags
var (
	configFlag    string
	logLevelFlag  string
	logFormatFlag string
	noColorFlag   bool
)

var rootCmd = &cobra.Command{
	Use:   "slurmdash",
	Short: "Live status for many Slurm clusters",
	Long: `slurmdash keeps a live view of nodes and jobs across Slurm clusters.

Each cluster is reached over SSH through its login node. Refreshes are shared
between viewers, so many people can watch a cluster without each of them
running sinfo and squeue.

Examples:
  slurmdash init hpc1 gpu=gpu-login
  slurmdash status
  slurmdash serve`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFlag, "config", "", "config file (default: ./slurmdash.yaml or ~/.config/slurmdash/config.yaml)")
	pf.StringVar(&logLevelFlag, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	pf.StringVar(&logFormatFlag, "log-format", "", "log format: console or json (overrides config)")
	pf.BoolVar(&noColorFlag, "no-color", false, "disable colored output")
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func printError(w io.Writer, err error) {
	if !isUnknownCommandError(err) {
		fmt.Fprintln(w, err)
		return
	}
	if name := extractUnknownCommand(err); name != "" {
		fmt.Fprintf(w, "'%s' isn't a slurmdash command.\n\nRun 'slurmdash --help' for the list of commands.\n", name)
		return
	}
	fmt.Fprintf(w, "%s\n\nRun 'slurmdash --help' for usage.\n", err)
}

var (
	unknownCommandRe = regexp.MustCompile(`unknown command "([^"]+)"`)
	unknownFlagRe    = regexp.MustCompile(`^unknown (shorthand )?flag`)
)

func isUnknownCommandError(err error) bool {
	return unknownCommandRe.MatchString(err.Error()) || unknownFlagRe.MatchString(err.Error())
}

func extractUnknownCommand(err error) string {
	m := unknownCommandRe.FindStringSubmatch(err.Error())
	if m == nil {
		return ""
	}
	return m[1]
}

// newLogger builds the application logger, letting flags override config.
func newLogger(level, format string, out io.Writer) (logger.Logger, func() error, error) {
	if logLevelFlag != "" {
		level = logLevelFlag
	}
	if logFormatFlag != "" {
		format = logFormatFlag
	}
	log, sync, err := logger.New(logger.Options{Level: level, Format: format, Output: out})
	if err != nil {
		return nil, nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't set up logging",
			"Use --log-level debug|info|warn|error and --log-format console|json.")
	}
	logger.SetDefault(log)
	return log, sync, nil
}
