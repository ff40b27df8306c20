package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rileyhilliard/slurmdash/internal/config"
	"github.com/rileyhilliard/slurmdash/internal/errors"
	"github.com/rileyhilliard/slurmdash/pkg/sshutil"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var (
	initForceFlag  bool
	initGlobalFlag bool
)

var initCmd = &cobra.Command{
	Use:   "init [name[=host]...]",
	Short: "Create a slurmdash.yaml configuration",
	Long: `Write a starter configuration file.

Each argument adds a cluster. 'name=host' sets the SSH target; a bare name
is used as the host too. With no arguments, every ~/.ssh/config alias that
has a key on disk is added.

Examples:
  slurmdash init hpc1 gpu=gpu-login.example.edu
  slurmdash init --global
  slurmdash init --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := initPath(initGlobalFlag)
		if err != nil {
			return err
		}
		return initCommand(cmd.OutOrStdout(), path, args, sshutil.UserConfigPath(), initForceFlag)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForceFlag, "force", false, "overwrite an existing config")
	initCmd.Flags().BoolVar(&initGlobalFlag, "global", false, "write ~/.config/slurmdash/config.yaml instead of ./slurmdash.yaml")
}

func initPath(global bool) (string, error) {
	if configFlag != "" {
		return configFlag, nil
	}
	if !global {
		return config.ConfigFileName, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't find your home directory",
			"Pass --config with an explicit path.")
	}
	return filepath.Join(home, config.GlobalConfigDir, config.GlobalConfigFile), nil
}

func initCommand(out io.Writer, path string, args []string, sshConfigPath string, force bool) error {
	clusters, err := parseClusterArgs(args)
	if err != nil {
		return err
	}

	if len(clusters) == 0 {
		hosts, err := sshutil.ListHosts(sshConfigPath)
		if err != nil {
			return err
		}
		usable := lo.Filter(hosts, func(h sshutil.HostEntry, _ int) bool { return h.HasKey() })
		clusters = lo.SliceToMap(usable, func(h sshutil.HostEntry) (string, string) { return h.Alias, h.Alias })
	}
	if len(clusters) == 0 {
		return errors.New(errors.ErrConfig,
			"No clusters to add",
			"Name them: slurmdash init hpc1 gpu=gpu-login.example.edu")
	}

	if err := config.WriteStarter(path, clusters, force); err != nil {
		return err
	}

	names := lo.Keys(clusters)
	fmt.Fprintf(out, "Wrote %s with %d cluster(s): %s\n", path, len(names), strings.Join(sortedStrings(names), ", "))
	return nil
}

func parseClusterArgs(args []string) (map[string]string, error) {
	clusters := make(map[string]string, len(args))
	for _, arg := range args {
		name, host, _ := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, errors.New(errors.ErrConfig,
				fmt.Sprintf("'%s' has no cluster name", arg),
				"Use name or name=host, e.g. gpu=gpu-login.example.edu")
		}
		if _, dup := clusters[name]; dup {
			return nil, errors.New(errors.ErrConfig,
				fmt.Sprintf("Cluster '%s' given twice", name), "")
		}
		clusters[name] = strings.TrimSpace(host)
	}
	return clusters, nil
}

func sortedStrings(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}
