package cli

import (
	"fmt"
	"io"

	"github.com/rileyhilliard/slurmdash/internal/config"
	"github.com/rileyhilliard/slurmdash/internal/ui"
	"github.com/rileyhilliard/slurmdash/pkg/sshutil"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var hostsJSONFlag bool

var hostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "List SSH config aliases usable as cluster hosts",
	Long: `List the Host entries in ~/.ssh/config.

Each alias can be used as a cluster host in slurmdash.yaml. Aliases marked
with a warning have no private key on disk, so they will only work through
an SSH agent.

Examples:
  slurmdash hosts
  slurmdash hosts --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return hostsCommand(cmd.OutOrStdout(), sshutil.UserConfigPath(), hostsJSONFlag)
	},
}

func init() {
	rootCmd.AddCommand(hostsCmd)
	hostsCmd.Flags().BoolVar(&hostsJSONFlag, "json", false, "print JSON instead of a list")
}

func hostsCommand(out io.Writer, sshConfigPath string, asJSON bool) error {
	hosts, err := sshutil.ListHosts(sshConfigPath)
	if err != nil {
		return err
	}

	if asJSON {
		return WriteJSONSuccess(out, hosts)
	}

	ui.ConfigureColor(out, noColorFlag)
	fmt.Fprint(out, ui.RenderHostList(hosts, configuredHosts()))
	return nil
}

// configuredHosts returns the hosts already used by the current config.
// A missing or broken config just means nothing is marked.
func configuredHosts() map[string]bool {
	path, err := config.Find(configFlag)
	if err != nil || path == "" {
		return nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil
	}
	hosts := lo.MapToSlice(cfg.Clusters, func(name string, cl config.Cluster) string {
		return cl.Resolved(name).Host
	})
	return lo.SliceToMap(hosts, func(h string) (string, bool) { return h, true })
}
