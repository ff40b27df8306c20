package doctor

import (
	"context"
	"fmt"
	"time"

	"github.com/rileyhilliard/slurmdash/internal/errors"
	"github.com/rileyhilliard/slurmdash/internal/remote"
	"github.com/rileyhilliard/slurmdash/internal/slurm"
)

// DefaultClusterTimeout bounds each scheduler command run by a ClusterCheck.
const DefaultClusterTimeout = 15 * time.Second

// ClusterCheck runs a cluster's scheduler commands and parses their output,
// the same way a refresh does.
type ClusterCheck struct {
	Cluster      string
	Host         string
	NodesCommand string
	JobsCommand  string
	Exec         remote.Executor
	Timeout      time.Duration
}

func (c *ClusterCheck) Name() string     { return "cluster_" + c.Cluster }
func (c *ClusterCheck) Category() string { return "CLUSTER" }

func (c *ClusterCheck) Run(ctx context.Context) CheckResult {
	if c.Exec == nil {
		return fail(fmt.Sprintf("%s: no transport", c.Cluster), "")
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultClusterTimeout
	}

	nodes, jobs, err := c.sample(ctx, timeout)
	if err != nil {
		return fail(fmt.Sprintf("%s (%s): %s", c.Cluster, c.Host, errors.Summary(err)), suggestionFor(err))
	}
	return pass(fmt.Sprintf("%s (%s): %d nodes, %d jobs", c.Cluster, c.Host, nodes, jobs))
}

func (c *ClusterCheck) sample(ctx context.Context, timeout time.Duration) (int, int, error) {
	raw, err := c.fetch(ctx, timeout, c.NodesCommand)
	if err != nil {
		return 0, 0, err
	}
	nodes, err := slurm.ParseNodeInventory(raw)
	if err != nil {
		return 0, 0, err
	}

	raw, err = c.fetch(ctx, timeout, c.JobsCommand)
	if err != nil {
		return 0, 0, err
	}
	jobs, err := slurm.ParseJobQueue(raw)
	if err != nil {
		return 0, 0, err
	}
	return len(nodes), len(jobs), nil
}

func (c *ClusterCheck) fetch(ctx context.Context, timeout time.Duration, command string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(remote.WithConnectionScope(ctx, c.Cluster), timeout)
	defer cancel()
	return remote.Run(ctx, c.Exec, c.Host, command)
}

func suggestionFor(err error) string {
	if sdErr, ok := err.(*errors.Error); ok && sdErr.Suggestion != "" {
		return sdErr.Suggestion
	}
	switch errors.Code(err) {
	case errors.ErrSSH:
		return "Check that 'ssh <host>' works without a password prompt"
	case errors.ErrCommand:
		return "Run the command by hand on the login node; it needs Slurm 21.08+ for --json"
	case errors.ErrParse:
		return "The command must print sinfo/squeue JSON on stdout"
	case errors.ErrTimeout:
		return "Raise refresh.timeout if the scheduler is slow"
	}
	return ""
}
