package config

import (
	"sort"
	"time"
)

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Default scheduler commands. Both must print JSON on stdout.
const (
	DefaultNodesCommand = "sinfo --json"
	DefaultJobsCommand  = "squeue --json"
)

// Config represents the complete slurmdash.yaml configuration file.
type Config struct {
	Version  int                `yaml:"version" mapstructure:"version"`
	Clusters map[string]Cluster `yaml:"clusters" mapstructure:"clusters"`
	Refresh  RefreshConfig      `yaml:"refresh" mapstructure:"refresh"`
	Server   ServerConfig       `yaml:"server" mapstructure:"server"`
	SSH      SSHConfig          `yaml:"ssh" mapstructure:"ssh"`
	Log      LogConfig          `yaml:"log" mapstructure:"log"`
}

// Cluster defines a Slurm cluster reachable through a login node.
type Cluster struct {
	// Host is the SSH target for the login node: an ~/.ssh/config alias,
	// hostname, user@hostname, or hostname:port. Defaults to the cluster name.
	Host string `yaml:"host,omitempty" mapstructure:"host"`

	// Description is free text shown by the status command.
	Description string `yaml:"description,omitempty" mapstructure:"description"`

	// NodesCommand prints the node inventory as JSON (sinfo-equivalent).
	NodesCommand string `yaml:"nodes_command,omitempty" mapstructure:"nodes_command"`

	// JobsCommand prints the job queue as JSON (squeue-equivalent).
	JobsCommand string `yaml:"jobs_command,omitempty" mapstructure:"jobs_command"`
}

// RefreshConfig controls how often clusters are re-queried and how failures back off.
type RefreshConfig struct {
	// MaxStaleness is how old a snapshot may be before a read triggers a refresh.
	MaxStaleness time.Duration `yaml:"max_staleness" mapstructure:"max_staleness"`

	// Timeout is the hard deadline for one refresh (both commands).
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// BackoffBase is the first cooldown after a total failure. It doubles per
	// consecutive total failure up to BackoffMax.
	BackoffBase time.Duration `yaml:"backoff_base" mapstructure:"backoff_base"`
	BackoffMax  time.Duration `yaml:"backoff_max" mapstructure:"backoff_max"`

	// PollInterval drives the background poller. Zero disables polling and
	// leaves refreshes to reads only.
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Listen          string        `yaml:"listen" mapstructure:"listen"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// SSHConfig controls the SSH transport used to reach login nodes.
type SSHConfig struct {
	DialTimeout           time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	StrictHostKeyChecking bool          `yaml:"strict_host_key_checking" mapstructure:"strict_host_key_checking"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version:  CurrentConfigVersion,
		Clusters: make(map[string]Cluster),
		Refresh: RefreshConfig{
			MaxStaleness: 30 * time.Second,
			Timeout:      10 * time.Second,
			BackoffBase:  5 * time.Second,
			BackoffMax:   5 * time.Minute,
			PollInterval: 30 * time.Second,
		},
		Server: ServerConfig{
			Listen:          "127.0.0.1:5001",
			ShutdownTimeout: 10 * time.Second,
		},
		SSH: SSHConfig{
			DialTimeout:           10 * time.Second,
			StrictHostKeyChecking: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// ClusterNames returns the configured cluster names in sorted order.
func (c *Config) ClusterNames() []string {
	names := make([]string, 0, len(c.Clusters))
	for name := range c.Clusters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolved returns the cluster with defaults filled in.
func (cl Cluster) Resolved(name string) Cluster {
	if cl.Host == "" {
		cl.Host = name
	}
	if cl.NodesCommand == "" {
		cl.NodesCommand = DefaultNodesCommand
	}
	if cl.JobsCommand == "" {
		cl.JobsCommand = DefaultJobsCommand
	}
	return cl
}
