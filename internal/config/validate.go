package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/slurmdash/internal/errors"
)

// minPollInterval is the scheduler's resolution; shorter intervals round up.
const minPollInterval = time.Second

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try reloading the configuration.")
	}

	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but slurmdash only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade slurmdash, or lower 'version' in slurmdash.yaml.")
	}

	if len(cfg.Clusters) == 0 {
		return errors.New(errors.ErrConfig,
			"No clusters configured",
			"Add at least one entry under 'clusters' in slurmdash.yaml.")
	}

	for _, name := range cfg.ClusterNames() {
		if err := validateCluster(name, cfg.Clusters[name]); err != nil {
			return err
		}
	}

	if err := validateRefresh(cfg.Refresh); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'refresh' section in slurmdash.yaml.")
	}

	if strings.TrimSpace(cfg.Server.Listen) == "" {
		return errors.New(errors.ErrConfig,
			"server.listen is empty",
			"Set it to an address like 127.0.0.1:5001.")
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		return errors.New(errors.ErrConfig,
			"server.shutdown_timeout must be positive",
			"Use a duration like 10s.")
	}

	if cfg.SSH.DialTimeout <= 0 {
		return errors.New(errors.ErrConfig,
			"ssh.dial_timeout must be positive",
			"Use a duration like 10s.")
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown log level '%s'", cfg.Log.Level),
			"Use one of: debug, info, warn, error.")
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "", "console", "json":
	default:
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown log format '%s'", cfg.Log.Format),
			"Use 'console' or 'json'.")
	}

	return nil
}

// validateCluster checks one cluster entry. Names end up in URLs, so they
// must be path-safe.
func validateCluster(name string, cl Cluster) error {
	if strings.TrimSpace(name) == "" {
		return errors.New(errors.ErrConfig,
			"Cluster with an empty name",
			"Give every entry under 'clusters' a name.")
	}
	if strings.ContainsAny(name, "/ \t?#") {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Cluster name '%s' contains characters that aren't allowed", name),
			"Use letters, digits, dashes, dots, or underscores.")
	}
	if strings.Contains(cl.Host, " ") {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Cluster '%s' has an invalid host '%s'", name, cl.Host),
			"Use an SSH alias, hostname, user@hostname, or hostname:port.")
	}
	if strings.TrimSpace(cl.NodesCommand) == "" || strings.TrimSpace(cl.JobsCommand) == "" {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Cluster '%s' has an empty scheduler command", name),
			"Remove nodes_command/jobs_command to use the sinfo/squeue defaults.")
	}
	return nil
}

func validateRefresh(r RefreshConfig) error {
	if r.MaxStaleness <= 0 {
		return fmt.Errorf("refresh.max_staleness must be positive, got %s", r.MaxStaleness)
	}
	if r.Timeout <= 0 {
		return fmt.Errorf("refresh.timeout must be positive, got %s", r.Timeout)
	}
	if r.BackoffBase <= 0 {
		return fmt.Errorf("refresh.backoff_base must be positive, got %s", r.BackoffBase)
	}
	if r.BackoffMax < r.BackoffBase {
		return fmt.Errorf("refresh.backoff_max (%s) is shorter than refresh.backoff_base (%s)", r.BackoffMax, r.BackoffBase)
	}
	if r.PollInterval < 0 {
		return fmt.Errorf("refresh.poll_interval can't be negative, got %s", r.PollInterval)
	}
	if r.PollInterval > 0 && r.PollInterval < minPollInterval {
		return fmt.Errorf("refresh.poll_interval must be at least %s, got %s", minPollInterval, r.PollInterval)
	}
	return nil
}
