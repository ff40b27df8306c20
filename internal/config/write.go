package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rileyhilliard/slurmdash/internal/errors"
	"gopkg.in/yaml.v3"
)

// starterFile mirrors Config with durations as strings so the written file
// reads "30s" rather than nanoseconds.
type starterFile struct {
	Version  int                `yaml:"version"`
	Clusters map[string]Cluster `yaml:"clusters"`
	Refresh  map[string]string  `yaml:"refresh"`
	Server   map[string]string  `yaml:"server"`
	SSH      map[string]any     `yaml:"ssh"`
	Log      LogConfig          `yaml:"log"`
}

// Starter renders a commented starter config for the given clusters.
// Each value is an SSH target; an empty value uses the name as the host.
func Starter(clusters map[string]string) ([]byte, error) {
	def := DefaultConfig()

	file := starterFile{
		Version:  CurrentConfigVersion,
		Clusters: make(map[string]Cluster, len(clusters)),
		Refresh: map[string]string{
			"max_staleness": def.Refresh.MaxStaleness.String(),
			"timeout":       def.Refresh.Timeout.String(),
			"backoff_base":  def.Refresh.BackoffBase.String(),
			"backoff_max":   def.Refresh.BackoffMax.String(),
			"poll_interval": def.Refresh.PollInterval.String(),
		},
		Server: map[string]string{
			"listen":           def.Server.Listen,
			"shutdown_timeout": def.Server.ShutdownTimeout.String(),
		},
		SSH: map[string]any{
			"dial_timeout":             def.SSH.DialTimeout.String(),
			"strict_host_key_checking": def.SSH.StrictHostKeyChecking,
		},
		Log: def.Log,
	}
	for name, host := range clusters {
		// An empty mapping would be dropped when read back, so always write the host.
		file.Clusters[name] = Cluster{Host: Cluster{Host: host}.Resolved(name).Host}
	}

	var node yaml.Node
	if err := node.Encode(file); err != nil {
		return nil, fmt.Errorf("failed to encode starter config: %w", err)
	}
	node.HeadComment = "slurmdash configuration.\n" +
		"Each cluster is reached over SSH; 'host' may be an ~/.ssh/config alias.\n" +
		"nodes_command and jobs_command default to 'sinfo --json' and 'squeue --json'."

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, fmt.Errorf("failed to write starter config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteStarter writes a starter config to path. Existing files are left
// alone unless force is set.
func WriteStarter(path string, clusters map[string]string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("%s already exists", path),
			"Use --force to overwrite it.")
	}

	data, err := Starter(clusters)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Couldn't render the starter config", "")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Couldn't create config directory "+dir,
				"Check directory permissions")
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't write "+path,
			"Check file permissions")
	}
	return nil
}
