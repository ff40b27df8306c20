package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/slurmdash/internal/errors"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = "slurmdash.yaml"
	// GlobalConfigDir is the directory for global config.
	GlobalConfigDir = ".config/slurmdash"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes environment overrides, e.g. SLURMDASH_REFRESH_TIMEOUT=20s.
	EnvPrefix = "SLURMDASH"
)

// Load reads config from the specified path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Run 'slurmdash init' to create a config file, or specify one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	return parseConfig(v, path)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. slurmdash.yaml in current directory
// 3. ~/.config/slurmdash/config.yaml
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	localConfig := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(localConfig); err == nil {
		return localConfig, nil
	}

	if home, err := os.UserHomeDir(); err == nil && home != "" {
		globalConfig := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
		if _, err := os.Stat(globalConfig); err == nil {
			return globalConfig, nil
		}
	}

	return "", nil
}

// LoadFrom finds and loads the config, failing when none exists.
func LoadFrom(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		return nil, "", errors.New(errors.ErrConfig,
			"No slurmdash config found",
			"Run 'slurmdash init' to create "+ConfigFileName+", or pass --config")
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	if err := Validate(cfg); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()

	setDefaults(v, cfg)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+path)
	}

	if cfg.Clusters == nil {
		cfg.Clusters = make(map[string]Cluster)
	}
	for name, cl := range cfg.Clusters {
		cfg.Clusters[name] = cl.Resolved(name)
	}

	return cfg, nil
}

// setDefaults registers defaults with viper so env overrides apply to keys
// that are absent from the file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("version", cfg.Version)
	v.SetDefault("refresh.max_staleness", cfg.Refresh.MaxStaleness)
	v.SetDefault("refresh.timeout", cfg.Refresh.Timeout)
	v.SetDefault("refresh.backoff_base", cfg.Refresh.BackoffBase)
	v.SetDefault("refresh.backoff_max", cfg.Refresh.BackoffMax)
	v.SetDefault("refresh.poll_interval", cfg.Refresh.PollInterval)
	v.SetDefault("server.listen", cfg.Server.Listen)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
	v.SetDefault("ssh.dial_timeout", cfg.SSH.DialTimeout)
	v.SetDefault("ssh.strict_host_key_checking", cfg.SSH.StrictHostKeyChecking)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}
