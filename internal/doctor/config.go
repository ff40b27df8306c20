package doctor

import (
	"context"
	"fmt"

	"github.com/rileyhilliard/slurmdash/internal/config"
	"github.com/rileyhilliard/slurmdash/internal/errors"
)

// ConfigCheck verifies that a config file exists and is valid.
type ConfigCheck struct {
	ConfigPath string // Explicit path, or empty to search
}

func (c *ConfigCheck) Name() string     { return "config" }
func (c *ConfigCheck) Category() string { return "CONFIG" }

func (c *ConfigCheck) Run(context.Context) CheckResult {
	path, err := config.Find(c.ConfigPath)
	if err != nil {
		return fail(errors.Summary(err), "Check the --config path")
	}
	if path == "" {
		return fail("No config file found", "Run 'slurmdash init' to create "+config.ConfigFileName)
	}

	cfg, err := config.Load(path)
	if err == nil {
		err = config.Validate(cfg)
	}
	if err != nil {
		suggestion := ""
		if sdErr, ok := err.(*errors.Error); ok {
			suggestion = sdErr.Suggestion
		}
		return fail(fmt.Sprintf("%s: %s", path, errors.Summary(err)), suggestion)
	}

	return pass(fmt.Sprintf("%s (%d cluster%s)", path, len(cfg.Clusters), pluralize(len(cfg.Clusters))))
}
