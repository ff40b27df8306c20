package doctor

import (
	"context"
	"fmt"
	"os"

	"github.com/rileyhilliard/slurmdash/internal/errors"
	"github.com/rileyhilliard/slurmdash/pkg/sshutil"
	"github.com/samber/lo"
)

// SSHConfigCheck verifies ~/.ssh/config parses and lists its aliases.
type SSHConfigCheck struct {
	Path string
}

func (c *SSHConfigCheck) Name() string     { return "ssh_config" }
func (c *SSHConfigCheck) Category() string { return "SSH" }

func (c *SSHConfigCheck) Run(context.Context) CheckResult {
	if _, err := os.Stat(c.Path); os.IsNotExist(err) {
		return warn("No SSH config at "+c.Path,
			"Cluster hosts must then be hostnames, not aliases")
	}

	hosts, err := sshutil.ListHosts(c.Path)
	if err != nil {
		return fail(errors.Summary(err), "Fix the syntax error in "+c.Path)
	}
	return pass(fmt.Sprintf("%s (%d host alias%s)", c.Path, len(hosts), lo.Ternary(len(hosts) == 1, "", "es")))
}

// SSHAuthCheck verifies there is some way to authenticate: an agent or a
// default key on disk.
type SSHAuthCheck struct{}

func (c *SSHAuthCheck) Name() string     { return "ssh_auth" }
func (c *SSHAuthCheck) Category() string { return "SSH" }

func (c *SSHAuthCheck) Run(context.Context) CheckResult {
	if os.Getenv("SSH_AUTH_SOCK") != "" {
		return pass("SSH agent available")
	}
	if (sshutil.HostEntry{}).HasKey() {
		return pass("Default SSH key found")
	}
	return fail("No SSH agent and no default key",
		"Start ssh-agent or create a key with ssh-keygen -t ed25519")
}
