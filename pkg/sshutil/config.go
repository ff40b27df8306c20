package sshutil

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kevinburke/ssh_config"
	"github.com/samber/lo"
)

// HostEntry is a concrete Host alias from an SSH config file.
type HostEntry struct {
	Alias        string
	Hostname     string
	User         string
	Port         string
	IdentityFile string
}

// Description returns a short human-readable summary of where the alias points.
func (h HostEntry) Description() string {
	var parts []string
	if h.Hostname != "" && h.Hostname != h.Alias {
		parts = append(parts, h.Hostname)
	}
	if h.User != "" {
		parts = append(parts, "user: "+h.User)
	}
	if h.Port != "" && h.Port != "22" {
		parts = append(parts, "port: "+h.Port)
	}
	if len(parts) == 0 {
		return h.Alias
	}
	return strings.Join(parts, ", ")
}

// HasKey reports whether the entry's IdentityFile, or one of the default
// keys in ~/.ssh, exists on disk.
func (h HostEntry) HasKey() bool {
	candidates := defaultKeyFiles()
	if h.IdentityFile != "" {
		candidates = append([]string{h.IdentityFile}, candidates...)
	}
	return lo.ContainsBy(candidates, func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	})
}

// UserConfigPath is the location of the current user's SSH config.
func UserConfigPath() string {
	return filepath.Join(homeDir(), ".ssh", "config")
}

// ListHosts parses the SSH config at configPath and returns its concrete
// aliases sorted by name. Wildcard patterns are skipped, as is everything
// after the first Match block. A missing file yields no hosts and no error.
func ListHosts(configPath string) ([]HostEntry, error) {
	content, _, err := preprocessSSHConfig(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	var hosts []HostEntry
	seen := make(map[string]bool)

	for _, host := range cfg.Hosts {
		for _, pattern := range host.Patterns {
			alias := pattern.String()
			if strings.ContainsAny(alias, "*?!") || seen[alias] {
				continue
			}
			seen[alias] = true

			entry := HostEntry{Alias: alias}
			entry.Hostname, _ = cfg.Get(alias, "HostName")
			entry.User, _ = cfg.Get(alias, "User")
			entry.Port, _ = cfg.Get(alias, "Port")
			if identity, _ := cfg.Get(alias, "IdentityFile"); identity != "" {
				entry.IdentityFile = expandPath(identity)
			}
			hosts = append(hosts, entry)
		}
	}

	slices.SortFunc(hosts, func(a, b HostEntry) int {
		return strings.Compare(a.Alias, b.Alias)
	})
	return hosts, nil
}
