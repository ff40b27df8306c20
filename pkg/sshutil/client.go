package sshutil

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kevinburke/ssh_config"
	"github.com/rileyhilliard/slurmdash/internal/errors"
	"github.com/rileyhilliard/slurmdash/internal/logger"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Client wraps an SSH connection to a cluster login node.
type Client struct {
	*ssh.Client
	Host    string // The original host/alias used to connect
	Address string // The resolved address (host:port)
}

// DialOptions controls how a connection is established.
type DialOptions struct {
	// Timeout bounds the TCP dial and the SSH handshake.
	Timeout time.Duration

	// StrictHostKeyChecking verifies host keys against ~/.ssh/known_hosts.
	// When false, host keys are not verified.
	StrictHostKeyChecking bool

	// Logger receives warnings about the SSH config. Defaults to logger.Default().
	Logger logger.Logger
}

// matchWarningOnce ensures the SSH config Match directive warning is only shown once per process.
var matchWarningOnce sync.Once

// Dial establishes an SSH connection to the specified host.
// The host can be:
//   - An SSH config alias (e.g., "hpc1")
//   - A hostname (e.g., "login.hpc.example.edu")
//   - A user@hostname (e.g., "alice@login.hpc.example.edu")
//   - A hostname:port (e.g., "login.hpc.example.edu:2222")
//
// Connection settings are resolved from ~/.ssh/config when available.
func Dial(host string, opts DialOptions) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}

	settings := resolveSSHSettings(host, filepath.Join(homeDir(), ".ssh", "config"), log)

	config, err := buildSSHConfig(settings, opts)
	if err != nil {
		var sdErr *errors.Error
		if stderrors.As(err, &sdErr) {
			return nil, err
		}
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Couldn't set up SSH for '%s'", host),
			"Check your keys are loaded: ssh-add -l")
	}

	address := settings.address()
	conn, err := net.DialTimeout("tcp", address, opts.Timeout)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't reach '%s' at %s", host, address),
			suggestionForDialError(err))
	}

	// Bound the handshake too; ClientConfig.Timeout only covers the dial.
	_ = conn.SetDeadline(time.Now().Add(opts.Timeout))
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()

		var hostKeyErr *HostKeyMismatchError
		if stderrors.As(err, &hostKeyErr) {
			return nil, errors.New(errors.ErrSSH, hostKeyErr.Error(), hostKeyErr.Suggestion())
		}

		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("SSH handshake with '%s' didn't go through", host),
			suggestionForHandshakeError(err))
	}
	_ = conn.SetDeadline(time.Time{})

	return &Client{
		Client:  ssh.NewClient(sshConn, chans, reqs),
		Host:    host,
		Address: address,
	}, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// GetHost returns the original host/alias used to connect.
func (c *Client) GetHost() string {
	return c.Host
}

// Alive reports whether the connection still answers a keepalive request.
// It is cheaper than opening a session.
func (c *Client) Alive() bool {
	if c.Client == nil {
		return false
	}
	_, _, err := c.Client.SendRequest("keepalive@openssh.com", true, nil)
	return err == nil
}

// sshSettings holds resolved SSH connection parameters.
type sshSettings struct {
	hostname     string
	port         string
	user         string
	identityFile string
}

// address returns the host:port string for dialing.
func (s *sshSettings) address() string {
	return net.JoinHostPort(s.hostname, s.port)
}

// resolveSSHSettings parses the host string and resolves settings from the
// SSH config at configPath. Explicit user@ and :port in host win over the config.
func resolveSSHSettings(host, configPath string, log logger.Logger) *sshSettings {
	settings := &sshSettings{
		port: "22",
		user: currentUser(),
	}

	explicitUser, explicitPort := false, false
	if atIdx := strings.Index(host, "@"); atIdx != -1 {
		settings.user = host[:atIdx]
		host = host[atIdx+1:]
		explicitUser = true
	}

	if colonIdx := strings.LastIndex(host, ":"); colonIdx != -1 {
		if port := host[colonIdx+1:]; isDigits(port) {
			settings.port = port
			host = host[:colonIdx]
			explicitPort = true
		}
	}

	settings.hostname = host

	// kevinburke/ssh_config doesn't support Match, so only the content before
	// the first Match block is parsed.
	content, matchLine, err := preprocessSSHConfig(configPath)
	if err != nil {
		return settings
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return settings
	}

	hostFound := false

	if hostname, _ := cfg.Get(host, "HostName"); hostname != "" {
		settings.hostname = hostname
		hostFound = true
	}
	if port, _ := cfg.Get(host, "Port"); port != "" && !explicitPort {
		settings.port = port
		hostFound = true
	}
	if user, _ := cfg.Get(host, "User"); user != "" && !explicitUser {
		settings.user = user
		hostFound = true
	}
	if identity, _ := cfg.Get(host, "IdentityFile"); identity != "" {
		settings.identityFile = expandPath(identity)
		hostFound = true
	}

	if matchLine > 0 && !hostFound {
		matchWarningOnce.Do(func() {
			log.Warn("Host '%s' not found in SSH config (config has a Match block at line %d that may hide later entries). "+
				"If this host is defined after line %d, move it earlier in ~/.ssh/config.",
				host, matchLine, matchLine)
		})
	}

	return settings
}

// buildSSHConfig creates an SSH client config with authentication methods.
func buildSSHConfig(settings *sshSettings, opts DialOptions) (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod
	var encryptedKeys []string

	tryKeyFile := func(keyPath string) {
		keyAuth, err := keyFileAuth(keyPath)
		if err != nil {
			var encErr *EncryptedKeyError
			if stderrors.As(err, &encErr) {
				encryptedKeys = append(encryptedKeys, keyPath)
			}
			return
		}
		authMethods = append(authMethods, keyAuth)
	}

	if agentAuth := sshAgentAuth(); agentAuth != nil {
		authMethods = append(authMethods, agentAuth)
	}

	if settings.identityFile != "" {
		tryKeyFile(settings.identityFile)
	}
	for _, keyPath := range defaultKeyFiles() {
		if keyPath != settings.identityFile {
			tryKeyFile(keyPath)
		}
	}

	if len(authMethods) == 0 {
		if len(encryptedKeys) > 0 {
			return nil, errors.New(errors.ErrSSH,
				fmt.Sprintf("Found SSH key(s) but they're encrypted: %s", strings.Join(encryptedKeys, ", ")),
				"Load them into the agent the dashboard runs with: ssh-add <key>")
		}
		return nil, errors.New(errors.ErrSSH,
			"No SSH auth methods available",
			"Check your keys are loaded: ssh-add -l")
	}

	var hostKeyCallback ssh.HostKeyCallback
	if opts.StrictHostKeyChecking {
		var err error
		hostKeyCallback, err = createHostKeyCallback(filepath.Join(homeDir(), ".ssh", "known_hosts"))
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}
	} else {
		hostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // Explicitly disabled in config
	}

	return &ssh.ClientConfig{
		User:            settings.user,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         opts.Timeout,
	}, nil
}

var (
	agentClient   agent.ExtendedAgent
	agentConn     net.Conn
	agentConnOnce sync.Once
)

// sshAgentAuth returns an auth method using the SSH agent if it has keys.
// The agent connection is shared by every dial in the process.
func sshAgentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	agentConnOnce.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return
		}
		agentConn = conn
		agentClient = agent.NewClient(conn)
	})

	if agentClient == nil {
		return nil
	}

	// An empty agent causes auth failures when placed before other methods.
	signers, err := agentClient.Signers()
	if err != nil || len(signers) == 0 {
		return nil
	}

	return ssh.PublicKeysCallback(agentClient.Signers)
}

// CloseAgent closes the SSH agent connection if one is open.
func CloseAgent() {
	if agentConn != nil {
		agentConn.Close()
	}
}

// keyFileAuth returns an auth method using a private key file.
// Returns EncryptedKeyError if the key requires a passphrase.
func keyFileAuth(keyPath string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		var passErr *ssh.PassphraseMissingError
		if stderrors.As(err, &passErr) || bytes.Contains(key, []byte("ENCRYPTED")) {
			return nil, &EncryptedKeyError{Path: keyPath}
		}
		return nil, err
	}

	return ssh.PublicKeys(signer), nil
}

func defaultKeyFiles() []string {
	return []string{
		filepath.Join(homeDir(), ".ssh", "id_ed25519"),
		filepath.Join(homeDir(), ".ssh", "id_rsa"),
		filepath.Join(homeDir(), ".ssh", "id_ecdsa"),
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "root"
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func suggestionForDialError(err error) string {
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "connection refused"):
		return "Is SSH running on the login node? Try: ssh <host>"
	case strings.Contains(errStr, "no route to host"), strings.Contains(errStr, "network is unreachable"):
		return "Can't route to the login node. Check VPN or network connection."
	case strings.Contains(errStr, "timeout"):
		return "Connection timed out. The login node might be down or behind a firewall."
	case strings.Contains(errStr, "no such host"):
		return "The name doesn't resolve. Check the host or the alias in ~/.ssh/config."
	}
	return "Make sure the login node is reachable: ssh <host>"
}

func suggestionForHandshakeError(err error) string {
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "unable to authenticate"), strings.Contains(errStr, "no supported methods"):
		return "Auth failed. Check your keys are loaded: ssh-add -l"
	case strings.Contains(errStr, "host key"):
		return "Host key issue. Try connecting manually first: ssh <host>"
	}
	return "Something went wrong during SSH setup. Try: ssh <host>"
}

// EncryptedKeyError is returned when an SSH key requires a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

// HostKeyMismatchError provides context when known_hosts verification fails.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion returns actionable steps to fix the host key mismatch.
func (e *HostKeyMismatchError) Suggestion() string {
	host := e.Hostname
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return fmt.Sprintf(
		"The login node's host key doesn't match %s.\n"+
			"  If the node was reinstalled, remove the old entry:\n"+
			"    ssh-keygen -R %s",
		e.KnownHosts, host)
}

// preprocessSSHConfig reads the SSH config and returns content up to the first Match directive.
// Also returns the 1-indexed line number where Match was found (0 if not found).
func preprocessSSHConfig(configPath string) ([]byte, int, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "match ") {
			return []byte(strings.Join(lines[:i], "\n")), i + 1, nil
		}
	}

	return content, 0, nil
}

// createHostKeyCallback wraps the knownhosts callback to report key mismatches clearly.
func createHostKeyCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(knownHostsPath), 0700); err != nil {
			return nil, fmt.Errorf("failed to create .ssh directory: %w", err)
		}
		if err := os.WriteFile(knownHostsPath, []byte{}, 0600); err != nil {
			return nil, fmt.Errorf("failed to create known_hosts: %w", err)
		}
	}

	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := callback(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		if err != nil && stderrors.As(err, &keyErr) && len(keyErr.Want) > 0 {
			return &HostKeyMismatchError{
				Hostname:     hostname,
				ReceivedType: key.Type(),
				KnownHosts:   knownHostsPath,
			}
		}
		return err
	}, nil
}
