package sshutil

import "context"

// SSHClient is the subset of *Client that command execution depends on.
// Tests substitute a fake so no real connection is needed.
type SSHClient interface {
	// ExecContext runs a command and returns stdout, stderr, and exit code.
	// Exit code is -1 if the command couldn't be executed at all.
	ExecContext(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error)

	// Alive reports whether the connection is still usable.
	Alive() bool

	// GetHost returns the original host/alias used to connect.
	GetHost() string

	Close() error
}

var _ SSHClient = (*Client)(nil)
