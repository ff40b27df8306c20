package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"

	"github.com/rileyhilliard/slurmdash/internal/errors"
	"golang.org/x/crypto/ssh"
)

// ExecContext runs cmd in a new session and collects its output.
// A non-zero exit is reported through exitCode with a nil error; err is
// only set when the command could not be run at all (exitCode is then -1).
// When ctx ends first the session is closed and ctx.Err() is returned.
func (c *Client) ExecContext(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	session, err := c.NewSession()
	if err != nil {
		return nil, nil, -1, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Couldn't open an SSH session on '%s'", c.Host),
			"The connection may have dropped. It will be re-dialed on the next refresh.")
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		session.Close()
		return nil, nil, -1, ctx.Err()
	case runErr := <-done:
		if runErr != nil {
			var exitErr *ssh.ExitError
			if stderrors.As(runErr, &exitErr) {
				return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitErr.ExitStatus(), nil
			}
			return nil, nil, -1, errors.WrapWithCode(runErr, errors.ErrSSH,
				fmt.Sprintf("Running '%s' on '%s' failed", cmd, c.Host),
				"The connection may have dropped. It will be re-dialed on the next refresh.")
		}
		return stdoutBuf.Bytes(), stderrBuf.Bytes(), 0, nil
	}
}
