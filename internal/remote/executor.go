// Package remote runs scheduler commands on cluster login nodes.
package remote

import (
	"context"
	"fmt"
	"strings"

	"github.com/rileyhilliard/slurmdash/internal/errors"
)

// Result is the raw outcome of a command that ran to completion.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Executor runs a command on a host. An error means the command could not
// be run at all (connectivity, auth, cancellation); a command that ran and
// exited non-zero is reported through Result.ExitCode with a nil error.
type Executor interface {
	Execute(ctx context.Context, host, command string) (Result, error)
}

// Run executes command and returns its stdout. A non-zero exit becomes an
// ErrCommand error carrying the first line of stderr.
func Run(ctx context.Context, exec Executor, host, command string) ([]byte, error) {
	res, err := exec.Execute(ctx, host, command)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, errors.New(errors.ErrCommand,
			fmt.Sprintf("'%s' exited %d on '%s': %s", command, res.ExitCode, host, firstLine(res.Stderr)),
			"Run the command by hand on the login node to see the full error.")
	}
	return res.Stdout, nil
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return "no stderr"
	}
	if i := strings.IndexByte(s, '\n'); i != -1 {
		s = s[:i]
	}
	return s
}
