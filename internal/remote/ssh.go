package remote

import (
	"context"
	"fmt"

	"github.com/rileyhilliard/slurmdash/internal/errors"
)

// SSHExecutor runs commands over pooled SSH connections.
type SSHExecutor struct {
	pool *Pool
}

// NewSSHExecutor creates an executor backed by pool.
func NewSSHExecutor(pool *Pool) *SSHExecutor {
	return &SSHExecutor{pool: pool}
}

// Execute implements Executor. The connection used belongs to the scope
// carried by ctx.
func (e *SSHExecutor) Execute(ctx context.Context, host, command string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, cancelled(err, host, command)
	}

	scope := ConnectionScope(ctx)
	client, err := e.pool.GetFor(scope, host)
	if err != nil {
		return Result{}, err
	}

	stdout, stderr, code, err := client.ExecContext(ctx, command)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, cancelled(err, host, command)
		}
		// The session failed for a reason other than us giving up on it,
		// so the connection is suspect.
		e.pool.DropFor(scope, host)
		return Result{}, err
	}

	return Result{Stdout: stdout, Stderr: stderr, ExitCode: code}, nil
}

// Close releases the underlying connections.
func (e *SSHExecutor) Close() {
	e.pool.Close()
}

func cancelled(err error, host, command string) error {
	return errors.WrapWithCode(err, errors.ErrTimeout,
		fmt.Sprintf("'%s' on '%s' was abandoned", command, host),
		"")
}
