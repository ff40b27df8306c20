// Package testing provides test doubles for the remote package.
package testing

import (
	"context"
	"sync"

	"github.com/rileyhilliard/slurmdash/internal/remote"
)

// Call records one Execute invocation.
type Call struct {
	Host    string
	Command string
}

// Handler produces the outcome of the n-th call (1-based) for a host and command.
// It may block; ctx is the context passed to Execute.
type Handler func(ctx context.Context, n int) (remote.Result, error)

type key struct {
	host    string
	command string
}

// FakeExecutor answers Execute from scripted handlers and records every call.
// Unscripted calls succeed with empty output.
type FakeExecutor struct {
	mu       sync.Mutex
	handlers map[key]Handler
	counts   map[key]int

	Calls []Call
}

// NewFakeExecutor creates a fake with no scripted responses.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{
		handlers: make(map[key]Handler),
		counts:   make(map[key]int),
	}
}

// Execute implements remote.Executor.
func (f *FakeExecutor) Execute(ctx context.Context, host, command string) (remote.Result, error) {
	k := key{host, command}

	f.mu.Lock()
	f.Calls = append(f.Calls, Call{Host: host, Command: command})
	f.counts[k]++
	n := f.counts[k]
	h := f.handlers[k]
	f.mu.Unlock()

	if h == nil {
		return remote.Result{}, nil
	}
	return h(ctx, n)
}

// Handle scripts host/command with h.
func (f *FakeExecutor) Handle(host, command string, h Handler) *FakeExecutor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[key{host, command}] = h
	return f
}

// SetOutput makes host/command succeed with stdout.
func (f *FakeExecutor) SetOutput(host, command, stdout string) *FakeExecutor {
	return f.Handle(host, command, func(context.Context, int) (remote.Result, error) {
		return remote.Result{Stdout: []byte(stdout)}, nil
	})
}

// SetExit makes host/command exit with code and stderr.
func (f *FakeExecutor) SetExit(host, command string, code int, stderr string) *FakeExecutor {
	return f.Handle(host, command, func(context.Context, int) (remote.Result, error) {
		return remote.Result{Stderr: []byte(stderr), ExitCode: code}, nil
	})
}

// SetFail makes host/command fail with err.
func (f *FakeExecutor) SetFail(host, command string, err error) *FakeExecutor {
	return f.Handle(host, command, func(context.Context, int) (remote.Result, error) {
		return remote.Result{}, err
	})
}

// CallCount returns how many times host/command was executed.
func (f *FakeExecutor) CallCount(host, command string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[key{host, command}]
}

// TotalCalls returns the number of Execute calls across all hosts.
func (f *FakeExecutor) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// Reset clears recorded calls but keeps the scripted handlers.
func (f *FakeExecutor) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = nil
	f.counts = make(map[key]int)
}

var _ remote.Executor = (*FakeExecutor)(nil)
