package remote

import (
	"context"
	"sync"

	"github.com/rileyhilliard/slurmdash/internal/logger"
	"github.com/rileyhilliard/slurmdash/pkg/sshutil"
	"golang.org/x/sync/singleflight"
)

// DialFunc opens a connection to host.
type DialFunc func(host string) (sshutil.SSHClient, error)

type scopeKey struct{}

// WithConnectionScope tags ctx so an SSHExecutor uses connections owned by
// scope. Work under different scopes never shares a connection, even to the
// same host.
func WithConnectionScope(ctx context.Context, scope string) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ConnectionScope returns the scope set by WithConnectionScope, or "".
func ConnectionScope(ctx context.Context) string {
	scope, _ := ctx.Value(scopeKey{}).(string)
	return scope
}

type connKey struct {
	scope string
	host  string
}

func (k connKey) String() string {
	if k.scope == "" {
		return k.host
	}
	return k.scope + "@" + k.host
}

// Pool keeps one SSH connection per scope and host alive between refreshes.
// Concurrent Gets for a key that has no live connection share one dial.
type Pool struct {
	mu          sync.Mutex
	connections map[connKey]sshutil.SSHClient
	dial        DialFunc
	dials       singleflight.Group
	log         logger.Logger
}

// NewPool creates a pool that opens connections with dial.
func NewPool(dial DialFunc, log logger.Logger) *Pool {
	if log == nil {
		log = logger.Noop()
	}
	return &Pool{
		connections: make(map[connKey]sshutil.SSHClient),
		dial:        dial,
		log:         log,
	}
}

// NewSSHPool creates a pool that dials with sshutil.Dial.
func NewSSHPool(opts sshutil.DialOptions, log logger.Logger) *Pool {
	if opts.Logger == nil {
		opts.Logger = log
	}
	return NewPool(func(host string) (sshutil.SSHClient, error) {
		client, err := sshutil.Dial(host, opts)
		if err != nil {
			return nil, err
		}
		return client, nil
	}, log)
}

// Get returns the unscoped connection for host.
func (p *Pool) Get(host string) (sshutil.SSHClient, error) {
	return p.GetFor("", host)
}

// GetFor returns a live connection to host owned by scope, dialing a new
// one when there is none or the cached one no longer answers.
func (p *Pool) GetFor(scope, host string) (sshutil.SSHClient, error) {
	k := connKey{scope: scope, host: host}

	p.mu.Lock()
	client, ok := p.connections[k]
	p.mu.Unlock()

	if ok {
		if client.Alive() {
			return client, nil
		}
		p.log.Debug("connection %s went away, redialing", k)
		p.DropFor(scope, host)
	}

	v, err, _ := p.dials.Do(scope+"\x00"+host, func() (interface{}, error) {
		p.mu.Lock()
		if existing, ok := p.connections[k]; ok {
			p.mu.Unlock()
			return existing, nil
		}
		p.mu.Unlock()

		p.log.Debug("dialing %s", k)
		fresh, err := p.dial(host)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.connections[k] = fresh
		p.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(sshutil.SSHClient), nil
}

// Drop closes and forgets the unscoped connection for host, if any.
func (p *Pool) Drop(host string) {
	p.DropFor("", host)
}

// DropFor closes and forgets the connection to host owned by scope, if any.
func (p *Pool) DropFor(scope, host string) {
	k := connKey{scope: scope, host: host}

	p.mu.Lock()
	client, ok := p.connections[k]
	delete(p.connections, k)
	p.mu.Unlock()

	if ok {
		_ = client.Close()
	}
}

// Close closes every pooled connection.
func (p *Pool) Close() {
	p.mu.Lock()
	conns := p.connections
	p.connections = make(map[connKey]sshutil.SSHClient)
	p.mu.Unlock()

	for _, client := range conns {
		_ = client.Close()
	}
}

// Size returns the number of pooled connections.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.connections)
}
