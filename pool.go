package etp3

import (
	"context"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/gvanem/etp3/protocol"
	"github.com/gvanem/etp3/utils"
)

// Pool manages one client per server instance name. Connections are
// created on demand and shut down together. Safe for concurrent use.
type Pool struct {
	closed atomic.Bool
	log    utils.Logger
	opts   Options

	clients *xsync.MapOf[string, *Client]
}

// NewPool creates an empty pool; opts.Instance is ignored, the per-call
// instance name wins.
func NewPool(opts Options) *Pool {
	opts.SetDefaults()
	return &Pool{
		log:     opts.Logger,
		opts:    opts,
		clients: xsync.NewMapOf[string, *Client](),
	}
}

// Get returns the pooled client for an instance, dialing it on first use.
func (p *Pool) Get(ctx context.Context, instance string) (*Client, error) {
	if p.closed.Load() {
		return nil, protocol.ErrShutdown
	}
	if c, ok := p.clients.Load(instance); ok {
		return c, nil
	}
	// dial outside the map; losers of the race close their extra conn
	opts := p.opts
	opts.Instance = instance
	c, err := Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if prev, loaded := p.clients.LoadOrStore(instance, c); loaded {
		_ = c.Close()
		return prev, nil
	}
	p.log.InfoCtx(ctx, "pool: connected", "instance", instance, "trace_id", c.TraceID())
	return c, nil
}

// Disconnect shuts down and removes one instance's client.
func (p *Pool) Disconnect(instance string) error {
	c, ok := p.clients.LoadAndDelete(instance)
	if !ok {
		return protocol.ErrNotFound
	}
	p.log.Info("pool: disconnected", "instance", instance, "trace_id", c.TraceID())
	return c.Close()
}

// Close shuts every client down. The pool is unusable afterwards.
func (p *Pool) Close() error {
	p.closed.Store(true)
	p.clients.Range(func(name string, c *Client) bool {
		if c != nil {
			_ = c.Close()
		}
		return true
	})
	p.clients.Clear()
	return nil
}
