package etp3

import (
	"context"
	"encoding/binary"
	"log/slog"
	"net"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/gvanem/etp3/protocol"
	"github.com/gvanem/etp3/utils"
)

// Options configure a client.
type Options struct {
	// Instance selects a named server database; empty is the unnamed one.
	Instance string
	// Dialer opens the raw transport. Defaults to the named pipe.
	Dialer protocol.Dialer
	// Logger receives structured connection events.
	Logger utils.Logger
	// PropertyCacheSize bounds the property-metadata LRU caches.
	PropertyCacheSize int
}

// SetDefaults fills unset fields.
func (o *Options) SetDefaults() {
	if o.Dialer == nil {
		o.Dialer = protocol.DefaultDialer
	}
	if o.Logger == nil {
		o.Logger = utils.NewDefaultLogger(slog.LevelInfo)
	}
	if o.PropertyCacheSize == 0 {
		o.PropertyCacheSize = 256
	}
}

// Client is a process-level handle owning one connected pipe. It is
// exclusive: a mutex inside the connection serializes command/response
// pairs, held across the entire streamed reply of a single call. Shutdown
// and Close may be called from any goroutine; everything else serializes
// through the connection.
type Client struct {
	conn     *protocol.Conn
	log      utils.Logger
	instance string
	traceID  string

	names *lru.Cache[string, PropertyID]
	types *lru.Cache[PropertyID, ValueType]
}

// Connect dials the server pipe and wraps it in a client. A busy pipe is
// retried until the context expires.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	opts.SetDefaults()
	opts.Logger.DebugCtx(ctx, "client: dialing", "instance", opts.Instance)
	raw, err := opts.Dialer(ctx, opts.Instance)
	if err != nil {
		opts.Logger.ErrorCtx(ctx, "client: dial failed",
			"instance", opts.Instance, "error", err)
		return nil, errors.Wrap(err, "etp3 connect")
	}
	return NewClient(raw, opts), nil
}

// NewClient wraps an established transport. Used by Connect, the pool and
// tests feeding an in-memory pipe.
func NewClient(raw net.Conn, opts Options) *Client {
	opts.SetDefaults()
	names, _ := lru.New[string, PropertyID](opts.PropertyCacheSize)
	types, _ := lru.New[PropertyID, ValueType](opts.PropertyCacheSize)
	c := &Client{
		conn:     protocol.NewConn(raw),
		log:      opts.Logger,
		instance: opts.Instance,
		traceID:  uuid.Must(uuid.NewV7()).String(),
		names:    names,
		types:    types,
	}
	c.log.Debug("client: connected", "instance", c.instance, "trace_id", c.traceID)
	return c
}

// TraceID identifies this connection in logs.
func (c *Client) TraceID() string { return c.traceID }

// Stats exposes the connection I/O counters.
func (c *Client) Stats() *protocol.Stats { return c.conn.Stats() }

// Shutdown signals cancellation from any goroutine and returns
// immediately. The in-flight command, if any, unblocks with ErrShutdown;
// subsequent commands fail with ErrDisconnected.
func (c *Client) Shutdown() {
	c.log.Debug("client: shutdown", "trace_id", c.traceID)
	c.conn.Shutdown()
}

// Close tears the client down. Implies Shutdown.
func (c *Client) Close() error {
	c.log.Debug("client: closed", "trace_id", c.traceID)
	return c.conn.Close()
}

// drainReply consumes the rest of a logical reply, following OK_MORE_DATA
// continuations, so an unexpected shape does not poison the next command.
func (c *Client) drainReply(h protocol.Header) error {
	for {
		if err := c.conn.Drain(uint64(h.Size)); err != nil {
			return err
		}
		if !h.More() {
			return nil
		}
		var err error
		if h, err = c.conn.ReadResponse(); err != nil {
			return err
		}
	}
}

// exchangeDword sends a command expecting exactly one 4-byte OK payload.
func (c *Client) exchangeDword(code protocol.Code, payload []byte) (uint32, error) {
	c.conn.Lock()
	defer c.conn.Unlock()
	if err := c.conn.WriteFrame(code, payload); err != nil {
		return 0, err
	}
	h, err := c.conn.ReadResponse()
	if err != nil {
		return 0, err
	}
	if h.More() || h.Size != 4 {
		if err := c.drainReply(h); err != nil {
			return 0, err
		}
		return 0, protocol.ErrBadResponse
	}
	var raw [4]byte
	if err := c.conn.ReadFull(raw[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(raw[:]), nil
}

// exchangeFixed sends a command expecting an OK payload of exactly n bytes.
func (c *Client) exchangeFixed(code protocol.Code, payload []byte, n uint32) ([]byte, error) {
	c.conn.Lock()
	defer c.conn.Unlock()
	if err := c.conn.WriteFrame(code, payload); err != nil {
		return nil, err
	}
	h, err := c.conn.ReadResponse()
	if err != nil {
		return nil, err
	}
	if h.More() || h.Size != n {
		if err := c.drainReply(h); err != nil {
			return nil, err
		}
		return nil, protocol.ErrBadResponse
	}
	buf := make([]byte, n)
	if err := c.conn.ReadFull(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// exchangeBlob sends a command whose OK payload size is dictated by the
// response header, pulling OK_MORE_DATA continuations if the server sends
// them.
func (c *Client) exchangeBlob(code protocol.Code, payload []byte) ([]byte, error) {
	c.conn.Lock()
	defer c.conn.Unlock()
	if err := c.conn.WriteFrame(code, payload); err != nil {
		return nil, err
	}
	s, err := protocol.NewStream(c.conn)
	if err != nil {
		return nil, err
	}
	out := s.ReadAll()
	if err := s.Err(); err != nil {
		s.Drain()
		return nil, err
	}
	return out, nil
}
