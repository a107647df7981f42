package protocol

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// ioChunk caps a single read or write on the pipe. Large payloads are
	// moved in 64 KiB slices so a shutdown is honored promptly.
	ioChunk = 64 << 10

	// PipeBusyRetry is the sleep between connect attempts while the server
	// pipe reports busy. The server recreates its pipe immediately on
	// accept, so the retry loop is unbounded.
	PipeBusyRetry = 10 * time.Millisecond
)

// Dialer opens the raw transport to a named server instance.
type Dialer func(ctx context.Context, instance string) (net.Conn, error)

// Stats are cumulative I/O counters for one connection.
type Stats struct {
	Commands     atomic.Uint64
	Errors       atomic.Uint64
	BytesRead    atomic.Uint64
	BytesWritten atomic.Uint64
}

// Conn is an exclusive framed connection: at most one command is in flight,
// serialized by the connection mutex held across the command and its whole
// streamed reply. Shutdown may be signaled from any goroutine; the in-flight
// operation unblocks with ErrShutdown and later operations see
// ErrDisconnected.
type Conn struct {
	mu   sync.Mutex
	conn net.Conn

	shutdown  atomic.Bool
	delivered atomic.Bool

	stats Stats
}

// NewConn wraps an established transport.
func NewConn(c net.Conn) *Conn {
	return &Conn{conn: c}
}

// Lock acquires the command mutex. It is held for a full command/response
// exchange, including every OK_MORE_DATA continuation.
func (c *Conn) Lock() { c.mu.Lock() }

// Unlock releases the command mutex.
func (c *Conn) Unlock() { c.mu.Unlock() }

// Stats exposes the connection counters.
func (c *Conn) Stats() *Stats { return &c.stats }

// Shutdown signals cancellation and returns immediately. Closing the
// underlying transport unblocks any in-flight read or write.
func (c *Conn) Shutdown() {
	c.shutdown.Store(true)
	_ = c.conn.Close()
}

// Close tears the connection down. Implies Shutdown.
func (c *Conn) Close() error {
	c.shutdown.Store(true)
	c.delivered.Store(true)
	return c.conn.Close()
}

// guard is the cancellation point at the start of every read and write.
func (c *Conn) guard() error {
	if !c.shutdown.Load() {
		return nil
	}
	return c.ioErr(nil)
}

// ioErr maps a transport failure into the taxonomy. The first failure after
// Shutdown reports ErrShutdown; everything after that, and any failure on a
// live connection (EOF, reset, closed pipe), is ErrDisconnected.
func (c *Conn) ioErr(err error) error {
	c.stats.Errors.Add(1)
	if c.shutdown.Load() {
		if c.delivered.CompareAndSwap(false, true) {
			return ErrShutdown
		}
		return ErrDisconnected
	}
	_ = err
	return ErrDisconnected
}

// WriteFrame sends one framed message: header, then the payload parts.
func (c *Conn) WriteFrame(code Code, payload ...[]byte) error {
	if err := c.guard(); err != nil {
		return err
	}
	var size uint64
	for _, p := range payload {
		size += uint64(len(p))
	}
	if size > MaxPayload {
		return ErrInvalidParameter
	}
	buf := make([]byte, 0, HeaderSize+min(size, ioChunk))
	buf = AppendHeader(buf, code, uint32(size))
	if err := c.writeAll(buf); err != nil {
		return err
	}
	for _, p := range payload {
		if err := c.writeAll(p); err != nil {
			return err
		}
	}
	c.stats.Commands.Add(1)
	return nil
}

func (c *Conn) writeAll(p []byte) error {
	for len(p) > 0 {
		if err := c.guard(); err != nil {
			return err
		}
		chunk := p
		if len(chunk) > ioChunk {
			chunk = chunk[:ioChunk]
		}
		n, err := c.conn.Write(chunk)
		c.stats.BytesWritten.Add(uint64(n))
		if err != nil {
			return c.ioErr(err)
		}
		if n == 0 {
			return c.ioErr(io.ErrNoProgress)
		}
		p = p[n:]
	}
	return nil
}

// ReadFull fills p, chunking each pipe read at 64 KiB.
func (c *Conn) ReadFull(p []byte) error {
	for len(p) > 0 {
		if err := c.guard(); err != nil {
			return err
		}
		chunk := p
		if len(chunk) > ioChunk {
			chunk = chunk[:ioChunk]
		}
		n, err := io.ReadFull(c.conn, chunk)
		c.stats.BytesRead.Add(uint64(n))
		if err != nil {
			return c.ioErr(err)
		}
		p = p[n:]
	}
	return nil
}

// ReadHeader reads and decodes one response header.
func (c *Conn) ReadHeader() (Header, error) {
	var raw [HeaderSize]byte
	if err := c.ReadFull(raw[:]); err != nil {
		return Header{}, err
	}
	return ParseHeader(raw[:])
}

// Drain discards n payload bytes, keeping the pipe usable after an error
// response or a mid-stream protocol failure.
func (c *Conn) Drain(n uint64) error {
	var scratch [4096]byte
	for n > 0 {
		step := n
		if step > uint64(len(scratch)) {
			step = uint64(len(scratch))
		}
		if err := c.ReadFull(scratch[:step]); err != nil {
			return err
		}
		n -= step
	}
	return nil
}

// ReadResponse reads the next response header. Error responses have their
// payload drained and are translated into the taxonomy; OK and
// OK_MORE_DATA are handed back with the payload unread.
func (c *Conn) ReadResponse() (Header, error) {
	h, err := c.ReadHeader()
	if err != nil {
		return Header{}, err
	}
	if h.IsError() {
		if err := c.Drain(uint64(h.Size)); err != nil {
			return Header{}, err
		}
		return Header{}, ResponseError(h.Code)
	}
	return h, nil
}
