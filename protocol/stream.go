package protocol

import "encoding/binary"

// Stream is the pull reader over one logical reply. It transparently
// crosses OK_MORE_DATA frame boundaries and carries a sticky error: after
// the first failure every read is a no-op and Err reports the cause.
// Callers parse without per-read error checks and consult Err at the end.
type Stream struct {
	conn      *Conn
	remaining uint64
	more      bool
	wide      bool
	err       error
}

// NewStream reads the first response header of a reply and positions the
// stream at its payload. Server error responses are drained and translated.
func NewStream(c *Conn) (*Stream, error) {
	h, err := c.ReadResponse()
	if err != nil {
		return nil, err
	}
	return &Stream{conn: c, remaining: uint64(h.Size), more: h.More()}, nil
}

// SetWide fixes the SIZE_T width for the rest of the reply. It is decided
// by the 64-bit bit of the valid-flags word, the first field of a
// result-list response.
func (s *Stream) SetWide(wide bool) { s.wide = wide }

// Wide reports the negotiated session width.
func (s *Stream) Wide() bool { return s.wide }

// Err returns the sticky error, if any.
func (s *Stream) Err() error { return s.err }

// Fail poisons the stream. The first call wins.
func (s *Stream) Fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

// next advances to the following frame of the same reply.
func (s *Stream) next() bool {
	if !s.more {
		s.Fail(ErrBadResponse)
		return false
	}
	h, err := s.conn.ReadResponse()
	if err != nil {
		s.Fail(err)
		return false
	}
	s.remaining = uint64(h.Size)
	s.more = h.More()
	return true
}

// ReadFull fills p from the reply, pulling continuation frames as needed.
func (s *Stream) ReadFull(p []byte) {
	for s.err == nil && len(p) > 0 {
		if s.remaining == 0 {
			if !s.next() {
				return
			}
			continue
		}
		step := uint64(len(p))
		if step > s.remaining {
			step = s.remaining
		}
		if err := s.conn.ReadFull(p[:step]); err != nil {
			s.Fail(err)
			return
		}
		s.remaining -= step
		p = p[step:]
	}
}

// Exhausted reports whether the whole reply has been consumed.
func (s *Stream) Exhausted() bool {
	return s.remaining == 0 && !s.more
}

// Drain discards the unread remainder of the reply so the connection can
// be reused after a mid-stream failure. Transport errors are left sticky.
func (s *Stream) Drain() {
	parseErr := s.err
	s.err = nil
	var scratch [4096]byte
	for !s.Exhausted() && s.err == nil {
		step := s.remaining
		if step == 0 {
			if !s.next() {
				break
			}
			continue
		}
		if step > uint64(len(scratch)) {
			step = uint64(len(scratch))
		}
		if err := s.conn.ReadFull(scratch[:step]); err != nil {
			s.Fail(err)
			break
		}
		s.remaining -= step
	}
	if parseErr != nil {
		s.err = parseErr
	}
}

// ReadAll collects the unread remainder of the reply into one buffer.
// Used for responses whose size is dictated solely by the headers.
func (s *Stream) ReadAll() []byte {
	var out []byte
	for s.err == nil {
		if s.remaining == 0 {
			if !s.more {
				break
			}
			if !s.next() {
				break
			}
			continue
		}
		out = append(out, s.Bytes(s.remaining)...)
	}
	return out
}

func (s *Stream) U8() uint8 {
	var b [1]byte
	s.ReadFull(b[:])
	return b[0]
}

func (s *Stream) U16() uint16 {
	var b [2]byte
	s.ReadFull(b[:])
	return binary.LittleEndian.Uint16(b[:])
}

func (s *Stream) U32() uint32 {
	var b [4]byte
	s.ReadFull(b[:])
	return binary.LittleEndian.Uint32(b[:])
}

func (s *Stream) U64() uint64 {
	var b [8]byte
	s.ReadFull(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

// SizeT reads a session-width native integer.
func (s *Stream) SizeT() uint64 {
	if s.wide {
		return s.U64()
	}
	return uint64(s.U32())
}

// VLQ reads a four-tier variable-length quantity. The fourth tier is only
// legal on a 64-bit session.
func (s *Stream) VLQ() uint64 {
	v := uint64(s.U8())
	if v < vlqTier1 {
		return v
	}
	w16 := s.U16()
	if w16 < vlqTier2 {
		return v + uint64(w16)
	}
	v += vlqTier2
	w32 := s.U32()
	if w32 < vlqTier3 {
		return v + uint64(w32)
	}
	if !s.wide {
		s.Fail(ErrOutOfMemory)
		return 0
	}
	v += vlqTier3
	return v + s.U64()
}

// Pstring reads a length-prefixed string into a fresh buffer. A zero
// length yields nil, the canonical empty string.
func (s *Stream) Pstring() []byte {
	n := uint64(s.U8())
	if n == PstringSentinel {
		n = s.SizeT()
	}
	return s.Bytes(n)
}

// Bytes reads exactly n bytes into a fresh buffer; nil for n == 0.
func (s *Stream) Bytes(n uint64) []byte {
	if s.err != nil || n == 0 {
		return nil
	}
	if n > MaxPayload {
		s.Fail(ErrBadResponse)
		return nil
	}
	b := make([]byte, n)
	s.ReadFull(b)
	if s.err != nil {
		return nil
	}
	return b
}

// Skip discards n bytes.
func (s *Stream) Skip(n uint64) {
	var scratch [512]byte
	for s.err == nil && n > 0 {
		step := n
		if step > uint64(len(scratch)) {
			step = uint64(len(scratch))
		}
		s.ReadFull(scratch[:step])
		n -= step
	}
}
