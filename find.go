package etp3

import (
	"encoding/binary"
	"io"
	"math/bits"

	"github.com/gvanem/etp3/protocol"
)

// Windows file attribute bits the client touches.
const (
	AttributeDirectory uint32 = 0x10
	AttributeNormal    uint32 = 0x80
)

// FindData is one directory-snapshot entry: the packed time/size/attribute
// block followed by the entry name.
type FindData struct {
	Created    uint64
	Accessed   uint64
	Modified   uint64
	Size       uint64
	Attributes uint32
	Name       string
}

// IsDir reports the directory attribute.
func (fd *FindData) IsDir() bool {
	return fd.Attributes&AttributeDirectory != 0
}

// findDataBlockSize is the packed fixed-size prefix of an entry.
const findDataBlockSize = 8 + 8 + 8 + 8 + 4

// chainReader is a cursor over a chain of byte chunks. Records may span
// chunk boundaries; spanning reads join into a scratch buffer.
type chainReader struct {
	chunks [][]byte
	i      int
	off    int
	joined []byte
}

func newChainReader(chunks [][]byte) *chainReader {
	return &chainReader{chunks: chunks}
}

func (r *chainReader) empty() bool {
	for i, off := r.i, r.off; i < len(r.chunks); i++ {
		if off < len(r.chunks[i]) {
			return false
		}
		off = 0
	}
	return true
}

// take returns the next n bytes, joining across chunk boundaries when
// needed. The returned slice is only valid until the next call.
func (r *chainReader) take(n int) ([]byte, error) {
	for r.i < len(r.chunks) && r.off >= len(r.chunks[r.i]) {
		r.i, r.off = r.i+1, 0
	}
	if r.i >= len(r.chunks) {
		return nil, io.EOF
	}
	cur := r.chunks[r.i]
	if r.off+n <= len(cur) {
		b := cur[r.off : r.off+n]
		r.off += n
		return b, nil
	}
	// spanning read
	if cap(r.joined) < n {
		r.joined = make([]byte, n)
	}
	out := r.joined[:n]
	got := 0
	for got < n {
		if r.i >= len(r.chunks) {
			return nil, protocol.ErrBadResponse
		}
		cur = r.chunks[r.i]
		c := copy(out[got:], cur[r.off:])
		got += c
		r.off += c
		if r.off >= len(cur) {
			r.i, r.off = r.i+1, 0
		}
	}
	return out, nil
}

func (r *chainReader) u8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// vlq decodes a length with the client-width fourth tier.
func (r *chainReader) vlq() (uint64, error) {
	b, err := r.u8()
	if err != nil {
		return 0, err
	}
	if b < 0xff {
		return uint64(b), nil
	}
	v := uint64(0xff)
	p, err := r.take(2)
	if err != nil {
		return 0, err
	}
	w16 := binary.LittleEndian.Uint16(p)
	if w16 < 0xffff {
		return v + uint64(w16), nil
	}
	v += 0xffff
	if p, err = r.take(4); err != nil {
		return 0, err
	}
	w32 := binary.LittleEndian.Uint32(p)
	if w32 < 0xffffffff {
		return v + uint64(w32), nil
	}
	if bits.UintSize < 64 {
		return 0, protocol.ErrOutOfMemory
	}
	v += 0xffffffff
	if p, err = r.take(8); err != nil {
		return 0, err
	}
	return v + binary.LittleEndian.Uint64(p), nil
}

// readRecord decodes one packed entry: the fixed block, then the
// VLQ-length UTF-8 name. The packed block is byte-copied, never cast.
func (r *chainReader) readRecord() (*FindData, error) {
	block, err := r.take(findDataBlockSize)
	if err != nil {
		return nil, err
	}
	fd := &FindData{
		Created:    binary.LittleEndian.Uint64(block[0:8]),
		Accessed:   binary.LittleEndian.Uint64(block[8:16]),
		Modified:   binary.LittleEndian.Uint64(block[16:24]),
		Size:       binary.LittleEndian.Uint64(block[24:32]),
		Attributes: binary.LittleEndian.Uint32(block[32:36]),
	}
	n, err := r.vlq()
	if err != nil {
		return nil, protocol.ErrBadResponse
	}
	name, err := r.take(int(n))
	if err != nil {
		return nil, protocol.ErrBadResponse
	}
	fd.Name = string(name)
	// attribute fixup: an entry with no bits at all is a plain file
	if fd.Attributes == 0 {
		fd.Attributes = AttributeNormal
	}
	return fd, nil
}

// FindHandle is a lazy cursor over a prefetched chain of directory-entry
// chunks. Single-owner: it may move between goroutines but must not be
// shared.
type FindHandle struct {
	r *chainReader
}

// FindFirstFile collects the whole snapshot for a wildcard pattern and
// returns the cursor plus its first entry. An empty snapshot reports
// ErrNotFound.
func (c *Client) FindFirstFile(pattern string) (*FindHandle, *FindData, error) {
	if pattern == "" {
		return nil, nil, protocol.ErrInvalidParameter
	}
	c.conn.Lock()
	defer c.conn.Unlock()
	if err := c.conn.WriteFrame(protocol.CmdGetFindFirstFile, []byte(pattern)); err != nil {
		return nil, nil, err
	}
	var chunks [][]byte
	for {
		h, err := c.conn.ReadResponse()
		if err != nil {
			return nil, nil, err
		}
		if h.Size > 0 {
			chunk := make([]byte, h.Size)
			if err := c.conn.ReadFull(chunk); err != nil {
				return nil, nil, err
			}
			chunks = append(chunks, chunk)
		}
		if !h.More() {
			break
		}
	}
	fh := &FindHandle{r: newChainReader(chunks)}
	if fh.r.empty() {
		return nil, nil, protocol.ErrNotFound
	}
	first, err := fh.Next()
	if err != nil {
		return nil, nil, err
	}
	return fh, first, nil
}

// Next returns the following snapshot entry. End of enumeration is io.EOF,
// not a failure.
func (h *FindHandle) Next() (*FindData, error) {
	if h.r.empty() {
		return nil, io.EOF
	}
	return h.r.readRecord()
}
