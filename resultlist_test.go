package etp3

import (
	"encoding/binary"
	"math"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gvanem/etp3/protocol"
)

// listPayload builds result-list reply bodies byte by byte.
type listPayload struct {
	buf  []byte
	wide bool
}

func (p *listPayload) raw(b ...byte) *listPayload {
	p.buf = append(p.buf, b...)
	return p
}

func (p *listPayload) u8(v uint8) *listPayload { return p.raw(v) }

func (p *listPayload) u16(v uint16) *listPayload {
	p.buf = binary.LittleEndian.AppendUint16(p.buf, v)
	return p
}

func (p *listPayload) u32(v uint32) *listPayload {
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
	return p
}

func (p *listPayload) u64(v uint64) *listPayload {
	p.buf = binary.LittleEndian.AppendUint64(p.buf, v)
	return p
}

func (p *listPayload) sizeT(v uint64) *listPayload {
	if p.wide {
		return p.u64(v)
	}
	return p.u32(uint32(v))
}

func (p *listPayload) vlq(v uint64) *listPayload {
	buf, err := protocol.AppendVLQ(p.buf, v, true)
	if err != nil {
		panic(err)
	}
	p.buf = buf
	return p
}

func (p *listPayload) str(s string) *listPayload {
	p.vlq(uint64(len(s)))
	return p.raw([]byte(s)...)
}

func (p *listPayload) column(id PropertyID, flags RequestFlags, vt ValueType) *listPayload {
	return p.u32(uint32(id)).u32(uint32(flags)).u8(uint8(vt))
}

// decodeFrames serves the body split into the given frames and decodes it.
func decodeFrames(t *testing.T, frames ...[]byte) (*ResultList, error) {
	t.Helper()
	cli, srv := net.Pipe()
	t.Cleanup(func() {
		_ = cli.Close()
		_ = srv.Close()
	})
	go func() {
		for i, f := range frames {
			code := protocol.ResponseOKMoreData
			if i == len(frames)-1 {
				code = protocol.ResponseOK
			}
			hdr := protocol.AppendHeader(nil, code, uint32(len(f)))
			if _, err := srv.Write(append(hdr, f...)); err != nil {
				return
			}
		}
	}()
	st, err := protocol.NewStream(protocol.NewConn(cli))
	require.NoError(t, err)
	return readResultList(st)
}

func decodeList(t *testing.T, p *listPayload) (*ResultList, error) {
	t.Helper()
	return decodeFrames(t, p.buf)
}

// mixedList is a two-item wide-session reply with a text, a UINT64 and a
// DWORD column.
func mixedList() *listPayload {
	p := &listPayload{wide: true}
	p.u32(uint32(Search64Bit | SearchTotalSize))
	p.sizeT(1)    // folders
	p.sizeT(1)    // files
	p.u64(4096)   // total size
	p.sizeT(0)    // viewport offset
	p.sizeT(2)    // viewport count
	p.vlq(1)      // one sort step
	p.u32(uint32(PropertyName)).u32(0)
	p.vlq(3) // schema
	p.column(PropertyName, 0, TypePstring)
	p.column(PropertySize, 0, TypeUint64)
	p.column(PropertyAttributes, 0, TypeDword)

	p.u8(uint8(ItemFolder)).str("docs").u64(0).u32(0x10)
	p.u8(0).str("main.go").u64(2048).u32(0x80)
	return p
}

func TestResultListMixedSchema(t *testing.T) {
	rl, err := decodeList(t, mixedList())
	require.NoError(t, err)

	assert.Equal(t, Search64Bit|SearchTotalSize, rl.ValidFlags())
	assert.Equal(t, uint64(1), rl.FolderCount())
	assert.Equal(t, uint64(1), rl.FileCount())
	assert.True(t, rl.HasTotalSize())
	assert.Equal(t, uint64(4096), rl.TotalSize())

	offset, count := rl.Viewport()
	assert.Zero(t, offset)
	assert.Equal(t, uint64(2), count)

	require.Equal(t, 1, rl.SortCount())
	e, err := rl.SortAt(0)
	require.NoError(t, err)
	assert.Equal(t, PropertyName, e.Property)
	assert.True(t, e.Ascending())

	// record layout: flag byte, then columns in schema order
	require.Equal(t, 3, rl.PropertyRequestCount())
	d0, _ := rl.DescriptorAt(0)
	d1, _ := rl.DescriptorAt(1)
	d2, _ := rl.DescriptorAt(2)
	assert.Equal(t, uint32(1), d0.Offset)
	assert.Equal(t, uint32(1+8), d1.Offset)
	assert.Equal(t, uint32(1+8+8), d2.Offset)
	assert.Equal(t, uint32(1+8+8+4), rl.RecordSize())

	require.Equal(t, 2, rl.ItemCount())

	folder, err := rl.IsFolder(0)
	require.NoError(t, err)
	assert.True(t, folder)
	name, err := rl.Name(0)
	require.NoError(t, err)
	assert.Equal(t, "docs", name)

	name, err = rl.Name(1)
	require.NoError(t, err)
	assert.Equal(t, "main.go", name)
	size, err := rl.Size(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(2048), size)
	attrs, err := rl.Attributes(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x80), attrs)
}

func TestResultListSortFlagsVerbatim(t *testing.T) {
	p := &listPayload{wide: true}
	p.u32(uint32(Search64Bit))
	p.sizeT(0) // folders
	p.sizeT(0) // files
	p.sizeT(0) // viewport offset
	p.sizeT(0) // viewport count
	p.vlq(2)
	p.u32(uint32(PropertySize)).u32(0x5) // descending plus server-side bits
	p.u32(uint32(PropertyName)).u32(0x8)
	p.vlq(0) // no schema

	rl, err := decodeList(t, p)
	require.NoError(t, err)

	require.Equal(t, 2, rl.SortCount())
	e, err := rl.SortAt(0)
	require.NoError(t, err)
	assert.Equal(t, PropertySize, e.Property)
	assert.Equal(t, uint32(0x5), e.Flags)
	assert.False(t, e.Ascending())

	e, err = rl.SortAt(1)
	require.NoError(t, err)
	assert.Equal(t, PropertyName, e.Property)
	assert.Equal(t, uint32(0x8), e.Flags)
	assert.True(t, e.Ascending())
}

func TestResultListSplitAcrossFrames(t *testing.T) {
	body := mixedList().buf
	cut := len(body) / 2
	rl, err := decodeFrames(t, body[:cut], body[cut:])
	require.NoError(t, err)
	require.Equal(t, 2, rl.ItemCount())
	name, err := rl.Name(1)
	require.NoError(t, err)
	assert.Equal(t, "main.go", name)
}

func TestResultListNarrowSession(t *testing.T) {
	p := &listPayload{wide: false}
	p.u32(0) // no 64-bit flag: every SIZE_T is four bytes
	p.sizeT(0)
	p.sizeT(3)
	p.sizeT(0)
	p.sizeT(1)
	p.vlq(0)
	p.vlq(1)
	prop := PropertyID(70)
	p.column(prop, 0, TypeSizeT)
	p.u8(0).u32(0xCAFE) // SIZE_T value at session width

	rl, err := decodeList(t, p)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), rl.FileCount())
	require.Equal(t, 1, rl.ItemCount())

	// stored zero-extended at full width regardless of the session width
	assert.Equal(t, uint32(1+8), rl.RecordSize())
	v, err := rl.SizeT(0, prop)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xCAFE), v)
}

func TestResultListZeroViewport(t *testing.T) {
	p := &listPayload{wide: true}
	p.u32(uint32(Search64Bit))
	p.sizeT(2)
	p.sizeT(40) // matches exist, but the window is empty
	p.sizeT(0)
	p.sizeT(0)
	p.vlq(0)
	p.vlq(1)
	p.column(PropertyName, 0, TypePstring)

	rl, err := decodeList(t, p)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), rl.FileCount())
	assert.Zero(t, rl.ItemCount())
	assert.False(t, rl.HasTotalSize())
	assert.Equal(t, uint64(math.MaxUint64), rl.TotalSize())
}

func TestResultListTruncated(t *testing.T) {
	body := mixedList().buf
	rl, err := decodeFrames(t, body[:len(body)-4])
	assert.Nil(t, rl)
	assert.ErrorIs(t, err, protocol.ErrBadResponse)
}

func TestResultListTrailingBytesTolerated(t *testing.T) {
	p := mixedList()
	p.raw(0xDE, 0xAD, 0xBE, 0xEF)
	rl, err := decodeList(t, p)
	require.NoError(t, err)
	assert.Equal(t, 2, rl.ItemCount())
}

func TestResultListHugeViewportRejected(t *testing.T) {
	p := &listPayload{wide: true}
	p.u32(uint32(Search64Bit))
	p.sizeT(0)
	p.sizeT(0)
	p.sizeT(0)
	p.sizeT(math.MaxUint64) // cannot be allocated
	p.vlq(0)
	p.vlq(1)
	p.column(PropertyName, 0, TypePstring)

	rl, err := decodeList(t, p)
	assert.Nil(t, rl)
	assert.ErrorIs(t, err, protocol.ErrOutOfMemory)
}

func TestResultListUnknownValueType(t *testing.T) {
	p := &listPayload{wide: true}
	p.u32(uint32(Search64Bit))
	p.sizeT(0)
	p.sizeT(0)
	p.sizeT(0)
	p.sizeT(0)
	p.vlq(0)
	p.vlq(1)
	p.column(PropertyName, 0, ValueType(99))

	rl, err := decodeList(t, p)
	assert.Nil(t, rl)
	assert.ErrorIs(t, err, protocol.ErrBadResponse)
}

func TestResultListFormattedColumns(t *testing.T) {
	p := &listPayload{wide: true}
	p.u32(uint32(Search64Bit))
	p.sizeT(0)
	p.sizeT(1)
	p.sizeT(0)
	p.sizeT(1)
	p.vlq(0)
	p.vlq(3)
	p.column(PropertyName, 0, TypePstring)
	p.column(PropertySize, 0, TypeUint64)
	// a formatted request is pooled text even for a numeric property
	p.column(PropertySize, RequestFormat, TypeUint64)

	p.u8(0).str("kernel.bin").u64(2048).str("2 KB")

	rl, err := decodeList(t, p)
	require.NoError(t, err)

	name, err := rl.Text(0, PropertyName)
	require.NoError(t, err)
	assert.Equal(t, "kernel.bin", name)

	size, err := rl.Uint64(0, PropertySize)
	require.NoError(t, err)
	assert.Equal(t, uint64(2048), size)

	formatted, err := rl.TextFormatted(0, PropertySize)
	require.NoError(t, err)
	assert.Equal(t, "2 KB", formatted)

	// the raw flavor of a numeric column is not text
	_, err = rl.Text(0, PropertySize)
	assert.ErrorIs(t, err, protocol.ErrInvalidPropertyValueType)

	_, err = rl.TextHighlighted(0, PropertySize)
	assert.ErrorIs(t, err, protocol.ErrPropertyNotFound)
}

func TestPropVariantColumn(t *testing.T) {
	prop := PropertyID(200)
	p := &listPayload{wide: true}
	p.u32(uint32(Search64Bit))
	p.sizeT(0)
	p.sizeT(5)
	p.sizeT(0)
	p.sizeT(5)
	p.vlq(0)
	p.vlq(1)
	p.column(prop, 0, TypePropVariant)

	// I4 scalar, negative
	neg := int32(-5)
	p.u8(0).u8(uint8(PVI4)).u32(uint32(neg))
	// R4 scalar
	p.u8(0).u8(uint8(PVR4)).u32(math.Float32bits(1.5))
	// LPWSTR body
	p.u8(0).u8(uint8(PVLpwstr)).str("hi")
	// EMPTY
	p.u8(0).u8(uint8(PVEmpty))
	// UI4 vector
	p.u8(0).u8(uint8(PVUI4 | PVVector)).vlq(3).u32(7).u32(8).u32(9)

	rl, err := decodeList(t, p)
	require.NoError(t, err)
	require.Equal(t, 5, rl.ItemCount())
	assert.Equal(t, uint32(1+propVariantWidth), rl.RecordSize())

	v, err := rl.PropVariantValue(0, prop)
	require.NoError(t, err)
	assert.Equal(t, PVI4, v.Tag)
	assert.Equal(t, int64(-5), v.Int)

	v, err = rl.PropVariantValue(1, prop)
	require.NoError(t, err)
	assert.Equal(t, PVR4, v.Tag)
	assert.Equal(t, float64(1.5), v.Float)

	v, err = rl.PropVariantValue(2, prop)
	require.NoError(t, err)
	assert.Equal(t, PVLpwstr, v.Tag)
	assert.Equal(t, "hi", string(v.Bytes))

	v, err = rl.PropVariantValue(3, prop)
	require.NoError(t, err)
	assert.True(t, v.IsEmpty())

	v, err = rl.PropVariantValue(4, prop)
	require.NoError(t, err)
	assert.Equal(t, PVUI4|PVVector, v.Tag)
	assert.Equal(t, uint64(3), v.Count)
	require.Len(t, v.Data, 12)
	assert.Equal(t, uint32(8), binary.LittleEndian.Uint32(v.Data[4:]))
}

func TestBlobColumn(t *testing.T) {
	prop := PropertyID(300)
	p := &listPayload{wide: true}
	p.u32(uint32(Search64Bit))
	p.sizeT(0)
	p.sizeT(2)
	p.sizeT(0)
	p.sizeT(2)
	p.vlq(0)
	p.vlq(1)
	p.column(prop, 0, TypeBlob8)

	p.u8(0).u8(3).raw(1, 2, 3)
	p.u8(0).u8(0) // empty blob

	rl, err := decodeList(t, p)
	require.NoError(t, err)

	data, err := rl.BlobBytes(0, prop)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	// nil buffer sizes the call
	n, err := rl.Blob(0, prop, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	short := make([]byte, 2)
	n, err = rl.Blob(0, prop, short)
	assert.ErrorIs(t, err, protocol.ErrInsufficientBuffer)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{1, 2}, short)

	exact := make([]byte, 3)
	n, err = rl.Blob(0, prop, exact)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	data, err = rl.BlobBytes(1, prop)
	require.NoError(t, err)
	assert.Nil(t, data)
}
