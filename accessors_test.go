package etp3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gvanem/etp3/protocol"
)

// typedList returns a one-item list with one column of each fixed width.
func typedList(t *testing.T) *ResultList {
	t.Helper()
	p := &listPayload{wide: true}
	p.u32(uint32(Search64Bit))
	p.sizeT(0)
	p.sizeT(1)
	p.sizeT(0)
	p.sizeT(1)
	p.vlq(0)
	p.vlq(6)
	p.column(PropertyID(10), 0, TypeByte)
	p.column(PropertyID(11), 0, TypeWord)
	p.column(PropertyID(12), 0, TypeDword)
	p.column(PropertyID(13), 0, TypeUint64)
	p.column(PropertyID(14), 0, TypeUint128)
	p.column(PropertyID(15), 0, TypeDimensions)

	p.u8(0)
	p.u8(0x7f)
	p.u16(0xBEEF)
	p.u32(0xDEADBEEF)
	p.u64(1 << 40)
	p.u64(0x1111).u64(0x2222) // uint128 lo, hi
	p.u32(1920).u32(1080)     // dimensions w, h

	rl, err := decodeList(t, p)
	require.NoError(t, err)
	require.Equal(t, 1, rl.ItemCount())
	return rl
}

func TestTypedAccessors(t *testing.T) {
	rl := typedList(t)

	b, err := rl.Byte(0, PropertyID(10))
	require.NoError(t, err)
	assert.Equal(t, uint8(0x7f), b)

	w, err := rl.Word(0, PropertyID(11))
	require.NoError(t, err)
	assert.Equal(t, uint16(0xBEEF), w)

	dw, err := rl.Dword(0, PropertyID(12))
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), dw)

	u, err := rl.Uint64(0, PropertyID(13))
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<40), u)

	lo, hi, err := rl.Uint128(0, PropertyID(14))
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1111), lo)
	assert.Equal(t, uint64(0x2222), hi)

	width, height, err := rl.Dimensions(0, PropertyID(15))
	require.NoError(t, err)
	assert.Equal(t, uint32(1920), width)
	assert.Equal(t, uint32(1080), height)
}

func TestAccessorTypeMismatch(t *testing.T) {
	rl := typedList(t)

	// every accessor verifies the descriptor's declared type
	_, err := rl.Dword(0, PropertyID(13))
	assert.ErrorIs(t, err, protocol.ErrInvalidPropertyValueType)
	_, err = rl.Uint64(0, PropertyID(12))
	assert.ErrorIs(t, err, protocol.ErrInvalidPropertyValueType)
	_, _, err = rl.Uint128(0, PropertyID(10))
	assert.ErrorIs(t, err, protocol.ErrInvalidPropertyValueType)
	_, err = rl.BlobBytes(0, PropertyID(11))
	assert.ErrorIs(t, err, protocol.ErrInvalidPropertyValueType)
}

func TestAccessorMissingProperty(t *testing.T) {
	rl := typedList(t)
	_, err := rl.Dword(0, PropertyID(999))
	assert.ErrorIs(t, err, protocol.ErrPropertyNotFound)
	_, err = rl.Text(0, PropertyID(999))
	assert.ErrorIs(t, err, protocol.ErrPropertyNotFound)
}

func TestAccessorItemOutOfRange(t *testing.T) {
	rl := typedList(t)
	_, err := rl.Byte(1, PropertyID(10))
	assert.ErrorIs(t, err, protocol.ErrInvalidParameter)
	_, err = rl.Byte(-1, PropertyID(10))
	assert.ErrorIs(t, err, protocol.ErrInvalidParameter)
	_, err = rl.ItemFlagsAt(5)
	assert.ErrorIs(t, err, protocol.ErrInvalidParameter)
	_, err = rl.DescriptorAt(6)
	assert.ErrorIs(t, err, protocol.ErrInvalidParameter)
	_, err = rl.SortAt(0)
	assert.ErrorIs(t, err, protocol.ErrInvalidParameter)
}

func TestTextCopyAccessors(t *testing.T) {
	p := &listPayload{wide: true}
	p.u32(uint32(Search64Bit))
	p.sizeT(0)
	p.sizeT(1)
	p.sizeT(0)
	p.sizeT(1)
	p.vlq(0)
	p.vlq(1)
	p.column(PropertyName, 0, TypePstring)
	p.u8(0).str("héllo")

	rl, err := decodeList(t, p)
	require.NoError(t, err)

	units, err := rl.TextUTF16(0, PropertyName)
	require.NoError(t, err)
	assert.Equal(t, []uint16{'h', 0xE9, 'l', 'l', 'o'}, units)

	// nil buffers size the copy, including the terminator
	n, err := rl.CopyText(0, PropertyName, nil)
	require.NoError(t, err)
	assert.Equal(t, len("héllo")+1, n)

	buf := make([]byte, n)
	n, err = rl.CopyText(0, PropertyName, buf)
	require.NoError(t, err)
	assert.Equal(t, "héllo", string(buf[:n]))
	assert.Zero(t, buf[n])

	n16, err := rl.CopyTextUTF16(0, PropertyName, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, n16)

	buf16 := make([]uint16, n16)
	n16, err = rl.CopyTextUTF16(0, PropertyName, buf16)
	require.NoError(t, err)
	assert.Equal(t, 5, n16)
	assert.Equal(t, []uint16{'h', 0xE9, 'l', 'l', 'o', 0}, buf16)

	// the local projection keeps é in its single-byte form
	nl, err := rl.CopyTextLocal(0, PropertyName, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, nl)

	local := make([]byte, nl)
	nl, err = rl.CopyTextLocal(0, PropertyName, local)
	require.NoError(t, err)
	assert.Equal(t, 5, nl)
	assert.Equal(t, []byte{'h', 0xE9, 'l', 'l', 'o', 0}, local)

	_, err = rl.CopyTextLocal(0, PropertyID(999), nil)
	assert.ErrorIs(t, err, protocol.ErrPropertyNotFound)
}
