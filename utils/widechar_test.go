package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendUTF16(t *testing.T) {
	// ASCII, BMP, and an astral code point splitting into a surrogate pair
	src := []byte("aé€\U0001F600")
	units := AppendUTF16(nil, src)
	assert.Equal(t, []uint16{'a', 0x00E9, 0x20AC, 0xD83D, 0xDE00}, units)
}

func TestAppendUTF8RoundTrip(t *testing.T) {
	src := []byte("naïve – \U0001F680 end")
	units := AppendUTF16(nil, src)
	back := AppendUTF8(nil, units)
	assert.Equal(t, src, back)
}

func TestAppendUTF8UnpairedSurrogate(t *testing.T) {
	// a lone high surrogate and a lone low surrogate both degrade to U+FFFD
	out := AppendUTF8(nil, []uint16{'x', 0xD83D, 'y', 0xDE00, 'z'})
	assert.Equal(t, "x�y�z", string(out))
}

func TestMalformedUTF8(t *testing.T) {
	// a stray continuation byte and a truncated sequence decode as U+FFFD
	units := AppendUTF16(nil, []byte{'a', 0x80, 0xE2, 'b'})
	assert.Equal(t, []uint16{'a', 0xFFFD, 0xFFFD, 'b'}, units)
}

func TestAppendLocal(t *testing.T) {
	units := AppendUTF16(nil, []byte("abÿ€\U0001F600c"))
	out := AppendLocal(nil, units)
	// the euro sign and the whole surrogate pair collapse to one '?' each
	assert.Equal(t, "ab\xff??c", string(out))
}

func TestCopyLocal(t *testing.T) {
	src := []byte("abÿ€c")
	// nil dst sizes the call: one byte per projected unit plus NUL
	assert.Equal(t, 6, CopyLocal(nil, src))

	dst := make([]byte, 6)
	n := CopyLocal(dst, src)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte{'a', 'b', 0xFF, '?', 'c', 0}, dst)

	// a short buffer truncates but stays terminated
	dst = make([]byte, 3)
	n = CopyLocal(dst, src)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{'a', 'b', 0}, dst)

	assert.Equal(t, 0, CopyLocal([]byte{}, src))
}

func TestCopyUTF16Sizing(t *testing.T) {
	src := []byte("h\U0001F600")
	// nil dst sizes the call including the terminator: h + pair + NUL
	assert.Equal(t, 4, CopyUTF16(nil, src))

	dst := make([]uint16, 4)
	n := CopyUTF16(dst, src)
	assert.Equal(t, 3, n)
	assert.Equal(t, []uint16{'h', 0xD83D, 0xDE00, 0}, dst)
}

func TestCopyUTF16NeverSplitsPair(t *testing.T) {
	src := []byte("h\U0001F600")
	// room for two units plus NUL: the pair does not fit, so only 'h' lands
	dst := make([]uint16, 3)
	n := CopyUTF16(dst, src)
	assert.Equal(t, 1, n)
	assert.Equal(t, []uint16{'h', 0, 0}, dst[:3])

	assert.Equal(t, 0, CopyUTF16([]uint16{}, src))
}

func TestCopyUTF8Sizing(t *testing.T) {
	src := []byte("abc")
	assert.Equal(t, 4, CopyUTF8(nil, src))

	dst := make([]byte, 4)
	assert.Equal(t, 3, CopyUTF8(dst, src))
	assert.Equal(t, []byte{'a', 'b', 'c', 0}, dst)
}

func TestCopyUTF8NeverSplitsSequence(t *testing.T) {
	src := []byte("a€b") // 0x61 0xE2 0x82 0xAC 0x62
	// the cut lands inside the euro sequence: back up to before it
	dst := make([]byte, 3)
	n := CopyUTF8(dst, src)
	assert.Equal(t, 1, n)
	assert.Equal(t, []byte{'a', 0, 0}, dst)

	// exactly enough room keeps the sequence intact
	dst = make([]byte, 5)
	n = CopyUTF8(dst, src[:4])
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{'a', 0xE2, 0x82, 0xAC, 0}, dst)

	assert.Equal(t, 0, CopyUTF8([]byte{}, src))
}
