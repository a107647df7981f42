/*
Package protocol implements the wire layer of the EveryThing 1.5 IPC
protocol ("ETP3"): message framing, the primitive codec, the framed pull
stream and the named-pipe transport.

# Message envelope

Every message is a fixed 8-byte header followed by the payload:

	[code:u32 LE][size:u32 LE][payload: size bytes]

Codes below 100 are commands issued by the client. Responses are OK (200,
terminal), OK_MORE_DATA (100, another frame follows in the same logical
reply) or an error code whose payload must be drained before the pipe is
reused.

# Primitives

All scalars are little-endian with no padding. Lengths and counts use a
four-tier variable-length quantity (VLQ):

	u8 < 255                          → value          (1 byte)
	255, u16 < 65535                  → 255+u16        (3 bytes)
	255, 65535, u32 < 2^32-1          → 255+65535+u32  (7 bytes)
	255, 65535, 2^32-1, u64           → ...+u64        (15 bytes, 64-bit only)

Encoders always produce the canonical shortest form; decoders accept
non-canonical forms since the reference producers never emit them.

A pstring is a length-prefixed UTF-8 string without a trailing NUL: one
length byte, or the sentinel 255 followed by a native-width SIZE_T length.

SIZE_T is 4 or 8 bytes depending on the session width negotiated through
the 64-bit bit of the result-list valid-flags.
*/
package protocol

import "encoding/binary"

// VLQ tier boundaries.
const (
	vlqTier1 = 0xff
	vlqTier2 = 0xffff
	vlqTier3 = 0xffffffff
)

// PstringSentinel marks a pstring whose length is carried as a SIZE_T.
const PstringSentinel = 0xff

// AppendVLQ appends the canonical VLQ form of v. A value that needs the
// fourth tier on a 32-bit session cannot be represented and fails with
// ErrOutOfMemory.
func AppendVLQ(into []byte, v uint64, wide bool) ([]byte, error) {
	if v < vlqTier1 {
		return append(into, byte(v)), nil
	}
	v -= vlqTier1
	into = append(into, vlqTier1)
	if v < vlqTier2 {
		return binary.LittleEndian.AppendUint16(into, uint16(v)), nil
	}
	v -= vlqTier2
	into = binary.LittleEndian.AppendUint16(into, vlqTier2)
	if v < vlqTier3 {
		return binary.LittleEndian.AppendUint32(into, uint32(v)), nil
	}
	if !wide {
		return nil, ErrOutOfMemory
	}
	v -= vlqTier3
	into = binary.LittleEndian.AppendUint32(into, vlqTier3)
	return binary.LittleEndian.AppendUint64(into, v), nil
}

// TakeVLQ decodes a VLQ from buf, returning the value and the remaining
// bytes. Short buffers fail with ErrBadResponse.
func TakeVLQ(buf []byte, wide bool) (v uint64, rest []byte, err error) {
	if len(buf) < 1 {
		return 0, buf, ErrBadResponse
	}
	if buf[0] < vlqTier1 {
		return uint64(buf[0]), buf[1:], nil
	}
	v = vlqTier1
	buf = buf[1:]
	if len(buf) < 2 {
		return 0, buf, ErrBadResponse
	}
	w16 := binary.LittleEndian.Uint16(buf)
	buf = buf[2:]
	if w16 < vlqTier2 {
		return v + uint64(w16), buf, nil
	}
	v += vlqTier2
	if len(buf) < 4 {
		return 0, buf, ErrBadResponse
	}
	w32 := binary.LittleEndian.Uint32(buf)
	buf = buf[4:]
	if w32 < vlqTier3 {
		return v + uint64(w32), buf, nil
	}
	if !wide {
		return 0, buf, ErrOutOfMemory
	}
	v += vlqTier3
	if len(buf) < 8 {
		return 0, buf, ErrBadResponse
	}
	return v + binary.LittleEndian.Uint64(buf), buf[8:], nil
}

// AppendSizeT appends a native-width SIZE_T: u64 on a 64-bit session,
// u32 otherwise. A value over 2^32-1 on a narrow session fails with
// ErrOutOfMemory rather than truncating.
func AppendSizeT(into []byte, v uint64, wide bool) ([]byte, error) {
	if wide {
		return binary.LittleEndian.AppendUint64(into, v), nil
	}
	if v > vlqTier3 {
		return nil, ErrOutOfMemory
	}
	return binary.LittleEndian.AppendUint32(into, uint32(v)), nil
}

// TakeSizeT decodes a session-width SIZE_T.
func TakeSizeT(buf []byte, wide bool) (v uint64, rest []byte, err error) {
	if wide {
		if len(buf) < 8 {
			return 0, buf, ErrBadResponse
		}
		return binary.LittleEndian.Uint64(buf), buf[8:], nil
	}
	if len(buf) < 4 {
		return 0, buf, ErrBadResponse
	}
	return uint64(binary.LittleEndian.Uint32(buf)), buf[4:], nil
}

// AppendPstring appends a length-prefixed UTF-8 string. Strings shorter
// than the sentinel use the 1-byte header; longer ones carry a SIZE_T
// length after the sentinel byte.
func AppendPstring(into []byte, s []byte, wide bool) ([]byte, error) {
	if len(s) < PstringSentinel {
		into = append(into, byte(len(s)))
		return append(into, s...), nil
	}
	into = append(into, PstringSentinel)
	into, err := AppendSizeT(into, uint64(len(s)), wide)
	if err != nil {
		return nil, err
	}
	return append(into, s...), nil
}

// TakePstring decodes a pstring, returning a subslice of buf.
func TakePstring(buf []byte, wide bool) (s, rest []byte, err error) {
	if len(buf) < 1 {
		return nil, buf, ErrBadResponse
	}
	n := uint64(buf[0])
	buf = buf[1:]
	if n == PstringSentinel {
		n, buf, err = TakeSizeT(buf, wide)
		if err != nil {
			return nil, buf, err
		}
	}
	if uint64(len(buf)) < n {
		return nil, buf, ErrBadResponse
	}
	return buf[:n], buf[n:], nil
}

// TakeU8 decodes one byte.
func TakeU8(buf []byte) (v uint8, rest []byte, err error) {
	if len(buf) < 1 {
		return 0, buf, ErrBadResponse
	}
	return buf[0], buf[1:], nil
}

// TakeU16 decodes a little-endian u16.
func TakeU16(buf []byte) (v uint16, rest []byte, err error) {
	if len(buf) < 2 {
		return 0, buf, ErrBadResponse
	}
	return binary.LittleEndian.Uint16(buf), buf[2:], nil
}

// TakeU32 decodes a little-endian u32.
func TakeU32(buf []byte) (v uint32, rest []byte, err error) {
	if len(buf) < 4 {
		return 0, buf, ErrBadResponse
	}
	return binary.LittleEndian.Uint32(buf), buf[4:], nil
}

// TakeU64 decodes a little-endian u64.
func TakeU64(buf []byte) (v uint64, rest []byte, err error) {
	if len(buf) < 8 {
		return 0, buf, ErrBadResponse
	}
	return binary.LittleEndian.Uint64(buf), buf[8:], nil
}

// TakeBytes slices off exactly n bytes.
func TakeBytes(buf []byte, n uint64) (b, rest []byte, err error) {
	if uint64(len(buf)) < n {
		return nil, buf, ErrBadResponse
	}
	return buf[:n], buf[n:], nil
}

// VLQLen reports the encoded size of v in bytes.
func VLQLen(v uint64) int {
	if v < vlqTier1 {
		return 1
	}
	if v-vlqTier1 < vlqTier2 {
		return 3
	}
	if v-vlqTier1-vlqTier2 < vlqTier3 {
		return 7
	}
	return 15
}
