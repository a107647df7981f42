package utils

// UTF-8 / UTF-16 width conversion used at the API boundaries. Surrogate
// pairs are handled explicitly: code points at or above 0x10000 split into
// a high surrogate of ((cp-0x10000)>>10)+0xD800 and a low surrogate of
// (cp&0x3FF)+0xDC00. Truncating copies back up to the start of the last
// incomplete sequence so no output ever ends in half a pair or half a
// UTF-8 sequence.

const (
	surrHigh    = 0xD800
	surrLow     = 0xDC00
	surrEnd     = 0xE000
	surrSelf    = 0x10000
	replacement = 0xFFFD
)

// decodeUTF8 reads one code point from s, returning the value and the
// byte count consumed. Malformed input yields U+FFFD over one byte.
func decodeUTF8(s []byte) (cp uint32, n int) {
	c := s[0]
	switch {
	case c < 0x80:
		return uint32(c), 1
	case c < 0xC0:
		return replacement, 1
	case c < 0xE0:
		if len(s) < 2 || s[1]&0xC0 != 0x80 {
			return replacement, 1
		}
		return uint32(c&0x1F)<<6 | uint32(s[1]&0x3F), 2
	case c < 0xF0:
		if len(s) < 3 || s[1]&0xC0 != 0x80 || s[2]&0xC0 != 0x80 {
			return replacement, 1
		}
		return uint32(c&0x0F)<<12 | uint32(s[1]&0x3F)<<6 | uint32(s[2]&0x3F), 3
	case c < 0xF8:
		if len(s) < 4 || s[1]&0xC0 != 0x80 || s[2]&0xC0 != 0x80 || s[3]&0xC0 != 0x80 {
			return replacement, 1
		}
		return uint32(c&0x07)<<18 | uint32(s[1]&0x3F)<<12 |
			uint32(s[2]&0x3F)<<6 | uint32(s[3]&0x3F), 4
	default:
		return replacement, 1
	}
}

func appendUTF8CP(dst []byte, cp uint32) []byte {
	switch {
	case cp < 0x80:
		return append(dst, byte(cp))
	case cp < 0x800:
		return append(dst, 0xC0|byte(cp>>6), 0x80|byte(cp&0x3F))
	case cp < surrSelf:
		return append(dst, 0xE0|byte(cp>>12), 0x80|byte(cp>>6&0x3F), 0x80|byte(cp&0x3F))
	default:
		return append(dst, 0xF0|byte(cp>>18), 0x80|byte(cp>>12&0x3F),
			0x80|byte(cp>>6&0x3F), 0x80|byte(cp&0x3F))
	}
}

// AppendUTF16 converts UTF-8 to UTF-16 units, appending to dst.
func AppendUTF16(dst []uint16, src []byte) []uint16 {
	for len(src) > 0 {
		cp, n := decodeUTF8(src)
		src = src[n:]
		if cp >= surrSelf {
			cp -= surrSelf
			dst = append(dst, uint16(cp>>10+surrHigh), uint16(cp&0x3FF+surrLow))
		} else {
			dst = append(dst, uint16(cp))
		}
	}
	return dst
}

// AppendUTF8 converts UTF-16 units to UTF-8, appending to dst. Unpaired
// surrogates become U+FFFD.
func AppendUTF8(dst []byte, src []uint16) []byte {
	for i := 0; i < len(src); i++ {
		u := uint32(src[i])
		switch {
		case u < surrHigh || u >= surrEnd:
			dst = appendUTF8CP(dst, u)
		case u < surrLow && i+1 < len(src) &&
			uint32(src[i+1]) >= surrLow && uint32(src[i+1]) < surrEnd:
			cp := (u-surrHigh)<<10 + (uint32(src[i+1]) - surrLow) + surrSelf
			dst = appendUTF8CP(dst, cp)
			i++
		default:
			dst = appendUTF8CP(dst, replacement)
		}
	}
	return dst
}

// AppendLocal projects UTF-16 onto a single-byte string; code points
// outside the 8-bit range become '?'.
func AppendLocal(dst []byte, src []uint16) []byte {
	for i := 0; i < len(src); i++ {
		u := src[i]
		if u > 0xFF || (u >= surrHigh && u < surrEnd) {
			dst = append(dst, '?')
			if u >= surrHigh && u < surrLow {
				// skip the low half of the pair too
				if i+1 < len(src) && src[i+1] >= surrLow && src[i+1] < surrEnd {
					i++
				}
			}
			continue
		}
		dst = append(dst, byte(u))
	}
	return dst
}

// CopyLocal copies src into the fixed byte buffer dst, projecting through
// UTF-16 onto the single-byte local form with a terminating NUL. A nil dst
// sizes the call including the terminator.
func CopyLocal(dst []byte, src []byte) int {
	full := AppendLocal(nil, AppendUTF16(nil, src))
	if dst == nil {
		return len(full) + 1
	}
	if len(dst) == 0 {
		return 0
	}
	n := len(dst) - 1
	if n > len(full) {
		n = len(full)
	}
	copy(dst, full[:n])
	dst[n] = 0
	return n
}

// CopyUTF16 copies src into the fixed buffer dst, converting to UTF-16 and
// reserving one unit for a terminating NUL. It never leaves a split
// surrogate pair. Returns the number of units written before the NUL.
// A nil dst sizes the call: the return is the unit count needed including
// the terminator.
func CopyUTF16(dst []uint16, src []byte) int {
	if dst == nil {
		return len(AppendUTF16(nil, src)) + 1
	}
	if len(dst) == 0 {
		return 0
	}
	full := AppendUTF16(nil, src)
	n := len(dst) - 1
	if n > len(full) {
		n = len(full)
	}
	// back off a high surrogate whose pair did not fit
	if n > 0 && full[n-1] >= surrHigh && full[n-1] < surrLow {
		n--
	}
	copy(dst, full[:n])
	dst[n] = 0
	return n
}

// CopyUTF8 copies src into the fixed byte buffer dst with a terminating
// NUL, backing up to the start of the last incomplete UTF-8 sequence.
// A nil dst sizes the call including the terminator.
func CopyUTF8(dst []byte, src []byte) int {
	if dst == nil {
		return len(src) + 1
	}
	if len(dst) == 0 {
		return 0
	}
	n := len(dst) - 1
	if n > len(src) {
		n = len(src)
	}
	if n < len(src) {
		// the cut landed inside a multi-byte sequence: back up to its lead
		for n > 0 && src[n]&0xC0 == 0x80 {
			n--
		}
	}
	copy(dst, src[:n])
	dst[n] = 0
	return n
}
