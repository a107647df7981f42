package etp3

import (
	"cmp"
	"encoding/binary"
	"math"
	"slices"

	"github.com/gvanem/etp3/protocol"
	"github.com/gvanem/etp3/utils"
)

// Typed accessors keyed by (item index, property id). Every accessor
// bounds-checks the item, binary-searches the sorted schema for the
// (property, request-flags) key, verifies the descriptor's value type and
// reads the packed record by byte-copy.

func (rl *ResultList) record(i int) ([]byte, error) {
	if i < 0 || i >= len(rl.items) {
		return nil, protocol.ErrInvalidParameter
	}
	return rl.items[i], nil
}

// findDescriptor locates the schema entry for (property, flags). Lookup
// is logarithmic over the sorted index.
func (rl *ResultList) findDescriptor(property PropertyID, flags RequestFlags) *Descriptor {
	i, ok := slices.BinarySearchFunc(rl.sorted, Descriptor{Property: property, Flags: flags},
		func(d *Descriptor, key Descriptor) int {
			if c := cmp.Compare(d.Property, key.Property); c != 0 {
				return c
			}
			return cmp.Compare(d.Flags, key.Flags)
		})
	if !ok {
		return nil
	}
	return rl.sorted[i]
}

// ref resolves a pooled reference stored inside a record.
func (rl *ResultList) ref(rec []byte, d *Descriptor) ([]byte, error) {
	idx := binary.LittleEndian.Uint64(rec[d.Offset : d.Offset+refWidth])
	if idx >= uint64(len(rl.refs)) {
		return nil, protocol.ErrBadResponse
	}
	return rl.refs[idx], nil
}

// ItemFlagsAt returns the flag byte leading the i-th item record.
func (rl *ResultList) ItemFlagsAt(i int) (ItemFlags, error) {
	rec, err := rl.record(i)
	if err != nil {
		return 0, err
	}
	return ItemFlags(rec[0]), nil
}

// IsFolder reports whether the i-th item is a folder.
func (rl *ResultList) IsFolder(i int) (bool, error) {
	f, err := rl.ItemFlagsAt(i)
	return f&ItemFolder != 0, err
}

func (rl *ResultList) textFlavor(i int, property PropertyID, flags RequestFlags) ([]byte, error) {
	rec, err := rl.record(i)
	if err != nil {
		return nil, err
	}
	d := rl.findDescriptor(property, flags)
	if d == nil {
		return nil, protocol.ErrPropertyNotFound
	}
	if flags == 0 && !d.Type.IsPstring() {
		return nil, protocol.ErrInvalidPropertyValueType
	}
	return rl.ref(rec, d)
}

// Text returns the raw string value of a pstring-typed property.
func (rl *ResultList) Text(i int, property PropertyID) (string, error) {
	b, err := rl.textFlavor(i, property, 0)
	return string(b), err
}

// TextFormatted returns the formatted rendering requested with
// AddPropertyFormatted.
func (rl *ResultList) TextFormatted(i int, property PropertyID) (string, error) {
	b, err := rl.textFlavor(i, property, RequestFormat)
	return string(b), err
}

// TextHighlighted returns the match-highlighted rendering requested with
// AddPropertyHighlighted.
func (rl *ResultList) TextHighlighted(i int, property PropertyID) (string, error) {
	b, err := rl.textFlavor(i, property, RequestFormat|RequestHighlight)
	return string(b), err
}

// TextUTF16 converts the raw string value to UTF-16 units.
func (rl *ResultList) TextUTF16(i int, property PropertyID) ([]uint16, error) {
	b, err := rl.textFlavor(i, property, 0)
	if err != nil {
		return nil, err
	}
	return utils.AppendUTF16(nil, b), nil
}

// CopyText copies the raw string value into a fixed buffer with a
// terminating NUL, never splitting a UTF-8 sequence. A nil dst sizes the
// call.
func (rl *ResultList) CopyText(i int, property PropertyID, dst []byte) (int, error) {
	b, err := rl.textFlavor(i, property, 0)
	if err != nil {
		return 0, err
	}
	return utils.CopyUTF8(dst, b), nil
}

// CopyTextLocal copies the raw string value into a fixed buffer in the
// single-byte local form; code points outside the 8-bit range become '?'.
// A nil dst sizes the call.
func (rl *ResultList) CopyTextLocal(i int, property PropertyID, dst []byte) (int, error) {
	b, err := rl.textFlavor(i, property, 0)
	if err != nil {
		return 0, err
	}
	return utils.CopyLocal(dst, b), nil
}

// CopyTextUTF16 is CopyText converting to UTF-16 units, never splitting a
// surrogate pair.
func (rl *ResultList) CopyTextUTF16(i int, property PropertyID, dst []uint16) (int, error) {
	b, err := rl.textFlavor(i, property, 0)
	if err != nil {
		return 0, err
	}
	return utils.CopyUTF16(dst, b), nil
}

func (rl *ResultList) fixed(i int, property PropertyID, want ...ValueType) ([]byte, *Descriptor, error) {
	rec, err := rl.record(i)
	if err != nil {
		return nil, nil, err
	}
	d := rl.findDescriptor(property, 0)
	if d == nil {
		return nil, nil, protocol.ErrPropertyNotFound
	}
	if !slices.Contains(want, d.Type) {
		return nil, nil, protocol.ErrInvalidPropertyValueType
	}
	return rec, d, nil
}

// Byte returns a BYTE-typed value.
func (rl *ResultList) Byte(i int, property PropertyID) (uint8, error) {
	rec, d, err := rl.fixed(i, property, TypeByte, TypeByteGetText)
	if err != nil {
		return 0, err
	}
	return rec[d.Offset], nil
}

// Word returns a WORD-typed value.
func (rl *ResultList) Word(i int, property PropertyID) (uint16, error) {
	rec, d, err := rl.fixed(i, property, TypeWord, TypeWordGetText)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(rec[d.Offset:]), nil
}

// Dword returns a DWORD-typed value.
func (rl *ResultList) Dword(i int, property PropertyID) (uint32, error) {
	rec, d, err := rl.fixed(i, property, TypeDword, TypeDwordGetText)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(rec[d.Offset:]), nil
}

// DwordFixedQ1K returns an unsigned fixed-point value scaled by 1000.
func (rl *ResultList) DwordFixedQ1K(i int, property PropertyID) (uint32, error) {
	rec, d, err := rl.fixed(i, property, TypeDwordFixedQ1K)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(rec[d.Offset:]), nil
}

// Uint64 returns a UINT64-typed value.
func (rl *ResultList) Uint64(i int, property PropertyID) (uint64, error) {
	rec, d, err := rl.fixed(i, property, TypeUint64)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(rec[d.Offset:]), nil
}

// Uint128 returns a UINT128-typed value as (lo, hi) halves.
func (rl *ResultList) Uint128(i int, property PropertyID) (lo, hi uint64, err error) {
	rec, d, err := rl.fixed(i, property, TypeUint128)
	if err != nil {
		return 0, 0, err
	}
	lo = binary.LittleEndian.Uint64(rec[d.Offset:])
	hi = binary.LittleEndian.Uint64(rec[d.Offset+8:])
	return lo, hi, nil
}

// Dimensions returns a DIMENSIONS-typed value as (width, height).
func (rl *ResultList) Dimensions(i int, property PropertyID) (w, h uint32, err error) {
	rec, d, err := rl.fixed(i, property, TypeDimensions)
	if err != nil {
		return 0, 0, err
	}
	w = binary.LittleEndian.Uint32(rec[d.Offset:])
	h = binary.LittleEndian.Uint32(rec[d.Offset+4:])
	return w, h, nil
}

// SizeT returns a SIZE_T-typed value, stored at full width in the record.
func (rl *ResultList) SizeT(i int, property PropertyID) (uint64, error) {
	rec, d, err := rl.fixed(i, property, TypeSizeT)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(rec[d.Offset:]), nil
}

// Int32FixedQ1K returns a signed fixed-point value scaled by 1000.
func (rl *ResultList) Int32FixedQ1K(i int, property PropertyID) (int32, error) {
	rec, d, err := rl.fixed(i, property, TypeInt32FixedQ1K)
	if err != nil {
		return math.MinInt32, err
	}
	return int32(binary.LittleEndian.Uint32(rec[d.Offset:])), nil
}

// Int32FixedQ1M returns a signed fixed-point value scaled by 1000000.
func (rl *ResultList) Int32FixedQ1M(i int, property PropertyID) (int32, error) {
	rec, d, err := rl.fixed(i, property, TypeInt32FixedQ1M)
	if err != nil {
		return math.MinInt32, err
	}
	return int32(binary.LittleEndian.Uint32(rec[d.Offset:])), nil
}

// BlobBytes returns a blob value as a borrow into the pool.
func (rl *ResultList) BlobBytes(i int, property PropertyID) ([]byte, error) {
	rec, d, err := rl.fixed(i, property, TypeBlob8, TypeBlob16)
	if err != nil {
		return nil, err
	}
	return rl.ref(rec, d)
}

// Blob copies a blob value into buf. A nil buf sizes the call: the return
// is the required byte count. A short buf receives what fits and the call
// reports ErrInsufficientBuffer.
func (rl *ResultList) Blob(i int, property PropertyID, buf []byte) (int, error) {
	data, err := rl.BlobBytes(i, property)
	if err != nil {
		return 0, err
	}
	if buf == nil {
		return len(data), nil
	}
	n := copy(buf, data)
	if n < len(data) {
		return n, protocol.ErrInsufficientBuffer
	}
	return n, nil
}

// PropVariantValue projects a PROPVARIANT-typed value. Byte slices inside
// the returned value borrow from the pool.
func (rl *ResultList) PropVariantValue(i int, property PropertyID) (PropVariant, error) {
	rec, d, err := rl.fixed(i, property, TypePropVariant)
	if err != nil {
		return PropVariant{}, err
	}
	tag := PVTag(rec[d.Offset])
	area := rec[d.Offset+1 : d.Offset+propVariantWidth]
	u := binary.LittleEndian.Uint64(area)

	if size, ok := pvScalarSize(tag); ok {
		v := PropVariant{Tag: tag}
		mask := uint64(math.MaxUint64)
		if size < 8 {
			mask = 1<<(8*size) - 1
		}
		raw := u & mask
		switch {
		case tag == PVR4:
			v.Float = float64(math.Float32frombits(uint32(raw)))
		case tag == PVR8 || tag == PVDate:
			v.Float = math.Float64frombits(raw)
		case pvSigned(tag):
			// sign-extend from the wire width
			shift := 64 - 8*size
			v.Int = int64(raw<<shift) >> shift
		default:
			v.Uint = raw
		}
		return v, nil
	}
	if tag == PVEmpty || tag == PVNull {
		return PropVariant{Tag: tag}, nil
	}
	if u >= uint64(len(rl.variants)) {
		return PropVariant{}, protocol.ErrBadResponse
	}
	return rl.variants[u], nil
}

// Convenience accessors for the well-known properties.

func (rl *ResultList) Name(i int) (string, error) { return rl.Text(i, PropertyName) }
func (rl *ResultList) Path(i int) (string, error) { return rl.Text(i, PropertyPath) }
func (rl *ResultList) PathAndName(i int) (string, error) {
	return rl.Text(i, PropertyPathAndName)
}
func (rl *ResultList) Extension(i int) (string, error) {
	return rl.Text(i, PropertyExtension)
}
func (rl *ResultList) TypeText(i int) (string, error) { return rl.Text(i, PropertyType) }
func (rl *ResultList) Size(i int) (uint64, error)     { return rl.Uint64(i, PropertySize) }
func (rl *ResultList) DateCreated(i int) (uint64, error) {
	return rl.Uint64(i, PropertyDateCreated)
}
func (rl *ResultList) DateModified(i int) (uint64, error) {
	return rl.Uint64(i, PropertyDateModified)
}
func (rl *ResultList) DateAccessed(i int) (uint64, error) {
	return rl.Uint64(i, PropertyDateAccessed)
}
func (rl *ResultList) DateRun(i int) (uint64, error) {
	return rl.Uint64(i, PropertyDateRun)
}
func (rl *ResultList) Attributes(i int) (uint32, error) {
	return rl.Dword(i, PropertyAttributes)
}
func (rl *ResultList) RunCount(i int) (uint32, error) {
	return rl.Dword(i, PropertyRunCount)
}
func (rl *ResultList) FileListPathAndName(i int) (string, error) {
	return rl.Text(i, PropertyFileListPathAndName)
}
