package etp3

// PVTag enumerates propvariant wire tags. The vector bit marks an array
// of the base kind.
type PVTag uint8

const (
	PVEmpty PVTag = iota
	PVNull
	PVUI1
	PVUI2
	PVUI4
	PVUInt
	PVUI8
	PVFiletime
	PVI1
	PVI2
	PVBool
	PVI4
	PVInt
	PVError
	PVI8
	PVCY
	PVR4
	PVR8
	PVDate
	PVClsid
	PVBstr
	PVLpwstr
	PVLpstr
	PVBlob
)

// PVVector marks an array of the base tag.
const PVVector PVTag = 0x80

// Base strips the vector bit.
func (t PVTag) Base() PVTag { return t &^ PVVector }

// IsVector reports whether the tag carries the vector bit.
func (t PVTag) IsVector() bool { return t&PVVector != 0 }

// pvScalarSize returns the wire size of an inline scalar tag, or false
// for tags with pooled or empty bodies.
func pvScalarSize(t PVTag) (int, bool) {
	switch t {
	case PVUI1, PVI1:
		return 1, true
	case PVUI2, PVI2, PVBool:
		return 2, true
	case PVUI4, PVUInt, PVI4, PVInt, PVError, PVR4:
		return 4, true
	case PVUI8, PVFiletime, PVI8, PVCY, PVR8, PVDate:
		return 8, true
	}
	return 0, false
}

// pvSigned reports whether the scalar tag is sign-extended.
func pvSigned(t PVTag) bool {
	switch t {
	case PVI1, PVI2, PVBool, PVI4, PVInt, PVError, PVI8, PVCY:
		return true
	}
	return false
}

// pvStringKind reports whether the base tag has a length-prefixed body.
func pvStringKind(t PVTag) bool {
	switch t {
	case PVBstr, PVLpwstr, PVLpstr, PVBlob:
		return true
	}
	return false
}

// PropVariant is the decoded projection of a propvariant value. Exactly
// the fields implied by Tag are meaningful: Uint for unsigned scalars and
// FILETIME, Int for signed scalars (BOOL included), Float for R4/R8/DATE,
// Bytes for CLSID/BSTR/LPWSTR/LPSTR/BLOB bodies, Count and Data for a
// flat scalar vector, Strings for a string vector. Byte slices borrow
// from the owning result list's pool.
type PropVariant struct {
	Tag     PVTag
	Uint    uint64
	Int     int64
	Float   float64
	Bytes   []byte
	Count   uint64
	Data    []byte
	Strings [][]byte
}

// IsEmpty reports an EMPTY or NULL value.
func (v *PropVariant) IsEmpty() bool {
	return v.Tag == PVEmpty || v.Tag == PVNull
}
