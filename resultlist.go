package etp3

import (
	"cmp"
	"encoding/binary"
	"math"
	"slices"

	"github.com/gvanem/etp3/protocol"
	"github.com/gvanem/etp3/utils"
)

// refWidth is the in-record footprint of a pooled value: a u64 index into
// the list's reference table. Values inside an item record are byte-packed
// and always read by byte-copy.
const refWidth = 8

// propVariantWidth is one tag byte plus the 8-byte packed union.
const propVariantWidth = 1 + 8

// maxSchemaEntries bounds echoed sort and schema counts; anything larger
// marks a corrupt stream.
const maxSchemaEntries = 1 << 20

// Descriptor is one entry of the result-list property schema: the
// requested property, its rendering flags, the wire value type and the
// byte offset of its representation inside each item record.
type Descriptor struct {
	Property PropertyID
	Flags    RequestFlags
	Type     ValueType
	Offset   uint32

	width  uint32
	pooled bool
}

// footprint computes the in-record layout of a schema entry. Formatted or
// highlighted requests are always pooled pstrings regardless of the
// declared type.
func (d *Descriptor) footprint() error {
	if d.Flags&(RequestFormat|RequestHighlight) != 0 {
		d.width, d.pooled = refWidth, true
		return nil
	}
	switch d.Type {
	case TypePstring, TypePstringMultistring, TypePstringFolderReference,
		TypePstringFileOrFolderReference, TypeBlob8, TypeBlob16:
		d.width, d.pooled = refWidth, true
	case TypeByte, TypeByteGetText:
		d.width = 1
	case TypeWord, TypeWordGetText:
		d.width = 2
	case TypeDword, TypeDwordGetText, TypeDwordFixedQ1K,
		TypeInt32FixedQ1K, TypeInt32FixedQ1M:
		d.width = 4
	case TypeUint64, TypeDimensions:
		d.width = 8
	case TypeUint128:
		d.width = 16
	case TypeSizeT:
		// stored at full width regardless of the session width
		d.width = 8
	case TypePropVariant:
		d.width = propVariantWidth
	default:
		return protocol.ErrBadResponse
	}
	return nil
}

// ResultList is the immutable snapshot returned by one search, sort or
// get-results call. It owns an arena pool for all variable-length
// payloads; accessors return borrows into the pool that stay valid as
// long as the list is referenced. A list is single-owner: it may move
// between goroutines but must not be used from two at once.
type ResultList struct {
	validFlags     SearchFlags
	folderCount    uint64
	fileCount      uint64
	totalSize      uint64
	viewportOffset uint64
	viewportCount  uint64

	sorts  []SortEntry
	schema []Descriptor
	sorted []*Descriptor

	recordSize uint32
	items      [][]byte
	refs       [][]byte
	variants   []PropVariant
	pool       arena
}

// readResultList parses a full search/sort/get-results reply. On any
// stream error the partial list is discarded; no partial results escape.
func readResultList(st *protocol.Stream) (*ResultList, error) {
	rl := &ResultList{totalSize: math.MaxUint64}

	rl.validFlags = SearchFlags(st.U32())
	st.SetWide(rl.validFlags&Search64Bit != 0)

	rl.folderCount = st.SizeT()
	rl.fileCount = st.SizeT()
	if rl.validFlags&SearchTotalSize != 0 {
		rl.totalSize = st.U64()
	}
	rl.viewportOffset = st.SizeT()
	rl.viewportCount = st.SizeT()

	sortCount := st.VLQ()
	if err := st.Err(); err != nil {
		return nil, err
	}
	if sortCount > maxSchemaEntries {
		return nil, protocol.ErrBadResponse
	}
	rl.sorts = make([]SortEntry, 0, sortCount)
	for i := uint64(0); i < sortCount && st.Err() == nil; i++ {
		// stored verbatim; Ascending derives from the flags word
		rl.sorts = append(rl.sorts, SortEntry{
			Property: PropertyID(st.U32()),
			Flags:    st.U32(),
		})
	}

	schemaCount := st.VLQ()
	if err := st.Err(); err != nil {
		return nil, err
	}
	if schemaCount > maxSchemaEntries {
		return nil, protocol.ErrBadResponse
	}
	rl.schema = make([]Descriptor, 0, schemaCount)
	// item records start with one byte of item flags
	offset := uint32(1)
	for i := uint64(0); i < schemaCount && st.Err() == nil; i++ {
		d := Descriptor{
			Property: PropertyID(st.U32()),
			Flags:    RequestFlags(st.U32()),
			Type:     ValueType(st.U8()),
			Offset:   offset,
		}
		if err := d.footprint(); err != nil {
			st.Fail(err)
			break
		}
		next := utils.SatAdd(uint64(offset), uint64(d.width))
		if next > math.MaxUint32 {
			st.Fail(protocol.ErrOutOfMemory)
			break
		}
		offset = uint32(next)
		rl.schema = append(rl.schema, d)
	}
	if err := st.Err(); err != nil {
		return nil, err
	}
	rl.recordSize = offset

	rl.sorted = make([]*Descriptor, len(rl.schema))
	for i := range rl.schema {
		rl.sorted[i] = &rl.schema[i]
	}
	slices.SortStableFunc(rl.sorted, func(a, b *Descriptor) int {
		if c := cmp.Compare(a.Property, b.Property); c != 0 {
			return c
		}
		return cmp.Compare(a.Flags, b.Flags)
	})

	if !utils.SizeValid(rl.viewportCount) ||
		!utils.SizeValid(utils.SatMul(rl.viewportCount, uint64(rl.recordSize))) {
		return nil, protocol.ErrOutOfMemory
	}
	rl.items = make([][]byte, 0, rl.viewportCount)
	for i := uint64(0); i < rl.viewportCount && st.Err() == nil; i++ {
		rec, err := rl.pool.alloc(uint64(rl.recordSize))
		if err != nil {
			st.Fail(err)
			break
		}
		rec[0] = st.U8()
		for j := range rl.schema {
			rl.readValue(st, &rl.schema[j], rec)
			if st.Err() != nil {
				break
			}
		}
		rl.items = append(rl.items, rec)
	}
	if err := st.Err(); err != nil {
		return nil, err
	}

	// tolerate (and consume) trailing bytes from newer servers
	if !st.Exhausted() {
		st.Drain()
	}
	return rl, st.Err()
}

// readValue decodes one property of one item at its precomputed offset.
func (rl *ResultList) readValue(st *protocol.Stream, d *Descriptor, rec []byte) {
	off := d.Offset
	if d.pooled {
		var n uint64
		switch {
		case d.Flags&(RequestFormat|RequestHighlight) != 0 || d.Type.IsPstring():
			n = st.VLQ()
		case d.Type == TypeBlob8:
			n = uint64(st.U8())
		default: // TypeBlob16
			n = uint64(st.U16())
		}
		rl.storeRef(st, rec, off, n)
		return
	}
	switch d.Type {
	case TypeSizeT:
		binary.LittleEndian.PutUint64(rec[off:off+8], st.SizeT())
	case TypePropVariant:
		rl.readPropVariant(st, rec, off)
	default:
		st.ReadFull(rec[off : off+d.width])
	}
}

// storeRef pools n payload bytes and stores the reference index into the
// record. The empty value is represented by a nil reference.
func (rl *ResultList) storeRef(st *protocol.Stream, rec []byte, off uint32, n uint64) {
	var data []byte
	if n > 0 {
		var err error
		data, err = rl.pool.alloc(n)
		if err != nil {
			st.Fail(err)
			return
		}
		st.ReadFull(data)
	}
	idx := uint64(len(rl.refs))
	rl.refs = append(rl.refs, data)
	binary.LittleEndian.PutUint64(rec[off:off+refWidth], idx)
}

// readPropVariant decodes a propvariant body. Inline scalars are stored
// zero-extended in the packed union; everything else goes through the
// variant table so CLSIDs, strings and arrays live in the pool.
func (rl *ResultList) readPropVariant(st *protocol.Stream, rec []byte, off uint32) {
	tag := PVTag(st.U8())
	rec[off] = byte(tag)
	area := rec[off+1 : off+propVariantWidth]

	if size, ok := pvScalarSize(tag); ok {
		st.ReadFull(area[:size])
		return
	}

	switch {
	case tag == PVEmpty || tag == PVNull:
		return

	case tag == PVClsid:
		data, err := rl.pool.alloc(16)
		if err != nil {
			st.Fail(err)
			return
		}
		st.ReadFull(data)
		rl.storeVariant(area, PropVariant{Tag: tag, Bytes: data})

	case pvStringKind(tag):
		n := st.VLQ()
		var data []byte
		if n > 0 {
			var err error
			data, err = rl.pool.alloc(n)
			if err != nil {
				st.Fail(err)
				return
			}
			st.ReadFull(data)
		}
		rl.storeVariant(area, PropVariant{Tag: tag, Bytes: data})

	case tag.IsVector() && pvStringKind(tag.Base()):
		count := st.VLQ()
		if count > maxSchemaEntries {
			st.Fail(protocol.ErrBadResponse)
			return
		}
		strs := make([][]byte, 0, count)
		for i := uint64(0); i < count && st.Err() == nil; i++ {
			n := st.VLQ()
			var data []byte
			if n > 0 {
				var err error
				data, err = rl.pool.alloc(n)
				if err != nil {
					st.Fail(err)
					return
				}
				st.ReadFull(data)
			}
			strs = append(strs, data)
		}
		rl.storeVariant(area, PropVariant{Tag: tag, Count: count, Strings: strs})

	case tag.IsVector():
		size, ok := pvScalarSize(tag.Base())
		if !ok {
			st.Fail(protocol.ErrBadResponse)
			return
		}
		count := st.VLQ()
		total := utils.SatMul(count, uint64(size))
		if !utils.SizeValid(total) {
			st.Fail(protocol.ErrOutOfMemory)
			return
		}
		var data []byte
		if total > 0 {
			var err error
			data, err = rl.pool.alloc(total)
			if err != nil {
				st.Fail(err)
				return
			}
			st.ReadFull(data)
		}
		rl.storeVariant(area, PropVariant{Tag: tag, Count: count, Data: data})

	default:
		st.Fail(protocol.ErrBadResponse)
	}
}

func (rl *ResultList) storeVariant(area []byte, v PropVariant) {
	idx := uint64(len(rl.variants))
	rl.variants = append(rl.variants, v)
	binary.LittleEndian.PutUint64(area, idx)
}

// ValidFlags is the echoed subset of the request flags plus the 64-bit
// session flag.
func (rl *ResultList) ValidFlags() SearchFlags { return rl.validFlags }

// FolderCount is the total matching folder count, which may exceed the
// viewport.
func (rl *ResultList) FolderCount() uint64 { return rl.folderCount }

// FileCount is the total matching file count.
func (rl *ResultList) FileCount() uint64 { return rl.fileCount }

// TotalSize is the total byte size of all results, or math.MaxUint64 when
// it was not requested; HasTotalSize disambiguates.
func (rl *ResultList) TotalSize() uint64 { return rl.totalSize }

// HasTotalSize reports whether the total size was requested and echoed.
func (rl *ResultList) HasTotalSize() bool {
	return rl.validFlags&SearchTotalSize != 0
}

// Viewport is the echoed result window.
func (rl *ResultList) Viewport() (offset, count uint64) {
	return rl.viewportOffset, rl.viewportCount
}

// SortCount is the number of echoed sort steps.
func (rl *ResultList) SortCount() int { return len(rl.sorts) }

// SortAt returns the i-th echoed sort step.
func (rl *ResultList) SortAt(i int) (SortEntry, error) {
	if i < 0 || i >= len(rl.sorts) {
		return SortEntry{}, protocol.ErrInvalidParameter
	}
	return rl.sorts[i], nil
}

// PropertyRequestCount is the number of schema columns. When the request
// declared none, the server synthesizes its canonical path+name column.
func (rl *ResultList) PropertyRequestCount() int { return len(rl.schema) }

// DescriptorAt returns the i-th schema column.
func (rl *ResultList) DescriptorAt(i int) (Descriptor, error) {
	if i < 0 || i >= len(rl.schema) {
		return Descriptor{}, protocol.ErrInvalidParameter
	}
	return rl.schema[i], nil
}

// ItemCount is the number of decoded item records.
func (rl *ResultList) ItemCount() int { return len(rl.items) }

// RecordSize is the byte size of one item record.
func (rl *ResultList) RecordSize() uint32 { return rl.recordSize }
