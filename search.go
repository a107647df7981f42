package etp3

import (
	"encoding/binary"
	"math"
	"math/bits"
	"sync"

	"github.com/gvanem/etp3/protocol"
	"github.com/gvanem/etp3/utils"
)

// ViewportAll requests every result; it is the viewport-count default.
const ViewportAll = math.MaxUint64

const (
	minSortCap     = 8
	minPropertyCap = 32
)

// Search is a mutable, thread-safe description of a pending query: the
// opaque search text, the viewport window, the flag bitfield, the ordered
// sort schedule and the ordered property requests. All public operations
// serialize on an internal mutex, so a Search may be shared between
// goroutines. Duplicate sort or property entries are permitted and kept
// in order.
type Search struct {
	mu     sync.Mutex
	text   []byte
	offset uint64
	count  uint64
	flags  SearchFlags
	sorts  []SortEntry
	props  []PropertyRequest
}

// NewSearch returns an empty query: no text, no sorts, no property
// requests, viewport (0, all). The 64-bit flag is set from the client's
// native pointer width and is not caller-controlled.
func NewSearch() *Search {
	s := &Search{
		count: ViewportAll,
		sorts: make([]SortEntry, 0, minSortCap),
		props: make([]PropertyRequest, 0, minPropertyCap),
	}
	if bits.UintSize == 64 {
		s.flags = Search64Bit
	}
	return s
}

// SetText replaces the search text. The text is opaque to the client.
func (s *Search) SetText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = []byte(text)
}

// SetTextUTF16 replaces the search text from UTF-16 units, as handed over
// by Windows-native callers. Unpaired surrogates become U+FFFD.
func (s *Search) SetTextUTF16(text []uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = utils.AppendUTF8(s.text[:0], text)
}

// Text returns the current search text.
func (s *Search) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.text)
}

// SetViewport sets the result window. Count ViewportAll requests
// everything after offset.
func (s *Search) SetViewport(offset, count uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset, s.count = offset, count
}

// Viewport returns the current result window.
func (s *Search) Viewport() (offset, count uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset, s.count
}

func (s *Search) setFlag(mask SearchFlags, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.flags |= mask
	} else {
		s.flags &^= mask
	}
}

func (s *Search) getFlag(mask SearchFlags) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags&mask != 0
}

func (s *Search) SetMatchCase(on bool)  { s.setFlag(SearchMatchCase, on) }
func (s *Search) MatchCase() bool       { return s.getFlag(SearchMatchCase) }
func (s *Search) SetMatchWholeWords(on bool) {
	s.setFlag(SearchMatchWholeWords, on)
}
func (s *Search) MatchWholeWords() bool { return s.getFlag(SearchMatchWholeWords) }
func (s *Search) SetMatchPath(on bool)  { s.setFlag(SearchMatchPath, on) }
func (s *Search) MatchPath() bool       { return s.getFlag(SearchMatchPath) }
func (s *Search) SetRegex(on bool)      { s.setFlag(SearchRegex, on) }
func (s *Search) Regex() bool           { return s.getFlag(SearchRegex) }
func (s *Search) SetMatchDiacritics(on bool) {
	s.setFlag(SearchMatchDiacritics, on)
}
func (s *Search) MatchDiacritics() bool { return s.getFlag(SearchMatchDiacritics) }
func (s *Search) SetMatchPrefix(on bool) {
	s.setFlag(SearchMatchPrefix, on)
}
func (s *Search) MatchPrefix() bool     { return s.getFlag(SearchMatchPrefix) }
func (s *Search) SetMatchSuffix(on bool) {
	s.setFlag(SearchMatchSuffix, on)
}
func (s *Search) MatchSuffix() bool { return s.getFlag(SearchMatchSuffix) }
func (s *Search) SetIgnorePunctuation(on bool) {
	s.setFlag(SearchIgnorePunctuation, on)
}
func (s *Search) IgnorePunctuation() bool {
	return s.getFlag(SearchIgnorePunctuation)
}
func (s *Search) SetIgnoreWhitespace(on bool) {
	s.setFlag(SearchIgnoreWhitespace, on)
}
func (s *Search) IgnoreWhitespace() bool {
	return s.getFlag(SearchIgnoreWhitespace)
}
func (s *Search) SetRequestTotalSize(on bool) { s.setFlag(SearchTotalSize, on) }
func (s *Search) RequestTotalSize() bool      { return s.getFlag(SearchTotalSize) }
func (s *Search) SetHideResultOmissions(on bool) {
	s.setFlag(SearchHideResultOmissions, on)
}
func (s *Search) HideResultOmissions() bool {
	return s.getFlag(SearchHideResultOmissions)
}
func (s *Search) SetSortMix(on bool) { s.setFlag(SearchSortMix, on) }
func (s *Search) SortMix() bool      { return s.getFlag(SearchSortMix) }

// SetFoldersFirst stores the two-bit folders-first policy.
func (s *Search) SetFoldersFirst(mode FoldersFirstMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags = s.flags&^foldersFirstMask |
		SearchFlags(mode)<<foldersFirstShift&foldersFirstMask
}

// FoldersFirst returns the folders-first policy.
func (s *Search) FoldersFirst() FoldersFirstMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return FoldersFirstMode(s.flags & foldersFirstMask >> foldersFirstShift)
}

// Flags returns the whole bitfield as it will go on the wire.
func (s *Search) Flags() SearchFlags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags
}

func sortFlags(ascending bool) uint32 {
	if ascending {
		return 0
	}
	return sortDescendingFlag
}

// AddSort appends a sort step. InvalidPropertyID is rejected.
func (s *Search) AddSort(property PropertyID, ascending bool) error {
	if property == InvalidPropertyID {
		return protocol.ErrInvalidParameter
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sorts = append(s.sorts, SortEntry{Property: property, Flags: sortFlags(ascending)})
	return nil
}

// ClearSorts drops the sort schedule; the server then falls back to
// name-ascending.
func (s *Search) ClearSorts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sorts = s.sorts[:0]
}

// SetSort atomically replaces the whole schedule with a single step. This
// is the common single-sort case; doing it under one mutex acquisition
// keeps concurrent readers from observing the empty intermediate state.
func (s *Search) SetSort(property PropertyID, ascending bool) error {
	if property == InvalidPropertyID {
		return protocol.ErrInvalidParameter
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sorts = append(s.sorts[:0], SortEntry{Property: property, Flags: sortFlags(ascending)})
	return nil
}

// SortCount returns the number of sort steps.
func (s *Search) SortCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sorts)
}

// SortAt returns the i-th sort step.
func (s *Search) SortAt(i int) (SortEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.sorts) {
		return SortEntry{}, protocol.ErrInvalidParameter
	}
	return s.sorts[i], nil
}

func (s *Search) addProperty(property PropertyID, flags RequestFlags) error {
	if property == InvalidPropertyID {
		return protocol.ErrInvalidParameter
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.props = append(s.props, PropertyRequest{Property: property, Flags: flags})
	return nil
}

// AddProperty requests the raw value of a property.
func (s *Search) AddProperty(property PropertyID) error {
	return s.addProperty(property, 0)
}

// AddPropertyFormatted requests the formatted rendering.
func (s *Search) AddPropertyFormatted(property PropertyID) error {
	return s.addProperty(property, RequestFormat)
}

// AddPropertyHighlighted requests the match-highlighted rendering.
func (s *Search) AddPropertyHighlighted(property PropertyID) error {
	return s.addProperty(property, RequestFormat|RequestHighlight)
}

// ClearProperties drops all property requests; the server then returns
// its canonical path+name column.
func (s *Search) ClearProperties() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.props = s.props[:0]
}

// PropertyCount returns the number of property requests.
func (s *Search) PropertyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.props)
}

// PropertyAt returns the i-th property request.
func (s *Search) PropertyAt(i int) (PropertyRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.props) {
		return PropertyRequest{}, protocol.ErrInvalidParameter
	}
	return s.props[i], nil
}

// payload builds the wire form shared by search, get-results and sort:
// flags, VLQ-prefixed text, viewport, sort schedule, property requests.
// The SIZE_T width of the request follows the client-owned 64-bit flag.
func (s *Search) payload() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wide := s.flags&Search64Bit != 0
	buf := make([]byte, 0, 64+len(s.text))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(s.flags))

	var err error
	if buf, err = protocol.AppendVLQ(buf, uint64(len(s.text)), wide); err != nil {
		return nil, err
	}
	buf = append(buf, s.text...)
	if buf, err = protocol.AppendSizeT(buf, s.offset, wide); err != nil {
		return nil, err
	}
	count := s.count
	if !wide && count == ViewportAll {
		count = 0xFFFFFFFF
	}
	if buf, err = protocol.AppendSizeT(buf, count, wide); err != nil {
		return nil, err
	}

	if buf, err = protocol.AppendVLQ(buf, uint64(len(s.sorts)), wide); err != nil {
		return nil, err
	}
	for _, e := range s.sorts {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(e.Property))
		buf = binary.LittleEndian.AppendUint32(buf, e.Flags)
	}

	if buf, err = protocol.AppendVLQ(buf, uint64(len(s.props)), wide); err != nil {
		return nil, err
	}
	for _, p := range s.props {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(p.Property))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(p.Flags))
	}
	return buf, nil
}
