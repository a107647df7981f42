// Package etp3 is a client for the EveryThing 1.5 IPC protocol: typed
// request/response framing over a named pipe through which a process issues
// searches, reads heterogeneously-typed per-item properties, enumerates
// directory snapshots and subscribes to the live index journal.
package etp3

// PropertyID identifies a named attribute of an indexed filesystem item.
// Ids are resolved at runtime from canonical names and are stable for a
// server session.
type PropertyID uint32

// InvalidPropertyID is never stored in a search state and never sent.
const InvalidPropertyID PropertyID = 0xFFFFFFFF

// Well-known property ids used by the convenience accessors.
const (
	PropertyName PropertyID = iota
	PropertyPath
	PropertyPathAndName
	PropertySize
	PropertyExtension
	PropertyType
	PropertyDateModified
	PropertyDateCreated
	PropertyDateAccessed
	PropertyAttributes
	PropertyDateRun
	PropertyRunCount
	PropertyFileListPathAndName
)

// RequestFlags select the rendering of a requested property.
type RequestFlags uint32

const (
	// RequestFormat asks for the human-readable rendering.
	RequestFormat RequestFlags = 1 << 0
	// RequestHighlight asks for match-highlighted text. Only meaningful
	// together with RequestFormat.
	RequestHighlight RequestFlags = 1 << 1
)

// ValueType is the wire kind of a property value.
type ValueType uint8

const (
	TypePstring ValueType = iota
	TypePstringMultistring
	TypePstringFolderReference
	TypePstringFileOrFolderReference
	TypeByte
	TypeByteGetText
	TypeWord
	TypeWordGetText
	TypeDword
	TypeDwordGetText
	TypeDwordFixedQ1K
	TypeUint64
	TypeUint128
	TypeDimensions
	TypeSizeT
	TypeInt32FixedQ1K
	TypeInt32FixedQ1M
	TypeBlob8
	TypeBlob16
	TypePropVariant
)

// IsPstring reports whether the type is stored as a pooled pstring.
func (t ValueType) IsPstring() bool {
	switch t {
	case TypePstring, TypePstringMultistring, TypePstringFolderReference,
		TypePstringFileOrFolderReference:
		return true
	}
	return false
}

// SearchFlags is the search-state bitfield echoed back by the server in
// the result-list valid-flags word.
type SearchFlags uint32

const (
	SearchMatchCase           SearchFlags = 1 << 0
	SearchMatchWholeWords     SearchFlags = 1 << 1
	SearchMatchPath           SearchFlags = 1 << 2
	SearchRegex               SearchFlags = 1 << 3
	SearchMatchDiacritics     SearchFlags = 1 << 4
	SearchMatchPrefix         SearchFlags = 1 << 5
	SearchMatchSuffix         SearchFlags = 1 << 6
	SearchIgnorePunctuation   SearchFlags = 1 << 7
	SearchIgnoreWhitespace    SearchFlags = 1 << 8
	SearchTotalSize           SearchFlags = 1 << 9
	SearchHideResultOmissions SearchFlags = 1 << 10
	SearchSortMix             SearchFlags = 1 << 11

	// Search64Bit is owned by the client and reflects its native pointer
	// width; the server echoes it to fix the session SIZE_T width.
	Search64Bit SearchFlags = 1 << 30
)

const (
	foldersFirstShift             = 12
	foldersFirstMask  SearchFlags = 3 << foldersFirstShift
)

// FoldersFirstMode is the two-bit folders-first sort policy.
type FoldersFirstMode uint32

const (
	FoldersFirstAscending FoldersFirstMode = iota
	FoldersFirstAlways
	FoldersFirstNever
	FoldersFirstDescending
)

// ItemFlags is the per-item flag byte leading every item record.
type ItemFlags uint8

const (
	ItemFolder ItemFlags = 1 << 0
	ItemDrive  ItemFlags = 1 << 1
	ItemRoot   ItemFlags = 1 << 2
)

// Target machine values reported by get-target-machine.
const (
	MachineX86 uint32 = iota + 1
	MachineX64
	MachineArm
	MachineArm64
)

// SortEntry is one step of the sort schedule. Flags is the raw wire word;
// the server may echo bits beyond the descending flag and they are kept
// verbatim.
type SortEntry struct {
	Property PropertyID
	Flags    uint32
}

// Ascending reports the sort direction encoded in the flags.
func (e SortEntry) Ascending() bool {
	return e.Flags&sortDescendingFlag == 0
}

// PropertyRequest is one requested result column.
type PropertyRequest struct {
	Property PropertyID
	Flags    RequestFlags
}

const sortDescendingFlag uint32 = 1 << 0
