package etp3

import (
	"encoding/binary"
	"math/bits"

	"github.com/gvanem/etp3/protocol"
)

// JournalGather flags select which fields the server includes with each
// change record. Field order on the wire is fixed; the flags only decide
// presence.
type JournalGather uint32

const (
	GatherChangeID JournalGather = 1 << iota
	GatherTimestamp
	GatherSourceTimestamp
	GatherOldParentDateModified
	GatherOldPath
	GatherOldName
	GatherSize
	GatherDateCreated
	GatherDateModified
	GatherDateAccessed
	GatherAttributes
	GatherNewParentDateModified
	GatherNewPath
	GatherNewName

	GatherAll JournalGather = 1<<14 - 1
)

// ChangeType is the journal event kind.
type ChangeType uint8

const (
	ChangeCreateFile ChangeType = iota
	ChangeModifyFile
	ChangeRenameFile
	ChangeMoveFile
	ChangeDeleteFile
	ChangeCreateFolder
	ChangeModifyFolder
	ChangeRenameFolder
	ChangeMoveFolder
	ChangeDeleteFolder
)

// IsFolder reports whether the event concerns a folder.
func (t ChangeType) IsFolder() bool { return t >= ChangeCreateFolder }

func (t ChangeType) base() ChangeType {
	if t.IsFolder() {
		return t - ChangeCreateFolder
	}
	return t
}

// IsDelete reports a delete event.
func (t ChangeType) IsDelete() bool { return t.base() == ChangeDeleteFile }

// IsRename reports a rename event.
func (t ChangeType) IsRename() bool { return t.base() == ChangeRenameFile }

// IsMove reports a move event.
func (t ChangeType) IsMove() bool { return t.base() == ChangeMoveFile }

// JournalChange is one synthesized change record. Only the fields
// selected by the gather flags (and applicable to the event type) are
// filled.
type JournalChange struct {
	Type                  ChangeType
	ChangeID              uint64
	Timestamp             uint64
	SourceTimestamp       uint64
	OldParentDateModified uint64
	OldPath               string
	OldName               string
	Size                  uint64
	DateCreated           uint64
	DateModified          uint64
	DateAccessed          uint64
	Attributes            uint32
	NewParentDateModified uint64
	NewPath               string
	NewName               string
}

// JournalFunc receives each change; returning false stops the
// subscription with ErrCancelled.
type JournalFunc func(*JournalChange) bool

// ReadJournal subscribes to the change journal from startChangeID and
// decodes records until the server closes the stream, an error occurs, or
// the callback declines. The stream is open-ended; stopping it — by
// callback or by Shutdown from another goroutine — tears the connection
// down, since a half-read subscription cannot be resumed.
func (c *Client) ReadJournal(journalID, startChangeID uint64, gather JournalGather, fn JournalFunc) error {
	if fn == nil {
		return protocol.ErrInvalidParameter
	}
	payload := make([]byte, 0, 20)
	payload = binary.LittleEndian.AppendUint64(payload, journalID)
	payload = binary.LittleEndian.AppendUint64(payload, startChangeID)
	payload = binary.LittleEndian.AppendUint32(payload, uint32(gather))

	c.conn.Lock()
	defer c.conn.Unlock()
	if err := c.conn.WriteFrame(protocol.CmdReadJournal, payload); err != nil {
		return err
	}
	st, err := protocol.NewStream(c.conn)
	if err != nil {
		return err
	}
	// the journal reply carries no valid-flags word to negotiate through;
	// its SIZE_T width follows the client's native width
	st.SetWide(bits.UintSize == 64)
	for {
		if st.Exhausted() {
			return nil
		}
		ch := readJournalChange(st, gather)
		if err := st.Err(); err != nil {
			return err
		}
		if !fn(ch) {
			_ = c.conn.Close()
			return protocol.ErrCancelled
		}
	}
}

// readJournalChange decodes one record: the type byte, the gathered
// common fields, then the event-specific fields.
func readJournalChange(st *protocol.Stream, gather JournalGather) *JournalChange {
	ch := &JournalChange{Type: ChangeType(st.U8())}

	if gather&GatherChangeID != 0 {
		ch.ChangeID = st.U64()
	}
	if gather&GatherTimestamp != 0 {
		ch.Timestamp = st.U64()
	}
	if gather&GatherSourceTimestamp != 0 {
		ch.SourceTimestamp = st.U64()
	}
	if gather&GatherOldParentDateModified != 0 {
		ch.OldParentDateModified = st.U64()
	}
	if gather&GatherOldPath != 0 {
		ch.OldPath = string(st.Pstring())
	}
	if gather&GatherOldName != 0 {
		ch.OldName = string(st.Pstring())
	}

	if !ch.Type.IsDelete() {
		if gather&GatherSize != 0 && !ch.Type.IsFolder() {
			ch.Size = st.U64()
		}
		if gather&GatherDateCreated != 0 {
			ch.DateCreated = st.U64()
		}
		if gather&GatherDateModified != 0 {
			ch.DateModified = st.U64()
		}
		if gather&GatherDateAccessed != 0 {
			ch.DateAccessed = st.U64()
		}
		if gather&GatherAttributes != 0 {
			ch.Attributes = st.U32()
		}
	}
	if ch.Type.IsRename() || ch.Type.IsMove() {
		if ch.Type.IsMove() {
			if gather&GatherNewParentDateModified != 0 {
				ch.NewParentDateModified = st.U64()
			}
			if gather&GatherNewPath != 0 {
				ch.NewPath = string(st.Pstring())
			}
		}
		if gather&GatherNewName != 0 {
			ch.NewName = string(st.Pstring())
		}
	}

	// folder events always carry the directory attribute, file events
	// never do
	if ch.Type.IsFolder() {
		ch.Attributes |= AttributeDirectory
	} else {
		ch.Attributes &^= AttributeDirectory
	}
	return ch
}
