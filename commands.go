package etp3

import (
	"encoding/binary"

	"github.com/gvanem/etp3/protocol"
)

// Introspection queries. All return a single DWORD.

func (c *Client) GetIPCPipeVersion() (uint32, error) {
	return c.exchangeDword(protocol.CmdGetIPCPipeVersion, nil)
}

func (c *Client) GetMajorVersion() (uint32, error) {
	return c.exchangeDword(protocol.CmdGetMajorVersion, nil)
}

func (c *Client) GetMinorVersion() (uint32, error) {
	return c.exchangeDword(protocol.CmdGetMinorVersion, nil)
}

func (c *Client) GetRevision() (uint32, error) {
	return c.exchangeDword(protocol.CmdGetRevision, nil)
}

func (c *Client) GetBuildNumber() (uint32, error) {
	return c.exchangeDword(protocol.CmdGetBuildNumber, nil)
}

// GetTargetMachine reports the server architecture, one of the Machine
// constants.
func (c *Client) GetTargetMachine() (uint32, error) {
	return c.exchangeDword(protocol.CmdGetTargetMachine, nil)
}

// IsDBLoaded reports whether the index is ready for queries.
func (c *Client) IsDBLoaded() (bool, error) {
	v, err := c.exchangeDword(protocol.CmdIsDBLoaded, nil)
	return v != 0, err
}

// IsResultChange reports whether results changed since the last query.
func (c *Client) IsResultChange() (bool, error) {
	v, err := c.exchangeDword(protocol.CmdIsResultChange, nil)
	return v != 0, err
}

// WaitForResultChange blocks until the server reports an index change
// affecting the current results. The server replies only on change, so
// this call suspends until then; Shutdown from another goroutine unblocks
// it with ErrShutdown.
func (c *Client) WaitForResultChange() error {
	c.conn.Lock()
	defer c.conn.Unlock()
	if err := c.conn.WriteFrame(protocol.CmdWaitForResultChange, nil); err != nil {
		return err
	}
	h, err := c.conn.ReadResponse()
	if err != nil {
		return err
	}
	return c.conn.Drain(uint64(h.Size))
}

// FindPropertyFromName resolves a property id from its canonical name.
// The server falls back from canonical to localized to US-English lookup.
// Results are cached for the life of the client.
func (c *Client) FindPropertyFromName(name string) (PropertyID, error) {
	if name == "" {
		return InvalidPropertyID, protocol.ErrInvalidParameter
	}
	if id, ok := c.names.Get(name); ok {
		return id, nil
	}
	v, err := c.exchangeDword(protocol.CmdFindPropertyFromName, []byte(name))
	if err != nil {
		return InvalidPropertyID, err
	}
	id := PropertyID(v)
	if id == InvalidPropertyID {
		return InvalidPropertyID, protocol.ErrPropertyNotFound
	}
	c.names.Add(name, id)
	return id, nil
}

func propertyPayload(id PropertyID) []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(id))
}

// IsPropertyIndexed reports whether the property is indexed.
func (c *Client) IsPropertyIndexed(id PropertyID) (bool, error) {
	v, err := c.exchangeDword(protocol.CmdIsPropertyIndexed, propertyPayload(id))
	return v != 0, err
}

// IsPropertyFastSort reports whether the server can sort by the property
// without a full scan.
func (c *Client) IsPropertyFastSort(id PropertyID) (bool, error) {
	v, err := c.exchangeDword(protocol.CmdIsPropertyFastSort, propertyPayload(id))
	return v != 0, err
}

// IsPropertyRightAligned reports the display alignment hint.
func (c *Client) IsPropertyRightAligned(id PropertyID) (bool, error) {
	v, err := c.exchangeDword(protocol.CmdIsPropertyRightAligned, propertyPayload(id))
	return v != 0, err
}

// IsPropertySortDescending reports the default sort direction hint.
func (c *Client) IsPropertySortDescending(id PropertyID) (bool, error) {
	v, err := c.exchangeDword(protocol.CmdIsPropertySortDescending, propertyPayload(id))
	return v != 0, err
}

// GetPropertyDefaultWidth reports the default column width hint.
func (c *Client) GetPropertyDefaultWidth(id PropertyID) (uint32, error) {
	return c.exchangeDword(protocol.CmdGetPropertyDefaultWidth, propertyPayload(id))
}

// GetPropertyName returns the localized display name.
func (c *Client) GetPropertyName(id PropertyID) (string, error) {
	b, err := c.exchangeBlob(protocol.CmdGetPropertyName, propertyPayload(id))
	return string(b), err
}

// GetPropertyCanonicalName returns the canonical name.
func (c *Client) GetPropertyCanonicalName(id PropertyID) (string, error) {
	b, err := c.exchangeBlob(protocol.CmdGetPropertyCanonicalName, propertyPayload(id))
	return string(b), err
}

// GetPropertyType returns the wire value type of a property. Cached for
// the life of the client.
func (c *Client) GetPropertyType(id PropertyID) (ValueType, error) {
	if t, ok := c.types.Get(id); ok {
		return t, nil
	}
	v, err := c.exchangeDword(protocol.CmdGetPropertyType, propertyPayload(id))
	if err != nil {
		return 0, err
	}
	if v > uint32(TypePropVariant) {
		return 0, protocol.ErrBadResponse
	}
	t := ValueType(v)
	c.types.Add(id, t)
	return t, nil
}

// Run-count mutators. The payload is the UTF-8 path; SetRunCount appends
// the new count.

func (c *Client) GetRunCount(path string) (uint32, error) {
	return c.exchangeDword(protocol.CmdGetRunCount, []byte(path))
}

func (c *Client) SetRunCount(path string, count uint32) (uint32, error) {
	payload := append([]byte(path), 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(payload[len(payload)-4:], count)
	return c.exchangeDword(protocol.CmdSetRunCount, payload)
}

func (c *Client) IncRunCount(path string) (uint32, error) {
	return c.exchangeDword(protocol.CmdIncRunCount, []byte(path))
}

// GetFolderSize returns the indexed recursive byte size of a folder.
func (c *Client) GetFolderSize(path string) (uint64, error) {
	b, err := c.exchangeFixed(protocol.CmdGetFolderSize, []byte(path), 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// GetFileAttributes returns the indexed attribute bits of a path.
func (c *Client) GetFileAttributes(path string) (uint32, error) {
	return c.exchangeDword(protocol.CmdGetFileAttributes, []byte(path))
}

// GetFileAttributesEx returns the full find-data of a path: the packed
// time/size/attribute block followed by the VLQ-prefixed name.
func (c *Client) GetFileAttributesEx(path string) (*FindData, error) {
	b, err := c.exchangeBlob(protocol.CmdGetFileAttributesEx, []byte(path))
	if err != nil {
		return nil, err
	}
	r := newChainReader([][]byte{b})
	fd, err := r.readRecord()
	if err != nil {
		return nil, protocol.ErrBadResponse
	}
	return fd, nil
}

// JournalInfo describes the server-side change journal.
type JournalInfo struct {
	JournalID     uint64
	FirstChangeID uint64
	NextChangeID  uint64
	MaxSize       uint64
	Flags         uint32
}

const journalInfoSize = 8 + 8 + 8 + 8 + 4

// GetJournalInfo returns the journal identity and change-id window.
func (c *Client) GetJournalInfo() (*JournalInfo, error) {
	b, err := c.exchangeFixed(protocol.CmdGetJournalInfo, nil, journalInfoSize)
	if err != nil {
		return nil, err
	}
	return &JournalInfo{
		JournalID:     binary.LittleEndian.Uint64(b[0:8]),
		FirstChangeID: binary.LittleEndian.Uint64(b[8:16]),
		NextChangeID:  binary.LittleEndian.Uint64(b[16:24]),
		MaxSize:       binary.LittleEndian.Uint64(b[24:32]),
		Flags:         binary.LittleEndian.Uint32(b[32:36]),
	}, nil
}

// Search executes the query and decodes the full result list.
func (c *Client) Search(s *Search) (*ResultList, error) {
	return c.query(protocol.CmdSearch, s)
}

// GetResults re-reads the viewport of the current query without
// re-matching.
func (c *Client) GetResults(s *Search) (*ResultList, error) {
	return c.query(protocol.CmdGetResults, s)
}

// Sort re-orders the current results by the schedule in s.
func (c *Client) Sort(s *Search) (*ResultList, error) {
	return c.query(protocol.CmdSort, s)
}

func (c *Client) query(code protocol.Code, s *Search) (*ResultList, error) {
	payload, err := s.payload()
	if err != nil {
		return nil, err
	}
	c.conn.Lock()
	defer c.conn.Unlock()
	if err := c.conn.WriteFrame(code, payload); err != nil {
		return nil, err
	}
	st, err := protocol.NewStream(c.conn)
	if err != nil {
		return nil, err
	}
	rl, err := readResultList(st)
	if err != nil {
		st.Drain()
		return nil, err
	}
	return rl, nil
}
