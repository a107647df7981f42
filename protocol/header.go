package protocol

import "encoding/binary"

// Code is a 32-bit message code. Codes below 100 are commands issued by the
// client; 1xx/2xx/4xx/5xx are server responses.
type Code uint32

// Command codes, in wire order.
const (
	CmdGetIPCPipeVersion Code = iota
	CmdGetMajorVersion
	CmdGetMinorVersion
	CmdGetRevision
	CmdGetBuildNumber
	CmdGetTargetMachine
	CmdFindPropertyFromName
	CmdSearch
	CmdIsDBLoaded
	CmdIsPropertyIndexed
	CmdIsPropertyFastSort
	CmdGetPropertyName
	CmdGetPropertyCanonicalName
	CmdGetPropertyType
	CmdIsResultChange
	CmdGetRunCount
	CmdSetRunCount
	CmdIncRunCount
	CmdGetFolderSize
	CmdGetFileAttributes
	CmdGetFileAttributesEx
	CmdGetFindFirstFile
	CmdGetResults
	CmdSort
	CmdWaitForResultChange
	CmdIsPropertyRightAligned
	CmdIsPropertySortDescending
	CmdGetPropertyDefaultWidth
	CmdGetJournalInfo
	CmdReadJournal
)

// Response codes.
const (
	ResponseOKMoreData          Code = 100
	ResponseOK                  Code = 200
	ResponseErrorBadRequest     Code = 400
	ResponseErrorCancelled      Code = 401
	ResponseErrorNotFound       Code = 404
	ResponseErrorOutOfMemory    Code = 500
	ResponseErrorInvalidCommand Code = 501
)

// HeaderSize is the fixed wire size of a message envelope header.
const HeaderSize = 8

// MaxPayload caps a single frame. The server never produces frames near this
// size; anything larger marks a corrupt stream.
const MaxPayload = 1 << 30

// Header is the fixed message envelope: a code and the payload byte count.
type Header struct {
	Code Code
	Size uint32
}

// IsError reports whether the header carries a server error code.
func (h Header) IsError() bool {
	return h.Code != ResponseOK && h.Code != ResponseOKMoreData
}

// More reports whether another frame follows in the same logical reply.
func (h Header) More() bool {
	return h.Code == ResponseOKMoreData
}

// AppendHeader appends the 8-byte wire form of a header.
func AppendHeader(into []byte, code Code, size uint32) []byte {
	into = binary.LittleEndian.AppendUint32(into, uint32(code))
	return binary.LittleEndian.AppendUint32(into, size)
}

// ParseHeader decodes an 8-byte header.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrBadResponse
	}
	h := Header{
		Code: Code(binary.LittleEndian.Uint32(buf[0:4])),
		Size: binary.LittleEndian.Uint32(buf[4:8]),
	}
	if h.Size > MaxPayload {
		return Header{}, ErrServer
	}
	return h, nil
}
