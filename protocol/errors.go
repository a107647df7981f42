package protocol

import "errors"

// Error taxonomy for the ETP3 client. Transport errors describe the pipe
// itself, protocol errors describe server replies, semantic errors describe
// bad lookups, and resource errors describe allocation limits.
var (
	ErrPipeNotFound = errors.New("etp3: IPC pipe not found")
	ErrDisconnected = errors.New("etp3: disconnected")
	ErrShutdown     = errors.New("etp3: client shut down")
	ErrServer       = errors.New("etp3: unexpected server state")

	ErrBadRequest     = errors.New("etp3: bad request")
	ErrCancelled      = errors.New("etp3: cancelled")
	ErrNotFound       = errors.New("etp3: not found")
	ErrInvalidCommand = errors.New("etp3: invalid command")
	ErrBadResponse    = errors.New("etp3: bad response")

	ErrPropertyNotFound         = errors.New("etp3: property not found")
	ErrInvalidPropertyValueType = errors.New("etp3: invalid property value type")
	ErrInsufficientBuffer       = errors.New("etp3: insufficient buffer")
	ErrInvalidParameter         = errors.New("etp3: invalid parameter")

	ErrOutOfMemory = errors.New("etp3: out of memory")
)

// ResponseError translates a server error code into the taxonomy.
// OK and OK_MORE_DATA are not errors; anything unrecognized is a
// framing-level failure.
func ResponseError(code Code) error {
	switch code {
	case ResponseOK, ResponseOKMoreData:
		return nil
	case ResponseErrorBadRequest:
		return ErrBadRequest
	case ResponseErrorCancelled:
		return ErrCancelled
	case ResponseErrorNotFound:
		return ErrNotFound
	case ResponseErrorOutOfMemory:
		return ErrOutOfMemory
	case ResponseErrorInvalidCommand:
		return ErrInvalidCommand
	default:
		return ErrBadResponse
	}
}
