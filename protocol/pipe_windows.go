//go:build windows

package protocol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/Microsoft/go-winio"
	"golang.org/x/sys/windows"
)

// DialPipe connects to the server pipe of the given instance. A busy pipe
// is retried every PipeBusyRetry for as long as the context allows; the
// server recreates its pipe immediately on accept, so busy spells are
// short. Any other failure is ErrPipeNotFound.
func DialPipe(ctx context.Context, instance string) (net.Conn, error) {
	name := PipeName(instance)
	attempt := PipeBusyRetry
	for {
		conn, err := winio.DialPipe(name, &attempt)
		if err == nil {
			return conn, nil
		}
		if errors.Is(err, winio.ErrTimeout) || errors.Is(err, windows.ERROR_PIPE_BUSY) {
			select {
			case <-ctx.Done():
				return nil, ErrShutdown
			case <-time.After(PipeBusyRetry):
			}
			continue
		}
		return nil, fmt.Errorf("%w: %v", ErrPipeNotFound, err)
	}
}

// DefaultDialer is the production transport.
var DefaultDialer Dialer = DialPipe
