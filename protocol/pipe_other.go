//go:build !windows

package protocol

import (
	"context"
	"net"
)

// DialPipe is Windows-only; elsewhere the pipe does not exist. Tests and
// embedders supply their own Dialer.
func DialPipe(ctx context.Context, instance string) (net.Conn, error) {
	return nil, ErrPipeNotFound
}

// DefaultDialer is the production transport.
var DefaultDialer Dialer = DialPipe
