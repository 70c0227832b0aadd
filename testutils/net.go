package testutils

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

var waitDur = 5 * time.Second

// WaitSuccessfulDial waits for a TCP dial of address to succeed.
func WaitSuccessfulDial(address string) error {
	ctx, cancel := context.WithTimeout(context.Background(), waitDur)
	defer cancel()
	lastErr := errors.New("timed out dialing")
	var dialer net.Dialer
	for {
		select {
		case <-ctx.Done():
			return lastErr
		default:
		}
		var conn net.Conn
		conn, lastErr = dialer.DialContext(ctx, "tcp", address)
		if lastErr == nil {
			return conn.Close()
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// FreeLocalAddress returns a loopback address with a port nothing is listening on.
func FreeLocalAddress(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	test.That(t, err, test.ShouldBeNil)
	addr := listener.Addr().String()
	test.That(t, listener.Close(), test.ShouldBeNil)
	return addr
}
