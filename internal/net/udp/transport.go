// Package udp binds the session server to a datagram socket.
package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jeknom/udp-game-example/server/internal/sim"
	"github.com/jeknom/udp-game-example/server/logging"
)

// MaxDatagramSize is the largest payload a single read can return.
const MaxDatagramSize = 64 * 1024

// ErrClosed is returned by Receive once the socket has been closed.
var ErrClosed = fmt.Errorf("udp transport closed: %w", net.ErrClosed)

// Transport wraps a net.PacketConn. Receive is meant for a single reader
// goroutine; Send may be called from any number of goroutines.
type Transport struct {
	conn  net.PacketConn
	clock logging.Clock
	buf   []byte

	closeOnce sync.Once
	closeErr  error
}

// Listen opens a UDP socket on addr, for example "0.0.0.0:11000".
func Listen(addr string) (*Transport, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", addr, err)
	}
	return New(conn, nil), nil
}

// New wraps an already bound connection. A nil clock uses the system clock.
func New(conn net.PacketConn, clock logging.Clock) *Transport {
	if clock == nil {
		clock = logging.SystemClock{}
	}
	return &Transport{conn: conn, clock: clock, buf: make([]byte, MaxDatagramSize)}
}

// LocalAddr reports the bound address, useful when listening on port 0.
func (t *Transport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// Receive blocks until a datagram arrives, ctx is done or the socket is
// closed. Cancellation expires the read deadline so the pending read
// returns at once; the context error is returned in that case. Successive
// calls may use different contexts.
func (t *Transport) Receive(ctx context.Context) (sim.Packet, error) {
	if err := ctx.Err(); err != nil {
		return sim.Packet{}, err
	}
	if err := t.conn.SetReadDeadline(time.Time{}); err != nil && errors.Is(err, net.ErrClosed) {
		return sim.Packet{}, ErrClosed
	}
	expired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(expired)
		_ = t.conn.SetReadDeadline(time.Unix(1, 0))
	})
	// A callback that already started must finish before the next call
	// clears the deadline, or it would expire that call's read.
	defer func() {
		if !stop() {
			<-expired
		}
	}()

	n, from, err := t.conn.ReadFrom(t.buf)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return sim.Packet{}, ctxErr
		}
		if errors.Is(err, net.ErrClosed) {
			return sim.Packet{}, ErrClosed
		}
		return sim.Packet{}, fmt.Errorf("read datagram: %w", err)
	}

	payload := make([]byte, n)
	copy(payload, t.buf[:n])
	return sim.Packet{Payload: payload, From: from, ReceivedAt: t.clock.Now()}, nil
}

// Send writes one datagram to addr. There is no retry.
func (t *Transport) Send(payload []byte, addr net.Addr) error {
	if addr == nil {
		return errors.New("send datagram: nil address")
	}
	if _, err := t.conn.WriteTo(payload, addr); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("send datagram to %s: %w", addr, err)
	}
	return nil
}

// Close releases the socket. Pending and later Receive calls return
// ErrClosed. Calling Close more than once is safe.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
