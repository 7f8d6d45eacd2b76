// Package transport wraps a UDP net.PacketConn with the non-blocking
// send/receive semantics the sender and receiver event loops need: every
// call waits at most ioPollWindow, classifying an unready socket as
// ErrWouldBlock rather than blocking the single loop goroutine.
//
// It has no knowledge of the wire format (that's protocol) or of frames
// (that's sender/receiver) — it moves bytes and nothing else.
package transport

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrWouldBlock indicates the operation could not complete without
// blocking: no datagram was waiting to be read, or the socket's send
// buffer was full.
var ErrWouldBlock = errors.New("transport: operation would block")

// ioPollWindow is the deadline placed on each read and write. A deadline
// that has already passed makes Go fail the call without attempting the
// syscall at all, so the window is short but in the future.
const ioPollWindow = 100 * time.Microsecond

// Endpoint is a non-blocking UDP socket. The zero value is not usable;
// construct with Bind.
type Endpoint struct {
	conn   net.PacketConn
	remote net.Addr
}

// Bind opens a UDP socket on localAddr (host:port, or ":port" to listen on
// all interfaces).
func Bind(localAddr string) (*Endpoint, error) {
	conn, err := net.ListenPacket("udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: bind %s: %w", localAddr, err)
	}
	return &Endpoint{conn: conn}, nil
}

// LocalAddr returns the address the endpoint is bound to.
func (e *Endpoint) LocalAddr() net.Addr {
	return e.conn.LocalAddr()
}

// Connect fixes the peer address that Send and Recv operate against, the Go
// equivalent of the C sockets API's connect(2) on a datagram socket: it
// doesn't establish a stream, it just narrows who the endpoint will talk to.
func (e *Endpoint) Connect(remote net.Addr) {
	e.remote = remote
}

// Connected reports whether Connect has been called.
func (e *Endpoint) Connected() bool {
	return e.remote != nil
}

// RemoteAddr returns the connected peer address, or nil if not connected.
func (e *Endpoint) RemoteAddr() net.Addr {
	return e.remote
}

// Send writes data to the connected peer, waiting at most ioPollWindow: if
// the socket's send buffer stays full it returns ErrWouldBlock.
func (e *Endpoint) Send(data []byte) error {
	if e.remote == nil {
		return fmt.Errorf("transport: Send called before Connect")
	}
	return e.SendTo(data, e.remote)
}

// SendTo writes data to an arbitrary address, used during the handshake
// before Connect has been called.
func (e *Endpoint) SendTo(data []byte, addr net.Addr) error {
	if err := e.conn.SetWriteDeadline(time.Now().Add(ioPollWindow)); err != nil {
		return fmt.Errorf("transport: set write deadline: %w", err)
	}

	_, err := e.conn.WriteTo(data, addr)
	if err == nil {
		return nil
	}
	if isTimeout(err) {
		return ErrWouldBlock
	}
	return fmt.Errorf("transport: send: %w", err)
}

// Recv reads one datagram into buf, waiting at most ioPollWindow for one to
// arrive before returning ErrWouldBlock. If connected, it
// silently discards datagrams from any address other than the peer and
// keeps trying until one from the peer arrives or the socket has nothing
// left to read — this system speaks to exactly one peer at a time (spec's
// multi-receiver fan-out is explicitly out of scope).
func (e *Endpoint) Recv(buf []byte) (int, net.Addr, error) {
	for {
		if err := e.conn.SetReadDeadline(time.Now().Add(ioPollWindow)); err != nil {
			return 0, nil, fmt.Errorf("transport: set read deadline: %w", err)
		}

		n, addr, err := e.conn.ReadFrom(buf)
		if err != nil {
			if isTimeout(err) {
				return 0, nil, ErrWouldBlock
			}
			return 0, nil, fmt.Errorf("transport: recv: %w", err)
		}

		if e.remote != nil && addr.String() != e.remote.String() {
			logrus.WithFields(logrus.Fields{
				"function": "Endpoint.Recv",
				"from":     addr.String(),
				"expected": e.remote.String(),
			}).Debug("dropping datagram from unexpected peer")
			continue
		}

		return n, addr, nil
	}
}

// Close releases the underlying socket.
func (e *Endpoint) Close() error {
	return e.conn.Close()
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
