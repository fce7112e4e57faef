// Package connection manages the single TCP connection to the daemon.
package connection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"syscall"
	"time"
)

// ErrPeerClosed is returned by Receive when the daemon closed the stream.
var ErrPeerClosed = errors.New("connection closed by peer")

// ConnectError reports that the daemon could not be reached.
type ConnectError struct {
	Address string
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("unable to connect to %s: %v", e.Address, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Connection is a bidirectional byte stream to one daemon. It is owned by a
// single goroutine at a time for each direction and needs no locking.
type Connection struct {
	conn net.Conn
}

// Dial connects to host:port. timeout bounds only the connect attempt;
// reads and writes on the returned Connection have no deadline.
func Dial(ctx context.Context, host string, port int, timeout time.Duration) (*Connection, error) {
	address := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, &ConnectError{Address: address, Err: err}
	}
	return New(conn), nil
}

// New wraps an established connection.
func New(conn net.Conn) *Connection {
	return &Connection{conn: conn}
}

// Send writes all of data, looping until the transport has accepted every byte.
func (c *Connection) Send(data []byte) error {
	for len(data) > 0 {
		n, err := c.conn.Write(data)
		if err != nil {
			return fmt.Errorf("send: %w", err)
		}
		data = data[n:]
	}
	return nil
}

// Receive reads up to max bytes. It may return fewer bytes than requested.
// A clean close by the daemon is reported as ErrPeerClosed.
func (c *Connection) Receive(max int) ([]byte, error) {
	if max <= 0 {
		return nil, fmt.Errorf("receive: invalid size %d", max)
	}
	buf := make([]byte, max)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			return buf[:n], nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrPeerClosed
			}
			return nil, fmt.Errorf("receive: %w", err)
		}
	}
}

// Close closes the connection. Blocked Send and Receive calls return.
func (c *Connection) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the daemon's address.
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// IsClosed reports whether err is a normal connection termination: peer
// close, EOF, use of a closed connection or pipe, broken pipe or connection
// reset.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPeerClosed) || errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
