package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/marmos91/distfs/internal/logger"
)

const defaultDialTimeout = 10 * time.Second

// connTransport carries the stream over a net.Conn.
type connTransport struct {
	conn net.Conn

	mu     sync.Mutex
	closed bool
}

// NewConnTransport wraps an established connection.
func NewConnTransport(conn net.Conn) Transport {
	return &connTransport{conn: conn}
}

func openNetwork(ctx context.Context, cfg Config) (Transport, error) {
	if cfg.Listen {
		return acceptOne(ctx, cfg.Address())
	}

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", cfg.Address())
	if err != nil {
		return nil, &OpError{Op: "dial", Type: TypeNetwork, Addr: cfg.Address(), Err: err}
	}
	logger.DebugCtx(ctx, "Connected", logger.KeyPeer, conn.RemoteAddr().String())
	return NewConnTransport(conn), nil
}

// acceptOne binds addr, accepts a single client, and stops listening.
func acceptOne(ctx context.Context, addr string) (Transport, error) {
	l, err := Listen(ctx, addr)
	if err != nil {
		return nil, err
	}
	defer l.Close()

	logger.InfoCtx(ctx, "Waiting for client", logger.KeyAddress, l.Addr().String())
	return l.Accept(ctx)
}

func (t *connTransport) Type() Type {
	return TypeNetwork
}

// RemoteAddr returns the peer address.
func (t *connTransport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

func (t *connTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func deadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

func (t *connTransport) mapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrDeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, io.EOF):
		return io.EOF
	case errors.Is(err, net.ErrClosed) && t.isClosed():
		return ErrClosed
	default:
		return &OpError{Op: op, Type: TypeNetwork, Addr: t.conn.RemoteAddr().String(), Err: err}
	}
}

func (t *connTransport) Read(buf []byte, timeout time.Duration) (int, error) {
	if t.isClosed() {
		return 0, ErrClosed
	}
	if err := t.conn.SetReadDeadline(deadline(timeout)); err != nil {
		return 0, t.mapErr("read", err)
	}
	n, err := t.conn.Read(buf)
	return n, t.mapErr("read", err)
}

func (t *connTransport) ReadOne(timeout time.Duration) (byte, error) {
	var b [1]byte
	if _, err := ReadFull(t, b[:], timeout); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (t *connTransport) Write(buf []byte, timeout time.Duration) (int, error) {
	if t.isClosed() {
		return 0, ErrClosed
	}
	if err := t.conn.SetWriteDeadline(deadline(timeout)); err != nil {
		return 0, t.mapErr("write", err)
	}
	n, err := t.conn.Write(buf)
	return n, t.mapErr("write", err)
}

func (t *connTransport) WriteOne(b byte, timeout time.Duration) error {
	_, err := t.Write([]byte{b}, timeout)
	return err
}

func (t *connTransport) Ioctl(uint, []byte) error {
	return ErrUnsupported
}

func (t *connTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	return t.conn.Close()
}

// Listener accepts network transports.
type Listener struct {
	ln net.Listener
}

// Listen binds addr for TCP.
func Listen(ctx context.Context, addr string) (*Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, &OpError{Op: "listen", Type: TypeNetwork, Addr: addr, Err: err}
	}
	return &Listener{ln: ln}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Accept waits for the next client. Cancelling ctx closes the listener.
func (l *Listener) Accept(ctx context.Context) (Transport, error) {
	stop := context.AfterFunc(ctx, func() { _ = l.ln.Close() })
	defer stop()

	conn, err := l.ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, net.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, &OpError{Op: "accept", Type: TypeNetwork, Addr: l.ln.Addr().String(), Err: err}
	}
	logger.DebugCtx(ctx, "Accepted client", logger.KeyPeer, conn.RemoteAddr().String())
	return NewConnTransport(conn), nil
}

// Close stops listening.
func (l *Listener) Close() error {
	err := l.ln.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
