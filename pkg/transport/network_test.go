package transport

import (
	"context"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnTransportPipe(t *testing.T) {
	a, b := net.Pipe()
	ta, tb := NewConnTransport(a), NewConnTransport(b)
	defer ta.Close()
	defer tb.Close()

	go func() {
		_, _ = ta.Write([]byte("hello"), time.Second)
		_ = ta.WriteOne('!', time.Second)
	}()

	buf := make([]byte, 5)
	n, err := ReadFull(tb, buf, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))

	c, err := tb.ReadOne(time.Second)
	require.NoError(t, err)
	assert.Equal(t, byte('!'), c)
	assert.Equal(t, TypeNetwork, tb.Type())
	assert.ErrorIs(t, tb.Ioctl(1, nil), ErrUnsupported)
}

func TestConnTransportTimeout(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	tb := NewConnTransport(b)
	defer tb.Close()

	start := time.Now()
	_, err := tb.Read(make([]byte, 1), 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestConnTransportClosed(t *testing.T) {
	a, b := net.Pipe()
	ta := NewConnTransport(a)
	tb := NewConnTransport(b)

	require.NoError(t, ta.Close())
	require.NoError(t, ta.Close())

	_, err := ta.Write([]byte{1}, time.Second)
	assert.ErrorIs(t, err, ErrClosed)

	_, err = tb.Read(make([]byte, 1), time.Second)
	assert.ErrorIs(t, err, io.EOF)
	_ = tb.Close()
}

func TestNetworkClientDial(t *testing.T) {
	ctx := context.Background()
	l, err := Listen(ctx, "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	accepted := make(chan Transport, 1)
	go func() {
		tr, err := l.Accept(ctx)
		if err == nil {
			accepted <- tr
		}
		close(accepted)
	}()

	addr := l.Addr().(*net.TCPAddr)
	client, err := DefaultRegistry().Open(ctx, Config{Type: TypeNetwork, Host: "127.0.0.1", Port: addr.Port})
	require.NoError(t, err)
	defer client.Close()

	server := <-accepted
	require.NotNil(t, server)
	defer server.Close()

	_, err = client.Write([]byte{0xDA, 0xFF}, time.Second)
	require.NoError(t, err)

	buf := make([]byte, 2)
	_, err = ReadFull(server, buf, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xDA, 0xFF}, buf)
}

func TestNetworkDialFailure(t *testing.T) {
	l, err := Listen(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	_, err = DefaultRegistry().Open(context.Background(), Config{
		Type: TypeNetwork, Host: "127.0.0.1", Port: port, DialTimeout: time.Second,
	})
	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "dial", opErr.Op)
}

func TestNetworkListenAcceptsOne(t *testing.T) {
	probe, err := Listen(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)
	port := probe.Addr().(*net.TCPAddr).Port
	require.NoError(t, probe.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		for ctx.Err() == nil {
			conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
			if err == nil {
				_, _ = conn.Write([]byte("x"))
				<-ctx.Done()
				_ = conn.Close()
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()

	server, err := DefaultRegistry().Open(ctx, Config{Type: TypeNetwork, Host: "127.0.0.1", Port: port, Listen: true})
	require.NoError(t, err)
	defer server.Close()

	b, err := server.ReadOne(time.Second)
	require.NoError(t, err)
	assert.Equal(t, byte('x'), b)

	// The listener is gone once the single client is accepted.
	_, err = net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), 200*time.Millisecond)
	assert.Error(t, err)
}

func TestListenerAcceptCanceled(t *testing.T) {
	l, err := Listen(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = l.Accept(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
