package server

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/distfs/pkg/protocol"
	"github.com/marmos91/distfs/pkg/store"
	"github.com/marmos91/distfs/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "disk.img")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(512*1024))
	require.NoError(t, f.Close())

	s, err := store.New(store.Config{DevicePath: path, Layout: store.Layout{MaxEntries: 8}})
	require.NoError(t, err)
	return s
}

func newServer(t *testing.T, backend Backend) *Server {
	t.Helper()
	srv, err := New(backend, Config{IOTimeout: time.Second, SpoolDir: t.TempDir()})
	require.NoError(t, err)
	return srv
}

// pipeClient runs a session on one end of a pipe and returns a client on
// the other. The session is torn down with the test.
func pipeClient(t *testing.T, srv *Server) *Client {
	t.Helper()
	a, b := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.ServeTransport(ctx, transport.NewConnTransport(a), "pipe") }()

	c := NewClient(transport.NewConnTransport(b), ClientConfig{Timeout: time.Second})
	t.Cleanup(func() {
		_ = c.Close()
		cancel()
		assert.NoError(t, <-done)
	})
	return c
}

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*31 + 7)
	}
	return b
}

func TestNewRequiresBackend(t *testing.T) {
	_, err := New(nil, Config{})
	assert.Error(t, err)
}

func TestUploadListDownloadDelete(t *testing.T) {
	st := newStore(t)
	c := pipeClient(t, newServer(t, st))
	ctx := context.Background()

	data := payload(3*DefaultUploadChunk + 100)
	sent, err := c.Upload(ctx, "song.wav", bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, uint64(len(data)), sent)

	entries, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "song.wav", entries[0].Name)
	assert.Equal(t, uint64(len(data)), entries[0].Size)
	assert.Equal(t, uint64(4096), entries[0].StartOffset)

	var out bytes.Buffer
	got, err := c.Download(ctx, "song.wav", &out)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(data)), got)
	assert.Equal(t, data, out.Bytes())

	require.NoError(t, c.Delete(ctx, "song.wav"))
	entries, err = c.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	local, err := st.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, local)
}

func TestUploadChunkBoundaries(t *testing.T) {
	c := pipeClient(t, newServer(t, newStore(t)))
	ctx := context.Background()

	for _, n := range []int{0, 1, DefaultUploadChunk, 2 * DefaultUploadChunk} {
		name := fmt.Sprintf("f%d", n)
		data := payload(n)
		_, err := c.Upload(ctx, name, bytes.NewReader(data))
		require.NoError(t, err, name)

		var out bytes.Buffer
		_, err = c.Download(ctx, name, &out)
		require.NoError(t, err, name)
		assert.Equal(t, n, out.Len(), name)
		assert.True(t, bytes.Equal(data, out.Bytes()), name)
	}
}

func TestDownloadMissing(t *testing.T) {
	c := pipeClient(t, newServer(t, newStore(t)))

	var out bytes.Buffer
	_, err := c.Download(context.Background(), "missing.wav", &out)
	require.Error(t, err)
	assert.True(t, IsRemoteCode(err, protocol.CodeNotFound))
	assert.Zero(t, out.Len())

	err = c.Delete(context.Background(), "missing.wav")
	assert.True(t, IsRemoteCode(err, protocol.CodeNotFound))
}

func TestTableFullReply(t *testing.T) {
	c := pipeClient(t, newServer(t, newStore(t)))
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		_, err := c.Upload(ctx, fmt.Sprintf("f%d", i), bytes.NewReader(payload(10)))
		require.NoError(t, err)
	}
	_, err := c.Upload(ctx, "overflow", bytes.NewReader(payload(10)))
	assert.True(t, IsRemoteCode(err, protocol.CodeTableFull))

	// The session survives a failed request.
	entries, err := c.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 8)
}

func TestMalformedRequest(t *testing.T) {
	c := pipeClient(t, newServer(t, newStore(t)))

	require.NoError(t, protocol.WritePacket(c.t, protocol.Packet{Command: protocol.CmdDownload}, time.Second, nil))
	_, err := c.reply(context.Background())
	assert.True(t, IsRemoteCode(err, protocol.CodeBadRequest))
}

func TestCorruptPacketIgnored(t *testing.T) {
	c := pipeClient(t, newServer(t, newStore(t)))

	bad, err := protocol.Encode(protocol.CmdDelete, []byte("x"))
	require.NoError(t, err)
	bad[0], bad[1] = 0x00, 0x00
	_, err = c.t.Write(bad, time.Second)
	require.NoError(t, err)

	// Nothing was dispatched for the bad frame: the next reply belongs to LIST.
	entries, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSessionEndsOnPeerClose(t *testing.T) {
	srv := newServer(t, newStore(t))
	a, b := net.Pipe()

	done := make(chan error, 1)
	go func() {
		done <- srv.ServeTransport(context.Background(), transport.NewConnTransport(a), "pipe")
	}()

	require.Eventually(t, func() bool { return srv.ActiveSessions() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, b.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
	}
	assert.Zero(t, srv.ActiveSessions())
}

func TestPartialUploadDiscarded(t *testing.T) {
	spoolDir := t.TempDir()
	srv, err := New(newStore(t), Config{IOTimeout: time.Second, SpoolDir: spoolDir})
	require.NoError(t, err)

	a, b := net.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- srv.ServeTransport(context.Background(), transport.NewConnTransport(a), "pipe")
	}()
	c := NewClient(transport.NewConnTransport(b), ClientConfig{Timeout: time.Second})

	require.NoError(t, c.send(protocol.UploadRequest{Name: "half.wav", Chunk: payload(100)}))
	require.NoError(t, c.expectOK(context.Background()))

	spooled, err := os.ReadDir(spoolDir)
	require.NoError(t, err)
	assert.Len(t, spooled, 1)

	require.NoError(t, c.Close())
	require.NoError(t, <-done)

	spooled, err = os.ReadDir(spoolDir)
	require.NoError(t, err)
	assert.Empty(t, spooled)
}

func TestServeListener(t *testing.T) {
	st := newStore(t)
	srv := newServer(t, st)

	ctx, cancel := context.WithCancel(context.Background())
	l, err := transport.Listen(ctx, "127.0.0.1:0")
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx, l) }()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr, err := transport.DefaultRegistry().Open(ctx, transport.Config{
				Type: transport.TypeNetwork,
				Host: "127.0.0.1",
				Port: l.Addr().(*net.TCPAddr).Port,
			})
			if !assert.NoError(t, err) {
				return
			}
			c := NewClient(tr, ClientConfig{Timeout: 2 * time.Second})
			defer c.Close()

			_, err = c.Upload(ctx, fmt.Sprintf("client-%d.bin", i), bytes.NewReader(payload(5000+i)))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	entries, err := st.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 4)

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestCodeFor(t *testing.T) {
	assert.Equal(t, protocol.CodeNotFound, codeFor(store.ErrNotFound))
	assert.Equal(t, protocol.CodeTableFull, codeFor(fmt.Errorf("wrapped: %w", store.ErrTableFull)))
	assert.Equal(t, protocol.CodeNoSpace, codeFor(store.ErrNoSpace))
	assert.Equal(t, protocol.CodeInvalidName, codeFor(store.ErrInvalidName))
	assert.Equal(t, protocol.CodeBadRequest, codeFor(protocol.ErrMalformed))
	assert.Equal(t, protocol.CodeInternal, codeFor(assert.AnError))
}
