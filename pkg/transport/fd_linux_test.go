//go:build linux

package transport

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func pipePair(t *testing.T) (r, w *fdTransport) {
	t.Helper()
	var p [2]int
	require.NoError(t, unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
	r = newFDTransport(p[0], TypeUART, "pipe:r")
	w = newFDTransport(p[1], TypeUART, "pipe:w")
	t.Cleanup(func() {
		_ = r.Close()
		_ = w.Close()
	})
	return r, w
}

func TestFDReadTimeout(t *testing.T) {
	r, _ := pipePair(t)

	start := time.Now()
	n, err := r.Read(make([]byte, 8), 25*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Zero(t, n)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestFDReadWrite(t *testing.T) {
	r, w := pipePair(t)

	n, err := w.Write([]byte{0xDA, 0xFF, 0x00}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, w.WriteOne(0x42, time.Second))

	// Read returns what is available, which may be short of the buffer.
	buf := make([]byte, 16)
	n, err = r.Read(buf, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xDA, 0xFF, 0x00, 0x42}, buf[:n])
}

func TestFDReadOne(t *testing.T) {
	r, w := pipePair(t)
	require.NoError(t, w.WriteOne(7, time.Second))

	b, err := r.ReadOne(time.Second)
	require.NoError(t, err)
	assert.Equal(t, byte(7), b)
}

func TestFDEOF(t *testing.T) {
	r, w := pipePair(t)
	require.NoError(t, w.Close())

	_, err := r.Read(make([]byte, 1), time.Second)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFDWriteTimeoutWhenFull(t *testing.T) {
	_, w := pipePair(t)

	// Fill the pipe buffer so the next write cannot make progress.
	chunk := make([]byte, 64*1024)
	total := 0
	for {
		n, err := w.Write(chunk, 20*time.Millisecond)
		total += n
		if err != nil {
			assert.ErrorIs(t, err, ErrTimeout)
			break
		}
	}
	assert.Positive(t, total)
}

func TestFDClosed(t *testing.T) {
	r, _ := pipePair(t)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err := r.Read(make([]byte, 1), time.Millisecond)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, r.Ioctl(0, nil), ErrClosed)
}

func TestFDIoctlNotSupportedByPipe(t *testing.T) {
	r, _ := pipePair(t)
	err := r.Ioctl(SPIIocWrMode, []byte{0})
	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "ioctl", opErr.Op)
}

func TestUARTRejectsBadBaud(t *testing.T) {
	_, err := DefaultRegistry().Open(context.Background(), Config{Type: TypeUART, Device: "/dev/null", BaudRate: 1234})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported baud rate 1234")
}

func TestUARTRejectsNonTTY(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-tty")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	_, err := DefaultRegistry().Open(context.Background(), Config{Type: TypeUART, Device: path})
	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "configure", opErr.Op)
}

func TestSPIMissingDevice(t *testing.T) {
	_, err := DefaultRegistry().Open(context.Background(), Config{Type: TypeSPI, Device: "/dev/spidev-does-not-exist"})
	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "open", opErr.Op)
}

func TestDefaultRegistryHasSerialDrivers(t *testing.T) {
	types := DefaultRegistry().Types()
	assert.Contains(t, types, TypeUART)
	assert.Contains(t, types, TypeSPI)
}
