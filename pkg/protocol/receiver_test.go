package protocol

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/marmos91/distfs/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamTransport replays a byte stream, at most step bytes per Read.
type streamTransport struct {
	in   *bytes.Reader
	step int
	out  bytes.Buffer
}

func newStream(b []byte, step int) *streamTransport {
	return &streamTransport{in: bytes.NewReader(b), step: step}
}

func (s *streamTransport) Read(buf []byte, _ time.Duration) (int, error) {
	if s.in.Len() == 0 {
		return 0, io.EOF
	}
	if s.step > 0 && len(buf) > s.step {
		buf = buf[:s.step]
	}
	return s.in.Read(buf)
}

func (s *streamTransport) ReadOne(timeout time.Duration) (byte, error) {
	var b [1]byte
	_, err := s.Read(b[:], timeout)
	return b[0], err
}

func (s *streamTransport) Write(buf []byte, _ time.Duration) (int, error) {
	return s.out.Write(buf)
}

func (s *streamTransport) WriteOne(b byte, _ time.Duration) error {
	return s.out.WriteByte(b)
}

func (s *streamTransport) Ioctl(uint, []byte) error { return transport.ErrUnsupported }
func (s *streamTransport) Type() transport.Type     { return transport.TypeNetwork }
func (s *streamTransport) Close() error             { return nil }

func mustEncode(t *testing.T, cmd Command, payload []byte) []byte {
	t.Helper()
	b, err := Encode(cmd, payload)
	require.NoError(t, err)
	return b
}

func TestReceiverSequence(t *testing.T) {
	var stream []byte
	stream = append(stream, mustEncode(t, CmdList, nil)...)
	stream = append(stream, mustEncode(t, CmdDownload, []byte("a.wav"))...)
	stream = append(stream, mustEncode(t, CmdData, bytes.Repeat([]byte{0xDA}, 5000))...)

	for _, step := range []int{0, 1, 3, 7} {
		r := NewReceiver(newStream(stream, step), ReceiverConfig{Timeout: time.Second})

		p, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, CmdList, p.Command)
		assert.Empty(t, p.Payload)

		p, err = r.Next()
		require.NoError(t, err)
		assert.Equal(t, CmdDownload, p.Command)
		assert.Equal(t, "a.wav", string(p.Payload))

		p, err = r.Next()
		require.NoError(t, err)
		assert.Len(t, p.Payload, 5000)

		_, err = r.Next()
		assert.ErrorIs(t, err, io.EOF)
		r.Release()
	}
}

func TestReceiverBadMarkerDiscarded(t *testing.T) {
	bad := mustEncode(t, CmdDelete, []byte("x"))
	bad[0], bad[1] = 0x00, 0x00

	stream := append(bad, mustEncode(t, CmdList, nil)...)

	var discarded []error
	r := NewReceiver(newStream(stream, 0), ReceiverConfig{OnDiscard: func(err error) {
		discarded = append(discarded, err)
	}})
	defer r.Release()

	p, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, CmdList, p.Command)

	require.NotEmpty(t, discarded)
	for _, err := range discarded {
		assert.ErrorIs(t, err, ErrBadMarker)
	}
}

func TestReceiverChecksumDiscarded(t *testing.T) {
	bad := mustEncode(t, CmdDownload, []byte("x.wav"))
	bad[len(bad)-1] ^= 0xFF

	stream := append(bad, mustEncode(t, CmdDelete, []byte("y"))...)

	var discarded []error
	r := NewReceiver(newStream(stream, 2), ReceiverConfig{OnDiscard: func(err error) {
		discarded = append(discarded, err)
	}})
	defer r.Release()

	p, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, CmdDelete, p.Command)
	assert.Equal(t, "y", string(p.Payload))

	require.Len(t, discarded, 1)
	assert.ErrorIs(t, discarded[0], ErrChecksumMismatch)
}

func TestReceiverResyncsOnMarker(t *testing.T) {
	// Garbage with a stray 0xDA before a real packet.
	stream := []byte{0x01, 0x02, 0xDA, 0x03}
	stream = append(stream, mustEncode(t, CmdOK, nil)...)

	r := NewReceiver(newStream(stream, 0), ReceiverConfig{})
	defer r.Release()

	p, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, CmdOK, p.Command)
}

func TestReceiverPayloadIsCopied(t *testing.T) {
	stream := append(mustEncode(t, CmdData, []byte("one")), mustEncode(t, CmdData, []byte("two"))...)
	r := NewReceiver(newStream(stream, 0), ReceiverConfig{})
	defer r.Release()

	first, err := r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "one", string(first.Payload))
}

func TestWritePacket(t *testing.T) {
	s := newStream(nil, 0)
	require.NoError(t, WritePacket(s, DataPacket([]byte("hi")), time.Second, nil))
	assert.Equal(t, mustEncode(t, CmdData, []byte("hi")), s.out.Bytes())

	err := WritePacket(s, DataPacket(make([]byte, MaxPayload+1)), time.Second, nil)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestReceiverCorruptSizeKeepsFollowingFrames(t *testing.T) {
	bad := mustEncode(t, CmdDownload, []byte("x"))
	bad[4] = 16 // size_lo: the frame now claims the next 16 bytes

	stream := bad
	for _, name := range []string{"a", "b", "c"} {
		stream = append(stream, mustEncode(t, CmdDelete, []byte(name))...)
	}

	for _, step := range []int{0, 1, 5} {
		var discarded []error
		r := NewReceiver(newStream(stream, step), ReceiverConfig{OnDiscard: func(err error) {
			discarded = append(discarded, err)
		}})

		var names []string
		for {
			p, err := r.Next()
			if err != nil {
				assert.ErrorIs(t, err, io.EOF)
				break
			}
			assert.Equal(t, CmdDelete, p.Command)
			names = append(names, string(p.Payload))
		}
		r.Release()

		assert.Equal(t, []string{"a", "b", "c"}, names, "step %d", step)
		require.Len(t, discarded, 1, "step %d", step)
		assert.ErrorIs(t, discarded[0], ErrChecksumMismatch)
	}
}

func TestReceiverUnknownCommandDropsWholeFrame(t *testing.T) {
	// Well formed but with an unassigned command byte; its payload holds a
	// marker that must not be mistaken for a frame start.
	raw := []byte{MarkerHi, MarkerLo, 0x7E, 0x00, 0x02, MarkerHi, MarkerLo}
	raw = append(raw, Checksum(raw))

	stream := append(raw, mustEncode(t, CmdList, nil)...)

	var discarded []error
	r := NewReceiver(newStream(stream, 0), ReceiverConfig{OnDiscard: func(err error) {
		discarded = append(discarded, err)
	}})
	defer r.Release()

	p, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, CmdList, p.Command)

	require.Len(t, discarded, 1)
	assert.ErrorIs(t, discarded[0], ErrUnknownCommand)
}
