package store

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/distfs/internal/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryEncoding(t *testing.T) {
	mod := time.Date(2024, 3, 1, 12, 0, 0, 500, time.UTC)
	e := Entry{
		Name:        "music/CantinaBand3.wav",
		StartOffset: 4096,
		Size:        6180,
		IsDir:       true,
		Index:       7,
		Modified:    mod,
	}

	buf, err := e.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, buf, EntrySize)

	be := binary.BigEndian
	assert.Equal(t, "music/CantinaBand3.wav", string(buf[:len(e.Name)]))
	assert.Zero(t, buf[len(e.Name)])
	assert.Equal(t, uint64(4096), be.Uint64(buf[256:]))
	assert.Equal(t, uint64(6180), be.Uint64(buf[264:]))
	assert.Equal(t, byte(1), buf[272])
	assert.Equal(t, uint32(7), be.Uint32(buf[276:]))
	assert.Equal(t, uint64(mod.UnixNano()), be.Uint64(buf[280:]))
	assert.Zero(t, be.Uint64(buf[288:]), "unset timestamps encode as 0")

	var got Entry
	require.NoError(t, got.UnmarshalBinary(buf))
	assert.Equal(t, e.Name, got.Name)
	assert.Equal(t, e.StartOffset, got.StartOffset)
	assert.Equal(t, e.Size, got.Size)
	assert.True(t, got.IsDir)
	assert.Equal(t, e.Index, got.Index)
	assert.True(t, mod.Equal(got.Modified))
	assert.True(t, got.Accessed.IsZero())
}

func TestEntryNameTruncation(t *testing.T) {
	long := strings.Repeat("x", 300)
	buf, err := Entry{Name: long, StartOffset: 1}.MarshalBinary()
	require.NoError(t, err)

	var got Entry
	require.NoError(t, got.UnmarshalBinary(buf))
	assert.Len(t, got.Name, MaxNameLen)
}

func TestEntryUnmarshalShort(t *testing.T) {
	var e Entry
	assert.ErrorIs(t, e.UnmarshalBinary(make([]byte, EntrySize-1)), ErrReadFailed)
}

func TestEntryExtent(t *testing.T) {
	e := Entry{StartOffset: 4096, Size: 6180}
	assert.Equal(t, uint64(4096+HeaderSize), e.PayloadOffset())
	assert.Equal(t, uint64(4096+HeaderSize+6180), e.End())
}

func TestBlobHeaderEncoding(t *testing.T) {
	ts := time.Date(2023, 11, 5, 8, 30, 0, 0, time.UTC)
	h := BlobHeader{Name: "CantinaBand3.wav", Size: 6180, Type: audio.TypeWAV, Offset: 4096, Timestamp: ts}

	buf, err := h.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, buf, HeaderSize)

	assert.Equal(t, []byte("DFSB"), buf[:MagicSize])
	rec := buf[MagicSize:]
	assert.True(t, bytes.HasPrefix(rec, []byte("CantinaBand3.wav\x00")))
	assert.Equal(t, uint64(6180), binary.BigEndian.Uint64(rec[256:]))
	assert.Equal(t, byte(audio.TypeWAV), rec[264])
	assert.Equal(t, uint64(4096), binary.BigEndian.Uint64(rec[272:]))

	var got BlobHeader
	require.NoError(t, got.UnmarshalBinary(buf))
	assert.Equal(t, h.Name, got.Name)
	assert.Equal(t, h.Size, got.Size)
	assert.Equal(t, h.Type, got.Type)
	assert.Equal(t, h.Offset, got.Offset)
	assert.True(t, ts.Equal(got.Timestamp))
}

func TestBlobHeaderBadMagic(t *testing.T) {
	buf := make([]byte, HeaderSize)
	var h BlobHeader
	assert.ErrorIs(t, h.UnmarshalBinary(buf), ErrBadMagic)
	assert.ErrorIs(t, h.UnmarshalBinary(buf[:10]), ErrReadFailed)
}

func TestStoreErrorMatching(t *testing.T) {
	err := newNotFoundError("a.wav")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrTableFull)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, CodeNotFound, CodeOf(err))
	assert.Contains(t, err.Error(), "a.wav")

	wrapped := newWriteError("b.wav", "payload", ErrBadMagic)
	assert.ErrorIs(t, wrapped, ErrWriteFailed)
	assert.ErrorIs(t, wrapped, ErrBadMagic)
	assert.Equal(t, "WriteFailed", CodeOf(wrapped).String())

	assert.Zero(t, CodeOf(ErrBadMagic))
}
