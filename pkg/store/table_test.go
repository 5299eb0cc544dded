package store

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memDevice is an in-memory io.ReaderAt/io.WriterAt.
type memDevice struct {
	buf []byte
}

func (m *memDevice) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.buf)) {
		return 0, errors.New("eof")
	}
	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, errors.New("short")
	}
	return n, nil
}

func (m *memDevice) WriteAt(p []byte, off int64) (int, error) {
	if end := off + int64(len(p)); end > int64(len(m.buf)) {
		m.buf = append(m.buf, make([]byte, end-int64(len(m.buf)))...)
	}
	return copy(m.buf[off:], p), nil
}

func testLayout() Layout {
	return Layout{MaxEntries: 8}
}

func TestLayout(t *testing.T) {
	l := testLayout()
	assert.Equal(t, int64(4096), l.TableSize())
	assert.Equal(t, int64(1024), l.SlotOffset(2))
	assert.NoError(t, l.Validate())
	assert.Error(t, Layout{}.Validate())
	assert.Equal(t, int64(DefaultMaxEntries*EntrySize), DefaultLayout().TableSize())
}

func TestReadTableEmptyDevice(t *testing.T) {
	entries := ReadTable(&memDevice{}, testLayout())
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestReadTableSkipsEmptySlots(t *testing.T) {
	l := testLayout()
	dev := &memDevice{buf: make([]byte, l.TableSize())}

	require.NoError(t, WriteEntry(dev, l, Entry{Name: "a", StartOffset: 4096, Size: 10}, 0))
	require.NoError(t, WriteEntry(dev, l, Entry{Name: "hole", StartOffset: 0, Size: 99}, 1))
	require.NoError(t, WriteEntry(dev, l, Entry{Name: "c", StartOffset: 8192, Size: 10}, 2))

	entries := ReadTable(dev, l)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Name)
	assert.Equal(t, uint32(0), entries[0].Index)
	assert.Equal(t, "c", entries[1].Name)
	assert.Equal(t, uint32(2), entries[1].Index)
}

func TestReadTableShortRead(t *testing.T) {
	l := testLayout()
	dev := &memDevice{}
	require.NoError(t, WriteEntry(dev, l, Entry{Name: "a", StartOffset: 4096}, 0))
	require.NoError(t, WriteEntry(dev, l, Entry{Name: "b", StartOffset: 5000}, 1))

	// Cut the device in the middle of row 1.
	dev.buf = dev.buf[:EntrySize+100]

	entries := ReadTable(dev, l)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].Name)
}

func TestWriteEntryBounds(t *testing.T) {
	l := testLayout()
	dev := &memDevice{}
	assert.Error(t, WriteEntry(dev, l, Entry{Name: "x", StartOffset: 1}, -1))
	assert.Error(t, WriteEntry(dev, l, Entry{Name: "x", StartOffset: 1}, l.MaxEntries))
	assert.Error(t, ClearSlot(dev, l, l.MaxEntries))
}

func TestClearSlot(t *testing.T) {
	l := testLayout()
	dev := &memDevice{}
	require.NoError(t, WriteEntry(dev, l, Entry{Name: "a", StartOffset: 4096}, 0))
	require.NoError(t, ClearSlot(dev, l, 0))

	assert.Equal(t, make([]byte, EntrySize), dev.buf[:EntrySize])
	assert.Empty(t, ReadTable(dev, l))
}

func TestLookupFirstMatch(t *testing.T) {
	entries := []Entry{
		{Name: "a", StartOffset: 4096, Index: 0},
		{Name: "dup", StartOffset: 5000, Index: 1},
		{Name: "dup", StartOffset: 6000, Index: 2},
	}

	e, i, ok := Lookup(entries, "dup")
	require.True(t, ok)
	assert.Equal(t, 1, i)
	assert.Equal(t, uint64(5000), e.StartOffset)

	_, i, ok = Lookup(entries, "missing")
	assert.False(t, ok)
	assert.Equal(t, -1, i)
}

func TestFindNextOffset(t *testing.T) {
	l := testLayout()

	assert.Equal(t, uint64(4096), FindNextOffset(nil, l))

	entries := []Entry{
		{StartOffset: 4096, Size: 6180},
		{StartOffset: 4096 + HeaderSize + 6180, Size: 10},
	}
	assert.Equal(t, uint64(4096+2*HeaderSize+6180+10), FindNextOffset(entries, l))

	// Order in the table does not matter, only the furthest extent.
	reversed := []Entry{entries[1], entries[0]}
	assert.Equal(t, FindNextOffset(entries, l), FindNextOffset(reversed, l))
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, nil))
	assert.Equal(t, "No files stored.\n", buf.String())

	buf.Reset()
	require.NoError(t, PrintTable(&buf, []Entry{{Name: "CantinaBand3.wav", StartOffset: 4096, Size: 6180}}))
	out := buf.String()
	assert.Contains(t, out, "CantinaBand3.wav")
	assert.Contains(t, out, "0x00001000")
	assert.Contains(t, out, "6180")
	assert.Contains(t, out, "6.04")
}
