package store

import (
	"fmt"
	"io"
	"strconv"

	"github.com/marmos91/distfs/internal/bytesize"
	"github.com/marmos91/distfs/internal/cli/output"
	"github.com/marmos91/distfs/internal/cli/timeutil"
)

// ReadTable reads the metadata region and returns the occupied rows in index
// order. Rows with a zero start offset are skipped. A failed or empty read
// means an uninitialized device and yields an empty table; a short read
// parses whatever whole rows arrived.
func ReadTable(dev io.ReaderAt, layout Layout) []Entry {
	buf := make([]byte, layout.TableSize())
	n, _ := dev.ReadAt(buf, 0)
	if n <= 0 {
		return []Entry{}
	}

	rows := n / EntrySize
	entries := make([]Entry, 0, rows)
	for i := 0; i < rows; i++ {
		row := buf[i*EntrySize : (i+1)*EntrySize]
		e := decodeEntry(row)
		if e.StartOffset == 0 {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

// WriteEntry writes e into table row index. The row's Index field is set to
// index. A short write is an error.
func WriteEntry(dev io.WriterAt, layout Layout, e Entry, index int) error {
	if index < 0 || index >= layout.MaxEntries {
		return fmt.Errorf("table index %d out of range [0,%d)", index, layout.MaxEntries)
	}

	e.Index = uint32(index)
	buf := make([]byte, EntrySize)
	e.encode(buf)

	n, err := dev.WriteAt(buf, layout.SlotOffset(index))
	if err != nil {
		return err
	}
	if n != EntrySize {
		return io.ErrShortWrite
	}
	return nil
}

// ClearSlot zeroes table row index, turning it into an empty slot.
func ClearSlot(dev io.WriterAt, layout Layout, index int) error {
	if index < 0 || index >= layout.MaxEntries {
		return fmt.Errorf("table index %d out of range [0,%d)", index, layout.MaxEntries)
	}
	n, err := dev.WriteAt(make([]byte, EntrySize), layout.SlotOffset(index))
	if err != nil {
		return err
	}
	if n != EntrySize {
		return io.ErrShortWrite
	}
	return nil
}

// Lookup returns the first entry named name, scanning in index order.
// Duplicates at higher indexes are shadowed.
func Lookup(entries []Entry, name string) (Entry, int, bool) {
	for i, e := range entries {
		if e.Name == name {
			return e, i, true
		}
	}
	return Entry{}, -1, false
}

// EntryTable renders entries as a table listing.
type EntryTable []Entry

// Headers implements output.TableRenderer.
func (t EntryTable) Headers() []string {
	return []string{"Name", "Index", "Offset", "Size (B)", "Size (KB)", "Size (MB)",
		"Modified", "Accessed", "Created", "Uploaded"}
}

// Rows implements output.TableRenderer.
func (t EntryTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, e := range t {
		size := bytesize.ByteSize(e.Size)
		rows = append(rows, []string{
			e.Name,
			strconv.FormatUint(uint64(e.Index), 10),
			fmt.Sprintf("0x%08X", e.StartOffset),
			strconv.FormatUint(e.Size, 10),
			strconv.FormatFloat(size.KiBf(), 'f', 2, 64),
			strconv.FormatFloat(size.MiBf(), 'f', 2, 64),
			timeutil.Format(e.Modified),
			timeutil.Format(e.Accessed),
			timeutil.Format(e.Created),
			timeutil.Format(e.Uploaded),
		})
	}
	return rows
}

// PrintTable writes a column-aligned listing of entries to w.
func PrintTable(w io.Writer, entries []Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No files stored.")
		return err
	}
	return output.PrintTable(w, EntryTable(entries))
}
