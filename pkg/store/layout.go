// Package store is the storage engine: a fixed-capacity metadata table at
// offset 0 of a raw device, followed by append-only blobs.
//
// Device layout:
//
//	[0, MaxEntries*EntrySize)   metadata table, one 512-byte row per blob
//	[TableSize, ...)            blob 0: magic | header record | payload
//	                            blob 1: ...
//
// All multi-byte fields are big-endian. A row whose start offset is 0 is an
// empty slot. Space is never reclaimed: deleting a blob zeroes its payload and
// compacts the table, but the next blob is still allocated past the highest
// extent ever recorded in the current table.
package store

import "fmt"

const (
	// EntrySize is the on-disk size of one metadata row.
	EntrySize = 512

	// DefaultMaxEntries is the table capacity used when none is configured.
	DefaultMaxEntries = 1024

	// MaxNameLen is the longest storable name; the on-disk field is
	// NUL-terminated.
	MaxNameLen = 255

	// DefaultChunkSize is the streaming unit for uploads and downloads.
	DefaultChunkSize = 4096
)

// Layout fixes the geometry of the metadata region.
type Layout struct {
	MaxEntries int
}

// DefaultLayout returns the layout with DefaultMaxEntries rows.
func DefaultLayout() Layout {
	return Layout{MaxEntries: DefaultMaxEntries}
}

// TableSize is the byte length of the metadata region, which is also the
// lowest offset a blob may start at.
func (l Layout) TableSize() int64 {
	return int64(l.MaxEntries) * EntrySize
}

// SlotOffset returns the device offset of table row index.
func (l Layout) SlotOffset(index int) int64 {
	return int64(index) * EntrySize
}

// Validate checks the layout is usable.
func (l Layout) Validate() error {
	if l.MaxEntries <= 0 {
		return fmt.Errorf("max entries must be positive, got %d", l.MaxEntries)
	}
	return nil
}
