package store

import (
	"bytes"
	"encoding/binary"
	"time"
)

// Entry is one row of the metadata table.
type Entry struct {
	Name        string    `json:"name" yaml:"name"`
	StartOffset uint64    `json:"start_offset" yaml:"start_offset"`
	Size        uint64    `json:"size" yaml:"size"`
	IsDir       bool      `json:"is_directory" yaml:"is_directory"`
	Index       uint32    `json:"index" yaml:"index"`
	Modified    time.Time `json:"modified" yaml:"modified"`
	Accessed    time.Time `json:"accessed" yaml:"accessed"`
	Created     time.Time `json:"created" yaml:"created"`
	Uploaded    time.Time `json:"uploaded" yaml:"uploaded"`
}

// End returns the first device offset past this blob: header plus payload.
func (e Entry) End() uint64 {
	return e.StartOffset + HeaderSize + e.Size
}

// PayloadOffset is where the blob's payload begins, past the magic and the
// header record.
func (e Entry) PayloadOffset() uint64 {
	return e.StartOffset + HeaderSize
}

// Row field offsets.
const (
	nameOff     = 0
	startOff    = 256
	sizeOff     = 264
	isDirOff    = 272
	indexOff    = 276
	modifiedOff = 280
	accessedOff = 288
	createdOff  = 296
	uploadedOff = 304
)

// MarshalBinary encodes the entry into a EntrySize row.
func (e Entry) MarshalBinary() ([]byte, error) {
	buf := make([]byte, EntrySize)
	e.encode(buf)
	return buf, nil
}

func (e Entry) encode(buf []byte) {
	clear(buf[:EntrySize])
	putName(buf[nameOff:startOff], e.Name)

	be := binary.BigEndian
	be.PutUint64(buf[startOff:], e.StartOffset)
	be.PutUint64(buf[sizeOff:], e.Size)
	if e.IsDir {
		buf[isDirOff] = 1
	}
	be.PutUint32(buf[indexOff:], e.Index)
	be.PutUint64(buf[modifiedOff:], uint64(unixNano(e.Modified)))
	be.PutUint64(buf[accessedOff:], uint64(unixNano(e.Accessed)))
	be.PutUint64(buf[createdOff:], uint64(unixNano(e.Created)))
	be.PutUint64(buf[uploadedOff:], uint64(unixNano(e.Uploaded)))
}

// UnmarshalBinary decodes a row produced by MarshalBinary.
func (e *Entry) UnmarshalBinary(buf []byte) error {
	if len(buf) < EntrySize {
		return ErrReadFailed
	}
	*e = decodeEntry(buf)
	return nil
}

func decodeEntry(buf []byte) Entry {
	be := binary.BigEndian
	return Entry{
		Name:        getName(buf[nameOff:startOff]),
		StartOffset: be.Uint64(buf[startOff:]),
		Size:        be.Uint64(buf[sizeOff:]),
		IsDir:       buf[isDirOff] != 0,
		Index:       be.Uint32(buf[indexOff:]),
		Modified:    fromUnixNano(int64(be.Uint64(buf[modifiedOff:]))),
		Accessed:    fromUnixNano(int64(be.Uint64(buf[accessedOff:]))),
		Created:     fromUnixNano(int64(be.Uint64(buf[createdOff:]))),
		Uploaded:    fromUnixNano(int64(be.Uint64(buf[uploadedOff:]))),
	}
}

// putName copies name into a NUL-padded field, truncating so at least one
// NUL remains.
func putName(field []byte, name string) {
	n := copy(field[:len(field)-1], name)
	clear(field[n:])
}

func getName(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field)
}

// Timestamps are stored as Unix nanoseconds; 0 means unset.
func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}
