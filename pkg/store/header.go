package store

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/marmos91/distfs/internal/audio"
)

// Magic opens every blob on the device ("DFSB").
const Magic uint32 = 0x44465342

const (
	// MagicSize is the length of the marker preceding the header record.
	MagicSize = 4

	// RecordSize is the length of the header record following the magic.
	RecordSize = 288

	// HeaderSize is the distance from a blob's start offset to its payload.
	HeaderSize = MagicSize + RecordSize
)

// Record field offsets, relative to the start of the record.
const (
	recNameOff   = 0
	recSizeOff   = 256
	recTypeOff   = 264
	recOffsetOff = 272
	recTimeOff   = 280
)

// ErrBadMagic is returned when a blob does not start with Magic.
var ErrBadMagic = errors.New("blob magic mismatch")

// BlobHeader precedes each blob's payload on the device.
type BlobHeader struct {
	Name      string     // display name (base name of the source)
	Size      uint64     // payload length
	Type      audio.Type // classifier tag
	Offset    uint64     // start offset of this header on the device
	Timestamp time.Time  // source modification time
}

// MarshalBinary encodes magic plus record into HeaderSize bytes.
func (h BlobHeader) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	be := binary.BigEndian

	be.PutUint32(buf[0:MagicSize], Magic)

	rec := buf[MagicSize:]
	putName(rec[recNameOff:recSizeOff], h.Name)
	be.PutUint64(rec[recSizeOff:], h.Size)
	rec[recTypeOff] = byte(h.Type)
	be.PutUint64(rec[recOffsetOff:], h.Offset)
	be.PutUint64(rec[recTimeOff:], uint64(unixNano(h.Timestamp)))
	return buf, nil
}

// UnmarshalBinary decodes a header, checking the magic first.
func (h *BlobHeader) UnmarshalBinary(buf []byte) error {
	if len(buf) < HeaderSize {
		return ErrReadFailed
	}
	be := binary.BigEndian
	if be.Uint32(buf[0:MagicSize]) != Magic {
		return ErrBadMagic
	}

	rec := buf[MagicSize:]
	*h = BlobHeader{
		Name:      getName(rec[recNameOff:recSizeOff]),
		Size:      be.Uint64(rec[recSizeOff:]),
		Type:      audio.Type(rec[recTypeOff]),
		Offset:    be.Uint64(rec[recOffsetOff:]),
		Timestamp: fromUnixNano(int64(be.Uint64(rec[recTimeOff:]))),
	}
	return nil
}
