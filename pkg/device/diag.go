package device

import (
	"bytes"

	"github.com/marmos91/distfs/pkg/bufpool"
)

// PatternSize is the largest pattern EchoTest accepts.
const PatternSize = 8

// EchoResult reports what an echo test wrote and read back.
type EchoResult struct {
	Written  []byte `json:"written"`
	ReadBack []byte `json:"read_back"`
	Match    bool   `json:"match"`
}

// EchoTest writes pattern at offset 0, syncs, and reads it back. It is a
// sanity check that the device is writable and coherent. Note that offset 0
// is the first metadata table slot, so running it on a populated device
// clobbers the head of entry 0.
func (d *Device) EchoTest(pattern []byte) (EchoResult, error) {
	if len(pattern) == 0 || len(pattern) > PatternSize {
		return EchoResult{}, ErrPatternSize
	}

	res := EchoResult{Written: append([]byte(nil), pattern...)}

	if _, err := d.WriteAt(pattern, 0); err != nil {
		return res, err
	}
	if err := d.Sync(); err != nil {
		return res, err
	}

	res.ReadBack = make([]byte, len(pattern))
	if _, err := d.ReadAt(res.ReadBack, 0); err != nil {
		return res, err
	}

	res.Match = bytes.Equal(res.Written, res.ReadBack)
	return res, nil
}

// ResetRegion zero-fills [offset, offset+size) and reads it back to verify.
// A non-zero byte in the read-back fails with ErrVerifyFailed carrying the
// offset of that byte.
func (d *Device) ResetRegion(offset, size int64) error {
	if err := d.Zero(offset, size); err != nil {
		return err
	}
	if err := d.Sync(); err != nil {
		return err
	}

	buf := bufpool.Get(bufpool.DefaultChunkSize)
	defer bufpool.Put(buf)

	for off, left := offset, size; left > 0; {
		n := min(int64(len(buf)), left)
		chunk := buf[:n]
		if _, err := d.ReadAt(chunk, off); err != nil {
			return err
		}
		for i, b := range chunk {
			if b != 0 {
				return &Error{Op: OpVerify, Path: d.path, Offset: off + int64(i), Err: ErrVerifyFailed}
			}
		}
		off += n
		left -= n
	}
	return nil
}
