// Package device wraps a raw block device (or an image file standing in for
// one) with positioned, all-or-nothing reads and writes.
//
// A Device is opened for a single storage operation and closed when the
// operation ends. Cross-process exclusion is provided by Lock, which takes a
// flock(2) on the device node.
package device

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/marmos91/distfs/pkg/bufpool"
)

var (
	// ErrShortRead is returned when fewer bytes than requested could be read.
	ErrShortRead = errors.New("short read")

	// ErrShortWrite is returned when fewer bytes than requested were written.
	ErrShortWrite = errors.New("short write")

	// ErrClosed is returned for operations on a closed device.
	ErrClosed = errors.New("device is closed")

	// ErrPatternSize is returned by EchoTest for an empty or oversized pattern.
	ErrPatternSize = errors.New("invalid echo pattern size")

	// ErrVerifyFailed is returned by ResetRegion when a zeroed range reads
	// back non-zero.
	ErrVerifyFailed = errors.New("verification failed")
)

// Op names the device operation that failed.
type Op string

const (
	OpOpen   Op = "open"
	OpRead   Op = "read"
	OpWrite  Op = "write"
	OpSync   Op = "sync"
	OpStat   Op = "stat"
	OpLock   Op = "lock"
	OpVerify Op = "verify"
)

// Error describes a failed device operation.
type Error struct {
	Op     Op
	Path   string
	Offset int64
	Err    error
}

func (e *Error) Error() string {
	switch e.Op {
	case OpOpen, OpSync, OpStat, OpLock:
		return fmt.Sprintf("device %s %s: %v", e.Op, e.Path, e.Err)
	default:
		return fmt.Sprintf("device %s %s at offset %d: %v", e.Op, e.Path, e.Offset, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Device is an open storage device.
type Device struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	locked bool
}

// Open opens path for reading and writing.
func Open(path string) (*Device, error) {
	return open(path, os.O_RDWR)
}

// OpenReadOnly opens path for reading only.
func OpenReadOnly(path string) (*Device, error) {
	return open(path, os.O_RDONLY)
}

func open(path string, flag int) (*Device, error) {
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, &Error{Op: OpOpen, Path: path, Err: err}
	}
	return &Device{path: path, file: f}, nil
}

// Path returns the device path.
func (d *Device) Path() string {
	return d.path
}

func (d *Device) handle() (*os.File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil, ErrClosed
	}
	return d.file, nil
}

// ReadAt fills p from offset off. Anything short of len(p) bytes is an error
// wrapping ErrShortRead; n still reports how many bytes arrived.
func (d *Device) ReadAt(p []byte, off int64) (int, error) {
	f, err := d.handle()
	if err != nil {
		return 0, &Error{Op: OpRead, Path: d.path, Offset: off, Err: err}
	}

	n, err := f.ReadAt(p, off)
	if n == len(p) {
		return n, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = ErrShortRead
	}
	return n, &Error{Op: OpRead, Path: d.path, Offset: off, Err: err}
}

// WriteAt writes all of p at offset off or fails.
func (d *Device) WriteAt(p []byte, off int64) (int, error) {
	f, err := d.handle()
	if err != nil {
		return 0, &Error{Op: OpWrite, Path: d.path, Offset: off, Err: err}
	}

	n, err := f.WriteAt(p, off)
	if err != nil {
		return n, &Error{Op: OpWrite, Path: d.path, Offset: off, Err: err}
	}
	if n != len(p) {
		return n, &Error{Op: OpWrite, Path: d.path, Offset: off, Err: ErrShortWrite}
	}
	return n, nil
}

// Zero overwrites size bytes starting at off with zeroes.
func (d *Device) Zero(off, size int64) error {
	if size <= 0 {
		return nil
	}

	buf := bufpool.Get(bufpool.DefaultChunkSize)
	defer bufpool.Put(buf)
	clear(buf)

	for size > 0 {
		n := min(int64(len(buf)), size)
		if _, err := d.WriteAt(buf[:n], off); err != nil {
			return err
		}
		off += n
		size -= n
	}
	return nil
}

// Sync flushes written data to stable storage.
func (d *Device) Sync() error {
	f, err := d.handle()
	if err == nil {
		err = f.Sync()
	}
	if err != nil {
		return &Error{Op: OpSync, Path: d.path, Err: err}
	}
	return nil
}

// Size returns the capacity of the device in bytes. For block devices the
// kernel is asked directly; for regular files this is the file size.
func (d *Device) Size() (int64, error) {
	f, err := d.handle()
	if err != nil {
		return 0, &Error{Op: OpStat, Path: d.path, Err: err}
	}
	size, err := deviceSize(f)
	if err != nil {
		return 0, &Error{Op: OpStat, Path: d.path, Err: err}
	}
	return size, nil
}

// Capacity returns the hard end of the device in bytes, or 0 when writes past
// the current end are allowed. Regular image files grow on write and have no
// hard end.
func (d *Device) Capacity() (int64, error) {
	f, err := d.handle()
	if err != nil {
		return 0, &Error{Op: OpStat, Path: d.path, Err: err}
	}
	fi, err := f.Stat()
	if err != nil {
		return 0, &Error{Op: OpStat, Path: d.path, Err: err}
	}
	if fi.Mode()&os.ModeDevice == 0 {
		return 0, nil
	}
	return d.Size()
}

// Lock takes an advisory whole-device lock shared between processes.
// Exclusive locks are held by mutating operations, shared locks by readers.
func (d *Device) Lock(exclusive bool) error {
	f, err := d.handle()
	if err == nil {
		err = flock(f, exclusive)
	}
	if err != nil {
		return &Error{Op: OpLock, Path: d.path, Err: err}
	}

	d.mu.Lock()
	d.locked = true
	d.mu.Unlock()
	return nil
}

// Unlock releases a lock taken with Lock.
func (d *Device) Unlock() error {
	f, err := d.handle()
	if err != nil {
		return &Error{Op: OpLock, Path: d.path, Err: err}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.locked {
		return nil
	}
	if err := funlock(f); err != nil {
		return &Error{Op: OpLock, Path: d.path, Err: err}
	}
	d.locked = false
	return nil
}

// Close releases any lock and closes the device. Closing twice is a no-op.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return nil
	}
	if d.locked {
		_ = funlock(d.file)
		d.locked = false
	}
	err := d.file.Close()
	d.file = nil
	return err
}
