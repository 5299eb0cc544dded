//go:build linux

package transport

import (
	"errors"
	"io"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// fdTransport drives a non-blocking character device with poll(2). UART and
// SPI share it; they differ only in how the descriptor is configured.
type fdTransport struct {
	typ  Type
	path string

	mu     sync.Mutex
	fd     int
	closed bool
}

func newFDTransport(fd int, typ Type, path string) *fdTransport {
	return &fdTransport{fd: fd, typ: typ, path: path}
}

func (t *fdTransport) Type() Type {
	return t.typ
}

func (t *fdTransport) handle() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return -1, ErrClosed
	}
	return t.fd, nil
}

func (t *fdTransport) opErr(op string, err error) error {
	return &OpError{Op: op, Type: t.typ, Addr: t.path, Err: err}
}

func pollTimeout(timeout time.Duration) int {
	if timeout <= 0 {
		return -1
	}
	ms := int(timeout.Milliseconds())
	if ms == 0 {
		ms = 1
	}
	return ms
}

// wait blocks until fd is ready for events or the timeout passes.
func (t *fdTransport) wait(fd int, events int16, timeout time.Duration) error {
	fds := []unix.PollFd{{Fd: int32(fd), Events: events}}
	for {
		n, err := unix.Poll(fds, pollTimeout(timeout))
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return t.opErr("poll", err)
		}
		if n == 0 {
			return ErrTimeout
		}
		if fds[0].Revents&unix.POLLNVAL != 0 {
			return t.opErr("poll", unix.EBADF)
		}
		if fds[0].Revents&unix.POLLERR != 0 {
			return t.opErr("poll", unix.EIO)
		}
		// POLLHUP falls through so the read observes EOF.
		return nil
	}
}

func (t *fdTransport) Read(buf []byte, timeout time.Duration) (int, error) {
	fd, err := t.handle()
	if err != nil {
		return 0, err
	}
	if len(buf) == 0 {
		return 0, nil
	}

	for {
		if err := t.wait(fd, unix.POLLIN, timeout); err != nil {
			return 0, err
		}
		n, err := unix.Read(fd, buf)
		switch {
		case errors.Is(err, unix.EINTR), errors.Is(err, unix.EAGAIN):
			continue
		case err != nil:
			return 0, t.opErr("read", err)
		case n == 0:
			return 0, io.EOF
		}
		return n, nil
	}
}

func (t *fdTransport) ReadOne(timeout time.Duration) (byte, error) {
	var b [1]byte
	if _, err := t.Read(b[:], timeout); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (t *fdTransport) Write(buf []byte, timeout time.Duration) (int, error) {
	fd, err := t.handle()
	if err != nil {
		return 0, err
	}

	var end time.Time
	if timeout > 0 {
		end = time.Now().Add(timeout)
	}

	done := 0
	for done < len(buf) {
		wait := timeout
		if !end.IsZero() {
			if wait = time.Until(end); wait <= 0 {
				return done, ErrTimeout
			}
		}
		if err := t.wait(fd, unix.POLLOUT, wait); err != nil {
			return done, err
		}
		n, err := unix.Write(fd, buf[done:])
		if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
			continue
		}
		if err != nil {
			return done, t.opErr("write", err)
		}
		done += n
	}
	return done, nil
}

func (t *fdTransport) WriteOne(b byte, timeout time.Duration) error {
	_, err := t.Write([]byte{b}, timeout)
	return err
}

func (t *fdTransport) Ioctl(op uint, data []byte) error {
	fd, err := t.handle()
	if err != nil {
		return err
	}
	var errno unix.Errno
	if len(data) > 0 {
		_, _, errno = unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(op), uintptr(unsafe.Pointer(&data[0])))
	} else {
		_, _, errno = unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(op), 0)
	}
	if errno != 0 {
		return t.opErr("ioctl", errno)
	}
	return nil
}

func (t *fdTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return unix.Close(t.fd)
}

func openFD(typ Type, path string) (int, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, &OpError{Op: "open", Type: typ, Addr: path, Err: err}
	}
	return fd, nil
}

func registerPlatformDrivers(r *Registry) {
	r.Register(TypeUART, openUART)
	r.Register(TypeSPI, openSPI)
}
