// Package transport provides the byte-stream backends that carry framed
// packets: UART and SPI character devices, an I2C placeholder, and TCP.
//
// Every read and write takes an explicit timeout. A call that runs out of
// time returns ErrTimeout together with the byte count actually moved, so
// callers can tell "try again" apart from a dead link.
//
// Drivers are looked up in a Registry value owned by the caller:
//
//	reg := transport.DefaultRegistry()
//	t, err := reg.Open(ctx, transport.Config{Type: transport.TypeNetwork, Host: "10.0.0.5", Port: 9000})
package transport

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Type identifies a transport backend.
type Type string

const (
	TypeUART    Type = "uart"
	TypeSPI     Type = "spi"
	TypeI2C     Type = "i2c"
	TypeNetwork Type = "network"
)

// ParseType maps a case-insensitive name to a Type.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeUART, TypeSPI, TypeI2C, TypeNetwork:
		return t, nil
	default:
		return "", fmt.Errorf("unknown transport type %q", s)
	}
}

var (
	// ErrDriverNotFound is returned by Registry.Open for a type with no
	// registered driver.
	ErrDriverNotFound = errors.New("transport driver not found")

	// ErrTimeout is returned when a call's deadline passes. Some bytes may
	// still have been transferred.
	ErrTimeout = errors.New("transport timeout")

	// ErrUnsupported is returned by operations a backend does not implement.
	ErrUnsupported = errors.New("operation not supported by transport")

	// ErrClosed is returned for calls on a closed transport.
	ErrClosed = errors.New("transport is closed")
)

// OpError describes a failed transport call.
type OpError struct {
	Op   string
	Type Type
	Addr string
	Err  error
}

func (e *OpError) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("%s %s %s: %v", e.Type, e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Type, e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a transport timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// Transport is an open byte stream.
//
// A timeout of zero or less blocks without a deadline.
type Transport interface {
	// Read waits for data and reads at most len(buf) bytes. It returns as
	// soon as any bytes are available, so n may be less than len(buf).
	Read(buf []byte, timeout time.Duration) (n int, err error)

	// ReadOne reads a single byte.
	ReadOne(timeout time.Duration) (byte, error)

	// Write writes all of buf unless the timeout passes first, in which case
	// it returns the count written so far and ErrTimeout.
	Write(buf []byte, timeout time.Duration) (n int, err error)

	// WriteOne writes a single byte.
	WriteOne(b byte, timeout time.Duration) error

	// Ioctl issues a backend-specific control request. data is passed to the
	// driver by pointer to its first byte.
	Ioctl(op uint, data []byte) error

	// Type returns the backend type.
	Type() Type

	// Close releases the transport. Further calls return ErrClosed.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Type Type

	// Device is the character device for UART, SPI and I2C.
	Device string

	// BaudRate is the UART line speed.
	BaudRate int

	// SPI settings.
	SPIMode        uint8
	SPIBitsPerWord uint8
	SPISpeedHz     uint32

	// Network endpoint. With Listen set the driver binds Host:Port and
	// accepts exactly one client.
	Host   string
	Port   int
	Listen bool

	// DialTimeout bounds connection setup for the network driver.
	DialTimeout time.Duration
}

// Address returns Host:Port.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ReadFull reads exactly len(buf) bytes, issuing as many Reads as needed.
// The timeout applies to the whole call.
func ReadFull(t Transport, buf []byte, timeout time.Duration) (int, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	done := 0
	for done < len(buf) {
		wait := timeout
		if !deadline.IsZero() {
			wait = time.Until(deadline)
			if wait <= 0 {
				return done, ErrTimeout
			}
		}
		n, err := t.Read(buf[done:], wait)
		done += n
		if err != nil {
			return done, err
		}
	}
	return done, nil
}
