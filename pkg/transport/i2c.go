package transport

import (
	"context"
	"sync/atomic"
	"time"
)

// i2cTransport is registered so configurations naming I2C resolve, but no
// bus access is implemented yet: every I/O call reports ErrUnsupported.
type i2cTransport struct {
	device string
	closed atomic.Bool
}

func openI2C(_ context.Context, cfg Config) (Transport, error) {
	return &i2cTransport{device: cfg.Device}, nil
}

func (t *i2cTransport) Type() Type { return TypeI2C }

func (t *i2cTransport) check() error {
	if t.closed.Load() {
		return ErrClosed
	}
	return ErrUnsupported
}

func (t *i2cTransport) Read([]byte, time.Duration) (int, error)  { return 0, t.check() }
func (t *i2cTransport) ReadOne(time.Duration) (byte, error)      { return 0, t.check() }
func (t *i2cTransport) Write([]byte, time.Duration) (int, error) { return 0, t.check() }
func (t *i2cTransport) WriteOne(byte, time.Duration) error       { return t.check() }
func (t *i2cTransport) Ioctl(uint, []byte) error                 { return t.check() }

func (t *i2cTransport) Close() error {
	t.closed.Store(true)
	return nil
}
