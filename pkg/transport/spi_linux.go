//go:build linux

package transport

import (
	"context"
	"encoding/binary"
)

// spidev ioctl requests (linux/spi/spidev.h).
const (
	SPIIocWrMode        = 0x40016b01
	SPIIocWrBitsPerWord = 0x40016b03
	SPIIocWrMaxSpeedHz  = 0x40046b04
)

// Defaults applied when the SPI fields of Config are zero.
const (
	DefaultSPIBitsPerWord = 8
	DefaultSPISpeedHz     = 500000
)

// openSPI opens a spidev node and sets mode, word size and clock.
func openSPI(_ context.Context, cfg Config) (Transport, error) {
	bits := cfg.SPIBitsPerWord
	if bits == 0 {
		bits = DefaultSPIBitsPerWord
	}
	speed := cfg.SPISpeedHz
	if speed == 0 {
		speed = DefaultSPISpeedHz
	}

	fd, err := openFD(TypeSPI, cfg.Device)
	if err != nil {
		return nil, err
	}
	t := newFDTransport(fd, TypeSPI, cfg.Device)

	hz := make([]byte, 4)
	binary.NativeEndian.PutUint32(hz, speed)

	steps := []struct {
		op   uint
		data []byte
	}{
		{SPIIocWrMode, []byte{cfg.SPIMode}},
		{SPIIocWrBitsPerWord, []byte{bits}},
		{SPIIocWrMaxSpeedHz, hz},
	}
	for _, s := range steps {
		if err := t.Ioctl(s.op, s.data); err != nil {
			_ = t.Close()
			return nil, err
		}
	}
	return t, nil
}
