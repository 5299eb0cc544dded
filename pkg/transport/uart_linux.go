//go:build linux

package transport

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"
)

// DefaultBaudRate is used when Config.BaudRate is zero.
const DefaultBaudRate = 115200

var baudRates = map[int]uint32{
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
}

// openUART opens a serial port in raw 8N1 mode.
func openUART(_ context.Context, cfg Config) (Transport, error) {
	baud := cfg.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	speed, ok := baudRates[baud]
	if !ok {
		return nil, &OpError{Op: "configure", Type: TypeUART, Addr: cfg.Device,
			Err: fmt.Errorf("unsupported baud rate %d", baud)}
	}

	fd, err := openFD(TypeUART, cfg.Device)
	if err != nil {
		return nil, err
	}

	if err := configureUART(fd, speed); err != nil {
		_ = unix.Close(fd)
		return nil, &OpError{Op: "configure", Type: TypeUART, Addr: cfg.Device, Err: err}
	}
	return newFDTransport(fd, TypeUART, cfg.Device), nil
}

func configureUART(fd int, speed uint32) error {
	tio, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}

	tio.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF
	tio.Oflag &^= unix.OPOST
	tio.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	tio.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CBAUD | unix.CRTSCTS
	tio.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | speed
	tio.Ispeed = speed
	tio.Ospeed = speed
	tio.Cc[unix.VMIN] = 1
	tio.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, tio); err != nil {
		return err
	}
	return unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIOFLUSH)
}
