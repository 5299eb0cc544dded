//go:build !linux

package transport

// UART and SPI need Linux termios and spidev; other platforms only get the
// network and I2C drivers.
func registerPlatformDrivers(*Registry) {}
