//go:build !linux && !darwin

package logger

// Color output is only auto-detected on Linux and macOS.
func isTerminal(fd uintptr) bool {
	return false
}
