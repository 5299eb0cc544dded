//go:build !linux

package device

import (
	"io"
	"os"
)

func deviceSize(f *os.File) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if fi.Mode()&os.ModeDevice == 0 {
		return fi.Size(), nil
	}
	// Block devices report size 0 from stat; seeking to the end works on
	// the BSDs and macOS.
	return f.Seek(0, io.SeekEnd)
}
