//go:build linux

package store

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// statTimes reads access and birth times with statx. Filesystems without a
// birth time fall back to the inode change time.
func statTimes(path string, fi os.FileInfo) sourceTimes {
	t := sourceTimes{modified: fi.ModTime(), accessed: fi.ModTime(), created: fi.ModTime()}

	var stx unix.Statx_t
	mask := unix.STATX_ATIME | unix.STATX_CTIME | unix.STATX_BTIME
	if err := unix.Statx(unix.AT_FDCWD, path, 0, mask, &stx); err != nil {
		return t
	}

	if stx.Mask&unix.STATX_ATIME != 0 {
		t.accessed = time.Unix(stx.Atime.Sec, int64(stx.Atime.Nsec))
	}
	switch {
	case stx.Mask&unix.STATX_BTIME != 0 && stx.Btime.Sec != 0:
		t.created = time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec))
	case stx.Mask&unix.STATX_CTIME != 0:
		t.created = time.Unix(stx.Ctime.Sec, int64(stx.Ctime.Nsec))
	}
	return t
}
