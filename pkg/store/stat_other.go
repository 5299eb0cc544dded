//go:build !linux

package store

import "os"

func statTimes(_ string, fi os.FileInfo) sourceTimes {
	return sourceTimes{modified: fi.ModTime(), accessed: fi.ModTime(), created: fi.ModTime()}
}
