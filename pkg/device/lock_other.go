//go:build !unix

package device

import "os"

// Only the in-process lock in the store applies on these platforms.
func flock(*os.File, bool) error { return nil }

func funlock(*os.File) error { return nil }
