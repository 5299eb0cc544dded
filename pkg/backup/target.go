// Package backup copies stored files off the device to a directory or an S3
// bucket.
//
// A Runner walks the metadata table, streams every entry that the manifest
// does not already record to a Target, and records it once the copy
// succeeded. Entries are identified by name, start offset and size: a file
// deleted and uploaded again under the same name lands at a new offset and
// is copied again.
package backup

import (
	"context"
	"io"
	"strings"
)

// Target receives backed up files.
type Target interface {
	// Kind names the target for logs and metrics ("dir" or "s3").
	Kind() string

	// Put stores exactly size bytes from r under key.
	Put(ctx context.Context, key string, r io.Reader, size int64) error
}

// objectKey maps a table name to a target key. Leading slashes are dropped so
// names like "/music/a.wav" stay relative.
func objectKey(prefix, name string) string {
	name = strings.TrimLeft(name, "/")
	if prefix == "" {
		return name
	}
	return strings.TrimSuffix(prefix, "/") + "/" + name
}
