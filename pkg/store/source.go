package store

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/marmos91/distfs/internal/audio"
)

// Source is an upload input whose size is known before streaming starts.
type Source struct {
	// Name is the table key. Its base name goes into the blob header.
	Name string

	// Reader yields exactly Size bytes.
	Reader io.Reader
	Size   uint64

	Type     audio.Type
	Modified time.Time
	Accessed time.Time
	Created  time.Time
}

// UploadOption adjusts how a local file is stored.
type UploadOption func(*uploadOptions)

type uploadOptions struct {
	name string
}

// WithName stores the file under name instead of the path it was read from.
func WithName(name string) UploadOption {
	return func(o *uploadOptions) {
		o.name = name
	}
}

// openSource stats and opens a local file and classifies its content.
func openSource(path string, name string) (Source, *os.File, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Source{}, nil, newSourceError(name, err)
	}
	if !fi.Mode().IsRegular() {
		return Source{}, nil, newSourceError(name, &os.PathError{Op: "upload", Path: path, Err: errNotRegular})
	}

	f, err := os.Open(path)
	if err != nil {
		return Source{}, nil, newSourceError(name, err)
	}

	// Classification failures degrade to Unknown.
	typ := audio.TypeUnknown
	if info, err := audio.Classify(path); err == nil {
		typ = info.Type
	}

	times := statTimes(path, fi)
	return Source{
		Name:     name,
		Reader:   f,
		Size:     uint64(fi.Size()),
		Type:     typ,
		Modified: times.modified,
		Accessed: times.accessed,
		Created:  times.created,
	}, f, nil
}

type sourceTimes struct {
	modified time.Time
	accessed time.Time
	created  time.Time
}

func displayName(name string) string {
	return filepath.Base(name)
}
