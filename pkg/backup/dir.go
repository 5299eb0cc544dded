package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DirTarget writes backups below a local directory.
type DirTarget struct {
	root string
}

// NewDirTarget creates root if needed and returns a target writing into it.
func NewDirTarget(root string) (*DirTarget, error) {
	if root == "" {
		return nil, errors.New("backup directory is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &DirTarget{root: root}, nil
}

// Kind implements Target.
func (t *DirTarget) Kind() string { return "dir" }

// Root returns the backup directory.
func (t *DirTarget) Root() string { return t.root }

// Put writes to a temporary file next to the destination and renames it into
// place, so a reader never sees a half written backup.
func (t *DirTarget) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	dst := filepath.Join(t.root, filepath.FromSlash(key))
	if rel, err := filepath.Rel(t.root, dst); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("backup key %q escapes %s", key, t.root)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".distfs-backup-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(r, size))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if n != size {
		return fmt.Errorf("short backup of %s: %d of %d bytes", key, n, size)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
