package backup

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/distfs/pkg/store"
)

const manifestKeyPrefix = "blob:"

// Manifest records which blobs were already copied. It is backed by badger so
// the record survives restarts of the serve process.
type Manifest struct {
	db *badgerdb.DB
}

// OpenManifest opens (or creates) the manifest in dir. An empty dir keeps the
// manifest in memory, which makes every run a full copy after a restart.
func OpenManifest(dir string) (*Manifest, error) {
	opts := badgerdb.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = badgerdb.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup manifest: %w", err)
	}
	return &Manifest{db: db}, nil
}

// Close flushes and closes the manifest.
func (m *Manifest) Close() error {
	return m.db.Close()
}

// manifestKey identifies one stored blob: name, start offset and size.
func manifestKey(e store.Entry) []byte {
	key := make([]byte, 0, len(manifestKeyPrefix)+len(e.Name)+1+16)
	key = append(key, manifestKeyPrefix...)
	key = append(key, e.Name...)
	key = append(key, 0)
	key = binary.BigEndian.AppendUint64(key, e.StartOffset)
	key = binary.BigEndian.AppendUint64(key, e.Size)
	return key
}

// Has reports whether e was copied by an earlier run.
func (m *Manifest) Has(e store.Entry) (bool, error) {
	err := m.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(manifestKey(e))
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Mark records e as copied at t.
func (m *Manifest) Mark(e store.Entry, t time.Time) error {
	return m.db.Update(func(txn *badgerdb.Txn) error {
		val := binary.BigEndian.AppendUint64(nil, uint64(t.UnixNano()))
		return txn.Set(manifestKey(e), val)
	})
}

// Len returns the number of recorded blobs.
func (m *Manifest) Len() (int, error) {
	n := 0
	err := m.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(manifestKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}
