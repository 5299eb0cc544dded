package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/marmos91/distfs/internal/bytesize"
	"github.com/marmos91/distfs/internal/logger"
	"github.com/marmos91/distfs/internal/telemetry"
	"github.com/marmos91/distfs/pkg/bufpool"
	"github.com/marmos91/distfs/pkg/device"
	"github.com/marmos91/distfs/pkg/metrics"
)

var errNotRegular = errors.New("not a regular file")

// Device is the view of an open device the engine works through.
// *device.Device satisfies it.
type Device interface {
	io.ReaderAt
	io.WriterAt
	Zero(off, size int64) error
	Sync() error
	Lock(exclusive bool) error
	Unlock() error
	Close() error
	EchoTest(pattern []byte) (device.EchoResult, error)
	ResetRegion(offset, size int64) error
	Capacity() (int64, error)
}

// Opener opens the device at path for the duration of one operation.
type Opener func(path string, readOnly bool) (Device, error)

// OpenDevice is the default Opener.
func OpenDevice(path string, readOnly bool) (Device, error) {
	var (
		d   *device.Device
		err error
	)
	if readOnly {
		d, err = device.OpenReadOnly(path)
	} else {
		d, err = device.Open(path)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Config configures a Store.
type Config struct {
	// DevicePath is the block device or image file holding the store.
	DevicePath string

	// Layout fixes the metadata table capacity. Zero means DefaultLayout.
	Layout Layout

	// ChunkSize is the streaming unit. Zero means DefaultChunkSize.
	ChunkSize int

	// Opener opens the device per operation. Nil means OpenDevice.
	Opener Opener

	// Metrics is optional.
	Metrics metrics.StoreMetrics
}

// Store is the storage engine. Every operation opens the device, takes a
// flock on it (shared for reads, exclusive for mutations), and closes it
// again before returning. Within a process, an RWMutex orders the same way,
// so a download never observes a delete halfway through compaction.
type Store struct {
	path    string
	layout  Layout
	chunk   int
	open    Opener
	metrics metrics.StoreMetrics

	mu sync.RWMutex
}

// New validates cfg and returns a Store. The device is not touched until the
// first operation.
func New(cfg Config) (*Store, error) {
	if cfg.DevicePath == "" {
		return nil, errors.New("device path is required")
	}
	if cfg.Layout.MaxEntries == 0 {
		cfg.Layout = DefaultLayout()
	}
	if err := cfg.Layout.Validate(); err != nil {
		return nil, err
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkSize < 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.Opener == nil {
		cfg.Opener = OpenDevice
	}

	return &Store{
		path:    cfg.DevicePath,
		layout:  cfg.Layout,
		chunk:   cfg.ChunkSize,
		open:    cfg.Opener,
		metrics: cfg.Metrics,
	}, nil
}

// DevicePath returns the device this store operates on.
func (s *Store) DevicePath() string {
	return s.path
}

// Layout returns the table geometry.
func (s *Store) Layout() Layout {
	return s.layout
}

func (s *Store) acquire(exclusive bool) (Device, error) {
	dev, err := s.open(s.path, !exclusive)
	if err != nil {
		return nil, newDeviceError(err)
	}
	if err := dev.Lock(exclusive); err != nil {
		_ = dev.Close()
		return nil, newDeviceError(err)
	}
	return dev, nil
}

func release(dev Device) {
	if err := dev.Close(); err != nil {
		logger.Warn("Failed to close device", logger.Err(err))
	}
}

func (s *Store) observe(op string, start time.Time, err error) {
	outcome := metrics.OutcomeOK
	if err != nil {
		if code := CodeOf(err); code != 0 {
			outcome = code.String()
		} else {
			outcome = "error"
		}
	}
	metrics.ObserveStoreOperation(s.metrics, op, time.Since(start), outcome)
}

func validateName(name string) error {
	if name == "" || len(name) > MaxNameLen {
		return &StoreError{
			Code:    CodeInvalidName,
			Message: fmt.Sprintf("name must be 1 to %d bytes, got %d", MaxNameLen, len(name)),
			Name:    name,
		}
	}
	return nil
}

// Upload stores the local file at path. The table key is path itself unless
// WithName overrides it; the blob header carries the base name.
func (s *Store) Upload(ctx context.Context, path string, opts ...UploadOption) (Entry, error) {
	o := uploadOptions{name: path}
	for _, opt := range opts {
		opt(&o)
	}

	src, f, err := openSource(path, o.name)
	if err != nil {
		logger.WarnCtx(ctx, "Upload source unavailable", logger.Filename(o.name), logger.Err(err))
		return Entry{}, err
	}
	defer f.Close()

	return s.Put(ctx, src)
}

// Put stores src.Size bytes read from src.Reader under src.Name.
//
// The header and payload are written first and the table row last. A failure
// midway is not rolled back: the partial blob stays on the device,
// unreferenced, and the next upload is allocated over it.
func (s *Store) Put(ctx context.Context, src Source) (entry Entry, err error) {
	start := time.Now()
	defer func() { s.observe("upload", start, err) }()

	if err := validateName(src.Name); err != nil {
		return Entry{}, err
	}

	ctx, span := telemetry.StartStoreSpan(ctx, "upload", s.path,
		telemetry.Filename(src.Name), telemetry.Size(src.Size), telemetry.FileType(src.Type.String()))
	defer span.End()
	defer func() { telemetry.RecordError(ctx, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	dev, err := s.acquire(true)
	if err != nil {
		return Entry{}, err
	}
	defer release(dev)

	entries := ReadTable(dev, s.layout)
	if len(entries) >= s.layout.MaxEntries {
		return Entry{}, &StoreError{
			Code:    CodeTableFull,
			Message: fmt.Sprintf("all %d metadata slots are in use", s.layout.MaxEntries),
			Name:    src.Name,
		}
	}

	index := len(entries)
	offset := FindNextOffset(entries, s.layout)

	capacity, err := dev.Capacity()
	if err != nil {
		return Entry{}, newDeviceError(err)
	}
	if end := offset + HeaderSize + src.Size; capacity > 0 && end > uint64(capacity) {
		return Entry{}, &StoreError{
			Code:    CodeNoSpace,
			Message: fmt.Sprintf("blob ends at %d, device holds %d bytes", end, capacity),
			Name:    src.Name,
		}
	}

	logger.DebugCtx(ctx, "Allocating blob",
		logger.Filename(src.Name), logger.Offset(offset), logger.Size(src.Size), logger.Index(index))

	hdr := BlobHeader{
		Name:      displayName(src.Name),
		Size:      src.Size,
		Type:      src.Type,
		Offset:    offset,
		Timestamp: src.Modified,
	}
	raw, _ := hdr.MarshalBinary()
	if _, err := dev.WriteAt(raw, int64(offset)); err != nil {
		return Entry{}, newWriteError(src.Name, "blob header", err)
	}

	written, err := s.copyIn(ctx, dev, src, int64(offset+HeaderSize))
	if err != nil {
		logger.WarnCtx(ctx, "Upload aborted, partial blob left on device",
			logger.Filename(src.Name), logger.Offset(offset), slog.Uint64(logger.KeyBytesWritten, written), logger.Err(err))
		return Entry{}, err
	}

	entry = Entry{
		Name:        src.Name,
		StartOffset: offset,
		Size:        src.Size,
		Modified:    src.Modified,
		Accessed:    src.Accessed,
		Created:     src.Created,
		Uploaded:    time.Now(),
	}
	if err := WriteEntry(dev, s.layout, entry, index); err != nil {
		return Entry{}, newWriteError(src.Name, "metadata entry", err)
	}
	entry.Index = uint32(index)

	if err := dev.Sync(); err != nil {
		return Entry{}, newWriteError(src.Name, "device sync", err)
	}

	elapsed := time.Since(start)
	args := []any{logger.Filename(src.Name), logger.Offset(offset), logger.Size(src.Size), logger.Index(index)}
	args = append(args, logger.Throughput(src.Size, elapsed)...)
	logger.InfoCtx(ctx, "Upload complete", args...)

	metrics.RecordStoreBytes(s.metrics, "upload", src.Size)
	metrics.SetTableState(s.metrics, index+1, entry.End())
	return entry, nil
}

// copyIn streams exactly src.Size bytes from src.Reader to dev at pos.
func (s *Store) copyIn(ctx context.Context, dev Device, src Source, pos int64) (uint64, error) {
	buf := bufpool.Get(s.chunk)
	defer bufpool.Put(buf)

	var done uint64
	for done < src.Size {
		if err := ctx.Err(); err != nil {
			return done, err
		}

		n := uint64(s.chunk)
		if left := src.Size - done; left < n {
			n = left
		}
		if _, err := io.ReadFull(src.Reader, buf[:n]); err != nil {
			return done, newSourceError(src.Name, err)
		}
		if _, err := dev.WriteAt(buf[:n], pos+int64(done)); err != nil {
			return done, newWriteError(src.Name, "payload", err)
		}
		done += n
	}
	return done, nil
}

// Download streams the payload of name to w. progress, if non-nil, is called
// after every chunk. When name is absent nothing is written to w.
func (s *Store) Download(ctx context.Context, name string, w io.Writer, progress ProgressFunc) (entry Entry, err error) {
	start := time.Now()
	defer func() { s.observe("download", start, err) }()

	ctx, span := telemetry.StartStoreSpan(ctx, "download", s.path, telemetry.Filename(name))
	defer span.End()
	defer func() { telemetry.RecordError(ctx, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	dev, err := s.acquire(false)
	if err != nil {
		return Entry{}, err
	}
	defer release(dev)

	entry, _, ok := Lookup(ReadTable(dev, s.layout), name)
	if !ok {
		return Entry{}, newNotFoundError(name)
	}

	buf := bufpool.Get(s.chunk)
	defer bufpool.Put(buf)

	pos := int64(entry.PayloadOffset())
	var done uint64
	for done < entry.Size {
		if err := ctx.Err(); err != nil {
			return entry, err
		}

		chunkStart := time.Now()
		n := uint64(s.chunk)
		if left := entry.Size - done; left < n {
			n = left
		}
		if _, err := dev.ReadAt(buf[:n], pos+int64(done)); err != nil {
			return entry, newReadError(name, "payload", err)
		}
		if _, err := w.Write(buf[:n]); err != nil {
			return entry, fmt.Errorf("download %s: write to sink: %w", name, err)
		}
		done += n

		if progress != nil {
			progress(Progress{
				Name:    name,
				Done:    done,
				Total:   entry.Size,
				Elapsed: time.Since(start),
				Rate:    bytesize.RateOf(n, time.Since(chunkStart)),
			})
		}
	}

	args := []any{logger.Filename(name), logger.Offset(entry.StartOffset), logger.Size(entry.Size)}
	args = append(args, logger.Throughput(entry.Size, time.Since(start))...)
	logger.InfoCtx(ctx, "Download complete", args...)

	metrics.RecordStoreBytes(s.metrics, "download", entry.Size)
	return entry, nil
}

// DownloadToDir writes the payload of name to dir under its base name and
// returns the created path. No file is created when name is absent, and a
// failed transfer removes the partial file.
func (s *Store) DownloadToDir(ctx context.Context, name, dir string, progress ProgressFunc) (string, error) {
	if _, err := s.Stat(ctx, name); err != nil {
		return "", err
	}

	dest := filepath.Join(dir, displayName(name))
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dest, err)
	}

	_, err = s.Download(ctx, name, f, progress)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close %s: %w", dest, cerr)
	}
	if err != nil {
		_ = os.Remove(dest)
		return "", err
	}
	return dest, nil
}

// Delete zeroes the blob stored under name and compacts the table so the
// remaining rows keep their relative order at indexes 0..n-2. The freed
// device space is not reused.
//
// A failure while rewriting the table can leave it partially compacted.
func (s *Store) Delete(ctx context.Context, name string) (err error) {
	start := time.Now()
	defer func() { s.observe("delete", start, err) }()

	ctx, span := telemetry.StartStoreSpan(ctx, "delete", s.path, telemetry.Filename(name))
	defer span.End()
	defer func() { telemetry.RecordError(ctx, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	dev, err := s.acquire(true)
	if err != nil {
		return err
	}
	defer release(dev)

	entries := ReadTable(dev, s.layout)
	entry, i, ok := Lookup(entries, name)
	if !ok {
		return newNotFoundError(name)
	}

	if err := dev.Zero(int64(entry.StartOffset), int64(HeaderSize+entry.Size)); err != nil {
		return newWriteError(name, "payload", err)
	}

	remaining := make([]Entry, 0, len(entries)-1)
	remaining = append(remaining, entries[:i]...)
	remaining = append(remaining, entries[i+1:]...)
	for j, e := range remaining {
		if err := WriteEntry(dev, s.layout, e, j); err != nil {
			return newWriteError(name, "metadata table", err)
		}
	}
	if err := ClearSlot(dev, s.layout, len(remaining)); err != nil {
		return newWriteError(name, "metadata table", err)
	}
	if err := dev.Sync(); err != nil {
		return newWriteError(name, "device sync", err)
	}

	logger.InfoCtx(ctx, "Delete complete",
		logger.Filename(name), logger.Offset(entry.StartOffset), logger.Size(entry.Size),
		slog.Int(logger.KeyEntries, len(remaining)))

	metrics.SetTableState(s.metrics, len(remaining), FindNextOffset(remaining, s.layout))
	return nil
}

// List returns the occupied table rows in index order.
func (s *Store) List(ctx context.Context) (entries []Entry, err error) {
	start := time.Now()
	defer func() { s.observe("list", start, err) }()

	_, span := telemetry.StartStoreSpan(ctx, "list", s.path)
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	dev, err := s.acquire(false)
	if err != nil {
		return nil, err
	}
	defer release(dev)

	entries = ReadTable(dev, s.layout)
	span.SetAttributes(telemetry.Entries(len(entries)))
	return entries, nil
}

// Stat returns the entry stored under name.
func (s *Store) Stat(ctx context.Context, name string) (Entry, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return Entry{}, err
	}
	e, _, ok := Lookup(entries, name)
	if !ok {
		return Entry{}, newNotFoundError(name)
	}
	return e, nil
}

// Header reads and decodes the blob header stored for name.
func (s *Store) Header(ctx context.Context, name string) (BlobHeader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dev, err := s.acquire(false)
	if err != nil {
		return BlobHeader{}, err
	}
	defer release(dev)

	entry, _, ok := Lookup(ReadTable(dev, s.layout), name)
	if !ok {
		return BlobHeader{}, newNotFoundError(name)
	}

	raw := make([]byte, HeaderSize)
	if _, err := dev.ReadAt(raw, int64(entry.StartOffset)); err != nil {
		return BlobHeader{}, newReadError(name, "blob header", err)
	}
	var hdr BlobHeader
	if err := hdr.UnmarshalBinary(raw); err != nil {
		return BlobHeader{}, newReadError(name, "blob header", err)
	}
	return hdr, nil
}

// Echo writes pattern at offset 0 and reads it back. This overwrites the head
// of table row 0.
func (s *Store) Echo(ctx context.Context, pattern []byte) (res device.EchoResult, err error) {
	start := time.Now()
	defer func() { s.observe("echo", start, err) }()

	_, span := telemetry.StartStoreSpan(ctx, "echo", s.path)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	dev, err := s.acquire(true)
	if err != nil {
		return device.EchoResult{}, err
	}
	defer release(dev)

	res, err = dev.EchoTest(pattern)
	if err != nil {
		return res, newWriteError("", "echo pattern", err)
	}
	logger.InfoCtx(ctx, "Echo test", slog.String("written", fmt.Sprintf("%x", res.Written)),
		slog.String("read_back", fmt.Sprintf("%x", res.ReadBack)), slog.Bool("match", res.Match))
	return res, nil
}

// Reset zero-fills [offset, offset+size) and verifies the region reads back
// as zeros.
func (s *Store) Reset(ctx context.Context, offset, size int64) (err error) {
	start := time.Now()
	defer func() { s.observe("reset", start, err) }()

	_, span := telemetry.StartStoreSpan(ctx, "reset", s.path, telemetry.Offset(uint64(offset)), telemetry.Size(uint64(size)))
	defer span.End()

	if offset < 0 || size < 0 {
		return newWriteError("", "reset region", fmt.Errorf("negative range [%d,+%d)", offset, size))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dev, err := s.acquire(true)
	if err != nil {
		return err
	}
	defer release(dev)

	if err := dev.ResetRegion(offset, size); err != nil {
		return newWriteError("", "reset region", err)
	}
	logger.InfoCtx(ctx, "Region reset", logger.Offset(uint64(offset)), logger.Size(uint64(size)))
	return nil
}

// Format clears the whole metadata table, leaving blob bytes in place.
func (s *Store) Format(ctx context.Context) error {
	return s.Reset(ctx, 0, s.layout.TableSize())
}
