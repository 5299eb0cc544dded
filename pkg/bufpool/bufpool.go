// Package bufpool provides reusable byte slices for the streaming paths:
// blob upload/download chunks and protocol frames.
//
// Two size classes are pooled:
//   - Chunk buffers (default 4 KiB): one device I/O chunk
//   - Frame buffers (default 64 KiB + 6): one fully framed packet
//
// Larger requests are allocated directly and never pooled.
//
// Usage:
//
//	buf := bufpool.Get(size)
//	defer bufpool.Put(buf)
package bufpool

import (
	"sync"
)

const (
	// DefaultChunkSize matches the storage engine's streaming chunk.
	DefaultChunkSize = 4 << 10

	// DefaultFrameSize fits the largest packet: 5 header bytes, a 65535
	// byte payload and the checksum.
	DefaultFrameSize = 5 + 0xFFFF + 1
)

// Pool manages byte slices in two size classes.
type Pool struct {
	chunk     sync.Pool
	frame     sync.Pool
	chunkSize int
	frameSize int
}

// Config holds configuration for a custom buffer pool.
type Config struct {
	ChunkSize int
	FrameSize int
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize: DefaultChunkSize,
		FrameSize: DefaultFrameSize,
	}
}

// NewPool creates a new buffer pool. Zero sizes fall back to the defaults.
func NewPool(cfg Config) *Pool {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.FrameSize <= cfg.ChunkSize {
		cfg.FrameSize = max(DefaultFrameSize, cfg.ChunkSize*2)
	}

	p := &Pool{
		chunkSize: cfg.ChunkSize,
		frameSize: cfg.FrameSize,
	}
	p.chunk.New = func() any {
		buf := make([]byte, p.chunkSize)
		return &buf
	}
	p.frame.New = func() any {
		buf := make([]byte, p.frameSize)
		return &buf
	}
	return p
}

// ChunkSize returns the size of the small class.
func (p *Pool) ChunkSize() int {
	return p.chunkSize
}

// Get returns a slice of length size. Its capacity may be larger. Callers
// must hand it back with Put.
func (p *Pool) Get(size int) []byte {
	var bufPtr *[]byte

	switch {
	case size <= p.chunkSize:
		bufPtr = p.chunk.Get().(*[]byte)
	case size <= p.frameSize:
		bufPtr = p.frame.Get().(*[]byte)
	default:
		return make([]byte, size)
	}

	return (*bufPtr)[:size]
}

// Put returns a buffer obtained from Get. Buffers of any other capacity are
// left to the GC.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}

	full := buf[:cap(buf)]
	switch cap(buf) {
	case p.chunkSize:
		p.chunk.Put(&full)
	case p.frameSize:
		p.frame.Put(&full)
	}
}

var globalPool = NewPool(DefaultConfig())

// Get returns a slice of length size from the global pool.
func Get(size int) []byte {
	return globalPool.Get(size)
}

// Put returns a buffer to the global pool.
func Put(buf []byte) {
	globalPool.Put(buf)
}
