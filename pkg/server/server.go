// Package server runs the packet command protocol on top of a Store.
//
// A session serves one transport: a UART or SPI link, or one accepted network
// connection. Sessions share the store, whose locking serializes mutations.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/distfs/internal/logger"
	"github.com/marmos91/distfs/pkg/metrics"
	"github.com/marmos91/distfs/pkg/store"
	"github.com/marmos91/distfs/pkg/transport"
)

// Defaults applied by New.
const (
	DefaultIOTimeout       = 5 * time.Second
	DefaultShutdownTimeout = 10 * time.Second

	// DataChunkSize bounds the payload of every DATA reply.
	DataChunkSize = 4 << 10
)

// Backend is the subset of *store.Store the server drives.
type Backend interface {
	List(ctx context.Context) ([]store.Entry, error)
	Upload(ctx context.Context, path string, opts ...store.UploadOption) (store.Entry, error)
	Download(ctx context.Context, name string, w io.Writer, progress store.ProgressFunc) (store.Entry, error)
	Delete(ctx context.Context, name string) error
}

// Config configures a Server.
type Config struct {
	// IOTimeout bounds each transport read and write. An idle session
	// keeps waiting after a read timeout.
	IOTimeout time.Duration

	// SpoolDir holds partial uploads. Empty means os.TempDir().
	SpoolDir string

	// MaxConnections limits concurrent network sessions. 0 means unlimited.
	MaxConnections int

	// ShutdownTimeout bounds how long Serve waits for sessions to finish.
	ShutdownTimeout time.Duration

	Metrics metrics.ProtocolMetrics
}

// Server dispatches requests from any number of sessions to a Backend.
type Server struct {
	backend Backend
	cfg     Config

	sessions  sync.WaitGroup
	active    atomic.Int32
	semaphore chan struct{}
}

// New returns a Server over backend.
func New(backend Backend, cfg Config) (*Server, error) {
	if backend == nil {
		return nil, errors.New("server: backend is required")
	}
	if cfg.IOTimeout == 0 {
		cfg.IOTimeout = DefaultIOTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.SpoolDir == "" {
		cfg.SpoolDir = os.TempDir()
	}

	s := &Server{backend: backend, cfg: cfg}
	if cfg.MaxConnections > 0 {
		s.semaphore = make(chan struct{}, cfg.MaxConnections)
	}
	return s, nil
}

// ActiveSessions returns the number of running sessions.
func (s *Server) ActiveSessions() int {
	return int(s.active.Load())
}

// Serve accepts network clients until ctx is cancelled, running one session
// per connection. It waits up to ShutdownTimeout for sessions to drain.
func (s *Server) Serve(ctx context.Context, l *transport.Listener) error {
	logger.Info("Command server listening", logger.KeyAddress, l.Addr().String())

	for {
		if s.semaphore != nil {
			select {
			case s.semaphore <- struct{}{}:
			case <-ctx.Done():
				return s.drain()
			}
		}

		t, err := l.Accept(ctx)
		if err != nil {
			s.releaseSlot()
			if ctx.Err() != nil || errors.Is(err, transport.ErrClosed) {
				return s.drain()
			}
			logger.Debug("Error accepting client", logger.Err(err))
			continue
		}

		peer := peerOf(t)
		s.sessions.Add(1)
		go func() {
			defer s.sessions.Done()
			defer s.releaseSlot()
			if err := s.ServeTransport(ctx, t, peer); err != nil {
				logger.Warn("Session ended with error", logger.KeyPeer, peer, logger.Err(err))
			}
		}()
	}
}

func (s *Server) releaseSlot() {
	if s.semaphore != nil {
		<-s.semaphore
	}
}

func (s *Server) drain() error {
	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Command server stopped")
		return nil
	case <-time.After(s.cfg.ShutdownTimeout):
		return fmt.Errorf("shutdown timeout: %d sessions still active", s.active.Load())
	}
}

func peerOf(t transport.Transport) string {
	if ra, ok := t.(interface{ RemoteAddr() net.Addr }); ok {
		return ra.RemoteAddr().String()
	}
	return string(t.Type())
}
