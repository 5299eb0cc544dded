package transport

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/marmos91/distfs/internal/logger"
)

// Driver opens a transport for cfg.
type Driver func(ctx context.Context, cfg Config) (Transport, error)

// Registry maps transport types to drivers.
type Registry struct {
	mu      sync.RWMutex
	drivers map[Type]Driver
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[Type]Driver)}
}

// DefaultRegistry returns a registry with every driver this platform
// supports: network and I2C everywhere, UART and SPI on Linux.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TypeNetwork, openNetwork)
	r.Register(TypeI2C, openI2C)
	registerPlatformDrivers(r)
	return r
}

// Register installs d for t, replacing any previous driver.
func (r *Registry) Register(t Type, d Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[t] = d
}

// Types lists the registered types in sorted order.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]Type, 0, len(r.drivers))
	for t := range r.drivers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Open initializes the driver registered for cfg.Type.
func (r *Registry) Open(ctx context.Context, cfg Config) (Transport, error) {
	r.mu.RLock()
	d, ok := r.drivers[cfg.Type]
	r.mu.RUnlock()

	if !ok || d == nil {
		return nil, fmt.Errorf("%w: %q", ErrDriverNotFound, cfg.Type)
	}

	t, err := d(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.DebugCtx(ctx, "Transport opened", logger.KeyTransport, string(cfg.Type))
	return t, nil
}
