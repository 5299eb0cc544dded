package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds per-session logging context for the command server and
// per-request context for store operations.
type LogContext struct {
	SessionID string // command server session (uuid)
	Transport string // uart, spi, i2c, network, http
	Peer      string // remote address or device node of the peer
	Command   string // LIST, UPLOAD, DOWNLOAD, DELETE
	Device    string // storage device path
	StartTime time.Time
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a LogContext for a session on the given transport.
func NewLogContext(sessionID, transport, peer string) *LogContext {
	return &LogContext{
		SessionID: sessionID,
		Transport: transport,
		Peer:      peer,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// WithCommand returns a copy with the command set and the clock restarted.
func (lc *LogContext) WithCommand(command string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Command = command
		clone.StartTime = time.Now()
	}
	return clone
}

// WithDevice returns a copy with the device path set
func (lc *LogContext) WithDevice(device string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Device = device
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
