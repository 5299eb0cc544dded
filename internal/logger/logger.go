// Package logger is the process-wide structured logger of distfs. It wraps
// log/slog with a coloured text handler for terminals, a JSON handler for
// collectors, and helpers that stamp session and trace fields taken from a
// context.Context.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"
)

// Config holds logger configuration.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or file path

	// Directory, when set and Output is a bare file name, is joined with Output.
	Directory string
}

// sink is where records go and how they are rendered.
type sink struct {
	w      io.Writer
	closer io.Closer
	color  bool
	json   bool
}

var (
	// level is shared by every handler, so SetLevel needs no rebuild.
	level slog.LevelVar

	mu      sync.Mutex // serialises sink changes
	current sink

	active atomic.Pointer[slog.Logger]
)

func init() {
	current = sink{w: os.Stdout, color: isTerminal(os.Stdout.Fd())}
	install(current)
}

// install builds a logger for s and makes it active. Callers hold mu, except
// init.
func install(s sink) {
	opts := &slog.HandlerOptions{Level: &level}
	var h slog.Handler
	if s.json {
		h = slog.NewJSONHandler(s.w, opts)
	} else {
		h = NewColorTextHandler(s.w, opts, s.color)
	}
	active.Store(slog.New(h))
}

// ParseLevel converts a level name into a slog.Level. Unknown names map to
// slog.LevelInfo and ok=false.
func ParseLevel(s string) (lvl slog.Level, ok bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// Init applies cfg. Empty fields leave the current setting alone.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	next := current
	if cfg.Output != "" {
		w, color, c, err := openOutput(cfg.Output, cfg.Directory)
		if err != nil {
			return err
		}
		next.w, next.color, next.closer = w, color, c
	}
	if cfg.Format != "" {
		if json, ok := parseFormat(cfg.Format); ok {
			next.json = json
		}
	}
	if cfg.Level != "" {
		if lvl, ok := ParseLevel(cfg.Level); ok {
			level.Set(lvl)
		}
	}

	swap(next)
	return nil
}

// swap installs next and closes the previous file output if it changed.
func swap(next sink) {
	prev := current.closer
	current = next
	install(next)
	if prev != nil && prev != next.closer {
		_ = prev.Close()
	}
}

func parseFormat(format string) (json bool, ok bool) {
	switch strings.ToLower(format) {
	case "json":
		return true, true
	case "text":
		return false, true
	}
	return false, false
}

func openOutput(target, dir string) (io.Writer, bool, io.Closer, error) {
	switch strings.ToLower(target) {
	case "stdout":
		return os.Stdout, isTerminal(os.Stdout.Fd()), nil, nil
	case "stderr":
		return os.Stderr, isTerminal(os.Stderr.Fd()), nil, nil
	}

	path := target
	if dir != "" && filepath.Base(path) == path {
		path = filepath.Join(dir, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, false, nil, fmt.Errorf("create log directory for %q: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, false, nil, fmt.Errorf("open log file %q: %w", path, err)
	}
	return f, false, f, nil
}

// InitWithWriter points the logger at w. Used by tests and by the CLI when
// progress output shares the terminal.
func InitWithWriter(w io.Writer, lvl, format string, enableColor bool) {
	mu.Lock()
	defer mu.Unlock()

	next := sink{w: w, color: enableColor, json: current.json}
	if json, ok := parseFormat(format); ok {
		next.json = json
	}
	if l, ok := ParseLevel(lvl); ok {
		level.Set(l)
	}
	swap(next)
}

// SetLevel sets the minimum log level. Invalid names are ignored.
func SetLevel(name string) {
	if lvl, ok := ParseLevel(name); ok {
		level.Set(lvl)
	}
}

// GetLevel returns the active minimum level.
func GetLevel() slog.Level {
	return level.Level()
}

// SetFormat switches between text and json. Other values are ignored.
func SetFormat(format string) {
	json, ok := parseFormat(format)
	if !ok {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	next := current
	next.json = json
	swap(next)
}

func log(ctx context.Context, lvl slog.Level, msg string, args []any) {
	if ctx == nil {
		ctx = context.Background()
	}
	l := active.Load()
	if !l.Enabled(ctx, lvl) {
		return
	}
	l.Log(ctx, lvl, msg, appendContextFields(ctx, args)...)
}

// Debug logs at debug level with alternating key/value pairs or slog.Attrs.
func Debug(msg string, args ...any) { log(context.Background(), slog.LevelDebug, msg, args) }
func Info(msg string, args ...any) { log(context.Background(), slog.LevelInfo, msg, args) }
func Warn(msg string, args ...any) { log(context.Background(), slog.LevelWarn, msg, args) }
func Error(msg string, args ...any) { log(context.Background(), slog.LevelError, msg, args) }

// DebugCtx logs at debug level, prepending the session fields stored in ctx
// and the ids of the active span.
func DebugCtx(ctx context.Context, msg string, args ...any) {
	log(ctx, slog.LevelDebug, msg, args)
}
func InfoCtx(ctx context.Context, msg string, args ...any) { log(ctx, slog.LevelInfo, msg, args) }
func WarnCtx(ctx context.Context, msg string, args ...any) { log(ctx, slog.LevelWarn, msg, args) }
func ErrorCtx(ctx context.Context, msg string, args ...any) {
	log(ctx, slog.LevelError, msg, args)
}

func appendContextFields(ctx context.Context, args []any) []any {
	var fields []any

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields, KeyTraceID, sc.TraceID().String(), KeySpanID, sc.SpanID().String())
	}

	if lc := FromContext(ctx); lc != nil {
		for _, kv := range [...]struct{ key, val string }{
			{KeySessionID, lc.SessionID},
			{KeyTransport, lc.Transport},
			{KeyPeer, lc.Peer},
			{KeyCommand, lc.Command},
			{KeyDevice, lc.Device},
		} {
			if kv.val != "" {
				fields = append(fields, kv.key, kv.val)
			}
		}
	}

	if len(fields) == 0 {
		return args
	}
	return append(fields, args...)
}
