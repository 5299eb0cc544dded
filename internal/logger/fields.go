package logger

import (
	"log/slog"
	"time"
)

// Standard field keys for structured logging. Use these consistently so log
// lines from the store, the command server and the HTTP API can be joined.
const (
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Command layer
	KeySessionID = "session_id"
	KeyTransport = "transport"
	KeyPeer      = "peer"
	KeyCommand   = "command"
	KeyPacketLen = "packet_len"
	KeyChecksum  = "checksum"

	// Storage engine
	KeyDevice     = "device"
	KeyFilename   = "filename"
	KeyOffset     = "offset"
	KeySize       = "size"
	KeyIndex      = "index"
	KeyEntries    = "entries"
	KeyMaxEntries = "max_entries"
	KeyFileType   = "file_type"

	// Transfer accounting
	KeyBytesRead    = "bytes_read"
	KeyBytesWritten = "bytes_written"
	KeyBytesLeft    = "bytes_left"
	KeyBPS          = "bps"
	KeyMBPS         = "mbps"

	// Backup
	KeyTarget = "target"
	KeyBucket = "bucket"
	KeyKey    = "key"

	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrorCode  = "error_code"
	KeyOperation  = "operation"
	KeyPath       = "path"
	KeyAddress    = "address"
)

// Filename returns a slog.Attr for a stored blob name
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// Offset returns a slog.Attr for a device offset
func Offset(off uint64) slog.Attr {
	return slog.Uint64(KeyOffset, off)
}

// Size returns a slog.Attr for a payload size in bytes
func Size(n uint64) slog.Attr {
	return slog.Uint64(KeySize, n)
}

// Index returns a slog.Attr for a metadata table index
func Index(i int) slog.Attr {
	return slog.Int(KeyIndex, i)
}

// Throughput returns the bps and mbps attributes for n bytes moved in d.
func Throughput(n uint64, d time.Duration) []any {
	secs := d.Seconds()
	if secs <= 0 {
		return []any{KeyBPS, uint64(0), KeyMBPS, 0.0}
	}
	bps := float64(n) / secs
	return []any{KeyBPS, uint64(bps), KeyMBPS, bps / (1024 * 1024)}
}

// Err returns a slog.Attr for an error. A nil error yields an empty attr
// that handlers drop.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// DurationMs returns a slog.Attr with the elapsed milliseconds since start.
func DurationMs(start time.Time) slog.Attr {
	return slog.Float64(KeyDurationMs, float64(time.Since(start).Microseconds())/1000)
}
