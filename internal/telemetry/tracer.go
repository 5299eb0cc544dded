package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	AttrDevice    = "distfs.device"
	AttrTransport = "distfs.transport"
	AttrSessionID = "distfs.session"

	AttrCommand   = "protocol.command"
	AttrPacketLen = "protocol.payload_len"

	AttrFilename = "store.filename"
	AttrOffset   = "store.offset"
	AttrSize     = "store.size"
	AttrEntries  = "store.entries"
	AttrFileType = "store.file_type"

	AttrBackupTarget = "backup.target"
	AttrStorageKey   = "backup.key"
)

// Span name prefixes. Spans are named <component>.<operation>.
const (
	componentStore    = "store"
	componentProtocol = "protocol"
	componentBackup   = "backup"
)

func Transport(t string) attribute.KeyValue { return attribute.String(AttrTransport, t) }
func SessionID(id string) attribute.KeyValue { return attribute.String(AttrSessionID, id) }
func PacketLen(n int) attribute.KeyValue { return attribute.Int(AttrPacketLen, n) }
func Filename(name string) attribute.KeyValue { return attribute.String(AttrFilename, name) }
func Entries(n int) attribute.KeyValue { return attribute.Int(AttrEntries, n) }
func FileType(t string) attribute.KeyValue { return attribute.String(AttrFileType, t) }
func StorageKey(key string) attribute.KeyValue { return attribute.String(AttrStorageKey, key) }

// Offset and Size carry device positions, which fit int64 on any real disk.
func Offset(off uint64) attribute.KeyValue { return attribute.Int64(AttrOffset, int64(off)) }
func Size(n uint64) attribute.KeyValue { return attribute.Int64(AttrSize, int64(n)) }

func startSpan(ctx context.Context, component, op string, attrs []attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(serviceName).Start(ctx, component+"."+op, trace.WithAttributes(attrs...))
}

// StartStoreSpan starts a span for an operation on the device at path.
func StartStoreSpan(ctx context.Context, op, path string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return startSpan(ctx, componentStore, op, append([]attribute.KeyValue{attribute.String(AttrDevice, path)}, attrs...))
}

// StartRequestSpan starts a span for one packet request; op is the command name.
func StartRequestSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return startSpan(ctx, componentProtocol, op, append([]attribute.KeyValue{attribute.String(AttrCommand, op)}, attrs...))
}

// StartBackupSpan starts a span for a backup step against a target kind.
func StartBackupSpan(ctx context.Context, op, target string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return startSpan(ctx, componentBackup, op, append([]attribute.KeyValue{attribute.String(AttrBackupTarget, target)}, attrs...))
}

// RecordError marks the span in ctx as failed. A nil err is ignored.
func RecordError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
