package telemetry

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/marmos91/distfs/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// recordSpans installs an in-memory provider for the duration of the test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func attrMap(kvs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}

func TestStartNothingEnabled(t *testing.T) {
	shutdown, err := Start(context.Background(), Config{Version: "test"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartBadProfileType(t *testing.T) {
	shutdown, err := Start(context.Background(), Config{
		Profiling: ProfilingConfig{Enabled: true, Endpoint: "http://127.0.0.1:1", ProfileTypes: []string{"heap"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"heap"`)
	require.NotNil(t, shutdown)
}

func TestFromConfig(t *testing.T) {
	c := config.TelemetryConfig{
		Enabled:    true,
		Endpoint:   "collector:4317",
		Insecure:   true,
		SampleRate: 0.25,
		Profiling: config.ProfilingConfig{
			Enabled:      true,
			Endpoint:     "http://pyroscope:4040",
			ProfileTypes: []string{"cpu"},
		},
	}

	got := FromConfig(c, "1.2.3", "/dev/sdb")
	assert.Equal(t, "1.2.3", got.Version)
	assert.Equal(t, "/dev/sdb", got.Device)
	assert.Equal(t, TracingConfig{Enabled: true, Endpoint: "collector:4317", Insecure: true, SampleRate: 0.25}, got.Tracing)
	assert.Equal(t, []string{"cpu"}, got.Profiling.ProfileTypes)
	assert.True(t, got.Profiling.Enabled)
}

func TestParseProfileTypes(t *testing.T) {
	prev := runtime.SetMutexProfileFraction(-1)
	t.Cleanup(func() { runtime.SetMutexProfileFraction(prev) })

	types, err := parseProfileTypes([]string{"cpu", "inuse_space", "mutex_count"})
	require.NoError(t, err)
	assert.Len(t, types, 3)
	assert.Equal(t, contentionRate, runtime.SetMutexProfileFraction(-1))

	_, err = parseProfileTypes([]string{"cpu", "bogus"})
	assert.Error(t, err)

	types, err = parseProfileTypes(nil)
	require.NoError(t, err)
	assert.Empty(t, types)
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
	assert.Contains(t, sampler(0.5).Description(), "ParentBased")
}

func TestStoreSpan(t *testing.T) {
	rec := recordSpans(t)

	_, span := StartStoreSpan(context.Background(), "upload", "/dev/sdb",
		Filename("CantinaBand3.wav"), Size(6180), Offset(524288))
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "store.upload", spans[0].Name())

	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "/dev/sdb", attrs[AttrDevice].AsString())
	assert.Equal(t, "CantinaBand3.wav", attrs[AttrFilename].AsString())
	assert.Equal(t, int64(6180), attrs[AttrSize].AsInt64())
	assert.Equal(t, int64(524288), attrs[AttrOffset].AsInt64())
}

func TestRequestSpan(t *testing.T) {
	rec := recordSpans(t)

	_, span := StartRequestSpan(context.Background(), "DOWNLOAD",
		SessionID("s1"), Transport("uart"), PacketLen(16))
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "protocol.DOWNLOAD", spans[0].Name())

	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "DOWNLOAD", attrs[AttrCommand].AsString())
	assert.Equal(t, "s1", attrs[AttrSessionID].AsString())
	assert.Equal(t, "uart", attrs[AttrTransport].AsString())
	assert.Equal(t, int64(16), attrs[AttrPacketLen].AsInt64())
}

func TestBackupSpanRecordError(t *testing.T) {
	rec := recordSpans(t)

	ctx, span := StartBackupSpan(context.Background(), "put", "s3", StorageKey("distfs/a.wav"))
	RecordError(ctx, nil)
	RecordError(ctx, errors.New("bucket gone"))
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "backup.put", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "bucket gone", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)

	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "s3", attrs[AttrBackupTarget].AsString())
	assert.Equal(t, "distfs/a.wav", attrs[AttrStorageKey].AsString())
}

func TestSpansBeforeStartAreNoops(t *testing.T) {
	require.NotPanics(t, func() {
		ctx, span := StartStoreSpan(context.Background(), "list", "/dev/null", Entries(0))
		RecordError(ctx, errors.New("ignored"))
		span.End()
	})
}
