package telemetry

import "github.com/marmos91/distfs/pkg/config"

// Config selects the observability backends brought up by Start.
type Config struct {
	// Version is reported as service.version on traces and as a profile tag.
	Version string

	// Device is the block device served by this process. It is attached to
	// the trace resource and the profile tags so several boards can share
	// one collector.
	Device string

	Tracing   TracingConfig
	Profiling ProfilingConfig
}

// TracingConfig configures the OTLP/gRPC span exporter.
type TracingConfig struct {
	Enabled    bool
	Endpoint   string // host:port of the collector
	Insecure   bool
	SampleRate float64
}

// ProfilingConfig configures Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled      bool
	Endpoint     string // Pyroscope server URL
	ProfileTypes []string
}

// FromConfig maps the telemetry section of the process configuration.
func FromConfig(c config.TelemetryConfig, version, device string) Config {
	return Config{
		Version: version,
		Device:  device,
		Tracing: TracingConfig{
			Enabled:    c.Enabled,
			Endpoint:   c.Endpoint,
			Insecure:   c.Insecure,
			SampleRate: c.SampleRate,
		},
		Profiling: ProfilingConfig{
			Enabled:      c.Profiling.Enabled,
			Endpoint:     c.Profiling.Endpoint,
			ProfileTypes: c.Profiling.ProfileTypes,
		},
	}
}
