package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/distfs/internal/bytesize"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values (0, "", false, nil) are replaced with defaults; explicit values
// are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyMetricsDefaults(&cfg.Metrics)
	applyDeviceDefaults(&cfg.Device)
	applyServerDefaults(&cfg.Server)
	applyAPIDefaults(&cfg.API)
	applyBackupDefaults(&cfg.Backup)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{"cpu", "alloc_space", "inuse_space"}
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyDeviceDefaults(cfg *DeviceConfig) {
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = 1024
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = bytesize.ByteSize(4 * bytesize.KiB)
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Transport.Type == "" {
		cfg.Transport.Type = "network"
	}
	cfg.Transport.Type = strings.ToLower(cfg.Transport.Type)

	switch cfg.Transport.Type {
	case "uart":
		if cfg.Transport.BaudRate == 0 {
			cfg.Transport.BaudRate = 115200
		}
	case "spi":
		if cfg.Transport.SPIBitsPerWord == 0 {
			cfg.Transport.SPIBitsPerWord = 8
		}
		if cfg.Transport.SPISpeedHz == 0 {
			cfg.Transport.SPISpeedHz = 500000
		}
	}

	if cfg.Network.Host == "" {
		cfg.Network.Host = "0.0.0.0"
	}
	if cfg.Network.Port == 0 {
		cfg.Network.Port = 9000
	}
	if cfg.IOTimeout == 0 {
		cfg.IOTimeout = 5 * time.Second
	}
}

// applyAPIDefaults sets HTTP front-end defaults.
func applyAPIDefaults(cfg *APIConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 5 * time.Minute
	}
}

func applyBackupDefaults(cfg *BackupConfig) {
	if cfg.Schedule == "" {
		cfg.Schedule = "daily"
	}
	if cfg.ManifestDir == "" {
		cfg.ManifestDir = filepath.Join(getConfigDir(), "backup-manifest")
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Device: DeviceConfig{
			Path: "/dev/sdb",
		},
		API: APIConfig{
			Enabled: true,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
