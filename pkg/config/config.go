package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/marmos91/distfs/internal/bytesize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the distfs configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (DISTFS_*)
//  3. Configuration file (YAML, or the legacy Key = Value format)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry tracing and Pyroscope profiling
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Metrics contains Prometheus metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Device describes the raw storage device
	Device DeviceConfig `mapstructure:"device" yaml:"device"`

	// Server configures the packet command server
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// API configures the HTTP front-end
	API APIConfig `mapstructure:"api" yaml:"api"`

	// Backup configures periodic copies of stored files
	Backup BackupConfig `mapstructure:"backup" yaml:"backup"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`

	// Directory is joined with Output when Output is a bare file name
	Directory string `mapstructure:"directory" yaml:"directory,omitempty"`

	// RotationSize is accepted for compatibility with legacy configs
	// (LogRotationSize). Log files are not rotated.
	RotationSize int `mapstructure:"rotation_size" validate:"gte=0" yaml:"rotation_size,omitempty"`

	// RetentionDays is accepted for compatibility with legacy configs
	// (LogRetentionDays). Nothing is pruned.
	RetentionDays int `mapstructure:"retention_days" validate:"gte=0" yaml:"retention_days,omitempty"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server URL
	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	// Valid values: cpu, alloc_objects, alloc_space, inuse_objects, inuse_space,
	//               goroutines, mutex_count, mutex_duration, block_count, block_duration
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures Prometheus metrics.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint when the API is disabled
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// DeviceConfig describes the raw storage device.
type DeviceConfig struct {
	// Path is the block device or image file, e.g. /dev/sdb
	Path string `mapstructure:"path" validate:"required" yaml:"path"`

	// MaxEntries is the number of metadata table slots. Changing it on a
	// device that already holds files makes them unreadable.
	// Default: 1024
	MaxEntries int `mapstructure:"max_entries" validate:"gte=1" yaml:"max_entries"`

	// ChunkSize is the streaming chunk for uploads and downloads
	// Supports human-readable formats: "4KiB", "64KiB"
	// Default: 4KiB
	ChunkSize bytesize.ByteSize `mapstructure:"chunk_size" yaml:"chunk_size,omitempty"`
}

// ServerConfig configures the packet command server.
type ServerConfig struct {
	Transport TransportConfig `mapstructure:"transport" yaml:"transport"`

	// Network is used when the transport type is network
	Network NetworkConfig `mapstructure:"network" yaml:"network"`

	// IOTimeout bounds each transport read and write
	// Default: 5s
	IOTimeout time.Duration `mapstructure:"io_timeout" validate:"gt=0" yaml:"io_timeout"`

	// MaxConnections limits concurrent network sessions. 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"gte=0" yaml:"max_connections"`

	// SpoolDir holds partial uploads
	SpoolDir string `mapstructure:"spool_dir" yaml:"spool_dir,omitempty"`
}

// TransportConfig selects the link the command server speaks over.
type TransportConfig struct {
	// Type is one of uart, spi, i2c, network
	Type string `mapstructure:"type" validate:"required,oneof=uart spi i2c network" yaml:"type"`

	// Device is the device node for uart, spi and i2c
	Device string `mapstructure:"device" validate:"required_unless=Type network" yaml:"device,omitempty"`

	// BaudRate for uart. Default: 115200
	BaudRate int `mapstructure:"baud_rate" validate:"gte=0" yaml:"baud_rate,omitempty"`

	// SPI settings
	SPIMode        uint8  `mapstructure:"spi_mode" validate:"lte=3" yaml:"spi_mode,omitempty"`
	SPIBitsPerWord uint8  `mapstructure:"spi_bits_per_word" yaml:"spi_bits_per_word,omitempty"`
	SPISpeedHz     uint32 `mapstructure:"spi_speed_hz" yaml:"spi_speed_hz,omitempty"`
}

// NetworkConfig is the TCP endpoint of the command server.
type NetworkConfig struct {
	// Host is the address to bind
	// Default: 0.0.0.0
	Host string `mapstructure:"host" validate:"required" yaml:"host"`

	// Port is the TCP port
	// Default: 9000
	Port int `mapstructure:"port" validate:"min=1,max=65535" yaml:"port"`
}

// APIConfig configures the HTTP front-end.
type APIConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// RequestTimeout bounds a whole request, uploads and downloads included
	// Default: 5m
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// BackupConfig configures periodic backups.
type BackupConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Schedule is hourly, daily, weekly, or a Go duration such as "30m"
	// Default: daily
	Schedule string `mapstructure:"schedule" validate:"required" yaml:"schedule"`

	// Directory receives backups when no S3 bucket is configured
	Directory string `mapstructure:"directory" yaml:"directory,omitempty"`

	// ManifestDir holds the record of already copied files
	ManifestDir string `mapstructure:"manifest_dir" yaml:"manifest_dir,omitempty"`

	// S3 sends backups to a bucket instead of a directory
	S3 S3Config `mapstructure:"s3" yaml:"s3,omitempty"`
}

// S3Config configures the S3 backup target.
type S3Config struct {
	Bucket string `mapstructure:"bucket" yaml:"bucket,omitempty"`
	Region string `mapstructure:"region" yaml:"region,omitempty"`
	Prefix string `mapstructure:"prefix" yaml:"prefix,omitempty"`

	// Endpoint overrides the S3 endpoint, for MinIO or Localstack
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`

	// Static credentials. When empty the default AWS credential chain is used.
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`

	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DISTFS_*)
//  2. Configuration file
//  3. Default values
//
// Files in the legacy Key = Value format are detected and read with
// LoadLegacy.
func Load(configPath string) (*Config, error) {
	if configPath != "" && IsLegacyFile(configPath) {
		return LoadLegacy(configPath)
	}

	v := viper.New()
	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	// If no config file was found, use defaults
	if !configFileFound {
		return GetDefaultConfig(), nil
	}

	return decode(v)
}

// decode unmarshals, defaults and validates what v holds.
func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks if the config file exists and provides user-friendly instructions if not.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  distfs init\n\n"+
				"Or specify a custom config file:\n"+
				"  distfs <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  distfs init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// S3 secrets may live here.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: DISTFS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DISTFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, reflect.TypeOf(Config{}), "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// bindEnvs registers every config key with viper so environment variables
// apply even when the file does not mention the key.
func bindEnvs(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, f.Type, key)
			continue
		}
		_ = v.BindEnv(key)
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and integers to bytesize.ByteSize, so
// config files can say "4KiB" or "64KB".
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "30s" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "distfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "distfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
