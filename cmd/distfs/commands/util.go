package commands

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/marmos91/distfs/internal/cli/output"
	"github.com/marmos91/distfs/internal/logger"
	"github.com/marmos91/distfs/pkg/config"
	"github.com/marmos91/distfs/pkg/metrics"
	"github.com/marmos91/distfs/pkg/store"
)

// InitLogger initializes the structured logger from configuration. With
// oneShot set, logs go to stderr at WARN unless --verbose is given.
func InitLogger(cfg *config.Config, oneShot bool) error {
	loggerCfg := logger.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		Directory: cfg.Logging.Directory,
	}
	if oneShot {
		loggerCfg.Output = "stderr"
		loggerCfg.Level = "WARN"
	}
	if verbose {
		loggerCfg.Level = "DEBUG"
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// openStore builds the storage engine for the configured device.
func openStore(m metrics.StoreMetrics) (*store.Store, error) {
	return store.New(store.Config{
		DevicePath: cfg.Device.Path,
		Layout:     store.Layout{MaxEntries: cfg.Device.MaxEntries},
		ChunkSize:  int(cfg.Device.ChunkSize),
		Metrics:    m,
	})
}

// parseHexUint parses an offset such as "0x1000" or "1000" as hexadecimal.
func parseHexUint(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid hex value %q", s)
	}
	return v, nil
}

// parseHexBytes parses a pattern such as "DEADBEEF" or "de ad be ef".
func parseHexBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.Join(strings.Fields(s), "")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex pattern: %w", err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("empty pattern")
	}
	return b, nil
}

// stderrProgress returns a console progress line on stderr, or nil when
// structured output was requested.
func stderrProgress() store.ProgressFunc {
	if outputFormat != string(output.FormatTable) {
		return nil
	}
	return store.ConsoleProgress(os.Stderr)
}
