package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/marmos91/distfs/internal/logger"
	"github.com/spf13/viper"
)

// legacyKeys maps keys of the Key = Value format to config keys.
var legacyKeys = map[string]string{
	"Storage":          "device.path",
	"NetworkHost":      "server.network.host",
	"NetworkPort":      "server.network.port",
	"EnableBackup":     "backup.enabled",
	"BackupSchedule":   "backup.schedule",
	"BackupDirectory":  "backup.directory",
	"LogDirectory":     "logging.directory",
	"LogRotationSize":  "logging.rotation_size",
	"LogRetentionDays": "logging.retention_days",
}

var legacyExtensions = map[string]bool{".conf": true, ".cfg": true, ".properties": true}

// IsLegacyFile reports whether path holds the Key = Value format: by
// extension, or because its first meaningful line is an assignment.
func IsLegacyFile(path string) bool {
	if legacyExtensions[strings.ToLower(filepath.Ext(path))] {
		return true
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, _, ok := strings.Cut(line, "=")
		if !ok {
			return false
		}
		_, known := legacyKeys[strings.TrimSpace(key)]
		return known
	}
	return false
}

// LoadLegacy reads a Key = Value file. Blank lines and lines starting with #
// are skipped, only the first word of a value is used, and unknown keys are
// ignored. Environment variables still override file values.
func LoadLegacy(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()

	v := viper.New()
	setupViper(v, "")

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		fields := strings.Fields(value)
		if !ok || key == "" || len(fields) == 0 {
			continue
		}

		target, known := legacyKeys[key]
		if !known {
			logger.Debug("Ignoring unknown config key", "key", key, "line", lineNo)
			continue
		}

		if target == "backup.enabled" {
			v.Set(target, fields[0] == "true")
			continue
		}
		v.Set(target, fields[0])
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return decode(v)
}
