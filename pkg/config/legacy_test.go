package config

import (
	"path/filepath"
	"testing"
)

const legacyContent = `# dist-fs settings
Storage = /dev/sdb
NetworkHost = 192.168.1.20
NetworkPort = 9100

EnableBackup = true
BackupSchedule = daily
BackupDirectory = /mnt/backup extra words ignored
LogDirectory = /var/log/distfs
LogRotationSize = 10
LogRetentionDays = 7
Unknown = whatever
Dangling =
`

func TestLoadLegacy(t *testing.T) {
	path := writeFile(t, "distfs.conf", legacyContent)

	cfg, err := LoadLegacy(path)
	if err != nil {
		t.Fatalf("LoadLegacy failed: %v", err)
	}

	if cfg.Device.Path != "/dev/sdb" {
		t.Errorf("Storage: got %q", cfg.Device.Path)
	}
	if cfg.Server.Network.Host != "192.168.1.20" || cfg.Server.Network.Port != 9100 {
		t.Errorf("Network: got %s:%d", cfg.Server.Network.Host, cfg.Server.Network.Port)
	}
	if !cfg.Backup.Enabled || cfg.Backup.Schedule != "daily" {
		t.Errorf("Backup: got %+v", cfg.Backup)
	}
	if cfg.Backup.Directory != "/mnt/backup" {
		t.Errorf("Expected only the first word of the value, got %q", cfg.Backup.Directory)
	}
	if cfg.Logging.Directory != "/var/log/distfs" || cfg.Logging.RotationSize != 10 || cfg.Logging.RetentionDays != 7 {
		t.Errorf("Logging: got %+v", cfg.Logging)
	}
	if cfg.Device.MaxEntries != 1024 {
		t.Errorf("Expected defaults applied, got max_entries %d", cfg.Device.MaxEntries)
	}
}

func TestLoadLegacy_EnableBackupIsStrict(t *testing.T) {
	path := writeFile(t, "distfs.cfg", "Storage = /dev/sdb\nEnableBackup = yes\n")

	cfg, err := LoadLegacy(path)
	if err != nil {
		t.Fatalf("LoadLegacy failed: %v", err)
	}
	if cfg.Backup.Enabled {
		t.Error("Only the literal 'true' enables backups")
	}
}

func TestLoad_DetectsLegacy(t *testing.T) {
	// No legacy extension: detected by content.
	path := writeFile(t, "distfs.settings", legacyContent)

	if !IsLegacyFile(path) {
		t.Fatal("Expected Key = Value content to be detected")
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Network.Port != 9100 {
		t.Errorf("Expected legacy port 9100, got %d", cfg.Server.Network.Port)
	}
}

func TestIsLegacyFile(t *testing.T) {
	yamlPath := writeFile(t, "config.yaml", "device:\n  path: /dev/sdb\n")
	if IsLegacyFile(yamlPath) {
		t.Error("YAML file detected as legacy")
	}
	if !IsLegacyFile("/nonexistent/distfs.properties") {
		t.Error("Legacy extension not detected")
	}
	if IsLegacyFile("/nonexistent/config") {
		t.Error("Unreadable file without extension detected as legacy")
	}
}

func TestLoadLegacy_Missing(t *testing.T) {
	if _, err := LoadLegacy("/nonexistent/distfs.conf"); err == nil {
		t.Fatal("Expected error for missing legacy file")
	}
}

func TestLoadLegacy_LogRetentionSurvivesMigration(t *testing.T) {
	cfg, err := LoadLegacy(writeFile(t, "distfs.conf", legacyContent))
	if err != nil {
		t.Fatalf("LoadLegacy failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load migrated config: %v", err)
	}
	if loaded.Logging.RotationSize != 10 || loaded.Logging.RetentionDays != 7 {
		t.Errorf("Legacy log settings lost in migration: %+v", loaded.Logging)
	}
}
