package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_Reload(t *testing.T) {
	path := writeFile(t, "config.yaml", "device:\n  path: /dev/sdb\nlogging:\n  level: INFO\n")

	changes := make(chan *Config, 4)
	require.NoError(t, Watch(path, func(cfg *Config, err error) {
		if err != nil {
			return
		}
		select {
		case changes <- cfg:
		default:
		}
	}))

	require.NoError(t, os.WriteFile(path, []byte("device:\n  path: /dev/sdb\nlogging:\n  level: DEBUG\n"), 0644))

	select {
	case cfg := <-changes:
		assert.Equal(t, "DEBUG", cfg.Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}
}

func TestWatch_RejectsLegacy(t *testing.T) {
	path := writeFile(t, "distfs.conf", "Storage = /dev/sdb\n")
	assert.Error(t, Watch(path, func(*Config, error) {}))
}
