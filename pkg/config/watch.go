package config

import (
	"errors"

	"github.com/fsnotify/fsnotify"
	"github.com/marmos91/distfs/internal/logger"
	"github.com/spf13/viper"
)

// Watch calls onChange with the reloaded configuration every time the file
// at configPath is written. A reload that fails validation is passed as err
// and the previous configuration stays in effect. Legacy files cannot be
// watched.
func Watch(configPath string, onChange func(cfg *Config, err error)) error {
	if configPath == "" {
		configPath = GetDefaultConfigPath()
	}
	if IsLegacyFile(configPath) {
		return errors.New("legacy configuration files cannot be watched")
	}

	v := viper.New()
	setupViper(v, configPath)
	if _, err := readConfigFile(v); err != nil {
		return err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		logger.Info("Configuration changed", logger.KeyPath, e.Name)
		onChange(decode(v))
	})
	v.WatchConfig()
	return nil
}
