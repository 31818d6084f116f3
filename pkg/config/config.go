// Package config loads the process-level TOML configuration.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration.
type Config struct {
	Helper HelperConfig `toml:"helper"`
	Log    LogConfig    `toml:"log"`
}

// HelperConfig locates the helper executable fronting the git store.
type HelperConfig struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Helper: HelperConfig{Command: "hgbridge-helper"},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads the configuration file at path, applying defaults for
// anything unset. A missing file is not an error; an unset path yields
// the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: load %s: %w", path, err)
	}
	if cfg.Helper.Command == "" {
		cfg.Helper.Command = Default().Helper.Command
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = Default().Log.Level
	}
	return cfg, nil
}
