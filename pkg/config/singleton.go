package config

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// globalConfig holds the process configuration.
	globalConfig *Config

	// configMutex protects globalConfig.
	configMutex sync.RWMutex
)

// ErrNotInitialized is returned by Initialize callers that need a config
// before one has been loaded.
var ErrNotInitialized = errors.New("configuration not initialized")

// Initialize loads configuration from path with environment overrides and
// installs it as the process configuration. A second call replaces the
// first only if loading succeeds.
func Initialize(path string) error {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return err
	}
	SetConfig(cfg)
	return nil
}

// GetConfig returns the process configuration, or nil before Initialize.
func GetConfig() *Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// SetConfig installs cfg as the process configuration. Tests use it to
// inject a config without touching the filesystem.
func SetConfig(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = cfg
}

// ReloadConfig reloads configuration from path. On failure the current
// configuration is kept.
func ReloadConfig(path string) error {
	if err := Initialize(path); err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}
	return nil
}

// MustGetConfig returns the process configuration and panics when it has
// not been initialized.
func MustGetConfig() *Config {
	cfg := GetConfig()
	if cfg == nil {
		panic(ErrNotInitialized)
	}
	return cfg
}
