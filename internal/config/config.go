// Copyright (c) 2025 GPTStir Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for stir-tui.
//
// Configuration lives in TOML at ~/.stir/config.toml, with built-in
// defaults and environment variable overrides:
//   - STIR_CONFIG       path to an alternate config file
//   - STIR_SERVER_URL   backend base URL
//   - STIR_STORAGE_PATH credential store directory
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/gptstir/stir-tui/internal/util"
)

// Config is the complete stir-tui configuration.
type Config struct {
	// ServerURL is the base URL of the GPTStir backend proxy.
	ServerURL string `toml:"server_url"`

	// RequestTimeoutSecs bounds ordinary API calls.
	RequestTimeoutSecs int `toml:"request_timeout_secs"`

	// SendTimeoutSecs bounds chat sends, which wait on model inference.
	SendTimeoutSecs int `toml:"send_timeout_secs"`

	// LoginTimeoutSecs bounds the credential exchange.
	LoginTimeoutSecs int `toml:"login_timeout_secs"`

	// VerifyTimeoutSecs bounds the startup token verification.
	VerifyTimeoutSecs int `toml:"verify_timeout_secs"`

	Storage StorageConfig `toml:"storage"`
	UI      UIConfig      `toml:"ui"`
}

// StorageConfig configures local persistence.
type StorageConfig struct {
	// Path is the credential store directory (empty = ~/.stir).
	Path string `toml:"path"`
}

// UIConfig contains UI preferences.
type UIConfig struct {
	// Markdown enables glamour rendering of assistant replies.
	Markdown bool `toml:"markdown"`
	// Mouse enables mouse support (wheel scrolling in the chat pane).
	Mouse bool `toml:"mouse"`
	// DefaultModelName/-Type preselect a model in the picker.
	DefaultModelName string `toml:"default_model_name"`
	DefaultModelType string `toml:"default_model_type"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ServerURL:          "http://localhost:8080",
		RequestTimeoutSecs: 30,
		SendTimeoutSecs:    120,
		LoginTimeoutSecs:   15,
		VerifyTimeoutSecs:  10,
		Storage:            StorageConfig{},
		UI: UIConfig{
			Markdown:         true,
			Mouse:            true,
			DefaultModelName: "gpt-3.5-turbo",
			DefaultModelType: "openai",
		},
	}
}

// RequestTimeout returns RequestTimeoutSecs as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}

// SendTimeout returns SendTimeoutSecs as a duration.
func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutSecs) * time.Second
}

// LoginTimeout returns LoginTimeoutSecs as a duration.
func (c *Config) LoginTimeout() time.Duration {
	return time.Duration(c.LoginTimeoutSecs) * time.Second
}

// VerifyTimeout returns VerifyTimeoutSecs as a duration.
func (c *Config) VerifyTimeout() time.Duration {
	return time.Duration(c.VerifyTimeoutSecs) * time.Second
}

// StoragePath returns the credential store directory, resolving the
// default under the user's home.
func (c *Config) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	return ConfigDir()
}

// =============================================================================
// Paths
// =============================================================================

// ConfigDir returns the stir configuration directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".stir"), nil
}

// ConfigPath returns the config file path, honoring STIR_CONFIG.
func ConfigPath() (string, error) {
	if path := os.Getenv("STIR_CONFIG"); path != "" {
		return path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// Load / Save
// =============================================================================

// Load reads the config file, applies env overrides and validates. A
// missing file yields the defaults, not an error.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if u := os.Getenv("STIR_SERVER_URL"); u != "" {
		c.ServerURL = u
	}
	if p := os.Getenv("STIR_STORAGE_PATH"); p != "" {
		c.Storage.Path = p
	}
}

// Save writes the configuration atomically with 0600 permissions.
func Save(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# stir-tui configuration file\n")
	buf.WriteString("# Generated by stir-tui - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// =============================================================================
// Validation
// =============================================================================

// clampSecs bounds a timeout field to a sane window. Zero means unset and
// takes the fallback.
func clampSecs(v, min, max, fallback int) int {
	if v == 0 {
		return fallback
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Validate checks the configuration, clamping out-of-range timeouts and
// rejecting an unusable server URL.
func (c *Config) Validate() error {
	c.ServerURL = strings.TrimSuffix(strings.TrimSpace(c.ServerURL), "/")
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid server_url %q", c.ServerURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server_url must be http or https, got %q", u.Scheme)
	}

	def := Default()
	c.RequestTimeoutSecs = clampSecs(c.RequestTimeoutSecs, 1, 600, def.RequestTimeoutSecs)
	c.SendTimeoutSecs = clampSecs(c.SendTimeoutSecs, 1, 600, def.SendTimeoutSecs)
	c.LoginTimeoutSecs = clampSecs(c.LoginTimeoutSecs, 1, 120, def.LoginTimeoutSecs)
	c.VerifyTimeoutSecs = clampSecs(c.VerifyTimeoutSecs, 1, 120, def.VerifyTimeoutSecs)

	if c.UI.DefaultModelName == "" {
		c.UI.DefaultModelName = def.UI.DefaultModelName
		c.UI.DefaultModelType = def.UI.DefaultModelType
	}
	return nil
}

// =============================================================================
// Global accessor
// =============================================================================

var (
	globalMu     sync.RWMutex
	globalConfig = Default()
)

// Global returns the process-wide configuration.
func Global() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}

// SetGlobal replaces the process-wide configuration.
func SetGlobal(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig = cfg
}
