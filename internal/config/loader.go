package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/tailscale/hujson"
)

// Defaults.
const (
	DefaultTimezone         = "Asia/Tokyo"
	DefaultStoreDriver      = "file"
	DefaultHost             = "127.0.0.1"
	DefaultPort             = 18440
	DefaultBufferSize       = 1024
	DefaultMorningOf        = "07:45"
	DefaultNightlyAt        = "21:30"
	DefaultWeeklyFirstDelay = Duration(5 * time.Second)
	DefaultWeeklyInterval   = Duration(7 * 24 * time.Hour)
)

// TokenEnv names the variable consulted when transport.token is unset.
const TokenEnv = "NUDGE_TRANSPORT_TOKEN"

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a JSONC config file, expands ${{ .Env.VAR }} templates,
// standardises it to JSON, unmarshals it into Config, and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Default returns a config with every default applied.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// Parse decodes JSONC bytes into a Config with defaults applied.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvTemplates(string(data))

	std, err := hujson.Standardize([]byte(expanded))
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(std, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the env var value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// applyDefaults fills in zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DefaultStoreDriver
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = StatePath(cfg.Store.Driver)
	}
	if cfg.Gateway.Host == "" {
		cfg.Gateway.Host = DefaultHost
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = DefaultPort
	}
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = DefaultBufferSize
	}
	if cfg.Events.LogDir == "" {
		cfg.Events.LogDir = filepath.Join(NudgePath(), "logs")
	}
	if cfg.Reminders.MorningOf == "" {
		cfg.Reminders.MorningOf = DefaultMorningOf
	}
	if cfg.Reminders.NightlyAt == "" {
		cfg.Reminders.NightlyAt = DefaultNightlyAt
	}
	if cfg.Reminders.WeeklyFirstDelay == 0 {
		cfg.Reminders.WeeklyFirstDelay = DefaultWeeklyFirstDelay
	}
	if cfg.Reminders.WeeklyInterval == 0 {
		cfg.Reminders.WeeklyInterval = DefaultWeeklyInterval
	}
	if cfg.Transport.Token == "" {
		cfg.Transport.Token = os.Getenv(TokenEnv)
	}
}
