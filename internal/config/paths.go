package config

import (
	"os"
	"path/filepath"
)

// NudgePath returns the root directory for nudge data.
// It uses $NUDGE_PATH if set, otherwise defaults to ~/.nudge.
func NudgePath() string {
	if v := os.Getenv("NUDGE_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".nudge")
	}
	return filepath.Join(home, ".nudge")
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	return filepath.Join(NudgePath(), "config.jsonc")
}

// DotenvPath returns the path to the .env file.
func DotenvPath() string {
	return filepath.Join(NudgePath(), ".env")
}

// StatePath returns the default state location for a store driver.
func StatePath(driver string) string {
	if driver == "sqlite" {
		return filepath.Join(NudgePath(), "state.db")
	}
	return filepath.Join(NudgePath(), "state.json")
}

// HeartbeatPath returns the path of the serve heartbeat file.
func HeartbeatPath() string {
	return filepath.Join(NudgePath(), "heartbeat.json")
}
