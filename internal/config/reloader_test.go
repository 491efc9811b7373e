package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func TestReloader_Current(t *testing.T) {
	cfg := &Config{}
	cfg.Gateway.Port = 9999

	r := NewReloader("", "", cfg)
	got := r.Current()
	if got.Gateway.Port != 9999 {
		t.Errorf("Current().Gateway.Port = %d, want 9999", got.Gateway.Port)
	}
}

func TestReloader_Reload(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NUDGE_PATH", dir)
	dotenvPath := filepath.Join(dir, ".env")
	configPath := filepath.Join(dir, "config.jsonc")

	if err := os.WriteFile(dotenvPath, []byte("NIGHTLY=21:00\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	configContent := `{
		"reminders": {"nightly_at": "${{ .Env.NIGHTLY }}"},
	}`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NIGHTLY", "21:00")

	initial := Default()
	r := NewReloader(configPath, dotenvPath, initial)

	var callCount atomic.Int32
	r.OnReload(func(cfg *Config) {
		callCount.Add(1)
	})

	if err := os.WriteFile(dotenvPath, []byte("NIGHTLY=22:15\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if callCount.Load() != 1 {
		t.Errorf("listener called %d times, want 1", callCount.Load())
	}
	got := r.Current()
	if got == initial {
		t.Fatal("Current() still returns initial config after reload")
	}
	if got.Reminders.NightlyAt != "22:15" {
		t.Errorf("NightlyAt = %q, want 22:15", got.Reminders.NightlyAt)
	}
}

func TestReloader_InvalidConfigKeepsCurrent(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NUDGE_PATH", dir)
	configPath := filepath.Join(dir, "config.jsonc")
	if err := os.WriteFile(configPath, []byte(`{"timezone": "Mars/Olympus"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	initial := Default()
	r := NewReloader(configPath, filepath.Join(dir, ".env"), initial)

	var called atomic.Bool
	r.OnReload(func(*Config) { called.Store(true) })

	if err := r.Reload(); err == nil {
		t.Fatal("expected validation error")
	}
	if r.Current() != initial {
		t.Error("invalid config must not replace the current one")
	}
	if called.Load() {
		t.Error("listeners must not run on failed reload")
	}
}

func TestReloader_ReloadMissingFiles(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NUDGE_PATH", dir)

	r := NewReloader(filepath.Join(dir, "config.jsonc"), filepath.Join(dir, ".env"), &Config{})
	if err := r.Reload(); err != nil {
		t.Fatalf("Reload with missing files: %v", err)
	}
	if r.Current().Timezone != DefaultTimezone {
		t.Errorf("Timezone = %q, want default", r.Current().Timezone)
	}
}
