package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("QUAIL_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if cfg.Server.URL != "http://localhost:8000/api/chat" {
		t.Errorf("Server.URL = %q", cfg.Server.URL)
	}
	if cfg.Timeout() != 15*time.Second {
		t.Errorf("Timeout() = %v, want 15s", cfg.Timeout())
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("QUAIL_HOME", dir)

	content := `
[server]
url = "http://chat.example.com/api/chat"
timeout_seconds = 30

[poll]
active_seconds = 1
roster_seconds = 10
`
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if cfg.Server.URL != "http://chat.example.com/api/chat" {
		t.Errorf("Server.URL = %q", cfg.Server.URL)
	}
	if cfg.Timeout() != 30*time.Second {
		t.Errorf("Timeout() = %v, want 30s", cfg.Timeout())
	}

	iv := cfg.Intervals()
	if iv.Active != time.Second {
		t.Errorf("Intervals().Active = %v, want 1s", iv.Active)
	}
	if iv.Roster != 10*time.Second {
		t.Errorf("Intervals().Roster = %v, want 10s", iv.Roster)
	}
	// Unset intervals fall back to defaults.
	if iv.Unread != 3*time.Second {
		t.Errorf("Intervals().Unread = %v, want default 3s", iv.Unread)
	}
}

func TestLoadBadToml(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("not [valid toml"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load() with invalid toml = nil, want error")
	}
}

func TestQuailHomeEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("QUAIL_HOME", dir)

	if got := DefaultHome(); got != dir {
		t.Errorf("DefaultHome() = %q, want %q", got, dir)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.StatePath(); got != filepath.Join(dir, "state.db") {
		t.Errorf("StatePath() = %q", got)
	}
}

func TestIntervalsNonPositiveFallBack(t *testing.T) {
	cfg := &Config{Poll: PollConfig{ActiveSeconds: -1}}
	iv := cfg.Intervals()
	if iv.Active != 2*time.Second {
		t.Errorf("Intervals().Active = %v, want default 2s", iv.Active)
	}
}

func TestEnsureHomeDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "quail")
	cfg := &Config{Data: DataConfig{DataDir: dir}}

	if err := cfg.EnsureHomeDir(); err != nil {
		t.Fatalf("EnsureHomeDir() error = %v, want nil", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("data dir not created: %v", err)
	}
}
