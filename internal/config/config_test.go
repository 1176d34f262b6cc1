package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json5"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8790 {
		t.Fatalf("expected default port 8790, got %d", cfg.Server.Port)
	}
	if cfg.Sniper.MonitorWindowDays != 10 {
		t.Fatalf("expected default monitor window of 10 days, got %d", cfg.Sniper.MonitorWindowDays)
	}
	if cfg.Sniper.MonitorWindow.Hours() != 240 {
		t.Fatalf("expected MonitorWindow derived as 240h, got %v", cfg.Sniper.MonitorWindow)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	if err := os.WriteFile(path, []byte(`{server: {port: 9000}, sniper: {search_limit: 25}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Fatalf("expected file-overridden port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Sniper.SearchLimit != 25 {
		t.Fatalf("expected file-overridden search limit 25, got %d", cfg.Sniper.SearchLimit)
	}
}

func TestLoad_EnvOverridesTakePrecedenceOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	if err := os.WriteFile(path, []byte(`{server: {port: 9000}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("HARVESTGATE_PORT", "9100")
	t.Setenv("HARVESTGATE_POSTGRES_DSN", "postgres://example/harvestgate")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Fatalf("expected env-overridden port 9100, got %d", cfg.Server.Port)
	}
	if cfg.Database.PostgresDSN != "postgres://example/harvestgate" {
		t.Fatalf("expected env-sourced postgres DSN, got %q", cfg.Database.PostgresDSN)
	}
}
