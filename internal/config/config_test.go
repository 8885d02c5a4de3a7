package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromFileOverridesDefaultsPartially(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "headless.yaml")
	contents := "browser_addr: \"127.0.0.1:9333\"\nmax_tabs: 4\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BrowserAddr != "127.0.0.1:9333" {
		t.Errorf("BrowserAddr = %q, want 127.0.0.1:9333", cfg.BrowserAddr)
	}
	if cfg.MaxTabs != 4 {
		t.Errorf("MaxTabs = %d, want 4", cfg.MaxTabs)
	}
	if cfg.CommandTimeout != 30*time.Second {
		t.Errorf("CommandTimeout = %s, want default 30s to survive an untouched field", cfg.CommandTimeout)
	}
}

func TestLoadFromFileMissingPath(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a nonexistent config file")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("HEADLESS_BROWSER_ADDR", "example.internal:9222")
	t.Setenv("HEADLESS_MAX_TABS", "8")
	t.Setenv("HEADLESS_COMMAND_TIMEOUT", "15s")

	cfg := DefaultConfig()
	ApplyEnvOverrides(cfg)

	if cfg.BrowserAddr != "example.internal:9222" {
		t.Errorf("BrowserAddr = %q, want example.internal:9222", cfg.BrowserAddr)
	}
	if cfg.MaxTabs != 8 {
		t.Errorf("MaxTabs = %d, want 8", cfg.MaxTabs)
	}
	if cfg.CommandTimeout != 15*time.Second {
		t.Errorf("CommandTimeout = %s, want 15s", cfg.CommandTimeout)
	}
}

func TestApplyEnvOverridesIgnoresUnparseableValue(t *testing.T) {
	t.Setenv("HEADLESS_MAX_TABS", "not-a-number")

	cfg := DefaultConfig()
	want := cfg.MaxTabs
	ApplyEnvOverrides(cfg)

	if cfg.MaxTabs != want {
		t.Errorf("MaxTabs = %d, want unchanged default %d after an unparseable override", cfg.MaxTabs, want)
	}
}

func TestValidateRejectsNonPositiveTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HealthInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject a zero health_interval")
	}
}

func TestValidateRejectsNegativeMaxTabs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTabs = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject a negative max_tabs")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig should validate cleanly: %v", err)
	}
}
