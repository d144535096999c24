package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonexistent", "config.json")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(&Config{}, cfg); diff != "" {
		t.Errorf("expected zero config (-want +got):\n%s", diff)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcfleet", "config.json")

	want := &Config{
		CraftyURL:       "https://panel.example.com:8443",
		HostProvider:    "hetzner",
		HetznerServerID: 42,
		IdleThreshold:   "30m",
	}
	if err := want.SaveTo(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestSave_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "deep")
	path := filepath.Join(dir, "config.json")

	cfg := &Config{CraftyURL: "https://panel.example.com"}
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file at %s: %v", path, err)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json}"), 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	_, err := LoadFrom(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}

func TestDefaults(t *testing.T) {
	cfg := &Config{}

	if got := cfg.IdleThresholdDuration(); got != time.Hour {
		t.Errorf("idle threshold = %s, want 1h", got)
	}
	if got := cfg.RefreshIntervalDuration(); got != 5*time.Minute {
		t.Errorf("refresh interval = %s, want 5m", got)
	}
	if got := cfg.StartTimeoutDuration(); got != 120*time.Second {
		t.Errorf("start timeout = %s, want 2m", got)
	}
	if got := cfg.Listen(); got != "127.0.0.1:8087" {
		t.Errorf("listen = %s", got)
	}
	if got := cfg.Provider(); got != "gce" {
		t.Errorf("provider = %s, want gce", got)
	}
	loc, err := cfg.Location()
	if err != nil || loc != time.UTC {
		t.Errorf("location = %v, %v; want UTC", loc, err)
	}

	cfg.IdleThreshold = "90m"
	if got := cfg.IdleThresholdDuration(); got != 90*time.Minute {
		t.Errorf("idle threshold = %s, want 90m", got)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := &Config{CraftyURL: "https://old.example.com", LogLevel: "info"}
	env := map[string]string{
		"MCFLEET_CRAFTY_URL":          "https://new.example.com",
		"MCFLEET_HETZNER_SERVER_ID":   "7",
		"MCFLEET_CRAFTY_INSECURE_TLS": "true",
		"MCFLEET_LOG_LEVEL":           "  ",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	want := &Config{
		CraftyURL:         "https://new.example.com",
		CraftyInsecureTLS: true,
		HetznerServerID:   7,
		LogLevel:          "info",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	env["MCFLEET_IDLE_THRESHOLD"] = "soon"
	err := cfg.ApplyEnv(lookup)
	if err == nil || !strings.Contains(err.Error(), "MCFLEET_IDLE_THRESHOLD") {
		t.Errorf("expected error naming the variable, got %v", err)
	}
}

func TestLoadRuntime_DotEnv(t *testing.T) {
	dir := t.TempDir()
	SetPath(filepath.Join(dir, "config.json"))
	t.Cleanup(ResetPath)

	t.Chdir(dir)

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("MCFLEET_GCE_ZONE=europe-west2-b\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MCFLEET_GCE_ZONE", "")
	os.Unsetenv("MCFLEET_GCE_ZONE")
	t.Setenv("MCFLEET_GCE_PROJECT", "from-env")

	cfg, err := LoadRuntime()
	if err != nil {
		t.Fatalf("LoadRuntime: %v", err)
	}
	if cfg.GCEZone != "europe-west2-b" || cfg.GCEProject != "from-env" {
		t.Errorf("got zone %q project %q", cfg.GCEZone, cfg.GCEProject)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		CraftyURL:    "https://panel.example.com",
		HostProvider: "gce",
		GCEProject:   "p",
		GCEZone:      "z",
		GCEInstance:  "i",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"MissingURL", func(c *Config) { c.CraftyURL = "" }, "crafty-url is required"},
		{"BadScheme", func(c *Config) { c.CraftyURL = "ftp://panel" }, "scheme"},
		{"MissingGCEInstance", func(c *Config) { c.GCEInstance = "" }, "gce-instance"},
		{"HetznerWithoutID", func(c *Config) { c.HostProvider = "hetzner" }, "hetzner-server-id"},
		{"UnknownProvider", func(c *Config) { c.HostProvider = "aws" }, "not supported"},
		{"BadDuration", func(c *Config) { c.StopTimeout = "-5s" }, "stop-timeout"},
		{"BadTimezone", func(c *Config) { c.CraftyTimezone = "Mars/Olympus" }, "crafty-timezone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}

	var joined interface{ Unwrap() []error }
	both := Config{}
	if err := both.Validate(); !errors.As(err, &joined) || len(joined.Unwrap()) < 2 {
		t.Errorf("expected several joined errors, got %v", err)
	}
}
