package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "streamsnap.yaml")
	yamlData := `
stream: https://www.youtube.com/watch?v=live
target: ALICE
interval: 5s
threshold: 70
`
	if err := os.WriteFile(path, []byte(yamlData), 0644); err != nil {
		t.Fatal(err)
	}

	// Environment beats the file
	t.Setenv("STREAMSNAP_THRESHOLD", "90")
	t.Setenv("STREAMSNAP_RETRY_MAX_ATTEMPTS", "12")

	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Target != "ALICE" {
		t.Errorf("Target = %q, want ALICE", cfg.Target)
	}
	if cfg.Interval != 5*time.Second {
		t.Errorf("Interval = %s, want 5s", cfg.Interval)
	}
	if cfg.Threshold != 90 {
		t.Errorf("Threshold = %d, want env override 90", cfg.Threshold)
	}
	if cfg.RetryMaxAttempts != 12 {
		t.Errorf("RetryMaxAttempts = %d, want 12", cfg.RetryMaxAttempts)
	}
	// Untouched keys keep their defaults
	if cfg.OutputDir != DefaultOutputDir {
		t.Errorf("OutputDir = %q, want default %q", cfg.OutputDir, DefaultOutputDir)
	}
	if cfg.RetryDelay != time.Second {
		t.Errorf("RetryDelay = %s, want 1s", cfg.RetryDelay)
	}
}

func TestLoadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	if _, err := Load(missing, false); err != nil {
		t.Errorf("optional missing file should fall back to defaults, got %v", err)
	}
	if _, err := Load(missing, true); err == nil {
		t.Error("explicitly named missing file should fail")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("treshold: 80\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, true); err == nil {
		t.Error("expected typo'd key to be rejected")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.StreamRef = "https://example.test/live"
		c.Target = "ALICE"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "Valid options", mutate: func(c *Config) {}},
		{name: "Missing stream", mutate: func(c *Config) { c.StreamRef = " " }, wantErr: "stream reference"},
		{name: "Missing target", mutate: func(c *Config) { c.Target = "" }, wantErr: "target text"},
		{name: "Zero interval", mutate: func(c *Config) { c.Interval = 0 }, wantErr: "interval"},
		{name: "Threshold above range", mutate: func(c *Config) { c.Threshold = 101 }, wantErr: "threshold"},
		{name: "Threshold below range", mutate: func(c *Config) { c.Threshold = -1 }, wantErr: "threshold"},
		{name: "Threshold boundary", mutate: func(c *Config) { c.Threshold = 100 }},
		{name: "Unknown resolver", mutate: func(c *Config) { c.Resolver = "youtube" }, wantErr: "resolver"},
		{name: "Zero retry delay", mutate: func(c *Config) { c.RetryDelay = 0 }, wantErr: "retry delay"},
		{name: "Negative decode fps", mutate: func(c *Config) { c.DecodeFPS = -1 }, wantErr: "decode fps"},
		{name: "Stop file in existing directory", mutate: func(c *Config) { c.StopFile = filepath.Join(os.TempDir(), "streamsnap.stop") }},
		{name: "Stop file in missing directory", mutate: func(c *Config) {
			c.StopFile = filepath.Join(os.TempDir(), "streamsnap-no-such-dir", "stop")
		}, wantErr: "stop file directory"},
		{name: "Misspelled log level", mutate: func(c *Config) { c.LogLevel = "debgu" }, wantErr: "log level"},
		{name: "Empty log level", mutate: func(c *Config) { c.LogLevel = "" }, wantErr: "log level"},
		{name: "Upper-case log level", mutate: func(c *Config) { c.LogLevel = "DEBUG" }},
		{name: "Unknown log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateLoggingAloneIgnoresRunSettings(t *testing.T) {
	// list and reset have no stream or target, only the log settings matter there
	c := Default()
	if err := c.ValidateLogging(); err != nil {
		t.Errorf("ValidateLogging() on defaults = %v", err)
	}
	c.LogLevel = "verbose"
	if err := c.ValidateLogging(); err == nil {
		t.Error("ValidateLogging() accepted an unknown level")
	}
}
