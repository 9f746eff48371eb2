package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Check version
	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}

	// Check roots
	if cfg.SourceRoot != "." {
		t.Errorf("SourceRoot = %q, want %q", cfg.SourceRoot, ".")
	}
	if cfg.DocRoot != "doc" {
		t.Errorf("DocRoot = %q, want %q", cfg.DocRoot, "doc")
	}

	// Check scan defaults
	if len(cfg.Scan.Extensions) == 0 {
		t.Error("Scan.Extensions should have defaults")
	}
	hasC, hasGo := false, false
	for _, ext := range cfg.Scan.Extensions {
		if ext == "c" {
			hasC = true
		}
		if ext == "go" {
			hasGo = true
		}
	}
	if !hasC {
		t.Error("Scan.Extensions should include 'c'")
	}
	if !hasGo {
		t.Error("Scan.Extensions should include 'go'")
	}
	if len(cfg.Scan.ExcludeDirs) == 0 {
		t.Error("Scan.ExcludeDirs should have defaults")
	}
	if cfg.Scan.MaxFileSizeBytes <= 0 {
		t.Error("Scan.MaxFileSizeBytes should be positive")
	}

	// Check resolution defaults
	if len(cfg.Resolution.WindowSizes) != 3 {
		t.Errorf("len(Resolution.WindowSizes) = %d, want 3", len(cfg.Resolution.WindowSizes))
	}
	if cfg.Resolution.FuzzyThreshold <= 0 || cfg.Resolution.FuzzyThreshold > 1 {
		t.Errorf("Resolution.FuzzyThreshold = %v, want in (0, 1]", cfg.Resolution.FuzzyThreshold)
	}

	// Check ledger thresholds
	if cfg.Ledger.MinDocLines <= 0 {
		t.Error("Ledger.MinDocLines should be positive")
	}
	if cfg.Ledger.MinSourceLines <= 0 {
		t.Error("Ledger.MinSourceLines should be positive")
	}

	// Cache is opt-out
	if !cfg.Cache.Enabled {
		t.Error("Cache should be enabled by default")
	}

	// Check nav format
	if cfg.Nav.Format != "yaml" {
		t.Errorf("Nav.Format = %q, want %q", cfg.Nav.Format, "yaml")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default is valid", func(c *Config) {}, false},
		{"version 2 unsupported", func(c *Config) { c.Version = 2 }, true},
		{"version 0 unsupported", func(c *Config) { c.Version = 0 }, true},
		{"empty source root", func(c *Config) { c.SourceRoot = "" }, true},
		{"empty doc root", func(c *Config) { c.DocRoot = "" }, true},
		{"no extensions", func(c *Config) { c.Scan.Extensions = nil }, true},
		{"negative workers", func(c *Config) { c.Scan.Workers = -1 }, true},
		{"no windows", func(c *Config) { c.Resolution.WindowSizes = nil }, true},
		{"unordered windows", func(c *Config) { c.Resolution.WindowSizes = []int{20, 5, 100} }, true},
		{"zero window", func(c *Config) { c.Resolution.WindowSizes = []int{0, 5} }, true},
		{"threshold too high", func(c *Config) { c.Resolution.FuzzyThreshold = 1.5 }, true},
		{"threshold zero", func(c *Config) { c.Resolution.FuzzyThreshold = 0 }, true},
		{"zero min doc lines", func(c *Config) { c.Ledger.MinDocLines = 0 }, true},
		{"zero min source lines", func(c *Config) { c.Ledger.MinSourceLines = 0 }, true},
		{"bad nav format", func(c *Config) { c.Nav.Format = "xml" }, true},
		{"toml nav format", func(c *Config) { c.Nav.Format = "toml" }, false},
		{"json nav format", func(c *Config) { c.Nav.Format = "json" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr && err == nil {
				t.Error("Validate() should return error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() returned unexpected error: %v", err)
			}

			// Check error type
			if err != nil {
				if _, ok := err.(*ConfigError); !ok {
					t.Errorf("Validate() error type = %T, want *ConfigError", err)
				}
			}
		})
	}
}

func TestConfigError_Error(t *testing.T) {
	err := &ConfigError{
		Field:   "version",
		Message: "unsupported config version",
	}

	got := err.Error()
	want := "config error in field 'version': unsupported config version"

	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestLoadConfig_Default(t *testing.T) {
	// Create a temp directory without config
	tmpDir := t.TempDir()
	t.Setenv(EnvSourceRoot, "")
	t.Setenv(EnvDocRoot, "")

	cfg, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	// Should return default config when no config file exists
	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1 (default)", cfg.Version)
	}
	if cfg.DocRoot != "doc" {
		t.Errorf("DocRoot = %q, want %q (default)", cfg.DocRoot, "doc")
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	// Create a temp directory with config
	tmpDir := t.TempDir()
	t.Setenv(EnvSourceRoot, "")
	t.Setenv(EnvDocRoot, "")
	stateDir := filepath.Join(tmpDir, StateDirName)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		t.Fatalf("Failed to create state dir: %v", err)
	}

	configContent := `{
		"version": 1,
		"sourceRoot": "sys",
		"docRoot": "share/doc",
		"resolution": {
			"windowSizes": [10, 50],
			"fuzzyThreshold": 0.8
		},
		"ledger": {
			"minDocLines": 30,
			"minSourceLines": 80
		}
	}`

	configPath := filepath.Join(stateDir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	// Check custom values were loaded
	if cfg.SourceRoot != "sys" {
		t.Errorf("SourceRoot = %q, want %q", cfg.SourceRoot, "sys")
	}
	if cfg.DocRoot != "share/doc" {
		t.Errorf("DocRoot = %q, want %q", cfg.DocRoot, "share/doc")
	}
	if len(cfg.Resolution.WindowSizes) != 2 || cfg.Resolution.WindowSizes[0] != 10 {
		t.Errorf("Resolution.WindowSizes = %v, want [10 50]", cfg.Resolution.WindowSizes)
	}
	if cfg.Ledger.MinDocLines != 30 {
		t.Errorf("Ledger.MinDocLines = %d, want 30", cfg.Ledger.MinDocLines)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	stateDir := filepath.Join(tmpDir, StateDirName)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		t.Fatalf("Failed to create state dir: %v", err)
	}

	configContent := `{"version": 1, "sourceRoot": "sys", "docRoot": "share/doc"}`
	if err := os.WriteFile(filepath.Join(stateDir, ConfigFileName), []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv(EnvSourceRoot, "/override/src")
	t.Setenv(EnvDocRoot, "/override/doc")

	cfg, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.SourceRoot != "/override/src" {
		t.Errorf("SourceRoot = %q, want env override %q", cfg.SourceRoot, "/override/src")
	}
	if cfg.DocRoot != "/override/doc" {
		t.Errorf("DocRoot = %q, want env override %q", cfg.DocRoot, "/override/doc")
	}
}

func TestConfig_Save(t *testing.T) {
	// Create a temp directory without a pre-made state dir
	tmpDir := t.TempDir()
	t.Setenv(EnvSourceRoot, "")
	t.Setenv(EnvDocRoot, "")

	cfg := DefaultConfig()
	cfg.Ledger.MinDocLines = 42

	err := cfg.Save(tmpDir)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Verify file was created (Save makes the state dir too)
	configPath := filepath.Join(tmpDir, StateDirName, ConfigFileName)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}

	// Load it back and verify
	loaded, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfig() after save error = %v", err)
	}

	if loaded.Ledger.MinDocLines != 42 {
		t.Errorf("Loaded Ledger.MinDocLines = %d, want 42", loaded.Ledger.MinDocLines)
	}
}

func TestStatePaths(t *testing.T) {
	workDir := "/work"

	if got := StateDir(workDir); got != filepath.Join("/work", ".docsync") {
		t.Errorf("StateDir = %q", got)
	}
	if got := CachePath(workDir); got != filepath.Join("/work", ".docsync", "cache.db") {
		t.Errorf("CachePath = %q", got)
	}
	if got := LedgerPath(workDir); got != filepath.Join("/work", ".docsync", "ledger.json") {
		t.Errorf("LedgerPath = %q", got)
	}
	if got := LedgerLockPath(workDir); got != filepath.Join("/work", ".docsync", "ledger.lock") {
		t.Errorf("LedgerLockPath = %q", got)
	}
	if got := HistoryDir(workDir); got != filepath.Join("/work", ".docsync", "history") {
		t.Errorf("HistoryDir = %q", got)
	}
}

func TestResolveWhitelistPath(t *testing.T) {
	workDir := "/work"

	// Default location
	cfg := DefaultConfig()
	got, explicit := cfg.ResolveWhitelistPath(workDir)
	want := filepath.Join("/work", ".docsync", "whitelist")
	if got != want || explicit {
		t.Errorf("ResolveWhitelistPath = (%q, %v), want (%q, false)", got, explicit, want)
	}

	// Relative override
	cfg.Mirror.WhitelistPath = "doc/.mirror-whitelist"
	got, explicit = cfg.ResolveWhitelistPath(workDir)
	want = filepath.Join("/work", "doc/.mirror-whitelist")
	if got != want || !explicit {
		t.Errorf("ResolveWhitelistPath = (%q, %v), want (%q, true)", got, explicit, want)
	}

	// Absolute override
	cfg.Mirror.WhitelistPath = "/etc/docsync/whitelist"
	got, explicit = cfg.ResolveWhitelistPath(workDir)
	if got != "/etc/docsync/whitelist" || !explicit {
		t.Errorf("ResolveWhitelistPath = (%q, %v), want (/etc/docsync/whitelist, true)", got, explicit)
	}
}
