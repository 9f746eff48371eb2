package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// StateDirName is the per-checkout state directory
	StateDirName = ".docsync"
	// ConfigFileName is the configuration file inside the state directory
	ConfigFileName = "config.json"
	// CacheFileName is the scan cache database inside the state directory
	CacheFileName = "cache.db"
	// LedgerFileName is the coverage ledger inside the state directory
	LedgerFileName = "ledger.json"
	// LedgerLockFileName guards concurrent ledger writes
	LedgerLockFileName = "ledger.lock"
	// WhitelistFileName is the default mirror whitelist inside the state directory
	WhitelistFileName = "whitelist"
	// HistoryDirName holds compressed per-run report snapshots
	HistoryDirName = "history"

	// EnvSourceRoot overrides the configured source root
	EnvSourceRoot = "DOCSYNC_SOURCE_ROOT"
	// EnvDocRoot overrides the configured documentation root
	EnvDocRoot = "DOCSYNC_DOC_ROOT"
)

// Config represents the complete docsync configuration (v1 schema)
type Config struct {
	Version    int    `json:"version" mapstructure:"version"`
	SourceRoot string `json:"sourceRoot" mapstructure:"sourceRoot"`
	DocRoot    string `json:"docRoot" mapstructure:"docRoot"`

	Scan       ScanConfig       `json:"scan" mapstructure:"scan"`
	Resolution ResolutionConfig `json:"resolution" mapstructure:"resolution"`
	Mirror     MirrorConfig     `json:"mirror" mapstructure:"mirror"`
	Ledger     LedgerConfig     `json:"ledger" mapstructure:"ledger"`
	Nav        NavConfig        `json:"nav" mapstructure:"nav"`
	Cache      CacheConfig      `json:"cache" mapstructure:"cache"`
	Logging    LoggingConfig    `json:"logging" mapstructure:"logging"`
}

// ScanConfig controls tree walking for both roots
type ScanConfig struct {
	Extensions       []string `json:"extensions" mapstructure:"extensions"`
	ExcludeDirs      []string `json:"excludeDirs" mapstructure:"excludeDirs"`
	MaxFileSizeBytes int      `json:"maxFileSizeBytes" mapstructure:"maxFileSizeBytes"`
	Workers          int      `json:"workers" mapstructure:"workers"`
}

// ResolutionConfig controls citation resolution
type ResolutionConfig struct {
	WindowSizes    []int   `json:"windowSizes" mapstructure:"windowSizes"`
	FuzzyThreshold float64 `json:"fuzzyThreshold" mapstructure:"fuzzyThreshold"`
}

// MirrorConfig controls directory mirror validation
type MirrorConfig struct {
	WhitelistPath string `json:"whitelistPath" mapstructure:"whitelistPath"`
}

// LedgerConfig controls coverage status derivation
type LedgerConfig struct {
	MinDocLines    int `json:"minDocLines" mapstructure:"minDocLines"`
	MinSourceLines int `json:"minSourceLines" mapstructure:"minSourceLines"`
}

// NavConfig controls navigation artifact synthesis
type NavConfig struct {
	Format string `json:"format" mapstructure:"format"`
}

// CacheConfig controls the scan cache
type CacheConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:    1,
		SourceRoot: ".",
		DocRoot:    "doc",
		Scan: ScanConfig{
			Extensions: []string{
				"c", "h", "s", "S", "cc", "cpp", "hpp", "go", "py", "rs",
				"sh", "mk", "m4", "awk", "pl", "y", "l", "in", "conf",
			},
			ExcludeDirs:      []string{".git", ".hg", ".svn", "obj", "node_modules", "vendor", "build"},
			MaxFileSizeBytes: 10000000,
			Workers:          0,
		},
		Resolution: ResolutionConfig{
			WindowSizes:    []int{5, 20, 100},
			FuzzyThreshold: 0.75,
		},
		Mirror: MirrorConfig{
			WhitelistPath: "",
		},
		Ledger: LedgerConfig{
			MinDocLines:    20,
			MinSourceLines: 50,
		},
		Nav: NavConfig{
			Format: "yaml",
		},
		Cache: CacheConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from .docsync/config.json under workDir.
// A missing config file yields defaults. DOCSYNC_SOURCE_ROOT and
// DOCSYNC_DOC_ROOT override the roots from either source.
func LoadConfig(workDir string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("version", 1)
	v.SetDefault("sourceRoot", ".")
	v.SetDefault("docRoot", "doc")

	// Configure viper
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(workDir, StateDirName))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// If config doesn't exist, fall back to defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			cfg := DefaultConfig()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}

	// Unmarshal into config struct
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if env := os.Getenv(EnvSourceRoot); env != "" {
		cfg.SourceRoot = env
	}
	if env := os.Getenv(EnvDocRoot); env != "" {
		cfg.DocRoot = env
	}
}

// Save writes the configuration to .docsync/config.json under workDir
func (c *Config) Save(workDir string) error {
	stateDir := filepath.Join(workDir, StateDirName)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return err
	}

	configPath := filepath.Join(stateDir, ConfigFileName)

	// Marshal to JSON with indentation
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	// Write to file
	return os.WriteFile(configPath, data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != 1 {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.SourceRoot == "" {
		return &ConfigError{Field: "sourceRoot", Message: "must not be empty"}
	}
	if c.DocRoot == "" {
		return &ConfigError{Field: "docRoot", Message: "must not be empty"}
	}
	if len(c.Scan.Extensions) == 0 {
		return &ConfigError{Field: "scan.extensions", Message: "must list at least one extension"}
	}
	if c.Scan.Workers < 0 {
		return &ConfigError{Field: "scan.workers", Message: "must not be negative"}
	}
	if len(c.Resolution.WindowSizes) == 0 {
		return &ConfigError{Field: "resolution.windowSizes", Message: "must list at least one window"}
	}
	prev := 0
	for _, w := range c.Resolution.WindowSizes {
		if w <= prev {
			return &ConfigError{Field: "resolution.windowSizes", Message: "must be positive and strictly ascending"}
		}
		prev = w
	}
	if c.Resolution.FuzzyThreshold <= 0 || c.Resolution.FuzzyThreshold > 1 {
		return &ConfigError{Field: "resolution.fuzzyThreshold", Message: "must be in (0, 1]"}
	}
	if c.Ledger.MinDocLines <= 0 {
		return &ConfigError{Field: "ledger.minDocLines", Message: "must be positive"}
	}
	if c.Ledger.MinSourceLines <= 0 {
		return &ConfigError{Field: "ledger.minSourceLines", Message: "must be positive"}
	}
	switch c.Nav.Format {
	case "yaml", "toml", "json":
	default:
		return &ConfigError{Field: "nav.format", Message: "must be yaml, toml, or json"}
	}
	return nil
}

// StateDir returns the state directory under workDir
func StateDir(workDir string) string {
	return filepath.Join(workDir, StateDirName)
}

// CachePath returns the scan cache database path under workDir
func CachePath(workDir string) string {
	return filepath.Join(workDir, StateDirName, CacheFileName)
}

// LedgerPath returns the ledger path under workDir
func LedgerPath(workDir string) string {
	return filepath.Join(workDir, StateDirName, LedgerFileName)
}

// LedgerLockPath returns the ledger lock path under workDir
func LedgerLockPath(workDir string) string {
	return filepath.Join(workDir, StateDirName, LedgerLockFileName)
}

// HistoryDir returns the report history directory under workDir
func HistoryDir(workDir string) string {
	return filepath.Join(workDir, StateDirName, HistoryDirName)
}

// ResolveWhitelistPath returns the whitelist path for this config. An
// explicit mirror.whitelistPath wins; otherwise the default location
// under the state directory is used. The second return reports whether
// the path was explicitly configured.
func (c *Config) ResolveWhitelistPath(workDir string) (string, bool) {
	if c.Mirror.WhitelistPath != "" {
		if filepath.IsAbs(c.Mirror.WhitelistPath) {
			return c.Mirror.WhitelistPath, true
		}
		return filepath.Join(workDir, c.Mirror.WhitelistPath), true
	}
	return filepath.Join(workDir, StateDirName, WhitelistFileName), false
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
