package main

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"docsync/internal/config"
	"docsync/internal/docmap"
	"docsync/internal/errors"
	"docsync/internal/ledger"
	"docsync/internal/logging"
	"docsync/internal/mirror"
	"docsync/internal/scancache"
)

var (
	doctorCheck  string
	doctorFormat string
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose docsync issues",
	Long: `Diagnose docsync configuration and environment issues: config file,
source and doc roots, whitelist, DOCMAP.toml, scan cache, and ledger.

Exit codes: 0 when all checks pass, 1 when any check fails.`,
	Run: runDoctor,
}

func init() {
	doctorCmd.Flags().StringVar(&doctorCheck, "check", "", "Run specific check (config, source, docs, whitelist, docmap, cache, ledger)")
	doctorCmd.Flags().StringVar(&doctorFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(doctorCmd)
}

// DoctorResponseCLI represents the doctor command response
type DoctorResponseCLI struct {
	Healthy bool             `json:"healthy"`
	Checks  []DoctorCheckCLI `json:"checks"`
}

// DoctorCheckCLI represents a single diagnostic check
type DoctorCheckCLI struct {
	Name           string         `json:"name"`
	Status         string         `json:"status"` // "pass", "warn", "fail"
	Message        string         `json:"message"`
	SuggestedFixes []FixActionCLI `json:"suggestedFixes,omitempty"`
}

// FixActionCLI represents a suggested fix
type FixActionCLI struct {
	Type        string `json:"type"`
	Command     string `json:"command,omitempty"`
	Description string `json:"description"`
	Safe        bool   `json:"safe"`
}

func runDoctor(cmd *cobra.Command, args []string) {
	start := time.Now()
	workDir := mustGetWorkDir()

	response := runChecks(workDir)

	output, err := FormatResponse(response, OutputFormat(doctorFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(output)

	duration := time.Since(start).Milliseconds()
	if doctorFormat == "human" {
		fmt.Printf("\n(Diagnostics took %dms)\n", duration)
	}

	if !response.Healthy {
		os.Exit(1)
	}
}

// runChecks runs every diagnostic (or just the one named by --check).
// A broken config does not stop the remaining checks; they fall back to
// defaults so the whole environment is still surveyed.
func runChecks(workDir string) *DoctorResponseCLI {
	checks := make([]DoctorCheckCLI, 0, 7)
	add := func(name string, fn func() DoctorCheckCLI) {
		if doctorCheck != "" && doctorCheck != name {
			return
		}
		checks = append(checks, fn())
	}

	cfg, cfgErr := config.LoadConfig(workDir)
	if cfgErr == nil {
		cfgErr = cfg.Validate()
	}
	if cfg == nil || cfgErr != nil {
		cfg = config.DefaultConfig()
	}
	if sourceFlag != "" {
		cfg.SourceRoot = sourceFlag
	}
	if docsFlag != "" {
		cfg.DocRoot = docsFlag
	}

	add("config", func() DoctorCheckCLI { return checkConfig(workDir, cfgErr) })
	add("source", func() DoctorCheckCLI { return checkRoot("source", cfg.SourceRoot, workDir, errors.SourceRootMissing) })
	add("docs", func() DoctorCheckCLI { return checkRoot("docs", cfg.DocRoot, workDir, errors.DocRootMissing) })
	add("whitelist", func() DoctorCheckCLI { return checkWhitelist(workDir, cfg) })
	add("docmap", func() DoctorCheckCLI { return checkDocmap(workDir, cfg) })
	add("cache", func() DoctorCheckCLI { return checkCache(workDir, cfg) })
	add("ledger", func() DoctorCheckCLI { return checkLedger(workDir) })

	healthy := true
	for _, c := range checks {
		if c.Status == "fail" {
			healthy = false
		}
	}
	return &DoctorResponseCLI{Healthy: healthy, Checks: checks}
}

func checkConfig(workDir string, cfgErr error) DoctorCheckCLI {
	configPath := filepath.Join(config.StateDir(workDir), config.ConfigFileName)
	if cfgErr != nil {
		return DoctorCheckCLI{
			Name:           "config",
			Status:         "fail",
			Message:        fmt.Sprintf("invalid configuration: %v", cfgErr),
			SuggestedFixes: fixesToCLI(errors.GetSuggestedFixes(errors.ConfigInvalid)),
		}
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DoctorCheckCLI{
			Name:    "config",
			Status:  "pass",
			Message: "no config file, using defaults (run 'docsync init' to create one)",
		}
	}
	return DoctorCheckCLI{
		Name:    "config",
		Status:  "pass",
		Message: fmt.Sprintf("loaded from %s", configPath),
	}
}

func checkRoot(name, root, workDir string, code errors.ErrorCode) DoctorCheckCLI {
	path := root
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return DoctorCheckCLI{
			Name:           name,
			Status:         "fail",
			Message:        fmt.Sprintf("%s root %s is not a directory", name, path),
			SuggestedFixes: fixesToCLI(errors.GetSuggestedFixes(code)),
		}
	}
	return DoctorCheckCLI{
		Name:    name,
		Status:  "pass",
		Message: path,
	}
}

func checkWhitelist(workDir string, cfg *config.Config) DoctorCheckCLI {
	path, explicit := cfg.ResolveWhitelistPath(workDir)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if explicit {
			return DoctorCheckCLI{
				Name:           "whitelist",
				Status:         "fail",
				Message:        fmt.Sprintf("configured whitelist %s does not exist", path),
				SuggestedFixes: fixesToCLI(errors.GetSuggestedFixes(errors.WhitelistUnreadable)),
			}
		}
		return DoctorCheckCLI{
			Name:    "whitelist",
			Status:  "pass",
			Message: "no whitelist file (every mirror finding is reported)",
		}
	}
	wl, err := mirror.LoadWhitelist(path)
	if err != nil {
		return DoctorCheckCLI{
			Name:           "whitelist",
			Status:         "fail",
			Message:        fmt.Sprintf("cannot read whitelist %s: %v", path, err),
			SuggestedFixes: fixesToCLI(errors.GetSuggestedFixes(errors.WhitelistUnreadable)),
		}
	}
	return DoctorCheckCLI{
		Name:    "whitelist",
		Status:  "pass",
		Message: fmt.Sprintf("%s (%d pattern(s))", path, len(wl.Patterns())),
	}
}

func checkDocmap(workDir string, cfg *config.Config) DoctorCheckCLI {
	docRoot := cfg.DocRoot
	if !filepath.IsAbs(docRoot) {
		docRoot = filepath.Join(workDir, docRoot)
	}
	docmapPath := filepath.Join(docRoot, docmap.DocmapFile)
	if _, err := os.Stat(docmapPath); os.IsNotExist(err) {
		return DoctorCheckCLI{
			Name:    "docmap",
			Status:  "pass",
			Message: "no DOCMAP.toml (alphabetical navigation, no extra whitelist)",
		}
	}
	dm, err := docmap.Load(docRoot)
	if err != nil {
		return DoctorCheckCLI{
			Name:           "docmap",
			Status:         "fail",
			Message:        fmt.Sprintf("invalid %s: %v", docmapPath, err),
			SuggestedFixes: fixesToCLI(errors.GetSuggestedFixes(errors.DocmapInvalid)),
		}
	}
	return DoctorCheckCLI{
		Name:    "docmap",
		Status:  "pass",
		Message: fmt.Sprintf("%s (%d nav pin(s), %d whitelist pattern(s))", docmapPath, len(dm.Nav), len(dm.Whitelist.Patterns)),
	}
}

func checkCache(workDir string, cfg *config.Config) DoctorCheckCLI {
	if !cfg.Cache.Enabled {
		return DoctorCheckCLI{
			Name:    "cache",
			Status:  "pass",
			Message: "disabled in config",
		}
	}
	quiet := logging.NewLogger(logging.Config{Format: logging.HumanFormat, Level: logging.ErrorLevel})
	cache, err := scancache.Open(config.CachePath(workDir), quiet)
	if err != nil {
		return DoctorCheckCLI{
			Name:           "cache",
			Status:         "warn",
			Message:        fmt.Sprintf("cannot open scan cache: %v (runs fall back to fresh scans)", err),
			SuggestedFixes: fixesToCLI(errors.GetSuggestedFixes(errors.CacheUnavailable)),
		}
	}
	defer cache.Close()
	stats, err := cache.Stats()
	if err != nil {
		return DoctorCheckCLI{
			Name:           "cache",
			Status:         "warn",
			Message:        fmt.Sprintf("scan cache unreadable: %v", err),
			SuggestedFixes: fixesToCLI(errors.GetSuggestedFixes(errors.CacheUnavailable)),
		}
	}
	return DoctorCheckCLI{
		Name:    "cache",
		Status:  "pass",
		Message: fmt.Sprintf("%s (%d entries, %s)", stats.Path, stats.Entries, formatBytes(stats.SizeBytes)),
	}
}

func checkLedger(workDir string) DoctorCheckCLI {
	path := config.LedgerPath(workDir)
	l, err := ledger.Load(path)
	if err != nil {
		if stderrors.Is(err, ledger.ErrUnsupportedVersion) {
			return DoctorCheckCLI{
				Name:           "ledger",
				Status:         "fail",
				Message:        fmt.Sprintf("ledger at %s was written by a newer docsync: %v", path, err),
				SuggestedFixes: fixesToCLI(errors.GetSuggestedFixes(errors.LedgerUnsupported)),
			}
		}
		return DoctorCheckCLI{
			Name:    "ledger",
			Status:  "fail",
			Message: fmt.Sprintf("cannot read ledger at %s: %v", path, err),
		}
	}
	if l == nil {
		return DoctorCheckCLI{
			Name:    "ledger",
			Status:  "pass",
			Message: "no ledger yet (run 'docsync report' to create one)",
		}
	}
	return DoctorCheckCLI{
		Name:    "ledger",
		Status:  "pass",
		Message: fmt.Sprintf("version %d, %d entries, last run %s", l.Version, len(l.Entries), l.RunID),
	}
}

func fixesToCLI(fixes []errors.FixAction) []FixActionCLI {
	out := make([]FixActionCLI, 0, len(fixes))
	for _, f := range fixes {
		out = append(out, FixActionCLI{
			Type:        string(f.Type),
			Command:     f.Command,
			Description: f.Description,
			Safe:        f.Safe,
		})
	}
	return out
}
