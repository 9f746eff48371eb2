package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"docsync/internal/config"
	"docsync/internal/docmap"
	"docsync/internal/engine"
	"docsync/internal/errors"
	"docsync/internal/logging"
	"docsync/internal/mirror"
	"docsync/internal/scancache"
)

// getWorkDir returns the directory whose .docsync state is used.
func getWorkDir() (string, error) {
	return os.Getwd()
}

// mustGetWorkDir returns the working directory or exits on error.
func mustGetWorkDir() string {
	workDir, err := getWorkDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	return workDir
}

// newLogger creates a logger honoring the --format flag, the config
// defaults, and DOCSYNC_LOG_LEVEL.
func newLogger(format string, cfg *config.Config) *logging.Logger {
	logFormat := logging.HumanFormat
	switch {
	case format == "json":
		logFormat = logging.JSONFormat
	case format == "" && cfg != nil && cfg.Logging.Format == "json":
		logFormat = logging.JSONFormat
	}

	level := logging.InfoLevel
	if cfg != nil && cfg.Logging.Level != "" {
		level = logging.LogLevel(cfg.Logging.Level)
	}
	return logging.NewLogger(logging.Config{
		Format: logFormat,
		Level:  logging.LevelFromEnv(level),
	})
}

// mustLoadConfig loads and validates .docsync/config.json, exiting
// fatally when it exists but cannot be used.
func mustLoadConfig(workDir, format string) *config.Config {
	cfg, err := config.LoadConfig(workDir)
	if err != nil {
		fatal(format, errors.NewSyncError(errors.ConfigInvalid,
			"Failed to load configuration", err,
			errors.GetSuggestedFixes(errors.ConfigInvalid), nil))
	}
	if err := cfg.Validate(); err != nil {
		fatal(format, errors.NewSyncError(errors.ConfigInvalid,
			"Invalid configuration", err,
			errors.GetSuggestedFixes(errors.ConfigInvalid), nil))
	}
	return cfg
}

// resolveRoots applies flag > env > config precedence (env is already
// merged into cfg) and verifies both roots are directories.
func resolveRoots(cfg *config.Config, workDir, format string) (sourceRoot, docRoot string) {
	sourceRoot = cfg.SourceRoot
	if sourceFlag != "" {
		sourceRoot = sourceFlag
	}
	docRoot = cfg.DocRoot
	if docsFlag != "" {
		docRoot = docsFlag
	}

	if !filepath.IsAbs(sourceRoot) {
		sourceRoot = filepath.Join(workDir, sourceRoot)
	}
	if !filepath.IsAbs(docRoot) {
		docRoot = filepath.Join(workDir, docRoot)
	}

	if info, err := os.Stat(sourceRoot); err != nil || !info.IsDir() {
		fatal(format, errors.NewSyncError(errors.SourceRootMissing,
			fmt.Sprintf("Source root is not a directory: %s", sourceRoot), err,
			errors.GetSuggestedFixes(errors.SourceRootMissing), nil))
	}
	if info, err := os.Stat(docRoot); err != nil || !info.IsDir() {
		fatal(format, errors.NewSyncError(errors.DocRootMissing,
			fmt.Sprintf("Documentation root is not a directory: %s", docRoot), err,
			errors.GetSuggestedFixes(errors.DocRootMissing), nil))
	}
	return sourceRoot, docRoot
}

// buildEngine assembles the pipeline for validate and report. The
// returned cleanup closes the scan cache.
func buildEngine(workDir, format string, cfg *config.Config, logger *logging.Logger, workers int, whitelistOverride string, noCache bool) (*engine.Engine, func()) {
	if workers > 0 {
		cfg.Scan.Workers = workers
	}
	if whitelistOverride != "" {
		cfg.Mirror.WhitelistPath = whitelistOverride
	}

	sourceRoot, docRoot := resolveRoots(cfg, workDir, format)

	whitelistPath, _ := cfg.ResolveWhitelistPath(workDir)
	wl, err := mirror.LoadWhitelist(whitelistPath)
	if err != nil {
		fatal(format, errors.NewSyncError(errors.WhitelistUnreadable,
			fmt.Sprintf("Cannot load mirror whitelist: %s", whitelistPath), err,
			errors.GetSuggestedFixes(errors.WhitelistUnreadable), nil))
	}

	dm, err := docmap.Load(docRoot)
	if err != nil {
		fatal(format, errors.NewSyncError(errors.DocmapInvalid,
			"Cannot load DOCMAP.toml", err,
			errors.GetSuggestedFixes(errors.DocmapInvalid), nil))
	}
	if err := wl.Add(dm.Whitelist.Patterns...); err != nil {
		fatal(format, errors.NewSyncError(errors.DocmapInvalid,
			"DOCMAP.toml whitelist pattern rejected", err,
			errors.GetSuggestedFixes(errors.DocmapInvalid), nil))
	}

	var cache *scancache.Cache
	if cfg.Cache.Enabled && !noCache {
		cache, err = scancache.Open(config.CachePath(workDir), logger)
		if err != nil {
			// The cache is an optimization; a broken one downgrades
			// the run instead of failing it.
			logger.Warn("Scan cache unavailable, running uncached", map[string]interface{}{
				"error": err.Error(),
				"path":  config.CachePath(workDir),
			})
			cache = nil
		}
	}

	eng := engine.New(cfg, logger, engine.Params{
		SourceRoot: sourceRoot,
		DocRoot:    docRoot,
		Whitelist:  wl,
		Docmap:     dm,
		Cache:      cache,
	})
	cleanup := func() {
		if cache != nil {
			_ = cache.Close()
		}
	}
	return eng, cleanup
}

// fatal prints a configuration-level error and exits 2. Findings never
// come through here; they are ordinary output with exit 1.
func fatal(format string, syncErr *errors.SyncError) {
	if format == "json" {
		payload := map[string]interface{}{"error": syncErr}
		if data, err := json.MarshalIndent(payload, "", "  "); err == nil {
			fmt.Fprintln(os.Stderr, string(data))
		} else {
			fmt.Fprintln(os.Stderr, syncErr.Error())
		}
		os.Exit(2)
	}

	fmt.Fprintf(os.Stderr, "Error: %s\n", syncErr.Error())
	if len(syncErr.SuggestedFixes) > 0 {
		fmt.Fprintln(os.Stderr, "Suggested fixes:")
		for _, fix := range syncErr.SuggestedFixes {
			fmt.Fprintf(os.Stderr, "  - %s\n", fix.Description)
			if fix.Command != "" {
				fmt.Fprintf(os.Stderr, "    $ %s\n", fix.Command)
			}
		}
	}
	os.Exit(2)
}
