package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"docsync/internal/config"
	"docsync/internal/docmap"
	"docsync/internal/errors"
	"docsync/internal/logging"
)

var (
	initForce bool
)

// whitelistTemplate seeds .docsync/whitelist with commented examples.
const whitelistTemplate = `# Mirror whitelist: one doublestar pattern per line, doc-root relative.
# Directories matching a pattern are exempt from mirror validation.
#
# Examples:
#   sys/contrib/**
#   tools/build/**
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize docsync configuration",
	Long:  "Creates a .docsync/ directory with default configuration, a whitelist template, and a starter DOCMAP.toml at the doc root",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Force reinitialization (removes existing .docsync directory)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	logger := logging.NewLogger(logging.Config{
		Format: "human",
		Level:  "info",
	})

	workDir, err := os.Getwd()
	if err != nil {
		return errors.NewSyncError(errors.InternalError, "Failed to get current directory", err, nil, nil)
	}

	// Check if .docsync already exists
	stateDir := config.StateDir(workDir)
	if _, statErr := os.Stat(stateDir); statErr == nil {
		if !initForce {
			// Idempotent behavior: already initialized is success (CI-friendly)
			fmt.Println("docsync already initialized.")
			fmt.Printf("Configuration at: %s\n", filepath.Join(stateDir, config.ConfigFileName))
			fmt.Println("\nRun 'docsync init --force' to reinitialize.")
			return nil
		}
		if removeErr := os.RemoveAll(stateDir); removeErr != nil {
			return errors.NewSyncError(errors.InternalError, "Failed to remove existing .docsync directory", removeErr, nil, nil)
		}
		logger.Info("Removed existing .docsync directory", nil)
	}

	cfg := config.DefaultConfig()
	if sourceFlag != "" {
		cfg.SourceRoot = sourceFlag
	}
	if docsFlag != "" {
		cfg.DocRoot = docsFlag
	}

	if saveErr := cfg.Save(workDir); saveErr != nil {
		return errors.NewSyncError(errors.InternalError, "Failed to write config file", saveErr, nil, nil)
	}

	whitelistPath := filepath.Join(stateDir, config.WhitelistFileName)
	if _, statErr := os.Stat(whitelistPath); os.IsNotExist(statErr) {
		if writeErr := os.WriteFile(whitelistPath, []byte(whitelistTemplate), 0644); writeErr != nil {
			return errors.NewSyncError(errors.InternalError, "Failed to write whitelist template", writeErr, nil, nil)
		}
	}

	docRoot := cfg.DocRoot
	if !filepath.IsAbs(docRoot) {
		docRoot = filepath.Join(workDir, docRoot)
	}
	if mkdirErr := os.MkdirAll(docRoot, 0755); mkdirErr != nil {
		return errors.NewSyncError(errors.InternalError, "Failed to create doc root directory", mkdirErr, nil, nil)
	}
	docmapPath := filepath.Join(docRoot, docmap.DocmapFile)
	if _, statErr := os.Stat(docmapPath); os.IsNotExist(statErr) {
		if writeErr := docmap.CreateExample(docmapPath); writeErr != nil {
			return errors.NewSyncError(errors.InternalError, "Failed to write starter DOCMAP.toml", writeErr, nil, nil)
		}
	}

	logger.Info("docsync initialized successfully", map[string]interface{}{
		"config_path": filepath.Join(stateDir, config.ConfigFileName),
	})

	fmt.Println("docsync initialized successfully!")
	fmt.Printf("Configuration written to: %s\n", filepath.Join(stateDir, config.ConfigFileName))
	fmt.Printf("Starter DOCMAP at: %s\n", docmapPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Run 'docsync doctor' to check your setup")
	fmt.Println("  2. Run 'docsync validate' to check your docs")

	return nil
}
