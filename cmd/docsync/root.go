package main

import (
	"docsync/internal/version"

	"github.com/spf13/cobra"
)

var (
	// sourceFlag is the CLI --source flag value
	sourceFlag string
	// docsFlag is the CLI --docs flag value
	docsFlag string
)

var rootCmd = &cobra.Command{
	Use:   "docsync",
	Short: "docsync - documentation/source consistency engine",
	Long: `docsync keeps a documentation tree honest against the source tree it
describes: it extracts path:line citations from Markdown pages, verifies them
against the code, checks that documented directories mirror the source layout,
synthesizes navigation, and tracks per-file documentation coverage across runs.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("docsync version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&sourceFlag, "source", "",
		"Source tree root (falls back to DOCSYNC_SOURCE_ROOT, then config)")
	rootCmd.PersistentFlags().StringVar(&docsFlag, "docs", "",
		"Documentation tree root (falls back to DOCSYNC_DOC_ROOT, then config)")
}
