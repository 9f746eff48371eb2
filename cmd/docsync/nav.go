package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docsync/internal/errors"
	"docsync/internal/nav"
)

var (
	navOut            string
	navArtifactFormat string
	navFormat         string
)

// NavResponseCLI represents the nav command response
type NavResponseCLI struct {
	Out            string   `json:"out"`
	ArtifactFormat string   `json:"artifactFormat"`
	Entries        int      `json:"entries"`
	SizeBytes      int64    `json:"sizeBytes"`
	Warnings       []string `json:"warnings,omitempty"`
}

var navCmd = &cobra.Command{
	Use:   "nav",
	Short: "Synthesize the navigation artifact from the doc tree",
	Long: `Nav builds a deterministic navigation tree from the documentation
directory, honoring DOCMAP.toml pins, and encodes it as YAML, TOML, or
JSON. With --out the artifact is written atomically to the given path;
without it the artifact goes to stdout.`,
	Run: func(cmd *cobra.Command, args []string) {
		runNav()
	},
}

func init() {
	navCmd.Flags().StringVar(&navOut, "out", "", "Write the artifact to this path instead of stdout")
	navCmd.Flags().StringVar(&navArtifactFormat, "artifact-format", "", "Artifact encoding: yaml, toml, or json (default from config)")
	navCmd.Flags().StringVar(&navFormat, "format", "human", "Output format for the summary (json or human)")
	rootCmd.AddCommand(navCmd)
}

func runNav() {
	workDir := mustGetWorkDir()
	cfg := mustLoadConfig(workDir, navFormat)
	logger := newLogger(navFormat, cfg)

	artifactFormat := cfg.Nav.Format
	if navArtifactFormat != "" {
		artifactFormat = navArtifactFormat
	}
	switch nav.Format(artifactFormat) {
	case nav.FormatYAML, nav.FormatTOML, nav.FormatJSON:
	default:
		fatal(navFormat, errors.NewSyncError(errors.ConfigInvalid,
			fmt.Sprintf("unsupported artifact format %q (yaml, toml, json)", artifactFormat),
			nil, nil, nil))
	}

	eng, cleanup := buildEngine(workDir, navFormat, cfg, logger, 0, "", true)
	defer cleanup()

	t, err := eng.BuildNav(context.Background())
	if err != nil {
		fatal(navFormat, errors.NewSyncError(errors.InternalError,
			"navigation synthesis failed", err, nil, nil))
	}

	data, err := nav.Encode(t, nav.Format(artifactFormat))
	if err != nil {
		fatal(navFormat, errors.NewSyncError(errors.InternalError,
			"navigation encoding failed", err, nil, nil))
	}

	for _, w := range t.Warnings {
		logger.Warn("Navigation warning", map[string]interface{}{"warning": w})
	}

	if navOut == "" {
		os.Stdout.Write(data)
		return
	}

	if err := nav.WriteArtifact(navOut, data); err != nil {
		fatal(navFormat, errors.NewSyncError(errors.ArtifactWriteFailed,
			fmt.Sprintf("cannot write navigation artifact to %s", navOut),
			err, nil, nil))
	}

	resp := &NavResponseCLI{
		Out:            navOut,
		ArtifactFormat: artifactFormat,
		Entries:        countPages(t.Root),
		SizeBytes:      int64(len(data)),
		Warnings:       t.Warnings,
	}

	output, err := FormatResponse(resp, OutputFormat(navFormat))
	if err != nil {
		logger.Error("Failed to format response", map[string]interface{}{"error": err.Error()})
		os.Exit(2)
	}
	fmt.Println(output)
}

// countPages counts page entries (nodes with a path) under a node.
func countPages(n *nav.Node) int {
	if n == nil {
		return 0
	}
	count := 0
	if n.Path != "" {
		count++
	}
	for _, child := range n.Children {
		count += countPages(child)
	}
	return count
}
