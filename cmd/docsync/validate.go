package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"docsync/internal/engine"
	"docsync/internal/errors"
	"docsync/internal/resolve"
	"docsync/internal/version"
)

var (
	validateFormat    string
	validateWorkers   int
	validateStrict    bool
	validateNoCache   bool
	validateWhitelist string
)

// SummaryCLI aggregates one run's counters for CLI output.
type SummaryCLI struct {
	SourceFiles      int `json:"sourceFiles"`
	DocPages         int `json:"docPages"`
	References       int `json:"references"`
	Verified         int `json:"verified"`
	Drifted          int `json:"drifted"`
	Missing          int `json:"missing"`
	SourceUnreadable int `json:"sourceUnreadable,omitempty"`
	ExtractionErrors int `json:"extractionErrors,omitempty"`
	MirrorFindings   int `json:"mirrorFindings"`
	MirrorSuppressed int `json:"mirrorSuppressed,omitempty"`
	CacheHits        int `json:"cacheHits"`
	CacheMisses      int `json:"cacheMisses"`
}

// FindingCLI is one actionable problem found during validation.
type FindingCLI struct {
	Kind          string  `json:"kind"`
	Path          string  `json:"path"`
	Line          int     `json:"line,omitempty"`
	Column        int     `json:"column,omitempty"`
	Target        string  `json:"target,omitempty"`
	CitedLine     int     `json:"citedLine,omitempty"`
	SuggestedLine int     `json:"suggestedLine,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
	Detail        string  `json:"detail,omitempty"`
}

// ValidateResponseCLI represents the validate command response
type ValidateResponseCLI struct {
	Version    string       `json:"version"`
	RunID      string       `json:"runId"`
	Clean      bool         `json:"clean"`
	Summary    SummaryCLI   `json:"summary"`
	Findings   []FindingCLI `json:"findings"`
	Suppressed []FindingCLI `json:"suppressed,omitempty"`
	DurationMs int64        `json:"durationMs"`
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check documentation citations and tree mirroring against the source",
	Long: `Validate scans the documentation tree, extracts code citations, and
resolves each one against the current source tree. It also checks that
source directories and doc directories mirror each other, honoring the
whitelist.

Exit codes: 0 when the docs are consistent, 1 when findings exist,
2 on configuration errors.`,
	Run: func(cmd *cobra.Command, args []string) {
		runValidate()
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateFormat, "format", "human", "Output format (json or human)")
	validateCmd.Flags().IntVar(&validateWorkers, "workers", 0, "Worker count for scanning and resolution (0 = NumCPU)")
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "Count extraction errors as findings")
	validateCmd.Flags().BoolVar(&validateNoCache, "no-cache", false, "Bypass the scan cache for this run")
	validateCmd.Flags().StringVar(&validateWhitelist, "whitelist", "", "Whitelist file path (overrides config)")
	rootCmd.AddCommand(validateCmd)
}

func runValidate() {
	workDir := mustGetWorkDir()
	cfg := mustLoadConfig(workDir, validateFormat)
	logger := newLogger(validateFormat, cfg)

	eng, cleanup := buildEngine(workDir, validateFormat, cfg, logger, validateWorkers, validateWhitelist, validateNoCache)
	defer cleanup()

	res, err := eng.Run(context.Background())
	if err != nil {
		fatal(validateFormat, errors.NewSyncError(errors.InternalError,
			"validation run failed", err, nil, nil))
	}

	resp := buildValidateResponse(res)

	output, err := FormatResponse(resp, OutputFormat(validateFormat))
	if err != nil {
		logger.Error("Failed to format response", map[string]interface{}{"error": err.Error()})
		os.Exit(2)
	}
	fmt.Println(output)

	if !resp.Clean {
		os.Exit(1)
	}
}

// buildValidateResponse flattens an engine result into the CLI shape.
// Findings sort by (path, line, column, kind) so output is stable and
// grep-friendly. Extraction errors are always listed but only gate the
// exit code under --strict.
func buildValidateResponse(res *engine.Result) *ValidateResponseCLI {
	tally := res.Tally()

	findings := make([]FindingCLI, 0)
	gating := 0

	for _, rr := range res.Resolved {
		if rr.Outcome.Kind == resolve.Verified {
			continue
		}
		findings = append(findings, FindingCLI{
			Kind:          string(rr.Outcome.Kind),
			Path:          rr.Ref.DocPath,
			Line:          rr.Ref.Line,
			Column:        rr.Ref.Column,
			Target:        rr.Ref.TargetPath,
			CitedLine:     rr.Ref.StartLine,
			SuggestedLine: rr.Outcome.SuggestedLine,
			Confidence:    rr.Outcome.Confidence,
			Detail:        rr.Outcome.Note,
		})
		gating++
	}

	for _, ex := range res.Extraction {
		for _, e := range ex.Errors {
			findings = append(findings, FindingCLI{
				Kind:   "extraction_error",
				Path:   e.DocPath,
				Line:   e.Line,
				Column: e.Column,
				Detail: e.Reason,
			})
			if validateStrict {
				gating++
			}
		}
	}

	for _, mf := range res.MirrorFindings {
		findings = append(findings, FindingCLI{
			Kind:   string(mf.Kind),
			Path:   mf.Path,
			Detail: mf.Detail,
		})
		gating++
	}

	suppressed := make([]FindingCLI, 0, len(res.MirrorSuppressed))
	for _, mf := range res.MirrorSuppressed {
		suppressed = append(suppressed, FindingCLI{
			Kind:   string(mf.Kind),
			Path:   mf.Path,
			Detail: mf.Detail,
		})
	}

	sortFindings(findings)
	sortFindings(suppressed)

	return &ValidateResponseCLI{
		Version: version.Version,
		RunID:   res.RunID,
		Clean:   gating == 0,
		Summary: SummaryCLI{
			SourceFiles:      tally.SourceFiles,
			DocPages:         tally.DocPages,
			References:       tally.References,
			Verified:         tally.Verified,
			Drifted:          tally.Drifted,
			Missing:          tally.Missing,
			SourceUnreadable: tally.SourceUnreadable,
			ExtractionErrors: tally.ExtractionErrors,
			MirrorFindings:   tally.MirrorFindings,
			MirrorSuppressed: tally.MirrorSuppressed,
			CacheHits:        res.CacheHits,
			CacheMisses:      res.CacheMisses,
		},
		Findings:   findings,
		Suppressed: suppressed,
		DurationMs: res.Duration.Milliseconds(),
	}
}

func sortFindings(findings []FindingCLI) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.Kind < b.Kind
	})
}
