package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"docsync/internal/config"
	"docsync/internal/errors"
	"docsync/internal/ledger"
	"docsync/internal/version"
)

var (
	reportFormat    string
	reportWorkers   int
	reportNoCache   bool
	reportWhitelist string
	reportHistory   bool
)

// RegressionCLI is one status downgrade relative to the prior ledger.
type RegressionCLI struct {
	SourcePath string `json:"sourcePath"`
	From       string `json:"from"`
	To         string `json:"to"`
}

// EntryCLI is one ledger entry in CLI shape.
type EntryCLI struct {
	SourcePath string `json:"sourcePath"`
	PrimaryDoc string `json:"primaryDoc,omitempty"`
	Status     string `json:"status"`
	Note       string `json:"note,omitempty"`
}

// ReportResponseCLI represents the report command response
type ReportResponseCLI struct {
	Version               string          `json:"version"`
	RunID                 string          `json:"runId"`
	LedgerPath            string          `json:"ledgerPath"`
	Entries               int             `json:"entries"`
	Complete              int             `json:"complete"`
	Stub                  int             `json:"stub"`
	Undocumented          int             `json:"undocumented"`
	PendingReverification int             `json:"pendingReverification,omitempty"`
	Regressions           []RegressionCLI `json:"regressions"`
	Files                 []EntryCLI      `json:"files,omitempty"`
	HistoryPath           string          `json:"historyPath,omitempty"`
	DurationMs            int64           `json:"durationMs"`
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Update the coverage ledger and flag regressions",
	Long: `Report runs a full validation pass, derives a per-source-file coverage
status (complete, stub, undocumented), and persists the result as the
ledger under .docsync/. Status downgrades against the prior ledger are
reported as regressions.

Exit codes: 0 when no entry regressed, 1 when regressions exist, 2 on
configuration errors.`,
	Run: func(cmd *cobra.Command, args []string) {
		runReport()
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", "human", "Output format (json or human)")
	reportCmd.Flags().IntVar(&reportWorkers, "workers", 0, "Worker count for scanning and resolution (0 = NumCPU)")
	reportCmd.Flags().BoolVar(&reportNoCache, "no-cache", false, "Bypass the scan cache for this run")
	reportCmd.Flags().StringVar(&reportWhitelist, "whitelist", "", "Whitelist file path (overrides config)")
	reportCmd.Flags().BoolVar(&reportHistory, "history", false, "Also write a compressed ledger snapshot under .docsync/history/")
	rootCmd.AddCommand(reportCmd)
}

func runReport() {
	workDir := mustGetWorkDir()
	cfg := mustLoadConfig(workDir, reportFormat)
	logger := newLogger(reportFormat, cfg)

	lock, err := ledger.AcquireLock(config.LedgerLockPath(workDir))
	if err != nil {
		if stderrors.Is(err, ledger.ErrLocked) {
			fatal(reportFormat, errors.NewSyncError(errors.LedgerLocked,
				err.Error(), nil, nil, nil))
		}
		fatal(reportFormat, errors.NewSyncError(errors.InternalError,
			"cannot acquire ledger lock", err, nil, nil))
	}
	defer lock.Release()

	ledgerPath := config.LedgerPath(workDir)
	prior, err := ledger.Load(ledgerPath)
	if err != nil {
		if stderrors.Is(err, ledger.ErrUnsupportedVersion) {
			fatal(reportFormat, errors.NewSyncError(errors.LedgerUnsupported,
				fmt.Sprintf("ledger at %s was written by a newer docsync", ledgerPath),
				err, nil, nil))
		}
		fatal(reportFormat, errors.NewSyncError(errors.InternalError,
			fmt.Sprintf("cannot read ledger at %s", ledgerPath), err, nil, nil))
	}

	eng, cleanup := buildEngine(workDir, reportFormat, cfg, logger, reportWorkers, reportWhitelist, reportNoCache)
	defer cleanup()

	res, err := eng.Run(context.Background())
	if err != nil {
		fatal(reportFormat, errors.NewSyncError(errors.InternalError,
			"validation run failed", err, nil, nil))
	}

	next := ledger.Derive(ledger.DeriveParams{
		RunID:          res.RunID,
		Now:            time.Now().UTC(),
		Prior:          prior,
		Source:         res.Source,
		Docs:           res.Docs,
		Stats:          res.Stats(),
		MinDocLines:    cfg.Ledger.MinDocLines,
		MinSourceLines: cfg.Ledger.MinSourceLines,
	})
	regressions := ledger.Regressions(prior, next)

	if err := ledger.Save(ledgerPath, next); err != nil {
		fatal(reportFormat, errors.NewSyncError(errors.ArtifactWriteFailed,
			fmt.Sprintf("cannot write ledger to %s", ledgerPath), err, nil, nil))
	}

	historyPath := ""
	if reportHistory {
		historyPath, err = ledger.WriteHistory(config.HistoryDir(workDir), next)
		if err != nil {
			fatal(reportFormat, errors.NewSyncError(errors.ArtifactWriteFailed,
				"cannot write ledger history snapshot", err, nil, nil))
		}
	}

	resp := buildReportResponse(res.Duration, ledgerPath, historyPath, next, regressions)

	output, err := FormatResponse(resp, OutputFormat(reportFormat))
	if err != nil {
		logger.Error("Failed to format response", map[string]interface{}{"error": err.Error()})
		os.Exit(2)
	}
	fmt.Println(output)

	if len(regressions) > 0 {
		lock.Release()
		os.Exit(1)
	}
}

func buildReportResponse(dur time.Duration, ledgerPath, historyPath string, next *ledger.Ledger, regressions []ledger.Regression) *ReportResponseCLI {
	resp := &ReportResponseCLI{
		Version:     version.Version,
		RunID:       next.RunID,
		LedgerPath:  ledgerPath,
		Entries:     len(next.Entries),
		Regressions: make([]RegressionCLI, 0, len(regressions)),
		HistoryPath: historyPath,
		DurationMs:  dur.Milliseconds(),
	}

	paths := make([]string, 0, len(next.Entries))
	for path := range next.Entries {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		e := next.Entries[path]
		switch e.Status {
		case ledger.StatusComplete:
			resp.Complete++
		case ledger.StatusStub:
			resp.Stub++
		case ledger.StatusUndocumented:
			resp.Undocumented++
		}
		if e.Note != "" {
			resp.PendingReverification++
		}
		resp.Files = append(resp.Files, EntryCLI{
			SourcePath: e.SourcePath,
			PrimaryDoc: e.PrimaryDoc,
			Status:     string(e.Status),
			Note:       e.Note,
		})
	}

	for _, r := range regressions {
		resp.Regressions = append(resp.Regressions, RegressionCLI{
			SourcePath: r.SourcePath,
			From:       string(r.From),
			To:         string(r.To),
		})
	}
	return resp
}
