package main

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// formatJSON formats the response as JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *ValidateResponseCLI:
		return formatValidateHuman(v)
	case *ReportResponseCLI:
		return formatReportHuman(v)
	case *NavResponseCLI:
		return formatNavHuman(v)
	case *DoctorResponseCLI:
		return formatDoctorHuman(v)
	default:
		// For unknown types, fall back to JSON
		return formatJSON(resp)
	}
}

// findingLine renders one finding as a grep-friendly line.
func findingLine(f FindingCLI) string {
	loc := f.Path
	if f.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", f.Path, f.Line, f.Column)
	}

	var rest string
	switch f.Kind {
	case "drifted":
		rest = fmt.Sprintf("%s:%d -> line %d (confidence %.1f)", f.Target, f.CitedLine, f.SuggestedLine, f.Confidence)
	case "missing", "source_unreadable":
		rest = fmt.Sprintf("%s:%d", f.Target, f.CitedLine)
	default:
		rest = f.Detail
	}
	if f.Kind == "drifted" || f.Kind == "missing" || f.Kind == "source_unreadable" {
		if f.Detail != "" {
			rest += "  [" + f.Detail + "]"
		}
	}
	return fmt.Sprintf("%s  %s  %s", loc, f.Kind, rest)
}

// formatValidateHuman formats a ValidateResponseCLI in human-readable format
func formatValidateHuman(resp *ValidateResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("docsync validate - v%s\n", resp.Version))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	s := resp.Summary
	b.WriteString(fmt.Sprintf("Trees: %d source files, %d doc pages\n", s.SourceFiles, s.DocPages))
	b.WriteString(fmt.Sprintf("References: %d checked, %d verified, %d drifted, %d missing",
		s.References, s.Verified, s.Drifted, s.Missing))
	if s.SourceUnreadable > 0 {
		b.WriteString(fmt.Sprintf(", %d unreadable", s.SourceUnreadable))
	}
	b.WriteString("\n")
	if s.ExtractionErrors > 0 {
		b.WriteString(fmt.Sprintf("Extraction errors: %d\n", s.ExtractionErrors))
	}
	b.WriteString(fmt.Sprintf("Mirror: %d finding(s)", s.MirrorFindings))
	if s.MirrorSuppressed > 0 {
		b.WriteString(fmt.Sprintf(", %d suppressed by whitelist", s.MirrorSuppressed))
	}
	b.WriteString("\n")
	if s.CacheHits+s.CacheMisses > 0 {
		b.WriteString(fmt.Sprintf("Cache: %d hit(s), %d miss(es)\n", s.CacheHits, s.CacheMisses))
	}
	b.WriteString("\n")

	if len(resp.Findings) == 0 {
		b.WriteString("✓ Documentation is consistent with the source tree\n")
	} else {
		b.WriteString("Findings:\n")
		for _, f := range resp.Findings {
			b.WriteString("  " + findingLine(f) + "\n")
		}
	}

	b.WriteString(fmt.Sprintf("\n(Run %s took %dms)\n", resp.RunID, resp.DurationMs))
	return b.String(), nil
}

// formatReportHuman formats a ReportResponseCLI in human-readable format
func formatReportHuman(resp *ReportResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("docsync report - v%s\n", resp.Version))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	b.WriteString(fmt.Sprintf("Run: %s\n", resp.RunID))
	b.WriteString(fmt.Sprintf("Ledger: %s (%d source files)\n\n", resp.LedgerPath, resp.Entries))

	b.WriteString("Status:\n")
	b.WriteString(fmt.Sprintf("  complete      %6d\n", resp.Complete))
	b.WriteString(fmt.Sprintf("  stub          %6d\n", resp.Stub))
	b.WriteString(fmt.Sprintf("  undocumented  %6d\n", resp.Undocumented))
	if resp.PendingReverification > 0 {
		b.WriteString(fmt.Sprintf("  (%d held back pending re-verification)\n", resp.PendingReverification))
	}
	b.WriteString("\n")

	if len(resp.Files) > 0 {
		b.WriteString("Files:\n")
		for _, f := range resp.Files {
			line := fmt.Sprintf("  %-13s %s", f.Status, f.SourcePath)
			if f.PrimaryDoc != "" {
				line += "  (" + f.PrimaryDoc + ")"
			}
			if f.Note != "" {
				line += "  [" + f.Note + "]"
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}

	if len(resp.Regressions) == 0 {
		b.WriteString("✓ No regressions against the prior run\n")
	} else {
		b.WriteString("Regressions:\n")
		for _, r := range resp.Regressions {
			b.WriteString(fmt.Sprintf("  ✗ %s: %s -> %s\n", r.SourcePath, r.From, r.To))
		}
	}

	if resp.HistoryPath != "" {
		b.WriteString(fmt.Sprintf("\nHistory snapshot: %s\n", resp.HistoryPath))
	}
	b.WriteString(fmt.Sprintf("\n(Run took %dms)\n", resp.DurationMs))
	return b.String(), nil
}

// formatNavHuman formats a NavResponseCLI in human-readable format
func formatNavHuman(resp *NavResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString("Navigation artifact written\n")
	b.WriteString(fmt.Sprintf("  Out: %s (%s, %d entries, %s)\n",
		resp.Out, resp.ArtifactFormat, resp.Entries, formatBytes(resp.SizeBytes)))

	if len(resp.Warnings) > 0 {
		b.WriteString("Warnings:\n")
		for _, w := range resp.Warnings {
			b.WriteString(fmt.Sprintf("  ! %s\n", w))
		}
	}
	return b.String(), nil
}

// formatDoctorHuman formats a DoctorResponseCLI in human-readable format
func formatDoctorHuman(resp *DoctorResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString("docsync doctor\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	healthIcon := "✓"
	healthText := "All checks passed"
	if !resp.Healthy {
		healthIcon = "✗"
		healthText = "Issues found"
	}
	b.WriteString(fmt.Sprintf("%s %s\n\n", healthIcon, healthText))

	for _, check := range resp.Checks {
		var icon string
		switch check.Status {
		case "pass":
			icon = "✓"
		case "warn":
			icon = "⚠"
		case "fail":
			icon = "✗"
		default:
			icon = "?"
		}

		b.WriteString(fmt.Sprintf("%s %s: %s\n", icon, check.Name, check.Message))

		if len(check.SuggestedFixes) > 0 {
			b.WriteString("  Suggested fixes:\n")
			for _, fix := range check.SuggestedFixes {
				b.WriteString(fmt.Sprintf("    - %s\n", fix.Description))
				if fix.Command != "" {
					b.WriteString(fmt.Sprintf("      $ %s\n", fix.Command))
				}
			}
		}
		b.WriteString("\n")
	}

	return b.String(), nil
}

// formatBytes formats byte size in human-readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
