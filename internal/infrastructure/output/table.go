package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/portcullis-dev/portcullis/internal/domain/compat"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// TableFormatter formats scan reports as a human-readable table.
type TableFormatter struct {
	writer      io.Writer
	EnableColor bool
}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{
		writer:      w,
		EnableColor: true, // Default to true, caller can disable
	}
}

// colorize returns the string wrapped in ANSI color codes if enabled.
func (f *TableFormatter) colorize(text, code string) string {
	if !f.EnableColor {
		return text
	}
	return code + text + colorReset
}

// Format writes the scan report as a table.
//
//nolint:errcheck // Table formatting errors are non-critical (best-effort terminal output)
func (f *TableFormatter) Format(report *compat.Report) error {
	fmt.Fprintln(f.writer, f.colorize(strings.Repeat("─", 80), colorGray))
	fmt.Fprintf(f.writer, "Extension: %s\n", f.colorize(report.Extension, colorBold))
	fmt.Fprintf(f.writer, "Digest:    %s\n", report.Digest)
	fmt.Fprintf(f.writer, "Scanner:   v%s\n", report.ScannerVersion)

	verdictText, verdictColor := f.getVerdictInfo(report.Verdict)
	fmt.Fprintf(f.writer, "Verdict:   %s\n", f.colorize(verdictText, verdictColor))
	fmt.Fprintf(f.writer, "Tier:      %s\n", f.colorize(report.Tier.String(), f.tierColor(report.Tier)))
	fmt.Fprintf(f.writer, "Entry:     %s (confidence %.2f)\n",
		report.EntryPoint.Kind, report.EntryPoint.Confidence)
	fmt.Fprintln(f.writer)

	f.formatFindings(report.Findings)
	f.formatImports(report.Imports)
	f.formatFiles(report.Files)

	fmt.Fprintln(f.writer, f.colorize(strings.Repeat("─", 80), colorGray))
	f.formatSummary(Summarize(report))

	return nil
}

// formatFindings lists every finding with its location and snippet.
//
//nolint:errcheck // Best-effort terminal output
func (f *TableFormatter) formatFindings(findings []compat.Finding) {
	if len(findings) == 0 {
		fmt.Fprintln(f.writer, "No findings.")
		fmt.Fprintln(f.writer)
		return
	}

	fmt.Fprintln(f.writer, f.colorize("Findings:", colorBold))
	fmt.Fprintln(f.writer, f.colorize(strings.Repeat("─", 80), colorGray))

	for _, finding := range findings {
		symbol, color := f.getFindingInfo(finding.Verdict)
		fmt.Fprintf(f.writer, "%s [%s] %s: %s\n",
			f.colorize(symbol, color),
			finding.Class,
			f.colorize(finding.Rule, color),
			finding.Message)

		if finding.File != "" {
			location := finding.File
			if finding.Line > 0 {
				location = fmt.Sprintf("%s:%d", finding.File, finding.Line)
			}
			fmt.Fprintf(f.writer, "    %s\n", f.colorize(location, colorCyan))
		}
		if finding.Snippet != "" {
			fmt.Fprintf(f.writer, "    > %s\n", f.colorize(finding.Snippet, colorGray))
		}
	}

	fmt.Fprintln(f.writer)
}

// formatImports lists runtime-module imports and the capability kinds
// each one implies.
//
//nolint:errcheck // Best-effort terminal output
func (f *TableFormatter) formatImports(imports []compat.ImportUse) {
	if len(imports) == 0 {
		return
	}

	fmt.Fprintln(f.writer, f.colorize("Imports:", colorBold))
	for _, imp := range imports {
		fmt.Fprintf(f.writer, "  %s %s (%s:%d)\n",
			f.colorize(imp.Module, colorBlue),
			strings.Join(imp.Kinds, ", "),
			imp.File, imp.Line)
	}
	fmt.Fprintln(f.writer)
}

// formatFiles lists the scanned source files and the role each plays.
//
//nolint:errcheck // Best-effort terminal output
func (f *TableFormatter) formatFiles(files []compat.FileClassification) {
	if len(files) == 0 {
		return
	}

	fmt.Fprintln(f.writer, f.colorize("Files:", colorBold))
	for _, file := range files {
		fmt.Fprintf(f.writer, "  %s  %s (%.2f)\n", file.Path, file.Kind, file.Confidence)
	}
	fmt.Fprintln(f.writer)
}

// formatSummary formats the summary counts.
//
//nolint:errcheck // Best-effort terminal output
func (f *TableFormatter) formatSummary(summary ReportSummary) {
	fmt.Fprintf(f.writer, "Summary: %d findings (", summary.Findings)
	fmt.Fprintf(f.writer, "%s %d fail, ", f.colorize("✗", colorRed), summary.Failures)
	fmt.Fprintf(f.writer, "%s %d warn), ", f.colorize("⚠", colorYellow), summary.Warnings)
	fmt.Fprintf(f.writer, "%d files scanned, %d imports\n", summary.FilesScanned, summary.Imports)
}

// getVerdictInfo returns the display text and color for a verdict.
func (f *TableFormatter) getVerdictInfo(verdict compat.Verdict) (string, string) {
	switch verdict {
	case compat.VerdictPass:
		return "PASS", colorGreen
	case compat.VerdictWarn:
		return "WARN", colorYellow
	case compat.VerdictFail:
		return "FAIL", colorRed
	default:
		return strings.ToUpper(verdict.String()), colorReset
	}
}

// getFindingInfo returns a symbol and color for a finding's severity.
func (f *TableFormatter) getFindingInfo(verdict compat.Verdict) (string, string) {
	switch verdict {
	case compat.VerdictFail:
		return "✗", colorRed
	case compat.VerdictWarn:
		return "⚠", colorYellow
	default:
		return "✓", colorGreen
	}
}

// tierColor picks the tier's display color.
func (f *TableFormatter) tierColor(tier compat.Tier) string {
	switch tier {
	case compat.TierCompatible:
		return colorGreen
	case compat.TierWarning:
		return colorYellow
	default:
		return colorRed
	}
}
