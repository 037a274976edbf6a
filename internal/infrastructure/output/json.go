package output

import (
	"encoding/json"
	"io"

	"github.com/portcullis-dev/portcullis/internal/domain/compat"
)

// ReportSchema tags the machine-readable scan report so consumers can
// detect shape changes without sniffing fields.
const ReportSchema = "portcullis.ext.scan_report.v1"

// ReportSummary counts findings by severity for quick triage.
type ReportSummary struct {
	Findings     int `json:"findings"`
	Failures     int `json:"failures"`
	Warnings     int `json:"warnings"`
	FilesScanned int `json:"files_scanned"`
	Imports      int `json:"imports"`
}

// Summarize folds a report into its summary counts.
func Summarize(report *compat.Report) ReportSummary {
	summary := ReportSummary{
		Findings:     len(report.Findings),
		FilesScanned: len(report.Files),
		Imports:      len(report.Imports),
	}
	for _, f := range report.Findings {
		switch f.Verdict {
		case compat.VerdictFail:
			summary.Failures++
		case compat.VerdictWarn:
			summary.Warnings++
		}
	}
	return summary
}

// findingView is the wire shape of one finding. The domain type keeps
// the per-finding verdict out of its own serialization, so the report
// spells it out here as a severity token.
type findingView struct {
	Severity string `json:"severity"`
	Class    string `json:"class"`
	Rule     string `json:"rule"`
	Message  string `json:"message"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Snippet  string `json:"snippet,omitempty"`
}

// reportEnvelope is the versioned wire shape of the JSON report.
type reportEnvelope struct {
	Schema         string                      `json:"schema"`
	Extension      string                      `json:"extension"`
	Digest         string                      `json:"digest"`
	ScannerVersion string                      `json:"scanner_version"`
	Verdict        compat.Verdict              `json:"verdict"`
	Tier           compat.Tier                 `json:"tier"`
	Summary        ReportSummary               `json:"summary"`
	Findings       []findingView               `json:"findings"`
	Imports        []compat.ImportUse          `json:"imports,omitempty"`
	EntryPoint     compat.Classification       `json:"entry_point"`
	Files          []compat.FileClassification `json:"files,omitempty"`
}

// JSONFormatter formats scan reports as schema-tagged JSON.
type JSONFormatter struct {
	writer io.Writer
	indent bool
}

// NewJSONFormatter creates a new JSON formatter.
// If indent is true, the output will be pretty-printed with indentation.
func NewJSONFormatter(w io.Writer, indent bool) *JSONFormatter {
	return &JSONFormatter{
		writer: w,
		indent: indent,
	}
}

// Format writes the scan report as JSON.
func (f *JSONFormatter) Format(report *compat.Report) error {
	envelope := reportEnvelope{
		Schema:         ReportSchema,
		Extension:      report.Extension,
		Digest:         report.Digest,
		ScannerVersion: report.ScannerVersion,
		Verdict:        report.Verdict,
		Tier:           report.Tier,
		Summary:        Summarize(report),
		Findings:       make([]findingView, 0, len(report.Findings)),
		Imports:        report.Imports,
		EntryPoint:     report.EntryPoint,
		Files:          report.Files,
	}
	for _, finding := range report.Findings {
		envelope.Findings = append(envelope.Findings, findingView{
			Severity: finding.Verdict.String(),
			Class:    finding.Class.String(),
			Rule:     finding.Rule,
			Message:  finding.Message,
			File:     finding.File,
			Line:     finding.Line,
			Snippet:  finding.Snippet,
		})
	}

	var data []byte
	var err error

	if f.indent {
		data, err = json.MarshalIndent(envelope, "", "  ")
	} else {
		data, err = json.Marshal(envelope)
	}

	if err != nil {
		return err
	}

	_, err = f.writer.Write(data)
	if err != nil {
		return err
	}

	// Add newline for better terminal output
	_, err = f.writer.Write([]byte("\n"))
	return err
}
