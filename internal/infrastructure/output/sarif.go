// Package output provides formatters for extension scan reports.
package output

import (
	"fmt"
	"io"

	"github.com/owenrumney/go-sarif/v3/pkg/report/v210/sarif"

	"github.com/portcullis-dev/portcullis/internal/domain/compat"
	"github.com/portcullis-dev/portcullis/internal/version"
)

// SARIFFormatter formats scan reports as SARIF 2.1.0 JSON.
// It maps scan rules to SARIF rules and findings to results with
// locations inside the artifact.
//
// Usage:
//
//	formatter := output.NewSARIFFormatter(os.Stdout, "./extensions/hello")
//	if err := formatter.Format(report); err != nil {
//	    log.Fatal(err)
//	}
type SARIFFormatter struct {
	writer       io.Writer
	artifactPath string
}

// NewSARIFFormatter creates a new SARIF formatter.
// artifactPath is the scanned artifact directory, used to resolve
// finding locations to real paths.
func NewSARIFFormatter(writer io.Writer, artifactPath string) *SARIFFormatter {
	return &SARIFFormatter{
		writer:       writer,
		artifactPath: artifactPath,
	}
}

// Format writes the scan report as SARIF 2.1.0 JSON.
func (f *SARIFFormatter) Format(report *compat.Report) error {
	doc := sarif.NewReport()

	run := sarif.NewRunWithInformationURI("Portcullis", "https://portcullis.dev")
	toolVersion := version.Get().Version
	run.Tool.Driver.Version = &toolVersion
	run.Tool.Driver.Organization = ptrString("Portcullis")

	mapper := newSARIFMapper(report, f.artifactPath)
	mapper.mapToRun(run)

	doc.AddRun(run)

	if err := doc.Write(f.writer); err != nil {
		return fmt.Errorf("failed to write SARIF output: %w", err)
	}

	// Trailing newline for terminal output.
	_, err := f.writer.Write([]byte("\n"))
	return err
}

func ptrString(s string) *string {
	return &s
}
