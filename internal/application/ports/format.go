package ports

import (
	"io"

	"github.com/portcullis-dev/portcullis/internal/domain/compat"
)

// ReportFormatter renders one scan report to its destination.
type ReportFormatter interface {
	Format(report *compat.Report) error
}

// FormatterOptions carries per-format rendering knobs.
type FormatterOptions struct {
	// Indent pretty-prints machine-readable formats.
	Indent bool
	// Color enables ANSI escapes in terminal formats.
	Color bool
	// ArtifactPath is the scanned artifact directory. Formats that
	// carry file locations resolve finding paths against it.
	ArtifactPath string
}

// ReportFormatterFactory builds formatters by format name.
type ReportFormatterFactory interface {
	Create(format string, writer io.Writer, options FormatterOptions) (ReportFormatter, error)
	SupportedFormats() []string
}
