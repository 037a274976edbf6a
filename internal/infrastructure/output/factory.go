package output

import (
	"fmt"
	"io"

	"github.com/portcullis-dev/portcullis/internal/application/ports"
)

// FormatterFactory implements ports.ReportFormatterFactory.
type FormatterFactory struct{}

// NewFormatterFactory creates a new formatter factory.
func NewFormatterFactory() *FormatterFactory {
	return &FormatterFactory{}
}

// Create returns a formatter for the given format name.
func (f *FormatterFactory) Create(
	format string,
	writer io.Writer,
	options ports.FormatterOptions,
) (ports.ReportFormatter, error) {
	switch format {
	case "table":
		formatter := NewTableFormatter(writer)
		formatter.EnableColor = options.Color
		return formatter, nil
	case "json":
		return NewJSONFormatter(writer, options.Indent), nil
	case "sarif":
		return NewSARIFFormatter(writer, options.ArtifactPath), nil
	default:
		return nil, fmt.Errorf(
			"unknown format: %s (supported: %v)",
			format, f.SupportedFormats(),
		)
	}
}

// SupportedFormats returns list of available format names.
func (f *FormatterFactory) SupportedFormats() []string {
	return []string{"table", "json", "sarif"}
}
