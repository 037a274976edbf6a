// Package templates provides embedded templates for extension
// scaffolding.
package templates

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"
)

//go:embed extension/*.tmpl
var extensionTemplates embed.FS

// ExtensionData contains the data used to render extension templates.
type ExtensionData struct {
	// ExtensionName is the manifest name (e.g., "log-digest").
	ExtensionName string
	// ExtensionTitle is the title case name (e.g., "Log Digest").
	ExtensionTitle string
	// ToolName is the starter tool's registered name.
	ToolName string
	// ToolFuncName is the starter handler's Go identifier (e.g.,
	// "logDigest").
	ToolFuncName string
	// ToolTestName is the exported test identifier (e.g., "LogDigest").
	ToolTestName string
	// Description seeds the manifest and registration description.
	Description string
	// ModulePath is the Go module path (e.g.,
	// "github.com/user/log-digest").
	ModulePath string
	// SDKVersion is the sdk module version to require.
	SDKVersion string
	// APIVersion is the host protocol version the manifest declares.
	APIVersion string
	// Capabilities is the list of declared capability tokens.
	Capabilities []string
}

// CapabilityArgs renders the declared tokens as quoted Go arguments.
func (d ExtensionData) CapabilityArgs() string {
	quoted := make([]string, len(d.Capabilities))
	for i, c := range d.Capabilities {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	return strings.Join(quoted, ", ")
}

// ExtensionTemplates returns the parsed extension scaffold templates.
func ExtensionTemplates() (*template.Template, error) {
	tmpl := template.New("")

	err := fs.WalkDir(extensionTemplates, "extension", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".tmpl") {
			return nil
		}

		content, err := extensionTemplates.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading template %s: %w", path, err)
		}

		// Use filename without .tmpl as template name
		name := strings.TrimPrefix(path, "extension/")
		name = strings.TrimSuffix(name, ".tmpl")

		_, err = tmpl.New(name).Parse(string(content))
		if err != nil {
			return fmt.Errorf("parsing template %s: %w", path, err)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	return tmpl, nil
}

// TemplateFiles returns the files a scaffold generates for a language.
func TemplateFiles(lang string) ([]string, error) {
	switch lang {
	case "go":
		return []string{
			"extension.yaml",
			"extension.go",
			"main.go",
			"extension_test.go",
			"go.mod",
			"Makefile",
			"README.md",
		}, nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
}
