package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/portcullis-dev/portcullis/internal/domain/capabilities"
	"github.com/portcullis-dev/portcullis/internal/domain/values"
	"github.com/portcullis-dev/portcullis/internal/templates"
)

// createExtensionOptions holds options for the create extension command.
type createExtensionOptions struct {
	name         string
	lang         string
	output       string
	sdkVersion   string
	modulePath   string
	description  string
	toolName     string
	capabilities []string
	force        bool
}

func newCreateExtensionCmd() *cobra.Command {
	opts := &createExtensionOptions{}

	cmd := &cobra.Command{
		Use:   "extension",
		Short: "Create a new extension scaffold",
		Long: `Generate a new extension project with a manifest, a starter tool,
tests, and build configuration.`,
		Example: `  # Create a basic extension
  portcullis create extension --name log-digest

  # Declare capabilities up front
  portcullis create extension --name log-digest --capabilities "read:logs/*,log"

  # Create in a specific directory with a real module path
  portcullis create extension --name log-digest -o ./extensions/log-digest --module github.com/acme/log-digest`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runCreateExtension(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.name, "name", "n", "", "Extension name (required, e.g., 'log-digest')")
	cmd.Flags().StringVarP(&opts.lang, "lang", "l", "go", "Language: go")
	cmd.Flags().StringSliceVarP(&opts.capabilities, "capabilities", "c", nil, "Comma-separated capability tokens (e.g., 'read:logs/*,log')")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output directory (default: ./<name>)")
	cmd.Flags().StringVar(&opts.sdkVersion, "sdk-version", "v0.1.0", "SDK version to require")
	cmd.Flags().StringVar(&opts.modulePath, "module", "", "Go module path (default: github.com/<name>, set for real projects)")
	cmd.Flags().StringVar(&opts.description, "description", "", "Extension description (default derived from the name)")
	cmd.Flags().StringVar(&opts.toolName, "tool", "", "Starter tool name (default: the extension name)")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "Overwrite existing files")

	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runCreateExtension(opts *createExtensionOptions) error {
	data, err := buildExtensionData(opts)
	if err != nil {
		return err
	}

	if opts.output == "" {
		opts.output = "./" + opts.name
	}
	outputDir, err := filepath.Abs(opts.output)
	if err != nil {
		return fmt.Errorf("resolving output path: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	tmpl, err := templates.ExtensionTemplates()
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	files, err := templates.TemplateFiles(opts.lang)
	if err != nil {
		return err
	}

	for _, file := range files {
		outputPath := filepath.Join(outputDir, file)

		if !opts.force {
			if _, err := os.Stat(outputPath); err == nil {
				return fmt.Errorf("file already exists: %s (use --force to overwrite)", outputPath)
			}
		}

		var buf bytes.Buffer
		if err := tmpl.ExecuteTemplate(&buf, file, data); err != nil {
			return fmt.Errorf("rendering %s: %w", file, err)
		}

		//nolint:gosec // G306: generated project files need reasonable permissions
		if err := os.WriteFile(outputPath, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", outputPath, err)
		}

		slog.Debug("created file", "path", outputPath)
	}

	fmt.Printf("✓ Created extension '%s' in %s\n\n", opts.name, outputDir)
	fmt.Println("Next steps:")
	fmt.Printf("  1. cd %s\n", opts.output)
	fmt.Println("  2. go mod tidy")
	fmt.Println("  3. Implement your tool in extension.go")
	fmt.Println("  4. make build")
	fmt.Printf("  5. portcullis run . --tool %s --input '{\"message\":\"hello\"}'\n", data.ToolName)

	return nil
}

// buildExtensionData validates the options and derives the template
// fields. Scaffold names are stricter than manifest names: they must
// start with a letter so the derived Go identifiers are valid.
func buildExtensionData(opts *createExtensionOptions) (templates.ExtensionData, error) {
	if _, err := values.NewExtensionName(opts.name); err != nil {
		return templates.ExtensionData{}, err
	}
	if !unicode.IsLetter(rune(opts.name[0])) {
		return templates.ExtensionData{}, fmt.Errorf("invalid extension name %q: must start with a letter", opts.name)
	}
	if opts.lang != "go" {
		return templates.ExtensionData{}, fmt.Errorf("unsupported language: %s (supported: go)", opts.lang)
	}
	if _, err := capabilities.FromTokens(opts.capabilities); err != nil {
		return templates.ExtensionData{}, fmt.Errorf("invalid capabilities: %w", err)
	}

	title := toTitleCase(opts.name)
	description := opts.description
	if description == "" {
		description = title + " extension"
	}
	toolName := opts.toolName
	if toolName == "" {
		toolName = opts.name
	}
	modulePath := opts.modulePath
	if modulePath == "" {
		modulePath = "github.com/" + opts.name
	}

	return templates.ExtensionData{
		ExtensionName:  opts.name,
		ExtensionTitle: title,
		ToolName:       toolName,
		ToolFuncName:   toFuncName(opts.name, false),
		ToolTestName:   toFuncName(opts.name, true),
		Description:    description,
		ModulePath:     modulePath,
		SDKVersion:     opts.sdkVersion,
		APIVersion:     "1.0.0",
		Capabilities:   opts.capabilities,
	}, nil
}

// nameWords splits an extension name on its separator characters.
func nameWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || r == '_' || r == '.'
	})
}

// toTitleCase converts "log-digest" to "Log Digest".
func toTitleCase(s string) string {
	words := nameWords(s)
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(string(word[0])) + word[1:]
		}
	}
	return strings.Join(words, " ")
}

// toFuncName converts "log-digest" to "logDigest", or "LogDigest" when
// exported is set.
func toFuncName(s string, exported bool) string {
	var result strings.Builder
	for i, word := range nameWords(s) {
		runes := []rune(word)
		if i == 0 && !exported {
			runes[0] = unicode.ToLower(runes[0])
		} else {
			runes[0] = unicode.ToUpper(runes[0])
		}
		result.WriteString(string(runes))
	}
	return result.String()
}
