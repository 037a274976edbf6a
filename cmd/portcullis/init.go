package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/portcullis-dev/portcullis/internal/domain/capabilities"
	"github.com/portcullis-dev/portcullis/internal/domain/policy"
	"github.com/portcullis-dev/portcullis/internal/infrastructure/config"
	"github.com/portcullis-dev/portcullis/internal/infrastructure/container"
)

type initOptions struct {
	Mode          string
	MaxMemoryMB   int
	DefaultCaps   []string
	DenyCaps      []string
	OutputPath    string
	Force         bool
	NoInteractive bool
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starting capability policy",
	Long: `Init writes a policy file that the run and scan commands pick up.
Without flags it walks through the choices interactively; with
--no-interactive it uses the flag values as given.`,
	Example: `  portcullis init
  portcullis init --no-interactive --mode strict --default-caps log,read:**`,
	RunE: runPolicyInit,
}

func init() {
	initCmd.Flags().String("mode", "", "Policy mode: strict, prompt, permissive")
	initCmd.Flags().Int("max-memory", 0, "Per-extension memory ceiling in MiB (0 uses the built-in default)")
	initCmd.Flags().StringSlice("default-caps", nil, "Capabilities granted to every extension")
	initCmd.Flags().StringSlice("deny-caps", nil, "Capabilities denied to every extension")
	initCmd.Flags().StringP("output", "o", "", "Policy file path (default ~/.portcullis/policy.yaml)")
	initCmd.Flags().Bool("force", false, "Overwrite an existing policy file")
	initCmd.Flags().Bool("no-interactive", false, "Disable interactive prompts")

	rootCmd.AddCommand(initCmd)
}

func runPolicyInit(cmd *cobra.Command, args []string) error {
	opts := initOptions{}
	opts.Mode, _ = cmd.Flags().GetString("mode")
	opts.MaxMemoryMB, _ = cmd.Flags().GetInt("max-memory")
	opts.DefaultCaps, _ = cmd.Flags().GetStringSlice("default-caps")
	opts.DenyCaps, _ = cmd.Flags().GetStringSlice("deny-caps")
	opts.OutputPath, _ = cmd.Flags().GetString("output")
	opts.Force, _ = cmd.Flags().GetBool("force")
	opts.NoInteractive, _ = cmd.Flags().GetBool("no-interactive")

	if opts.OutputPath == "" {
		opts.OutputPath = container.DefaultPolicyPath()
	}

	if !opts.NoInteractive {
		if err := promptPolicyOptions(&opts); err != nil {
			return err
		}
	}
	if opts.Mode == "" {
		opts.Mode = policy.ModeStrict.String()
	}

	if err := writePolicyScaffold(opts); err != nil {
		return err
	}

	fmt.Printf("✓ Policy written to %s\n", opts.OutputPath)
	fmt.Printf("Run 'portcullis run <dir>' to load extensions under it.\n")
	return nil
}

func promptPolicyOptions(opts *initOptions) error {
	var err error

	if opts.Mode == "" {
		err = huh.NewSelect[string]().
			Title("Policy mode").
			Options(
				huh.NewOption("Strict (deny anything not granted)", "strict"),
				huh.NewOption("Prompt (ask on first use, remember durable answers)", "prompt"),
				huh.NewOption("Permissive (allow with warnings, for development)", "permissive"),
			).
			Value(&opts.Mode).
			Run()
		if err != nil {
			return err
		}
	}

	if len(opts.DefaultCaps) == 0 {
		err = huh.NewMultiSelect[string]().
			Title("Capabilities granted to every extension").
			Options(
				huh.NewOption("Logging through the host", "log").Selected(true),
				huh.NewOption("Read files inside the workspace", "read:**").Selected(true),
				huh.NewOption("Write files inside the workspace", "write:**"),
				huh.NewOption("HTTP requests to any host", "http:*"),
				huh.NewOption("Run git", "exec:git"),
			).
			Value(&opts.DefaultCaps).
			Run()
		if err != nil {
			return err
		}
	}

	if len(opts.DenyCaps) == 0 {
		var denyList string
		err = huh.NewInput().
			Title("Capabilities denied to every extension (comma separated, empty for none)").
			Placeholder("exec:rm, env:AWS_*").
			Validate(validateTokenList).
			Value(&denyList).
			Run()
		if err != nil {
			return err
		}
		opts.DenyCaps = splitTokenList(denyList)
	}

	if opts.MaxMemoryMB == 0 {
		memory := strconv.Itoa(config.DefaultMaxMemoryMB)
		err = huh.NewInput().
			Title("Per-extension memory ceiling in MiB").
			Validate(func(s string) error {
				n, convErr := strconv.Atoi(strings.TrimSpace(s))
				if convErr != nil || n <= 0 {
					return fmt.Errorf("enter a positive whole number")
				}
				return nil
			}).
			Value(&memory).
			Run()
		if err != nil {
			return err
		}
		opts.MaxMemoryMB, _ = strconv.Atoi(strings.TrimSpace(memory))
	}

	return nil
}

// splitTokenList turns comma separated input into trimmed tokens.
func splitTokenList(input string) []string {
	var tokens []string
	for _, part := range strings.Split(input, ",") {
		if token := strings.TrimSpace(part); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// validateTokenList accepts empty input or a comma separated list of
// parseable capability tokens.
func validateTokenList(input string) error {
	_, err := capabilities.FromTokens(splitTokenList(input))
	return err
}

func writePolicyScaffold(opts initOptions) error {
	if _, err := policy.ParseMode(opts.Mode); err != nil {
		return err
	}
	if _, err := capabilities.FromTokens(opts.DefaultCaps); err != nil {
		return fmt.Errorf("default capabilities: %w", err)
	}
	if _, err := capabilities.FromTokens(opts.DenyCaps); err != nil {
		return fmt.Errorf("deny capabilities: %w", err)
	}
	if opts.MaxMemoryMB < 0 {
		return fmt.Errorf("memory ceiling must be positive, got %d", opts.MaxMemoryMB)
	}

	file := config.PolicyFile{
		Mode:        opts.Mode,
		MaxMemoryMB: opts.MaxMemoryMB,
		DefaultCaps: opts.DefaultCaps,
		DenyCaps:    opts.DenyCaps,
	}
	// Compile applies the same checks the runtime will, so a scaffold
	// that writes successfully also loads successfully.
	if _, err := file.Compile(slog.Default()); err != nil {
		return fmt.Errorf("generated policy does not compile: %w", err)
	}

	if _, err := os.Stat(opts.OutputPath); err == nil && !opts.Force {
		return fmt.Errorf("%s already exists, pass --force to overwrite", opts.OutputPath)
	}

	data, err := yaml.Marshal(file)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(opts.OutputPath), 0o700); err != nil {
		return err
	}
	//nolint:gosec // G306: the policy file holds no secrets
	return os.WriteFile(opts.OutputPath, data, 0o644)
}
