package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/portcullis-dev/portcullis/internal/application/ports"
	"github.com/portcullis-dev/portcullis/internal/domain/compat"
	"github.com/portcullis-dev/portcullis/internal/infrastructure/config"
	"github.com/portcullis-dev/portcullis/internal/infrastructure/container"
	"github.com/portcullis-dev/portcullis/internal/infrastructure/scanner"
)

func newScanCmd() *cobra.Command {
	var (
		format     string
		outFile    string
		provenance bool
		policyPath string
	)

	cmd := &cobra.Command{
		Use:   "scan <artifact>",
		Short: "Classify an extension artifact without running it",
		Long: `Scan reads an artifact's source files, classifies them into a
compatibility tier, and predicts how the active policy would treat the
capabilities its imports imply. Nothing is instantiated and no audit
records are written.

The command exits non-zero when the verdict is fail, so it can gate a
CI pipeline the same way the runtime gates adoption.`,
		Args: cobra.ExactArgs(1),
		RunE: withContainer(func(cmd *cobra.Command) container.Options {
			return container.Options{PolicyPath: policyPath}
		}, func(ctx *CommandContext, cmd *cobra.Command, args []string) error {
			return scanArtifact(ctx, args[0], format, outFile, provenance)
		}),
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table, json, sarif")
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().BoolVar(&provenance, "provenance", false, "Write a provenance manifest into the artifact after scanning")
	cmd.Flags().StringVar(&policyPath, "policy", "", "capability policy file used for preflight predictions")

	return cmd
}

// scanRequest derives the scan target from the artifact layout. A
// manifest names the extension and may point the scanner at an entry
// source subdirectory; without one the directory is scanned bare.
func scanRequest(dir string) (ports.ScanRequest, error) {
	manifestPath := filepath.Join(dir, config.ManifestFileName)
	if _, err := os.Stat(manifestPath); err != nil {
		if os.IsNotExist(err) {
			return ports.ScanRequest{Dir: dir}, nil
		}
		return ports.ScanRequest{}, fmt.Errorf("reading %s: %w", manifestPath, err)
	}

	manifest, err := config.LoadManifest(manifestPath)
	if err != nil {
		return ports.ScanRequest{}, err
	}

	scanDir := dir
	if manifest.Entry.Source != "" {
		scanDir = filepath.Join(dir, manifest.Entry.Source)
	}
	return ports.ScanRequest{
		Dir:       scanDir,
		Extension: manifest.Name,
		Declared:  manifest.DeclaredCapabilities(),
	}, nil
}

func scanArtifact(ctx *CommandContext, dir, format, outFile string, provenance bool) error {
	req, err := scanRequest(dir)
	if err != nil {
		return err
	}

	rules := ctx.Container.PolicyStore().Snapshot()
	report, err := ctx.Container.Scanner().Preflight(ctx.Context, req, rules)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", dir, err)
	}

	if provenance {
		manifest, err := scanner.BuildProvenance(dir)
		if err != nil {
			return fmt.Errorf("building provenance: %w", err)
		}
		if err := scanner.WriteProvenance(dir, manifest); err != nil {
			return err
		}
		ctx.Logger.Info("provenance written",
			"file", filepath.Join(dir, scanner.ProvenanceFileName),
			"digest", manifest.ArtifactDigest)
	}

	writer := os.Stdout
	if outFile != "" {
		//nolint:gosec // G304: user-controlled output file path is intentional
		file, err := os.Create(outFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			_ = file.Close()
		}()
		writer = file
	}

	formatter, err := ctx.Container.Formatters().Create(format, writer, ports.FormatterOptions{
		Indent:       true,
		Color:        outFile == "",
		ArtifactPath: dir,
	})
	if err != nil {
		return err
	}
	if err := formatter.Format(&report); err != nil {
		return fmt.Errorf("failed to format report: %w", err)
	}

	if report.Verdict == compat.VerdictFail {
		return fmt.Errorf("scan failed: %s classified %s with %d findings",
			dir, report.Tier, len(report.Findings))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(newScanCmd())
}
