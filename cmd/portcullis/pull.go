package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/portcullis-dev/portcullis/internal/domain/entities"
	"github.com/portcullis-dev/portcullis/internal/infrastructure/artifacts"
	"github.com/portcullis-dev/portcullis/internal/infrastructure/container"
	"github.com/portcullis-dev/portcullis/internal/infrastructure/scanner"
)

func newPullCmd() *cobra.Command {
	var (
		dest           string
		plainHTTP      bool
		username       string
		skipProvenance bool
		repin          bool
	)

	cmd := &cobra.Command{
		Use:   "pull <reference>",
		Short: "Pull an extension artifact from an OCI registry",
		Long: `Pull downloads an artifact into the local cache, pins the digest it
resolved to in portcullis.lock, and verifies the provenance manifest
it ships with, when it ships one. A reference that was pulled before
must resolve to the same digest; a moved tag fails the pull unless
--repin accepts the new digest. Registry credentials come from
--username plus the PORTCULLIS_REGISTRY_PASSWORD environment variable.`,
		Example: `  portcullis pull ghcr.io/example/extensions/hello:1.0.0
  portcullis pull localhost:5000/dev/hello:latest --plain-http`,
		Args: cobra.ExactArgs(1),
		RunE: withContainer(func(cmd *cobra.Command) container.Options {
			return container.Options{
				Registry: artifacts.Config{
					PlainHTTP: plainHTTP,
					Username:  username,
					Password:  viper.GetString("registry_password"),
				},
			}
		}, func(ctx *CommandContext, cmd *cobra.Command, args []string) error {
			return pullArtifact(ctx, args[0], dest, skipProvenance, repin)
		}),
	}

	cmd.Flags().StringVar(&dest, "dest", "", "destination directory (default ~/.portcullis/artifacts/<ref>)")
	cmd.Flags().BoolVar(&plainHTTP, "plain-http", false, "allow plain http registries, local development only")
	cmd.Flags().StringVar(&username, "username", "", "registry username")
	cmd.Flags().BoolVar(&skipProvenance, "skip-provenance", false, "skip provenance verification after download")
	cmd.Flags().BoolVar(&repin, "repin", false, "accept a changed digest for a previously pulled reference")

	return cmd
}

func pullArtifact(ctx *CommandContext, ref, dest string, skipProvenance, repin bool) error {
	if dest == "" {
		dest = filepath.Join(container.BaseDir(), "artifacts", sanitizeRef(ref))
	}
	if err := os.MkdirAll(dest, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}

	digest, err := ctx.Container.ArtifactRegistry().Pull(ctx.Context, ref, dest)
	if err != nil {
		return fmt.Errorf("pulling %s: %w", ref, err)
	}

	fmt.Printf("Pulled %s\n", ref)
	fmt.Printf("  digest: %s\n", digest)
	fmt.Printf("  stored: %s\n", dest)

	// The pulled files stay on disk either way so a drifted artifact can
	// be inspected before anyone decides to trust it.
	pins := artifacts.NewPinFile(filepath.Join(container.BaseDir(), artifacts.LockfileName))
	var pinErr error
	if repin {
		pinErr = pins.Repin(ctx.Context, ref, digest, dest)
	} else {
		pinErr = pins.Pin(ctx.Context, ref, digest, dest)
	}
	if pinErr != nil {
		var integrity *entities.IntegrityError
		if errors.As(pinErr, &integrity) {
			return fmt.Errorf("%s moved from %s to %s since the last pull, pass --repin to accept the new digest", ref, integrity.Expected.Short(), integrity.Actual.Short())
		}
		return fmt.Errorf("pinning %s: %w", ref, pinErr)
	}
	fmt.Printf("  pinned: %s\n", pins.Path())

	if skipProvenance {
		return nil
	}

	manifest, ok, err := scanner.ReadProvenance(dest)
	if err != nil {
		return err
	}
	if !ok {
		ctx.Logger.Warn("artifact ships no provenance manifest, contents are unverified", "ref", ref)
		return nil
	}
	// Verification failures leave the files in place so the operator can
	// inspect what diverged.
	if err := scanner.VerifyProvenance(dest, manifest); err != nil {
		return fmt.Errorf("provenance verification failed for %s: %w", ref, err)
	}
	fmt.Printf("  provenance: verified, %d files match %s\n", len(manifest.Files), manifest.ArtifactDigest)
	return nil
}

// sanitizeRef flattens an OCI reference into one path segment.
func sanitizeRef(ref string) string {
	return strings.NewReplacer("/", "_", ":", "_", "@", "_").Replace(ref)
}

func init() {
	rootCmd.AddCommand(newPullCmd())
}
