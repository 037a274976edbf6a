package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/portcullis-dev/portcullis/internal/application/services"
	"github.com/portcullis-dev/portcullis/internal/infrastructure/config"
	"github.com/portcullis-dev/portcullis/internal/infrastructure/container"
)

func newRunCmd() *cobra.Command {
	var (
		policyPath    string
		auditPath     string
		workspace     string
		toolName      string
		toolInput     string
		tailCount     uint64
		noInteractive bool
	)

	cmd := &cobra.Command{
		Use:   "run <dir>",
		Short: "Load extension artifacts and exercise their registrations",
		Long: `Run scans every extension artifact under the given directory, assigns
each a compatibility tier, instantiates the ones the tier allows, and
collects their announced tools, slash commands, and event hooks.

Without --tool it lists the registrations. With --tool it invokes that
tool once with the --input payload and prints the result. Either way
the command finishes by printing the tail of the audit ledger, so every
capability decision made during the run is visible.`,
		Args: cobra.ExactArgs(1),
		RunE: withContainer(func(cmd *cobra.Command) container.Options {
			return container.Options{
				PolicyPath:   policyPath,
				AuditLogPath: auditPath,
				Interactive:  !noInteractive,
			}
		}, func(ctx *CommandContext, cmd *cobra.Command, args []string) error {
			return runArtifacts(ctx, args[0], workspace, toolName, toolInput, tailCount)
		}),
	}

	cmd.Flags().StringVar(&policyPath, "policy", "", "capability policy file (default ~/.portcullis/policy.yaml)")
	cmd.Flags().StringVar(&auditPath, "audit-log", "", "audit ledger file (default ~/.portcullis/audit.log)")
	cmd.Flags().StringVar(&workspace, "workspace", "", "directory extensions may read and write (default: each artifact's own directory)")
	cmd.Flags().StringVar(&toolName, "tool", "", "invoke one registered tool and exit")
	cmd.Flags().StringVar(&toolInput, "input", "{}", "JSON input passed to --tool")
	cmd.Flags().Uint64Var(&tailCount, "tail", 10, "audit records to print after the run")
	cmd.Flags().BoolVar(&noInteractive, "no-interactive", false, "never raise capability prompts, prompt-mode requests are denied")

	return cmd
}

func runArtifacts(ctx *CommandContext, dir, workspace, toolName, toolInput string, tailCount uint64) error {
	found, err := config.DiscoverArtifacts(dir)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return fmt.Errorf("no extension artifacts under %s (expected %s files)", dir, config.ManifestFileName)
	}

	if workspace != "" {
		abs, err := filepath.Abs(workspace)
		if err != nil {
			return fmt.Errorf("resolving workspace: %w", err)
		}
		workspace = abs
	}

	requests := make([]services.LoadRequest, 0, len(found))
	for _, artifact := range found {
		requests = append(requests, services.LoadRequest{
			Manifest:  artifact.Manifest,
			Root:      artifact.Root,
			Workspace: workspace,
		})
	}

	manager := ctx.Container.Manager()

	adopted := 0
	for _, outcome := range manager.LoadAll(ctx.Context, requests) {
		switch {
		case outcome.Err != nil:
			ctx.Logger.Warn("extension rejected", "extension", outcome.Name, "error", outcome.Err)
		case !outcome.Record.Active:
			adopted++
			ctx.Logger.Warn("extension blocked",
				"extension", outcome.Name,
				"tier", outcome.Record.Tier,
				"findings", len(outcome.Record.Report.Findings),
			)
		default:
			adopted++
			ctx.Logger.Info("extension loaded",
				"extension", outcome.Name,
				"tier", outcome.Record.Tier,
				"digest", outcome.Record.Digest.Short(),
			)
		}
	}
	if adopted == 0 {
		return fmt.Errorf("no extensions loaded from %s", dir)
	}

	if toolName != "" {
		if err := invokeTool(ctx, toolName, toolInput); err != nil {
			return err
		}
	} else {
		printRegistrations(os.Stdout, manager.Extensions())
	}

	fmt.Println()
	return printAuditTail(ctx.Context, os.Stdout, ctx.Container.Ledger(), tailCount)
}

func invokeTool(ctx *CommandContext, tool, input string) error {
	raw := json.RawMessage(input)
	if !json.Valid(raw) {
		return fmt.Errorf("input for tool %s is not valid JSON", tool)
	}

	result, callID, err := ctx.Container.Manager().CallTool(ctx.Context, tool, raw)
	if err != nil {
		return fmt.Errorf("tool %s: %w", tool, err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, result, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(result)
	}
	fmt.Printf("call %s:\n%s\n", callID, pretty.String())
	return nil
}

// printRegistrations renders one row per announced tool, slash command,
// and event hook, grouped by extension in adoption order.
func printRegistrations(w io.Writer, records []services.ExtensionRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EXTENSION\tVERSION\tTIER\tKIND\tNAME\tDESCRIPTION")
	for _, rec := range records {
		if !rec.Active {
			fmt.Fprintf(tw, "%s\t%s\t%s\tblocked\t\t\n",
				rec.Announcement.Name, rec.Manifest.Version, rec.Tier)
			continue
		}
		ann := rec.Announcement
		for _, tool := range ann.Tools {
			fmt.Fprintf(tw, "%s\t%s\t%s\ttool\t%s\t%s\n",
				ann.Name, ann.Version, rec.Tier, tool.Name, tool.Description)
		}
		for _, slash := range ann.SlashCommands {
			fmt.Fprintf(tw, "%s\t%s\t%s\tslash\t/%s\t%s\n",
				ann.Name, ann.Version, rec.Tier, slash.Name, slash.Description)
		}
		for _, hook := range ann.EventHooks {
			fmt.Fprintf(tw, "%s\t%s\t%s\thook\t%s\t\n",
				ann.Name, ann.Version, rec.Tier, hook)
		}
	}
	tw.Flush()
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}
