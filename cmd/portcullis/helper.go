package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/portcullis-dev/portcullis/internal/application/ports"
	"github.com/portcullis-dev/portcullis/internal/domain/audit"
	"github.com/portcullis-dev/portcullis/internal/infrastructure/container"
	"github.com/portcullis-dev/portcullis/internal/infrastructure/secrets"
)

// CommandContext provides common command dependencies. Eliminates
// repetitive container initialization across CLI commands.
type CommandContext struct {
	Container *container.Container
	Logger    *slog.Logger
	Context   context.Context
}

// CommandHandler is a function that executes with initialized
// dependencies. Commands focus on their own logic, not wiring.
type CommandHandler func(*CommandContext, *cobra.Command, []string) error

// withContainer wraps a command handler with container initialization
// and teardown. The options function runs after flag parsing, so it
// sees final flag values.
func withContainer(opts func(cmd *cobra.Command) container.Options, handler CommandHandler) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		logger := slog.Default()

		options := opts(cmd)
		options.Logger = logger
		options.Secrets = secretSources()

		c, err := container.New(cmd.Context(), options)
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer func() {
			// Teardown must run even when the command context was
			// cancelled; the manager bounds it with its own budget.
			if cerr := c.Close(context.WithoutCancel(cmd.Context())); cerr != nil {
				logger.Warn("shutdown incomplete", "error", cerr)
			}
		}()

		return handler(&CommandContext{
			Container: c,
			Logger:    logger,
			Context:   cmd.Context(),
		}, cmd, args)
	}
}

// secretSources reads the named-secret maps from the config file. The
// resolved values register with the scrubber, so every container-backed
// command redacts them.
func secretSources() secrets.Sources {
	return secrets.Sources{
		Inline: viper.GetStringMapString("secrets.inline"),
		Env:    viper.GetStringMapString("secrets.env"),
		Files:  viper.GetStringMapString("secrets.files"),
	}
}

// tailStart returns the first sequence number of an n-record tail
// ending at head. Sequence numbers start at 1.
func tailStart(head, n uint64) uint64 {
	if n == 0 || n >= head {
		return 1
	}
	return head - n + 1
}

// printAuditTail renders the last n ledger records.
func printAuditTail(ctx context.Context, w io.Writer, ledger ports.Ledger, n uint64) error {
	head, ok, err := ledger.Head(ctx)
	if err != nil {
		return fmt.Errorf("reading audit head: %w", err)
	}
	if !ok {
		fmt.Fprintln(w, "audit: no decisions recorded")
		return nil
	}

	records, err := ledger.Range(ctx, tailStart(head.Seq, n), 0)
	if err != nil {
		return fmt.Errorf("reading audit tail: %w", err)
	}

	fmt.Fprintf(w, "audit tail (%d of %d records):\n", len(records), head.Seq)
	return printRecords(w, records)
}

// printRecords renders decision records as a table. The context column
// carries whichever of path or command the decision was about.
func printRecords(w io.Writer, records []audit.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTIME\tEXTENSION\tCAPABILITY\tOUTCOME\tREASON\tCONTEXT")
	for _, r := range records {
		detail := r.Path
		if r.Command != "" {
			detail = r.Command
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Seq,
			r.Timestamp.Format(time.RFC3339),
			r.Extension,
			r.Capability,
			r.Outcome,
			r.Reason,
			detail,
		)
	}
	return tw.Flush()
}
