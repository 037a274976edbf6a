package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/portcullis-dev/portcullis/internal/infrastructure/audit"
)

func newAuditCmd() *cobra.Command {
	var (
		filterExpr string
		verify     bool
		tailCount  uint64
	)

	cmd := &cobra.Command{
		Use:   "audit <file>",
		Short: "Inspect a capability audit ledger",
		Long: `Audit prints the decision records a ledger file holds, oldest first.
Records can be narrowed with --filter expressions over the record
fields (seq, ts, extension, capability, outcome, reason, tier,
warning, path, command, call_id, denied, age).

With --verify the command walks the hash chain instead and reports
whether any record has been altered or removed.`,
		Example: `  portcullis audit ~/.portcullis/audit.log
  portcullis audit audit.log --filter 'outcome == "deny" && capability startsWith "exec"'
  portcullis audit audit.log --verify`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspectLedger(cmd.Context(), os.Stdout, args[0], filterExpr, verify, tailCount)
		},
	}

	cmd.Flags().StringVar(&filterExpr, "filter", "", `record filter, e.g. 'outcome == "deny" && capability startsWith "exec"'`)
	cmd.Flags().BoolVar(&verify, "verify", false, "verify the hash chain instead of printing records")
	cmd.Flags().Uint64Var(&tailCount, "tail", 0, "print only the last N records (0 prints all)")

	return cmd
}

func inspectLedger(ctx context.Context, w io.Writer, path, filterExpr string, verify bool, tailCount uint64) error {
	// Opening a ledger creates the file, which would turn a typoed path
	// into a fresh empty ledger. Inspect only what already exists.
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("audit ledger %s: %w", path, err)
	}

	ledger, err := audit.OpenFileLedger(path)
	if err != nil {
		return fmt.Errorf("opening audit ledger: %w", err)
	}
	defer func() {
		_ = ledger.Close()
	}()

	head, ok, err := ledger.Head(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(w, "ledger is empty")
		return nil
	}

	if verify {
		if err := ledger.Verify(ctx); err != nil {
			return fmt.Errorf("ledger verification failed: %w", err)
		}
		fmt.Fprintf(w, "ledger verified: %d records, head hash %s\n", head.Seq, head.Hash)
		return nil
	}

	records, err := ledger.Range(ctx, tailStart(head.Seq, tailCount), 0)
	if err != nil {
		return err
	}

	if filterExpr != "" {
		filter, err := audit.CompileFilter(filterExpr)
		if err != nil {
			return err
		}
		records, err = filter.Select(records)
		if err != nil {
			return err
		}
	}

	if len(records) == 0 {
		fmt.Fprintln(w, "no records matched")
		return nil
	}
	return printRecords(w, records)
}

func init() {
	rootCmd.AddCommand(newAuditCmd())
}
