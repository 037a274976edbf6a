package audit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// FuzzLedgerRecovery fuzzes ledger file contents through the recovery
// path. Every input must open cleanly or fail with an error, never
// panic, and a ledger that does open must accept a fresh append.
func FuzzLedgerRecovery(f *testing.F) {
	seeds := []string{
		// A well-formed single record line.
		`{"seq":1,"ts":"2026-01-01T00:00:00Z","extension":"hello","capability":"read","outcome":"allow","reason":"granted","tier":"compatible","prev_hash":"genesis","hash":"abc"}`,

		// Truncated mid-line, as after a crash.
		`{"seq":1,"ts":"2026-01-01T00:00:00Z","extension":"he`,

		// Valid JSON, wrong shape.
		`[1,2,3]`,
		`"just a string"`,

		// Type confusion on fields.
		`{"seq":"one","extension":42}`,

		// Blank lines between records.
		"\n\n" + `{"seq":1,"prev_hash":"genesis","hash":"x"}` + "\n\n",

		// Null bytes and invalid UTF-8.
		"{\"seq\":1\x00}",
		"\xff\xfe\xfd",

		// Empty file.
		"",

		// Huge sequence number.
		`{"seq":18446744073709551615,"hash":"y","prev_hash":"genesis"}`,
	}
	for _, seed := range seeds {
		f.Add([]byte(seed))
	}

	f.Fuzz(func(t *testing.T, fileData []byte) {
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("PANIC on input (len=%d): %v", len(fileData), r)
			}
		}()

		path := filepath.Join(t.TempDir(), "audit.jsonl")
		if err := os.WriteFile(path, fileData, 0o600); err != nil {
			t.Skip("fixture write failed")
		}

		ledger, err := OpenFileLedger(path)
		if err != nil {
			return
		}
		defer ledger.Close()

		record := testRecord("hello", "read", "allow")
		if _, err := ledger.Append(context.Background(), record); err != nil {
			t.Errorf("recovered ledger refused a fresh append: %v", err)
		}
	})
}
