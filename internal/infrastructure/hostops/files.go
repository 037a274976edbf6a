package hostops

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ReadFile returns at most limit bytes of the file, reporting whether
// the file was larger. The path must already be confinement-checked.
func (o *Operations) ReadFile(ctx context.Context, path string, limit int64) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if limit <= 0 {
		limit = o.maxRead
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		_ = file.Close() // Best-effort cleanup
	}()

	// Read one byte past the limit to detect truncation.
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, false, fmt.Errorf("reading file: %w", err)
	}

	if int64(len(data)) > limit {
		o.logger.WarnContext(ctx, "file read truncated", "path", path, "limit", limit)
		return data[:limit], true, nil
	}
	return data, false, nil
}

// WriteFile writes the data, creating parent directories as needed.
func (o *Operations) WriteFile(ctx context.Context, path string, data []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if dir := filepath.Dir(path); dir != "." {
		//nolint:gosec // G301: extension workspace directories are browsable
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("creating directory: %w", err)
		}
	}

	//nolint:gosec // G306: workspace files are not host secrets
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, err
	}
	return len(data), nil
}
