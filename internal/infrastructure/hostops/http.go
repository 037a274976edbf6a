package hostops

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/portcullis-dev/portcullis/internal/application/ports"
)

// Fetch performs one outbound request with a bounded response body.
// The dispatcher has already matched the URL's host against policy;
// the client refuses redirects that would leave that host.
func (o *Operations) Fetch(ctx context.Context, spec ports.HTTPSpec) (ports.HTTPResult, error) {
	fetchCtx := ctx
	cancel := context.CancelFunc(func() {})
	if spec.Timeout > 0 {
		fetchCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
	}
	defer cancel()

	var body io.Reader
	if len(spec.Body) > 0 {
		body = bytes.NewReader(spec.Body)
	}

	req, err := http.NewRequestWithContext(fetchCtx, spec.Method, spec.URL, body)
	if err != nil {
		return ports.HTTPResult{}, fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("User-Agent", o.userAgent)
	for key, values := range spec.Headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return ports.HTTPResult{}, fmt.Errorf("http request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Best-effort cleanup
	}()

	// Read one byte past the cap to detect oversized bodies.
	data, err := io.ReadAll(io.LimitReader(resp.Body, o.maxBody+1))
	if err != nil {
		return ports.HTTPResult{}, fmt.Errorf("reading response body: %w", err)
	}

	truncated := false
	if int64(len(data)) > o.maxBody {
		data = data[:o.maxBody]
		truncated = true
		o.logger.WarnContext(ctx, "http response body truncated",
			"url", spec.URL,
			"limit", o.maxBody)
	}

	headers := make(map[string][]string, len(resp.Header))
	for key, values := range resp.Header {
		headers[key] = values
	}

	return ports.HTTPResult{
		StatusCode:    resp.StatusCode,
		Headers:       headers,
		Body:          data,
		BodyTruncated: truncated,
	}, nil
}
