package redaction

import "io"

// Writer scrubs each chunk before forwarding it downstream. Write
// reports the original length so callers account for what they sent,
// not what survived scrubbing.
type Writer struct {
	dst      io.Writer
	scrubber *Scrubber
}

// NewWriter wraps dst. A nil scrubber makes the writer pass through.
func NewWriter(dst io.Writer, scrubber *Scrubber) *Writer {
	return &Writer{dst: dst, scrubber: scrubber}
}

// Write scrubs p and forwards it. Secrets split across Write calls are
// not detected; callers that stream partial lines should buffer to
// line boundaries first.
func (w *Writer) Write(p []byte) (int, error) {
	if w.scrubber == nil {
		return w.dst.Write(p)
	}
	scrubbed := w.scrubber.ScrubString(string(p))
	if _, err := w.dst.Write([]byte(scrubbed)); err != nil {
		return 0, err
	}
	return len(p), nil
}
