package redaction

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_Scrubs(t *testing.T) {
	scrubber, err := New(Config{
		DisableDetector: true,
		Patterns:        []string{`API_KEY=[A-Za-z0-9]+`},
	})
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	writer := NewWriter(buf, scrubber)

	data := []byte("connecting with API_KEY=abc123\n")
	n, err := writer.Write(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n, "Write must report the original length")

	assert.Contains(t, buf.String(), "[REDACTED]")
	assert.NotContains(t, buf.String(), "abc123")
}

func TestWriter_NilScrubberPassesThrough(t *testing.T) {
	buf := &bytes.Buffer{}
	writer := NewWriter(buf, nil)

	data := []byte("this contains API_KEY=abc123")
	n, err := writer.Write(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, string(data), buf.String())
}

func TestWriter_MultipleWrites(t *testing.T) {
	scrubber, err := New(Config{
		DisableDetector: true,
		Patterns:        []string{`API_KEY=[A-Za-z0-9]+`},
	})
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	writer := NewWriter(buf, scrubber)

	for _, line := range []string{
		"first line with API_KEY=abc123\n",
		"second line is clean\n",
		"third line with API_KEY=xyz789\n",
	} {
		n, err := writer.Write([]byte(line))
		require.NoError(t, err)
		assert.Equal(t, len(line), n)
	}

	out := buf.String()
	assert.NotContains(t, out, "abc123")
	assert.NotContains(t, out, "xyz789")
	assert.Contains(t, out, "second line is clean")
}
