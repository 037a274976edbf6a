package hostops

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portcullis-dev/portcullis/internal/application/ports"
)

func TestFetch_Basic(t *testing.T) {
	t.Parallel()

	var gotMethod, gotUA, gotHeader string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotUA = r.Header.Get("User-Agent")
		gotHeader = r.Header.Get("X-Custom")
		body := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(body)
		gotBody = body
		w.Header().Set("X-Reply", "yes")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	ops := New(Options{})
	result, err := ops.Fetch(context.Background(), ports.HTTPSpec{
		Method:  http.MethodPost,
		URL:     server.URL + "/things",
		Headers: map[string][]string{"X-Custom": {"v1"}},
		Body:    []byte(`{"name":"x"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, result.StatusCode)
	assert.Equal(t, `{"ok":true}`, string(result.Body))
	assert.Equal(t, []string{"yes"}, result.Headers["X-Reply"])
	assert.False(t, result.BodyTruncated)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Contains(t, gotUA, "Portcullis/")
	assert.Equal(t, "v1", gotHeader)
	assert.Equal(t, `{"name":"x"}`, string(gotBody))
}

func TestFetch_BodyTruncated(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer server.Close()

	ops := New(Options{MaxBodyBytes: 128})
	result, err := ops.Fetch(context.Background(), ports.HTTPSpec{
		Method: http.MethodGet,
		URL:    server.URL,
	})
	require.NoError(t, err)
	assert.True(t, result.BodyTruncated)
	assert.Len(t, result.Body, 128)
}

func TestFetch_SameHostRedirectFollowed(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/end", http.StatusFound)
	})
	mux.HandleFunc("/end", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("arrived"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	ops := New(Options{})
	result, err := ops.Fetch(context.Background(), ports.HTTPSpec{
		Method: http.MethodGet,
		URL:    server.URL + "/start",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, "arrived", string(result.Body))
}

func TestFetch_CrossHostRedirectRefused(t *testing.T) {
	t.Parallel()

	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("should never be reached"))
	}))
	defer other.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, other.URL, http.StatusFound)
	}))
	defer server.Close()

	ops := New(Options{})
	_, err := ops.Fetch(context.Background(), ports.HTTPSpec{
		Method: http.MethodGet,
		URL:    server.URL,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leaves approved host")
}

func TestFetch_Timeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(2 * time.Second)
		_, _ = w.Write([]byte("late"))
	}))
	defer server.Close()

	ops := New(Options{})
	_, err := ops.Fetch(context.Background(), ports.HTTPSpec{
		Method:  http.MethodGet,
		URL:     server.URL,
		Timeout: 100 * time.Millisecond,
	})
	require.Error(t, err)
}

func TestFetch_InvalidMethod(t *testing.T) {
	t.Parallel()

	ops := New(Options{})
	_, err := ops.Fetch(context.Background(), ports.HTTPSpec{
		Method: "BAD METHOD",
		URL:    "http://example.invalid",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "building request")
}
