package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *StreamClient {
	return NewStreamClient(StreamClientConfig{
		BaseURL: url,
		Model:   "llama3.2",
		Timeout: 5 * time.Second,
	})
}

func TestGenerateFoldsFragments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generate", r.URL.Path)
		fmt.Fprintln(w, `{"response":"Hello","done":false}`)
		fmt.Fprintln(w, `{"response":", ","done":false}`)
		fmt.Fprintln(w, `{"response":"world","done":false}`)
		fmt.Fprintln(w, `{"response":"","done":true}`)
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL).Generate(context.Background(), "greet", Options{})

	require.NoError(t, err)
	assert.Equal(t, "Hello, world", out)
}

func TestGenerateSkipsMalformedFragments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"response":"keep","done":false}`)
		fmt.Fprintln(w, `this is not json`)
		fmt.Fprintln(w, `{"response":" this","done":false}`)
		fmt.Fprintln(w, ``)
		fmt.Fprintln(w, `{"response":"","done":true}`)
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL).Generate(context.Background(), "p", Options{})

	require.NoError(t, err)
	assert.Equal(t, "keep this", out)
}

func TestGenerateSendsModelAndOptions(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		fmt.Fprintln(w, `{"response":"ok","done":true}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), "the prompt", Options{Temperature: 0.1, TopP: 0.9})

	require.NoError(t, err)
	assert.Contains(t, body, `"model":"llama3.2"`)
	assert.Contains(t, body, `"prompt":"the prompt"`)
	assert.Contains(t, body, `"stream":true`)
	assert.Contains(t, body, `"temperature":0.1`)
	assert.Contains(t, body, `"top_p":0.9`)
}

func TestGenerateErrorsOnHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), "p", Options{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFoldReturnsPartialBufferOnEarlyEnd(t *testing.T) {
	c := newTestClient("http://unused")

	// A reader that ends mid-stream without a done fragment.
	out, err := c.fold(strings.NewReader(`{"response":"partial answer","done":false}` + "\n"))

	require.NoError(t, err)
	assert.Equal(t, "partial answer", out)
}
