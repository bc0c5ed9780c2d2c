// Package llm provides a client for the streaming completion endpoint of an
// Ollama-compatible model server.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// StreamClient calls POST /api/generate with stream=true and folds the
// newline-delimited response fragments into one completion string. A read
// may carry several fragments; each line is a JSON envelope whose "response"
// field holds a piece of the completion. Malformed lines are logged and
// skipped; a partial transcript is still usable downstream.
type StreamClient struct {
	baseURL string
	model   string
	http    *http.Client
	logger  *logrus.Logger
}

// StreamClientConfig holds configuration for the streaming client.
type StreamClientConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	Logger  *logrus.Logger
}

// Options are sampling parameters forwarded to the model server.
type Options struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

func NewStreamClient(cfg StreamClientConfig) *StreamClient {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &StreamClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger,
	}
}

type generateRequest struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	Stream  bool    `json:"stream"`
	Options Options `json:"options"`
}

type generateFragment struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate runs a streamed completion and returns the concatenated text.
func (c *StreamClient) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  true,
		Options: opts,
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return "", fmt.Errorf("generate http %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	return c.fold(res.Body)
}

// fold consumes the fragment stream sequentially into one buffer.
func (c *StreamClient) fold(r io.Reader) (string, error) {
	var buf strings.Builder

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var frag generateFragment
		if err := json.Unmarshal([]byte(line), &frag); err != nil {
			c.logger.WithError(err).WithField("line", line).Warn("skipping malformed stream fragment")
			continue
		}
		buf.WriteString(frag.Response)
	}
	if err := scanner.Err(); err != nil {
		// Keep what arrived; the caller's extraction pass decides whether
		// the partial buffer is usable.
		c.logger.WithError(err).Warn("completion stream ended early")
	}

	return buf.String(), nil
}
