package swap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// JupiterClient talks to the Jupiter swap API: GET /quote for routing and
// POST /swap to build an unsigned transaction.
type JupiterClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewJupiterClient creates a client for the given base URL (e.g.
// https://lite-api.jup.ag/swap/v1).
func NewJupiterClient(baseURL string) *JupiterClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://lite-api.jup.ag/swap/v1"
	}
	return &JupiterClient{
		BaseURL: baseURL,
		HTTP: &http.Client{
			Timeout: 12 * time.Second,
		},
	}
}

// QuoteRequest describes a quote lookup. Amount is in base units of the
// ExactOut side.
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      uint64
	SlippageBps int
}

// Quote is the raw quote response, retained wholesale so the swap build can
// echo it back unmodified.
type Quote struct {
	Raw       json.RawMessage
	InAmount  string
	OutAmount string
}

// Quote fetches an ExactOut route restricted to intermediate tokens with
// high liquidity. An error field in the response body is terminal: the route
// does not exist and retrying will not make it appear.
func (c *JupiterClient) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if strings.TrimSpace(req.InputMint) == "" {
		return nil, fmt.Errorf("inputMint is required")
	}
	if strings.TrimSpace(req.OutputMint) == "" {
		return nil, fmt.Errorf("outputMint is required")
	}
	if req.Amount == 0 {
		return nil, fmt.Errorf("amount is required")
	}

	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", fmt.Sprintf("%d", req.Amount))
	q.Set("slippageBps", fmt.Sprintf("%d", req.SlippageBps))
	q.Set("restrictIntermediateTokens", "true")
	q.Set("swapMode", "ExactOut")

	u := c.BaseURL + "/quote?" + q.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("accept", "application/json")

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read quote response: %w", err)
	}

	var parsed struct {
		Error     string `json:"error"`
		InAmount  string `json:"inAmount"`
		OutAmount string `json:"outAmount"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode quote response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("quote failed: %s", parsed.Error)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("jupiter quote http %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	return &Quote{Raw: body, InAmount: parsed.InAmount, OutAmount: parsed.OutAmount}, nil
}

// BuildRequest describes a swap-transaction build. The quote is echoed back
// verbatim; the destination token account routes output to the merchant's
// ATA instead of the signer's.
type BuildRequest struct {
	Quote                   *Quote
	UserPublicKey           string
	DestinationTokenAccount string
}

type buildPayload struct {
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	UserPublicKey             string          `json:"userPublicKey"`
	DestinationTokenAccount   string          `json:"destinationTokenAccount"`
	DynamicComputeUnitLimit   bool            `json:"dynamicComputeUnitLimit"`
	PrioritizationFeeLamports struct {
		PriorityLevelWithMaxLamports struct {
			MaxLamports   uint64 `json:"maxLamports"`
			PriorityLevel string `json:"priorityLevel"`
			Global        bool   `json:"global"`
		} `json:"priorityLevelWithMaxLamports"`
	} `json:"prioritizationFeeLamports"`
}

// BuildSwap requests an unsigned transaction for a previously fetched quote
// and returns it base64-encoded. Compute budget is dynamic, with a priority
// fee capped at 0.001 SOL.
func (c *JupiterClient) BuildSwap(ctx context.Context, req BuildRequest) (string, error) {
	if req.Quote == nil {
		return "", fmt.Errorf("quote is required")
	}

	payload := buildPayload{
		QuoteResponse:           req.Quote.Raw,
		UserPublicKey:           req.UserPublicKey,
		DestinationTokenAccount: req.DestinationTokenAccount,
		DynamicComputeUnitLimit: true,
	}
	payload.PrioritizationFeeLamports.PriorityLevelWithMaxLamports.MaxLamports = 1000000
	payload.PrioritizationFeeLamports.PriorityLevelWithMaxLamports.PriorityLevel = "veryHigh"
	payload.PrioritizationFeeLamports.PriorityLevelWithMaxLamports.Global = false

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal swap request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/swap", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read swap response: %w", err)
	}

	var parsed struct {
		Error           string `json:"error"`
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode swap response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("swap preparation failed: %s", parsed.Error)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("jupiter swap http %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	if parsed.SwapTransaction == "" {
		return "", fmt.Errorf("swap response missing transaction")
	}

	return parsed.SwapTransaction, nil
}
