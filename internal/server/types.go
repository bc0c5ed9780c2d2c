package server

import (
	"solana-token-agent/internal/chat"
	"solana-token-agent/internal/risk"
)

// ErrorResponse is the standard error envelope for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Details any    `json:"details,omitempty"`
}

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	OK bool `json:"ok"`
}

// AskRequest is a grounded document question. Asset optionally scopes
// retrieval to one asset's documents.
type AskRequest struct {
	Question string `json:"question"`
	Asset    string `json:"asset,omitempty"`
}

// AskResponse contains the grounded answer with execution time.
type AskResponse struct {
	Answer string `json:"answer"`
	TookMs int64  `json:"took_ms"`
}

// MessageRequest is one conversation turn for a session.
type MessageRequest struct {
	Message string `json:"message"`
}

// MessageResponse returns the full transcript after the turn completes.
type MessageResponse struct {
	Transcript []chat.Message `json:"transcript"`
}

// SelectTokenRequest focuses a session on one token by mint address.
type SelectTokenRequest struct {
	Mint string `json:"mint"`
}

// RuleRequest adds a swap rule to a session.
type RuleRequest struct {
	Rule risk.Rule `json:"rule"`
}

// RulesResponse lists a session's rules.
type RulesResponse struct {
	Items []risk.Rule `json:"items"`
}

// PriceResponse is a token price lookup result. Price is null when no
// source had one.
type PriceResponse struct {
	Mint  string   `json:"mint"`
	Price *float64 `json:"price"`
}
