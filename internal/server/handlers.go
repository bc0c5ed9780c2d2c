package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"solana-token-agent/internal/chat"
	"solana-token-agent/internal/rag"
	"solana-token-agent/internal/token"
)

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Assistant *rag.Assistant     // Grounded document answering
	Router    *chat.Router       // Conversation sessions
	Catalog   *token.Catalog     // Jupiter token catalog
	Prices    *token.PriceOracle // Live price lookups
	DevMode   bool               // Enable detailed error responses in development
	Logger    *logrus.Logger     // Structured logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// Health returns a simple health check endpoint
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true})
}

// Ask answers a document question grounded in retrieved passages.
func (h *Handlers) Ask(c echo.Context) error {
	if h.Assistant == nil {
		return h.err(c, http.StatusBadRequest, "assistant is not configured", nil)
	}

	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return h.err(c, http.StatusBadRequest, "question is required", map[string]any{"question": "required"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 45*time.Second)
	defer cancel()

	start := time.Now()
	answer := h.Assistant.Ask(ctx, req.Question, strings.TrimSpace(req.Asset))

	return c.JSON(http.StatusOK, AskResponse{Answer: answer, TookMs: time.Since(start).Milliseconds()})
}

// SessionMessage runs one conversation turn and returns the transcript.
// Swap turns block until the swap reaches a terminal state.
func (h *Handlers) SessionMessage(c echo.Context) error {
	var req MessageRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return h.err(c, http.StatusBadRequest, "message is required", map[string]any{"message": "required"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 150*time.Second)
	defer cancel()

	session := h.Router.Session(c.Param("id"))
	h.Router.HandleMessage(ctx, session, req.Message)

	return c.JSON(http.StatusOK, MessageResponse{Transcript: session.Transcript()})
}

// SessionToken focuses a session on one token, looked up from the catalog.
func (h *Handlers) SessionToken(c echo.Context) error {
	if h.Catalog == nil {
		return h.err(c, http.StatusBadRequest, "token catalog is not configured", nil)
	}

	var req SelectTokenRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	req.Mint = strings.TrimSpace(req.Mint)
	if req.Mint == "" {
		return h.err(c, http.StatusBadRequest, "mint is required", map[string]any{"mint": "required"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	tok, err := h.Catalog.Detail(ctx, req.Mint)
	if err != nil {
		return h.err(c, http.StatusBadGateway, "failed to fetch token", map[string]any{"err": err.Error()})
	}

	session := h.Router.Session(c.Param("id"))
	session.SelectToken(tok)
	session.SetAssetFilter(req.Mint)

	return c.JSON(http.StatusOK, MessageResponse{Transcript: session.Transcript()})
}

// SessionRules lists the session's swap rules.
func (h *Handlers) SessionRules(c echo.Context) error {
	session := h.Router.Session(c.Param("id"))
	return c.JSON(http.StatusOK, RulesResponse{Items: session.Rules()})
}

// SessionAddRule appends a swap rule to the session.
func (h *Handlers) SessionAddRule(c echo.Context) error {
	var req RuleRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if req.Rule.Empty() {
		return h.err(c, http.StatusBadRequest, "rule is empty", map[string]any{"rule": "at least one constraint required"})
	}

	session := h.Router.Session(c.Param("id"))
	session.AddRule(req.Rule)

	return c.JSON(http.StatusOK, RulesResponse{Items: session.Rules()})
}

// Tokens returns a tagged token list (default: trending).
func (h *Handlers) Tokens(c echo.Context) error {
	if h.Catalog == nil {
		return h.err(c, http.StatusBadRequest, "token catalog is not configured", nil)
	}

	tag := strings.TrimSpace(c.QueryParam("filter"))
	if tag == "" {
		tag = "birdeye-trending"
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	items, err := h.Catalog.Tagged(ctx, tag)
	if err != nil {
		return h.err(c, http.StatusBadGateway, "failed to fetch tokens", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// Token returns detail for one mint.
func (h *Handlers) Token(c echo.Context) error {
	if h.Catalog == nil {
		return h.err(c, http.StatusBadRequest, "token catalog is not configured", nil)
	}

	mint := strings.TrimSpace(c.Param("mint"))
	if mint == "" {
		return h.err(c, http.StatusBadRequest, "invalid mint", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	tok, err := h.Catalog.Detail(ctx, mint)
	if err != nil {
		return h.err(c, http.StatusBadGateway, "failed to fetch token", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, tok)
}

// Price returns the current price for a mint. A null price means no source
// had one, which is not an error.
func (h *Handlers) Price(c echo.Context) error {
	if h.Prices == nil || h.Catalog == nil {
		return h.err(c, http.StatusBadRequest, "price oracle is not configured", nil)
	}

	mint := strings.TrimSpace(c.Param("mint"))
	if mint == "" {
		return h.err(c, http.StatusBadRequest, "invalid mint", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	tok, err := h.Catalog.Detail(ctx, mint)
	if err != nil {
		return h.err(c, http.StatusBadGateway, "failed to fetch token", map[string]any{"err": err.Error()})
	}

	price, err := h.Prices.Price(ctx, tok)
	if err != nil {
		h.Logger.WithError(err).Warn("price lookup failed")
	}
	return c.JSON(http.StatusOK, PriceResponse{Mint: mint, Price: price})
}
