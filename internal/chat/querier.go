package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"solana-token-agent/internal/llm"
	"solana-token-agent/internal/token"
)

// Querier answers token-information questions. It builds a fact sheet for
// the selected token and asks the streaming model; when the model is
// unreachable it degrades to deterministic keyword answers so the chat
// always responds.
type Querier struct {
	stream *llm.StreamClient
	prices *token.PriceOracle
	logger *logrus.Logger
}

// QuerierConfig holds configuration for the querier.
type QuerierConfig struct {
	Stream *llm.StreamClient
	Prices *token.PriceOracle
	Logger *logrus.Logger
}

func NewQuerier(cfg QuerierConfig) *Querier {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Querier{stream: cfg.Stream, prices: cfg.Prices, logger: cfg.Logger}
}

const queryPromptTemplate = `You are a helpful DeFi assistant specializing in Solana tokens.

CONTEXT:
- Current token: %s
- User query: "%s"

GUIDELINES:
1. Provide natural, conversational responses
2. For price queries, use the estimated price or mention data limitations
3. For volume/stats queries, use the provided data
4. For monitoring/alerts, explain it's coming soon
5. For general token info, use the provided metadata
6. Be concise but informative
7. If you don't have specific data, be honest about limitations

RESPONSE STYLE:
- Natural language (NOT JSON)
- Friendly and helpful tone
- Include relevant numbers/stats when available
- Suggest related actions when appropriate`

// Answer responds to a token-information question. Never returns an error:
// the fallback path always produces something usable.
func (q *Querier) Answer(ctx context.Context, input string, tok *token.Token) string {
	resp, err := q.stream.Generate(ctx, fmt.Sprintf(queryPromptTemplate, q.factSheet(ctx, tok), input), llm.Options{
		Temperature: 0.7,
		TopP:        0.9,
	})
	if err != nil {
		q.logger.WithError(err).Warn("token query model failed, using fallback answer")
		return fallbackAnswer(input, tok)
	}

	resp = strings.TrimSpace(resp)
	if resp == "" {
		return "I understand your question, but I need more information to provide a helpful response."
	}
	return resp
}

func (q *Querier) factSheet(ctx context.Context, tok *token.Token) string {
	volume := "N/A"
	if tok.DailyVolume > 0 {
		volume = fmt.Sprintf("$%.2f", tok.DailyVolume)
	}
	tags := "N/A"
	if len(tok.Tags) > 0 {
		tags = strings.Join(tok.Tags, ", ")
	}
	coingeckoID := tok.CoinGeckoID()
	if coingeckoID == "" {
		coingeckoID = "N/A"
	}
	estimated := "N/A"
	if q.prices != nil {
		if price, err := q.prices.Price(ctx, tok); err == nil && price != nil {
			estimated = fmt.Sprintf("$%.6f", *price)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "name: %s\n", tok.Name)
	fmt.Fprintf(&b, "symbol: %s\n", tok.Symbol)
	fmt.Fprintf(&b, "address: %s\n", tok.Address)
	fmt.Fprintf(&b, "decimals: %d\n", tok.Decimals)
	fmt.Fprintf(&b, "volume_24h: %s\n", volume)
	fmt.Fprintf(&b, "created_at: %s\n", tok.CreatedAt.Format(time.RFC1123))
	fmt.Fprintf(&b, "tags: %s\n", tags)
	fmt.Fprintf(&b, "coingeckoId: %s\n", coingeckoID)
	fmt.Fprintf(&b, "estimated_price: %s", estimated)
	return b.String()
}

// fallbackAnswer is the deterministic answer path used when the model is
// unavailable. Keyword checks run in priority order.
func fallbackAnswer(input string, tok *token.Token) string {
	lower := strings.ToLower(input)
	volume := "N/A"
	if tok.DailyVolume > 0 {
		volume = fmt.Sprintf("$%.2f", tok.DailyVolume)
	}

	switch {
	case strings.Contains(lower, "price"):
		return fmt.Sprintf("I don't have real-time price data for %s right now, but you can check the 24h volume of %s to gauge activity.",
			tok.Symbol, volume)
	case strings.Contains(lower, "volume"):
		if tok.DailyVolume > 0 {
			return fmt.Sprintf("The 24-hour volume for %s is %s.", tok.Symbol, volume)
		}
		return fmt.Sprintf("The 24-hour volume for %s is not available.", tok.Symbol)
	case strings.Contains(lower, "info"), strings.Contains(lower, "about"):
		answer := fmt.Sprintf("%s (%s) is a Solana token with %d decimals. It was created on %s.",
			tok.Name, tok.Symbol, tok.Decimals, tok.CreatedAt.Format("Jan 2, 2006"))
		if len(tok.Tags) > 0 {
			answer += fmt.Sprintf(" Tags: %s.", strings.Join(tok.Tags, ", "))
		}
		return answer
	case strings.Contains(lower, "alert"), strings.Contains(lower, "monitor"):
		return "Price alerts and monitoring features are coming soon! For now, you can manually check back or try making a small swap."
	default:
		return fmt.Sprintf("I can help you with information about %s or execute swaps. Try asking about the price, volume, or say \"swap 0.1 SOL for this token\".",
			tok.Symbol)
	}
}
