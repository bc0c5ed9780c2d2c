// Package chat routes conversation turns between grounded document
// answering, token-information answering, swap preview, help, and swap
// execution. A session holds an append-only transcript and admits one
// in-flight action at a time.
package chat

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"solana-token-agent/internal/audit"
	"solana-token-agent/internal/intent"
	"solana-token-agent/internal/rag"
	"solana-token-agent/internal/risk"
	"solana-token-agent/internal/swap"
	"solana-token-agent/internal/token"
)

// Message is one transcript entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is one conversation: a selected token (optional), user rules, and
// the transcript. The transcript only ever grows.
type Session struct {
	mu         sync.Mutex
	transcript []Message
	inFlight   bool
	token      *token.Token
	assetID    string
	rules      []risk.Rule
}

// SelectToken focuses the session on one token. The transcript keeps its
// history; a fresh greeting is appended.
func (s *Session) SelectToken(tok *token.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = tok
	s.transcript = append(s.transcript, Message{
		Role:    "assistant",
		Content: fmt.Sprintf("Ask me about %s! Try \"Swap 0.1 SOL for this token\", \"Preview Swap\", or \"help\" for options.", tok.Name),
	})
}

// SetAssetFilter scopes document retrieval for this session.
func (s *Session) SetAssetFilter(assetID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assetID = assetID
}

// AddRule appends a user rule. Rules are never removed mid-session.
func (s *Session) AddRule(r risk.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, r)
	s.transcript = append(s.transcript, Message{
		Role:    "assistant",
		Content: fmt.Sprintf("Rule added: %s", r.Summary()),
	})
}

// Rules returns a copy of the session's rules.
func (s *Session) Rules() []risk.Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]risk.Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Transcript returns a copy of the transcript.
func (s *Session) Transcript() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

func (s *Session) append(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, Message{Role: role, Content: content})
}

// tryBegin marks the session busy. Returns false when an action is already
// in flight.
func (s *Session) tryBegin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return false
	}
	s.inFlight = true
	return true
}

func (s *Session) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
}

func (s *Session) selectedToken() *token.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Session) assetFilter() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assetID
}

// Router dispatches session messages. The executor and audit trail may be
// nil: swaps are then refused with a message instead of failing.
type Router struct {
	assistant  *rag.Assistant
	classifier *intent.Classifier
	validator  *risk.Validator
	querier    *Querier
	executor   *swap.Executor
	trail      *audit.Trail
	logger     *logrus.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Assistant  *rag.Assistant
	Classifier *intent.Classifier
	Validator  *risk.Validator
	Querier    *Querier
	Executor   *swap.Executor
	Trail      *audit.Trail
	Logger     *logrus.Logger
}

func NewRouter(cfg RouterConfig) *Router {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Router{
		assistant:  cfg.Assistant,
		classifier: cfg.Classifier,
		validator:  cfg.Validator,
		querier:    cfg.Querier,
		executor:   cfg.Executor,
		trail:      cfg.Trail,
		logger:     cfg.Logger,
		sessions:   make(map[string]*Session),
	}
}

// Session returns the session for id, creating it on first use.
func (r *Router) Session(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		s = &Session{}
		r.sessions[id] = s
	}
	return s
}

var previewAmountRe = regexp.MustCompile(`(?i)(\d+\.?\d*)\s*SOL`)

// HandleMessage processes one user turn and appends the user message plus
// every assistant response to the transcript. It blocks until the turn is
// terminal. A busy session rejects the turn with a notice.
func (r *Router) HandleMessage(ctx context.Context, s *Session, input string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return
	}
	s.append("user", input)

	if !s.tryBegin() {
		s.append("assistant", "I'm still working on your previous request. Please wait for it to finish.")
		return
	}
	defer s.end()

	tok := s.selectedToken()
	if tok == nil {
		s.append("assistant", r.assistant.Ask(ctx, input, s.assetFilter()))
		return
	}

	if strings.Contains(strings.ToLower(input), "preview swap") {
		s.append("assistant", r.previewSwap(input, tok, s.Rules()))
		return
	}

	result := r.classifier.Classify(ctx, input, tok)
	switch result.Intent {
	case intent.KindSwap:
		r.runSwap(ctx, s, result.Swap, tok)
	case intent.KindQuery:
		s.append("assistant", r.querier.Answer(ctx, input, tok))
	case intent.KindHelp:
		s.append("assistant", helpMessage(tok))
	default:
		s.append("assistant", fmt.Sprintf(
			"I'm not sure how to help with %q. Try asking about %s's price, volume, or say \"swap 0.1 SOL for this token\". Type \"help\" for more options.",
			input, tok.Symbol))
	}
}

// previewSwap runs the advisory simulation without touching the chain. The
// SOL amount is taken from the message, defaulting to 0.1.
func (r *Router) previewSwap(input string, tok *token.Token, rules []risk.Rule) string {
	amount := 0.1
	if m := previewAmountRe.FindStringSubmatch(input); m != nil {
		if parsed, err := strconv.ParseFloat(m[1], 64); err == nil {
			amount = parsed
		}
	}

	assessment := r.validator.Simulate(amount, tok, rules)

	lines := []string{
		fmt.Sprintf("Swap Preview: %g SOL for %s", amount, tok.Symbol),
		fmt.Sprintf("Risk Score: %d/100", assessment.Score),
	}
	lines = append(lines, assessment.Warnings...)
	if assessment.Score > 50 {
		lines = append(lines, "High risk detected. Proceed with caution.")
	} else {
		lines = append(lines, "Swap looks safe.")
	}
	return strings.Join(lines, "\n")
}

func (r *Router) runSwap(ctx context.Context, s *Session, sw *intent.SwapIntent, tok *token.Token) {
	if r.executor == nil {
		s.append("assistant", "Please configure a Solana wallet to perform swaps.")
		return
	}

	validation := r.validator.Validate(sw.Amount, sw.InputMint, sw.OutputMint, tok, s.Rules())
	if !validation.IsValid {
		s.append("assistant", fmt.Sprintf(
			"Swap validation failed: %s. Please adjust your swap parameters to meet your set rules.",
			strings.Join(validation.Errors, ", ")))
		return
	}

	result := r.executor.Execute(ctx, swap.Request{
		Amount:     sw.Amount,
		InputMint:  sw.InputMint,
		OutputMint: sw.OutputMint,
		Token:      tok,
	}, func(msg string) { s.append("assistant", msg) })

	outcome := "finalized"
	if !result.Succeeded {
		outcome = "failed:" + result.FailedStep.String()
		s.append("assistant", swap.FailureMessage(result.Err))
	}
	r.trail.RecordSwap(ctx, audit.SwapRecord{
		Signature:  result.Signature,
		Timestamp:  time.Now().UTC(),
		InputMint:  sw.InputMint,
		OutputMint: sw.OutputMint,
		Symbol:     tok.Symbol,
		Amount:     sw.Amount,
		Outcome:    outcome,
	})
}

func helpMessage(tok *token.Token) string {
	return fmt.Sprintf("I can help you with:\n\n"+
		"Swapping:\n"+
		"- \"Swap 0.1 SOL for this token\"\n"+
		"- \"Buy 100 %s\"\n\n"+
		"Information:\n"+
		"- \"What's the price of %s?\"\n"+
		"- \"Tell me about this token\"\n"+
		"- \"Show me the volume\"\n\n"+
		"Monitoring:\n"+
		"- \"Alert when price drops\"\n\n"+
		"Try any of these commands or ask me anything else about %s!",
		tok.Symbol, tok.Symbol, tok.Symbol)
}
