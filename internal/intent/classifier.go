// Package intent turns free-text chat input into a typed action.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"solana-token-agent/internal/llm"
	"solana-token-agent/internal/token"
)

// Kind is the action category extracted from user input.
type Kind string

const (
	KindSwap  Kind = "swap"
	KindQuery Kind = "query"
	KindHelp  Kind = "help"
)

// AmountKind says which asset the user denominated the amount in.
const (
	AmountSOL   = "sol"
	AmountToken = "token"
)

// SwapIntent is a parsed trade command. Amount is in the input asset's base
// units (lamports for SOL) after normalization.
type SwapIntent struct {
	Amount     float64
	InputMint  string
	OutputMint string
	Kind       string // AmountSOL or AmountToken
}

// Result is the classifier output: exactly one intent, with swap details
// populated only for KindSwap.
type Result struct {
	Intent Kind
	Swap   *SwapIntent
}

var (
	jsonObjectRe = regexp.MustCompile(`(?s)\{.*?\}`)
	numberRe     = regexp.MustCompile(`(\d+\.?\d*)`)

	swapKeywords = []string{"swap", "buy", "purchase", "get", "trade", "exchange"}
)

const lamportsPerSOL = 1e9

// Classifier maps user input to an intent via a streamed model completion
// constrained to emit a single JSON object, with a deterministic keyword
// fallback. Classify never returns an error: any failure in the model path
// falls back to the heuristic, and the heuristic always yields an intent.
type Classifier struct {
	stream *llm.StreamClient
	logger *logrus.Logger
}

// ClassifierConfig holds configuration for the intent classifier.
type ClassifierConfig struct {
	Stream *llm.StreamClient
	Logger *logrus.Logger
}

func NewClassifier(cfg ClassifierConfig) *Classifier {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Classifier{stream: cfg.Stream, logger: cfg.Logger}
}

const classifyPromptTemplate = `You are a JSON-only assistant for a Solana DeFi application.

RULES:
1. Analyze user commands and return ONLY valid JSON
2. For swap/buy commands, extract amount and return swap intent
3. For all other queries (price, info, monitoring, etc.), return query intent
4. Be flexible with input formats and synonyms

Current token: %[1]s (%[2]s)
Input token for swaps: SOL (%[3]s)

SWAP EXAMPLES:
- "swap 0.1 SOL for this token" → {"intent":"swap","amount":0.1,"inputMint":"%[3]s","outputMint":"%[2]s"}
- "buy 100 tokens" → {"intent":"swap","amount":100,"type":"tokens","inputMint":"%[3]s","outputMint":"%[2]s"}
- "get 50 %[1]s" → {"intent":"swap","amount":50,"type":"tokens","inputMint":"%[3]s","outputMint":"%[2]s"}

QUERY EXAMPLES:
- "what's the price" → {"intent":"query"}
- "tell me about this token" → {"intent":"query"}
- "set alert when price drops" → {"intent":"query"}
- "help" → {"intent":"help"}

Command to analyze: "%[4]s"

Return ONLY JSON, no explanations.`

// rawIntent mirrors the JSON object the model is instructed to emit.
type rawIntent struct {
	Intent     string      `json:"intent"`
	Amount     json.Number `json:"amount"`
	Type       string      `json:"type"`
	InputMint  string      `json:"inputMint"`
	OutputMint string      `json:"outputMint"`
}

// Classify resolves input against the given token. The model path streams a
// completion, extracts the first JSON object from the buffer, and normalizes
// amounts to base units; every failure along the way drops to Fallback.
func (c *Classifier) Classify(ctx context.Context, input string, tok *token.Token) Result {
	res, err := c.classifyWithModel(ctx, input, tok)
	if err != nil {
		c.logger.WithError(err).Debug("model classification failed, using keyword fallback")
		return Fallback(input, tok)
	}
	return res
}

func (c *Classifier) classifyWithModel(ctx context.Context, input string, tok *token.Token) (Result, error) {
	if c.stream == nil {
		return Result{}, fmt.Errorf("no model configured")
	}

	prompt := fmt.Sprintf(classifyPromptTemplate, tok.Symbol, tok.Address, token.NativeMint, input)

	buf, err := c.stream.Generate(ctx, prompt, llm.Options{Temperature: 0.1, TopP: 0.9})
	if err != nil {
		return Result{}, err
	}

	buf = strings.TrimSpace(buf)
	if buf == "" {
		return Result{}, fmt.Errorf("model returned empty completion")
	}

	// The model sometimes prepends prose; take the first top-level object.
	match := jsonObjectRe.FindString(buf)
	if match == "" {
		return Result{}, fmt.Errorf("no JSON object in completion: %q", buf)
	}

	var raw rawIntent
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return Result{}, fmt.Errorf("invalid JSON from model: %w", err)
	}

	switch raw.Intent {
	case string(KindSwap):
		amount, err := raw.Amount.Float64()
		if err != nil || amount <= 0 {
			return Result{}, fmt.Errorf("swap intent with unusable amount %q", raw.Amount)
		}
		swap := &SwapIntent{
			InputMint:  raw.InputMint,
			OutputMint: raw.OutputMint,
			Kind:       AmountSOL,
		}
		if raw.Type == "tokens" {
			swap.Kind = AmountToken
			swap.Amount = amount * math.Pow10(int(tok.Decimals))
		} else {
			swap.Amount = amount * lamportsPerSOL
		}
		if swap.InputMint == "" {
			swap.InputMint = token.NativeMint
		}
		if swap.OutputMint == "" {
			swap.OutputMint = tok.Address
		}
		return Result{Intent: KindSwap, Swap: swap}, nil
	case string(KindHelp):
		return Result{Intent: KindHelp}, nil
	case string(KindQuery):
		return Result{Intent: KindQuery}, nil
	default:
		return Result{}, fmt.Errorf("unknown intent %q", raw.Intent)
	}
}

// Fallback is the deterministic classification used when the model path is
// unusable: swap-like verbs plus a number become a SOL-denominated swap with
// default mints, everything else is a query. Pure function of its inputs.
func Fallback(input string, tok *token.Token) Result {
	lower := strings.ToLower(input)

	hasSwapKeyword := false
	for _, kw := range swapKeywords {
		if strings.Contains(lower, kw) {
			hasSwapKeyword = true
			break
		}
	}

	if hasSwapKeyword {
		if m := numberRe.FindString(input); m != "" {
			if amount, err := strconv.ParseFloat(m, 64); err == nil && amount > 0 {
				return Result{
					Intent: KindSwap,
					Swap: &SwapIntent{
						Amount:     amount * lamportsPerSOL,
						InputMint:  token.NativeMint,
						OutputMint: tok.Address,
						Kind:       AmountSOL,
					},
				}
			}
		}
	}

	return Result{Intent: KindQuery}
}
