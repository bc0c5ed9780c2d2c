package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
)

// GeneralAnswerPrefix marks a response produced without document context.
const GeneralAnswerPrefix = "answering in general:\n\n"

var (
	greetings = map[string]bool{"hi": true, "hello": true, "hey": true}
	thanks    = map[string]bool{"thank you": true, "thanks": true, "ty": true}
)

const (
	greetingReply = "Hi! How can I assist you today?"
	thanksReply   = "You're welcome! Anything else I can help with?"
)

const answerPromptTemplate = `
You are a friendly and helpful AI assistant, designed to provide accurate and human-like responses. Your primary goal is to answer questions based on the provided context from documents. If no relevant context is available, use your general knowledge but clearly state: "No answer in database, answering in general." Respond conversationally, acknowledging casual inputs like "hi" or "thank you" appropriately.

Guidelines:
- Use clear, concise language and a warm tone.
- Organize answers into separate paragraphs for each key point, without using Markdown bold (**), bullet points (- or •), or other formatting symbols.
- Do not use lists or headers; instead, write each key point as a standalone paragraph.
- Maintain consistency with previous responses.
- Ensure proper grammar and punctuation.

Context: %s
Question: %s
`

// Answerer produces prose answers from retrieved context via a non-streaming
// model call. It always returns a usable string: after exhausting retries
// the failure itself becomes the reply, because the caller is a chat
// transcript that must receive some turn.
type Answerer struct {
	llm        llms.Model
	maxRetries int
	backoff    time.Duration
	logger     *logrus.Logger
}

// AnswererConfig holds configuration for the answer generator.
type AnswererConfig struct {
	LLM        llms.Model
	MaxRetries int
	Backoff    time.Duration
	Logger     *logrus.Logger
}

func NewAnswerer(cfg AnswererConfig) *Answerer {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 1 * time.Second
	}
	return &Answerer{
		llm:        cfg.LLM,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		logger:     cfg.Logger,
	}
}

// Answer generates a grounded reply for the question. An empty context is
// permitted; the prompt instructs the model to disclose general-knowledge
// answers.
func (a *Answerer) Answer(ctx context.Context, question, context_ string) string {
	prompt := fmt.Sprintf(answerPromptTemplate, context_, question)

	backoff := a.backoff
	var lastErr error
	for attempt := 0; attempt < a.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Sprintf("Error: request cancelled: %v", ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		resp, err := llms.GenerateFromSinglePrompt(ctx, a.llm, prompt)
		if err != nil {
			lastErr = err
			a.logger.WithError(err).WithField("attempt", attempt+1).Debug("answer generation failed")
			continue
		}

		// The model is not fully trusted to follow the no-markdown
		// instruction; strip residual bold markup.
		return strings.ReplaceAll(resp, "**", "")
	}

	return fmt.Sprintf("Error: failed to reach the language model after %d attempts: %v", a.maxRetries, lastErr)
}

// Assistant glues retrieval and answering into one ask operation.
type Assistant struct {
	retriever *Retriever
	answerer  *Answerer
}

func NewAssistant(retriever *Retriever, answerer *Answerer) *Assistant {
	return &Assistant{retriever: retriever, answerer: answerer}
}

// Ask answers a free-text question. Greetings and thanks short-circuit to
// canned replies with no model call. When retrieval yields nothing, the
// reply is prefixed with an explicit general-knowledge disclosure.
func (s *Assistant) Ask(ctx context.Context, question, assetFilter string) string {
	trimmed := strings.ToLower(strings.TrimSpace(question))
	if greetings[trimmed] {
		return greetingReply
	}
	if thanks[trimmed] {
		return thanksReply
	}

	passages, err := s.retriever.Retrieve(ctx, question, assetFilter)
	if err != nil {
		// Retrieve degrades internally; an error here is unexpected but
		// still must not break the turn.
		passages = nil
	}

	if len(passages) == 0 {
		return GeneralAnswerPrefix + s.answerer.Answer(ctx, question, "")
	}

	rendered := make([]string, 0, len(passages))
	for _, p := range passages {
		rendered = append(rendered, p.Rendered())
	}
	return s.answerer.Answer(ctx, question, strings.Join(rendered, "\n\n"))
}
