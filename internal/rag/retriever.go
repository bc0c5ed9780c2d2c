// Package rag implements retrieval-augmented question answering: dense
// retrieval over a Qdrant collection plus a grounded answer generator.
package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Embedder turns text into dense vectors. The Ollama client from langchaingo
// satisfies this.
type Embedder interface {
	CreateEmbedding(ctx context.Context, inputTexts []string) ([][]float32, error)
}

// Passage is one retrieved document chunk with its provenance. Ephemeral:
// produced per query, never cached.
type Passage struct {
	Text       string
	SourceFile string
	PageRange  string
	Score      float64
}

// Rendered returns the passage text with its citation appended, the form the
// answer generator embeds in its prompt.
func (p Passage) Rendered() string {
	return fmt.Sprintf("%s\n[Source: %s, Pages: %s]", p.Text, p.SourceFile, p.PageRange)
}

// Retriever embeds a question and searches the vector index. Retrieval
// failure is never a hard failure: after exhausting retries it degrades to
// an empty result set and the caller answers without context.
type Retriever struct {
	embedder   Embedder
	qdrantURL  string
	collection string
	topK       int
	maxRetries int
	backoff    time.Duration
	http       *http.Client
	logger     *logrus.Logger
}

// RetrieverConfig holds configuration for the retriever.
type RetrieverConfig struct {
	Embedder   Embedder
	QdrantURL  string
	Collection string
	TopK       int
	MaxRetries int
	Backoff    time.Duration
	Timeout    time.Duration
	Logger     *logrus.Logger
}

func NewRetriever(cfg RetrieverConfig) *Retriever {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 1 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Retriever{
		embedder:   cfg.Embedder,
		qdrantURL:  strings.TrimRight(cfg.QdrantURL, "/"),
		collection: cfg.Collection,
		topK:       cfg.TopK,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		http:       &http.Client{Timeout: cfg.Timeout},
		logger:     cfg.Logger,
	}
}

type qdrantFilter struct {
	Must []qdrantCondition `json:"must"`
}

type qdrantCondition struct {
	Key   string      `json:"key"`
	Match qdrantMatch `json:"match"`
}

type qdrantMatch struct {
	Value string `json:"value"`
}

type qdrantSearchRequest struct {
	Vector      []float32     `json:"vector"`
	Limit       int           `json:"limit"`
	WithPayload bool          `json:"with_payload"`
	Filter      *qdrantFilter `json:"filter,omitempty"`
}

type qdrantSearchResponse struct {
	Result []qdrantHit `json:"result"`
}

type qdrantHit struct {
	Payload struct {
		Text     string `json:"text"`
		Metadata struct {
			File      string `json:"file"`
			PageRange string `json:"page_range"`
			ObjectID  string `json:"objectId"`
		} `json:"metadata"`
	} `json:"payload"`
	Score float64 `json:"score"`
}

// Retrieve returns up to topK passages for the query, optionally restricted
// to documents tagged with assetFilter. Candidates are over-fetched at
// 2×topK and re-ranked by score; ties keep their index order.
func (r *Retriever) Retrieve(ctx context.Context, query, assetFilter string) ([]Passage, error) {
	vector, ok := r.embedWithRetry(ctx, query)
	if !ok {
		return nil, nil
	}

	req := qdrantSearchRequest{
		Vector:      vector,
		Limit:       r.topK * 2,
		WithPayload: true,
	}
	if assetFilter != "" {
		req.Filter = &qdrantFilter{
			Must: []qdrantCondition{{
				Key:   "metadata.objectId",
				Match: qdrantMatch{Value: assetFilter},
			}},
		}
	}

	hits, err := r.search(ctx, req)
	if err != nil {
		r.logger.WithError(err).Warn("vector search failed, answering without context")
		return nil, nil
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > r.topK {
		hits = hits[:r.topK]
	}

	passages := make([]Passage, 0, len(hits))
	for _, h := range hits {
		passages = append(passages, Passage{
			Text:       h.Payload.Text,
			SourceFile: h.Payload.Metadata.File,
			PageRange:  h.Payload.Metadata.PageRange,
			Score:      h.Score,
		})
	}
	return passages, nil
}

// embedWithRetry embeds the query with bounded retries and exponential
// backoff. Exhausting the budget reports false rather than an error.
func (r *Retriever) embedWithRetry(ctx context.Context, query string) ([]float32, bool) {
	backoff := r.backoff
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, false
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		vecs, err := r.embedder.CreateEmbedding(ctx, []string{query})
		if err != nil {
			r.logger.WithError(err).WithField("attempt", attempt+1).Debug("embedding failed")
			continue
		}
		if len(vecs) == 0 || len(vecs[0]) == 0 {
			r.logger.WithField("attempt", attempt+1).Debug("empty embedding returned")
			continue
		}
		return vecs[0], true
	}

	r.logger.Warn("embedding retries exhausted, answering without context")
	return nil, false
}

func (r *Retriever) search(ctx context.Context, sr qdrantSearchRequest) ([]qdrantHit, error) {
	payload, err := json.Marshal(sr)
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", r.qdrantURL, r.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("qdrant http %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var out qdrantSearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode qdrant response: %w", err)
	}
	return out.Result, nil
}
