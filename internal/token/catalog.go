package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	cacheKeyPrefix   = "tokens:tagged:"
	cacheDetailKey   = "tokens:detail:"
	trendingListSize = 20
)

// Catalog fetches token lists and token detail from the Jupiter token API.
// A Redis cache, when configured, holds recent responses; it is advisory
// only and every cache failure falls through to a live fetch.
type Catalog struct {
	baseURL string
	http    *http.Client
	cache   redis.Cmdable
	ttl     time.Duration
	logger  *logrus.Logger
}

// CatalogConfig holds configuration for the token catalog client.
type CatalogConfig struct {
	BaseURL  string
	Timeout  time.Duration
	Cache    redis.Cmdable // optional
	CacheTTL time.Duration
	Logger   *logrus.Logger
}

func NewCatalog(cfg CatalogConfig) *Catalog {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &Catalog{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		cache:   cfg.Cache,
		ttl:     cfg.CacheTTL,
		logger:  cfg.Logger,
	}
}

// Tagged returns the token list for a catalog tag (e.g. "verified",
// "community"). The "birdeye-trending" tag is additionally filtered to
// tokens with positive daily volume, sorted by volume descending, and
// truncated to the top 20.
func (c *Catalog) Tagged(ctx context.Context, tag string) ([]Token, error) {
	path := "/tagged/" + tag
	if tag == "new" {
		path = "/new"
	}

	var tokens []Token
	if c.fromCache(ctx, cacheKeyPrefix+tag, &tokens) {
		return tokens, nil
	}

	if err := c.getJSON(ctx, c.baseURL+path, &tokens); err != nil {
		return nil, fmt.Errorf("fetch token list %q: %w", tag, err)
	}

	if tag == "birdeye-trending" {
		filtered := tokens[:0]
		for _, t := range tokens {
			if t.DailyVolume > 0 {
				filtered = append(filtered, t)
			}
		}
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].DailyVolume > filtered[j].DailyVolume
		})
		if len(filtered) > trendingListSize {
			filtered = filtered[:trendingListSize]
		}
		tokens = filtered
	}

	c.toCache(ctx, cacheKeyPrefix+tag, tokens)
	return tokens, nil
}

// Detail fetches the full record for one mint.
func (c *Catalog) Detail(ctx context.Context, mint string) (*Token, error) {
	var t Token
	if c.fromCache(ctx, cacheDetailKey+mint, &t) {
		return &t, nil
	}

	if err := c.getJSON(ctx, c.baseURL+"/token/"+mint, &t); err != nil {
		return nil, fmt.Errorf("fetch token %s: %w", mint, err)
	}
	if t.Address == "" {
		return nil, fmt.Errorf("token %s not found", mint)
	}

	c.toCache(ctx, cacheDetailKey+mint, &t)
	return &t, nil
}

func (c *Catalog) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("token api http %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, out)
}

// fromCache loads a cached value into out; a miss or any Redis error means
// "not cached".
func (c *Catalog) fromCache(ctx context.Context, key string, out any) bool {
	if c.cache == nil {
		return false
	}
	val, err := c.cache.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).Debug("token cache read failed")
		}
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		c.logger.WithError(err).Debug("token cache entry unreadable")
		return false
	}
	return true
}

func (c *Catalog) toCache(ctx context.Context, key string, v any) {
	if c.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Debug("token cache write failed")
	}
}
