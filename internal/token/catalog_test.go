package token

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaggedTrendingFilterSortTruncate(t *testing.T) {
	// 25 tokens: odd indices have zero volume and must be dropped.
	var list []Token
	for i := 0; i < 25; i++ {
		vol := float64(0)
		if i%2 == 0 {
			vol = float64(i + 1)
		}
		list = append(list, Token{Symbol: "T", Address: "mint", DailyVolume: vol})
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tagged/birdeye-trending", r.URL.Path)
		_ = json.NewEncoder(w).Encode(list)
	}))
	defer srv.Close()

	c := NewCatalog(CatalogConfig{BaseURL: srv.URL})
	out, err := c.Tagged(context.Background(), "birdeye-trending")

	require.NoError(t, err)
	require.Len(t, out, 13) // 13 tokens had positive volume, under the 20 cap
	// Sorted by volume descending.
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i-1].DailyVolume, out[i].DailyVolume)
	}
	assert.Equal(t, float64(25), out[0].DailyVolume)
}

func TestTaggedTrendingCapsAtTwenty(t *testing.T) {
	var list []Token
	for i := 0; i < 30; i++ {
		list = append(list, Token{DailyVolume: float64(i + 1)})
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(list)
	}))
	defer srv.Close()

	c := NewCatalog(CatalogConfig{BaseURL: srv.URL})
	out, err := c.Tagged(context.Background(), "birdeye-trending")

	require.NoError(t, err)
	assert.Len(t, out, 20)
}

func TestTaggedOtherTagsPassThrough(t *testing.T) {
	list := []Token{
		{Symbol: "A", DailyVolume: 0},
		{Symbol: "B", DailyVolume: 5},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tagged/verified", r.URL.Path)
		_ = json.NewEncoder(w).Encode(list)
	}))
	defer srv.Close()

	c := NewCatalog(CatalogConfig{BaseURL: srv.URL})
	out, err := c.Tagged(context.Background(), "verified")

	require.NoError(t, err)
	// No filtering or re-ordering outside the trending tag.
	require.Len(t, out, 2)
	assert.Equal(t, "A", out[0].Symbol)
}

func TestTaggedNewUsesNewPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/new", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]Token{{Symbol: "N"}})
	}))
	defer srv.Close()

	c := NewCatalog(CatalogConfig{BaseURL: srv.URL})
	out, err := c.Tagged(context.Background(), "new")

	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "N", out[0].Symbol)
}

func TestDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/token/somemint", r.URL.Path)
		_ = json.NewEncoder(w).Encode(Token{
			Symbol:   "TEST",
			Name:     "Test Token",
			Address:  "somemint",
			Decimals: 6,
			Tags:     []string{"meme"},
		})
	}))
	defer srv.Close()

	c := NewCatalog(CatalogConfig{BaseURL: srv.URL})
	tok, err := c.Detail(context.Background(), "somemint")

	require.NoError(t, err)
	assert.Equal(t, "TEST", tok.Symbol)
	assert.True(t, tok.HasTag("meme"))
}

func TestDetailNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Token{}) // empty record
	}))
	defer srv.Close()

	c := NewCatalog(CatalogConfig{BaseURL: srv.URL})
	_, err := c.Detail(context.Background(), "missing")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDetailHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewCatalog(CatalogConfig{BaseURL: srv.URL})
	_, err := c.Detail(context.Background(), "mint")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestTokenUnmarshalJupiterShape(t *testing.T) {
	raw := `{
		"symbol": "WIF",
		"name": "dogwifhat",
		"address": "EKpQGSJtjMFqKZ9KQanSqYXRcF8fBopzLHYxdM65zcjm",
		"decimals": 6,
		"daily_volume": 1234567.89,
		"created_at": "2024-01-15T00:00:00Z",
		"tags": ["meme", "community"],
		"extensions": {"coingeckoId": "dogwifcoin"},
		"logoURI": "https://example.com/wif.png"
	}`

	var tok Token
	require.NoError(t, json.Unmarshal([]byte(raw), &tok))

	assert.Equal(t, "WIF", tok.Symbol)
	assert.Equal(t, uint8(6), tok.Decimals)
	assert.Equal(t, 1234567.89, tok.DailyVolume)
	assert.Equal(t, "dogwifcoin", tok.CoinGeckoID())
	assert.True(t, tok.HasTag("meme"))

	now := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 5*24*time.Hour, tok.Age(now))
}
