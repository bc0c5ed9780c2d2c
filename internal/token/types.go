package token

import "time"

// NativeMint is the wrapped SOL mint address.
const NativeMint = "So11111111111111111111111111111111111111112"

// Token is the identity of a tradable asset as served by the Jupiter token
// API. Immutable once fetched; refresh by re-fetching, never mutate in place.
type Token struct {
	Symbol      string      `json:"symbol"`
	Name        string      `json:"name"`
	Address     string      `json:"address"`
	Decimals    uint8       `json:"decimals"`
	DailyVolume float64     `json:"daily_volume,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	Tags        []string    `json:"tags,omitempty"`
	Extensions  *Extensions `json:"extensions,omitempty"`
	LogoURI     string      `json:"logoURI,omitempty"`
}

// Extensions carries optional external identifiers for a token.
type Extensions struct {
	CoinGeckoID string `json:"coingeckoId,omitempty"`
}

// HasTag reports whether the token carries the given tag.
func (t *Token) HasTag(tag string) bool {
	for _, v := range t.Tags {
		if v == tag {
			return true
		}
	}
	return false
}

// CoinGeckoID returns the token's price-oracle id, or "" when absent.
func (t *Token) CoinGeckoID() string {
	if t.Extensions == nil {
		return ""
	}
	return t.Extensions.CoinGeckoID
}

// Age returns how long ago the token was created relative to now.
func (t *Token) Age(now time.Time) time.Duration {
	return now.Sub(t.CreatedAt)
}
