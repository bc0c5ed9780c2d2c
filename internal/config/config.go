package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every endpoint, model name, and threshold used by the agent.
// Components receive the slices of it they need through their own config
// structs; nothing reads the environment after Load returns.
type Config struct {
	// Solana RPC settings
	RPCUrl       string
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// Language model settings (Ollama-compatible API)
	OllamaURL      string // non-streaming /api/chat + /api/embeddings
	GenerateURL    string // streaming /api/generate
	ChatModel      string
	EmbeddingModel string

	// Vector index (Qdrant)
	QdrantURL      string
	CollectionName string
	RetrievalTopK  int

	// Jupiter endpoints
	JupiterSwapURL  string // quote + swap-build
	JupiterTokenURL string // token catalog
	JupiterPriceURL string // price v2
	CoinGeckoURL    string

	// Wallet
	WalletPrivateKey string

	// Redis (advisory token catalog cache; optional)
	RedisAddr string
	CacheTTL  time.Duration

	// ClickHouse (best-effort swap audit; optional)
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// API server
	APIAddr string
	APIKey  string
	DevMode bool

	// Risk heuristics and rule evaluation
	Risk RiskConfig
}

// RiskConfig holds the static heuristics the validator and simulator run
// against. SOLQuoteUSD is a deliberate simplification: rule thresholds are
// denominated in quote-currency units at a fixed 1 SOL = $100 conversion,
// and swapping it for a live oracle would change validation outcomes.
type RiskConfig struct {
	MaxSwapSOL           float64 // hard cap requiring explicit confirmation
	SOLQuoteUSD          float64
	PriceImpactThreshold float64 // percent
	LiquidityFloor       float64 // quote-currency units
	NewTokenAge          time.Duration
	BlacklistedMints     []string
	SuspectPools         []string
}

func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		MaxSwapSOL:           10,
		SOLQuoteUSD:          100,
		PriceImpactThreshold: 5,
		LiquidityFloor:       10000,
		NewTokenAge:          7 * 24 * time.Hour,
		BlacklistedMints: []string{
			"FAKE1234567890abcdef1234567890abcdef12345678",
			"SCAM9876543210fedcba9876543210fedcba98765432",
		},
		SuspectPools: []string{
			"POOLLOWLIQ1234567890abcdef1234567890abcdef12",
			"POOLRISKY9876543210fedcba9876543210fedcba98",
		},
	}
}

func Load() *Config {
	def := DefaultRiskConfig()

	return &Config{
		RPCUrl:       getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
		HTTPTimeout:  getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:   getIntEnv("MAX_RETRIES", 3),
		RetryBackoff: getDurationEnv("RETRY_BACKOFF", 1*time.Second),

		OllamaURL:      getEnv("OLLAMA_URL", "http://localhost:11434"),
		GenerateURL:    getEnv("GENERATE_URL", "http://localhost:11434"),
		ChatModel:      getEnv("CHAT_MODEL", "llama3.2"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "nomic-embed-text"),

		QdrantURL:      getEnv("QDRANT_URL", "http://localhost:6333"),
		CollectionName: getEnv("QDRANT_COLLECTION", "token_docs"),
		RetrievalTopK:  getIntEnv("RETRIEVAL_TOP_K", 4),

		JupiterSwapURL:  getEnv("JUPITER_SWAP_URL", "https://lite-api.jup.ag/swap/v1"),
		JupiterTokenURL: getEnv("JUPITER_TOKEN_URL", "https://lite-api.jup.ag/tokens/v1"),
		JupiterPriceURL: getEnv("JUPITER_PRICE_URL", "https://api.jup.ag/price/v2"),
		CoinGeckoURL:    getEnv("COINGECKO_URL", "https://api.coingecko.com/api/v3"),

		WalletPrivateKey: os.Getenv("WALLET_PRIVATE_KEY"),

		RedisAddr: getEnv("REDIS_ADDR", ""),
		CacheTTL:  getDurationEnv("TOKEN_CACHE_TTL", 5*time.Minute),

		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "solana"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		APIAddr: getEnv("API_ADDR", ":8090"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),

		Risk: RiskConfig{
			MaxSwapSOL:           getFloatEnv("MAX_SWAP_SOL", def.MaxSwapSOL),
			SOLQuoteUSD:          getFloatEnv("SOL_QUOTE_USD", def.SOLQuoteUSD),
			PriceImpactThreshold: getFloatEnv("PRICE_IMPACT_THRESHOLD", def.PriceImpactThreshold),
			LiquidityFloor:       getFloatEnv("LIQUIDITY_FLOOR", def.LiquidityFloor),
			NewTokenAge:          getDurationEnv("NEW_TOKEN_AGE", def.NewTokenAge),
			BlacklistedMints:     getListEnv("BLACKLISTED_MINTS", def.BlacklistedMints),
			SuspectPools:         getListEnv("SUSPECT_POOLS", def.SuspectPools),
		},
	}
}

func (c *Config) Validate() error {
	if c.RPCUrl == "" {
		return fmt.Errorf("SOLANA_RPC_URL is required")
	}
	if c.OllamaURL == "" {
		return fmt.Errorf("OLLAMA_URL is required")
	}
	if c.RetrievalTopK < 1 {
		return fmt.Errorf("RETRIEVAL_TOP_K must be >= 1")
	}
	if c.Risk.SOLQuoteUSD <= 0 {
		return fmt.Errorf("SOL_QUOTE_USD must be > 0")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getListEnv(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, p := range strings.Split(val, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
