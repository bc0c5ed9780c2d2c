package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms/ollama"

	"solana-token-agent/internal/audit"
	"solana-token-agent/internal/chat"
	"solana-token-agent/internal/config"
	"solana-token-agent/internal/intent"
	"solana-token-agent/internal/llm"
	"solana-token-agent/internal/rag"
	"solana-token-agent/internal/risk"
	"solana-token-agent/internal/rpc"
	"solana-token-agent/internal/swap"
	"solana-token-agent/internal/token"
	"solana-token-agent/internal/wallet"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

func main() {
	// Flags
	queryFlag := flag.String("q", "", "Run a single grounded question and exit")
	mintFlag := flag.String("mint", "", "Focus the session on a token mint address")
	flag.Parse()

	// Logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	loadEnv(logger)

	// Config
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	// Context + signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down agent...")
		cancel()
	}()

	router, catalog, assistant, err := buildAgent(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to build agent")
	}

	// Single-shot mode
	if *queryFlag != "" {
		fmt.Println(assistant.Ask(ctx, *queryFlag, ""))
		return
	}

	session := router.Session("repl")
	if *mintFlag != "" {
		tok, err := catalog.Detail(ctx, *mintFlag)
		if err != nil {
			logger.WithError(err).Fatal("failed to fetch token")
		}
		session.SelectToken(tok)
		session.SetAssetFilter(*mintFlag)
	}

	runREPL(ctx, router, session)
}

// buildAgent wires the full pipeline. Optional backends (Redis, ClickHouse,
// wallet) degrade to nil rather than failing startup.
func buildAgent(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*chat.Router, *token.Catalog, *rag.Assistant, error) {
	chatLLM, err := ollama.New(ollama.WithServerURL(cfg.OllamaURL), ollama.WithModel(cfg.ChatModel))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	embedLLM, err := ollama.New(ollama.WithServerURL(cfg.OllamaURL), ollama.WithModel(cfg.EmbeddingModel))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create embedding model: %w", err)
	}

	retriever := rag.NewRetriever(rag.RetrieverConfig{
		Embedder:   embedLLM,
		QdrantURL:  cfg.QdrantURL,
		Collection: cfg.CollectionName,
		TopK:       cfg.RetrievalTopK,
		MaxRetries: cfg.MaxRetries,
		Backoff:    cfg.RetryBackoff,
		Timeout:    cfg.HTTPTimeout,
		Logger:     logger,
	})
	answerer := rag.NewAnswerer(rag.AnswererConfig{
		LLM:        chatLLM,
		MaxRetries: cfg.MaxRetries,
		Backoff:    cfg.RetryBackoff,
		Logger:     logger,
	})
	assistant := rag.NewAssistant(retriever, answerer)

	stream := llm.NewStreamClient(llm.StreamClientConfig{
		BaseURL: cfg.GenerateURL,
		Model:   cfg.ChatModel,
		Logger:  logger,
	})
	classifier := intent.NewClassifier(intent.ClassifierConfig{Stream: stream, Logger: logger})
	validator := risk.NewValidator(risk.ValidatorConfig{Risk: cfg.Risk})

	var cache redis.Cmdable
	if cfg.RedisAddr != "" {
		rclient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rclient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unavailable, token cache disabled")
		} else {
			cache = rclient
		}
	}
	catalog := token.NewCatalog(token.CatalogConfig{
		BaseURL:  cfg.JupiterTokenURL,
		Cache:    cache,
		CacheTTL: cfg.CacheTTL,
		Logger:   logger,
	})
	prices := token.NewPriceOracle(token.PriceOracleConfig{
		CoinGeckoURL: cfg.CoinGeckoURL,
		JupiterURL:   cfg.JupiterPriceURL,
		Logger:       logger,
	})
	querier := chat.NewQuerier(chat.QuerierConfig{Stream: stream, Prices: prices, Logger: logger})

	var executor *swap.Executor
	if cfg.WalletPrivateKey != "" {
		signer, err := wallet.NewLocalSigner(cfg.WalletPrivateKey)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to load wallet: %w", err)
		}
		rpcClient := rpc.NewClient(rpc.ClientConfig{
			BaseURL:      cfg.RPCUrl,
			Timeout:      cfg.HTTPTimeout,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
			Logger:       logger,
		})
		executor = swap.NewExecutor(swap.ExecutorConfig{
			RPC:     rpcClient,
			Jupiter: swap.NewJupiterClient(cfg.JupiterSwapURL),
			Signer:  signer,
			Logger:  logger,
		})
		logger.WithField("wallet", signer.PublicKey()).Info("wallet loaded")
	} else {
		logger.Warn("WALLET_PRIVATE_KEY not set, swaps disabled")
	}

	var trail *audit.Trail
	if cfg.ClickHouseAddr != "" {
		t, err := audit.New(audit.Config{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
			Logger:   logger,
		})
		if err != nil {
			logger.WithError(err).Warn("clickhouse unavailable, swap audit disabled")
		} else {
			trail = t
		}
	}

	router := chat.NewRouter(chat.RouterConfig{
		Assistant:  assistant,
		Classifier: classifier,
		Validator:  validator,
		Querier:    querier,
		Executor:   executor,
		Trail:      trail,
		Logger:     logger,
	})
	return router, catalog, assistant, nil
}

func runREPL(ctx context.Context, router *chat.Router, session *chat.Session) {
	fmt.Println("Solana Token Agent")
	fmt.Println("Type a message and press Enter. Empty line to exit.")
	fmt.Println()

	printed := flush(session, 0)

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("error reading input:", err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			fmt.Println("bye")
			return
		}

		// Short cooldown to avoid hammering the model if user spams enter.
		time.Sleep(200 * time.Millisecond)

		router.HandleMessage(ctx, session, line)
		printed = flush(session, printed)
	}
}

// flush prints transcript entries added since the last call and returns the
// new cursor.
func flush(session *chat.Session, from int) int {
	transcript := session.Transcript()
	for _, msg := range transcript[from:] {
		if msg.Role == "assistant" {
			fmt.Printf("\n%s\n\n", msg.Content)
		}
	}
	return len(transcript)
}
