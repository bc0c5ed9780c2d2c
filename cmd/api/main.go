package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

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
	"solana-token-agent/internal/server"
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

// main initializes all dependencies and starts the HTTP server with graceful
// shutdown.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	chatLLM, err := ollama.New(ollama.WithServerURL(cfg.OllamaURL), ollama.WithModel(cfg.ChatModel))
	if err != nil {
		logger.WithError(err).Fatal("failed to create chat model")
	}
	embedLLM, err := ollama.New(ollama.WithServerURL(cfg.OllamaURL), ollama.WithModel(cfg.EmbeddingModel))
	if err != nil {
		logger.WithError(err).Fatal("failed to create embedding model")
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

	// Redis is an advisory cache; the API runs without it.
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

	// Swaps are enabled only when a wallet key is configured.
	var executor *swap.Executor
	if cfg.WalletPrivateKey != "" {
		signer, err := wallet.NewLocalSigner(cfg.WalletPrivateKey)
		if err != nil {
			logger.WithError(err).Fatal("failed to load wallet")
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
			defer func() {
				_ = trail.Close()
			}()
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

	h := &server.Handlers{
		Assistant: assistant,
		Router:    router,
		Catalog:   catalog,
		Prices:    prices,
		DevMode:   cfg.DevMode,
		Logger:    logger,
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:    cfg.APIAddr,
			DevMode: cfg.DevMode,
			APIKey:  cfg.APIKey,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		_ = srv.Shutdown(context.Background())
	}()

	logger.WithField("addr", cfg.APIAddr).Info("api server starting")
	if err := srv.Start(); err != nil {
		// "http: Server closed" is expected during graceful shutdown
		if err.Error() == "http: Server closed" {
			return
		}
		logger.WithError(err).Fatal("api server failed")
	}

	if err := srv.WaitClosed(context.Background()); err != nil {
		fmt.Println(err)
	}
}
