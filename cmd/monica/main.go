package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/eliseochoa/monica/internal/avatar"
	"github.com/eliseochoa/monica/internal/config"
	"github.com/eliseochoa/monica/internal/httpapi"
	"github.com/eliseochoa/monica/internal/observability"
	"github.com/eliseochoa/monica/internal/rag"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	var (
		tokens avatar.TokenProvider
		client avatar.RemoteClient
	)
	if strings.TrimSpace(cfg.HeyGenAPIKey) == "" {
		logger.Warn("HEYGEN_API_KEY is not set, avatar provider running in mock mode")
		tokens = &avatar.MockTokenProvider{Token: "mock-session-token"}
		client = avatar.NewMockClient()
	} else {
		tokens = avatar.NewHeyGenTokenProvider(avatar.HeyGenTokenConfig{
			APIKey:  cfg.HeyGenAPIKey,
			BaseURL: cfg.HeyGenBaseURL,
			TTL:     cfg.TokenTTL,
			Timeout: cfg.TokenTimeout,
		}, logger)
		client = avatar.NewHeyGenClient(avatar.HeyGenClientConfig{
			BaseURL: cfg.HeyGenBaseURL,
		}, logger)
	}

	ctx := context.Background()

	index, cleanup := buildIndex(ctx, cfg, logger)
	defer cleanup()

	answerer := buildAnswerer(cfg, index, metrics, logger)

	defaults := avatar.SessionConfig{
		AvatarID:           cfg.AvatarID,
		Quality:            cfg.AvatarQuality,
		Language:           cfg.AvatarLanguage,
		KnowledgeID:        cfg.AvatarKnowledgeID,
		VoiceRate:          cfg.VoiceRate,
		VoiceEmotion:       cfg.VoiceEmotion,
		DefaultChatMode:    avatar.ChatMode(cfg.DefaultChatMode),
		Greeting:           cfg.Greeting,
		DisableIdleTimeout: true,
	}
	sessions := avatar.NewManager(tokens, client, defaults, metrics, logger)

	api := httpapi.New(cfg, sessions, tokens, answerer, metrics, logger)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := sessions.Stop(shutdownCtx); err != nil {
		logger.Warn("session stop during shutdown failed", zap.Error(err))
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		_ = httpServer.Close()
	}

	logger.Info("shutdown complete")
}

// buildIndex picks the vector backend: Pinecone when its credentials are
// present, pgvector when DATABASE_URL is set, otherwise an empty in-memory
// index so the rest of the service still boots.
func buildIndex(ctx context.Context, cfg config.Config, logger *zap.Logger) (rag.VectorIndex, func()) {
	if strings.TrimSpace(cfg.PineconeAPIKey) != "" && strings.TrimSpace(cfg.PineconeIndexHost) != "" {
		if cfg.UsingPlaceholderIndex() {
			logger.Warn("PINECONE_INDEX_NAME is still the placeholder value", zap.String("index", cfg.PineconeIndexName))
		}
		idx, err := rag.NewPineconeIndex(rag.PineconeConfig{
			APIKey:    cfg.PineconeAPIKey,
			IndexHost: cfg.PineconeIndexHost,
		}, logger)
		if err != nil {
			log.Fatalf("pinecone index init failed: %v", err)
		}
		logger.Info("vector backend: pinecone", zap.String("index", cfg.PineconeIndexName))
		return idx, func() {}
	}

	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		idx, err := rag.NewPostgresIndex(ctx, cfg.DatabaseURL, cfg.EmbeddingDim)
		if err != nil {
			log.Fatalf("pgvector index init failed: %v", err)
		}
		logger.Info("vector backend: pgvector")
		return idx, func() { idx.Close() }
	}

	logger.Warn("no vector backend configured, retrieval will return no documents")
	return rag.EmptyIndex{}, func() {}
}

func buildAnswerer(cfg config.Config, index rag.VectorIndex, metrics *observability.Metrics, logger *zap.Logger) httpapi.Answerer {
	var (
		embedder  rag.Embedder
		generator rag.Generator
	)
	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		logger.Warn("OPENAI_API_KEY is not set, rag endpoint will return the fallback response")
		embedder = rag.StaticEmbedder{}
		generator = rag.StaticGenerator{}
	} else {
		var err error
		embedder, err = rag.NewOpenAIEmbedder(rag.OpenAIEmbedderConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.EmbeddingModel,
		})
		if err != nil {
			log.Fatalf("embedder init failed: %v", err)
		}
		generator, err = rag.NewOpenAIGenerator(rag.OpenAIGeneratorConfig{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.GenerationModel,
			MaxTokens:   cfg.GenerationMaxTokens,
			Temperature: cfg.GenerationTemperature,
		})
		if err != nil {
			log.Fatalf("generator init failed: %v", err)
		}
	}

	pipeline := rag.NewPipeline(embedder, index, cfg.RetrievalTopK, metrics, logger)
	return rag.NewAnswerer(pipeline, generator, cfg.RAGTimeout, logger)
}
