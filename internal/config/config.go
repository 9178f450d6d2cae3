package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// PlaceholderIndexName is the fallback Pinecone index name. Running against
// it is a misconfiguration; Load keeps it only so local development without
// a knowledge base can still boot.
const PlaceholderIndexName = "your-index-name"

// Config contains all runtime settings for the avatar service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	HeyGenAPIKey   string
	HeyGenBaseURL  string
	TokenTimeout   time.Duration
	TokenTTL       time.Duration

	AvatarID          string
	AvatarQuality     string
	AvatarLanguage    string
	AvatarKnowledgeID string
	VoiceRate         float64
	VoiceEmotion      string
	DefaultChatMode   string
	Greeting          string

	OpenAIAPIKey          string
	OpenAIBaseURL         string
	EmbeddingModel        string
	GenerationModel       string
	GenerationMaxTokens   int
	GenerationTemperature float64
	RetrievalTopK         int
	RAGTimeout            time.Duration

	PineconeAPIKey    string
	PineconeIndexHost string
	PineconeIndexName string

	DatabaseURL  string
	EmbeddingDim int
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "monica"),
		AllowAnyOrigin:   false,
		HeyGenAPIKey:     envTrimmed("HEYGEN_API_KEY"),
		HeyGenBaseURL:    envOrDefault("HEYGEN_BASE_URL", "https://api.heygen.com"),
		TokenTimeout:     10 * time.Second,
		// Upstream tokens are valid for one hour; we request exactly that.
		TokenTTL: time.Hour,

		AvatarID:          envOrDefault("AVATAR_ID", "avatar_f_monica_001"),
		AvatarQuality:     envOrDefault("AVATAR_QUALITY", "low"),
		AvatarLanguage:    envOrDefault("AVATAR_LANGUAGE", "en"),
		AvatarKnowledgeID: envTrimmed("AVATAR_KNOWLEDGE_ID"),
		VoiceRate:         1.5,
		VoiceEmotion:      envOrDefault("AVATAR_VOICE_EMOTION", "excited"),
		DefaultChatMode:   envOrDefault("AVATAR_DEFAULT_CHAT_MODE", "voice"),
		Greeting:          envTrimmed("AVATAR_GREETING"),

		OpenAIAPIKey:          envTrimmed("OPENAI_API_KEY"),
		OpenAIBaseURL:         envTrimmed("OPENAI_BASE_URL"),
		EmbeddingModel:        envOrDefault("RAG_EMBEDDING_MODEL", "text-embedding-3-small"),
		GenerationModel:       envOrDefault("RAG_GENERATION_MODEL", "gpt-4o"),
		GenerationMaxTokens:   300,
		GenerationTemperature: 0.7,
		RetrievalTopK:         3,
		RAGTimeout:            30 * time.Second,

		PineconeAPIKey:    envTrimmed("PINECONE_API_KEY"),
		PineconeIndexHost: envTrimmed("PINECONE_INDEX_HOST"),
		PineconeIndexName: envOrDefault("PINECONE_INDEX_NAME", PlaceholderIndexName),

		DatabaseURL:  envTrimmed("DATABASE_URL"),
		EmbeddingDim: 1536,

		ShutdownTimeout: 15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.TokenTimeout, err = durationFromEnv("APP_TOKEN_TIMEOUT", cfg.TokenTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.RAGTimeout, err = durationFromEnv("APP_RAG_TIMEOUT", cfg.RAGTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.VoiceRate, err = floatFromEnv("AVATAR_VOICE_RATE", cfg.VoiceRate)
	if err != nil {
		return Config{}, err
	}
	cfg.GenerationMaxTokens, err = intFromEnv("RAG_GENERATION_MAX_TOKENS", cfg.GenerationMaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.GenerationTemperature, err = floatFromEnv("RAG_GENERATION_TEMPERATURE", cfg.GenerationTemperature)
	if err != nil {
		return Config{}, err
	}
	cfg.RetrievalTopK, err = intFromEnv("RAG_RETRIEVAL_TOP_K", cfg.RetrievalTopK)
	if err != nil {
		return Config{}, err
	}
	cfg.EmbeddingDim, err = intFromEnv("RAG_EMBEDDING_DIM", cfg.EmbeddingDim)
	if err != nil {
		return Config{}, err
	}

	switch strings.ToLower(cfg.DefaultChatMode) {
	case "text", "voice":
		cfg.DefaultChatMode = strings.ToLower(cfg.DefaultChatMode)
	default:
		return Config{}, fmt.Errorf("AVATAR_DEFAULT_CHAT_MODE must be text or voice, got %q", cfg.DefaultChatMode)
	}
	if cfg.VoiceRate <= 0 {
		return Config{}, fmt.Errorf("AVATAR_VOICE_RATE must be positive")
	}
	if cfg.GenerationMaxTokens <= 0 {
		return Config{}, fmt.Errorf("RAG_GENERATION_MAX_TOKENS must be positive")
	}
	if cfg.GenerationTemperature < 0 || cfg.GenerationTemperature > 2 {
		return Config{}, fmt.Errorf("RAG_GENERATION_TEMPERATURE must be in [0, 2]")
	}
	if cfg.RetrievalTopK <= 0 {
		return Config{}, fmt.Errorf("RAG_RETRIEVAL_TOP_K must be positive")
	}
	if cfg.EmbeddingDim <= 0 {
		return Config{}, fmt.Errorf("RAG_EMBEDDING_DIM must be positive")
	}
	if cfg.TokenTimeout < time.Second {
		return Config{}, fmt.Errorf("APP_TOKEN_TIMEOUT must be at least 1s")
	}

	return cfg, nil
}

// UsingPlaceholderIndex reports whether the Pinecone index name was never
// configured. Callers should treat this as a misconfiguration in production.
func (c Config) UsingPlaceholderIndex() bool {
	return c.PineconeIndexName == PlaceholderIndexName
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
