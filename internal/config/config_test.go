package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.TokenTTL != time.Hour {
		t.Fatalf("TokenTTL = %v, want 1h", cfg.TokenTTL)
	}
	if cfg.RetrievalTopK != 3 {
		t.Fatalf("RetrievalTopK = %d, want 3", cfg.RetrievalTopK)
	}
	if cfg.GenerationMaxTokens != 300 {
		t.Fatalf("GenerationMaxTokens = %d, want 300", cfg.GenerationMaxTokens)
	}
	if cfg.EmbeddingModel != "text-embedding-3-small" {
		t.Fatalf("EmbeddingModel = %q", cfg.EmbeddingModel)
	}
	if !cfg.UsingPlaceholderIndex() {
		t.Fatalf("expected placeholder index name by default")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("AVATAR_DEFAULT_CHAT_MODE", "video")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid chat mode")
	}

	t.Setenv("AVATAR_DEFAULT_CHAT_MODE", "text")
	t.Setenv("RAG_GENERATION_TEMPERATURE", "3.5")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for out-of-range temperature")
	}

	t.Setenv("RAG_GENERATION_TEMPERATURE", "0.7")
	t.Setenv("RAG_RETRIEVAL_TOP_K", "0")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for zero top-k")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PINECONE_INDEX_NAME", "support-kb")
	t.Setenv("AVATAR_VOICE_RATE", "1.2")
	t.Setenv("APP_TOKEN_TIMEOUT", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.UsingPlaceholderIndex() {
		t.Fatalf("placeholder reported for configured index")
	}
	if cfg.VoiceRate != 1.2 {
		t.Fatalf("VoiceRate = %v, want 1.2", cfg.VoiceRate)
	}
	if cfg.TokenTimeout != 5*time.Second {
		t.Fatalf("TokenTimeout = %v, want 5s", cfg.TokenTimeout)
	}
}
