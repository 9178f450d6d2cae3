package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/eliseochoa/monica/internal/config"
	"github.com/eliseochoa/monica/internal/rag"
)

// monica-ingest loads knowledge-base documents into the pgvector index:
// each input file is split into blank-line-separated chunks, embedded, and
// upserted into the knowledge_chunks table.
func main() {
	var (
		timeout = flag.Duration("timeout", 5*time.Minute, "overall ingestion deadline")
		dryRun  = flag.Bool("dry-run", false, "split and report chunks without embedding or writing")
	)
	flag.Parse()
	if flag.NArg() == 0 {
		log.Fatalf("usage: monica-ingest [flags] file...")
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	var chunks []rag.Document
	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("read %s: %v", path, err)
		}
		parts := splitChunks(string(data))
		if len(parts) == 0 {
			log.Printf("%s: no chunks, skipped", path)
			continue
		}
		for i, content := range parts {
			chunks = append(chunks, rag.Document{
				ID:      fmt.Sprintf("%s#%d", path, i),
				Content: content,
			})
		}
		log.Printf("%s: %d chunks", path, len(parts))
	}
	if *dryRun {
		log.Printf("dry run: %d chunks total", len(chunks))
		return
	}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Fatalf("DATABASE_URL is not set")
	}
	embedder, err := rag.NewOpenAIEmbedder(rag.OpenAIEmbedderConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.EmbeddingModel,
	})
	if err != nil {
		log.Fatalf("embedder init failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	index, err := rag.NewPostgresIndex(ctx, cfg.DatabaseURL, cfg.EmbeddingDim)
	if err != nil {
		log.Fatalf("pgvector index init failed: %v", err)
	}
	defer index.Close()

	for _, doc := range chunks {
		vector, err := embedder.Embed(ctx, doc.Content)
		if err != nil {
			log.Fatalf("embed %s: %v", doc.ID, err)
		}
		if err := index.Upsert(ctx, doc, vector); err != nil {
			log.Fatalf("upsert %s: %v", doc.ID, err)
		}
	}
	log.Printf("ingested %d chunks", len(chunks))
}

// splitChunks breaks a document into blank-line-separated chunks, dropping
// whitespace-only segments.
func splitChunks(text string) []string {
	var out []string
	for _, part := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
