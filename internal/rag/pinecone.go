package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// PineconeConfig configures the serverless index adapter. APIKey and
// IndexHost are required; construction fails fast when either is absent.
type PineconeConfig struct {
	APIKey    string
	IndexHost string
	Namespace string
	Timeout   time.Duration
}

// PineconeIndex queries a Pinecone index over its data-plane REST API.
type PineconeIndex struct {
	cfg    PineconeConfig
	client *http.Client
	logger *zap.Logger
}

func NewPineconeIndex(cfg PineconeConfig, logger *zap.Logger) (*PineconeIndex, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("PINECONE_API_KEY is not set")
	}
	if strings.TrimSpace(cfg.IndexHost) == "" {
		return nil, fmt.Errorf("PINECONE_INDEX_HOST is not set")
	}
	if !strings.Contains(cfg.IndexHost, "://") {
		cfg.IndexHost = "https://" + cfg.IndexHost
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PineconeIndex{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

type pineconeQueryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Metadata map[string]any `json:"metadata"`
	} `json:"matches"`
}

// Query returns the topK nearest neighbors by the index's native metric,
// in the order the index ranks them. Chunk text is read from the "text"
// metadata field.
func (p *PineconeIndex) Query(ctx context.Context, vector []float64, topK int) ([]Document, error) {
	payload, err := json.Marshal(map[string]any{
		"vector":          vector,
		"topK":            topK,
		"includeMetadata": true,
		"namespace":       p.cfg.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(p.cfg.IndexHost, "/")+"/query", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", p.cfg.APIKey)

	res, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, fmt.Errorf("pinecone query status %d: %s", res.StatusCode, strings.TrimSpace(string(detail)))
	}

	var body pineconeQueryResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}

	docs := make([]Document, 0, len(body.Matches))
	for _, m := range body.Matches {
		content, _ := m.Metadata["text"].(string)
		if content == "" {
			p.logger.Debug("match without text metadata skipped", zap.String("id", m.ID))
			continue
		}
		docs = append(docs, Document{ID: m.ID, Content: content})
	}
	return docs, nil
}
