package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/eliseochoa/monica/internal/observability"
)

const indexMaxAttempts = 3

// Pipeline turns a natural-language query into ranked supporting chunks.
type Pipeline struct {
	embedder Embedder
	index    VectorIndex
	topK     int
	metrics  *observability.Metrics
	logger   *zap.Logger
}

func NewPipeline(embedder Embedder, index VectorIndex, topK int, metrics *observability.Metrics, logger *zap.Logger) *Pipeline {
	if topK <= 0 {
		topK = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		embedder: embedder,
		index:    index,
		topK:     topK,
		metrics:  metrics,
		logger:   logger,
	}
}

// Retrieve embeds the query, runs a top-k similarity search and assembles
// the context. Zero matching documents yields an empty context, not an
// error; transient index failures are retried a bounded number of times.
func (p *Pipeline) Retrieve(ctx context.Context, query string) (RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return RetrievalResult{}, fmt.Errorf("query is empty")
	}

	embedStart := time.Now()
	vector, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return RetrievalResult{}, &RetrievalError{Kind: RetrievalEmbeddingUnavailable, wrapped: err}
	}
	p.observeStage("embed", embedStart)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second

	queryStart := time.Now()
	docs, err := backoff.Retry(ctx, func() ([]Document, error) {
		docs, err := p.index.Query(ctx, vector, p.topK)
		if err != nil {
			p.logger.Warn("vector index query failed, retrying", zap.Error(err))
		}
		return docs, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(indexMaxAttempts))
	if err != nil {
		return RetrievalResult{}, &RetrievalError{Kind: RetrievalIndexUnavailable, wrapped: err}
	}
	p.observeStage("search", queryStart)

	return RetrievalResult{
		Query:     query,
		Documents: docs,
		Context:   BuildContext(docs),
	}, nil
}

func (p *Pipeline) observeStage(stage string, start time.Time) {
	if p.metrics != nil {
		p.metrics.ObserveRAGStage(stage, time.Since(start))
	}
}
