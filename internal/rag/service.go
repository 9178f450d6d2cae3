package rag

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Answerer runs the full retrieval-augmented answer flow: retrieve, then
// generate, absorbing failures that have a safe degraded fallback.
type Answerer struct {
	pipeline  *Pipeline
	generator Generator
	timeout   time.Duration
	logger    *zap.Logger
}

func NewAnswerer(pipeline *Pipeline, generator Generator, timeout time.Duration, logger *zap.Logger) *Answerer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Answerer{
		pipeline:  pipeline,
		generator: generator,
		timeout:   timeout,
		logger:    logger,
	}
}

// Answer returns a spoken-ready response for the query. An empty completion
// degrades to the literal fallback string; retrieval and model outages are
// surfaced to the caller as typed errors.
func (a *Answerer) Answer(ctx context.Context, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	result, err := a.pipeline.Retrieve(ctx, query)
	if err != nil {
		return "", err
	}
	if result.Context == "" {
		a.logger.Info("no matching documents, answering without context", zap.String("query", query))
	}

	text, err := a.generator.Generate(ctx, query, result.Context)
	if err != nil {
		var genErr *GenerationError
		if errors.As(err, &genErr) && genErr.Kind == GenerationEmptyCompletion {
			return FallbackResponse, nil
		}
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return FallbackResponse, nil
	}
	return text, nil
}
