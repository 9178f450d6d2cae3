package rag

import "context"

// EmptyIndex is the no-backend stand-in: every query matches nothing.
type EmptyIndex struct{}

func (EmptyIndex) Query(_ context.Context, _ []float64, _ int) ([]Document, error) {
	return nil, nil
}

// StaticEmbedder produces a fixed unit vector. Paired with EmptyIndex it
// lets the answer flow run end to end without an embedding provider.
type StaticEmbedder struct{}

func (StaticEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	return []float64{1}, nil
}

// StaticGenerator never produces a completion, so callers degrade to the
// fallback response.
type StaticGenerator struct{}

func (StaticGenerator) Generate(_ context.Context, _, _ string) (string, error) {
	return "", &GenerationError{Kind: GenerationEmptyCompletion}
}
