package rag

import "context"

// VectorIndex answers nearest-neighbor queries against the knowledge base.
// Zero matches is a valid result, not an error.
type VectorIndex interface {
	Query(ctx context.Context, vector []float64, topK int) ([]Document, error)
}
