package rag

import "fmt"

// FallbackResponse is spoken when generation produces no usable completion.
const FallbackResponse = "I'm sorry, I couldn't generate a response."

// RetrievalKind classifies retrieval failures.
type RetrievalKind string

const (
	RetrievalEmbeddingUnavailable RetrievalKind = "embedding_unavailable"
	RetrievalIndexUnavailable     RetrievalKind = "index_unavailable"
)

type RetrievalError struct {
	Kind    RetrievalKind
	wrapped error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed: %s: %v", e.Kind, e.wrapped)
}

func (e *RetrievalError) Unwrap() error { return e.wrapped }

// GenerationKind classifies generation failures.
type GenerationKind string

const (
	GenerationModelUnavailable GenerationKind = "model_unavailable"
	GenerationEmptyCompletion  GenerationKind = "empty_completion"
)

type GenerationError struct {
	Kind    GenerationKind
	wrapped error
}

func (e *GenerationError) Error() string {
	if e.wrapped == nil {
		return fmt.Sprintf("generation failed: %s", e.Kind)
	}
	return fmt.Sprintf("generation failed: %s: %v", e.Kind, e.wrapped)
}

func (e *GenerationError) Unwrap() error { return e.wrapped }
