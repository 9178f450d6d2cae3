package rag

import "strings"

// Document is one retrieved knowledge-base chunk. Rank is implicit in slice
// order; no numeric score is exposed downstream.
type Document struct {
	ID      string
	Content string
}

// RetrievalResult is the ephemeral product of one query. Context is the
// documents' content joined in rank order with a blank line; generation
// prompts depend on this exact join.
type RetrievalResult struct {
	Query     string
	Documents []Document
	Context   string
}

// BuildContext joins document contents in rank order with a blank line.
func BuildContext(docs []Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, d.Content)
	}
	return strings.Join(parts, "\n\n")
}
