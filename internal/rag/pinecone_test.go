package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPineconeQueryParsesMatches(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query" {
			t.Errorf("path = %q, want /query", r.URL.Path)
		}
		if got := r.Header.Get("Api-Key"); got != "pc-key" {
			t.Errorf("Api-Key = %q", got)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["topK"] != float64(3) {
			t.Errorf("topK = %v, want 3", body["topK"])
		}
		if body["includeMetadata"] != true {
			t.Errorf("includeMetadata = %v, want true", body["includeMetadata"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"matches": []map[string]any{
				{"id": "a", "metadata": map[string]any{"text": "chunk one"}},
				{"id": "b", "metadata": map[string]any{"text": "chunk two"}},
				{"id": "c", "metadata": map[string]any{}},
			},
		})
	}))
	defer ts.Close()

	idx, err := NewPineconeIndex(PineconeConfig{APIKey: "pc-key", IndexHost: ts.URL}, nil)
	if err != nil {
		t.Fatalf("NewPineconeIndex() error = %v", err)
	}
	docs, err := idx.Query(context.Background(), []float64{0.1, 0.2}, 3)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("documents = %d, want 2 (match without text skipped)", len(docs))
	}
	if docs[0].Content != "chunk one" || docs[1].Content != "chunk two" {
		t.Fatalf("documents = %+v", docs)
	}
}

func TestPineconeQueryZeroMatches(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"matches": []any{}})
	}))
	defer ts.Close()

	idx, err := NewPineconeIndex(PineconeConfig{APIKey: "pc-key", IndexHost: ts.URL}, nil)
	if err != nil {
		t.Fatalf("NewPineconeIndex() error = %v", err)
	}
	docs, err := idx.Query(context.Background(), []float64{0.1}, 3)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("documents = %d, want 0", len(docs))
	}
}

func TestPineconeQueryErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "index not found", http.StatusNotFound)
	}))
	defer ts.Close()

	idx, err := NewPineconeIndex(PineconeConfig{APIKey: "pc-key", IndexHost: ts.URL}, nil)
	if err != nil {
		t.Fatalf("NewPineconeIndex() error = %v", err)
	}
	if _, err := idx.Query(context.Background(), []float64{0.1}, 3); err == nil {
		t.Fatalf("expected error for non-2xx status")
	}
}

func TestPineconeConstructionFailsFast(t *testing.T) {
	if _, err := NewPineconeIndex(PineconeConfig{IndexHost: "example.test"}, nil); err == nil {
		t.Fatalf("expected error without api key")
	}
	if _, err := NewPineconeIndex(PineconeConfig{APIKey: "pc-key"}, nil); err == nil {
		t.Fatalf("expected error without index host")
	}
}

func TestOpenAIClientsFailFastWithoutKey(t *testing.T) {
	if _, err := NewOpenAIEmbedder(OpenAIEmbedderConfig{}); err == nil {
		t.Fatalf("embedder construction should fail without api key")
	}
	if _, err := NewOpenAIGenerator(OpenAIGeneratorConfig{}); err == nil {
		t.Fatalf("generator construction should fail without api key")
	}
}

func TestVectorLiteralFormat(t *testing.T) {
	got := vectorLiteral([]float64{0.5, -1, 2})
	if got != "[0.5,-1,2]" {
		t.Fatalf("vectorLiteral() = %q", got)
	}
}
