package ai

import (
	"context"
	"math"
	"strings"
	"testing"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		config  *ClientConfig
		wantErr bool
	}{
		{name: "nil config", config: nil, wantErr: true},
		{name: "stub", config: &ClientConfig{Provider: ProviderStub}, wantErr: false},
		{name: "openai", config: &ClientConfig{Provider: ProviderOpenAI, APIKey: "k"}, wantErr: false},
		{name: "unknown", config: &ClientConfig{Provider: "mystery"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewClient error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStubEmbedDeterministic(t *testing.T) {
	s := NewStubClient(32)
	a, err := s.Embed(context.Background(), "progressive overload explained")
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	b, _ := s.Embed(context.Background(), "progressive overload explained")

	if len(a) != 32 {
		t.Fatalf("want dim 32, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("identical text must embed identically")
		}
	}

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1.0) > 1e-5 {
		t.Errorf("embedding not unit length: %v", norm)
	}
}

func TestStubEmbedSimilarityTracksOverlap(t *testing.T) {
	s := NewStubClient(64)
	base, _ := s.Embed(context.Background(), "squat depth and ankle mobility")
	near, _ := s.Embed(context.Background(), "squat depth and hip mobility")
	far, _ := s.Embed(context.Background(), "baking sourdough bread at home")

	if cosine(base, near) <= cosine(base, far) {
		t.Errorf("overlapping text should be closer: near %v, far %v", cosine(base, near), cosine(base, far))
	}
}

func TestStubGenerateCitesEveryLabel(t *testing.T) {
	s := NewStubClient(0)
	system := "Context passages:\n[1] (A, 0:10) first\n[2] (B, 1:30) second\n"

	out, err := s.Generate(context.Background(), system, nil, "what do they say")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if !strings.Contains(out, "[1]") || !strings.Contains(out, "[2]") {
		t.Errorf("stub answer must cite every label, got %q", out)
	}
}

func TestStubRerankerOrdersByOverlap(t *testing.T) {
	docs := []string{
		"baking sourdough bread",
		"squat depth drills for lifters",
	}
	results, err := StubReranker{}.Rerank(context.Background(), "squat depth", docs, 2)
	if err != nil {
		t.Fatalf("Rerank returned error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("want 2 results, got %d", len(results))
	}
	if results[0].Index != 1 {
		t.Errorf("most-overlapping doc should rank first, got index %d", results[0].Index)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("scores not descending: %v, %v", results[0].Score, results[1].Score)
	}
}

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
