package context_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	ctxeng "github.com/JSON-Bjorn/context-engineering-lesson/pkg/context"
	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/llm"
	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/rag"
)

func TestDynamicAllocation_ProportionalTruncation(t *testing.T) {
	emb := &vectorEmbedder{vectors: map[string][]float32{testQuery: {1, 0}}}
	docs := []rag.Document{
		{ID: "low", Title: "Low", Content: strings.TrimSpace(strings.Repeat("low ", 40))},
		{ID: "high", Title: "High", Content: strings.TrimSpace(strings.Repeat("high ", 40))},
	}
	emb.vectors[docs[0].Content] = []float32{0.1, 0.99498744}
	emb.vectors[docs[1].Content] = []float32{0.9, 0.43588989}

	s := newStrategy(t, ctxeng.DynamicAllocation, emb)
	got, err := s.Assemble(context.Background(), docs, testQuery, limit(41))
	if err != nil {
		t.Fatal(err)
	}

	blocks := strings.Split(got, ctxeng.Separator)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d: %q", len(blocks), got)
	}
	if !strings.HasPrefix(blocks[0], "Document: High\n\n") || !strings.HasPrefix(blocks[1], "Document: Low\n\n") {
		t.Fatalf("expected high-relevance block first: %q", got)
	}
	// 份额 0.9 / 0.1，可用 41：向下取整后分别为 36 与 4 个 token
	if n := (wordCounter{}).Count(blocks[0]); n != 36 {
		t.Errorf("high block = %d tokens, want 36", n)
	}
	if n := (wordCounter{}).Count(blocks[1]); n != 4 {
		t.Errorf("low block = %d tokens, want 4", n)
	}
}

func TestDynamicAllocation_CarriesUnusedShare(t *testing.T) {
	emb := &vectorEmbedder{vectors: map[string][]float32{testQuery: {1, 0}}}
	docs := []rag.Document{
		{ID: "a", Title: "A", Content: "short answer"},
		{ID: "b", Title: "B", Content: strings.TrimSpace(strings.Repeat("b ", 50))},
	}
	emb.vectors[docs[0].Content] = []float32{1, 0}
	emb.vectors[docs[1].Content] = []float32{1, 0}

	s := newStrategy(t, ctxeng.DynamicAllocation, emb)
	got, _ := s.Assemble(context.Background(), docs, testQuery, limit(40))

	blocks := strings.Split(got, ctxeng.Separator)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %q", got)
	}
	// A 只用 4 个 token，剩下的 16 顺延给 B
	if n := (wordCounter{}).Count(blocks[1]); n != 36 {
		t.Errorf("B block = %d tokens, want 36", n)
	}
}

func TestSemanticChunking_SkipsAndGroups(t *testing.T) {
	docs := []rag.Document{
		{ID: "a", Title: "A", Content: "gold gold gold\n\nzzz zzz zzz zzz"},
		{ID: "b", Title: "B", Content: "yyy yyy yyy\n\ngold yyy yyy"},
	}

	tests := []struct {
		name      string
		available int
		want      string
	}{
		{
			name:      "best chunk of each document",
			available: 10,
			want:      "Document: A\n\ngold gold gold" + ctxeng.Separator + "Document: B\n\ngold yyy yyy",
		},
		{
			// A 的第二块放不下被跳过，B 的第一块仍然放入，并按原文顺序排在前面
			name:      "skip and continue",
			available: 13,
			want:      "Document: A\n\ngold gold gold" + ctxeng.Separator + "Document: B\n\nyyy yyy yyy\n\ngold yyy yyy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStrategy(t, ctxeng.SemanticChunking, keywordEmbedder{}, ctxeng.WithChunking(20, 0))
			got, err := s.Assemble(context.Background(), docs, "gold", limit(tt.available))
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Assemble() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestHierarchicalSummary_FullThenSummaries(t *testing.T) {
	emb := &vectorEmbedder{vectors: map[string][]float32{testQuery: {1, 0}}}
	var docs []rag.Document
	for i, s := range []float32{0.1, 0.9, 0.5} {
		content := []string{"Doc0", "Doc1", "Doc2"}[i] + " opens here. It continues with detail. It ends now."
		docs = append(docs, rag.Document{ID: content[:4], Title: "T" + content[3:4], Content: content})
		emb.vectors[content] = []float32{s, 1 - s}
	}

	s := newStrategy(t, ctxeng.HierarchicalSummary, emb, ctxeng.WithFullTextShare(0.5))
	got, err := s.Assemble(context.Background(), docs, testQuery, limit(30))
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		"Document: T1\n\nDoc1 opens here. It continues with detail. It ends now.",
		"Document: T2\n\nSummary: Doc2 opens here.",
		"Document: T0\n\nSummary: Doc0 opens here.",
	}
	if diff := cmp.Diff(want, strings.Split(got, ctxeng.Separator)); diff != "" {
		t.Errorf("hierarchical blocks mismatch (-want +got):\n%s", diff)
	}
}

type fakeGenerator struct {
	reply string
	err   error
	last  llm.Request
}

func (g *fakeGenerator) Generate(_ context.Context, req llm.Request) (llm.Response, error) {
	g.last = req
	if g.err != nil {
		return llm.Response{}, g.err
	}
	return llm.Response{Content: g.reply}, nil
}

func TestHierarchicalSummary_WithLLMSummarizer(t *testing.T) {
	emb := &vectorEmbedder{vectors: map[string][]float32{testQuery: {1, 0}}}
	docs := []rag.Document{
		{ID: "a", Title: "A", Content: strings.TrimSpace(strings.Repeat("alpha ", 30))},
		{ID: "b", Title: "B", Content: strings.TrimSpace(strings.Repeat("beta ", 30))},
	}
	emb.vectors[docs[0].Content] = []float32{0.9, 0.1}

	gen := &fakeGenerator{reply: "  beta repeated many times  "}
	s := newStrategy(t, ctxeng.HierarchicalSummary, emb,
		ctxeng.WithFullTextShare(0.8),
		ctxeng.WithSummarizer(ctxeng.NewLLMSummarizer(gen, wordCounter{})),
	)
	got, err := s.Assemble(context.Background(), docs, testQuery, limit(45))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(got, "Document: B\n\nSummary: beta repeated many times") {
		t.Errorf("unexpected assembly: %q", got)
	}
	if !strings.Contains(gen.last.Messages[0].Content, "Title: B") {
		t.Errorf("summary prompt missing title: %q", gen.last.Messages[0].Content)
	}

	gen.err = errors.New("service down")
	if _, err := s.Assemble(context.Background(), docs, testQuery, limit(45)); !errors.Is(err, gen.err) {
		t.Errorf("expected summarizer error to propagate, got %v", err)
	}
}

func TestExtractiveSummarizer(t *testing.T) {
	s := ctxeng.NewExtractiveSummarizer(wordCounter{})
	doc := rag.Document{Content: "Budgets matter. Overhead is reserved for the answer! Ranking helps?"}

	tests := []struct {
		maxTokens int
		want      string
	}{
		{0, ""},
		{1, "Budgets"},
		{2, "Budgets matter."},
		{8, "Budgets matter. Overhead is reserved for the answer!"},
		{100, "Budgets matter. Overhead is reserved for the answer! Ranking helps?"},
	}
	for _, tt := range tests {
		got, err := s.Summarize(context.Background(), doc, tt.maxTokens)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("Summarize(%d) = %q, want %q", tt.maxTokens, got, tt.want)
		}
	}
}
