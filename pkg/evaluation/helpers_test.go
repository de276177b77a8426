package evaluation_test

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/llm"
	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/rag"
)

// scriptedGenerator 按提示词返回响应，并记录所有请求。
type scriptedGenerator struct {
	mu       sync.Mutex
	respond  func(prompt string) (string, error)
	requests []llm.Request
}

func (g *scriptedGenerator) Generate(_ context.Context, req llm.Request) (llm.Response, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()

	content, err := g.respond(req.Messages[0].Content)
	if err != nil {
		return llm.Response{}, err
	}
	return llm.Response{Content: content, FinishReason: "stop"}, nil
}

func (g *scriptedGenerator) calls() []llm.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]llm.Request(nil), g.requests...)
}

// fixedGenerator 回答固定为 answer，打分固定为 rating。
func fixedGenerator(answer, rating string) *scriptedGenerator {
	return &scriptedGenerator{respond: func(prompt string) (string, error) {
		if isJudgePrompt(prompt) {
			return rating, nil
		}
		return answer, nil
	}}
}

func isJudgePrompt(prompt string) bool {
	return strings.HasSuffix(prompt, "Rating:")
}

// contextOf 取出回答提示词中的上下文段。
func contextOf(prompt string) string {
	_, rest, _ := strings.Cut(prompt, "Context:\n")
	ctx, _, _ := strings.Cut(rest, "\n\nQuestion:")
	return ctx
}

// tableEmbedder 按文本查表返回向量，未登记的文本返回 {0, 1}。
type tableEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	calls   int
}

func (e *tableEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := e.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = []float32{0, 1}
		}
	}
	return out, nil
}

// fixedStrategy 忽略文档，总是返回同一段上下文。
type fixedStrategy struct {
	name string
	text string
	err  error
}

func (s fixedStrategy) Name() string { return s.name }

func (s fixedStrategy) Assemble(context.Context, []rag.Document, string, int) (string, error) {
	return s.text, s.err
}

// wordCounter 按空白分词计数。
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
