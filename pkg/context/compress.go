package context

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/llm"
	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/rag"
)

// Summarizer 将文档压缩为不超过 maxTokens 的摘要。
type Summarizer interface {
	Summarize(ctx context.Context, doc rag.Document, maxTokens int) (string, error)
}

// ExtractiveSummarizer 抽取文档开头的句子作为摘要。
type ExtractiveSummarizer struct {
	counter TokenCounter
}

// NewExtractiveSummarizer 创建抽取式摘要器。
func NewExtractiveSummarizer(counter TokenCounter) *ExtractiveSummarizer {
	if counter == nil {
		counter = DefaultTokenCounter()
	}
	return &ExtractiveSummarizer{counter: counter}
}

// Summarize 依次取句子直到达到 maxTokens，首句过长时截断。
func (s *ExtractiveSummarizer) Summarize(_ context.Context, doc rag.Document, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		return "", nil
	}
	sentences := splitSentences(doc.Content)
	if len(sentences) == 0 {
		return "", nil
	}

	summary := ""
	for _, sentence := range sentences {
		next := sentence
		if summary != "" {
			next = summary + " " + sentence
		}
		if s.counter.Count(next) > maxTokens {
			break
		}
		summary = next
	}
	if summary == "" {
		summary = TruncateToBudget(s.counter, sentences[0], maxTokens)
	}
	return summary, nil
}

var sentencePattern = regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`)

// splitSentences 切分句子并保留句末标点。
func splitSentences(text string) []string {
	var out []string
	for _, s := range sentencePattern.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

const summaryPromptTemplate = `Summarize the following document in at most %d words. Keep names, numbers and key facts.

Title: %s

%s

Summary:`

// LLMSummarizer 调用生成服务生成摘要。
type LLMSummarizer struct {
	generator   llm.Generator
	counter     TokenCounter
	temperature float64
}

// NewLLMSummarizer 创建生成式摘要器。
func NewLLMSummarizer(generator llm.Generator, counter TokenCounter) *LLMSummarizer {
	if counter == nil {
		counter = DefaultTokenCounter()
	}
	return &LLMSummarizer{generator: generator, counter: counter, temperature: 0.3}
}

// Summarize 生成摘要并保证不超过 maxTokens。
func (s *LLMSummarizer) Summarize(ctx context.Context, doc rag.Document, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		return "", nil
	}
	words := max(1, maxTokens*3/4)
	prompt := fmt.Sprintf(summaryPromptTemplate, words, doc.DisplayTitle(), doc.Content)

	resp, err := s.generator.Generate(ctx, llm.NewRequest(prompt,
		llm.WithRequestMaxTokens(maxTokens),
		llm.WithRequestTemperature(s.temperature),
	))
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", doc.ID, err)
	}
	return TruncateToBudget(s.counter, strings.TrimSpace(resp.Content), maxTokens), nil
}

var _ Summarizer = (*ExtractiveSummarizer)(nil)
var _ Summarizer = (*LLMSummarizer)(nil)
