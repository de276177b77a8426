package context_test

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/rag"
)

const testQuery = "which document matters"

// wordCounter 按空白分词计数，便于精确构造预算。
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

// vectorEmbedder 按文本查表返回向量，未登记的文本返回与查询正交的向量。
type vectorEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	calls   int
}

func (e *vectorEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
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

// keywordEmbedder 向量为 ["gold" 出现次数, 其他词数]。
type keywordEmbedder struct{}

func (keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		var gold, other float32
		for _, w := range strings.Fields(t) {
			if w == "gold" {
				gold++
			} else {
				other++
			}
		}
		out[i] = []float32{gold, other}
	}
	return out, nil
}

// scoredCorpus 构造与查询余弦相似度依次为 scores 的文档。
// 每篇文档渲染后恰好 10 个词：标题行 2 个，正文 8 个。
func scoredCorpus(scores ...float64) ([]rag.Document, *vectorEmbedder) {
	emb := &vectorEmbedder{vectors: map[string][]float32{testQuery: {1, 0}}}
	docs := make([]rag.Document, len(scores))
	for i, s := range scores {
		content := fmt.Sprintf("doc%d a b c d e f g", i)
		docs[i] = rag.Document{ID: fmt.Sprintf("d%d", i), Title: fmt.Sprintf("T%d", i), Content: content, TokenCount: 8}
		emb.vectors[content] = []float32{float32(s), float32(math.Sqrt(1 - s*s))}
	}
	return docs, emb
}

// titles 解析组装结果中各块的标题。
func titles(assembled string) []string {
	if assembled == "" {
		return nil
	}
	var out []string
	for _, block := range strings.Split(assembled, "\n\n---\n\n") {
		head, _, _ := strings.Cut(block, "\n\n")
		out = append(out, strings.TrimPrefix(head, "Document: "))
	}
	return out
}
