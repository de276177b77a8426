package rag

import (
	"context"
	"fmt"
	"math"
	"sync"

	coreerrors "github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/errors"
)

// Embedder 嵌入器接口
//
// 返回的向量与输入文本一一对应，长度固定。
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedText 计算单段文本的嵌入向量
func EmbedText(ctx context.Context, e Embedder, text string) ([]float32, error) {
	if e == nil {
		return nil, coreerrors.ErrEmbedderRequired
	}
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 vector, got %d", coreerrors.ErrEmbeddingFailed, len(vectors))
	}
	return vectors[0], nil
}

// CosineSimilarity 计算余弦相似度
//
// 维度不一致、为空或任一向量为零向量时返回 0。
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// CachedEmbedder 带缓存的嵌入器
//
// 同一段文本只向底层服务请求一次。排序、评分在多个策略间会重复嵌入同一文档。
type CachedEmbedder struct {
	inner Embedder

	mu    sync.Mutex
	cache map[string][]float32
}

// NewCachedEmbedder 包装嵌入器
func NewCachedEmbedder(inner Embedder) *CachedEmbedder {
	return &CachedEmbedder{
		inner: inner,
		cache: make(map[string][]float32),
	}
}

// Embed 返回文本嵌入，只请求缓存未命中的文本
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var (
		missing []string
		slots   = make(map[string][]int)
	)
	c.mu.Lock()
	for i, t := range texts {
		if v, ok := c.cache[t]; ok {
			out[i] = v
			continue
		}
		if _, queued := slots[t]; !queued {
			missing = append(missing, t)
		}
		slots[t] = append(slots[t], i)
	}
	c.mu.Unlock()

	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := c.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", coreerrors.ErrEmbeddingFailed, len(missing), len(vectors))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, t := range missing {
		c.cache[t] = vectors[i]
		for _, slot := range slots[t] {
			out[slot] = vectors[i]
		}
	}
	return out, nil
}

// Len 返回缓存条目数
func (c *CachedEmbedder) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}
