package context

import (
	"context"
	"fmt"
	"sort"

	coreerrors "github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/errors"
	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/rag"
)

// RankedDocument 带相关性分数的文档。
type RankedDocument struct {
	Document rag.Document
	// Score 查询与文档全文嵌入的余弦相似度，取值 [-1, 1]。
	Score float64
	// Position 文档在原始输入中的下标。
	Position int
}

// Ranker 按嵌入相似度对文档排序。
type Ranker struct {
	embedder rag.Embedder
}

// NewRanker 创建排序器，embedder 不可为空。
func NewRanker(embedder rag.Embedder) (*Ranker, error) {
	if embedder == nil {
		return nil, coreerrors.ErrEmbedderRequired
	}
	return &Ranker{embedder: embedder}, nil
}

// Score 计算每篇文档与查询的相似度，结果保持输入顺序。
func (r *Ranker) Score(ctx context.Context, query string, docs []rag.Document) ([]RankedDocument, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	texts := make([]string, 0, len(docs)+1)
	texts = append(texts, query)
	for _, doc := range docs {
		texts = append(texts, doc.Content)
	}

	vectors, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("rank documents: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("rank documents: %w: expected %d vectors, got %d",
			coreerrors.ErrEmbeddingFailed, len(texts), len(vectors))
	}

	queryVec := vectors[0]
	if len(queryVec) == 0 {
		return nil, fmt.Errorf("rank documents: %w: empty query vector", coreerrors.ErrEmbeddingFailed)
	}
	scored := make([]RankedDocument, len(docs))
	for i, doc := range docs {
		if dim := len(vectors[i+1]); dim != len(queryVec) {
			return nil, fmt.Errorf("rank documents: %w: document %q has dimension %d, query has %d",
				coreerrors.ErrEmbeddingFailed, doc.ID, dim, len(queryVec))
		}
		scored[i] = RankedDocument{
			Document: doc,
			Score:    rag.CosineSimilarity(queryVec, vectors[i+1]),
			Position: i,
		}
	}
	return scored, nil
}

// Rank 按相似度降序排序，分数相同时保持原始顺序。
func (r *Ranker) Rank(ctx context.Context, query string, docs []rag.Document) ([]RankedDocument, error) {
	scored, err := r.Score(ctx, query, docs)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored, nil
}

// RankAscending 按相似度升序排序，分数相同时保持原始顺序。
func (r *Ranker) RankAscending(ctx context.Context, query string, docs []rag.Document) ([]RankedDocument, error) {
	scored, err := r.Score(ctx, query, docs)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score < scored[j].Score
	})
	return scored, nil
}

// Documents 取出排序结果中的文档。
func Documents(ranked []RankedDocument) []rag.Document {
	docs := make([]rag.Document, len(ranked))
	for i, r := range ranked {
		docs[i] = r.Document
	}
	return docs
}

// Embedder 返回排序器使用的嵌入服务。
func (r *Ranker) Embedder() rag.Embedder { return r.embedder }
