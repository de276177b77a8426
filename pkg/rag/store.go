package rag

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

// VectorStore 分块向量索引
type VectorStore interface {
	// Add 添加分块，ID 已存在时替换内容但保留原插入位置
	Add(ctx context.Context, chunks []DocumentChunk) error
	// Search 按与 query 的余弦相似度降序返回前 topK 个分块，topK <= 0 返回全部
	Search(ctx context.Context, query []float32, topK int) ([]RetrievalResult, error)
	Size() int
}

// InMemoryVectorStore 单次组装使用的内存索引
//
// 相似度相同的分块按插入顺序返回，同一语料的两次组装结果一致。
// 没有向量的分块被保存但不会被检索到。
type InMemoryVectorStore struct {
	mu     sync.RWMutex
	chunks []DocumentChunk
	pos    map[string]int
}

// NewInMemoryVectorStore 创建内存索引
func NewInMemoryVectorStore() *InMemoryVectorStore {
	return &InMemoryVectorStore{pos: make(map[string]int)}
}

func (s *InMemoryVectorStore) Add(ctx context.Context, chunks []DocumentChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunk := range chunks {
		if i, ok := s.pos[chunk.ID]; ok {
			s.chunks[i] = chunk
			continue
		}
		s.pos[chunk.ID] = len(s.chunks)
		s.chunks = append(s.chunks, chunk)
	}
	return nil
}

func (s *InMemoryVectorStore) Search(ctx context.Context, query []float32, topK int) ([]RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	var results []RetrievalResult
	for _, chunk := range s.chunks {
		if len(chunk.Vector) > 0 {
			results = append(results, RetrievalResult{Chunk: chunk, Score: CosineSimilarity(query, chunk.Vector)})
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(results, func(a, b RetrievalResult) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (s *InMemoryVectorStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

var _ VectorStore = (*InMemoryVectorStore)(nil)
