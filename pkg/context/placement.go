package context

import (
	"context"

	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/rag"
)

// naiveStrategy 按原始顺序追加，第一次放不下即停止。
// 结果总是语料按原始顺序的一个前缀。
type naiveStrategy struct {
	cfg *Config
}

func (s *naiveStrategy) Name() string { return string(Naive) }

func (s *naiveStrategy) Assemble(_ context.Context, docs []rag.Document, _ string, tokenLimit int) (string, error) {
	budget, err := s.cfg.budgetFor(tokenLimit)
	if budget == nil || err != nil || len(docs) == 0 {
		return "", err
	}
	return render(fitPrefix(budget, docs)), nil
}

// primacyStrategy 按相关性降序追加，最相关的文档在最前。
type primacyStrategy struct {
	cfg *Config
}

func (s *primacyStrategy) Name() string { return string(Primacy) }

func (s *primacyStrategy) Assemble(ctx context.Context, docs []rag.Document, query string, tokenLimit int) (string, error) {
	budget, err := s.cfg.budgetFor(tokenLimit)
	if budget == nil || err != nil || len(docs) == 0 {
		return "", err
	}
	ranked, err := s.cfg.Ranker.Rank(ctx, query, docs)
	if err != nil {
		return "", err
	}
	return render(fitPrefix(budget, Documents(ranked))), nil
}

// recencyStrategy 按相关性升序追加，使最相关的文档落在末尾。
//
// 预算不足时会先耗尽在低相关文档上，最相关的文档因此被整篇丢弃。
type recencyStrategy struct {
	cfg *Config
}

func (s *recencyStrategy) Name() string { return string(Recency) }

func (s *recencyStrategy) Assemble(ctx context.Context, docs []rag.Document, query string, tokenLimit int) (string, error) {
	budget, err := s.cfg.budgetFor(tokenLimit)
	if budget == nil || err != nil || len(docs) == 0 {
		return "", err
	}
	ranked, err := s.cfg.Ranker.RankAscending(ctx, query, docs)
	if err != nil {
		return "", err
	}
	return render(fitPrefix(budget, Documents(ranked))), nil
}

// sandwichStrategy 将最相关的 k 篇文档分到开头和结尾，其余放在中间。
//
// 候选只包括按降序追加时能放入的文档。设放入 n 篇，k = max(2, n/3)，
// 开头放前 k/2 篇，结尾放 top-k 的其余部分，中间按降序放剩下的文档。
// 少于 3 篇时退化为 primacy 顺序。
type sandwichStrategy struct {
	cfg *Config
}

func (s *sandwichStrategy) Name() string { return string(Sandwich) }

func (s *sandwichStrategy) Assemble(ctx context.Context, docs []rag.Document, query string, tokenLimit int) (string, error) {
	budget, err := s.cfg.budgetFor(tokenLimit)
	if budget == nil || err != nil || len(docs) == 0 {
		return "", err
	}
	ranked, err := s.cfg.Ranker.Rank(ctx, query, docs)
	if err != nil {
		return "", err
	}
	return render(sandwichOrder(fitPrefix(budget, Documents(ranked)))), nil
}

func sandwichOrder(fit []rag.Document) []rag.Document {
	n := len(fit)
	if n < 3 {
		return fit
	}
	k := max(2, n/3)
	front, back, middle := fit[:k/2], fit[k/2:k], fit[k:]

	ordered := make([]rag.Document, 0, n)
	ordered = append(ordered, front...)
	ordered = append(ordered, middle...)
	return append(ordered, back...)
}
