package context

import (
	"context"
	"fmt"
	"strings"

	coreerrors "github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/errors"
	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/rag"
)

// Strategy 定义上下文组装策略。
type Strategy interface {
	// Name 返回策略名，同时作为结果文件中的键。
	Name() string

	// Assemble 在 tokenLimit 预算内选择并排列文档，返回拼接后的上下文。
	// 没有文档或没有文档能放入时返回空字符串。
	Assemble(ctx context.Context, docs []rag.Document, query string, tokenLimit int) (string, error)
}

// StrategyKind 枚举所有组装策略。
type StrategyKind string

const (
	// Naive 按原始顺序追加
	Naive StrategyKind = "naive"
	// Primacy 最相关的文档放在最前
	Primacy StrategyKind = "primacy"
	// Recency 最相关的文档放在最后
	Recency StrategyKind = "recency"
	// Sandwich 最相关的文档放在两端
	Sandwich StrategyKind = "sandwich"
	// HierarchicalSummary 高相关全文，其余摘要
	HierarchicalSummary StrategyKind = "hierarchical_summary"
	// SemanticChunking 按分块相关性挑选内容
	SemanticChunking StrategyKind = "semantic_chunking"
	// DynamicAllocation 按相关性比例分配预算
	DynamicAllocation StrategyKind = "dynamic_allocation"
)

// BaselineKinds 基础放置策略。
var BaselineKinds = []StrategyKind{Naive, Primacy, Recency, Sandwich}

// OptimizationKinds 优化策略。
var OptimizationKinds = []StrategyKind{HierarchicalSummary, SemanticChunking, DynamicAllocation}

// AllKinds 返回全部策略，基础策略在前。
func AllKinds() []StrategyKind {
	kinds := make([]StrategyKind, 0, len(BaselineKinds)+len(OptimizationKinds))
	kinds = append(kinds, BaselineKinds...)
	return append(kinds, OptimizationKinds...)
}

// IsOptimization 判断是否为优化策略。
func (k StrategyKind) IsOptimization() bool {
	switch k {
	case HierarchicalSummary, SemanticChunking, DynamicAllocation:
		return true
	default:
		return false
	}
}

// ParseStrategyKind 解析策略名，大小写与首尾空白不敏感。
func ParseStrategyKind(name string) (StrategyKind, error) {
	kind := StrategyKind(strings.ToLower(strings.TrimSpace(name)))
	for _, k := range AllKinds() {
		if k == kind {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", coreerrors.ErrUnknownStrategy, name)
}

// NewStrategy 按类型创建策略。
//
// 除 naive 外都需要 Ranker，缺失时返回 ErrRankerRequired。
func NewStrategy(kind StrategyKind, opts ...ConfigOption) (Strategy, error) {
	cfg := NewConfig(opts...)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if kind != Naive && cfg.Ranker == nil {
		return nil, fmt.Errorf("%s: %w", kind, coreerrors.ErrRankerRequired)
	}
	cfg.GetTokenCounter()

	switch kind {
	case Naive:
		return &naiveStrategy{cfg: cfg}, nil
	case Primacy:
		return &primacyStrategy{cfg: cfg}, nil
	case Recency:
		return &recencyStrategy{cfg: cfg}, nil
	case Sandwich:
		return &sandwichStrategy{cfg: cfg}, nil
	case HierarchicalSummary:
		return &hierarchicalSummaryStrategy{cfg: cfg, summarizer: cfg.GetSummarizer()}, nil
	case SemanticChunking:
		return newSemanticChunkingStrategy(cfg), nil
	case DynamicAllocation:
		return &dynamicAllocationStrategy{cfg: cfg}, nil
	default:
		return nil, fmt.Errorf("%w: %q", coreerrors.ErrUnknownStrategy, kind)
	}
}

// NewStrategies 按名称批量创建策略，names 为空时创建全部。
func NewStrategies(names []string, opts ...ConfigOption) ([]Strategy, error) {
	kinds := AllKinds()
	if len(names) > 0 {
		kinds = make([]StrategyKind, 0, len(names))
		for _, name := range names {
			k, err := ParseStrategyKind(name)
			if err != nil {
				return nil, err
			}
			kinds = append(kinds, k)
		}
	}

	strategies := make([]Strategy, 0, len(kinds))
	for _, k := range kinds {
		s, err := NewStrategy(k, opts...)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, s)
	}
	return strategies, nil
}

// fitPrefix 依次尝试放入文档，遇到第一篇放不下的即停止。
func fitPrefix(budget *Budget, docs []rag.Document) []rag.Document {
	var fit []rag.Document
	for _, doc := range docs {
		if !budget.AddText(FormatDocument(doc)) {
			break
		}
		fit = append(fit, doc)
	}
	return fit
}

func render(docs []rag.Document) string {
	blocks := make([]string, len(docs))
	for i, doc := range docs {
		blocks[i] = FormatDocument(doc)
	}
	return JoinBlocks(blocks)
}
