package context

import (
	"fmt"

	coreerrors "github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/errors"
)

// Config 保存组装策略的配置。
type Config struct {
	// Overhead 为查询、指令与回答预留的 token 数。
	Overhead int

	// TokenCounter 是要使用的 Token 计数器。
	TokenCounter TokenCounter

	// Ranker 是相关性排序器，除 naive 外的策略都需要。
	Ranker *Ranker

	// FullTextShare 分层摘要中全文层可占可用预算的比例。
	FullTextShare float64

	// MinShare 动态分配中每篇文档的最低预算比例。
	MinShare float64

	// ChunkSize 与 ChunkOverlap 控制语义分块的块大小（字符）。
	ChunkSize    int
	ChunkOverlap int

	// Summarizer 分层摘要使用的摘要器，为空时使用抽取式摘要。
	Summarizer Summarizer
}

// ConfigOption 配置 Config。
type ConfigOption func(*Config)

// WithOverhead 设置预留 token 数。
func WithOverhead(overhead int) ConfigOption {
	return func(c *Config) {
		c.Overhead = overhead
	}
}

// WithTokenCounter 设置 Token 计数器。
func WithTokenCounter(counter TokenCounter) ConfigOption {
	return func(c *Config) {
		c.TokenCounter = counter
	}
}

// WithRanker 设置相关性排序器。
func WithRanker(ranker *Ranker) ConfigOption {
	return func(c *Config) {
		c.Ranker = ranker
	}
}

// WithFullTextShare 设置全文层预算比例。
func WithFullTextShare(share float64) ConfigOption {
	return func(c *Config) {
		c.FullTextShare = share
	}
}

// WithMinShare 设置动态分配的最低比例。
func WithMinShare(share float64) ConfigOption {
	return func(c *Config) {
		c.MinShare = share
	}
}

// WithChunking 设置语义分块的块大小与重叠。
func WithChunking(size, overlap int) ConfigOption {
	return func(c *Config) {
		c.ChunkSize = size
		c.ChunkOverlap = overlap
	}
}

// WithSummarizer 设置摘要器。
func WithSummarizer(s Summarizer) ConfigOption {
	return func(c *Config) {
		c.Summarizer = s
	}
}

// DefaultConfig 返回具有默认值的 Config。
func DefaultConfig() *Config {
	return &Config{
		Overhead:      DefaultOverhead,
		FullTextShare: 0.6,
		MinShare:      0.05,
		ChunkSize:     600,
		ChunkOverlap:  0,
	}
}

// NewConfig 使用给定的选项创建新的 Config。
func NewConfig(opts ...ConfigOption) *Config {
	c := DefaultConfig()
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetTokenCounter 返回配置的 Token 计数器或默认计数器。
func (c *Config) GetTokenCounter() TokenCounter {
	if c.TokenCounter == nil {
		c.TokenCounter = DefaultTokenCounter()
	}
	return c.TokenCounter
}

// GetSummarizer 返回配置的摘要器或抽取式摘要器。
func (c *Config) GetSummarizer() Summarizer {
	if c.Summarizer == nil {
		return NewExtractiveSummarizer(c.GetTokenCounter())
	}
	return c.Summarizer
}

func (c *Config) validate() error {
	if c.Overhead < 0 {
		return fmt.Errorf("%w: overhead must not be negative, got %d", coreerrors.ErrInvalidBudget, c.Overhead)
	}
	if c.FullTextShare <= 0 || c.FullTextShare > 1 {
		return fmt.Errorf("%w: full text share must be in (0, 1], got %v", coreerrors.ErrInvalidConfig, c.FullTextShare)
	}
	if c.MinShare < 0 || c.MinShare >= 1 {
		return fmt.Errorf("%w: min share must be in [0, 1), got %v", coreerrors.ErrInvalidConfig, c.MinShare)
	}
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk size %d with overlap %d", coreerrors.ErrInvalidConfig, c.ChunkSize, c.ChunkOverlap)
	}
	return nil
}

// budgetFor 为一次组装创建预算。上限不超过预留时返回 nil，表示没有文档能放入。
func (c *Config) budgetFor(tokenLimit int) (*Budget, error) {
	if tokenLimit <= c.Overhead {
		return nil, nil
	}
	return NewBudget(tokenLimit, c.Overhead, c.GetTokenCounter())
}
