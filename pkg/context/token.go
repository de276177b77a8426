package context

import (
	"sort"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/rag"
)

// TokenCounter 统计文本的 token 数。
//
// 预算、策略和评估记录使用同一个计数器，保证组装时的预算判断
// 与结果文件中的 avg_tokens 口径一致。
type TokenCounter interface {
	Count(text string) int
}

// fallbackEncoding 未知模型使用的编码。
const fallbackEncoding = "cl100k_base"

// TiktokenCounter 按模型的 BPE 编码精确计数。
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenCounter 为 model 创建计数器，未知模型降级到 cl100k_base。
//
// 编码表首次使用时需要下载，离线环境下返回错误，调用方应改用 EstimatedCounter。
func NewTiktokenCounter(model string) (*TiktokenCounter, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, err
		}
	}
	return &TiktokenCounter{encoding: encoding}, nil
}

func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// Truncate 保留前 budget 个 token。
func (c *TiktokenCounter) Truncate(text string, budget int) string {
	if budget <= 0 {
		return ""
	}
	tokens := c.encoding.Encode(text, nil, nil)
	if len(tokens) <= budget {
		return text
	}
	return c.encoding.Decode(tokens[:budget])
}

// EstimatedCounter 按字符数估算，tiktoken 不可用时的降级方案。
type EstimatedCounter struct {
	// CharsPerToken 默认 4，英文文本的常见比例
	CharsPerToken float64
}

// NewEstimatedCounter 创建每 4 个字符计 1 个 token 的计数器。
func NewEstimatedCounter() *EstimatedCounter {
	return &EstimatedCounter{CharsPerToken: 4}
}

func (c *EstimatedCounter) Count(text string) int {
	perToken := c.CharsPerToken
	if perToken <= 0 {
		perToken = 4
	}
	return int(float64(len(text)) / perToken)
}

// DefaultTokenCounter 返回 gpt-4o-mini 的 tiktoken 计数器，不可用时返回估算计数器。
func DefaultTokenCounter() TokenCounter {
	if counter, err := NewTiktokenCounter("gpt-4o-mini"); err == nil {
		return counter
	}
	return NewEstimatedCounter()
}

// FitsInBudget 判断文本是否不超过 budget 个 token。
func FitsInBudget(counter TokenCounter, text string, budget int) bool {
	return counter.Count(text) <= budget
}

// TruncateToBudget 截断文本使其不超过 budget 个 token，保留开头部分。
//
// 计数器支持精确截断时按 token 截断，否则按词二分查找最长前缀。
func TruncateToBudget(counter TokenCounter, text string, budget int) string {
	if counter.Count(text) <= budget {
		return text
	}
	if budget <= 0 {
		return ""
	}
	if t, ok := counter.(interface {
		Truncate(text string, budget int) string
	}); ok {
		return t.Truncate(text, budget)
	}
	return truncateByWords(counter, text, budget)
}

// truncateByWords 二分查找不超过预算的最长词前缀。
func truncateByWords(counter TokenCounter, text string, budget int) string {
	words := strings.Fields(text)
	n := sort.Search(len(words)+1, func(i int) bool {
		return counter.Count(strings.Join(words[:i], " ")) > budget
	})
	// n 是第一个超出预算的前缀长度
	if n == 0 {
		return ""
	}
	return strings.Join(words[:n-1], " ")
}

// formattingOverheadPerDoc 每篇文档的标题与分隔符开销估计。
const formattingOverheadPerDoc = 10

// EstimateDocumentTokens 估算一组文档所需的 token 总数。
//
// 优先使用文档自带的 TokenCount，缺失时重新计数。
func EstimateDocumentTokens(counter TokenCounter, docs []rag.Document, includeFormatting bool) int {
	total := 0
	for _, doc := range docs {
		if doc.TokenCount > 0 {
			total += doc.TokenCount
		} else {
			total += counter.Count(doc.Content)
		}
		if includeFormatting {
			total += formattingOverheadPerDoc
		}
	}
	return total
}

var _ TokenCounter = (*TiktokenCounter)(nil)
var _ TokenCounter = (*EstimatedCounter)(nil)
