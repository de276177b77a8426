package context

import (
	"fmt"

	coreerrors "github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/errors"
)

// DefaultOverhead 组装上下文时为查询、指令与回答预留的 token 数。
const DefaultOverhead = 50

// Budget 跟踪上下文组装过程中的 token 用量。
//
// 任何时刻都满足 used <= max - overhead。超限的添加被拒绝且不产生部分效果，
// 调用方通过 Add 的返回值或 CanAdd 判断是否继续。
// Budget 不是并发安全的，每次组装各自创建。
type Budget struct {
	max      int
	overhead int
	used     int
	counter  TokenCounter
}

// NewBudget 创建 token 预算。要求 max > 0 且 0 <= overhead < max。
func NewBudget(maxTokens, overhead int, counter TokenCounter) (*Budget, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("%w: max tokens must be positive, got %d", coreerrors.ErrInvalidBudget, maxTokens)
	}
	if overhead < 0 || overhead >= maxTokens {
		return nil, fmt.Errorf("%w: overhead must be in [0, %d), got %d", coreerrors.ErrInvalidBudget, maxTokens, overhead)
	}
	if counter == nil {
		counter = DefaultTokenCounter()
	}
	return &Budget{max: maxTokens, overhead: overhead, counter: counter}, nil
}

// CanAdd 判断再添加 n 个 token 是否仍在预算内。负数永远不能添加。
func (b *Budget) CanAdd(n int) bool {
	return n >= 0 && b.used+n <= b.Available()
}

// CanAddText 判断文本计数后是否仍在预算内。
func (b *Budget) CanAddText(text string) bool {
	return FitsInBudget(b.counter, text, b.Remaining())
}

// Add 在预算允许时记入 n 个 token，并返回是否成功。
func (b *Budget) Add(n int) bool {
	if !b.CanAdd(n) {
		return false
	}
	b.used += n
	return true
}

// AddText 计数并记入文本。
func (b *Budget) AddText(text string) bool {
	return b.Add(b.counter.Count(text))
}

// Available 返回扣除预留后可用于文档的 token 总数。
func (b *Budget) Available() int { return b.max - b.overhead }

// Remaining 返回剩余可用 token。
func (b *Budget) Remaining() int { return b.Available() - b.used }

// Used 返回已使用 token。
func (b *Budget) Used() int { return b.used }

// Max 返回预算上限。
func (b *Budget) Max() int { return b.max }

// Overhead 返回预留 token 数。
func (b *Budget) Overhead() int { return b.overhead }

// Utilization 返回已用占可用的比例，可用为 0 时返回 0。
func (b *Budget) Utilization() float64 {
	if b.Available() <= 0 {
		return 0
	}
	return float64(b.used) / float64(b.Available())
}

// Reset 清零已用 token。
func (b *Budget) Reset() { b.used = 0 }

// Counter 返回预算使用的计数器。
func (b *Budget) Counter() TokenCounter { return b.counter }

func (b *Budget) String() string {
	return fmt.Sprintf("Budget(max=%d, used=%d, remaining=%d, utilization=%.1f%%)",
		b.max, b.used, b.Remaining(), b.Utilization()*100)
}
