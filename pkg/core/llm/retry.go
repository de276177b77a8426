package llm

import (
	"context"
	"time"

	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/errors"
)

// maxBackoff 单次退避上限
const maxBackoff = 30 * time.Second

// retry 按选项中的重试策略执行 fn
//
// MaxRetries 为 0 时只执行一次。只有 IsRetryable 的错误会重试，
// 其余错误原样返回，调用方可以用 errors.Is 判断类别。
func (o Options) retry(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return errors.WrapError(errors.ErrContextCanceled, ctx.Err().Error())
		}

		err := fn()
		if err == nil || attempt >= o.MaxRetries || !errors.IsRetryable(err) {
			return err
		}

		timer := time.NewTimer(backoff(attempt, o.RetryDelay))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.WrapError(errors.ErrContextCanceled, ctx.Err().Error())
		case <-timer.C:
		}
	}
}

// backoff 第 attempt 次重试前的等待：base * 2^attempt 再加 10%，不超过 maxBackoff
func backoff(attempt int, base time.Duration) time.Duration {
	if attempt > 16 {
		return maxBackoff
	}
	delay := base << attempt
	delay += delay / 10
	return min(delay, maxBackoff)
}
