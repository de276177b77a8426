package llm

import (
	"context"
	"fmt"

	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/errors"
	"golang.org/x/time/rate"
)

// RateLimitedProvider 为提供商增加客户端限速
//
// 评估会对每个问题、每种策略顺序发起多次调用，限速可以避免触发服务端 429。
// 等待令牌时遵守 ctx 的取消与超时。
type RateLimitedProvider struct {
	provider Provider
	limiter  *rate.Limiter
}

// NewRateLimitedProvider 创建限速提供商
//
// rps <= 0 时直接返回原提供商。
func NewRateLimitedProvider(provider Provider, rps float64, burst int) Provider {
	if rps <= 0 {
		return provider
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedProvider{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Generate 等待令牌后生成响应
func (p *RateLimitedProvider) Generate(ctx context.Context, req Request) (Response, error) {
	if err := p.wait(ctx); err != nil {
		return Response{}, err
	}
	return p.provider.Generate(ctx, req)
}

// Embed 等待令牌后生成嵌入
func (p *RateLimitedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.provider.Embed(ctx, texts)
}

func (p *RateLimitedProvider) wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrRateLimited, err)
	}
	return nil
}

// Name 返回提供商名称
func (p *RateLimitedProvider) Name() string {
	return p.provider.Name()
}

// Model 返回模型名称
func (p *RateLimitedProvider) Model() string {
	return p.provider.Model()
}

// Close 关闭底层提供商
func (p *RateLimitedProvider) Close() error {
	return p.provider.Close()
}

// compile-time interface check
var _ Provider = (*RateLimitedProvider)(nil)
