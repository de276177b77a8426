package llm

import (
	"fmt"

	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/config"
)

// FromConfig 从配置创建 LLM Provider
//
// 配置了 requests_per_second 时返回的提供商带有客户端限速。
func FromConfig(cfg config.LLMConfig) (Provider, error) {
	cfg = cfg.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	provider, err := createProviderFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	return NewRateLimitedProvider(provider, cfg.RequestsPerSecond, cfg.Burst), nil
}

// createProviderFromConfig 根据配置创建特定提供商
func createProviderFromConfig(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAI(optionsFromConfig(cfg)...)
	case config.ProviderOllama:
		return NewOllamaClient(optionsFromConfig(cfg)...), nil
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrInvalidProvider, cfg.Provider)
	}
}

// optionsFromConfig 将配置转换为客户端选项，未设置的字段保留客户端默认值
func optionsFromConfig(cfg config.LLMConfig) []Option {
	opts := []Option{
		WithAPIKey(cfg.APIKey),
		WithBaseURL(cfg.BaseURL),
		WithModels(cfg.Model, cfg.EmbeddingModel),
		WithRetry(cfg.MaxRetries, cfg.RetryDelay),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, WithTimeout(cfg.Timeout))
	}
	return opts
}
