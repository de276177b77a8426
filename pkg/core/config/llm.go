package config

import (
	"errors"
	"time"
)

// Provider LLM 提供商类型
type Provider string

const (
	// ProviderOpenAI OpenAI 及兼容接口
	ProviderOpenAI Provider = "openai"
	// ProviderOllama 本地 Ollama
	ProviderOllama Provider = "ollama"
)

// IsValid 检查提供商是否受支持
func (p Provider) IsValid() bool {
	return p == ProviderOpenAI || p == ProviderOllama
}

// 请求参数上限，超出时在 WithDefaults 中截断
const (
	maxTimeout    = 5 * time.Minute
	maxRetryLimit = 10
)

// LLMConfig 生成或嵌入服务的连接配置
//
// 评估默认不重试：一道题的服务错误会让整次运行失败，
// 避免部分题目被悄悄重打分。需要时通过 max_retries 打开。
type LLMConfig struct {
	Provider       Provider `koanf:"provider"`
	Model          string   `koanf:"model"`
	EmbeddingModel string   `koanf:"embedding_model"`
	APIKey         string   `koanf:"api_key"`
	// BaseURL 自定义端点，OpenAI 兼容服务或远程 Ollama
	BaseURL string `koanf:"base_url"`

	// Timeout 单次请求超时，默认 30s，最大 5m
	Timeout    time.Duration `koanf:"timeout"`
	MaxRetries int           `koanf:"max_retries"`
	// RetryDelay 指数退避的基数，默认 1s
	RetryDelay time.Duration `koanf:"retry_delay"`

	// RequestsPerSecond 客户端限速，0 表示不限速
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
}

// Validate 报告配置中的所有问题
func (c LLMConfig) Validate() error {
	var errs []error
	if !c.Provider.IsValid() {
		errs = append(errs, ErrInvalidProvider)
	}
	if c.Model == "" {
		errs = append(errs, ErrModelRequired)
	}
	if c.Timeout < 0 || c.RetryDelay < 0 {
		errs = append(errs, ErrInvalidTimeout)
	}
	if c.MaxRetries < 0 {
		errs = append(errs, ErrInvalidMaxRetries)
	}
	if c.RequestsPerSecond < 0 || c.Burst < 0 {
		errs = append(errs, ErrInvalidRateLimit)
	}
	return errors.Join(errs...)
}

// WithDefaults 填充未设置的字段并截断超限的值
func (c LLMConfig) WithDefaults() LLMConfig {
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	c.Timeout = min(c.Timeout, maxTimeout)
	c.MaxRetries = min(c.MaxRetries, maxRetryLimit)
	if c.RetryDelay == 0 {
		c.RetryDelay = time.Second
	}
	if c.Burst == 0 {
		c.Burst = 1
	}
	return c
}
