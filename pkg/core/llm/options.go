package llm

import (
	"net/http"
	"strings"
	"time"
)

// Options 客户端选项，OpenAI 与 Ollama 客户端共用
//
// 采样参数不在这里设置：回答生成与打分对温度、长度的要求不同，
// 由每个 Request 自带。
type Options struct {
	APIKey string
	// BaseURL 为空时使用客户端默认端点
	BaseURL string
	Model   string
	// EmbeddingModel 为空时使用客户端默认嵌入模型
	EmbeddingModel string
	// Timeout 单次 HTTP 请求超时，0 表示不限
	Timeout time.Duration
	// MaxRetries 可重试错误的重试次数，0 表示失败立即返回
	MaxRetries int
	RetryDelay time.Duration
	HTTPClient *http.Client
}

// Option 客户端选项函数
type Option func(*Options)

// WithAPIKey 设置 API 密钥
func WithAPIKey(key string) Option {
	return func(o *Options) {
		o.APIKey = key
	}
}

// WithBaseURL 设置服务端点，空字符串保留默认值
func WithBaseURL(url string) Option {
	return func(o *Options) {
		if url != "" {
			o.BaseURL = url
		}
	}
}

// WithModels 设置生成模型与嵌入模型，空字符串保留默认值
func WithModels(model, embeddingModel string) Option {
	return func(o *Options) {
		if model != "" {
			o.Model = model
		}
		if embeddingModel != "" {
			o.EmbeddingModel = embeddingModel
		}
	}
}

// WithTimeout 设置请求超时
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithRetry 设置重试次数与退避基数
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(o *Options) {
		o.MaxRetries = maxRetries
		o.RetryDelay = delay
	}
}

// WithHTTPClient 设置 HTTP 客户端，设置后忽略 Timeout
func WithHTTPClient(client *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = client
	}
}

// newOptions 在客户端默认值上应用选项
func newOptions(defaults Options, opts []Option) Options {
	o := defaults
	for _, opt := range opts {
		opt(&o)
	}
	o.BaseURL = strings.TrimSuffix(o.BaseURL, "/")
	if o.RetryDelay <= 0 {
		o.RetryDelay = time.Second
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.Timeout}
	}
	return o
}

// RequestOption 请求选项函数
type RequestOption func(*Request)

// WithRequestTemperature 设置请求温度
func WithRequestTemperature(t float64) RequestOption {
	return func(r *Request) {
		r.Temperature = &t
	}
}

// WithRequestMaxTokens 设置请求最大 token
func WithRequestMaxTokens(n int) RequestOption {
	return func(r *Request) {
		r.MaxTokens = &n
	}
}

// WithRequestTopP 设置核采样参数
func WithRequestTopP(p float64) RequestOption {
	return func(r *Request) {
		r.TopP = &p
	}
}
