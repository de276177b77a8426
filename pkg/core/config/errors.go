package config

import (
	"errors"

	coreerrors "github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/errors"
)

// 配置验证相关错误，均可通过 errors.Is 匹配 ErrInvalidConfig
var (
	// ErrModelRequired 模型名称必填
	ErrModelRequired = invalid("model name is required")
	// ErrInvalidProvider 提供商无效
	ErrInvalidProvider = invalid("unsupported provider")
	// ErrInvalidTimeout 超时时间无效
	ErrInvalidTimeout = invalid("invalid timeout value")
	// ErrInvalidMaxRetries 重试次数无效
	ErrInvalidMaxRetries = invalid("invalid max retries value")
	// ErrInvalidRateLimit 限速参数无效
	ErrInvalidRateLimit = invalid("requests per second must not be negative")
	// ErrInvalidTemperature 温度值无效
	ErrInvalidTemperature = invalid("temperature must be between 0 and 2")
	// ErrInvalidMaxTokens Token 数无效
	ErrInvalidMaxTokens = invalid("max tokens must be positive")
	// ErrInvalidAssembly 组装参数无效
	ErrInvalidAssembly = invalid("invalid assembly settings")
	// ErrInvalidScoringMethod 评分方法无效
	ErrInvalidScoringMethod = invalid("invalid scoring method")
	// ErrInvalidSampleRate 采样率无效
	ErrInvalidSampleRate = invalid("sample rate must be between 0 and 1")
	// ErrUnsupportedFormat 配置文件格式不支持
	ErrUnsupportedFormat = invalid("unsupported config format")
)

// configError 包装具体原因，同时归类为配置错误
type configError struct {
	msg string
}

func (e *configError) Error() string { return e.msg }

func (e *configError) Unwrap() error { return coreerrors.ErrInvalidConfig }

func invalid(msg string) error {
	return &configError{msg: msg}
}

// IsConfigError 判断是否为配置错误
func IsConfigError(err error) bool {
	return errors.Is(err, coreerrors.ErrInvalidConfig)
}
