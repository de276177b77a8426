// Package errors 定义实验流水线的通用错误类型
//
// 错误分为三类：配置错误（启动即失败）、数据错误（输入文件缺失或格式错误）、
// 服务错误（生成或嵌入服务调用失败，原样向上传递）。
// 预算不足、评分解析失败、基线为零等属于软条件，不产生错误。
package errors

import (
	"errors"
	"fmt"
)

// 配置错误
var (
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrContextCanceled 上下文被取消
	ErrContextCanceled = errors.New("context canceled")
	// ErrInvalidBudget Token 预算参数无效
	ErrInvalidBudget = errors.New("invalid token budget")
	// ErrRankerRequired 策略缺少相关性排序器
	ErrRankerRequired = errors.New("ranker is required")
	// ErrEmbedderRequired 缺少嵌入服务
	ErrEmbedderRequired = errors.New("embedder is required")
	// ErrGeneratorRequired 缺少生成服务
	ErrGeneratorRequired = errors.New("generator is required")
	// ErrUnknownStrategy 未知的组装策略
	ErrUnknownStrategy = errors.New("unknown strategy")
	// ErrUnknownScoringMethod 未知的评分方法
	ErrUnknownScoringMethod = errors.New("unknown scoring method")
)

// 数据错误
var (
	// ErrInvalidDocumentFile 文档文件无效
	ErrInvalidDocumentFile = errors.New("invalid document file")
	// ErrInvalidQuestionFile 问题文件无效
	ErrInvalidQuestionFile = errors.New("invalid question file")
	// ErrResultsNotFound 结果文件不存在
	ErrResultsNotFound = errors.New("results file not found")
	// ErrMalformedResults 结果文件格式错误
	ErrMalformedResults = errors.New("malformed results file")
)

// 服务错误
var (
	// ErrRateLimited 请求被限速
	ErrRateLimited = errors.New("rate limited")
	// ErrTimeout 请求超时
	ErrTimeout = errors.New("request timeout")
	// ErrInvalidAPIKey API 密钥无效
	ErrInvalidAPIKey = errors.New("invalid API key")
	// ErrModelNotFound 模型未找到
	ErrModelNotFound = errors.New("model not found")
	// ErrProviderUnavailable 提供商不可用
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrInvalidResponse LLM 响应无效
	ErrInvalidResponse = errors.New("invalid LLM response")
	// ErrEmbeddingFailed 嵌入失败
	ErrEmbeddingFailed = errors.New("embedding failed")
)

// WrapError 包装错误并添加上下文信息
func WrapError(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// IsRetryable 判断错误是否可重试
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrProviderUnavailable)
}

// IsFatal 判断错误是否为致命错误（不可恢复）
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return IsConfigError(err) ||
		errors.Is(err, ErrInvalidAPIKey) ||
		errors.Is(err, ErrModelNotFound)
}

// IsConfigError 判断是否为配置错误
func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range []error{
		ErrInvalidConfig, ErrInvalidBudget, ErrRankerRequired, ErrEmbedderRequired,
		ErrGeneratorRequired, ErrUnknownStrategy, ErrUnknownScoringMethod,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsDataError 判断是否为输入数据错误
func IsDataError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrInvalidDocumentFile) ||
		errors.Is(err, ErrInvalidQuestionFile) ||
		errors.Is(err, ErrResultsNotFound) ||
		errors.Is(err, ErrMalformedResults)
}
