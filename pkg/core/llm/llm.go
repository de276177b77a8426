// Package llm 提供文本生成与文本嵌入服务的统一接口
package llm

import (
	"context"

	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/message"
)

// Generator 文本生成服务，评估中用于回答问题、给答案打分和生成摘要
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// Embedder 文本嵌入服务
type Embedder interface {
	// Embed 生成文本嵌入向量
	//
	// 返回的向量与输入文本一一对应。
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Provider 定义 LLM 提供商接口
//
// 同一个提供商既负责回答生成与打分，也可以负责文本嵌入。
// 每次调用都是一次阻塞的往返请求。
type Provider interface {
	Generator
	Embedder

	// Name 返回提供商名称
	Name() string

	// Model 返回当前模型名称
	Model() string

	// Close 关闭客户端连接
	Close() error
}

// Request 一次生成请求
//
// 采样参数为 nil 时使用服务端默认值。
type Request struct {
	Messages    []message.Message
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

// NewRequest 由单条用户提示构建请求
func NewRequest(prompt string, opts ...RequestOption) Request {
	req := Request{
		Messages: []message.Message{message.User(prompt)},
	}
	for _, opt := range opts {
		opt(&req)
	}
	return req
}

// Response 生成结果
type Response struct {
	ID         string             `json:"id"`
	Content    string             `json:"content"`
	TokenUsage message.TokenUsage `json:"token_usage"`
	// FinishReason stop、length 或 content_filter，length 表示答案被 MaxTokens 截断
	FinishReason string `json:"finish_reason"`
}
