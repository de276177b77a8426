package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/errors"
	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/message"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient OpenAI LLM 客户端
//
// 通过 BaseURL 也可以接入任意 OpenAI 兼容服务（vLLM、DeepSeek 等）。
type OpenAIClient struct {
	client  *openai.Client
	options Options
}

// NewOpenAI 创建 OpenAI 客户端
func NewOpenAI(opts ...Option) (*OpenAIClient, error) {
	options := newOptions(Options{
		Model:          "gpt-4o-mini",
		EmbeddingModel: "text-embedding-3-small",
	}, opts)
	if options.APIKey == "" {
		return nil, errors.ErrInvalidAPIKey
	}

	config := openai.DefaultConfig(options.APIKey)
	if options.BaseURL != "" {
		config.BaseURL = options.BaseURL
	}
	config.HTTPClient = options.HTTPClient

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(config),
		options: options,
	}, nil
}

// Name 返回提供商名称
func (c *OpenAIClient) Name() string {
	return "openai"
}

// Model 返回当前模型名称
func (c *OpenAIClient) Model() string {
	return c.options.Model
}

// EmbeddingModel 返回嵌入模型名称
func (c *OpenAIClient) EmbeddingModel() string {
	return c.options.EmbeddingModel
}

// Close 关闭客户端连接
func (c *OpenAIClient) Close() error {
	return nil
}

// Generate 生成响应
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (Response, error) {
	if err := message.Validate(req.Messages); err != nil {
		return Response{}, err
	}
	chatReq := c.buildChatRequest(req)

	var resp openai.ChatCompletionResponse
	err := c.options.retry(ctx, func() error {
		var callErr error
		resp, callErr = c.client.CreateChatCompletion(ctx, chatReq)
		return mapOpenAIError(callErr)
	})
	if err != nil {
		return Response{}, err
	}

	return parseOpenAIResponse(resp), nil
}

// buildChatRequest 构建 OpenAI 请求
func (c *OpenAIClient) buildChatRequest(req Request) openai.ChatCompletionRequest {
	chatReq := openai.ChatCompletionRequest{
		Model:    c.options.Model,
		Messages: convertMessagesToOpenAI(req.Messages),
	}

	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}
	if req.MaxTokens != nil {
		chatReq.MaxTokens = *req.MaxTokens
	}

	if req.TopP != nil {
		chatReq.TopP = float32(*req.TopP)
	}


	return chatReq
}

// Embed 生成文本嵌入向量
func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.options.EmbeddingModel),
	}

	var resp openai.EmbeddingResponse
	err := c.options.retry(ctx, func() error {
		var callErr error
		resp, callErr = c.client.CreateEmbeddings(ctx, req)
		return mapOpenAIError(callErr)
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs", errors.ErrEmbeddingFailed, len(resp.Data), len(texts))
	}

	result := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", errors.ErrEmbeddingFailed, data.Index)
		}
		result[data.Index] = data.Embedding
	}

	return result, nil
}

// mapOpenAIError 映射 OpenAI 错误到框架错误
func mapOpenAIError(err error) error {
	if err == nil {
		return nil
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", errors.ErrTimeout, err)
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case stderrors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case stderrors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return errors.WrapError(err, "openai request failed")
	}

	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", errors.ErrInvalidAPIKey, err)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %v", errors.ErrModelNotFound, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", errors.ErrRateLimited, err)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %v", errors.ErrTimeout, err)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %v", errors.ErrProviderUnavailable, err)
	default:
		return fmt.Errorf("openai error (code=%d): %w", status, err)
	}
}

// convertMessagesToOpenAI 转换消息格式到 OpenAI 格式
func convertMessagesToOpenAI(msgs []message.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, msg := range msgs {
		result = append(result, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return result
}

// parseOpenAIResponse 解析 OpenAI 响应
func parseOpenAIResponse(resp openai.ChatCompletionResponse) Response {
	result := Response{
		ID: resp.ID,
		TokenUsage: message.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	if len(resp.Choices) == 0 {
		return result
	}

	choice := resp.Choices[0]
	result.Content = choice.Message.Content
	result.FinishReason = string(choice.FinishReason)
	return result
}

// compile-time interface check
var _ Provider = (*OpenAIClient)(nil)
