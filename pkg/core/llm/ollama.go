package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/errors"
	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/message"
)

// OllamaClient Ollama 客户端
//
// 本地模型首次加载较慢，默认超时为 5 分钟；未指定嵌入模型时使用生成模型。
type OllamaClient struct {
	options Options
}

// NewOllamaClient 创建 Ollama 客户端
func NewOllamaClient(opts ...Option) *OllamaClient {
	options := newOptions(Options{
		BaseURL: "http://localhost:11434",
		Model:   "llama3.2",
		Timeout: 5 * time.Minute,
	}, opts)
	if options.EmbeddingModel == "" {
		options.EmbeddingModel = options.Model
	}
	return &OllamaClient{options: options}
}

// ollamaRequest Ollama 请求结构
type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

// ollamaMessage Ollama 消息
type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaOptions Ollama 选项
type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
}

// ollamaResponse Ollama 响应
type ollamaResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	DoneReason      string        `json:"done_reason"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

// Generate 生成响应
func (c *OllamaClient) Generate(ctx context.Context, req Request) (Response, error) {
	if err := message.Validate(req.Messages); err != nil {
		return Response{}, err
	}
	var ollamaResp ollamaResponse
	err := c.options.retry(ctx, func() error {
		return c.postJSON(ctx, "/api/chat", c.buildRequest(req), &ollamaResp)
	})
	if err != nil {
		return Response{}, err
	}

	return c.convertResponse(ollamaResp), nil
}

// Embed 生成文本嵌入向量
func (c *OllamaClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))

	for i, text := range texts {
		reqBody := map[string]string{
			"model":  c.options.EmbeddingModel,
			"prompt": text,
		}

		var embedResp struct {
			Embedding []float32 `json:"embedding"`
		}
		err := c.options.retry(ctx, func() error {
			return c.postJSON(ctx, "/api/embeddings", reqBody, &embedResp)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errors.ErrEmbeddingFailed, err)
		}

		results[i] = embedResp.Embedding
	}

	return results, nil
}

// Name 返回提供商名称
func (c *OllamaClient) Name() string {
	return "ollama"
}

// Model 返回当前模型名称
func (c *OllamaClient) Model() string {
	return c.options.Model
}

// Close 关闭客户端连接
func (c *OllamaClient) Close() error {
	return nil
}

// postJSON 发送 JSON 请求并解析响应
func (c *OllamaClient) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.options.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.options.HTTPClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", errors.ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", errors.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return mapOllamaStatus(resp.StatusCode, fmt.Sprintf("ollama error: %s - %s", resp.Status, string(bodyBytes)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", errors.ErrInvalidResponse, err)
	}
	return nil
}

// mapOllamaStatus 映射 HTTP 状态码到框架错误
func mapOllamaStatus(status int, detail string) error {
	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", errors.ErrModelNotFound, detail)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", errors.ErrRateLimited, detail)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", errors.ErrTimeout, detail)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", errors.ErrProviderUnavailable, detail)
	default:
		return fmt.Errorf("%s", detail)
	}
}

// buildRequest 构建 Ollama 请求
func (c *OllamaClient) buildRequest(req Request) ollamaRequest {
	ollamaReq := ollamaRequest{
		Model:    c.options.Model,
		Messages: make([]ollamaMessage, len(req.Messages)),
	}

	for i, msg := range req.Messages {
		ollamaReq.Messages[i] = ollamaMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	if req.Temperature != nil || req.MaxTokens != nil || req.TopP != nil {
		ollamaReq.Options = &ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
			TopP:        req.TopP,
		}
	}

	return ollamaReq
}

// convertResponse 转换 Ollama 响应
func (c *OllamaClient) convertResponse(resp ollamaResponse) Response {
	return Response{
		Content:      resp.Message.Content,
		TokenUsage:   message.NewTokenUsage(resp.PromptEvalCount, resp.EvalCount),
		FinishReason: c.mapFinishReason(resp.DoneReason),
	}
}

// mapFinishReason 映射结束原因
func (c *OllamaClient) mapFinishReason(reason string) string {
	switch reason {
	case "length":
		return "length"
	default:
		return "stop"
	}
}

// compile-time interface check
var _ Provider = (*OllamaClient)(nil)
