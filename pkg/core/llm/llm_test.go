package llm

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/config"
	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/errors"
)

func TestNewOpenAI_EmptyAPIKey(t *testing.T) {
	_, err := NewOpenAI()
	if !stderrors.Is(err, errors.ErrInvalidAPIKey) {
		t.Fatalf("expected ErrInvalidAPIKey, got %v", err)
	}
}

func TestNewOpenAI_Defaults(t *testing.T) {
	client, err := NewOpenAI(WithAPIKey("test-api-key"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if client.Model() != "gpt-4o-mini" {
		t.Errorf("expected default model 'gpt-4o-mini', got %s", client.Model())
	}
	if client.EmbeddingModel() != "text-embedding-3-small" {
		t.Errorf("unexpected embedding model %s", client.EmbeddingModel())
	}
	if client.Name() != "openai" {
		t.Errorf("expected name 'openai', got %s", client.Name())
	}
}

func newOpenAITestServer(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewOpenAI(
		WithAPIKey("test-api-key"),
		WithBaseURL(srv.URL+"/v1"),
		WithRetry(0, time.Millisecond),
	)
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestOpenAIClient_Generate(t *testing.T) {
	var got struct {
		Model       string  `json:"model"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	client := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","choices":[{"index":0,"message":{"role":"assistant","content":"  Paris  "},"finish_reason":"stop"}],"usage":{"prompt_tokens":12,"completion_tokens":2,"total_tokens":14}}`))
	})

	resp, err := client.Generate(context.Background(),
		NewRequest("Question: capital of France?", WithRequestMaxTokens(5), WithRequestTemperature(0.1)))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Content != "  Paris  " {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.TokenUsage.TotalTokens != 14 || resp.FinishReason != "stop" {
		t.Errorf("unexpected response metadata: %+v", resp)
	}
	if got.MaxTokens != 5 || got.Model != "gpt-4o-mini" {
		t.Errorf("request = %+v, want max_tokens 5 and default model", got)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestOpenAIClient_Embed(t *testing.T) {
	client := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}]}`))
	})

	vecs, err := client.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vecs) != 2 || vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("Embed() = %v, want vectors ordered by index", vecs)
	}
}

func TestOpenAIClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, errors.ErrInvalidAPIKey},
		{http.StatusTooManyRequests, errors.ErrRateLimited},
		{http.StatusServiceUnavailable, errors.ErrProviderUnavailable},
		{http.StatusGatewayTimeout, errors.ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			})
			_, err := client.Generate(context.Background(), NewRequest("hi"))
			if !stderrors.Is(err, tt.want) {
				t.Errorf("Generate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOpenAIClient_NoRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	client := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	})

	if _, err := client.Generate(context.Background(), NewRequest("hi")); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestRetry(t *testing.T) {
	attempts := 0
	policy := Options{MaxRetries: 2, RetryDelay: time.Millisecond}
	err := policy.retry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.ErrProviderUnavailable
		}
		return nil
	})
	if err != nil || attempts != 3 {
		t.Errorf("retry() = %v after %d attempts, want success after 3", err, attempts)
	}

	attempts = 0
	policy.MaxRetries = 5
	err = policy.retry(context.Background(), func() error {
		attempts++
		return errors.ErrInvalidAPIKey
	})
	if !stderrors.Is(err, errors.ErrInvalidAPIKey) || attempts != 1 {
		t.Errorf("non-retryable error retried %d times", attempts)
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1100 * time.Millisecond},
		{2, 4400 * time.Millisecond},
		{10, 30 * time.Second},
		{64, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := backoff(tt.attempt, time.Second); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetry_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Options{MaxRetries: 3}.retry(ctx, func() error {
		calls++
		return nil
	})
	if !stderrors.Is(err, errors.ErrContextCanceled) || calls != 0 {
		t.Errorf("retry() = %v after %d calls, want ErrContextCanceled before any call", err, calls)
	}
}

func TestOllamaClient_GenerateAndEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat":
			var req ollamaRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Options == nil || req.Options.NumPredict == nil || *req.Options.NumPredict != 256 {
				t.Errorf("num_predict not forwarded: %+v", req.Options)
			}
			_, _ = w.Write([]byte(`{"model":"llama3.2","message":{"role":"assistant","content":"42"},"done":true,"done_reason":"stop","prompt_eval_count":10,"eval_count":1}`))
		case "/api/embeddings":
			var req map[string]string
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req["model"] != "nomic-embed-text" {
				t.Errorf("embedding model = %q", req["model"])
			}
			_, _ = w.Write([]byte(`{"embedding":[0.5,0.5]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewOllamaClient(WithBaseURL(srv.URL+"/"), WithModels("", "nomic-embed-text"))

	resp, err := client.Generate(context.Background(), NewRequest("q", WithRequestMaxTokens(256)))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Content != "42" || resp.TokenUsage.TotalTokens != 11 {
		t.Errorf("Generate() = %+v", resp)
	}

	vecs, err := client.Embed(context.Background(), []string{"x", "y"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vecs) != 2 || len(vecs[1]) != 2 {
		t.Errorf("Embed() = %v", vecs)
	}
}

func TestOllamaClient_StatusMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewOllamaClient(WithBaseURL(srv.URL))
	_, err := client.Generate(context.Background(), NewRequest("q"))
	if !stderrors.Is(err, errors.ErrModelNotFound) {
		t.Errorf("Generate() error = %v, want ErrModelNotFound", err)
	}
	_, err = client.Embed(context.Background(), []string{"q"})
	if !stderrors.Is(err, errors.ErrEmbeddingFailed) || !stderrors.Is(err, errors.ErrModelNotFound) {
		t.Errorf("Embed() error = %v, want ErrEmbeddingFailed wrapping ErrModelNotFound", err)
	}
}

type countingProvider struct {
	calls int
}

func (p *countingProvider) Generate(ctx context.Context, req Request) (Response, error) {
	p.calls++
	return Response{Content: "ok"}, nil
}

func (p *countingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	p.calls++
	return make([][]float32, len(texts)), nil
}

func (p *countingProvider) Name() string  { return "counting" }
func (p *countingProvider) Model() string { return "test" }
func (p *countingProvider) Close() error  { return nil }

func TestRateLimitedProvider(t *testing.T) {
	inner := &countingProvider{}

	if p := NewRateLimitedProvider(inner, 0, 1); p != Provider(inner) {
		t.Error("rps 0 should return the provider unchanged")
	}

	p := NewRateLimitedProvider(inner, 1, 1)
	if _, err := p.Generate(context.Background(), NewRequest("a")); err != nil {
		t.Fatalf("first call should pass on burst: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Embed(ctx, []string{"a"})
	if !stderrors.Is(err, errors.ErrRateLimited) {
		t.Errorf("Embed() with cancelled context error = %v, want ErrRateLimited", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
	if p.Name() != "counting" || p.Model() != "test" {
		t.Error("RateLimitedProvider should delegate Name and Model")
	}
}

func TestFromConfig(t *testing.T) {
	_, err := FromConfig(config.LLMConfig{Provider: "bogus", Model: "m"})
	if !stderrors.Is(err, errors.ErrInvalidConfig) {
		t.Errorf("FromConfig(bogus) error = %v, want ErrInvalidConfig", err)
	}

	p, err := FromConfig(config.LLMConfig{Provider: config.ProviderOllama, Model: "llama3.2", RequestsPerSecond: 2})
	if err != nil {
		t.Fatalf("FromConfig(ollama) error = %v", err)
	}
	if _, ok := p.(*RateLimitedProvider); !ok {
		t.Errorf("FromConfig() = %T, want *RateLimitedProvider", p)
	}
	if p.Name() != "ollama" {
		t.Errorf("Name() = %q", p.Name())
	}

	_, err = FromConfig(config.LLMConfig{Provider: config.ProviderOpenAI, Model: "gpt-4o-mini"})
	if !stderrors.Is(err, errors.ErrInvalidAPIKey) {
		t.Errorf("FromConfig(openai without key) error = %v, want ErrInvalidAPIKey", err)
	}
}
