package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/llm"
)

// TracedProvider 为 LLM 提供商增加追踪与指标
type TracedProvider struct {
	provider llm.Provider
	tracer   *Tracer
	metrics  Metrics
}

// TracedProviderOption 配置 TracedProvider
type TracedProviderOption func(*TracedProvider)

// WithTracedProviderTracer 设置追踪器
func WithTracedProviderTracer(tracer *Tracer) TracedProviderOption {
	return func(p *TracedProvider) {
		p.tracer = tracer
	}
}

// WithTracedProviderMetrics 设置指标
func WithTracedProviderMetrics(metrics Metrics) TracedProviderOption {
	return func(p *TracedProvider) {
		p.metrics = metrics
	}
}

// NewTracedProvider 包装 LLM 提供商
func NewTracedProvider(provider llm.Provider, opts ...TracedProviderOption) *TracedProvider {
	tp := &TracedProvider{
		provider: provider,
		tracer:   NewNoopTracer(),
		metrics:  NewNoopMetrics(),
	}

	for _, opt := range opts {
		opt(tp)
	}

	return tp
}

// Generate 生成响应并记录 span 与 token 用量
func (p *TracedProvider) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	ctx, span := p.tracer.StartClient(ctx, "llm.generate",
		LLMProvider(p.provider.Name()),
		LLMModel(p.provider.Model()),
	)

	startTime := time.Now()
	resp, err := p.provider.Generate(ctx, req)
	p.record(ctx, "generate", err, time.Since(startTime))

	if err != nil {
		span.Finish(err)
		return resp, err
	}

	span.SetAttributes(LLMTokens(
		resp.TokenUsage.PromptTokens,
		resp.TokenUsage.CompletionTokens,
		resp.TokenUsage.TotalTokens,
	)...)
	span.AddEvent("llm.response",
		attribute.String("finish_reason", resp.FinishReason),
	)
	span.Finish(nil)

	p.metrics.Counter(MetricLLMTokensPrompt).Add(ctx, int64(resp.TokenUsage.PromptTokens), p.modelAttrs()...)
	p.metrics.Counter(MetricLLMTokensCompletion).Add(ctx, int64(resp.TokenUsage.CompletionTokens), p.modelAttrs()...)

	return resp, nil
}

// Embed 生成嵌入向量并记录 span
func (p *TracedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := p.tracer.StartClient(ctx, "llm.embed",
		LLMProvider(p.provider.Name()),
		LLMModel(p.provider.Model()),
		attribute.Int("input_count", len(texts)),
	)

	startTime := time.Now()
	result, err := p.provider.Embed(ctx, texts)
	p.record(ctx, "embed", err, time.Since(startTime))

	if err == nil {
		span.SetAttributes(attribute.Int("output_count", len(result)))
	}
	span.Finish(err)
	return result, err
}

// Name 返回提供商名称
func (p *TracedProvider) Name() string {
	return p.provider.Name()
}

// Model 返回模型名称
func (p *TracedProvider) Model() string {
	return p.provider.Model()
}

// Close 关闭底层提供商
func (p *TracedProvider) Close() error {
	return p.provider.Close()
}

func (p *TracedProvider) modelAttrs() []Attr {
	return []Attr{
		NewAttr("provider", p.provider.Name()),
		NewAttr("model", p.provider.Model()),
	}
}

// record 记录一次调用的次数、耗时和错误
func (p *TracedProvider) record(ctx context.Context, operation string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
		p.metrics.Counter(MetricLLMErrors).Add(ctx, 1,
			NewAttr("provider", p.provider.Name()),
			NewAttr("operation", operation),
		)
	}
	p.metrics.Counter(MetricLLMRequests).Add(ctx, 1,
		NewAttr("provider", p.provider.Name()),
		NewAttr("operation", operation),
		NewAttr("status", status),
	)
	p.metrics.Histogram(MetricLLMRequestDuration).Record(ctx, float64(duration.Milliseconds()),
		NewAttr("provider", p.provider.Name()),
		NewAttr("operation", operation),
	)
}

// RunTracer 评估运行的追踪辅助
//
// 一次运行对应一个根 span，每个策略一个子 span，每道题记录一个事件。
type RunTracer struct {
	tracer  *Tracer
	metrics Metrics
}

// NewRunTracer 创建评估运行追踪器
func NewRunTracer(tracer *Tracer, metrics Metrics) *RunTracer {
	if metrics == nil {
		metrics = NewNoopMetrics()
	}
	return &RunTracer{
		tracer:  tracer,
		metrics: metrics,
	}
}

// StartRun 开始评估运行 span
func (rt *RunTracer) StartRun(ctx context.Context, runID string, tokenLimit int, method string) (context.Context, *Span) {
	rt.metrics.Counter(MetricEvalRuns).Add(ctx, 1, NewAttr("scoring_method", method))
	return rt.tracer.Start(ctx, "eval.run",
		RunID(runID),
		attribute.Int(AttrTokenLimit, tokenLimit),
		ScoringMethod(method),
	)
}

// StartStrategy 开始单个策略的 span
func (rt *RunTracer) StartStrategy(ctx context.Context, strategy string) (context.Context, *Span) {
	return rt.tracer.Start(ctx, "eval.strategy", Strategy(strategy))
}

// RecordContext 记录一次上下文组装的 token 数
func (rt *RunTracer) RecordContext(ctx context.Context, strategy string, tokens int) {
	rt.metrics.Histogram(MetricContextTokens).Record(ctx, float64(tokens), NewAttr("strategy", strategy))
}

// RecordQuestion 记录单道题的评分
func (rt *RunTracer) RecordQuestion(ctx context.Context, strategy, questionID string, tokens int, score float64) {
	SpanFromContext(ctx).AddEvent("eval.question",
		QuestionID(questionID),
		ContextTokens(tokens),
		attribute.Float64(AttrScore, score),
	)
	rt.metrics.Counter(MetricEvalQuestions).Add(ctx, 1, NewAttr("strategy", strategy))
	rt.metrics.Histogram(MetricEvalScore).Record(ctx, score, NewAttr("strategy", strategy))
}

// FinishStrategy 记录策略汇总结果并结束 span
func (rt *RunTracer) FinishStrategy(ctx context.Context, span *Span, strategy string, accuracy, avgTokens float64, err error) {
	if err != nil {
		rt.metrics.Counter(MetricEvalErrors).Add(ctx, 1, NewAttr("strategy", strategy))
	} else {
		rt.metrics.Gauge(MetricStrategyAccuracy).Set(ctx, accuracy, NewAttr("strategy", strategy))
		rt.metrics.Gauge(MetricStrategyAvgTokens).Set(ctx, avgTokens, NewAttr("strategy", strategy))
		span.SetAttributes(
			attribute.Float64("accuracy", accuracy),
			attribute.Float64("avg_tokens", avgTokens),
		)
	}
	span.Finish(err)
}

// FinishRun 结束评估运行 span
func (rt *RunTracer) FinishRun(ctx context.Context, span *Span, err error, duration time.Duration) {
	rt.metrics.Histogram(MetricEvalRunDuration).Record(ctx, float64(duration.Milliseconds()))
	span.SetAttributes(attribute.Int64("duration_ms", duration.Milliseconds()))
	span.Finish(err)
}

// compile-time interface check
var _ llm.Provider = (*TracedProvider)(nil)
