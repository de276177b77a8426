// Package otel 提供评估流水线的可观测性支持
//
// 包括基于 log/slog 的结构化日志、OpenTelemetry 追踪与指标，
// 以及供一次性命令行运行使用的 Prometheus textfile 指标输出。
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/errors"
)

// Tracer 包装 trace.Tracer
//
// 流水线中的 span 只有两类：对外部模型服务的调用（client）和
// 评估、校验本身的阶段（internal）。nil 的 *Tracer 等价于空实现。
type Tracer struct {
	tracer  trace.Tracer
	enabled bool
}

// NewTracer 创建追踪器
func NewTracer(tracer trace.Tracer) *Tracer {
	return &Tracer{tracer: tracer, enabled: true}
}

// NewNoopTracer 创建不记录任何 span 的追踪器
func NewNoopTracer() *Tracer {
	return &Tracer{tracer: noop.NewTracerProvider().Tracer("ctxlab")}
}

// Start 开始一个内部阶段的 span
func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *Span) {
	return t.start(ctx, name, trace.SpanKindInternal, attrs)
}

// StartClient 开始一个外部调用的 span
func (t *Tracer) StartClient(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *Span) {
	return t.start(ctx, name, trace.SpanKindClient, attrs)
}

// Enabled 报告 span 是否会被导出
func (t *Tracer) Enabled() bool {
	return t != nil && t.enabled
}

func (t *Tracer) start(ctx context.Context, name string, kind trace.SpanKind, attrs []attribute.KeyValue) (context.Context, *Span) {
	if t == nil {
		return ctx, &Span{span: trace.SpanFromContext(context.Background())}
	}
	ctx, span := t.tracer.Start(ctx, name,
		trace.WithSpanKind(kind),
		trace.WithAttributes(attrs...),
	)
	return ctx, &Span{span: span}
}

// Span 单个阶段
type Span struct {
	span trace.Span
}

// SpanFromContext 返回上下文中的当前 span，没有时返回空实现
func SpanFromContext(ctx context.Context) *Span {
	return &Span{span: trace.SpanFromContext(ctx)}
}

// SetAttributes 设置属性
func (s *Span) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

// AddEvent 添加事件
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Finish 按 err 设置状态并结束 span
//
// 失败时同时记录错误分类与是否可重试。
func (s *Span) Finish(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetAttributes(ErrorAttrs(errorType(err), err.Error(), errors.IsRetryable(err))...)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}

// TraceID 返回 trace ID，空实现返回空串
func (s *Span) TraceID() string {
	sc := s.span.SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

func errorType(err error) string {
	switch {
	case errors.IsConfigError(err):
		return "config"
	case errors.IsDataError(err):
		return "data"
	default:
		return "service"
	}
}
