package otel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// Logger 定义日志接口
type Logger interface {
	// Debug 调试日志
	Debug(msg string, args ...any)
	// Info 信息日志
	Info(msg string, args ...any)
	// Warn 警告日志
	Warn(msg string, args ...any)
	// Error 错误日志
	Error(msg string, args ...any)
	// WithContext 返回带上下文的 Logger（用于关联 Trace ID）
	WithContext(ctx context.Context) Logger
	// WithFields 返回带额外字段的 Logger
	WithFields(fields map[string]any) Logger
}

// ParseLevel 解析日志级别
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, level)
	}
}

// NewSlogHandler 按日志配置创建 slog 处理器
//
// Format 为 json 时输出 JSON，否则输出 key=value 文本。
func NewSlogHandler(cfg LoggingConfig, w io.Writer) (slog.Handler, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	case "", "text":
		return slog.NewTextHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, cfg.Format)
	}
}

// SlogLogger 基于 *slog.Logger 的 Logger
type SlogLogger struct {
	logger         *slog.Logger
	includeTraceID bool
}

// NewSlogLogger 包装 logger，nil 时使用 slog.Default()
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger, includeTraceID: true}
}

// NewNoopLogger 返回丢弃所有输出的 Logger
func NewNoopLogger() *SlogLogger {
	return &SlogLogger{logger: slog.New(slog.DiscardHandler)}
}

func (l *SlogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *SlogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *SlogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *SlogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// WithContext 上下文中有有效 span 时附加 trace_id 和 span_id
func (l *SlogLogger) WithContext(ctx context.Context) Logger {
	if !l.includeTraceID || ctx == nil {
		return l
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	return l.with("trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
}

// WithFields 按键名排序附加字段，同样的字段总是以同样的顺序输出
func (l *SlogLogger) WithFields(fields map[string]any) Logger {
	args := make([]any, 0, len(fields)*2)
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		args = append(args, k, fields[k])
	}
	return l.with(args...)
}

func (l *SlogLogger) with(args ...any) *SlogLogger {
	return &SlogLogger{logger: l.logger.With(args...), includeTraceID: l.includeTraceID}
}

var _ Logger = (*SlogLogger)(nil)
