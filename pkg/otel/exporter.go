package otel

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ExporterType 导出器类型
type ExporterType string

const (
	ExporterNone     ExporterType = "none"
	ExporterStdout   ExporterType = "stdout"
	ExporterOTLPGRPC ExporterType = "otlp-grpc"
	ExporterOTLPHTTP ExporterType = "otlp-http"
)

// Export 一类遥测信号的导出目标
type Export struct {
	Exporter ExporterType
	// Endpoint OTLP 端点，如 localhost:4317
	Endpoint string
	Insecure bool
	Timeout  time.Duration
}

// Enabled 报告该信号是否需要导出
func (e Export) Enabled() bool {
	return e.Exporter != "" && e.Exporter != ExporterNone
}

func (e Export) timeout() time.Duration {
	if e.Timeout > 0 {
		return e.Timeout
	}
	return defaultExportTimeout
}

// NewSpanExporter 创建追踪导出器
//
// stdout 导出器写到 w 而不是标准输出，assemble 命令的标准输出只留给上下文本身。
func NewSpanExporter(ctx context.Context, e Export, w io.Writer) (sdktrace.SpanExporter, error) {
	switch e.Exporter {
	case ExporterStdout:
		return stdouttrace.New(stdouttrace.WithWriter(w))
	case ExporterOTLPGRPC:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(e.Endpoint),
			otlptracegrpc.WithTimeout(e.timeout()),
		}
		if e.Insecure {
			opts = append(opts,
				otlptracegrpc.WithInsecure(),
				otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			)
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	case ExporterOTLPHTTP:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(e.Endpoint),
			otlptracehttp.WithTimeout(e.timeout()),
			otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
		}
		if e.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	}
	return nil, fmt.Errorf("%w: no trace exporter %q", ErrInvalidConfig, e.Exporter)
}

// NewMetricExporter 创建指标导出器，stdout 同样写到 w
func NewMetricExporter(ctx context.Context, e Export, w io.Writer) (sdkmetric.Exporter, error) {
	switch e.Exporter {
	case ExporterStdout:
		return stdoutmetric.New(stdoutmetric.WithWriter(w))
	case ExporterOTLPGRPC:
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(e.Endpoint),
			otlpmetricgrpc.WithTimeout(e.timeout()),
		}
		if e.Insecure {
			opts = append(opts,
				otlpmetricgrpc.WithInsecure(),
				otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			)
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case ExporterOTLPHTTP:
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(e.Endpoint),
			otlpmetrichttp.WithTimeout(e.timeout()),
			otlpmetrichttp.WithCompression(otlpmetrichttp.GzipCompression),
		}
		if e.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)
	}
	return nil, fmt.Errorf("%w: no metric exporter %q", ErrInvalidConfig, e.Exporter)
}
