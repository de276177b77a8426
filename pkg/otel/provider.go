package otel

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// Provider 可观测性提供者
//
// 管理追踪、指标和日志的生命周期。
type Provider struct {
	config     Config
	tracer     *Tracer
	metrics    Metrics
	prometheus *PrometheusMetrics
	logger     Logger
	logWriter  io.Writer
	shutdown   []func(context.Context) error
	mu         sync.RWMutex
}

// ProviderOption 提供者选项
type ProviderOption func(*Provider)

// WithLogWriter 设置日志输出，默认 os.Stderr
func WithLogWriter(w io.Writer) ProviderOption {
	return func(p *Provider) {
		p.logWriter = w
	}
}

// NewProvider 创建可观测性提供者
//
// 日志始终按 Logging 配置输出。未配置导出的信号使用空实现，
// 配置了 Textfile 时无论 OTel 指标是否导出都会收集 Prometheus 指标。
func NewProvider(ctx context.Context, cfg Config, opts ...ProviderOption) (*Provider, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		config:    cfg,
		tracer:    NewNoopTracer(),
		logWriter: os.Stderr,
		shutdown:  make([]func(context.Context) error, 0),
	}
	for _, opt := range opts {
		opt(p)
	}

	if err := p.initLogging(); err != nil {
		return nil, err
	}

	var backends MultiMetrics
	if cfg.Textfile != "" {
		p.prometheus = NewPrometheusMetrics(cfg.ServiceName)
		backends = append(backends, p.prometheus)
	}

	if cfg.Traces.Enabled() || cfg.Metrics.Enabled() {
		res, err := p.resource(ctx)
		if err != nil {
			return nil, err
		}
		if cfg.Traces.Enabled() {
			if err := p.initTracing(ctx, res); err != nil {
				return nil, err
			}
		}
		if cfg.Metrics.Enabled() {
			m, err := p.initMetrics(ctx, res)
			if err != nil {
				return nil, err
			}
			backends = append(backends, m)
		}
	}

	switch len(backends) {
	case 0:
		p.metrics = NewNoopMetrics()
	case 1:
		p.metrics = backends[0]
	default:
		p.metrics = backends
	}

	return p, nil
}

// initLogging 初始化日志
func (p *Provider) initLogging() error {
	handler, err := NewSlogHandler(p.config.Logging, p.logWriter)
	if err != nil {
		return err
	}
	logger := NewSlogLogger(slog.New(handler))
	logger.includeTraceID = p.config.Logging.IncludeTraceID
	p.logger = logger
	return nil
}

// resource 创建服务资源描述
func (p *Provider) resource(ctx context.Context) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(p.config.ServiceName),
			semconv.ServiceVersionKey.String(p.config.ServiceVersion),
		),
	)
}

// initTracing 初始化追踪
func (p *Provider) initTracing(ctx context.Context, res *resource.Resource) error {
	exporter, err := NewSpanExporter(ctx, p.config.Traces, p.logWriter)
	if err != nil {
		return err
	}

	// 按运行采样：子 span 跟随 eval.run 或 verify.run 根 span 的决定
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(p.config.SampleRate))),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	p.shutdown = append(p.shutdown, tp.Shutdown)
	p.tracer = NewTracer(tp.Tracer(p.config.ServiceName))
	return nil
}

// initMetrics 初始化 OTel 指标
func (p *Provider) initMetrics(ctx context.Context, res *resource.Resource) (Metrics, error) {
	exporter, err := NewMetricExporter(ctx, p.config.Metrics, p.logWriter)
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(p.config.MetricInterval),
		)),
	)
	otel.SetMeterProvider(mp)

	p.shutdown = append(p.shutdown, mp.Shutdown)
	return NewOTelMetrics(mp.Meter(p.config.ServiceName)), nil
}

// Tracer 返回追踪器
func (p *Provider) Tracer() *Tracer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tracer
}

// Metrics 返回指标收集器
func (p *Provider) Metrics() Metrics {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.metrics
}

// Logger 返回日志器
func (p *Provider) Logger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.logger
}

// Shutdown 写出 textfile 并关闭导出器
func (p *Provider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var lastErr error
	if p.prometheus != nil {
		if err := p.prometheus.WriteTextfile(p.config.Textfile); err != nil {
			lastErr = err
		}
	}
	for _, fn := range p.shutdown {
		if err := fn(ctx); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
