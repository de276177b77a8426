package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	ctxeng "github.com/JSON-Bjorn/context-engineering-lesson/pkg/context"
	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/config"
	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/llm"
	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/otel"
	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/rag"
)

const shutdownTimeout = 5 * time.Second

// app 单次命令执行的配置与可观测性组件
type app struct {
	cfg       *config.Config
	telemetry *otel.Provider
	logger    otel.Logger
}

// newApp 加载配置并初始化日志、追踪与指标
func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	telemetry, err := otel.NewProvider(cmd.Context(), telemetryConfig(cfg.Observability),
		otel.WithLogWriter(cmd.ErrOrStderr()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to init telemetry: %w", err)
	}

	return &app{
		cfg:       cfg,
		telemetry: telemetry,
		logger:    telemetry.Logger().WithFields(map[string]any{"command": cmd.Name()}),
	}, nil
}

// close 刷新并关闭遥测导出器
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown failed", "error", err)
	}
}

// telemetryConfig 将配置文件中的可观测性配置转换为 otel 配置
//
// observability.enabled 为 false 时只保留日志和 textfile 指标。
func telemetryConfig(obs config.ObservabilityConfig) otel.Config {
	export := func(e config.ExporterConfig) otel.Export {
		if !obs.Enabled || !e.Enabled {
			return otel.Export{Exporter: otel.ExporterNone}
		}
		return otel.Export{
			Exporter: otel.ExporterType(e.Exporter),
			Endpoint: e.Endpoint,
			Insecure: e.Insecure,
		}
	}
	return otel.Config{
		ServiceName:    obs.ServiceName,
		ServiceVersion: version,
		Traces:         export(obs.Tracing),
		SampleRate:     obs.Tracing.SampleRate,
		Metrics:        export(obs.Metrics),
		MetricInterval: obs.Metrics.Interval,
		Textfile:       obs.MetricsTextfile,
		Logging: otel.LoggingConfig{
			Level:          obs.LogLevel,
			Format:         obs.LogFormat,
			IncludeTraceID: true,
		},
	}
}

// provider 按配置创建带追踪的 LLM 提供商
func (a *app) provider(cfg config.LLMConfig) (llm.Provider, error) {
	p, err := llm.FromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", cfg.Provider, err)
	}
	return otel.NewTracedProvider(p,
		otel.WithTracedProviderTracer(a.telemetry.Tracer()),
		otel.WithTracedProviderMetrics(a.telemetry.Metrics()),
	), nil
}

// embedder 创建带缓存的嵌入服务；排序与语义评分共用同一缓存
func (a *app) embedder() (*rag.CachedEmbedder, llm.Provider, error) {
	p, err := a.provider(a.cfg.EmbeddingLLM())
	if err != nil {
		return nil, nil, err
	}
	return rag.NewCachedEmbedder(p), p, nil
}

// tokenCounter 使用生成模型的 tiktoken 编码，不可用时退化为估算
func (a *app) tokenCounter() ctxeng.TokenCounter {
	counter, err := ctxeng.NewTiktokenCounter(a.cfg.LLM.Model)
	if err != nil {
		a.logger.Warn("tiktoken encoding unavailable, estimating token counts", "error", err)
		return ctxeng.NewEstimatedCounter()
	}
	return counter
}

// strategies 按名称创建策略，names 为空时使用配置，配置也为空时创建全部
//
// generator 仅在开启 llm_summaries 时使用，可以为 nil。
func (a *app) strategies(names []string, embedder rag.Embedder, generator llm.Generator, counter ctxeng.TokenCounter) ([]ctxeng.Strategy, error) {
	ranker, err := ctxeng.NewRanker(embedder)
	if err != nil {
		return nil, err
	}

	asm := a.cfg.Assembly
	opts := []ctxeng.ConfigOption{
		ctxeng.WithOverhead(asm.Overhead),
		ctxeng.WithTokenCounter(counter),
		ctxeng.WithRanker(ranker),
		ctxeng.WithFullTextShare(asm.FullTextShare),
		ctxeng.WithMinShare(asm.MinShare),
		ctxeng.WithChunking(asm.ChunkSize, 0),
	}
	if asm.LLMSummaries && generator != nil {
		opts = append(opts, ctxeng.WithSummarizer(ctxeng.NewLLMSummarizer(generator, counter)))
	}

	if len(names) == 0 {
		names = asm.Strategies
	}
	return ctxeng.NewStrategies(names, opts...)
}

// loadCorpus 加载文档并记录字段缺失
func (a *app) loadCorpus(path string) ([]rag.Document, error) {
	docs, err := rag.LoadDocuments(path)
	if err != nil {
		return nil, err
	}
	if ok, problems := rag.ValidateDocuments(docs); !ok || len(problems) > 0 {
		for _, p := range problems {
			a.logger.Warn("document check", "problem", p)
		}
		if !ok {
			return nil, fmt.Errorf("%s: documents are missing required fields", path)
		}
	}
	return docs, nil
}

func closeProvider(a *app, p llm.Provider) {
	if err := p.Close(); err != nil {
		a.logger.Warn("provider close failed", "provider", p.Name(), "error", err)
	}
}
