package otel

import (
	"errors"
	"fmt"
	"time"

	coreerrors "github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/errors"
)

var (
	// ErrInvalidConfig 可观测性配置无效，可用 errors.Is 匹配核心包的 ErrInvalidConfig
	ErrInvalidConfig = fmt.Errorf("observability: %w", coreerrors.ErrInvalidConfig)
	// ErrExportFailed 遥测数据写出失败
	ErrExportFailed = errors.New("failed to export telemetry data")
)

const (
	defaultServiceName    = "ctxlab"
	defaultMetricInterval = time.Minute
	defaultExportTimeout  = 10 * time.Second
)

// Config 可观测性配置
//
// 日志始终开启。追踪和 OTel 指标各自由 Export 决定是否导出，
// Textfile 非空时额外在关闭时写出 Prometheus 指标。
type Config struct {
	ServiceName    string
	ServiceVersion string

	Traces Export
	// SampleRate 追踪采样率 [0, 1]，0 视为未设置
	SampleRate float64

	Metrics        Export
	MetricInterval time.Duration
	Textfile       string

	Logging LoggingConfig
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	// Level debug, info, warn 或 error
	Level string
	// Format text 或 json
	Format string
	// IncludeTraceID 在带 span 的上下文中输出 trace_id 和 span_id
	IncludeTraceID bool
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("%w: sample rate %v outside [0, 1]", ErrInvalidConfig, c.SampleRate)
	}
	for _, e := range []Export{c.Traces, c.Metrics} {
		switch e.Exporter {
		case "", ExporterNone, ExporterStdout, ExporterOTLPGRPC, ExporterOTLPHTTP:
		default:
			return fmt.Errorf("%w: unknown exporter %q", ErrInvalidConfig, e.Exporter)
		}
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "", "text", "json":
		return nil
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Logging.Format)
	}
}

func (c Config) withDefaults() Config {
	if c.ServiceName == "" {
		c.ServiceName = defaultServiceName
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1
	}
	if c.MetricInterval <= 0 {
		c.MetricInterval = defaultMetricInterval
	}
	return c
}
