// Package config 提供配置加载和管理功能
//
// 配置来源按优先级从低到高依次为：内置默认值、配置文件（YAML/JSON）、
// 以 CTXLAB_ 为前缀的环境变量。环境变量中双下划线表示层级，
// 例如 CTXLAB_LLM__API_KEY 对应 llm.api_key。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "CTXLAB_"

// Config 全局配置结构
type Config struct {
	// LLM 生成服务配置
	LLM LLMConfig `koanf:"llm"`
	// Embedding 嵌入服务配置，未设置的字段继承 LLM
	Embedding LLMConfig `koanf:"embedding"`
	// Assembly 上下文组装配置
	Assembly AssemblyConfig `koanf:"assembly"`
	// Evaluation 评估配置
	Evaluation EvaluationConfig `koanf:"evaluation"`
	// Paths 输入输出文件路径
	Paths PathsConfig `koanf:"paths"`
	// Observability 可观测性配置
	Observability ObservabilityConfig `koanf:"observability"`
}

// PathsConfig 文件路径配置
type PathsConfig struct {
	// Documents 源文档文件
	Documents string `koanf:"documents"`
	// Questions 评估问题文件
	Questions string `koanf:"questions"`
	// Results 实验结果文件
	Results string `koanf:"results"`
	// Progress 验证报告文件
	Progress string `koanf:"progress"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	// Enabled 是否启用
	Enabled bool `koanf:"enabled"`
	// ServiceName 服务名称
	ServiceName string `koanf:"service_name"`
	// Tracing 追踪导出配置
	Tracing ExporterConfig `koanf:"tracing"`
	// Metrics 指标导出配置
	Metrics ExporterConfig `koanf:"metrics"`
	// MetricsTextfile Prometheus textfile 输出路径（为空则不输出）
	MetricsTextfile string `koanf:"metrics_textfile"`
	// LogLevel 日志级别 (debug, info, warn, error)
	LogLevel string `koanf:"log_level"`
	// LogFormat 日志格式 (text, json)
	LogFormat string `koanf:"log_format"`
}

// ExporterConfig 遥测导出配置
type ExporterConfig struct {
	// Enabled 是否启用
	Enabled bool `koanf:"enabled"`
	// Exporter 导出器类型 (otlp-grpc, otlp-http, stdout, none)
	Exporter string `koanf:"exporter"`
	// Endpoint OTLP 端点
	Endpoint string `koanf:"endpoint"`
	// Insecure 是否使用不安全连接
	Insecure bool `koanf:"insecure"`
	// SampleRate 采样率 [0, 1]，仅用于追踪
	SampleRate float64 `koanf:"sample_rate"`
	// Interval 导出间隔，仅用于指标
	Interval time.Duration `koanf:"interval"`
}

// Loader 配置加载器
type Loader struct {
	k *koanf.Koanf
}

// NewLoader 创建配置加载器
func NewLoader() *Loader {
	return &Loader{
		k: koanf.New("."),
	}
}

// LoadDefaults 加载内置默认值
func (l *Loader) LoadDefaults() error {
	return l.k.Load(confmap.Provider(defaultValues(), "."), nil)
}

// LoadFile 从文件加载配置
//
// 文件不存在时不报错，使用默认值；扩展名决定解析器。
func (l *Loader) LoadFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("%w: unsupported config file extension %q", ErrUnsupportedFormat, filepath.Ext(path))
	}

	if err := l.k.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("load config file %s: %w", path, err)
	}
	return nil
}

// LoadEnv 从环境变量加载配置
func (l *Loader) LoadEnv(prefix string) error {
	return l.k.Load(env.Provider(prefix, ".", func(s string) string {
		// 转换环境变量名: CTXLAB_LLM__API_KEY -> llm.api_key
		s = strings.TrimPrefix(s, prefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}), nil)
}

// Unmarshal 解析配置到结构体
func (l *Loader) Unmarshal(cfg *Config) error {
	return l.k.Unmarshal("", cfg)
}

// Get 获取配置值
func (l *Loader) Get(key string) interface{} {
	return l.k.Get(key)
}

// GetString 获取字符串配置值
func (l *Loader) GetString(key string) string {
	return l.k.String(key)
}

// GetInt 获取整数配置值
func (l *Loader) GetInt(key string) int {
	return l.k.Int(key)
}

// GetDuration 获取时间间隔配置值
func (l *Loader) GetDuration(key string) time.Duration {
	return l.k.Duration(key)
}

// Load 加载完整配置（默认值 + 文件 + 环境变量）
func Load(configPath string) (*Config, error) {
	loader := NewLoader()

	if err := loader.LoadDefaults(); err != nil {
		return nil, err
	}

	if configPath != "" {
		if err := loader.LoadFile(configPath); err != nil {
			return nil, err
		}
	}

	// 环境变量优先级更高
	if err := loader.LoadEnv(EnvPrefix); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := loader.Unmarshal(cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	return cfg, nil
}

// Default 返回仅包含默认值的配置
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate 验证完整配置
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.Assembly.Validate(); err != nil {
		return fmt.Errorf("assembly: %w", err)
	}
	if err := c.Evaluation.Validate(); err != nil {
		return fmt.Errorf("evaluation: %w", err)
	}
	if c.Observability.Tracing.SampleRate < 0 || c.Observability.Tracing.SampleRate > 1 {
		return ErrInvalidSampleRate
	}
	return nil
}

// EmbeddingLLM 返回嵌入服务配置，未设置的字段取自 LLM 配置
func (c *Config) EmbeddingLLM() LLMConfig {
	e := c.Embedding
	if e.Provider == "" {
		e.Provider = c.LLM.Provider
	}
	if e.APIKey == "" {
		e.APIKey = c.LLM.APIKey
	}
	if e.BaseURL == "" && e.Provider == c.LLM.Provider {
		e.BaseURL = c.LLM.BaseURL
	}
	if e.Model == "" {
		e.Model = c.LLM.Model
	}
	if e.EmbeddingModel == "" {
		e.EmbeddingModel = c.LLM.EmbeddingModel
	}
	if e.Timeout == 0 {
		e.Timeout = c.LLM.Timeout
	}
	if e.RequestsPerSecond == 0 {
		e.RequestsPerSecond = c.LLM.RequestsPerSecond
	}
	return e.WithDefaults()
}

// defaultValues 内置默认值（以 koanf 键表示）
func defaultValues() map[string]interface{} {
	return map[string]interface{}{
		"llm.provider":                      string(ProviderOpenAI),
		"llm.model":                         "gpt-4o-mini",
		"llm.embedding_model":               "text-embedding-3-small",
		"assembly.token_limit":              DefaultTokenLimit,
		"assembly.overhead":                 DefaultOverhead,
		"evaluation.scoring_method":         string(ScoringHybrid),
		"paths.documents":                   "data/source_documents.json",
		"paths.questions":                   "data/evaluation_questions.json",
		"paths.results":                     "progress/lesson_results.json",
		"paths.progress":                    "progress/lesson_progress.json",
		"observability.service_name":        "ctxlab",
		"observability.log_level":           "info",
		"observability.log_format":          "text",
		"observability.tracing.exporter":    "otlp-grpc",
		"observability.tracing.endpoint":    "localhost:4317",
		"observability.tracing.insecure":    true,
		"observability.tracing.sample_rate": 1.0,
		"observability.metrics.exporter":    "otlp-grpc",
		"observability.metrics.endpoint":    "localhost:4317",
		"observability.metrics.insecure":    true,
		"observability.metrics.interval":    "60s",
	}
}

// applyDefaults 应用默认配置值
func applyDefaults(cfg *Config) {
	cfg.LLM = cfg.LLM.WithDefaults()
	cfg.Assembly = cfg.Assembly.WithDefaults()
	cfg.Evaluation = cfg.Evaluation.WithDefaults()

	if cfg.Paths.Documents == "" {
		cfg.Paths.Documents = "data/source_documents.json"
	}
	if cfg.Paths.Questions == "" {
		cfg.Paths.Questions = "data/evaluation_questions.json"
	}
	if cfg.Paths.Results == "" {
		cfg.Paths.Results = "progress/lesson_results.json"
	}
	if cfg.Paths.Progress == "" {
		cfg.Paths.Progress = "progress/lesson_progress.json"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "ctxlab"
	}
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.LogFormat == "" {
		cfg.Observability.LogFormat = "text"
	}
	if cfg.Observability.Tracing.SampleRate == 0 {
		cfg.Observability.Tracing.SampleRate = 1.0
	}
	if cfg.Observability.Metrics.Interval == 0 {
		cfg.Observability.Metrics.Interval = 60 * time.Second
	}
}
