// Package evaluation 提供回答生成、评分、指标汇总与评估运行
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/config"
	coreerrors "github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/errors"
	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/llm"
	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/otel"
	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/rag"
)

// ScoringMethod 评分方法
type ScoringMethod = config.ScoringMethod

// 评分方法
const (
	ScoringSemantic = config.ScoringSemantic
	ScoringLLMJudge = config.ScoringLLMJudge
	ScoringHybrid   = config.ScoringHybrid
)

// NeutralScore 无法得出评分时的默认值
const NeutralScore = 0.5

const answerPromptTemplate = `Based on the following context, answer the question concisely and accurately.

Context:
%s

Question: %s

Answer:`

const judgePromptTemplate = `You are an expert evaluator. Compare the following two answers and rate how similar they are in meaning.

Reference Answer: %s

Generated Answer: %s

Rate the similarity on a scale from 0 to 10, where:
- 0 = Completely different or wrong
- 5 = Partially correct, captures some key points
- 10 = Essentially the same meaning, fully correct

Provide ONLY a single number from 0-10 as your response.

Rating:`

var ratingPattern = regexp.MustCompile(`\d+`)

// Options 评估器选项
type Options struct {
	// Temperature 回答生成温度
	Temperature float64
	// TopP 核采样参数
	TopP float64
	// MaxAnswerTokens 回答最大 token 数
	MaxAnswerTokens int
	// JudgeTemperature 打分温度
	JudgeTemperature float64
	// JudgeMaxTokens 打分最大 token 数
	JudgeMaxTokens int
	// Method 默认评分方法
	Method ScoringMethod
	// Logger 日志
	Logger otel.Logger
}

// Option 评估器选项函数
type Option func(*Options)

// DefaultOptions 返回默认选项
func DefaultOptions() Options {
	return Options{
		Temperature:      0.7,
		TopP:             0.9,
		MaxAnswerTokens:  256,
		JudgeTemperature: 0.1,
		JudgeMaxTokens:   5,
		Method:           ScoringHybrid,
		Logger:           otel.NewNoopLogger(),
	}
}

// WithTemperature 设置回答生成温度
func WithTemperature(t float64) Option {
	return func(o *Options) {
		o.Temperature = t
	}
}

// WithTopP 设置核采样参数
func WithTopP(p float64) Option {
	return func(o *Options) {
		o.TopP = p
	}
}

// WithMaxAnswerTokens 设置回答最大 token 数
func WithMaxAnswerTokens(n int) Option {
	return func(o *Options) {
		o.MaxAnswerTokens = n
	}
}

// WithJudge 设置打分调用的温度与最大 token 数
func WithJudge(temperature float64, maxTokens int) Option {
	return func(o *Options) {
		o.JudgeTemperature = temperature
		o.JudgeMaxTokens = maxTokens
	}
}

// WithMethod 设置默认评分方法
func WithMethod(m ScoringMethod) Option {
	return func(o *Options) {
		o.Method = m
	}
}

// WithLogger 设置日志
func WithLogger(l otel.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// FromConfig 由评估配置生成选项
func FromConfig(cfg config.EvaluationConfig) []Option {
	cfg = cfg.WithDefaults()
	return []Option{
		WithTemperature(cfg.Temperature),
		WithTopP(cfg.TopP),
		WithMaxAnswerTokens(cfg.MaxAnswerTokens),
		WithJudge(cfg.JudgeTemperature, cfg.JudgeMaxTokens),
		WithMethod(cfg.ScoringMethod),
	}
}

// Evaluator 回答评估器
//
// 使用生成服务回答问题，并以嵌入相似度、生成模型打分或两者平均评价回答。
// 所有调用都是阻塞的，服务错误原样返回，评估器自身不重试。
type Evaluator struct {
	generator llm.Generator
	embedder  rag.Embedder
	opts      Options
}

// NewEvaluator 创建评估器
//
// embedder 可以为 nil，此时只能使用 llm_judge 评分。
func NewEvaluator(generator llm.Generator, embedder rag.Embedder, opts ...Option) (*Evaluator, error) {
	if generator == nil {
		return nil, coreerrors.ErrGeneratorRequired
	}
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if !o.Method.IsValid() {
		return nil, fmt.Errorf("%w: %q", coreerrors.ErrUnknownScoringMethod, o.Method)
	}
	return &Evaluator{
		generator: generator,
		embedder:  embedder,
		opts:      o,
	}, nil
}

// Method 返回默认评分方法
func (e *Evaluator) Method() ScoringMethod {
	return e.opts.Method
}

// GenerateAnswer 基于上下文回答问题
func (e *Evaluator) GenerateAnswer(ctx context.Context, contextText, question string) (string, error) {
	req := llm.NewRequest(fmt.Sprintf(answerPromptTemplate, contextText, question),
		llm.WithRequestMaxTokens(e.opts.MaxAnswerTokens),
		llm.WithRequestTemperature(e.opts.Temperature),
		llm.WithRequestTopP(e.opts.TopP),
	)

	resp, err := e.generator.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// ScoreAnswer 按指定方法为回答打分，结果位于 [0, 1]
func (e *Evaluator) ScoreAnswer(ctx context.Context, answer, groundTruth string, method ScoringMethod) (float64, error) {
	switch method {
	case ScoringSemantic:
		return e.semanticScore(ctx, answer, groundTruth)
	case ScoringLLMJudge:
		return e.judgeScore(ctx, answer, groundTruth)
	case ScoringHybrid:
		semantic, err := e.semanticScore(ctx, answer, groundTruth)
		if err != nil {
			return 0, err
		}
		judge, err := e.judgeScore(ctx, answer, groundTruth)
		if err != nil {
			return 0, err
		}
		return (semantic + judge) / 2, nil
	default:
		return 0, fmt.Errorf("%w: %q", coreerrors.ErrUnknownScoringMethod, method)
	}
}

// semanticScore 将余弦相似度 [-1, 1] 映射到 [0, 1]
//
// 两段文本完全相同时余弦恒为 1，直接返回满分；空文本照常嵌入。
func (e *Evaluator) semanticScore(ctx context.Context, answer, groundTruth string) (float64, error) {
	if e.embedder == nil {
		return 0, coreerrors.ErrEmbedderRequired
	}
	if answer == groundTruth {
		return 1, nil
	}

	texts := []string{answer, groundTruth}
	vectors, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}
	if len(vectors) != 2 {
		return 0, fmt.Errorf("%w: expected 2 vectors, got %d", coreerrors.ErrEmbeddingFailed, len(vectors))
	}
	if len(vectors[0]) == 0 || len(vectors[0]) != len(vectors[1]) {
		return 0, fmt.Errorf("%w: vector dimensions %d and %d", coreerrors.ErrEmbeddingFailed, len(vectors[0]), len(vectors[1]))
	}

	return clamp01((rag.CosineSimilarity(vectors[0], vectors[1]) + 1) / 2), nil
}

// judgeScore 让生成模型给出 0-10 的评分
func (e *Evaluator) judgeScore(ctx context.Context, answer, groundTruth string) (float64, error) {
	req := llm.NewRequest(fmt.Sprintf(judgePromptTemplate, groundTruth, answer),
		llm.WithRequestMaxTokens(e.opts.JudgeMaxTokens),
		llm.WithRequestTemperature(e.opts.JudgeTemperature),
	)

	resp, err := e.generator.Generate(ctx, req)
	if err != nil {
		return 0, err
	}

	score, ok := ParseRating(resp.Content)
	if !ok {
		e.opts.Logger.Debug("judge response has no rating", "response", resp.Content)
	}
	return score, nil
}

// ParseRating 从打分响应中取第一个整数，限制在 0-10 后除以 10
//
// 没有整数时返回 NeutralScore 与 false。
func ParseRating(response string) (float64, bool) {
	match := ratingPattern.FindString(response)
	if match == "" {
		return NeutralScore, false
	}
	n, err := strconv.Atoi(match)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return NeutralScore, false
	}
	return float64(min(max(n, 0), 10)) / 10, true
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}

// BatchItem 批量评估的一道题
type BatchItem struct {
	// QuestionID 问题标识
	QuestionID string
	// Question 问题
	Question string
	// Context 组装好的上下文
	Context string
	// GroundTruth 参考答案
	GroundTruth string
}

// BatchRecord 批量评估的一条结果
type BatchRecord struct {
	QuestionID  string  `json:"question_id,omitempty"`
	Question    string  `json:"question"`
	Answer      string  `json:"answer"`
	GroundTruth string  `json:"ground_truth"`
	Score       float64 `json:"score"`
}

// BatchConfig 批量评估配置
type BatchConfig struct {
	// Method 评分方法，为空时使用评估器默认方法
	Method ScoringMethod
	// ProgressCallback 每完成一道题回调一次
	ProgressCallback func(done, total int)
}

// BatchOption 批量评估选项
type BatchOption func(*BatchConfig)

// WithBatchMethod 设置批量评估的评分方法
func WithBatchMethod(m ScoringMethod) BatchOption {
	return func(c *BatchConfig) {
		c.Method = m
	}
}

// WithProgress 设置进度回调
func WithProgress(fn func(done, total int)) BatchOption {
	return func(c *BatchConfig) {
		c.ProgressCallback = fn
	}
}

// EvaluateBatch 依次为每道题生成回答并打分
//
// 任一题失败即返回错误，已完成的结果随错误一起返回。
func (e *Evaluator) EvaluateBatch(ctx context.Context, items []BatchItem, opts ...BatchOption) ([]BatchRecord, error) {
	cfg := BatchConfig{Method: e.opts.Method}
	for _, opt := range opts {
		opt(&cfg)
	}

	records := make([]BatchRecord, 0, len(items))
	for i, item := range items {
		select {
		case <-ctx.Done():
			return records, ctx.Err()
		default:
		}

		answer, err := e.GenerateAnswer(ctx, item.Context, item.Question)
		if err != nil {
			return records, fmt.Errorf("question %d: generate answer: %w", i, err)
		}
		score, err := e.ScoreAnswer(ctx, answer, item.GroundTruth, cfg.Method)
		if err != nil {
			return records, fmt.Errorf("question %d: score answer: %w", i, err)
		}

		records = append(records, BatchRecord{
			QuestionID:  item.QuestionID,
			Question:    item.Question,
			Answer:      answer,
			GroundTruth: item.GroundTruth,
			Score:       score,
		})

		if cfg.ProgressCallback != nil {
			cfg.ProgressCallback(i+1, len(items))
		}
	}
	return records, nil
}
