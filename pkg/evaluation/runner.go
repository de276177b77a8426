package evaluation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	ctxeng "github.com/JSON-Bjorn/context-engineering-lesson/pkg/context"
	coreerrors "github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/errors"
	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/otel"
	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/rag"
)

// RunConfig 评估运行配置
type RunConfig struct {
	// TokenLimit 每次组装的上下文 token 上限
	TokenLimit int
	// MaxQuestions 限制评估问题数，0 表示全部
	MaxQuestions int
	// Method 评分方法，为空时使用评估器默认方法
	Method ScoringMethod
	// Model 生成模型名，写入结果元数据
	Model string
	// EmbeddingModel 嵌入模型名，写入结果元数据
	EmbeddingModel string
}

// ProgressFunc 运行进度回调
type ProgressFunc func(strategy string, done, total int)

// Runner 对每个策略组装上下文、回答并评分，产出结果文件内容
type Runner struct {
	evaluator  *Evaluator
	strategies []ctxeng.Strategy
	counter    ctxeng.TokenCounter
	cfg        RunConfig
	logger     otel.Logger
	tracer     *otel.RunTracer
	progress   ProgressFunc
	now        func() time.Time
}

// RunnerOption 运行器选项
type RunnerOption func(*Runner)

// WithRunLogger 设置日志
func WithRunLogger(l otel.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTelemetry 设置追踪器和指标
func WithTelemetry(tracer *otel.Tracer, metrics otel.Metrics) RunnerOption {
	return func(r *Runner) {
		r.tracer = otel.NewRunTracer(tracer, metrics)
	}
}

// WithContextCounter 设置统计上下文 token 的计数器
func WithContextCounter(c ctxeng.TokenCounter) RunnerOption {
	return func(r *Runner) {
		if c != nil {
			r.counter = c
		}
	}
}

// WithRunProgress 设置进度回调
func WithRunProgress(fn ProgressFunc) RunnerOption {
	return func(r *Runner) {
		r.progress = fn
	}
}

// NewRunner 创建评估运行器
func NewRunner(evaluator *Evaluator, strategies []ctxeng.Strategy, cfg RunConfig, opts ...RunnerOption) (*Runner, error) {
	if evaluator == nil {
		return nil, coreerrors.ErrGeneratorRequired
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("%w: no strategies to evaluate", coreerrors.ErrInvalidConfig)
	}
	if cfg.TokenLimit <= 0 {
		return nil, fmt.Errorf("%w: token limit must be positive", coreerrors.ErrInvalidBudget)
	}
	seen := make(map[string]bool, len(strategies))
	for _, s := range strategies {
		if seen[s.Name()] {
			return nil, fmt.Errorf("%w: duplicate strategy %q", coreerrors.ErrInvalidConfig, s.Name())
		}
		seen[s.Name()] = true
	}
	if cfg.Method == "" {
		cfg.Method = evaluator.Method()
	}

	r := &Runner{
		evaluator:  evaluator,
		strategies: strategies,
		counter:    ctxeng.DefaultTokenCounter(),
		cfg:        cfg,
		logger:     otel.NewNoopLogger(),
		tracer:     otel.NewRunTracer(nil, nil),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run 执行完整评估
//
// 策略依次执行，每个策略内问题依次执行；任一错误即中止并返回。
func (r *Runner) Run(ctx context.Context, docs []rag.Document, questions []rag.Question) (*Results, error) {
	if r.cfg.MaxQuestions > 0 && r.cfg.MaxQuestions < len(questions) {
		questions = questions[:r.cfg.MaxQuestions]
	}

	start := r.now()
	runID := uuid.NewString()
	logger := r.logger.WithFields(map[string]any{"run_id": runID})

	ctx, span := r.tracer.StartRun(ctx, runID, r.cfg.TokenLimit, string(r.cfg.Method))
	logger.WithContext(ctx).Info("evaluation started",
		"documents", len(docs),
		"questions", len(questions),
		"strategies", len(r.strategies),
		"token_limit", r.cfg.TokenLimit,
		"scoring_method", r.cfg.Method,
	)

	runs := make(map[string]StrategyRun, len(r.strategies))
	for _, s := range r.strategies {
		run, err := r.runStrategy(ctx, s, docs, questions, logger)
		if err != nil {
			r.tracer.FinishRun(ctx, span, err, r.now().Sub(start))
			return nil, fmt.Errorf("strategy %s: %w", s.Name(), err)
		}
		runs[s.Name()] = run
	}

	elapsed := r.now().Sub(start)
	r.tracer.FinishRun(ctx, span, nil, elapsed)

	meta := Metadata{
		RunID:                 runID,
		Timestamp:             start.Format(time.RFC3339),
		Model:                 r.cfg.Model,
		EmbeddingModel:        r.cfg.EmbeddingModel,
		NumDocuments:          ptr(len(docs)),
		NumQuestions:          ptr(len(questions)),
		TokenLimit:            r.cfg.TokenLimit,
		ScoringMethod:         string(r.cfg.Method),
		CompletionTimeMinutes: ptr(elapsed.Minutes()),
	}
	logger.Info("evaluation finished", "duration", elapsed)
	return NewResults(meta, runs), nil
}

func (r *Runner) runStrategy(ctx context.Context, s ctxeng.Strategy, docs []rag.Document, questions []rag.Question, logger otel.Logger) (StrategyRun, error) {
	name := s.Name()
	ctx, span := r.tracer.StartStrategy(ctx, name)

	items := make([]BatchItem, len(questions))
	tokens := make([]int, len(questions))
	for i, q := range questions {
		text, err := s.Assemble(ctx, docs, q.Question, r.cfg.TokenLimit)
		if err != nil {
			err = fmt.Errorf("assemble context for question %d: %w", i, err)
			r.tracer.FinishStrategy(ctx, span, name, 0, 0, err)
			return StrategyRun{}, err
		}
		tokens[i] = r.counter.Count(text)
		r.tracer.RecordContext(ctx, name, tokens[i])
		items[i] = BatchItem{
			QuestionID:  q.ID,
			Question:    q.Question,
			Context:     text,
			GroundTruth: q.GroundTruth,
		}
	}

	records, err := r.evaluator.EvaluateBatch(ctx, items,
		WithBatchMethod(r.cfg.Method),
		WithProgress(func(done, total int) {
			if r.progress != nil {
				r.progress(name, done, total)
			}
		}),
	)
	if err != nil {
		r.tracer.FinishStrategy(ctx, span, name, 0, 0, err)
		return StrategyRun{}, err
	}

	scores := make([]float64, len(records))
	for i, rec := range records {
		scores[i] = rec.Score
		r.tracer.RecordQuestion(ctx, name, rec.QuestionID, tokens[i], rec.Score)
	}

	run := StrategyRun{Scores: scores, Tokens: tokens}
	accuracy, avgTokens := Summarize(scores).Mean, MeanInt(tokens)
	r.tracer.FinishStrategy(ctx, span, name, accuracy, avgTokens, nil)
	logger.WithContext(ctx).Info("strategy evaluated",
		"strategy", name,
		"accuracy", accuracy,
		"avg_tokens", avgTokens,
	)
	return run, nil
}
