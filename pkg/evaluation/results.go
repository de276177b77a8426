package evaluation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	coreerrors "github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/errors"
)

// Results 一次评估运行写出的结果文件
type Results struct {
	Metadata   Metadata                  `json:"metadata"`
	Strategies map[string]StrategyResult `json:"strategies"`
}

// Metadata 结果元数据
//
// 指针字段区分缺失与零值，验证器据此判断字段是否存在。
type Metadata struct {
	RunID                 string   `json:"run_id,omitempty"`
	Timestamp             string   `json:"timestamp,omitempty"`
	Model                 string   `json:"model,omitempty"`
	EmbeddingModel        string   `json:"embedding_model,omitempty"`
	NumDocuments          *int     `json:"num_documents,omitempty"`
	NumQuestions          *int     `json:"num_questions,omitempty"`
	TokenLimit            int      `json:"token_limit,omitempty"`
	ScoringMethod         string   `json:"scoring_method,omitempty"`
	CompletionTimeMinutes *float64 `json:"completion_time_minutes,omitempty"`
}

// StrategyResult 单个策略的结果
type StrategyResult struct {
	Accuracy  *float64 `json:"accuracy,omitempty"`
	AvgTokens *float64 `json:"avg_tokens,omitempty"`
	// Scores 逐题得分，与问题顺序一致
	Scores []float64 `json:"per_question_scores,omitempty"`
	// Tokens 逐题上下文 token 数
	Tokens []int       `json:"per_question_tokens,omitempty"`
	Stats  *ScoreStats `json:"stats,omitempty"`
	// AccuracyImprovement 与 TokenReduction 相对 naive，基线自身不填
	AccuracyImprovement *float64 `json:"accuracy_improvement,omitempty"`
	TokenReduction      *float64 `json:"token_reduction,omitempty"`
}

// AccuracyOr 返回 accuracy，缺失时返回 def
func (r StrategyResult) AccuracyOr(def float64) float64 {
	if r.Accuracy == nil {
		return def
	}
	return *r.Accuracy
}

// AvgTokensOr 返回 avg_tokens，缺失时返回 def
func (r StrategyResult) AvgTokensOr(def float64) float64 {
	if r.AvgTokens == nil {
		return def
	}
	return *r.AvgTokens
}

// StrategyNames 返回排序后的策略名
func (r *Results) StrategyNames() []string {
	names := make([]string, 0, len(r.Strategies))
	for name := range r.Strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewResults 由各策略的逐题数据构建结果
//
// 基线以外的策略附带相对 naive 的改进值。
func NewResults(meta Metadata, runs map[string]StrategyRun) *Results {
	res := &Results{
		Metadata:   meta,
		Strategies: make(map[string]StrategyResult, len(runs)),
	}
	for _, c := range Aggregate(runs) {
		run := runs[c.Name]
		stats := c.Stats
		sr := StrategyResult{
			Accuracy:  ptr(stats.Mean),
			AvgTokens: ptr(c.AvgTokens),
			Scores:    run.Scores,
			Tokens:    run.Tokens,
			Stats:     &stats,
		}
		if !c.Baseline {
			sr.AccuracyImprovement = ptr(c.AccuracyImprovement)
			sr.TokenReduction = ptr(c.TokenReduction)
		}
		res.Strategies[c.Name] = sr
	}
	return res
}

// WriteResults 写出结果文件，覆盖已有文件
func WriteResults(path string, res *Results) error {
	return WriteJSON(path, res)
}

// ReadResults 读取结果文件
//
// 文件不存在返回 ErrResultsNotFound，无法解析返回 ErrMalformedResults。
func ReadResults(path string) (*Results, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", coreerrors.ErrResultsNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", coreerrors.ErrMalformedResults, err)
	}

	var res Results
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("%w: %v", coreerrors.ErrMalformedResults, err)
	}
	if res.Strategies == nil {
		res.Strategies = map[string]StrategyResult{}
	}
	return &res, nil
}

// WriteJSON 以缩进格式写出 JSON，必要时创建父目录
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func ptr[T any](v T) *T {
	return &v
}
