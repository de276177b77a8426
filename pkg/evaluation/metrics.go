package evaluation

import (
	"math"
	"slices"
	"sort"

	ctxeng "github.com/JSON-Bjorn/context-engineering-lesson/pkg/context"
)

// BaselineStrategy 计算改进幅度时的基线策略
const BaselineStrategy = string(ctxeng.Naive)

// ScoreStats 得分统计
type ScoreStats struct {
	Mean   float64 `json:"mean_score"`
	Median float64 `json:"median_score"`
	Std    float64 `json:"std_score"`
	Min    float64 `json:"min_score"`
	Max    float64 `json:"max_score"`
	Count  int     `json:"num_evaluated"`
}

// Summarize 计算均值、中位数、总体标准差、最小值和最大值
//
// 空输入返回全零统计。
func Summarize(scores []float64) ScoreStats {
	n := len(scores)
	if n == 0 {
		return ScoreStats{}
	}

	sorted := slices.Clone(scores)
	slices.Sort(sorted)

	var sum float64
	for _, s := range sorted {
		sum += s
	}
	mean := sum / float64(n)

	var sq float64
	for _, s := range sorted {
		sq += (s - mean) * (s - mean)
	}

	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return ScoreStats{
		Mean:   mean,
		Median: median,
		Std:    math.Sqrt(sq / float64(n)),
		Min:    sorted[0],
		Max:    sorted[n-1],
		Count:  n,
	}
}

// MeanInt 整数均值，空输入返回 0
func MeanInt(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum int
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

// RelativeImprovement 相对基线的提升比例，基线不为正时返回 0
func RelativeImprovement(baseline, value float64) float64 {
	if baseline <= 0 {
		return 0
	}
	return (value - baseline) / baseline
}

// RelativeReduction 相对基线的下降比例，基线不为正时返回 0
func RelativeReduction(baseline, value float64) float64 {
	if baseline <= 0 {
		return 0
	}
	return (baseline - value) / baseline
}

// StrategyRun 单个策略的逐题得分与上下文 token 数
type StrategyRun struct {
	Scores []float64
	Tokens []int
}

// StrategyComparison 单个策略的汇总指标
type StrategyComparison struct {
	Name      string
	Stats     ScoreStats
	AvgTokens float64
	// Baseline 是否为基线策略，基线的两个改进字段恒为 0
	Baseline bool
	// AccuracyImprovement 平均得分相对基线的提升
	AccuracyImprovement float64
	// TokenReduction 平均 token 相对基线的下降
	TokenReduction float64
}

// Aggregate 汇总所有策略并与 naive 比较
//
// 结果按策略名排序；缺少 naive 时所有改进值为 0。
func Aggregate(runs map[string]StrategyRun) []StrategyComparison {
	var baseAcc, baseTokens float64
	if base, ok := runs[BaselineStrategy]; ok {
		baseAcc = Summarize(base.Scores).Mean
		baseTokens = MeanInt(base.Tokens)
	}

	out := make([]StrategyComparison, 0, len(runs))
	for name, run := range runs {
		c := StrategyComparison{
			Name:      name,
			Stats:     Summarize(run.Scores),
			AvgTokens: MeanInt(run.Tokens),
			Baseline:  name == BaselineStrategy,
		}
		if !c.Baseline {
			c.AccuracyImprovement = RelativeImprovement(baseAcc, c.Stats.Mean)
			c.TokenReduction = RelativeReduction(baseTokens, c.AvgTokens)
		}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
