package verify

import (
	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/evaluation"
)

// LessonName 进度报告中的课程标识
const LessonName = "context_engineering"

// Status 检查或任务的状态
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
)

// 检查名
const (
	CheckResultsFileExists  = "results_file_exists"
	CheckTokenCalculations  = "token_calculations"
	CheckStrategies         = "strategies_implemented"
	CheckMetricsRecorded    = "metrics_recorded"
	CheckOptimization       = "optimization_implemented"
	CheckComparisonAnalysis = "comparison_analysis"
)

// CheckResult 单项检查结果
type CheckResult struct {
	Check   string `json:"check"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// CheckDetails 检查明细
type CheckDetails struct {
	Passed   []CheckResult `json:"passed"`
	Failed   []CheckResult `json:"failed"`
	Warnings []string      `json:"warnings"`
}

// Verification 评分结论
//
// 提前失败时只有 Error，没有 ChecksDetails。
type Verification struct {
	Grade         Status        `json:"grade"`
	Error         string        `json:"error,omitempty"`
	ChecksPassed  int           `json:"checks_passed"`
	ChecksTotal   int           `json:"checks_total"`
	ChecksDetails *CheckDetails `json:"checks_details,omitempty"`
}

// TaskStatus 任务完成状态
type TaskStatus struct {
	Status Status `json:"status"`
}

// NaiveTask 基线实现任务
type NaiveTask struct {
	Status           Status  `json:"status"`
	BaselineAccuracy float64 `json:"baseline_accuracy"`
}

// PlacementTask 位置策略任务
type PlacementTask struct {
	Status           Status  `json:"status"`
	PrimacyAccuracy  float64 `json:"primacy_accuracy"`
	RecencyAccuracy  float64 `json:"recency_accuracy"`
	SandwichAccuracy float64 `json:"sandwich_accuracy"`
}

// TasksCompleted 课程任务完成情况
type TasksCompleted struct {
	TokenBudgetAnalysis TaskStatus    `json:"token_budget_analysis"`
	NaiveImplementation NaiveTask     `json:"naive_implementation"`
	StrategicPlacement  PlacementTask `json:"strategic_placement"`
	Optimization        TaskStatus    `json:"optimization"`
}

// MetricsSummary 指标摘要
type MetricsSummary struct {
	BaselineAccuracy float64 `json:"baseline_accuracy"`
	BestStrategy     string  `json:"best_strategy"`
	BestAccuracy     float64 `json:"best_accuracy"`
	TotalImprovement float64 `json:"total_improvement"`
	StrategiesTested int     `json:"strategies_tested"`
}

// Report 写入进度文件的验证报告
type Report struct {
	StudentID             string                               `json:"student_id"`
	Lesson                string                               `json:"lesson"`
	Timestamp             string                               `json:"timestamp"`
	CompletionTimeMinutes *float64                             `json:"completion_time_minutes"`
	Verification          Verification                         `json:"verification"`
	TasksCompleted        *TasksCompleted                      `json:"tasks_completed,omitempty"`
	MetricsSummary        *MetricsSummary                      `json:"metrics_summary,omitempty"`
	DetailedResults       map[string]evaluation.StrategyResult `json:"detailed_results,omitempty"`
}

// Passed 报告是否通过
func (r *Report) Passed() bool {
	return r.Verification.Grade == StatusPass
}

func statusOf(ok bool) Status {
	if ok {
		return StatusPass
	}
	return StatusFail
}
