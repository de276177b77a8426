package otel

// 预定义的指标名称
// 遵循 OpenTelemetry 语义约定
const (
	// 评估指标
	MetricEvalRuns          = "eval.runs"                // 计数器: 评估运行次数
	MetricEvalRunDuration   = "eval.run.duration"        // 直方图: 评估运行时间(ms)
	MetricEvalQuestions     = "eval.questions"           // 计数器: 已评估问题数
	MetricEvalScore         = "eval.score"               // 直方图: 单题得分
	MetricEvalErrors        = "eval.errors"              // 计数器: 评估错误次数
	MetricStrategyAccuracy  = "eval.strategy.accuracy"   // 仪表: 策略平均得分
	MetricStrategyAvgTokens = "eval.strategy.avg_tokens" // 仪表: 策略平均上下文 token

	// 上下文组装指标
	MetricContextTokens = "context.tokens" // 直方图: 组装后的上下文 token 数

	// LLM 指标
	MetricLLMRequests         = "llm.requests"          // 计数器: LLM 请求次数
	MetricLLMRequestDuration  = "llm.request.duration"  // 直方图: LLM 请求时间(ms)
	MetricLLMTokensPrompt     = "llm.tokens.prompt"     // 计数器: Prompt Token 总数
	MetricLLMTokensCompletion = "llm.tokens.completion" // 计数器: Completion Token 总数
	MetricLLMErrors           = "llm.errors"            // 计数器: LLM 错误次数

	// 验证指标
	MetricVerifyChecks = "verify.checks" // 计数器: 验证检查结果
)

// MetricUnit 指标单位
type MetricUnit string

const (
	UnitNone         MetricUnit = ""
	UnitMilliseconds MetricUnit = "ms"
	UnitCount        MetricUnit = "1"
	UnitTokens       MetricUnit = "{token}"
)

// MetricDescription 指标描述
type MetricDescription struct {
	Name        string
	Description string
	Unit        MetricUnit
	Type        string // counter, histogram, gauge
}

// PredefinedMetrics 预定义指标列表
var PredefinedMetrics = []MetricDescription{
	{MetricEvalRuns, "Number of evaluation runs", UnitCount, "counter"},
	{MetricEvalRunDuration, "Duration of evaluation runs", UnitMilliseconds, "histogram"},
	{MetricEvalQuestions, "Number of evaluated questions", UnitCount, "counter"},
	{MetricEvalScore, "Per-question answer score", UnitNone, "histogram"},
	{MetricEvalErrors, "Number of evaluation errors", UnitCount, "counter"},
	{MetricStrategyAccuracy, "Mean score of a strategy", UnitNone, "gauge"},
	{MetricStrategyAvgTokens, "Mean context tokens of a strategy", UnitTokens, "gauge"},

	{MetricContextTokens, "Tokens in an assembled context", UnitTokens, "histogram"},

	{MetricLLMRequests, "Number of LLM requests", UnitCount, "counter"},
	{MetricLLMRequestDuration, "Duration of LLM requests", UnitMilliseconds, "histogram"},
	{MetricLLMTokensPrompt, "Number of prompt tokens", UnitTokens, "counter"},
	{MetricLLMTokensCompletion, "Number of completion tokens", UnitTokens, "counter"},
	{MetricLLMErrors, "Number of LLM errors", UnitCount, "counter"},

	{MetricVerifyChecks, "Verifier check outcomes", UnitCount, "counter"},
}

// describe 返回预定义指标的描述，未登记的指标返回仅含名称的描述
func describe(name string) MetricDescription {
	for _, d := range PredefinedMetrics {
		if d.Name == name {
			return d
		}
	}
	return MetricDescription{Name: name, Description: name}
}
