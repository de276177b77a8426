package otel

import "go.opentelemetry.io/otel/attribute"

// 预定义的语义属性键
// 遵循 OpenTelemetry 语义约定
const (
	// 评估运行相关属性
	AttrRunID         = "eval.run_id"
	AttrStrategy      = "eval.strategy"
	AttrQuestionID    = "eval.question_id"
	AttrScoringMethod = "eval.scoring_method"
	AttrScore         = "eval.score"
	AttrTokenLimit    = "eval.token_limit"

	// 上下文组装相关属性
	AttrContextTokens    = "context.tokens"
	AttrContextDocuments = "context.documents"

	// LLM 相关属性
	AttrLLMProvider         = "llm.provider"
	AttrLLMModel            = "llm.model"
	AttrLLMOperation        = "llm.operation"
	AttrLLMPromptTokens     = "llm.prompt_tokens"
	AttrLLMCompletionTokens = "llm.completion_tokens"
	AttrLLMTotalTokens      = "llm.total_tokens"

	// 验证相关属性
	AttrVerifyCheck = "verify.check"
	AttrVerifyGrade = "verify.grade"

	// Error 相关属性
	AttrErrorType      = "error.type"
	AttrErrorMessage   = "error.message"
	AttrErrorRetryable = "error.retryable"
)

// RunID 创建评估运行 ID 属性
func RunID(id string) attribute.KeyValue {
	return attribute.String(AttrRunID, id)
}

// Strategy 创建组装策略属性
func Strategy(name string) attribute.KeyValue {
	return attribute.String(AttrStrategy, name)
}

// QuestionID 创建问题 ID 属性
func QuestionID(id string) attribute.KeyValue {
	return attribute.String(AttrQuestionID, id)
}

// ScoringMethod 创建评分方法属性
func ScoringMethod(method string) attribute.KeyValue {
	return attribute.String(AttrScoringMethod, method)
}

// ContextTokens 创建上下文 token 数属性
func ContextTokens(n int) attribute.KeyValue {
	return attribute.Int(AttrContextTokens, n)
}

// LLMProvider 创建 LLM 提供商属性
func LLMProvider(provider string) attribute.KeyValue {
	return attribute.String(AttrLLMProvider, provider)
}

// LLMModel 创建 LLM 模型属性
func LLMModel(model string) attribute.KeyValue {
	return attribute.String(AttrLLMModel, model)
}

// VerifyGrade 创建验证总评属性
func VerifyGrade(grade string) attribute.KeyValue {
	return attribute.String(AttrVerifyGrade, grade)
}

// VerifyCheck 创建验证检查名属性
func VerifyCheck(check string) attribute.KeyValue {
	return attribute.String(AttrVerifyCheck, check)
}

// LLMTokens 创建 LLM Token 使用属性
func LLMTokens(prompt, completion, total int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrLLMPromptTokens, prompt),
		attribute.Int(AttrLLMCompletionTokens, completion),
		attribute.Int(AttrLLMTotalTokens, total),
	}
}

// ErrorAttrs 创建错误属性
func ErrorAttrs(errType, message string, retryable bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, errType),
		attribute.String(AttrErrorMessage, message),
		attribute.Bool(AttrErrorRetryable, retryable),
	}
}
