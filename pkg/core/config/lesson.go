package config

import "fmt"

// 组装默认值
const (
	// DefaultTokenLimit 默认上下文 token 上限
	DefaultTokenLimit = 4000
	// DefaultOverhead 为问题和提示模板预留的 token 数
	DefaultOverhead = 50
)

// ScoringMethod 评分方法
type ScoringMethod string

const (
	// ScoringSemantic 嵌入余弦相似度
	ScoringSemantic ScoringMethod = "semantic"
	// ScoringLLMJudge 生成模型打分
	ScoringLLMJudge ScoringMethod = "llm_judge"
	// ScoringHybrid 两者平均
	ScoringHybrid ScoringMethod = "hybrid"
)

// IsValid 检查评分方法是否有效
func (m ScoringMethod) IsValid() bool {
	switch m {
	case ScoringSemantic, ScoringLLMJudge, ScoringHybrid:
		return true
	default:
		return false
	}
}

// AssemblyConfig 上下文组装配置
type AssemblyConfig struct {
	// TokenLimit 上下文 token 上限
	// 默认: 4000
	TokenLimit int `koanf:"token_limit"`
	// Overhead 预留 token 数
	// 默认: 50, 范围: [0, TokenLimit)
	Overhead int `koanf:"overhead"`
	// Strategies 参与评估的策略，为空表示全部
	Strategies []string `koanf:"strategies"`
	// FullTextShare 分层摘要策略中全文文档可占预算比例
	// 默认: 0.6, 范围: (0, 1]
	FullTextShare float64 `koanf:"full_text_share"`
	// MinShare 动态分配策略中每篇文档的最低预算比例
	// 默认: 0.05
	MinShare float64 `koanf:"min_share"`
	// ChunkSize 语义分块策略的块大小（字符）
	// 默认: 600
	ChunkSize int `koanf:"chunk_size"`
	// LLMSummaries 分层摘要是否调用生成服务做摘要
	LLMSummaries bool `koanf:"llm_summaries"`
}

// Validate 验证组装配置
func (c *AssemblyConfig) Validate() error {
	if c.TokenLimit <= 0 {
		return fmt.Errorf("%w: token_limit must be positive", ErrInvalidAssembly)
	}
	if c.Overhead < 0 || c.Overhead >= c.TokenLimit {
		return fmt.Errorf("%w: overhead must be in [0, token_limit)", ErrInvalidAssembly)
	}
	if c.FullTextShare <= 0 || c.FullTextShare > 1 {
		return fmt.Errorf("%w: full_text_share must be in (0, 1]", ErrInvalidAssembly)
	}
	if c.MinShare < 0 || c.MinShare >= 1 {
		return fmt.Errorf("%w: min_share must be in [0, 1)", ErrInvalidAssembly)
	}
	return nil
}

// WithDefaults 返回带默认值的配置
func (c AssemblyConfig) WithDefaults() AssemblyConfig {
	if c.TokenLimit == 0 {
		c.TokenLimit = DefaultTokenLimit
	}
	if c.Overhead == 0 {
		c.Overhead = DefaultOverhead
	}
	if c.FullTextShare == 0 {
		c.FullTextShare = 0.6
	}
	if c.MinShare == 0 {
		c.MinShare = 0.05
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 600
	}
	return c
}

// EvaluationConfig 评估配置
type EvaluationConfig struct {
	// ScoringMethod 评分方法
	// 默认: hybrid
	ScoringMethod ScoringMethod `koanf:"scoring_method"`
	// Temperature 回答生成温度
	// 默认: 0.7, 范围: [0, 2]
	Temperature float64 `koanf:"temperature"`
	// TopP 核采样参数
	// 默认: 0.9
	TopP float64 `koanf:"top_p"`
	// MaxAnswerTokens 回答最大 token 数
	// 默认: 256
	MaxAnswerTokens int `koanf:"max_answer_tokens"`
	// JudgeTemperature 打分温度
	// 默认: 0.1
	JudgeTemperature float64 `koanf:"judge_temperature"`
	// JudgeMaxTokens 打分最大 token 数
	// 默认: 5
	JudgeMaxTokens int `koanf:"judge_max_tokens"`
	// MaxQuestions 限制评估问题数，0 表示全部
	MaxQuestions int `koanf:"max_questions"`
}

// Validate 验证评估配置
func (c *EvaluationConfig) Validate() error {
	if !c.ScoringMethod.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidScoringMethod, c.ScoringMethod)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return ErrInvalidTemperature
	}
	if c.MaxAnswerTokens < 1 || c.JudgeMaxTokens < 1 {
		return ErrInvalidMaxTokens
	}
	if c.MaxQuestions < 0 {
		return fmt.Errorf("%w: max_questions must not be negative", ErrInvalidAssembly)
	}
	return nil
}

// WithDefaults 返回带默认值的配置
func (c EvaluationConfig) WithDefaults() EvaluationConfig {
	if c.ScoringMethod == "" {
		c.ScoringMethod = ScoringHybrid
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.TopP == 0 {
		c.TopP = 0.9
	}
	if c.MaxAnswerTokens == 0 {
		c.MaxAnswerTokens = 256
	}
	if c.JudgeTemperature == 0 {
		c.JudgeTemperature = 0.1
	}
	if c.JudgeMaxTokens == 0 {
		c.JudgeMaxTokens = 5
	}
	return c
}
