// Package message 定义发送给生成服务的对话消息与 token 用量
//
// 评估流程中的回答生成、打分与摘要都以单条用户消息发出，
// 因此这里只保留三种角色，不携带工具调用等扩展字段。
package message

import (
	"errors"
	"fmt"
)

// Role 消息角色
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ErrInvalidMessage 消息列表不能发送给生成服务
var ErrInvalidMessage = errors.New("invalid message")

// Message 对话中的一条消息
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// User 创建用户消息
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// System 创建系统消息
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// Assistant 创建模型回复消息
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Validate 检查消息列表：至少一条，角色有效，内容非空
func Validate(messages []Message) error {
	if len(messages) == 0 {
		return fmt.Errorf("%w: no messages", ErrInvalidMessage)
	}
	for i, m := range messages {
		switch m.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("%w: message %d has role %q", ErrInvalidMessage, i, m.Role)
		}
		if m.Content == "" {
			return fmt.Errorf("%w: message %d is empty", ErrInvalidMessage, i)
		}
	}
	return nil
}

// TokenUsage 一次生成调用的 token 用量
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// NewTokenUsage 由输入与输出 token 数构造用量，总数取两者之和
func NewTokenUsage(prompt, completion int) TokenUsage {
	return TokenUsage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}

// Add 累加用量
func (t *TokenUsage) Add(other TokenUsage) {
	t.PromptTokens += other.PromptTokens
	t.CompletionTokens += other.CompletionTokens
	t.TotalTokens += other.TotalTokens
}
