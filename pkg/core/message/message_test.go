package message_test

import (
	"errors"
	"testing"

	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/message"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		messages []message.Message
		wantErr  bool
	}{
		{"user prompt", []message.Message{message.User("Question: why?")}, false},
		{"system then user", []message.Message{message.System("be concise"), message.User("q")}, false},
		{"no messages", nil, true},
		{"empty content", []message.Message{message.User("")}, true},
		{"tool role", []message.Message{{Role: "tool", Content: "x"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := message.Validate(tt.messages)
			if tt.wantErr != (err != nil) {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, message.ErrInvalidMessage) {
				t.Errorf("Validate() = %v, want ErrInvalidMessage", err)
			}
		})
	}
}

func TestTokenUsage(t *testing.T) {
	total := message.NewTokenUsage(120, 8)
	if total.TotalTokens != 128 {
		t.Fatalf("NewTokenUsage total = %d, want 128", total.TotalTokens)
	}
	total.Add(message.NewTokenUsage(30, 2))
	want := message.TokenUsage{PromptTokens: 150, CompletionTokens: 10, TotalTokens: 160}
	if total != want {
		t.Errorf("Add() = %+v, want %+v", total, want)
	}
}
