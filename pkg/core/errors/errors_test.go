package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapError(t *testing.T) {
	if WrapError(nil, "ctx") != nil {
		t.Error("WrapError(nil) should return nil")
	}

	err := WrapError(ErrTimeout, "generate answer")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("wrapped error lost its sentinel: %v", err)
	}
	if got, want := err.Error(), "generate answer: request timeout"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		fatal     bool
		config    bool
		data      bool
	}{
		{"nil", nil, false, false, false, false},
		{"rate limited", ErrRateLimited, true, false, false, false},
		{"timeout wrapped", fmt.Errorf("embed: %w", ErrTimeout), true, false, false, false},
		{"api key", ErrInvalidAPIKey, false, true, false, false},
		{"budget", ErrInvalidBudget, false, true, true, false},
		{"ranker", fmt.Errorf("primacy: %w", ErrRankerRequired), false, true, true, false},
		{"scoring method", ErrUnknownScoringMethod, false, true, true, false},
		{"results missing", ErrResultsNotFound, false, false, false, true},
		{"malformed", ErrMalformedResults, false, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
			if got := IsFatal(tt.err); got != tt.fatal {
				t.Errorf("IsFatal() = %v, want %v", got, tt.fatal)
			}
			if got := IsConfigError(tt.err); got != tt.config {
				t.Errorf("IsConfigError() = %v, want %v", got, tt.config)
			}
			if got := IsDataError(tt.err); got != tt.data {
				t.Errorf("IsDataError() = %v, want %v", got, tt.data)
			}
		})
	}
}
