package errors

import (
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeConflict, "article %s already exists", "a1")

	if err.Code != ErrCodeConflict {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeConflict)
	}

	if err.Message != "article a1 already exists" {
		t.Errorf("Message = %v, want %v", err.Message, "article a1 already exists")
	}

	expected := "CONFLICT: article a1 already exists"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("upstream timed out")
	err := Wrap(ErrCodeGeneration, cause, "generate follow-up")

	if err.Code != ErrCodeGeneration {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeGeneration)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}

	if unwrapped := errors.Unwrap(err); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}

	expected := "GENERATION_FAILED: generate follow-up: upstream timed out"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeNotFound, "test"),
			code:     ErrCodeNotFound,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeNotFound, "test"),
			code:     ErrCodeConflict,
			expected: false,
		},
		{
			name:     "outer code wins",
			err:      Wrap(ErrCodeLayout, New(ErrCodeNetwork, "inner"), "outer"),
			code:     ErrCodeLayout,
			expected: true,
		},
		{
			name:     "plain error",
			err:      errors.New("plain error"),
			code:     ErrCodeValidation,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			code:     ErrCodeValidation,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Code
	}{
		{"Error type", New(ErrCodeInvalidState, "test"), ErrCodeInvalidState},
		{"plain error", errors.New("plain"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.expected {
				t.Errorf("GetCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(New(ErrCodeInvalidInput, "friendly message")); got != "friendly message" {
		t.Errorf("UserMessage() = %v, want %v", got, "friendly message")
	}
	if got := UserMessage(errors.New("plain error")); got != "plain error" {
		t.Errorf("UserMessage() = %v, want %v", got, "plain error")
	}
}

func TestIsInvariantViolation(t *testing.T) {
	tests := []struct {
		code Code
		want bool
	}{
		{ErrCodeValidation, true},
		{ErrCodeConflict, true},
		{ErrCodeNotFound, true},
		{ErrCodeInvalidState, true},
		{ErrCodeGeneration, false},
		{ErrCodeLayout, false},
		{ErrCodeNetwork, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := IsInvariantViolation(New(tt.code, "x")); got != tt.want {
				t.Errorf("IsInvariantViolation(%s) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}

	if IsInvariantViolation(errors.New("plain")) {
		t.Error("IsInvariantViolation(plain) = true, want false")
	}
}
