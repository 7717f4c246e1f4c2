// SPDX-License-Identifier: Apache-2.0

package faults

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("deadline exceeded")
	f := New(CodeTimeout, "handler exceeded deadline", cause)

	if f.Code != CodeTimeout {
		t.Errorf("expected CodeTimeout, got %v", f.Code)
	}
	if f.Message != "handler exceeded deadline" {
		t.Errorf("expected message 'handler exceeded deadline', got %q", f.Message)
	}
	if f.Err != cause {
		t.Errorf("expected cause to be preserved")
	}
	if !errors.Is(f, cause) {
		t.Errorf("expected errors.Is to work with wrapped error")
	}
}

func TestWithContext(t *testing.T) {
	f := New(CodeHandlerFault, "handler failed", nil)
	f.WithContext("handler", "search_tool").
		WithContext("params", map[string]any{"query": "AI trends"})

	if f.Context["handler"] != "search_tool" {
		t.Errorf("expected context handler to be 'search_tool'")
	}
	if f.Context["params"] == nil {
		t.Errorf("expected context params to be set")
	}
}

func TestWithRecoverable(t *testing.T) {
	f := New(CodeStorageUnavailable, "store unreachable", nil)
	if f.Recoverable {
		t.Errorf("expected recoverable to be false by default")
	}

	f.WithRecoverable(true)
	if !f.Recoverable {
		t.Errorf("expected recoverable to be true after WithRecoverable")
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name     string
		fault    *Fault
		expected string
	}{
		{
			name:     "with cause",
			fault:    New(CodeTimeout, "action timed out", errors.New("deadline exceeded")),
			expected: "[TIMEOUT] action timed out: deadline exceeded",
		},
		{
			name:     "without cause",
			fault:    New(CodeNotFound, "handler not found", nil),
			expected: "[NOT_FOUND] handler not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fault.Error()
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestAs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Code
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "already Fault",
			err:      New(CodeDuplicateHandler, "already registered", nil),
			expected: CodeDuplicateHandler,
		},
		{
			name:     "generic error",
			err:      errors.New("generic error"),
			expected: CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := As(tt.err)
			if tt.expected == "" {
				if f != nil {
					t.Errorf("expected nil for nil error")
				}
			} else {
				if f == nil {
					t.Errorf("expected non-nil Fault")
				} else if f.Code != tt.expected {
					t.Errorf("expected %v, got %v", tt.expected, f.Code)
				}
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	if code := CodeOf(nil); code != "" {
		t.Errorf("expected empty code for nil, got %v", code)
	}
	if code := CodeOf(New(CodeParseFault, "bad params", nil)); code != CodeParseFault {
		t.Errorf("expected PARSE_FAULT, got %v", code)
	}
	if code := CodeOf(errors.New("plain")); code != CodeInternal {
		t.Errorf("expected INTERNAL_ERROR for plain error, got %v", code)
	}
}

func TestMarshalJSON(t *testing.T) {
	f := New(CodeHandlerFault, "handler failed", errors.New("network error"))
	f.WithContext("handler", "search_tool").
		WithRecoverable(true)

	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("unexpected error marshaling: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("unexpected error unmarshaling: %v", err)
	}

	if result["code"] != "HANDLER_FAULT" {
		t.Errorf("expected code 'HANDLER_FAULT', got %v", result["code"])
	}
	if result["recoverable"] != true {
		t.Errorf("expected recoverable true")
	}
	if result["error"] != "network error" {
		t.Errorf("expected wrapped error message, got %v", result["error"])
	}
}
