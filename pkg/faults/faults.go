// Copyright 2026 © The Arbiter Authors
// SPDX-License-Identifier: Apache-2.0

// Package faults provides typed error handling for the dispatch pipeline.
// Every fault that can surface from a dispatch carries a Code so callers
// and log consumers can classify it without string matching.
package faults

import (
	"encoding/json"
	"fmt"
)

// Code classifies dispatch faults for logging and recovery.
type Code string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal Code = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput Code = "INVALID_INPUT"

	// CodeParseFault indicates an action-looking input with malformed parameters.
	CodeParseFault Code = "PARSE_FAULT"

	// CodeNotFound indicates a handler name was not registered.
	CodeNotFound Code = "NOT_FOUND"

	// CodeTimeout indicates a handler exceeded its deadline.
	CodeTimeout Code = "TIMEOUT"

	// CodeCanceled indicates the caller canceled the invocation before the
	// deadline passed.
	CodeCanceled Code = "CANCELED"

	// CodeHandlerFault indicates a handler raised during execution.
	CodeHandlerFault Code = "HANDLER_FAULT"

	// CodeDuplicateHandler indicates a registration conflict.
	CodeDuplicateHandler Code = "DUPLICATE_HANDLER"

	// CodeStorageUnavailable indicates the activity store could not be reached.
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
)

// Fault is a typed error with context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type Fault struct {
	Code        Code
	Message     string
	Err         error
	Context     map[string]any
	Recoverable bool
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", f.Code, f.Message, f.Err)
	}
	return fmt.Sprintf("[%s] %s", f.Code, f.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (f *Fault) Unwrap() error {
	return f.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (f *Fault) MarshalJSON() ([]byte, error) {
	payload := struct {
		Code        string         `json:"code"`
		Message     string         `json:"message"`
		Err         string         `json:"error,omitempty"`
		Context     map[string]any `json:"context,omitempty"`
		Recoverable bool           `json:"recoverable"`
	}{
		Code:        string(f.Code),
		Message:     f.Message,
		Context:     f.Context,
		Recoverable: f.Recoverable,
	}
	if f.Err != nil {
		payload.Err = f.Err.Error()
	}
	return json.Marshal(payload)
}

// New creates a new Fault with the given code, message, and cause.
func New(code Code, msg string, cause error) *Fault {
	return &Fault{
		Code:    code,
		Message: msg,
		Err:     cause,
		Context: make(map[string]any),
	}
}

// WithContext adds a key-value pair to the fault context.
// Returns the fault for method chaining.
func (f *Fault) WithContext(key string, value any) *Fault {
	if f.Context == nil {
		f.Context = make(map[string]any)
	}
	f.Context[key] = value
	return f
}

// WithRecoverable sets whether the fault can be recovered from.
// Returns the fault for method chaining.
func (f *Fault) WithRecoverable(recoverable bool) *Fault {
	f.Recoverable = recoverable
	return f
}

// As attempts to convert an error to a Fault. Unknown errors are
// wrapped as CodeInternal so every error has a classification.
func As(err error) *Fault {
	if err == nil {
		return nil
	}
	if f, ok := err.(*Fault); ok {
		return f
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the classification of err, or CodeInternal for plain errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if f, ok := err.(*Fault); ok {
		return f.Code
	}
	return CodeInternal
}
