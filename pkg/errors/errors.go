// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed error handling with rich context for Vigil.
package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode classifies Vigil errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeUnknownSkill indicates a plan named a skill the registry does not have.
	CodeUnknownSkill ErrorCode = "UNKNOWN_SKILL"

	// CodeUnknownTask indicates a skill does not recognize the resolved task.
	CodeUnknownTask ErrorCode = "UNKNOWN_TASK"

	// CodeValidationFailed indicates required context keys were missing.
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// CodeGenerationFailure indicates the generation collaborator failed or
	// returned unparsable output.
	CodeGenerationFailure ErrorCode = "GENERATION_FAILURE"

	// CodeExecutionFailure indicates a skill task failed during its own work.
	CodeExecutionFailure ErrorCode = "EXECUTION_FAILURE"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeStoreError indicates an event store error.
	CodeStoreError ErrorCode = "STORE_ERROR"

	// CodeRetrievalError indicates a knowledge retrieval error.
	CodeRetrievalError ErrorCode = "RETRIEVAL_ERROR"
)

// VigilError is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type VigilError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Recoverable bool
	StatusCode  int
}

// Error implements the error interface.
func (e *VigilError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *VigilError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *VigilError) MarshalJSON() ([]byte, error) {
	type Alias VigilError
	return json.Marshal(&struct {
		Message     string `json:"message"`
		Code        string `json:"code"`
		Err         string `json:"error,omitempty"`
		Recoverable bool   `json:"recoverable"`
		*Alias
	}{
		Message:     e.Error(),
		Code:        string(e.Code),
		Err:         fmt.Sprintf("%v", e.Err),
		Recoverable: e.Recoverable,
		Alias:       (*Alias)(e),
	})
}

// New creates a new VigilError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *VigilError {
	return &VigilError{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		StatusCode: codeToStatusCode(code),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *VigilError) WithContext(key string, value interface{}) *VigilError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *VigilError) WithRecoverable(recoverable bool) *VigilError {
	e.Recoverable = recoverable
	return e
}

// AsVigilError attempts to convert an error to a VigilError.
// Returns the error as VigilError if it is one, or wraps it otherwise.
func AsVigilError(err error) *VigilError {
	if err == nil {
		return nil
	}
	if ve, ok := err.(*VigilError); ok {
		return ve
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the error code of err, or CodeInternal for untyped errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if ve, ok := err.(*VigilError); ok {
		return ve.Code
	}
	return CodeInternal
}

// codeToStatusCode maps error codes to HTTP status codes.
func codeToStatusCode(code ErrorCode) int {
	switch code {
	case CodeNotFound, CodeUnknownSkill, CodeUnknownTask:
		return 404
	case CodeInvalidInput, CodeValidationFailed:
		return 400
	case CodeTimeout:
		return 408
	default:
		return 500
	}
}
