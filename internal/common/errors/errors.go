// Package errors provides standardized error handling for the QA pipeline.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// ErrCodeUpstream covers the language-model service being unreachable,
	// rejecting a request, or returning unusable output.
	ErrCodeUpstream ErrorCode = "UPSTREAM_ERROR"

	// ErrCodeParse covers parser output that cannot be decoded into a
	// structured query.
	ErrCodeParse ErrorCode = "PARSE_ERROR"

	// ErrCodeDataset covers a dataset that fails to load or is malformed
	// at startup.
	ErrCodeDataset ErrorCode = "DATASET_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("StandardError[%s] at %s: %s", e.Code, e.Stage, e.Message)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewUpstreamError creates a non-retryable language-model service error.
func NewUpstreamError(stage string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstream,
		Message:   "Language-model service request failed",
		Details:   err.Error(),
		Stage:     stage,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewParseError creates a non-retryable semantic-parse decode error.
func NewParseError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeParse,
		Message:   "Parser output could not be decoded into a structured query",
		Details:   details,
		Stage:     "parse-question",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatasetError creates a non-retryable startup dataset error.
func NewDatasetError(path string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDataset,
		Message:   "Dataset failed to load or is malformed",
		Details:   fmt.Sprintf("path: %s, error: %s", path, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Classification Helpers
// ==========================

// CodeOf extracts the error code from an error chain, or "" if the chain
// carries no StandardError.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}

func IsUpstreamError(err error) bool { return CodeOf(err) == ErrCodeUpstream }
func IsParseError(err error) bool    { return CodeOf(err) == ErrCodeParse }
func IsDatasetError(err error) bool  { return CodeOf(err) == ErrCodeDataset }
