// Package errors provides standardized error handling for the verification
// pipeline and the retrieval service.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeExtractionFailed      ErrorCode = "EXTRACTION_FAILED"
	ErrCodeExtractionParseFailed ErrorCode = "EXTRACTION_PARSE_FAILED"

	ErrCodeDocumentStoreFailed ErrorCode = "DOCUMENT_STORE_FAILED"
	ErrCodeIndexCreateFailed   ErrorCode = "INDEX_CREATE_FAILED"
	ErrCodeSearchQueryFailed   ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeAuditInsertFailed   ErrorCode = "AUDIT_INSERT_FAILED"

	ErrCodeReflectionFailed   ErrorCode = "REFLECTION_FAILED"
	ErrCodeLLMSynthesisFailed ErrorCode = "LLM_SYNTHESIS_FAILED"

	ErrCodeWebSearchFailed   ErrorCode = "WEB_SEARCH_FAILED"
	ErrCodeQueryEmpty        ErrorCode = "QUERY_EMPTY"
	ErrCodePipelineRunFailed ErrorCode = "PIPELINE_RUN_FAILED"
)

// Sentinel returns the comparable error value for a code. Stage packages
// expose these as exported vars so callers can test them with errors.Is.
func Sentinel(code ErrorCode) error {
	return stderrors.New(string(code))
}

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Pipeline Stage Errors
// ==========================

// StageError represents an error raised inside a pipeline node. Retries is
// the recommended re-run budget for the failed stage.
type StageError struct {
	Code      string                 `json:"code"`
	NodeID    string                 `json:"nodeId"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Retries   int                    `json:"retries"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

func (e *StageError) Error() string {
	return fmt.Sprintf("StageError[%s] node=%s: %s", e.Code, e.NodeID, e.Message)
}

// ToVariables returns a map suitable for audit records and run events.
func (e *StageError) ToVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"nodeId":       e.NodeID,
		"retryable":    e.Retryable,
	}

	if e.Variables != nil {
		for k, v := range e.Variables {
			vars[k] = v
		}
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewExtractionFailedError creates a retryable vision-model extraction error.
func NewExtractionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExtractionFailed,
		Message:   "Vision model extraction failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDocumentStoreFailedError creates a retryable document storage error.
func NewDocumentStoreFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDocumentStoreFailed,
		Message:   "Failed to store extracted document",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewReflectionFailedError creates a retryable reflection error.
func NewReflectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeReflectionFailed,
		Message:   "Reflection model call failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPipelineRunFailedError creates a non-retryable catch-all for run
// failures that no stage sentinel claims (engine errors, cancellations).
func NewPipelineRunFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePipelineRunFailed,
		Message:   "Verification run failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion for Pipeline Nodes
// ==========================

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeExtractionFailed,
		ErrCodeDocumentStoreFailed,
		ErrCodeIndexCreateFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeAuditInsertFailed,
		ErrCodeReflectionFailed,
		ErrCodeWebSearchFailed,
		ErrCodeLLMSynthesisFailed:
		return 3

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToStageError converts a StandardError into a StageError for the
// run-failure path.
func ConvertToStageError(nodeID string, stdErr *StandardError) *StageError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &StageError{
		Code:      string(stdErr.Code),
		NodeID:    nodeID,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		Variables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "EXTRACTION") || strings.Contains(codeStr, "DOCUMENT"):
		return "EXTRACTION"
	case strings.Contains(codeStr, "SEARCH") && !strings.Contains(codeStr, "WEB"):
		return "SEARCH"
	case strings.Contains(codeStr, "AUDIT"):
		return "DATABASE"
	case strings.Contains(codeStr, "LLM") || strings.Contains(codeStr, "REFLECTION") ||
		strings.Contains(codeStr, "WEB"):
		return "AI"
	case strings.Contains(codeStr, "QUERY"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
