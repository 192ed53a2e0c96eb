// Package errors provides standardized error handling for BPMN workflow integration.
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

// Review workflow error kinds
const (
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeInvalidState      ErrorCode = "INVALID_STATE"
	ErrCodeNotAuthorized     ErrorCode = "NOT_AUTHORIZED"
	ErrCodeValidation        ErrorCode = "VALIDATION_ERROR"
	ErrCodeDependencyFailure ErrorCode = "DEPENDENCY_FAILURE"

	ErrCodeInvalidJobInput ErrorCode = "INVALID_JOB_INPUT"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewNotFoundError reports a missing application, checklist or amendment.
func NewNotFoundError(resource, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Details:   fmt.Sprintf("id: %s", id),
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidStateError reports an operation attempted in the wrong lifecycle state.
func NewInvalidStateError(message string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidState,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotAuthorizedError reports a performing user who does not hold the required role.
func NewNotAuthorizedError(message string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotAuthorized,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError reports a malformed or incomplete request payload.
func NewValidationError(message string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidation,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// NewDependencyFailureError wraps a failure from persistence or a collaborator.
// The message is what callers see; the cause is kept for logging and audit.
func NewDependencyFailureError(message string, cause error) *StandardError {
	e := &StandardError{
		Code:      ErrCodeDependencyFailure,
		Message:   message,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// NewInvalidJobInputError reports job variables that fail schema or decoding checks.
func NewInvalidJobInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidJobInput,
		Message:   "Invalid job input",
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeNotFound:          "NOT_FOUND",
	ErrCodeInvalidState:      "INVALID_STATE",
	ErrCodeNotAuthorized:     "NOT_AUTHORIZED",
	ErrCodeValidation:        "VALIDATION_ERROR",
	ErrCodeDependencyFailure: "DEPENDENCY_FAILURE",
	ErrCodeInvalidJobInput:   "INVALID_JOB_INPUT",
	ErrCodeInternal:          "INTERNAL_ERROR",
}

// GetRetryCount returns the retry count for an error code.
// Review operations are never retried by the engine.
func GetRetryCount(code ErrorCode) int {
	return 0
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: false,
		Retries:   GetRetryCount(stdErr.Code),
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandardError finds the first StandardError in err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns the code of err, or ErrCodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsPreMutation reports whether the error kind is raised before any write.
func IsPreMutation(code ErrorCode) bool {
	switch code {
	case ErrCodeNotFound, ErrCodeInvalidState, ErrCodeNotAuthorized, ErrCodeValidation, ErrCodeInvalidJobInput:
		return true
	default:
		return false
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "AUTHORIZED"):
		return "AUTHORIZATION"
	case strings.Contains(codeStr, "STATE"), strings.Contains(codeStr, "NOT_FOUND"):
		return "WORKFLOW"
	case strings.Contains(codeStr, "VALIDATION"), strings.Contains(codeStr, "INPUT"):
		return "VALIDATION"
	case strings.Contains(codeStr, "DEPENDENCY"):
		return "DEPENDENCY"
	default:
		return "OTHER"
	}
}
