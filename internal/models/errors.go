package models

import (
	"errors"
	"fmt"
)

type ErrorType string

const (
	ErrorTypeSecurity    ErrorType = "security"
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeRateLimited ErrorType = "rate_limited"
	ErrorTypeExternal    ErrorType = "external"
	ErrorTypeInternal    ErrorType = "internal"
	ErrorTypeTimeout     ErrorType = "timeout"
)

// AppError is the coded error carried across service boundaries.
type AppError struct {
	Type     ErrorType      `json:"type"`
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Cause    error          `json:"-"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	clone := *e
	clone.Cause = cause
	return &clone
}

func (e *AppError) WithMetadata(key string, value any) *AppError {
	clone := *e
	clone.Metadata = make(map[string]any, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		clone.Metadata[k] = v
	}
	clone.Metadata[key] = value
	return &clone
}

func newError(errType ErrorType, code, message string) *AppError {
	return &AppError{Type: errType, Code: code, Message: message}
}

func NewSecurityError(code, message string) *AppError {
	return newError(ErrorTypeSecurity, code, message)
}

func NewValidationError(code, message string) *AppError {
	return newError(ErrorTypeValidation, code, message)
}

func NewRateLimitError(code, message string) *AppError {
	return newError(ErrorTypeRateLimited, code, message)
}

func NewExternalError(code, message string) *AppError {
	return newError(ErrorTypeExternal, code, message)
}

func NewInternalError(code, message string) *AppError {
	return newError(ErrorTypeInternal, code, message)
}

func NewTimeoutError(code, message string) *AppError {
	return newError(ErrorTypeTimeout, code, message)
}

func WrapExternalError(service string, err error) *AppError {
	return NewExternalError(service+"_FAILED", "external service call failed").WithCause(err)
}

// Fatal pipeline errors. Anything else raised during judgement is
// per-story and never aborts the batch.
var (
	ErrNoTrendingNews        = NewExternalError("NO_TRENDING_NEWS", "no trending news available")
	ErrClassificationInvalid = NewExternalError("CLASSIFICATION_INVALID", "failed to parse classification results")
)

// IsType reports whether err is an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}
