package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError carrying the same code.
// This lets callers match wrapped causes against the sentinel values below.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && (t.Message == "" || e.Message == t.Message)
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithCause returns a copy of the error carrying err as its cause.
func (e *DomainError) WithCause(err error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation             = "VALIDATION_ERROR"
	ErrCodeInvalidParameter       = "INVALID_PARAMETER"
	ErrCodeInvalidQuizState       = "INVALID_QUIZ_STATE"
	ErrCodeNotFound               = "NOT_FOUND"
	ErrCodeAlreadyExists          = "ALREADY_EXISTS"
	ErrCodeVersionConflict        = "VERSION_CONFLICT"
	ErrCodeEmbeddingUnavailable   = "EMBEDDING_UNAVAILABLE"
	ErrCodeGenerationUnavailable  = "GENERATION_UNAVAILABLE"
	ErrCodeVectorIndexUnavailable = "VECTOR_INDEX_UNAVAILABLE"
	ErrCodeNotificationFailure    = "NOTIFICATION_FAILURE"
	ErrCodeUnauthorized           = "UNAUTHORIZED"
	ErrCodeInternalError          = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrInvalidChunkSize     = NewDomainError(ErrCodeInvalidParameter, "chunk size must be positive")
	ErrInvalidChunkOverlap  = NewDomainError(ErrCodeInvalidParameter, "chunk overlap must be in [0, chunk size)")
	ErrEmptyQuiz            = NewDomainError(ErrCodeInvalidQuizState, "quiz has no questions")
	ErrEmptyAttempt         = NewDomainError(ErrCodeInvalidQuizState, "attempt has no answers")
	ErrInvalidIngestStatus  = NewDomainError(ErrCodeValidation, "invalid ingest job status")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrDocumentNotFound  = NewDomainError(ErrCodeNotFound, "document not found")
	ErrQuizNotFound      = NewDomainError(ErrCodeNotFound, "quiz not found")
	ErrMasteryNotFound   = NewDomainError(ErrCodeNotFound, "mastery record not found")
	ErrSessionNotFound   = NewDomainError(ErrCodeNotFound, "conversation session not found")
	ErrIngestJobNotFound = NewDomainError(ErrCodeNotFound, "ingest job not found")
)

// Concurrency errors
var (
	ErrVersionConflict = NewDomainError(ErrCodeVersionConflict, "record was modified concurrently")
)

// Capability errors
var (
	ErrEmbeddingUnavailable   = NewDomainError(ErrCodeEmbeddingUnavailable, "embedding capability unavailable")
	ErrGenerationUnavailable  = NewDomainError(ErrCodeGenerationUnavailable, "language model unavailable")
	ErrVectorIndexUnavailable = NewDomainError(ErrCodeVectorIndexUnavailable, "vector index unavailable")
	ErrNotificationFailure    = NewDomainError(ErrCodeNotificationFailure, "notification delivery failed")
	ErrStorageOperationFail   = NewDomainError(ErrCodeInternalError, "storage operation failed")
)

// HasCode reports whether err wraps a DomainError with the given code.
func HasCode(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}
