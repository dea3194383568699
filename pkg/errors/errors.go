package errors

import (
	"errors"
	"net/http"
)

// Standard error types
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInternal           = errors.New("internal server error")
	ErrTemporaryFailure   = errors.New("temporary failure")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("timeout")
	ErrRateLimited        = errors.New("rate limited")

	// Pipeline error taxonomy. SourceUnavailable means no ledger data source
	// is bound; FetchFailed wraps an underlying ledger call error;
	// Normalization marks a raw value outside the expected encoding, which is
	// a bug upstream and never a retry candidate.
	ErrSourceUnavailable = errors.New("ledger data source unavailable")
	ErrFetchFailed       = errors.New("ledger fetch failed")
	ErrNormalization     = errors.New("normalization impossible")
)

// AppError represents a structured application error with context
type AppError struct {
	Err        error
	StatusCode int
	Message    string
	Retryable  bool
	Context    map[string]interface{}
}

// Error returns the error message
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext adds additional context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new AppError with the given parameters
func NewAppError(err error, message string, statusCode int, retryable bool) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Context:    make(map[string]interface{}),
	}
}

// IsRetryable checks if the error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError

	if errors.As(err, &appErr) {
		return appErr.Retryable
	}

	// By default, classify some standard errors as retryable
	return errors.Is(err, ErrTemporaryFailure) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(message string) *AppError {
	return NewAppError(ErrNotFound, message, http.StatusNotFound, false)
}

// NewInvalidInputError creates an invalid input error
func NewInvalidInputError(message string) *AppError {
	return NewAppError(ErrInvalidInput, message, http.StatusBadRequest, false)
}

// NewInternalError creates an internal server error
func NewInternalError(message string) *AppError {
	return NewAppError(ErrInternal, message, http.StatusInternalServerError, true)
}

// NewTemporaryError creates a temporary error
func NewTemporaryError(message string) *AppError {
	return NewAppError(ErrTemporaryFailure, message, http.StatusServiceUnavailable, true)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(message string) *AppError {
	return NewAppError(ErrTimeout, message, http.StatusGatewayTimeout, true)
}

// NewRateLimitedError creates a rate limited error
func NewRateLimitedError(message string) *AppError {
	return NewAppError(ErrRateLimited, message, http.StatusTooManyRequests, true)
}

// NewSourceUnavailableError creates an error for a missing data source. Not
// retryable: the caller has to bind a session first.
func NewSourceUnavailableError(message string) *AppError {
	return NewAppError(ErrSourceUnavailable, message, http.StatusServiceUnavailable, false)
}

// NewFetchFailedError wraps a ledger call failure. The pipeline itself never
// retries; whether to re-query is the caller's decision.
func NewFetchFailedError(message string) *AppError {
	return NewAppError(ErrFetchFailed, message, http.StatusBadGateway, false)
}

// NewNormalizationError reports a raw record outside the expected encoding.
func NewNormalizationError(message string) *AppError {
	return NewAppError(ErrNormalization, message, http.StatusInternalServerError, false)
}
