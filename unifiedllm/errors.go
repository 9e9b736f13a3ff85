package unifiedllm

import (
	"context"
	"errors"
	"fmt"
)

// SDKError is the base error type for all completion-boundary errors.
type SDKError struct {
	Message string
	Cause   error
}

func (e *SDKError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SDKError) Unwrap() error {
	return e.Cause
}

// ProviderError represents an error returned by an LLM provider.
type ProviderError struct {
	SDKError
	Provider   string
	StatusCode int
	ErrorCode  string
	Retryable  bool
	RetryAfter *float64
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("[%s] %s (status=%d, retryable=%v)", e.Provider, e.Message, e.StatusCode, e.Retryable)
}

// Concrete provider error types.

type AuthenticationError struct{ ProviderError }
type AccessDeniedError struct{ ProviderError }
type NotFoundError struct{ ProviderError }
type InvalidRequestError struct{ ProviderError }
type RateLimitError struct{ ProviderError }
type ServerError struct{ ProviderError }
type ContentFilterError struct{ ProviderError }
type ContextLengthError struct{ ProviderError }
type QuotaExceededError struct{ ProviderError }

// Non-provider errors.

type RequestTimeoutError struct{ SDKError }
type AbortError struct{ SDKError }
type NetworkError struct{ SDKError }
type ConfigurationError struct{ SDKError }

// ErrorFromStatusCode maps an HTTP status code to the appropriate error type.
func ErrorFromStatusCode(statusCode int, message, provider, errorCode string, retryAfter *float64) error {
	pe := ProviderError{
		SDKError:   SDKError{Message: message},
		Provider:   provider,
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		RetryAfter: retryAfter,
	}

	switch statusCode {
	case 400, 422:
		return &InvalidRequestError{ProviderError: pe}
	case 401:
		return &AuthenticationError{ProviderError: pe}
	case 402:
		return &QuotaExceededError{ProviderError: pe}
	case 403:
		return &AccessDeniedError{ProviderError: pe}
	case 404:
		return &NotFoundError{ProviderError: pe}
	case 408:
		return &RequestTimeoutError{SDKError: SDKError{Message: message}}
	case 413:
		return &ContextLengthError{ProviderError: pe}
	case 429:
		pe.Retryable = true
		return &RateLimitError{ProviderError: pe}
	case 500, 502, 503, 504, 529:
		pe.Retryable = true
		return &ServerError{ProviderError: pe}
	default:
		// Unknown errors default to retryable.
		pe.Retryable = true
		return &pe
	}
}

// ErrorFromTransport classifies an error that did not carry an HTTP status:
// deadline expiry becomes a RequestTimeoutError, cancellation an AbortError,
// everything else a NetworkError.
func ErrorFromTransport(provider string, err error) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf("%s request failed", provider)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &RequestTimeoutError{SDKError: SDKError{Message: msg, Cause: err}}
	case errors.Is(err, context.Canceled):
		return &AbortError{SDKError: SDKError{Message: msg, Cause: err}}
	default:
		return &NetworkError{SDKError: SDKError{Message: msg, Cause: err}}
	}
}

// IsRetryable reports whether err is safe to retry. Errors are matched
// through wrapping, so fmt.Errorf("...: %w", err) classifies like err.
// Anything unrecognised is treated as retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.As(err, new(*AuthenticationError)),
		errors.As(err, new(*AccessDeniedError)),
		errors.As(err, new(*NotFoundError)),
		errors.As(err, new(*InvalidRequestError)),
		errors.As(err, new(*ContextLengthError)),
		errors.As(err, new(*QuotaExceededError)),
		errors.As(err, new(*ContentFilterError)),
		errors.As(err, new(*ConfigurationError)),
		errors.As(err, new(*AbortError)):
		return false
	case errors.As(err, new(*RateLimitError)),
		errors.As(err, new(*ServerError)),
		errors.As(err, new(*NetworkError)),
		errors.As(err, new(*RequestTimeoutError)):
		return true
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return !errors.Is(err, context.Canceled)
}
