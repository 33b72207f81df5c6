package errors

import (
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorType represents the class of a failure seen while mirroring
type ErrorType string

const (
	ErrorTypeNetwork      ErrorType = "network"
	ErrorTypeTimeout      ErrorType = "timeout"
	ErrorTypeRateLimit    ErrorType = "rate_limit"
	ErrorTypeServerError  ErrorType = "server_error"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeAuthExpired  ErrorType = "auth_expired"
	ErrorTypeChallenge    ErrorType = "challenge"
	ErrorTypeStorage      ErrorType = "storage"
	ErrorTypeIntegrity    ErrorType = "integrity"
	ErrorTypeCorruptState ErrorType = "corrupt_state"
	ErrorTypeUnknown      ErrorType = "unknown"
)

// Error carries a classified failure. Code is the HTTP status when one was seen.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Type, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same type, so errors.Is(err, ErrAuthExpired) works
// for wrapped, code-carrying variants.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type && t.Message == "" && t.Code == 0 && t.Err == nil
}

// Sentinels for errors.Is checks.
var (
	ErrAuthExpired  = &Error{Type: ErrorTypeAuthExpired}
	ErrChallenge    = &Error{Type: ErrorTypeChallenge}
	ErrCorruptState = &Error{Type: ErrorTypeCorruptState}
	ErrIntegrity    = &Error{Type: ErrorTypeIntegrity}
)

// New creates a classified error.
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap classifies err under t. A nil err yields nil.
func Wrap(t ErrorType, message string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Type: t, Message: message, Err: err}
}

// FromStatus maps an HTTP status to a classified error, or nil for 2xx.
func FromStatus(code int, url string) error {
	if code >= 200 && code < 300 {
		return nil
	}
	t := ErrorTypeUnknown
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden,
		code == 419, code == 440:
		t = ErrorTypeAuthExpired
	case code == http.StatusTooManyRequests:
		t = ErrorTypeRateLimit
	case code == http.StatusNotFound, code == http.StatusGone:
		t = ErrorTypeNotFound
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		t = ErrorTypeTimeout
	case code >= 500:
		t = ErrorTypeServerError
	}
	return &Error{Type: t, Message: url, Code: code}
}

// TypeOf returns the classification of err, looking through wrapping.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTypeTimeout
		}
		return ErrorTypeNetwork
	}
	return ErrorTypeUnknown
}

// IsAuthExpired reports whether err means the session must be re-established.
func IsAuthExpired(err error) bool {
	return TypeOf(err) == ErrorTypeAuthExpired
}

// IsChallenge reports whether err means a human verification is pending.
func IsChallenge(err error) bool {
	return TypeOf(err) == ErrorTypeChallenge
}

// IsSessionSignal reports whether err must be handed back to the orchestrator.
func IsSessionSignal(err error) bool {
	return IsAuthExpired(err) || IsChallenge(err)
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeUnknown:
		return true
	default:
		return false
	}
}

// IsRetryableError is IsRetryable applied to the classification of err.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	return IsRetryable(TypeOf(err))
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 408, 429:
		return true
	case 401, 403, 404, 410:
		return false
	default:
		return statusCode >= 500
	}
}
