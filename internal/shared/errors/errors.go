package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error types for the sync core
type ErrorType string

const (
	ErrorTypeAuthentication ErrorType = "AUTHENTICATION_ERROR"
	ErrorTypeValidation     ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound       ErrorType = "NOT_FOUND_ERROR"
	ErrorTypeRemote         ErrorType = "REMOTE_ERROR"
)

// Error codes carried by AppError.Code
const (
	CodeNotSignedIn            = "not-signed-in"
	CodeInvalidCredentials     = "invalid-credentials"
	CodeNotRegistered          = "not-registered"
	CodeEmailTaken             = "email-taken"
	CodeForbidden              = "forbidden"
	CodeUnknown                = "unknown"
	CodeFollowEdgeInconsistent = "follow-edge-inconsistent"
	CodeMalformedDocument      = "malformed-document"
	CodeEmptyText              = "empty-text"
)

// Sentinel errors
var (
	ErrNotFound         = errors.New("resource not found")
	ErrDocumentNotFound = errors.New("document not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrInvalidPath      = errors.New("invalid document path")
	ErrStoreClosed      = errors.New("document store closed")
)

// AppError represents a classified error with context
type AppError struct {
	Type      ErrorType              `json:"type"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code,omitempty"`
	HTTPCode  int                    `json:"-"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Component string                 `json:"component,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new application error
func NewAppError(errorType ErrorType, message string, httpCode int) *AppError {
	return &AppError{
		Type:     errorType,
		Message:  message,
		HTTPCode: httpCode,
		Details:  make(map[string]interface{}),
	}
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithCause adds the underlying cause
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithComponent adds the component name
func (e *AppError) WithComponent(component string) *AppError {
	e.Component = component
	return e
}

// WithDetail adds a detail field
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewAuthError creates an authentication error (not signed in, bad credentials, forbidden)
func NewAuthError(message string) *AppError {
	return NewAppError(ErrorTypeAuthentication, message, http.StatusUnauthorized)
}

// NewForbiddenError is an AuthError raised when the actor does not own the resource
func NewForbiddenError(message string) *AppError {
	return NewAppError(ErrorTypeAuthentication, message, http.StatusForbidden).WithCode(CodeForbidden)
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return NewAppError(ErrorTypeValidation, message, http.StatusBadRequest)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// NewRemoteError creates a network/store failure error
func NewRemoteError(message string) *AppError {
	return NewAppError(ErrorTypeRemote, message, http.StatusBadGateway)
}

// NotSignedIn is the AuthError returned when no identity is authenticated
func NotSignedIn() *AppError {
	return NewAuthError("no identity is signed in").WithCode(CodeNotSignedIn)
}

// Wrap classifies err. AppErrors pass through untouched; everything else becomes a RemoteError.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, ErrDocumentNotFound) || errors.Is(err, ErrNotFound) {
		return NewNotFoundError(message).WithCause(err)
	}
	return NewRemoteError(message).WithCause(err)
}

func typeOf(err error) (ErrorType, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type, true
	}
	return "", false
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	if t, ok := typeOf(err); ok {
		return t == ErrorTypeNotFound
	}
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrDocumentNotFound)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeValidation
}

// IsAuth checks if an error is an authentication error
func IsAuth(err error) bool {
	if t, ok := typeOf(err); ok {
		return t == ErrorTypeAuthentication
	}
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenExpired)
}

// IsRemote checks if an error is a remote (network/store) error
func IsRemote(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeRemote
}

// CodeOf returns the AppError code of err, or "" when it carries none
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HTTPStatus returns the HTTP status associated with err
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.HTTPCode != 0 {
		return appErr.HTTPCode
	}
	return http.StatusInternalServerError
}
