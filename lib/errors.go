package gantry

import (
	"fmt"
	"net/http"
	"time"
)

// Kind identifies a class of application failure. The set is closed: every
// error that crosses a component boundary carries exactly one Kind, and every
// Kind maps to exactly one default transport status code.
type Kind string

const (
	KindAuthRequired           Kind = "AUTH_REQUIRED"
	KindAuthInvalidToken       Kind = "AUTH_INVALID_TOKEN"
	KindAuthExpiredToken       Kind = "AUTH_EXPIRED_TOKEN"
	KindAuthInvalidCredentials Kind = "AUTH_INVALID_CREDENTIALS"
	KindForbidden              Kind = "FORBIDDEN"
	KindAdminRequired          Kind = "ADMIN_REQUIRED"
	KindInsufficientPerms      Kind = "INSUFFICIENT_PERMISSIONS"
	KindValidation             Kind = "VALIDATION_ERROR"
	KindInvalidInput           Kind = "INVALID_INPUT"
	KindMissingField           Kind = "MISSING_REQUIRED_FIELD"
	KindNotFound               Kind = "NOT_FOUND"
	KindAlreadyExists          Kind = "ALREADY_EXISTS"
	KindConflict               Kind = "CONFLICT"
	KindInternal               Kind = "INTERNAL_ERROR"
	KindDatabase               Kind = "DATABASE_ERROR"
	KindServiceUnavailable     Kind = "SERVICE_UNAVAILABLE"
	KindExternalService        Kind = "EXTERNAL_SERVICE_ERROR"
	KindRateLimited            Kind = "RATE_LIMITED"
	KindTimeout                Kind = "TIMEOUT"
)

// kindDefault holds the default status code and message for an error kind.
type kindDefault struct {
	status  int
	message string
}

var kindDefaults = map[Kind]kindDefault{
	KindAuthRequired:           {http.StatusUnauthorized, "Please log in to continue"},
	KindAuthInvalidToken:       {http.StatusUnauthorized, "The provided token is invalid"},
	KindAuthExpiredToken:       {http.StatusUnauthorized, "Your session has expired, please log in again"},
	KindAuthInvalidCredentials: {http.StatusUnauthorized, "Invalid credentials"},
	KindForbidden:              {http.StatusForbidden, "You don't have permission to access this resource"},
	KindAdminRequired:          {http.StatusForbidden, "Administrator access is required"},
	KindInsufficientPerms:      {http.StatusForbidden, "You don't have sufficient permissions for this action"},
	KindValidation:             {http.StatusBadRequest, "The request data is invalid"},
	KindInvalidInput:           {http.StatusBadRequest, "The provided input is invalid"},
	KindMissingField:           {http.StatusBadRequest, "A required field is missing"},
	KindNotFound:               {http.StatusNotFound, "The requested resource was not found"},
	KindAlreadyExists:          {http.StatusConflict, "The resource already exists"},
	KindConflict:               {http.StatusConflict, "The request conflicts with the current state of the resource"},
	KindInternal:               {http.StatusInternalServerError, "An unexpected error occurred"},
	KindDatabase:               {http.StatusInternalServerError, "A database error occurred"},
	KindServiceUnavailable:     {http.StatusServiceUnavailable, "The service is temporarily unavailable"},
	KindExternalService:        {http.StatusBadGateway, "An external service returned an error"},
	KindRateLimited:            {http.StatusTooManyRequests, "Too many requests, please slow down"},
	KindTimeout:                {http.StatusGatewayTimeout, "The operation timed out"},
}

// retryableKinds are a hint to client-side retry policy. Nothing on the
// server retries on the caller's behalf.
var retryableKinds = map[Kind]bool{
	KindServiceUnavailable: true,
	KindTimeout:            true,
	KindRateLimited:        true,
	KindDatabase:           true,
}

// Error is a structured application failure. It is constructed where the
// failure is detected, propagated upward through the guard chain, and
// converted into an Envelope at the transport boundary. Cause is kept for
// server-side diagnostics only and is never serialized.
type Error struct {
	Kind      Kind
	Message   string
	Details   map[string]any
	Status    int
	Timestamp time.Time
	Cause     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap exposes the causing error for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Envelope is the wire-format error structure returned to callers. Clients
// are expected to branch on Code, not on message text.
type Envelope struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// Envelope converts the error into its wire-format representation.
func (e *Error) Envelope() Envelope {
	return Envelope{
		Code:      string(e.Kind),
		Message:   e.Message,
		Details:   e.Details,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
	}
}

// ErrorOption customizes an Error at construction.
type ErrorOption func(*Error)

// WithMessage overrides the kind's default message.
func WithMessage(msg string) ErrorOption {
	return func(e *Error) { e.Message = msg }
}

// WithDetails attaches a structured details payload.
func WithDetails(details map[string]any) ErrorOption {
	return func(e *Error) { e.Details = details }
}

// WithStatus overrides the kind's default transport status code.
func WithStatus(status int) ErrorOption {
	return func(e *Error) { e.Status = status }
}

// WithCause chains the underlying error for diagnostics.
func WithCause(cause error) ErrorOption {
	return func(e *Error) { e.Cause = cause }
}

// NewError constructs an Error of the given kind. Message and status default
// per kind; unknown kinds fall back to INTERNAL_ERROR defaults.
func NewError(kind Kind, opts ...ErrorOption) *Error {
	def, ok := kindDefaults[kind]
	if !ok {
		def = kindDefaults[KindInternal]
	}

	e := &Error{
		Kind:      kind,
		Message:   def.message,
		Status:    def.status,
		Timestamp: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Coerce normalizes an arbitrary failure into an *Error. An *Error passes
// through unchanged; any other error is wrapped with the default kind,
// keeping its message and chaining it as the cause. Coerce never fails.
func Coerce(err error, kind Kind) *Error {
	if err == nil {
		return NewError(kind)
	}
	if appErr, ok := err.(*Error); ok {
		return appErr
	}
	return NewError(kind, WithMessage(err.Error()), WithCause(err))
}

// Retryable reports whether the kind is a hint that the caller may retry.
func Retryable(kind Kind) bool {
	return retryableKinds[kind]
}

// StatusFor returns the default transport status code for a kind.
func StatusFor(kind Kind) int {
	if def, ok := kindDefaults[kind]; ok {
		return def.status
	}
	return http.StatusInternalServerError
}
