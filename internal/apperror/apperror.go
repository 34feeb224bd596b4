// Package apperror defines the error kinds shared by the client controllers,
// the backend services and the HTTP layer.
//
// Every kind is a sentinel wrapped by *AppError, so callers can branch with
// errors.Is while still getting a human-readable message:
//
//	if errors.Is(err, apperror.ErrInvalidCredentials) { ... }
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	// ErrUnauthorized means the request carried no usable credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// Session kinds. The login/register screens only ever show one of these.
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrLoginFailed        = errors.New("login failed")
	ErrEmailExists        = errors.New("email already registered")
	ErrUsernameExists     = errors.New("username already taken")

	// ErrUpstream marks a failure reported by a third-party metadata API.
	ErrUpstream = errors.New("upstream error")
)

type AppError struct {
	Err     error  // sentinel kind
	Code    string // Optional: machine-readable code for API bodies ("duplicate_entry")
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

// Coded builds an AppError of kind err with an explicit API code.
func Coded(err error, code, message string) *AppError {
	return &AppError{Err: err, Code: code, Message: message}
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized is returned when a token is missing, expired or invalid.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// InvalidCredentials is the login failure shown as "incorrect credentials".
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: ErrInvalidCredentials.Error(),
	}
}

// LoginFailed carries the server's detail when it sent one.
func LoginFailed(detail string) *AppError {
	msg := ErrLoginFailed.Error()
	if detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, detail)
	}
	return &AppError{
		Err:     ErrLoginFailed,
		Message: msg,
	}
}

func EmailExists(email string) *AppError {
	return &AppError{
		Err:     ErrEmailExists,
		Message: fmt.Sprintf("an account with email %q already exists", email),
		Field:   "email",
	}
}

func UsernameExists(username string) *AppError {
	return &AppError{
		Err:     ErrUsernameExists,
		Message: fmt.Sprintf("username %q is already taken", username),
		Field:   "username",
	}
}

// Upstream reports a non-2xx answer from a metadata provider.
func Upstream(provider string, status int) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Message: fmt.Sprintf("%s responded with HTTP %d", provider, status),
	}
}
