package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEndpointNotFound     = errors.New("endpoint not found")
	ErrServiceNotFound      = errors.New("endpoint service not found")
	ErrMissingParameter     = errors.New("missing required parameter")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrOtpInvalid           = errors.New("invalid one-time password")
	ErrTokenExpired         = errors.New("token expired")
	ErrTokenInvalid         = errors.New("token invalid")
	ErrIntegrityBroken      = errors.New("session identity is broken")
	ErrIdentityNotFound     = errors.New("identity not found")
	ErrIdentityExists       = errors.New("identity already exists")
	ErrPluginNotFound       = errors.New("plugin not found")
	ErrNotHTTPContext       = errors.New("dispatcher requires an http request context")
	ErrInvalidPermission    = errors.New("invalid permission definition")
)

// MissingParameterError is returned when an endpoint method is called without
// one of its required parameters. The message reflects a caller mistake and is
// safe to show to API clients.
type MissingParameterError struct {
	Parameter string
	Method    string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("parameter %q of method %q is required", e.Parameter, e.Method)
}

func (e *MissingParameterError) Unwrap() error { return ErrMissingParameter }

// EndpointError wraps any failure raised inside an endpoint action.
type EndpointError struct {
	Package string
	Signal  string
	Err     error
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("endpoint %s/%s: %v", e.Package, e.Signal, e.Err)
}

func (e *EndpointError) Unwrap() error { return e.Err }

// UserMessage is a human readable failure meant for the operator, e.g. a
// rejected form value. Unlike other errors its text is never hidden.
type UserMessage struct {
	Message string
}

func (e *UserMessage) Error() string { return e.Message }

// NewUserMessage builds a UserMessage.
func NewUserMessage(format string, args ...any) error {
	return &UserMessage{Message: fmt.Sprintf(format, args...)}
}
