package ui

import (
	"errors"
	"fmt"

	"mcpdesk/internal/domain"
)

// Error is a presentation-friendly error with a stable code.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for presentation.
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeEmptyScope         = "EMPTY_SCOPE"
	ErrCodeUnreachable        = "REMOTE_UNREACHABLE"
	ErrCodeRemoteRejected     = "REMOTE_REJECTED"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeSuperseded         = "SUPERSEDED"
	ErrCodeOperationCancelled = "OPERATION_CANCELLED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// MapDomainError converts domain errors to Error.
func MapDomainError(err error) *Error {
	if err == nil {
		return nil
	}
	var uiErr *Error
	if errors.As(err, &uiErr) {
		return uiErr
	}

	switch {
	case errors.Is(err, domain.ErrSuperseded):
		return NewError(ErrCodeSuperseded, "Request superseded by a newer one")
	case errors.Is(err, domain.ErrEmptyScope):
		return NewError(ErrCodeEmptyScope, "Nothing to toggle")
	}

	code, _ := domain.CodeFrom(err)
	switch code {
	case domain.CodeValidation:
		return NewErrorWithDetails(ErrCodeInvalidRequest, "Invalid request", err.Error())
	case domain.CodeTransport:
		return NewErrorWithDetails(ErrCodeUnreachable, "Management service unreachable", err.Error())
	case domain.CodeRemote:
		return NewErrorWithDetails(ErrCodeRemoteRejected, "Management service rejected the request", remoteMessage(err))
	case domain.CodeNotFound:
		return NewErrorWithDetails(ErrCodeNotFound, "Not found", err.Error())
	case domain.CodeCanceled:
		return NewError(ErrCodeOperationCancelled, "Operation cancelled")
	default:
		return NewErrorWithDetails(ErrCodeInternal, "Internal error", err.Error())
	}
}

func remoteMessage(err error) string {
	var domainErr *domain.Error
	if errors.As(err, &domainErr) && domainErr.Message != "" {
		return domainErr.Message
	}
	return err.Error()
}

// NewError creates a new Error with code and message.
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithDetails creates a new Error with code, message, and details.
func NewErrorWithDetails(code, message, details string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: details,
	}
}
