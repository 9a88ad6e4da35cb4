package domain

import (
	"context"
	"errors"
	"fmt"
)

type ErrorCode string

const (
	// CodeValidation marks a malformed local request rejected before any remote call.
	CodeValidation ErrorCode = "VALIDATION"
	// CodeTransport marks a network or connectivity failure.
	CodeTransport ErrorCode = "TRANSPORT"
	// CodeRemote marks a collaborator response that reported failure.
	CodeRemote   ErrorCode = "REMOTE"
	CodeNotFound ErrorCode = "NOT_FOUND"
	CodeCanceled ErrorCode = "CANCELED"
	CodeInternal ErrorCode = "INTERNAL"
)

var (
	// ErrSuperseded is returned to the caller of a fetch whose result was discarded
	// because a newer request was issued before it resolved.
	ErrSuperseded = errors.New("request superseded by a newer request")
	// ErrEmptyScope indicates a toggle scope resolved to no tools.
	ErrEmptyScope = errors.New("scope matched no tools")
	// ErrUnknownTool indicates a tool id is not present in the local collection.
	ErrUnknownTool = errors.New("tool not loaded")
	// ErrUnknownServer indicates a server id is not known locally or remotely.
	ErrUnknownServer = errors.New("server not found")
)

type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
	Meta    map[string]string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Op == "" {
		if msg == "" {
			return string(e.Code)
		}
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func E(code ErrorCode, op, msg string, cause error) *Error {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Code:    code,
		Op:      op,
		Message: msg,
		Cause:   cause,
	}
}

// Validation builds a validation error for op.
func Validation(op, msg string) *Error {
	return E(CodeValidation, op, msg, nil)
}

// Transport wraps a connectivity failure.
func Transport(op string, cause error) *Error {
	return E(CodeTransport, op, "", cause)
}

// RemoteFailure builds an error for a collaborator that answered with success=false.
func RemoteFailure(op, msg string, status int) *Error {
	err := E(CodeRemote, op, msg, nil)
	if status > 0 {
		err.Meta = map[string]string{"status": fmt.Sprintf("%d", status)}
	}
	return err
}

func Wrap(code ErrorCode, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		if existing.Op != "" || op == "" {
			return existing
		}
		return &Error{
			Code:    existing.Code,
			Op:      op,
			Message: existing.Message,
			Cause:   existing.Cause,
			Meta:    existing.Meta,
		}
	}
	return E(code, op, "", err)
}

func CodeFrom(err error) (ErrorCode, bool) {
	if err == nil {
		return "", false
	}
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Code != "" {
		return domainErr.Code, true
	}
	switch {
	case errors.Is(err, ErrEmptyScope), errors.Is(err, ErrUnknownTool):
		return CodeValidation, true
	case errors.Is(err, ErrUnknownServer):
		return CodeNotFound, true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCanceled, true
	default:
		return "", false
	}
}

// IsValidation reports whether err was rejected locally.
func IsValidation(err error) bool {
	code, ok := CodeFrom(err)
	return ok && code == CodeValidation
}

// IsTransport reports whether err is a connectivity failure.
func IsTransport(err error) bool {
	code, ok := CodeFrom(err)
	return ok && code == CodeTransport
}

// IsRemote reports whether err came from a collaborator failure envelope.
func IsRemote(err error) bool {
	code, ok := CodeFrom(err)
	return ok && code == CodeRemote
}
