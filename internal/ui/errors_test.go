package ui

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"mcpdesk/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestErrorStringFormatsDetails(t *testing.T) {
	uiErr := &Error{Code: "CODE", Message: "message", Details: "details"}
	if got := uiErr.Error(); got != "CODE: message (details)" {
		t.Fatalf("unexpected error string: %s", got)
	}

	uiErr = &Error{Code: "CODE", Message: "message"}
	if got := uiErr.Error(); got != "CODE: message" {
		t.Fatalf("unexpected error string without details: %s", got)
	}
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{name: "superseded", err: fmt.Errorf("fetch: %w", domain.ErrSuperseded), code: ErrCodeSuperseded},
		{name: "empty scope", err: domain.E(domain.CodeValidation, "batch", "", domain.ErrEmptyScope), code: ErrCodeEmptyScope},
		{name: "validation", err: domain.Validation("query", "page"), code: ErrCodeInvalidRequest},
		{name: "transport", err: domain.Transport("list", errors.New("refused")), code: ErrCodeUnreachable},
		{name: "remote", err: domain.RemoteFailure("toggle", "server not found", 404), code: ErrCodeRemoteRejected},
		{name: "not found", err: domain.ErrUnknownServer, code: ErrCodeNotFound},
		{name: "cancelled", err: context.Canceled, code: ErrCodeOperationCancelled},
		{name: "default", err: errors.New("boom"), code: ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uiErr := MapDomainError(tt.err)
			require.NotNil(t, uiErr)
			require.Equal(t, tt.code, uiErr.Code)
		})
	}

	require.Nil(t, MapDomainError(nil))
	require.Equal(t, "server not found", MapDomainError(domain.RemoteFailure("toggle", "server not found", 404)).Details)
}
