package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError_Format(t *testing.T) {
	require.Equal(t, "list: TRANSPORT: dial tcp: refused", Transport("list", errors.New("dial tcp: refused")).Error())
	require.Equal(t, "VALIDATION: bad", (&Error{Code: CodeValidation, Message: "bad"}).Error())

	remote := RemoteFailure("toggle", "server not found", 404)
	require.Equal(t, "404", remote.Meta["status"])
	require.True(t, IsRemote(fmt.Errorf("wrapped: %w", remote)))
}

func TestWrap_KeepsExistingOp(t *testing.T) {
	inner := Validation("query.validate", "page must be >= 1")
	require.Same(t, inner, Wrap(CodeInternal, "sync.fetch", inner))

	bare := &Error{Code: CodeRemote, Message: "boom"}
	wrapped := Wrap(CodeInternal, "sync.fetch", bare)
	require.Equal(t, "sync.fetch", wrapped.Op)
	require.Equal(t, CodeRemote, wrapped.Code)

	require.Nil(t, Wrap(CodeInternal, "op", nil))
}

func TestCodeFrom(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCode
		ok   bool
	}{
		{err: nil},
		{err: errors.New("plain")},
		{err: ErrEmptyScope, want: CodeValidation, ok: true},
		{err: fmt.Errorf("x: %w", ErrUnknownServer), want: CodeNotFound, ok: true},
		{err: context.Canceled, want: CodeCanceled, ok: true},
		{err: E(CodeTransport, "op", "", ErrEmptyScope), want: CodeTransport, ok: true},
	}
	for _, tt := range tests {
		code, ok := CodeFrom(tt.err)
		require.Equal(t, tt.ok, ok, "%v", tt.err)
		require.Equal(t, tt.want, code, "%v", tt.err)
	}
}
