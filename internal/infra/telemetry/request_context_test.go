package telemetry

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestEnsureRequestMetaGeneratesID(t *testing.T) {
	ctx, meta := EnsureRequestMeta(context.Background())
	require.NotEmpty(t, meta.RequestID)

	got, ok := RequestMetaFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, meta.RequestID, got.RequestID)
}

func TestEnsureRequestMetaKeepsExistingID(t *testing.T) {
	ctx := WithRequestMeta(context.Background(), RequestMeta{RequestID: "req-123"})
	_, meta := EnsureRequestMeta(ctx)
	require.Equal(t, "req-123", meta.RequestID)
}

func TestTraceSpanFromContext(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("0123456789abcdef")
	require.NoError(t, err)
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	_, meta := EnsureRequestMeta(ctx)
	require.Equal(t, traceID.String(), meta.TraceID)
	require.Equal(t, spanID.String(), meta.SpanID)

	header := http.Header{}
	InjectHeaders(header, meta)
	require.Equal(t, meta.RequestID, header.Get("x-request-id"))
	require.Equal(t, traceID.String(), header.Get(TraceIDHeader))
	require.Equal(t, spanID.String(), header.Get(SpanIDHeader))
}

func TestRequestFields(t *testing.T) {
	fields := RequestFields(RequestMeta{
		RequestID: "req-1",
		TraceID:   "trace-1",
		SpanID:    "span-1",
	})
	require.Len(t, fields, 3)
	require.Equal(t, FieldRequestID, fields[0].Key)
	require.Equal(t, FieldTraceID, fields[1].Key)
	require.Equal(t, FieldSpanID, fields[2].Key)

	require.Nil(t, RequestFields(RequestMeta{}))
}
