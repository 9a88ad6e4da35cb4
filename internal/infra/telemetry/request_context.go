package telemetry

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"mcpdesk/internal/domain"
)

const (
	TraceIDHeader = "x-trace-id"
	SpanIDHeader  = "x-span-id"
)

type requestContextKey struct{}

// RequestMeta identifies one outgoing call to the management service.
type RequestMeta struct {
	RequestID string
	TraceID   string
	SpanID    string
}

func (m RequestMeta) IsZero() bool {
	return m.RequestID == "" && m.TraceID == "" && m.SpanID == ""
}

func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	if meta.IsZero() {
		return ctx
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestContextKey{}, meta)
}

func RequestMetaFromContext(ctx context.Context) (RequestMeta, bool) {
	if ctx == nil {
		return RequestMeta{}, false
	}
	meta, ok := ctx.Value(requestContextKey{}).(RequestMeta)
	return meta, ok && !meta.IsZero()
}

func NewRequestID() string {
	return uuid.NewString()
}

func TraceSpanFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.IsValid() {
		return "", ""
	}
	return spanCtx.TraceID().String(), spanCtx.SpanID().String()
}

// EnsureRequestMeta returns ctx carrying request metadata. A request id already on ctx is
// kept; otherwise a new one is generated.
func EnsureRequestMeta(ctx context.Context) (context.Context, RequestMeta) {
	requestID := ""
	if existing, ok := RequestMetaFromContext(ctx); ok {
		requestID = existing.RequestID
	}
	if requestID == "" {
		requestID = NewRequestID()
	}
	traceID, spanID := TraceSpanFromContext(ctx)
	meta := RequestMeta{RequestID: requestID, TraceID: traceID, SpanID: spanID}
	return WithRequestMeta(ctx, meta), meta
}

// InjectHeaders copies meta onto an outgoing request.
func InjectHeaders(header http.Header, meta RequestMeta) {
	if meta.RequestID != "" {
		header.Set(domain.RequestIDHeader, meta.RequestID)
	}
	if meta.TraceID != "" {
		header.Set(TraceIDHeader, meta.TraceID)
	}
	if meta.SpanID != "" {
		header.Set(SpanIDHeader, meta.SpanID)
	}
}

func RequestFields(meta RequestMeta) []zap.Field {
	if meta.IsZero() {
		return nil
	}
	fields := make([]zap.Field, 0, 3)
	if meta.RequestID != "" {
		fields = append(fields, RequestIDField(meta.RequestID))
	}
	if meta.TraceID != "" {
		fields = append(fields, TraceIDField(meta.TraceID))
	}
	if meta.SpanID != "" {
		fields = append(fields, SpanIDField(meta.SpanID))
	}
	return fields
}

func LoggerWithRequest(ctx context.Context, base *zap.Logger) *zap.Logger {
	logger := base
	if logger == nil {
		logger = zap.NewNop()
	}
	meta, ok := RequestMetaFromContext(ctx)
	if !ok {
		return logger
	}
	return logger.With(RequestFields(meta)...)
}
