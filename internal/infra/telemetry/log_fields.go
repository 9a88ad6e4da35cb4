package telemetry

import (
	"time"

	"go.uber.org/zap"
)

const (
	FieldEvent      = "event"
	FieldOp         = "op"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldServerID   = "server_id"
	FieldToolCount  = "tool_count"
	FieldDurationMs = "duration_ms"
	FieldRequestID  = "request_id"
	FieldTraceID    = "trace_id"
	FieldSpanID     = "span_id"
)

const (
	EventRemoteCall    = "remote_call"
	EventRemoteFailure = "remote_failure"
	EventSyncTick      = "sync_tick"
	EventSyncFailure   = "sync_failure"
	EventConfigReload  = "config_reload"
)

func EventField(event string) zap.Field {
	return zap.String(FieldEvent, event)
}

func OpField(op string) zap.Field {
	return zap.String(FieldOp, op)
}

func ServerIDField(id uint) zap.Field {
	return zap.Uint(FieldServerID, id)
}

func DurationField(duration time.Duration) zap.Field {
	return zap.Int64(FieldDurationMs, duration.Milliseconds())
}

func RequestIDField(value string) zap.Field {
	return zap.String(FieldRequestID, value)
}

func TraceIDField(value string) zap.Field {
	return zap.String(FieldTraceID, value)
}

func SpanIDField(value string) zap.Field {
	return zap.String(FieldSpanID, value)
}
