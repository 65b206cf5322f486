package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// secretKeys are attribute keys whose values never reach the output.
var secretKeys = map[string]bool{
	"access_token":  true,
	"refresh_token": true,
	"client_secret": true,
	"code":          true,
	"authorization": true,
}

// redactSecrets is a slog.HandlerOptions.ReplaceAttr func masking secretKeys.
func redactSecrets(_ []string, attr slog.Attr) slog.Attr {
	if secretKeys[attr.Key] && attr.Value.Kind() == slog.KindString && attr.Value.String() != "" {
		return slog.String(attr.Key, "REDACTED")
	}
	return attr
}

// correlationHandler adds trace_id and span_id to records logged with a
// context carrying a valid span, e.g. callback requests that arrived with a
// traceparent header.
type correlationHandler struct {
	next slog.Handler
}

func newTraceContextHandler(next slog.Handler) slog.Handler {
	return correlationHandler{next: next}
}

func (h correlationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h correlationHandler) Handle(ctx context.Context, record slog.Record) error {
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		record.AddAttrs(
			slog.String("trace_id", spanCtx.TraceID().String()),
			slog.String("span_id", spanCtx.SpanID().String()),
		)
	}
	return h.next.Handle(ctx, record)
}

func (h correlationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return correlationHandler{next: h.next.WithAttrs(attrs)}
}

func (h correlationHandler) WithGroup(name string) slog.Handler {
	return correlationHandler{next: h.next.WithGroup(name)}
}
