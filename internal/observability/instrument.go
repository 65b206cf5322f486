// Package observability configures process-wide logging and trace
// propagation for the CLI.
package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// instrumentationName identifies log records bridged into OpenTelemetry.
const instrumentationName = "github.com/florianilch/allegro-rest"

// ShutdownFunc flushes buffered telemetry.
type ShutdownFunc func(context.Context) error

// Instrument installs the default slog logger for the given format:
//
//   - text, json: slog handlers on stderr (stdout is reserved for API output)
//   - otel: OpenTelemetry log records printed to stderr
//   - otlp: OpenTelemetry log records exported over OTLP; the protocol
//     follows OTEL_EXPORTER_OTLP_PROTOCOL (http/protobuf by default, or grpc)
//
// It also registers the W3C trace context propagator used by the callback
// server and the API client. The returned function must be called before exit.
func Instrument(ctx context.Context, level slog.Level, logFormat string) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	switch format := strings.ToLower(logFormat); format {
	case "otel", "otlp":
		exporter, err := newExporter(ctx, format)
		if err != nil {
			return nil, fmt.Errorf("creating log exporter: %w", err)
		}
		provider := newLoggerProvider(exporter, format == "otlp", level)
		global.SetLoggerProvider(provider)
		slog.SetDefault(slog.New(otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(provider))))
		return provider.Shutdown, nil
	default:
		handler, err := newStdHandler(os.Stderr, level, logFormat)
		if err != nil {
			return nil, err
		}
		slog.SetDefault(slog.New(handler))
		return func(context.Context) error { return nil }, nil
	}
}

// newStdHandler creates a handler for human-readable logs enriched with
// trace correlation ids.
func newStdHandler(w io.Writer, level slog.Level, logFormat string) (slog.Handler, error) {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactSecrets,
	}

	var handler slog.Handler
	switch strings.ToLower(logFormat) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q (expected: text, json, otel, otlp)", logFormat)
	}

	return newTraceContextHandler(handler), nil
}

func newExporter(ctx context.Context, format string) (sdklog.Exporter, error) {
	if format == "otel" {
		return stdoutlog.New(stdoutlog.WithWriter(os.Stderr))
	}

	protocol := os.Getenv("OTEL_EXPORTER_OTLP_LOGS_PROTOCOL")
	if protocol == "" {
		protocol = os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL")
	}
	if protocol == "grpc" {
		return otlploggrpc.New(ctx)
	}
	return otlploghttp.New(ctx)
}

// newLoggerProvider batches records for remote export and writes them
// synchronously otherwise. Records below level are dropped before export.
func newLoggerProvider(exporter sdklog.Exporter, batch bool, level slog.Level) *sdklog.LoggerProvider {
	var processor sdklog.Processor
	if batch {
		processor = sdklog.NewBatchProcessor(exporter)
	} else {
		processor = sdklog.NewSimpleProcessor(exporter)
	}

	return sdklog.NewLoggerProvider(
		sdklog.WithProcessor(minsev.NewLogProcessor(processor, minSeverity(level))),
	)
}

func minSeverity(level slog.Level) minsev.Severity {
	switch {
	case level <= slog.LevelDebug:
		return minsev.SeverityDebug
	case level <= slog.LevelInfo:
		return minsev.SeverityInfo
	case level <= slog.LevelWarn:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
