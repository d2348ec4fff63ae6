/*
Copyright 2024 The Attic Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package httpapi

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// loggingResponseWriter is the ubiquitous reimplementation of a response
// writer that allows access to the HTTP status code in middleware.
type loggingResponseWriter struct {
	next http.ResponseWriter
	code int
}

var _ http.ResponseWriter = &loggingResponseWriter{}

func (w *loggingResponseWriter) Header() http.Header {
	return w.next.Header()
}

func (w *loggingResponseWriter) Write(body []byte) (int, error) {
	return w.next.Write(body)
}

func (w *loggingResponseWriter) WriteHeader(statusCode int) {
	w.code = statusCode
	w.next.WriteHeader(statusCode)
}

func (w *loggingResponseWriter) StatusCode() int {
	if w.code == 0 {
		return http.StatusOK
	}

	return w.code
}

// logValuesFromSpanContext gets a generic set of fields from a span for
// logging.
func logValuesFromSpanContext(s trace.SpanContext) []zap.Field {
	return []zap.Field{
		zap.String("span.id", s.SpanID().String()),
		zap.String("trace.id", s.TraceID().String()),
	}
}

// LoggingSpanProcessor is an OpenTelemetry span processor that logs to the
// configured zap logger rather than shipping spans anywhere; it is always
// installed, with an OTLP exporter added alongside it when configured.
type LoggingSpanProcessor struct {
	Logger *zap.Logger
}

var _ sdktrace.SpanProcessor = &LoggingSpanProcessor{}

func (p *LoggingSpanProcessor) fieldsFor(s interface{ Attributes() []attribute.KeyValue }) []zap.Field {
	fields := []zap.Field{}

	for _, attr := range s.Attributes() {
		fields = append(fields, zap.String(string(attr.Key), attr.Value.Emit()))
	}

	return fields
}

func (p *LoggingSpanProcessor) OnStart(_ context.Context, s sdktrace.ReadWriteSpan) {
	fields := append(logValuesFromSpanContext(s.SpanContext()), p.fieldsFor(s)...)
	p.Logger.Info("request started", fields...)
}

func (p *LoggingSpanProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	fields := append(logValuesFromSpanContext(s.SpanContext()), p.fieldsFor(s)...)
	p.Logger.Info("request completed", fields...)
}

func (*LoggingSpanProcessor) Shutdown(context.Context) error   { return nil }
func (*LoggingSpanProcessor) ForceFlush(context.Context) error { return nil }

// requestLoggerKey is the context key under which the per-request logger
// (enriched with trace/span IDs) is stored.
type requestLoggerKey struct{}

// loggerFromContext returns the request-scoped logger, falling back to the
// global one if the logging middleware wasn't installed (e.g. in tests).
func loggerFromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if logger, ok := ctx.Value(requestLoggerKey{}).(*zap.Logger); ok {
		return logger
	}

	return fallback
}

// Logger attaches tracing and a request-scoped logger to the request
// context, and emits a span for the request lifetime.
func Logger(base *zap.Logger, tracer trace.Tracer) func(http.Handler) http.Handler {
	propagator := otel.GetTextMapPropagator()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			ctx, span := tracer.Start(ctx, r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			span.SetAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
			)

			requestLogger := base.With(logValuesFromSpanContext(span.SpanContext())...)
			ctx = context.WithValue(ctx, requestLoggerKey{}, requestLogger)

			writer := &loggingResponseWriter{next: w}

			start := time.Now()
			next.ServeHTTP(writer, r.WithContext(ctx))
			elapsed := time.Since(start)

			span.SetAttributes(attribute.Int("http.status_code", writer.StatusCode()))

			requestLogger.Info("request handled",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", writer.StatusCode()),
				zap.Duration("elapsed", elapsed),
			)
		})
	}
}

// Timeout bounds the time a request may run for.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}
