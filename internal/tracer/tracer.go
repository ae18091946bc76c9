// Package tracer provides the tracing abstraction used by compilation and
// extraction. It supports OpenTelemetry and custom tracer implementations.
package tracer

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans. Implementations can provide OpenTelemetry, Jaeger, or
// custom tracing.
type Tracer interface {
	// StartSpan starts a new tracing span with the given name
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span represents a tracing span that captures the execution of an operation.
type Span interface {
	// SetAttributes sets key-value attributes on the span
	SetAttributes(attrs ...attribute.KeyValue)
	// RecordError records an error that occurred during the span
	RecordError(err error)
	// SetStatus sets the status code and description of the span
	SetStatus(code codes.Code, description string)
	// End marks the span as complete
	End()
}

// NoopTracer is a tracer that does nothing (zero overhead when tracing is disabled).
// This is the default tracer used when no tracing is configured.
type NoopTracer struct{}

// StartSpan returns the context unchanged with a no-op span.
func (n *NoopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, &NoopSpan{}
}

// NoopSpan is a span that does nothing.
type NoopSpan struct{}

// SetAttributes does nothing.
func (n *NoopSpan) SetAttributes(_ ...attribute.KeyValue) {}

// RecordError does nothing.
func (n *NoopSpan) RecordError(_ error) {}

// SetStatus does nothing.
func (n *NoopSpan) SetStatus(_ codes.Code, _ string) {}

// End does nothing.
func (n *NoopSpan) End() {}

// OtelTracer wraps an OpenTelemetry tracer to implement the Tracer interface.
// This allows seamless integration with OpenTelemetry-based observability systems.
type OtelTracer struct {
	tracer trace.Tracer
}

// NewOtelTracer creates a new OpenTelemetry tracer adapter.
// The provided tracer must not be nil.
func NewOtelTracer(tracer trace.Tracer) *OtelTracer {
	return &OtelTracer{tracer: tracer}
}

// StartSpan starts a new OpenTelemetry span.
func (t *OtelTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, &OtelSpan{span: span}
}

// OtelSpan wraps an OpenTelemetry span.
type OtelSpan struct {
	span trace.Span
}

// SetAttributes sets OpenTelemetry attributes on the span.
func (s *OtelSpan) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

// RecordError records an error on the OpenTelemetry span.
func (s *OtelSpan) RecordError(err error) {
	s.span.RecordError(err)
}

// SetStatus sets the status of the OpenTelemetry span.
func (s *OtelSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

// End completes the OpenTelemetry span.
func (s *OtelSpan) End() {
	s.span.End()
}

// QueryMetadata describes one metadata query of an extraction stage.
// Attribute names follow the OpenTelemetry database conventions.
type QueryMetadata struct {
	// SQL is the rendered query text
	SQL string
	// Database is the dialect name (mysql, postgres, sqlite)
	Database string
	// Operation is the SQL operation type
	Operation string
	// Stage is the extraction stage the query belongs to
	Stage string
	// Rows is the number of rows folded into the catalog
	Rows int64
	// Duration is how long the query and the fold took
	Duration time.Duration
	// Error is the failure of the stage, if any
	Error error
}

// AddQueryAttributes adds database semantic convention attributes to a span.
// See: https://opentelemetry.io/docs/specs/semconv/database/
func AddQueryAttributes(span Span, meta *QueryMetadata) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", meta.Database),
		attribute.String("db.statement", meta.SQL),
		attribute.String("db.operation", meta.Operation),
		attribute.Float64("db.duration_ms", float64(meta.Duration.Microseconds())/1000.0),
	}
	if meta.Stage != "" {
		attrs = append(attrs, attribute.String("rse.stage", meta.Stage))
	}
	if meta.Rows > 0 {
		attrs = append(attrs, attribute.Int64("rse.rows", meta.Rows))
	}
	span.SetAttributes(attrs...)
	finish(span, meta.Error)
}

// CompileMetadata describes one compilation of a provider tree.
type CompileMetadata struct {
	// SQL is the generated statement
	SQL string
	// Dialect is the target dialect
	Dialect string
	// Params is the number of placeholders
	Params int
	// CacheHit is true when the command came from the cache
	CacheHit bool
	// Duration is how long compilation took
	Duration time.Duration
	// Error is the compilation failure, if any
	Error error
}

// AddCompileAttributes records a compilation on span.
func AddCompileAttributes(span Span, meta *CompileMetadata) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", meta.Dialect),
		attribute.Bool("rse.cache_hit", meta.CacheHit),
		attribute.Float64("rse.compile_ms", float64(meta.Duration.Microseconds())/1000.0),
	}
	if meta.SQL != "" {
		attrs = append(attrs,
			attribute.String("db.statement", meta.SQL),
			attribute.String("db.operation", DetectOperation(meta.SQL)),
			attribute.Int("rse.params", meta.Params))
	}
	span.SetAttributes(attrs...)
	finish(span, meta.Error)
}

// Fail records err on span and marks it failed.
func Fail(span Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Succeed marks span as successful.
func Succeed(span Span) {
	span.SetStatus(codes.Ok, "")
}

func finish(span Span, err error) {
	if err != nil {
		Fail(span, err)
		return
	}
	Succeed(span)
}

// DetectOperation detects the SQL operation type from the statement text.
// Leading comments are skipped. Returns SELECT, INSERT, UPDATE, DELETE or
// UNKNOWN.
func DetectOperation(sql string) string {
	sql = strings.TrimSpace(sql)
	for strings.HasPrefix(sql, "/*") {
		end := strings.Index(sql, "*/")
		if end < 0 {
			return "UNKNOWN"
		}
		sql = strings.TrimSpace(sql[end+2:])
	}
	sql = strings.ToUpper(sql)
	switch {
	case strings.HasPrefix(sql, "SELECT"), strings.HasPrefix(sql, "WITH"), strings.HasPrefix(sql, "("):
		return "SELECT"
	case strings.HasPrefix(sql, "INSERT"):
		return "INSERT"
	case strings.HasPrefix(sql, "UPDATE"):
		return "UPDATE"
	case strings.HasPrefix(sql, "DELETE"):
		return "DELETE"
	}
	return "UNKNOWN"
}
