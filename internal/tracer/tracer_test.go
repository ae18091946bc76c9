package tracer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNoopTracer(t *testing.T) {
	tracer := &NoopTracer{}
	ctx := context.Background()

	// Should not panic
	_, span := tracer.StartSpan(ctx, "test.operation")
	assert.NotNil(t, span)

	span.SetAttributes(attribute.String("key", "value"))
	span.RecordError(errors.New("test error"))
	span.SetStatus(codes.Error, "error")
	span.End()
}

func TestNoopSpan(t *testing.T) {
	span := &NoopSpan{}

	// Should not panic
	span.SetAttributes(
		attribute.String("string", "value"),
		attribute.Int("int", 42),
		attribute.Bool("bool", true),
	)
	span.RecordError(errors.New("test error"))
	span.SetStatus(codes.Error, "error")
	span.End()
}

func TestOtelTracer(t *testing.T) {
	// Create in-memory exporter for testing
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	otel.SetTracerProvider(tp)

	otelTracer := otel.Tracer("test")
	tracer := NewOtelTracer(otelTracer)

	ctx := context.Background()
	ctx, span := tracer.StartSpan(ctx, "test.operation")
	assert.NotNil(t, span)

	span.SetAttributes(attribute.String("key", "value"))
	span.End()

	// Force flush
	_ = tp.ForceFlush(ctx)

	// Verify span was recorded
	spans := exporter.GetSpans()
	assert.Len(t, spans, 1)
	assert.Equal(t, "test.operation", spans[0].Name)
	assert.Equal(t, "value", spans[0].Attributes[0].Value.AsString())
}

func TestOtelSpan_SetAttributes(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)

	otelTracer := otel.Tracer("test")
	tracer := NewOtelTracer(otelTracer)

	ctx := context.Background()
	ctx, span := tracer.StartSpan(ctx, "rse.extract.tables")

	span.SetAttributes(
		attribute.String("db.system", "postgres"),
		attribute.String("db.operation", "SELECT"),
		attribute.Int64("rse.rows", 42),
		attribute.Float64("db.duration_ms", 15.5),
	)
	span.End()

	_ = tp.ForceFlush(ctx)

	spans := exporter.GetSpans()
	assert.Len(t, spans, 1)
	attrs := spans[0].Attributes

	// Find attributes by key
	attrMap := make(map[string]interface{})
	for _, attr := range attrs {
		attrMap[string(attr.Key)] = attr.Value.AsInterface()
	}

	assert.Equal(t, "postgres", attrMap["db.system"])
	assert.Equal(t, "SELECT", attrMap["db.operation"])
	assert.Equal(t, int64(42), attrMap["rse.rows"])
	assert.Equal(t, 15.5, attrMap["db.duration_ms"])
}

func TestOtelSpan_RecordError(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)

	otelTracer := otel.Tracer("test")
	tracer := NewOtelTracer(otelTracer)

	ctx := context.Background()
	ctx, span := tracer.StartSpan(ctx, "test.error")

	testErr := errors.New("driver: bad connection")
	span.RecordError(testErr)
	span.SetStatus(codes.Error, testErr.Error())
	span.End()

	_ = tp.ForceFlush(ctx)

	spans := exporter.GetSpans()
	assert.Len(t, spans, 1)
	assert.Len(t, spans[0].Events, 1)
	assert.Equal(t, "exception", spans[0].Events[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func spanAttributes(t *testing.T, exporter *tracetest.InMemoryExporter) (tracetest.SpanStub, map[string]interface{}) {
	t.Helper()
	spans := exporter.GetSpans()
	assert.Len(t, spans, 1)
	attrMap := make(map[string]interface{})
	for _, attr := range spans[0].Attributes {
		attrMap[string(attr.Key)] = attr.Value.AsInterface()
	}
	return spans[0], attrMap
}

func TestAddQueryAttributes_Success(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	tracer := NewOtelTracer(tp.Tracer("test"))

	ctx, span := tracer.StartSpan(context.Background(), "rse.extract.columns")
	AddQueryAttributes(span, &QueryMetadata{
		SQL:       "SELECT table_schema, table_name FROM information_schema.columns",
		Database:  "mysql",
		Operation: "SELECT",
		Stage:     "columns",
		Rows:      12,
		Duration:  15 * time.Millisecond,
	})
	span.End()
	_ = tp.ForceFlush(ctx)

	stub, attrMap := spanAttributes(t, exporter)
	assert.Equal(t, "mysql", attrMap["db.system"])
	assert.Equal(t, "SELECT", attrMap["db.operation"])
	assert.Equal(t, "columns", attrMap["rse.stage"])
	assert.Equal(t, int64(12), attrMap["rse.rows"])
	assert.InDelta(t, 15.0, attrMap["db.duration_ms"], 0.1)
	assert.Equal(t, codes.Ok, stub.Status.Code)
}

func TestAddQueryAttributes_WithError(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	tracer := NewOtelTracer(tp.Tracer("test"))

	ctx, span := tracer.StartSpan(context.Background(), "rse.extract.indexes")
	AddQueryAttributes(span, &QueryMetadata{
		SQL:       "SELECT 1",
		Database:  "postgres",
		Operation: "SELECT",
		Error:     errors.New("connection reset"),
	})
	span.End()
	_ = tp.ForceFlush(ctx)

	stub, attrMap := spanAttributes(t, exporter)
	assert.NotContains(t, attrMap, "rse.rows")
	assert.Equal(t, codes.Error, stub.Status.Code)
	assert.Equal(t, "connection reset", stub.Status.Description)
	assert.Len(t, stub.Events, 1)
}

func TestAddCompileAttributes(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	tracer := NewOtelTracer(tp.Tracer("test"))

	ctx, span := tracer.StartSpan(context.Background(), "rse.compile")
	AddCompileAttributes(span, &CompileMetadata{
		SQL:      "/* report */ SELECT `a0`.`id` FROM `users` AS `a0` LIMIT ?",
		Dialect:  "mysql",
		Params:   1,
		CacheHit: true,
	})
	span.End()
	_ = tp.ForceFlush(ctx)

	stub, attrMap := spanAttributes(t, exporter)
	assert.Equal(t, "SELECT", attrMap["db.operation"])
	assert.Equal(t, true, attrMap["rse.cache_hit"])
	assert.Equal(t, int64(1), attrMap["rse.params"])
	assert.Equal(t, codes.Ok, stub.Status.Code)
}

func TestDetectOperation(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{
			name: "SELECT query",
			sql:  "SELECT * FROM users WHERE id = ?",
			want: "SELECT",
		},
		{
			name: "SELECT with whitespace",
			sql:  "  \n  SELECT name FROM users",
			want: "SELECT",
		},
		{
			name: "leading comment",
			sql:  "/* nightly */ SELECT 1",
			want: "SELECT",
		},
		{
			name: "unterminated comment",
			sql:  "/* SELECT 1",
			want: "UNKNOWN",
		},
		{
			name: "parenthesized set operation",
			sql:  "(SELECT 1) UNION (SELECT 2)",
			want: "SELECT",
		},
		{
			name: "WITH CTE",
			sql:  "WITH stats AS (SELECT ...) SELECT * FROM stats",
			want: "SELECT",
		},
		{
			name: "INSERT query",
			sql:  "INSERT INTO users (name) VALUES (?)",
			want: "INSERT",
		},
		{
			name: "Unknown query",
			sql:  "EXPLAIN SELECT * FROM users",
			want: "UNKNOWN",
		},
		{
			name: "Lowercase SELECT",
			sql:  "select * from users",
			want: "SELECT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectOperation(tt.sql))
		})
	}
}

func BenchmarkNoopTracer(b *testing.B) {
	tracer := &NoopTracer{}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, span := tracer.StartSpan(ctx, "test.operation")
		span.SetAttributes(attribute.String("key", "value"))
		span.End()
	}
}

func BenchmarkAddQueryAttributes(b *testing.B) {
	tracer := NewOtelTracer(sdktrace.NewTracerProvider().Tracer("benchmark"))
	ctx := context.Background()

	meta := &QueryMetadata{
		SQL:       "SELECT table_schema, table_name FROM information_schema.tables",
		Database:  "mysql",
		Operation: "SELECT",
		Stage:     "tables",
		Rows:      40,
		Duration:  15 * time.Millisecond,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, span := tracer.StartSpan(ctx, "rse.extract.tables")
		AddQueryAttributes(span, meta)
		span.End()
	}
}
