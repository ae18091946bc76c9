// Package extract reads database metadata into a schema catalog.
//
// Each dialect supplies one query template per Stage. The extractor fills in
// the {SCHEMA_FILTER} and {TABLE_FILTER} placeholders, runs the stages one
// after another on a single Querier and folds every result set into a
// schema.Builder. A stage fully drains its rows before the next one starts.
package extract

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/coregx/rse/internal/logger"
	"github.com/coregx/rse/internal/schema"
	"github.com/coregx/rse/internal/tracer"
	"github.com/coregx/rse/internal/types"
)

// Template placeholders.
const (
	SchemaFilter = "{SCHEMA_FILTER}"
	TableFilter  = "{TABLE_FILTER}"
)

// Querier runs metadata queries. *sql.DB, *sql.Conn and *sql.Tx satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ColumnType is a column type as reported by the server.
type ColumnType struct {
	// Native is the type spelling, e.g. "tinyint(1)" or "character varying".
	Native    string
	Length    int64
	Precision int64
	Scale     int64
}

// Dialect provides the metadata queries and type rules of one database.
type Dialect interface {
	Name() string
	// Query returns the template of a stage, or false when the database has
	// no such objects.
	Query(stage Stage) (string, bool)
	// QuoteString quotes a filter value as a string literal.
	QuoteString(s string) string
	// AllSchemas is the {SCHEMA_FILTER} text used when no schema is requested,
	// e.g. "= DATABASE()".
	AllSchemas() string
	// DecodeType maps a reported column type onto the schema model.
	DecodeType(c ColumnType) types.TypeInfo
}

// Extractor reconstructs catalogs from a live connection.
type Extractor struct {
	q       Querier
	dialect Dialect
	tables  []string
	logger  logger.Logger
	tracer  tracer.Tracer
	opts    []schema.Option
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTables restricts extraction to the named tables.
func WithTables(names ...string) Option {
	return func(e *Extractor) {
		e.tables = append(e.tables, names...)
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logger.Logger) Option {
	return func(e *Extractor) {
		e.logger = l
	}
}

// WithTracer sets the tracer. The default records nothing.
func WithTracer(t tracer.Tracer) Option {
	return func(e *Extractor) {
		e.tracer = t
	}
}

// WithSchemaOptions passes options to the catalog builder.
func WithSchemaOptions(opts ...schema.Option) Option {
	return func(e *Extractor) {
		e.opts = append(e.opts, opts...)
	}
}

// New returns an extractor reading through q.
func New(q Querier, dialect Dialect, opts ...Option) *Extractor {
	e := &Extractor{
		q:       q,
		dialect: dialect,
		logger:  &logger.NoopLogger{},
		tracer:  &tracer.NoopTracer{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads the given schemas (all user schemas when none are given) into
// a frozen catalog. Either the whole catalog is returned or an error; a
// connection failure or cancellation is reported as types.ErrExtractionIO.
func (e *Extractor) Extract(ctx context.Context, catalog string, schemas ...string) (*schema.Catalog, error) {
	ctx, span := e.tracer.StartSpan(ctx, "rse.extract")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", e.dialect.Name()),
		attribute.String("rse.catalog", catalog),
		attribute.StringSlice("rse.schemas", schemas),
	)

	start := time.Now()
	f := newFolder(schema.NewBuilder(catalog, e.opts...))
	for _, stage := range Stages {
		if err := e.runStage(ctx, f, stage, schemas); err != nil {
			e.logger.Error("extraction failed", "dialect", e.dialect.Name(), "stage", stage.String(), "error", err)
			tracer.Fail(span, err)
			return nil, err
		}
	}
	cat, err := f.b.Freeze()
	if err != nil {
		tracer.Fail(span, err)
		return nil, err
	}
	e.logger.Info("catalog extracted",
		"dialect", e.dialect.Name(),
		"catalog", catalog,
		"schemas", len(cat.Schemas()),
		"duration", time.Since(start))
	tracer.Succeed(span)
	return cat, nil
}

// Render returns the query of a stage with its placeholders filled in.
func (e *Extractor) Render(stage Stage, schemas []string) (string, bool) {
	tmpl, ok := e.dialect.Query(stage)
	if !ok {
		return "", false
	}
	schemaFilter := e.dialect.AllSchemas()
	if len(schemas) > 0 {
		schemaFilter = e.inList(schemas)
	}
	tableFilter := "IS NOT NULL"
	if len(e.tables) > 0 {
		tableFilter = e.inList(e.tables)
	}
	r := strings.NewReplacer(SchemaFilter, schemaFilter, TableFilter, tableFilter)
	return r.Replace(tmpl), true
}

func (e *Extractor) inList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = e.dialect.QuoteString(v)
	}
	return "IN (" + strings.Join(quoted, ", ") + ")"
}

func (e *Extractor) runStage(ctx context.Context, f *folder, stage Stage, schemas []string) error {
	query, ok := e.Render(stage, schemas)
	if !ok {
		e.logger.Debug("extraction stage skipped", "dialect", e.dialect.Name(), "stage", stage.String())
		return nil
	}
	ctx, span := e.tracer.StartSpan(ctx, "rse.extract."+stage.String())
	defer span.End()

	start := time.Now()
	n, err := e.fold(ctx, f, stage, query)
	tracer.AddQueryAttributes(span, &tracer.QueryMetadata{
		SQL:       query,
		Database:  e.dialect.Name(),
		Operation: "SELECT",
		Stage:     stage.String(),
		Rows:      int64(n),
		Duration:  time.Since(start),
		Error:     err,
	})
	if err != nil {
		return err
	}
	e.logger.Info("extraction stage done",
		"dialect", e.dialect.Name(),
		"stage", stage.String(),
		"rows", n,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (e *Extractor) fold(ctx context.Context, f *folder, stage Stage, query string) (int, error) {
	rows, err := e.q.QueryContext(ctx, query)
	if err != nil {
		return 0, classify(stage, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, classify(stage, err)
	}
	if want := stage.width(); len(cols) < want {
		return 0, types.ErrInvalidArgument.New(stage.String()+" query", "returns fewer columns than expected")
	}

	handle := f.handler(stage, e.dialect)
	f.reset()
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	n := 0
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return n, classify(stage, err)
		}
		if err := handle(row(values)); err != nil {
			return n, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, classify(stage, err)
	}
	return n, nil
}
