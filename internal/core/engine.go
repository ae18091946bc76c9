// Package core provides the Engine: compilation of provider trees with a
// command cache, binding of late-bound parameters, query execution and
// catalog extraction, all logged and traced.
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/coregx/rse/internal/analyzer"
	"github.com/coregx/rse/internal/cache"
	"github.com/coregx/rse/internal/compiler"
	"github.com/coregx/rse/internal/dialects"
	"github.com/coregx/rse/internal/expr"
	"github.com/coregx/rse/internal/extract"
	"github.com/coregx/rse/internal/logger"
	"github.com/coregx/rse/internal/optimizer"
	"github.com/coregx/rse/internal/provider"
	"github.com/coregx/rse/internal/schema"
	"github.com/coregx/rse/internal/tracer"
)

// Engine compiles provider trees for one dialect and extracts catalogs from
// connections of that dialect. It is safe for concurrent use.
type Engine struct {
	dialect   dialects.Dialect
	compiler  *compiler.Compiler
	cache     *cache.CommandCache
	logger    logger.Logger
	tracer    tracer.Tracer
	sanitizer *logger.Sanitizer
	queryHook QueryHook
	now       func() time.Time

	retries int
	backoff time.Duration

	slowThreshold time.Duration
}

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithTracer sets the tracer. The default records nothing.
func WithTracer(t tracer.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithCommandCacheCapacity sets the compiled command cache capacity.
func WithCommandCacheCapacity(capacity int) Option {
	return func(e *Engine) {
		e.cache = cache.NewCommandCacheWithCapacity(capacity)
	}
}

// WithSensitiveFields replaces the field names whose parameter values are
// masked in logs and query events.
func WithSensitiveFields(fields ...string) Option {
	return func(e *Engine) {
		e.sanitizer = logger.NewSanitizer(fields)
	}
}

// WithClock sets the time source used for durations.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithQueryHook sets a callback invoked after each Query.
func WithQueryHook(h QueryHook) Option {
	return func(e *Engine) {
		e.queryHook = h
	}
}

// WithExtractRetries retries an extraction up to n more times when it fails
// with a retryable connection error, sleeping backoff, then twice as long,
// between attempts.
func WithExtractRetries(n int, backoff time.Duration) Option {
	return func(e *Engine) {
		e.retries = n
		e.backoff = backoff
	}
}

// WithSlowQueryThreshold sets the measured time above which Advise reports
// a slow query.
func WithSlowQueryThreshold(d time.Duration) Option {
	return func(e *Engine) {
		e.slowThreshold = d
	}
}

// New creates an engine for the dialect registered under name.
func New(name string, opts ...Option) (*Engine, error) {
	d, err := dialects.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedDialect, err)
	}
	return NewWithDialect(d, opts...), nil
}

// NewWithDialect creates an engine for d.
func NewWithDialect(d dialects.Dialect, opts ...Option) *Engine {
	e := &Engine{
		dialect:   d,
		compiler:  compiler.New(d),
		cache:     cache.NewCommandCache(),
		logger:    &logger.NoopLogger{},
		tracer:    &tracer.NoopTracer{},
		sanitizer: logger.NewSanitizer(nil),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dialect returns the target dialect.
func (e *Engine) Dialect() dialects.Dialect {
	return e.dialect
}

// Compile translates p into a command, reusing the cached command of a
// structurally equal tree with its parameters bound to the values of p.
// Errors are the compiler's own; nothing is cached for them.
func (e *Engine) Compile(ctx context.Context, p provider.Provider) (*compiler.Command, error) {
	if p == nil {
		return nil, ErrNilProvider
	}
	_, span := e.tracer.StartSpan(ctx, "rse.compile")
	defer span.End()

	start := e.now()
	key := cache.NewKey(e.dialect.Name(), p)
	cmd, hit, err := e.cache.GetOrCompile(key, func() (*compiler.Command, error) {
		return e.compiler.Compile(p)
	})
	if err == nil {
		cmd = cmd.Rebind(provider.Bindings(p))
	}
	elapsed := e.now().Sub(start)

	meta := &tracer.CompileMetadata{
		Dialect:  e.dialect.Name(),
		CacheHit: hit,
		Duration: elapsed,
		Error:    err,
	}
	if err != nil {
		tracer.AddCompileAttributes(span, meta)
		e.logger.Error("compile failed",
			"dialect", e.dialect.Name(),
			"provider", p.Kind().String(),
			"error", err)
		return nil, err
	}
	meta.SQL = cmd.SQL
	meta.Params = len(cmd.Params)
	tracer.AddCompileAttributes(span, meta)

	if hit {
		e.logger.Debug("command cache hit", "dialect", e.dialect.Name(), "sql", cmd.SQL)
		return cmd, nil
	}
	e.logger.Debug("command compiled",
		"dialect", e.dialect.Name(),
		"sql", cmd.SQL,
		"params", e.sanitizer.FormatNamed(paramNames(cmd), paramTypes(cmd)),
		"duration_ms", elapsed.Milliseconds())
	return cmd, nil
}

// Bind evaluates the parameters of cmd against pc and converts them for the
// driver. Bound values are logged with sensitive ones masked.
func (e *Engine) Bind(cmd *compiler.Command, pc *expr.ParameterContext) ([]compiler.Arg, error) {
	args, err := cmd.Args(pc)
	if err != nil {
		e.logger.Error("bind failed", "dialect", e.dialect.Name(), "sql", cmd.SQL, "error", err)
		return nil, err
	}
	e.logger.Debug("command bound",
		"dialect", e.dialect.Name(),
		"params", e.sanitizer.FormatNamed(paramNames(cmd), e.masked(cmd, args)))
	return args, nil
}

func (e *Engine) masked(cmd *compiler.Command, args []compiler.Arg) []any {
	return e.sanitizer.MaskNamed(cmd.SQL, paramNames(cmd), compiler.Values(args))
}

// Query compiles p, binds it against pc, runs it on q and reads every row
// into host values shaped by the command header.
func (e *Engine) Query(ctx context.Context, q extract.Querier, p provider.Provider, pc *expr.ParameterContext) ([][]any, error) {
	if q == nil {
		return nil, ErrNilQuerier
	}
	cmd, err := e.Compile(ctx, p)
	if err != nil {
		return nil, err
	}
	args, err := e.Bind(cmd, pc)
	if err != nil {
		return nil, err
	}

	ctx, span := e.tracer.StartSpan(ctx, "rse.query")
	defer span.End()

	start := e.now()
	rows, err := e.read(ctx, q, cmd, args)
	meta := &tracer.QueryMetadata{
		SQL:       cmd.SQL,
		Database:  e.dialect.Name(),
		Operation: tracer.DetectOperation(cmd.SQL),
		Rows:      int64(len(rows)),
		Duration:  e.now().Sub(start),
		Error:     err,
	}
	tracer.AddQueryAttributes(span, meta)
	e.invokeHook(ctx, QueryEvent{
		SQL:       cmd.SQL,
		Args:      e.masked(cmd, args),
		Duration:  meta.Duration,
		Rows:      meta.Rows,
		Error:     err,
		Operation: meta.Operation,
		Tables:    tableNames(p),
	})
	if err != nil {
		e.logger.Error("query failed", "dialect", e.dialect.Name(), "sql", cmd.SQL, "error", err)
		return nil, err
	}
	e.logger.Info("query executed",
		"dialect", e.dialect.Name(),
		"rows", len(rows),
		"duration_ms", meta.Duration.Milliseconds())
	return rows, nil
}

func (e *Engine) read(ctx context.Context, q extract.Querier, cmd *compiler.Command, args []compiler.Arg) ([][]any, error) {
	rs, err := q.QueryContext(ctx, cmd.SQL, compiler.Values(args)...)
	if err != nil {
		return nil, WrapError(err, "query")
	}
	defer rs.Close()

	width := cmd.Header.Columns().Len()
	raw := make([]any, width)
	ptrs := make([]any, width)
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	var out [][]any
	for rs.Next() {
		if err := rs.Scan(ptrs...); err != nil {
			return nil, WrapError(err, "scan")
		}
		row, err := cmd.Read(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rs.Err(); err != nil {
		return nil, WrapError(err, "query")
	}
	return out, nil
}

// Explain compiles p, binds it against pc and returns the plan the database
// chooses for it. With analyze the command runs and actual metrics are
// reported; SQLite cannot analyze.
func (e *Engine) Explain(ctx context.Context, q extract.Querier, p provider.Provider, pc *expr.ParameterContext, analyze bool) (*analyzer.Plan, error) {
	if q == nil {
		return nil, ErrNilQuerier
	}
	explainer, err := analyzer.For(e.dialect.Name())
	if err != nil {
		return nil, err
	}
	cmd, err := e.Compile(ctx, p)
	if err != nil {
		return nil, err
	}
	args, err := e.Bind(cmd, pc)
	if err != nil {
		return nil, err
	}

	ctx, span := e.tracer.StartSpan(ctx, "rse.explain")
	defer span.End()

	plan, err := explainer.Explain(ctx, q, cmd.SQL, compiler.Values(args), analyze)
	if err != nil {
		tracer.Fail(span, err)
		e.logger.Error("explain failed", "dialect", e.dialect.Name(), "sql", cmd.SQL, "error", err)
		return nil, err
	}
	tracer.Succeed(span)
	if plan.FullScan() {
		e.logger.Warn("command scans without an index",
			"dialect", e.dialect.Name(),
			"sql", cmd.SQL,
			"tables", plan.FullScans)
	}
	return plan, nil
}

// Advise explains p and suggests indexes for the filters its plan scans.
// The catalog may be nil; with it, columns an index already leads with are
// skipped. Slow query detection needs analyze.
func (e *Engine) Advise(ctx context.Context, q extract.Querier, p provider.Provider, pc *expr.ParameterContext, catalog *schema.Catalog, analyze bool) ([]optimizer.Suggestion, error) {
	plan, err := e.Explain(ctx, q, p, pc, analyze)
	if err != nil {
		return nil, err
	}
	advisor := optimizer.NewAdvisor(e.dialect, catalog, e.slowThreshold)
	suggestions := advisor.Suggest(advisor.Analyze(p, plan))
	for _, s := range suggestions {
		e.logger.Info("optimizer suggestion",
			"dialect", e.dialect.Name(),
			"type", s.Type,
			"severity", s.Severity,
			"message", s.Message,
			"fix", s.SQL)
	}
	return suggestions, nil
}

// Extract reads the given schemas (all user schemas when none are given)
// from q into a frozen catalog. Retryable connection failures are retried
// as configured by WithExtractRetries.
func (e *Engine) Extract(ctx context.Context, q extract.Querier, catalog string, schemas []string, opts ...extract.Option) (*schema.Catalog, error) {
	if q == nil {
		return nil, ErrNilQuerier
	}
	opts = append([]extract.Option{extract.WithLogger(e.logger), extract.WithTracer(e.tracer)}, opts...)
	ex := extract.New(q, e.dialect, opts...)

	backoff := e.backoff
	for attempt := 0; ; attempt++ {
		cat, err := ex.Extract(ctx, catalog, schemas...)
		if err == nil || attempt >= e.retries || !extract.IsRetryable(err) {
			return cat, err
		}
		e.logger.Warn("extraction retried",
			"dialect", e.dialect.Name(),
			"catalog", catalog,
			"attempt", attempt+1,
			"error", err)
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// CacheStats returns command cache statistics.
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.Stats()
}

// ClearCache drops every cached command.
func (e *Engine) ClearCache() {
	e.cache.Clear()
}

func paramNames(cmd *compiler.Command) []string {
	names := make([]string, len(cmd.Params))
	for i, p := range cmd.Params {
		names[i] = p.Name
	}
	return names
}

func paramTypes(cmd *compiler.Command) []any {
	out := make([]any, len(cmd.Params))
	for i, p := range cmd.Params {
		out[i] = p.Type.String()
	}
	return out
}
