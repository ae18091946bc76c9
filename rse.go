// Package rse compiles relational provider trees into SQL for MySQL,
// PostgreSQL and SQLite, and extracts database catalogs into an immutable
// schema model. It offers a compiled command cache, parameter sanitizing in
// logs and OpenTelemetry tracing out of the box.
package rse

import (
	"github.com/coregx/rse/internal/cache"
	"github.com/coregx/rse/internal/compiler"
	"github.com/coregx/rse/internal/core"
	"github.com/coregx/rse/internal/dialects"
	"github.com/coregx/rse/internal/expr"
	"github.com/coregx/rse/internal/extract"
	"github.com/coregx/rse/internal/header"
	"github.com/coregx/rse/internal/logger"
	"github.com/coregx/rse/internal/optimizer"
	"github.com/coregx/rse/internal/provider"
	"github.com/coregx/rse/internal/schema"
	"github.com/coregx/rse/internal/security"
	"github.com/coregx/rse/internal/tracer"
)

type (
	// Engine compiles provider trees and extracts catalogs for one dialect.
	Engine = core.Engine
	// Option is a functional option for configuring an Engine.
	Option = core.Option
	// QueryEvent describes one executed command.
	QueryEvent = core.QueryEvent
	// QueryHook is invoked after each Engine.Query.
	QueryHook = core.QueryHook
	// CacheStats holds command cache metrics.
	CacheStats = cache.Stats

	// Dialect is a compilation target and catalog source.
	Dialect = dialects.Dialect
	// Command is a compiled, reusable query.
	Command = compiler.Command
	// Arg is a bound command parameter.
	Arg = compiler.Arg

	// Provider is a node of a relational query tree.
	Provider = provider.Provider
	// Chain builds provider trees fluently.
	Chain = provider.Chain
	// TableRef names a table and declares its columns.
	TableRef = provider.TableRef
	// TableColumn is a declared table column.
	TableColumn = provider.TableColumn
	// Header describes the columns and order of a provider's rows.
	Header = header.Header
	// Order is a list of column directions.
	Order = header.Order

	// Expr is a scalar expression.
	Expr = expr.Expr
	// ParameterContext holds late-bound values for one execution.
	ParameterContext = expr.ParameterContext

	// Catalog is an extracted, immutable database catalog.
	Catalog = schema.Catalog
	// Querier runs metadata queries; *sql.DB, *sql.Conn and *sql.Tx satisfy it.
	Querier = extract.Querier

	// Logger receives engine log records.
	Logger = logger.Logger
	// Tracer starts engine spans.
	Tracer = tracer.Tracer

	// Suggestion is an index or maintenance recommendation from Engine.Advise.
	Suggestion = optimizer.Suggestion
	// Auditor records executed commands; install it with WithQueryHook(a.Hook()).
	Auditor = security.Auditor
	// AuditLevel selects which commands are audited.
	AuditLevel = security.AuditLevel
)

// Re-export core functions.
var (
	NewEngine                = core.New
	NewEngineWithDialect     = core.NewWithDialect
	WithLogger               = core.WithLogger
	WithTracer               = core.WithTracer
	WithCommandCacheCapacity = core.WithCommandCacheCapacity
	WithSensitiveFields      = core.WithSensitiveFields
	WithClock                = core.WithClock
	WithQueryHook            = core.WithQueryHook
	WithExtractRetries       = core.WithExtractRetries
	WithSlowQueryThreshold   = core.WithSlowQueryThreshold

	// Errors
	ErrUnsupportedDialect = core.ErrUnsupportedDialect
	ErrNilProvider        = core.ErrNilProvider
	ErrNilQuerier         = core.ErrNilQuerier

	// Dialects
	Dialects      = dialects.Names
	LookupDialect = dialects.Lookup

	// Provider trees
	From       = provider.From
	FromTable  = provider.FromTable
	Literal    = provider.Literal
	LateBound  = provider.LateBound
	NewTable   = provider.NewTable
	NewIndex   = provider.NewIndex
	NewRaw     = provider.NewRaw
	NewStore   = provider.NewStore
	FreeText   = provider.NewFreeText
	Parameters = expr.NewParameterContext
	FromParams = expr.FromContext

	// Observability
	NewSlogLogger = logger.NewSlogAdapter
	NewOtelTracer = tracer.NewOtelTracer
	IsRetryable   = extract.IsRetryable

	// Auditing
	NewAuditor      = security.NewAuditor
	ParseAuditLevel = security.ParseAuditLevel
	WithAuditUser   = security.WithUser
	WithClientIP    = security.WithClientIP
	WithRequestID   = security.WithRequestID
)

// Audit levels.
const (
	AuditNone     = security.AuditNone
	AuditFailures = security.AuditFailures
	AuditAll      = security.AuditAll
)
