package core

import (
	"context"
	"time"

	"github.com/coregx/rse/internal/provider"
)

// QueryEvent contains information about an executed command.
// This is passed to QueryHook callbacks for logging, metrics, or tracing.
type QueryEvent struct {
	// SQL is the executed statement
	SQL string
	// Args are the bound values, with sensitive ones masked
	Args []any
	// Duration is how long the query and the row reads took
	Duration time.Duration
	// Rows is the number of rows read
	Rows int64
	// Error is any error that occurred (nil on success)
	Error error
	// Operation is the SQL operation type (SELECT or UNKNOWN)
	Operation string
	// Tables are the qualified names of the tables read, in tree order
	Tables []string
}

// QueryHook is a callback function invoked after each Engine.Query.
//
// Example:
//
//	engine, _ := rse.NewEngine("postgres",
//	    rse.WithQueryHook(func(ctx context.Context, e rse.QueryEvent) {
//	        slog.Info("query", "sql", e.SQL, "rows", e.Rows, "err", e.Error)
//	    }))
type QueryHook func(ctx context.Context, event QueryEvent)

// invokeHook calls the query hook if set.
func (e *Engine) invokeHook(ctx context.Context, event QueryEvent) {
	if e.queryHook != nil {
		e.queryHook(ctx, event)
	}
}

// tableNames lists the tables p reads, each once.
func tableNames(p provider.Provider) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(ref provider.TableRef) {
		if n := ref.QualifiedName(); !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	var walk func(provider.Provider)
	walk = func(p provider.Provider) {
		switch n := p.(type) {
		case *provider.Table:
			add(n.Ref)
		case *provider.Index:
			add(n.Table)
		case *provider.FreeText:
			add(n.Table)
		}
		for _, s := range p.Sources() {
			walk(s)
		}
	}
	walk(p)
	return names
}
