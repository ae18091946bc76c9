// Package analyzer reads the execution plan the database chooses for a
// compiled command, using each dialect's EXPLAIN variant, into one Plan shape.
package analyzer

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/coregx/rse/internal/types"
)

// Querier runs the EXPLAIN statement.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Plan is a database execution plan.
type Plan struct {
	Dialect string
	// Cost is the estimated total cost in the database's own units, 0 when
	// the database reports none.
	Cost          float64
	EstimatedRows int64
	// ActualRows and ActualTime are only set by an analyzing explain.
	ActualRows int64
	ActualTime time.Duration

	// Indexes lists every index the plan reads, in plan order.
	Indexes []string
	// FullScans lists the tables read without an index.
	FullScans []string

	Raw string
}

// UsesIndex reports whether any index is read.
func (p *Plan) UsesIndex() bool { return len(p.Indexes) > 0 }

// FullScan reports whether any table is read without an index.
func (p *Plan) FullScan() bool { return len(p.FullScans) > 0 }

func (p *Plan) addIndex(name string) {
	if name != "" && !slices.Contains(p.Indexes, name) {
		p.Indexes = append(p.Indexes, name)
	}
}

func (p *Plan) addFullScan(table string) {
	if table != "" && !slices.Contains(p.FullScans, table) {
		p.FullScans = append(p.FullScans, table)
	}
}

// Explainer reads plans for one dialect.
type Explainer interface {
	// Explain returns the plan of query without running it. When analyze is
	// true the query runs and actual metrics are filled in.
	Explain(ctx context.Context, q Querier, query string, args []any, analyze bool) (*Plan, error)
}

var explainers = map[string]Explainer{
	"mysql":      mysqlExplainer{},
	"postgres":   postgresExplainer{},
	"postgresql": postgresExplainer{},
	"sqlite":     sqliteExplainer{},
	"sqlite3":    sqliteExplainer{},
}

// For returns the explainer of the named dialect.
func For(dialect string) (Explainer, error) {
	if e, ok := explainers[dialect]; ok {
		return e, nil
	}
	return nil, types.ErrNotSupported.New("plan analysis", dialect)
}

// single runs an explain returning one text cell.
func single(ctx context.Context, q Querier, query string, args []any) (string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return "", fmt.Errorf("explain: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", fmt.Errorf("explain: %w", err)
		}
		return "", fmt.Errorf("explain: no plan returned")
	}
	var raw string
	if err := rows.Scan(&raw); err != nil {
		return "", fmt.Errorf("explain: %w", err)
	}
	return raw, rows.Err()
}
