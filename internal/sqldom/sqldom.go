// Package sqldom is the intermediate SQL statement model produced from a
// provider tree and printed by a dialect emitter. Expressions inside it are
// bound expr trees: column references are expr.BoundColumn and generic
// functions are already lowered.
package sqldom

import (
	"fmt"

	"github.com/coregx/rse/internal/expr"
)

// Statement is a query statement: a Select or a SetQuery.
type Statement interface {
	String() string
	statement()
}

// Column is one item of a select list.
type Column struct {
	Expr  expr.Expr
	Alias string
}

// OrderItem is one ORDER BY item.
type OrderItem struct {
	Expr       expr.Expr
	Descending bool
}

// LockMode is the row lock strength.
type LockMode uint8

// Lock modes.
const (
	LockShared LockMode = iota
	LockExclusive
	LockUpdate
)

// LockBehavior is the waiting policy of a lock.
type LockBehavior uint8

// Lock behaviors.
const (
	LockWait LockBehavior = iota
	LockNoWait
	LockSkipLocked
)

// Lock is a row locking clause.
type Lock struct {
	Mode     LockMode
	Behavior LockBehavior
}

// Select is a SELECT statement. Clauses are emitted in field order.
type Select struct {
	// Comment is emitted before the statement.
	Comment  string
	Distinct bool
	Columns  []Column
	From     TableSource
	Where    expr.Expr
	GroupBy  []expr.Expr
	Having   expr.Expr
	OrderBy  []OrderItem
	Limit    expr.Expr
	Offset   expr.Expr
	Lock     *Lock
}

func (*Select) statement() {}

func (s *Select) String() string {
	return fmt.Sprintf("select(%d columns from %v)", len(s.Columns), s.From)
}

// HasLimit reports whether the select has a LIMIT or OFFSET.
func (s *Select) HasLimit() bool { return s.Limit != nil || s.Offset != nil }

// SetOp is a set operator.
type SetOp uint8

// Set operators.
const (
	Union SetOp = iota
	Intersect
	Except
)

func (op SetOp) String() string {
	switch op {
	case Union:
		return "UNION"
	case Intersect:
		return "INTERSECT"
	case Except:
		return "EXCEPT"
	}
	return fmt.Sprintf("SetOp(%d)", uint8(op))
}

// SetQuery combines two statements. All keeps duplicates.
type SetQuery struct {
	Op    SetOp
	All   bool
	Left  Statement
	Right Statement
}

func (*SetQuery) statement() {}

func (q *SetQuery) String() string {
	all := ""
	if q.All {
		all = " ALL"
	}
	return fmt.Sprintf("(%s %s%s %s)", q.Left, q.Op, all, q.Right)
}

// TableSource is an item of a FROM clause.
type TableSource interface {
	String() string
	tableSource()
}

// Table references a named table.
type Table struct {
	Schema string
	Name   string
	Alias  string
	// Indexes are index hints; dialects without hints ignore them.
	Indexes []string
}

func (*Table) tableSource() {}

func (t *Table) String() string { return fmt.Sprintf("%s.%s as %s", t.Schema, t.Name, t.Alias) }

// Derived is a subquery in FROM. Lateral subqueries may reference columns of
// sources to their left.
type Derived struct {
	Query   Statement
	Alias   string
	Lateral bool
}

func (*Derived) tableSource() {}

func (d *Derived) String() string { return fmt.Sprintf("(%s) as %s", d.Query, d.Alias) }

// JoinKind is the kind of a joined table.
type JoinKind uint8

// Join kinds.
const (
	Inner JoinKind = iota
	LeftOuter
	FullOuter
	Cross
)

func (k JoinKind) String() string {
	switch k {
	case Inner:
		return "INNER JOIN"
	case LeftOuter:
		return "LEFT OUTER JOIN"
	case FullOuter:
		return "FULL OUTER JOIN"
	case Cross:
		return "CROSS JOIN"
	}
	return fmt.Sprintf("JoinKind(%d)", uint8(k))
}

// Joined joins two sources. On is nil for cross joins.
type Joined struct {
	Kind  JoinKind
	Left  TableSource
	Right TableSource
	On    expr.Expr
}

func (*Joined) tableSource() {}

func (j *Joined) String() string { return fmt.Sprintf("(%s %s %s)", j.Left, j.Kind, j.Right) }

// FullText is a full-text search over a table. It exposes Columns plus
// RankAlias and keeps only the rows matching Criteria on Search.
type FullText struct {
	Schema    string
	Name      string
	Columns   []string
	Search    []string
	Criteria  expr.Expr
	RankAlias string
	Alias     string
}

func (*FullText) tableSource() {}

func (f *FullText) String() string { return fmt.Sprintf("fulltext(%s.%s) as %s", f.Schema, f.Name, f.Alias) }
