// Package expr defines the scalar expression trees embedded in providers:
// filter predicates, calculated columns, join conditions and function calls.
//
// Expressions are immutable. A tree built against a provider header refers to
// columns by index (Column); the compiler binds those to SQL column references
// (BoundColumn) and lowers generic functions before emission.
package expr

import (
	"fmt"
	"strings"

	"github.com/coregx/rse/internal/types"
)

// Expr is a scalar expression node.
type Expr interface {
	// Type is the host value type the expression evaluates to.
	Type() types.Type
	String() string
	exprNode()
}

// Relation is the source of a query expression. Providers implement it while
// the tree is being built; the compiler replaces it with a compiled statement.
type Relation interface {
	String() string
}

// Column references the column at Index of the current row.
type Column struct {
	Index int
	T     types.Type
}

func (Column) exprNode()          {}
func (c Column) Type() types.Type { return c.T }
func (c Column) String() string   { return fmt.Sprintf("#%d", c.Index) }

// OuterColumn references the column at Index of the outer row bound to Param
// by an Apply.
type OuterColumn struct {
	Param *ApplyParameter
	Index int
	T     types.Type
}

func (OuterColumn) exprNode()          {}
func (c OuterColumn) Type() types.Type { return c.T }
func (c OuterColumn) String() string   { return fmt.Sprintf("%s#%d", c.Param, c.Index) }

// BoundColumn is a column reference resolved to a SQL table alias and column name.
type BoundColumn struct {
	Table string
	Name  string
	T     types.Type
}

func (BoundColumn) exprNode()          {}
func (c BoundColumn) Type() types.Type { return c.T }
func (c BoundColumn) String() string {
	if c.Table == "" {
		return c.Name
	}
	return c.Table + "." + c.Name
}

// Literal is a constant inlined into the SQL text.
type Literal struct {
	Value any
	T     types.Type
}

func (Literal) exprNode()          {}
func (l Literal) Type() types.Type { return l.T }
func (l Literal) String() string {
	if l.Value == nil {
		return "null"
	}
	if s, ok := l.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", l.Value)
}

// Lit returns a literal of type t.
func Lit(v any, t types.Type) Literal { return Literal{Value: v, T: t} }

// Null returns the NULL literal typed as t.
func Null(t types.Type) Literal { return Literal{T: t} }

// Param is a late-bound value sent as a query parameter. Name identifies the
// parameter: two Params with the same name are expected to bind the same way.
type Param struct {
	Name  string
	Value ValueFunc
	T     types.Type
}

func (Param) exprNode()          {}
func (p Param) Type() types.Type { return p.T }
func (p Param) String() string   { return "@" + p.Name }

// Cast converts Operand to To.
type Cast struct {
	Operand Expr
	To      types.Type
}

func (Cast) exprNode()          {}
func (c Cast) Type() types.Type { return c.To }
func (c Cast) String() string   { return fmt.Sprintf("cast(%s as %s)", c.Operand, c.To) }

// DatePart is the component read by Extract.
type DatePart uint8

// Date parts.
const (
	Year DatePart = iota
	Month
	Day
	Hour
	Minute
	Second
	Millisecond
	// DayOfWeek is zero-based, Sunday is 0.
	DayOfWeek
	// DayOfYear is one-based.
	DayOfYear
)

var datePartNames = [...]string{"year", "month", "day", "hour", "minute", "second", "millisecond", "dayofweek", "dayofyear"}

func (p DatePart) String() string {
	if int(p) < len(datePartNames) {
		return datePartNames[p]
	}
	return fmt.Sprintf("DatePart(%d)", uint8(p))
}

// Extract reads Part from a temporal operand.
type Extract struct {
	Part    DatePart
	Operand Expr
}

func (Extract) exprNode()        {}
func (Extract) Type() types.Type { return types.Int32 }
func (e Extract) String() string { return fmt.Sprintf("extract(%s from %s)", e.Part, e.Operand) }

// When is one branch of a Case.
type When struct {
	Cond Expr
	Then Expr
}

// Case is a searched CASE expression. Else may be nil.
type Case struct {
	Whens []When
	Else  Expr
}

func (Case) exprNode() {}

func (c Case) Type() types.Type {
	for _, w := range c.Whens {
		if t := w.Then.Type(); t != types.Null {
			return t
		}
	}
	if c.Else != nil {
		return c.Else.Type()
	}
	return types.Null
}

func (c Case) String() string {
	var sb strings.Builder
	sb.WriteString("case")
	for _, w := range c.Whens {
		fmt.Fprintf(&sb, " when %s then %s", w.Cond, w.Then)
	}
	if c.Else != nil {
		fmt.Fprintf(&sb, " else %s", c.Else)
	}
	sb.WriteString(" end")
	return sb.String()
}

// QueryKind selects how a Query expression uses its source.
type QueryKind uint8

// Query kinds.
const (
	// Exists is true when the source has at least one row.
	Exists QueryKind = iota
	// In is true when the operand tuple occurs in the source.
	In
	// Scalar yields the single value of a one-row, one-column source.
	Scalar
)

func (k QueryKind) String() string {
	switch k {
	case Exists:
		return "exists"
	case In:
		return "in"
	case Scalar:
		return "scalar"
	}
	return fmt.Sprintf("QueryKind(%d)", uint8(k))
}

// Query is a subquery used as a scalar or boolean value.
type Query struct {
	Kind     QueryKind
	Source   Relation
	Operands []Expr
	T        types.Type
}

func (Query) exprNode() {}

func (q Query) Type() types.Type {
	if q.Kind == Scalar {
		return q.T
	}
	return types.Bool
}

func (q Query) String() string {
	if q.Kind == In {
		return fmt.Sprintf("(%s) in (%s)", joinExprs(q.Operands), q.Source)
	}
	return fmt.Sprintf("%s(%s)", q.Kind, q.Source)
}

// InList is true when the operand tuple equals one of Rows.
type InList struct {
	Operands []Expr
	Rows     [][]Expr
}

func (InList) exprNode()        {}
func (InList) Type() types.Type { return types.Bool }

func (l InList) String() string {
	rows := make([]string, len(l.Rows))
	for i, r := range l.Rows {
		rows[i] = "(" + joinExprs(r) + ")"
	}
	return fmt.Sprintf("(%s) in [%s]", joinExprs(l.Operands), strings.Join(rows, ", "))
}

// Aggregate is an aggregate call. It only appears in bound trees.
// Arg is nil for COUNT(*).
type Aggregate struct {
	Func     AggregateFunc
	Arg      Expr
	Distinct bool
	T        types.Type
}

func (Aggregate) exprNode()          {}
func (a Aggregate) Type() types.Type { return a.T }

func (a Aggregate) String() string {
	if a.Arg == nil {
		return a.Func.String() + "(*)"
	}
	if a.Distinct {
		return fmt.Sprintf("%s(distinct %s)", a.Func, a.Arg)
	}
	return fmt.Sprintf("%s(%s)", a.Func, a.Arg)
}

// AggregateFunc is the SQL aggregate function of an Aggregate node.
type AggregateFunc uint8

// Aggregate functions.
const (
	AggCount AggregateFunc = iota
	AggSum
	AggAvg
	AggMin
	AggMax
)

func (f AggregateFunc) String() string {
	switch f {
	case AggCount:
		return "count"
	case AggSum:
		return "sum"
	case AggAvg:
		return "avg"
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	}
	return fmt.Sprintf("AggregateFunc(%d)", uint8(f))
}

// SortKey orders a window.
type SortKey struct {
	Expr       Expr
	Descending bool
}

// RowNumber is ROW_NUMBER() over Order. It only appears in bound trees.
type RowNumber struct {
	Order []SortKey
}

func (RowNumber) exprNode()        {}
func (RowNumber) Type() types.Type { return types.Int64 }
func (RowNumber) String() string   { return "row_number()" }

func joinExprs(es []Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
