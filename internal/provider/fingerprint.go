package provider

import (
	"fmt"
	"strings"

	"github.com/coregx/rse/internal/expr"
)

// Fingerprint describes p down to column types and literal value types.
// Late-bound value functions are left out; their parameters count by name
// only. Trees built separately with equal fingerprints compile to the same
// SQL, and Bindings supplies the value functions of each.
func Fingerprint(p Provider) string {
	var sb strings.Builder
	sb.WriteString(p.String())
	visit(p, func(n Provider) {
		sb.WriteString("\n")
		sb.WriteString(n.Kind().String())
		sb.WriteString(" ")
		sb.WriteString(n.Header().String())
		switch x := n.(type) {
		case *Table:
			fmt.Fprintf(&sb, " %+v", x.Ref)
		case *Index:
			fmt.Fprintf(&sb, " %+v %s", x.Table, x.Keys)
		case *FreeText:
			fmt.Fprintf(&sb, " %+v %s", x.Table, x.RankName)
		case *Raw:
			writeValues(&sb, x.Rows)
		case *Include:
			writeValues(&sb, x.Values)
		}
	}, func(e expr.Expr) {
		fmt.Fprintf(&sb, " %T:%s", e, e.Type())
		switch x := e.(type) {
		case expr.Literal:
			fmt.Fprintf(&sb, "=%T", x.Value)
		case expr.Param:
			sb.WriteString("@" + x.Name)
		}
	})
	return sb.String()
}

// Bindings returns the value function of every parameter in p by name. When
// a name occurs more than once the first occurrence wins.
func Bindings(p Provider) map[string]expr.ValueFunc {
	out := make(map[string]expr.ValueFunc)
	visit(p, func(Provider) {}, func(e expr.Expr) {
		if x, ok := e.(expr.Param); ok && x.Value != nil {
			if _, seen := out[x.Name]; !seen {
				out[x.Name] = x.Value
			}
		}
	})
	return out
}

func writeValues(sb *strings.Builder, rows [][]any) {
	for _, r := range rows {
		for _, v := range r {
			fmt.Fprintf(sb, " %T=%v", v, v)
		}
		sb.WriteString(";")
	}
}

// visit walks p like Walk, calling node for every provider and leaf for
// every expression node. Providers nested in subquery expressions are
// walked too.
func visit(p Provider, node func(Provider), leaf func(expr.Expr)) {
	Walk(p, func(n Provider) bool {
		node(n)
		for _, e := range expressions(n) {
			expr.Walk(e, func(x expr.Expr) bool {
				leaf(x)
				if q, ok := x.(expr.Query); ok {
					if src, ok := q.Source.(Provider); ok {
						visit(src, node, leaf)
					}
				}
				return true
			})
		}
		return true
	})
}

// expressions returns the expressions owned by p itself.
func expressions(p Provider) []expr.Expr {
	switch n := p.(type) {
	case *Filter:
		return []expr.Expr{n.Predicate}
	case *Seek:
		return []expr.Expr{n.Predicate()}
	case *Join:
		if n.Predicate != nil {
			return []expr.Expr{n.Predicate}
		}
	case *Calculate:
		out := make([]expr.Expr, len(n.Columns))
		for i, c := range n.Columns {
			out[i] = c.Expr
		}
		return out
	case *FreeText:
		return []expr.Expr{n.Criteria}
	case *Skip:
		return []expr.Expr{n.Count.Expr()}
	case *Take:
		return []expr.Expr{n.Count.Expr()}
	}
	return nil
}
