package expr

import (
	"fmt"

	"github.com/coregx/rse/internal/types"
)

// Children returns the direct sub-expressions of e in evaluation order.
func Children(e Expr) []Expr {
	switch n := e.(type) {
	case Binary:
		return []Expr{n.Left, n.Right}
	case Unary:
		return []Expr{n.Operand}
	case Call:
		return n.Args
	case Cast:
		return []Expr{n.Operand}
	case Extract:
		return []Expr{n.Operand}
	case Case:
		out := make([]Expr, 0, 2*len(n.Whens)+1)
		for _, w := range n.Whens {
			out = append(out, w.Cond, w.Then)
		}
		if n.Else != nil {
			out = append(out, n.Else)
		}
		return out
	case Query:
		return n.Operands
	case InList:
		out := append([]Expr(nil), n.Operands...)
		for _, r := range n.Rows {
			out = append(out, r...)
		}
		return out
	case Aggregate:
		if n.Arg == nil {
			return nil
		}
		return []Expr{n.Arg}
	case RowNumber:
		out := make([]Expr, len(n.Order))
		for i, k := range n.Order {
			out[i] = k.Expr
		}
		return out
	}
	return nil
}

// withChildren rebuilds e over new children laid out as Children returns them.
func withChildren(e Expr, ch []Expr) Expr {
	switch n := e.(type) {
	case Binary:
		n.Left, n.Right = ch[0], ch[1]
		return n
	case Unary:
		n.Operand = ch[0]
		return n
	case Call:
		n.Args = ch
		return n
	case Cast:
		n.Operand = ch[0]
		return n
	case Extract:
		n.Operand = ch[0]
		return n
	case Case:
		whens := make([]When, len(n.Whens))
		for i := range n.Whens {
			whens[i] = When{Cond: ch[2*i], Then: ch[2*i+1]}
		}
		n.Whens = whens
		if n.Else != nil {
			n.Else = ch[len(ch)-1]
		}
		return n
	case Query:
		n.Operands = ch
		return n
	case InList:
		k := len(n.Operands)
		n.Operands = ch[:k:k]
		rows := make([][]Expr, len(n.Rows))
		for i, r := range n.Rows {
			rows[i] = ch[k : k+len(r) : k+len(r)]
			k += len(r)
		}
		n.Rows = rows
		return n
	case Aggregate:
		if n.Arg != nil {
			n.Arg = ch[0]
		}
		return n
	case RowNumber:
		order := make([]SortKey, len(n.Order))
		for i, k := range n.Order {
			order[i] = SortKey{Expr: ch[i], Descending: k.Descending}
		}
		n.Order = order
		return n
	}
	return e
}

// Walk calls fn for e and its descendants in pre-order. Returning false from
// fn skips the children of that node.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, c := range Children(e) {
		Walk(c, fn)
	}
}

// RewriteFunc replaces a node whose children were already rewritten.
// It reports whether the node changed.
type RewriteFunc func(Expr) (Expr, bool, error)

// Rewrite rewrites e bottom-up. A node replaced by fn is rewritten again, so a
// rule may produce nodes that other rules lower further.
func Rewrite(e Expr, fn RewriteFunc) (Expr, error) {
	return rewrite(e, fn, 0)
}

const maxRewriteDepth = 64

func rewrite(e Expr, fn RewriteFunc, depth int) (Expr, error) {
	if e == nil {
		return nil, nil
	}
	if depth > maxRewriteDepth {
		return nil, fmt.Errorf("expr: rewrite of %s does not converge", e)
	}
	ch := Children(e)
	if len(ch) > 0 {
		out := make([]Expr, len(ch))
		for i, c := range ch {
			r, err := rewrite(c, fn, 0)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		e = withChildren(e, out)
	}
	r, changed, err := fn(e)
	if err != nil {
		return nil, err
	}
	if !changed {
		return e, nil
	}
	return rewrite(r, fn, depth+1)
}

// Validate checks that e only references columns of a row of the given width
// and that every call has a valid argument count.
func Validate(e Expr, width int) error {
	if e == nil {
		return types.ErrInvalidArgument.New("expression", "nil")
	}
	var err error
	Walk(e, func(n Expr) bool {
		if err != nil {
			return false
		}
		switch x := n.(type) {
		case Column:
			if x.Index < 0 || x.Index >= width {
				err = types.ErrIndexOutOfRange.New(x.Index, width)
			}
		case OuterColumn:
			if x.Param == nil {
				err = types.ErrInvalidArgument.New("outer column", "nil apply parameter")
			}
		case Call:
			err = x.Func.checkArity(len(x.Args))
		case Param:
			if x.Value == nil {
				err = types.ErrInvalidArgument.New(x.Name, "parameter without value function")
			}
		case Query:
			if x.Source == nil {
				err = types.ErrInvalidArgument.New("query", "nil source")
			}
		case InList:
			for _, r := range x.Rows {
				if len(r) != len(x.Operands) {
					err = types.ErrInvalidArgument.New("in list", fmt.Sprintf("row of %d values for %d operands", len(r), len(x.Operands)))
				}
			}
		}
		for _, c := range Children(n) {
			if c == nil {
				err = types.ErrInvalidArgument.New(n.String(), "nil operand")
			}
		}
		return err == nil
	})
	return err
}

// OuterParameters returns the apply parameters e refers to.
func OuterParameters(e Expr) []*ApplyParameter {
	var out []*ApplyParameter
	seen := map[*ApplyParameter]bool{}
	Walk(e, func(n Expr) bool {
		if oc, ok := n.(OuterColumn); ok && !seen[oc.Param] {
			seen[oc.Param] = true
			out = append(out, oc.Param)
		}
		return true
	})
	return out
}
