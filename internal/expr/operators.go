package expr

import (
	"fmt"

	"github.com/coregx/rse/internal/types"
)

// BinaryOp is a binary operator.
type BinaryOp uint8

// Binary operators.
const (
	Add BinaryOp = iota
	Subtract
	Multiply
	Divide
	// IntDivide is integer division truncating toward zero.
	IntDivide
	Modulo
	Equal
	NotEqual
	Less
	LessOrEqual
	Greater
	GreaterOrEqual
	And
	Or
	// Concat concatenates two strings.
	Concat
	Like
	BitAnd
	BitOr
	BitXor
)

var binaryNames = [...]string{"+", "-", "*", "/", "div", "%", "=", "<>", "<", "<=", ">", ">=", "and", "or", "||", "like", "&", "|", "^"}

func (op BinaryOp) String() string {
	if int(op) < len(binaryNames) {
		return binaryNames[op]
	}
	return fmt.Sprintf("BinaryOp(%d)", uint8(op))
}

// IsComparison reports whether op yields a boolean from two values.
func (op BinaryOp) IsComparison() bool {
	return op >= Equal && op <= GreaterOrEqual || op == Like
}

// IsLogical reports whether op combines two booleans.
func (op BinaryOp) IsLogical() bool {
	return op == And || op == Or
}

// Binary applies Op to Left and Right.
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (Binary) exprNode() {}

func (b Binary) Type() types.Type {
	switch {
	case b.Op.IsComparison(), b.Op.IsLogical():
		return types.Bool
	case b.Op == Concat:
		return types.String
	}
	return promote(b.Left.Type(), b.Right.Type())
}

func (b Binary) String() string { return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right) }

// promote returns the arithmetic result type of l and r.
func promote(l, r types.Type) types.Type {
	switch {
	case l == types.Null:
		return r
	case r == types.Null:
		return l
	case l == r:
		return l
	case l == types.Decimal || r == types.Decimal:
		return types.Decimal
	case l.IsFloat() || r.IsFloat():
		return types.Float64
	case l.IsInteger() && r.IsInteger():
		return types.Int64
	}
	return l
}

// UnaryOp is a unary operator.
type UnaryOp uint8

// Unary operators.
const (
	Not UnaryOp = iota
	Negate
	BitNot
	IsNull
	IsNotNull
)

var unaryNames = [...]string{"not", "-", "~", "is null", "is not null"}

func (op UnaryOp) String() string {
	if int(op) < len(unaryNames) {
		return unaryNames[op]
	}
	return fmt.Sprintf("UnaryOp(%d)", uint8(op))
}

// Unary applies Op to Operand.
type Unary struct {
	Op      UnaryOp
	Operand Expr
}

func (Unary) exprNode() {}

func (u Unary) Type() types.Type {
	switch u.Op {
	case Not, IsNull, IsNotNull:
		return types.Bool
	}
	return u.Operand.Type()
}

func (u Unary) String() string {
	if u.Op == IsNull || u.Op == IsNotNull {
		return fmt.Sprintf("(%s %s)", u.Operand, u.Op)
	}
	return fmt.Sprintf("%s(%s)", u.Op, u.Operand)
}

// Eq returns l = r.
func Eq(l, r Expr) Binary { return Binary{Op: Equal, Left: l, Right: r} }

// AndAll folds es with AND. It returns nil for an empty list.
func AndAll(es ...Expr) Expr {
	var out Expr
	for _, e := range es {
		if e == nil {
			continue
		}
		if out == nil {
			out = e
			continue
		}
		out = Binary{Op: And, Left: out, Right: e}
	}
	return out
}

// OrAll folds es with OR. It returns nil for an empty list.
func OrAll(es ...Expr) Expr {
	var out Expr
	for _, e := range es {
		if e == nil {
			continue
		}
		if out == nil {
			out = e
			continue
		}
		out = Binary{Op: Or, Left: out, Right: e}
	}
	return out
}
