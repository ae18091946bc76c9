package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/rse/internal/types"
)

func TestBinary_Type(t *testing.T) {
	tests := []struct {
		name string
		e    Expr
		want types.Type
	}{
		{"comparison", Eq(Column{0, types.Int32}, Lit(1, types.Int32)), types.Bool},
		{"logical", Binary{Op: And, Left: Lit(true, types.Bool), Right: Lit(false, types.Bool)}, types.Bool},
		{"concat", Binary{Op: Concat, Left: Column{0, types.String}, Right: Lit("x", types.String)}, types.String},
		{"same type", Binary{Op: Add, Left: Column{0, types.Int32}, Right: Lit(1, types.Int32)}, types.Int32},
		{"mixed integers", Binary{Op: Add, Left: Column{0, types.Int32}, Right: Lit(1, types.Int16)}, types.Int64},
		{"decimal wins", Binary{Op: Multiply, Left: Column{0, types.Float64}, Right: Lit(1, types.Decimal)}, types.Decimal},
		{"float wins", Binary{Op: Multiply, Left: Column{0, types.Int64}, Right: Lit(1.5, types.Float32)}, types.Float64},
		{"null takes other side", Binary{Op: Add, Left: Null(types.Null), Right: Lit(1, types.Int64)}, types.Int64},
		{"is null", Unary{Op: IsNull, Operand: Column{0, types.String}}, types.Bool},
		{"negate", Unary{Op: Negate, Operand: Column{0, types.Decimal}}, types.Decimal},
		{"extract", Extract{Part: Year, Operand: Column{0, types.DateTime}}, types.Int32},
		{"exists", Query{Kind: Exists, Source: fakeRelation("t")}, types.Bool},
		{"scalar", Query{Kind: Scalar, Source: fakeRelation("t"), T: types.Int64}, types.Int64},
		{"coalesce", Fn(Coalesce, Null(types.Null), Column{0, types.String}), types.String},
		{"datetime diff", Fn(DateTimeSubtractDateTime, Column{0, types.DateTime}, Column{1, types.DateTime}), types.Interval},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.e.Type())
		})
	}
}

type fakeRelation string

func (r fakeRelation) String() string { return string(r) }

func TestNewCall_Arity(t *testing.T) {
	_, err := NewCall(Square, Column{0, types.Int32})
	require.NoError(t, err)

	_, err = NewCall(Square)
	require.Error(t, err)
	assert.True(t, types.ErrInvalidArgument.Is(err))

	_, err = NewCall(ConcatAll, Lit("a", types.String), Lit("b", types.String), Lit("c", types.String))
	require.NoError(t, err)

	_, err = NewCall(Abs, nil)
	require.Error(t, err)
}

func TestFunction_IsGeneric(t *testing.T) {
	assert.True(t, Square.IsGeneric())
	assert.True(t, DateTimeTruncate.IsGeneric())
	assert.False(t, Abs.IsGeneric())
	assert.False(t, DateOf.IsGeneric())
	assert.Equal(t, "Power", Power.String())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		e       Expr
		wantErr bool
	}{
		{"in range", Eq(Column{1, types.Int32}, Lit(1, types.Int32)), false},
		{"out of range", Eq(Column{2, types.Int32}, Lit(1, types.Int32)), true},
		{"nested out of range", Fn(Abs, Binary{Op: Add, Left: Column{0, types.Int32}, Right: Column{5, types.Int32}}), true},
		{"bad arity", Call{Func: Power, Args: []Expr{Column{0, types.Int32}}}, true},
		{"nil operand", Binary{Op: Add, Left: Column{0, types.Int32}}, true},
		{"param without value", Param{Name: "p", T: types.Int32}, true},
		{"param", Param{Name: "p", Value: Const(1), T: types.Int32}, false},
		{"ragged in list", InList{Operands: []Expr{Column{0, types.Int32}}, Rows: [][]Expr{{Lit(1, types.Int32), Lit(2, types.Int32)}}}, true},
		{"outer column without parameter", OuterColumn{Index: 0, T: types.Int32}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.e, 2)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRewrite_RelowersReplacements(t *testing.T) {
	// Square becomes Power, which the second rule turns into a multiplication.
	in := Binary{Op: Add, Left: Fn(Square, Column{0, types.Int32}), Right: Lit(1, types.Int32)}

	out, err := Rewrite(in, func(e Expr) (Expr, bool, error) {
		c, ok := e.(Call)
		if !ok {
			return e, false, nil
		}
		switch c.Func {
		case Square:
			return Fn(Power, c.Args[0], Lit(2, types.Int32)), true, nil
		case Power:
			return Binary{Op: Multiply, Left: c.Args[0], Right: c.Args[0]}, true, nil
		}
		return e, false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "((#0 * #0) + 1)", out.String())
}

func TestRewrite_DoesNotMutateInput(t *testing.T) {
	in := Case{Whens: []When{{Cond: Eq(Column{0, types.Int32}, Lit(1, types.Int32)), Then: Column{1, types.String}}}, Else: Lit("x", types.String)}
	before := in.String()

	out, err := Rewrite(in, func(e Expr) (Expr, bool, error) {
		if c, ok := e.(Column); ok {
			return BoundColumn{Table: "a", Name: "c", T: c.T}, true, nil
		}
		return e, false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, before, in.String())
	assert.Equal(t, `case when (a.c = 1) then a.c else "x" end`, out.String())
}

func TestRewrite_Diverging(t *testing.T) {
	_, err := Rewrite(Column{0, types.Int32}, func(e Expr) (Expr, bool, error) {
		return e, true, nil
	})
	assert.Error(t, err)
}

func TestAndAll(t *testing.T) {
	assert.Nil(t, AndAll())
	a := Eq(Column{0, types.Int32}, Lit(1, types.Int32))
	assert.Equal(t, a, AndAll(nil, a))
	assert.Equal(t, "((#0 = 1) and (#0 = 1))", AndAll(a, a).String())
	assert.Equal(t, "((#0 = 1) or (#0 = 1))", OrAll(a, a).String())
}

func TestParameterContext(t *testing.T) {
	pc := NewParameterContext(map[string]any{"take": 10})
	v, err := FromContext("take")(pc)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	_, err = FromContext("skip")(pc)
	require.Error(t, err)

	pc.Set("skip", 5)
	v, err = FromContext("skip")(pc)
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	v, err = Const("x")(nil)
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}

func TestOuterParameters(t *testing.T) {
	p := NewApplyParameter("o")
	e := AndAll(
		Eq(Column{0, types.Int32}, OuterColumn{Param: p, Index: 1, T: types.Int32}),
		Eq(Column{1, types.Int32}, OuterColumn{Param: p, Index: 0, T: types.Int32}),
	)
	assert.Equal(t, []*ApplyParameter{p}, OuterParameters(e))
}
