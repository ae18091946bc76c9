package compiler

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/rse/internal/expr"
	"github.com/coregx/rse/internal/sqldom"
	"github.com/coregx/rse/internal/types"
)

func TestBaseTranslator_Quoting(t *testing.T) {
	tr := NewBaseTranslator()
	assert.Equal(t, `"users"`, tr.QuoteIdentifier("users"))
	assert.Equal(t, `"we""ird"`, tr.QuoteIdentifier(`we"ird`))
	assert.Equal(t, `'it''s'`, tr.QuoteString("it's"))
	assert.Equal(t, `'a\b'`, tr.QuoteString(`a\b`))
	assert.Equal(t, `'ab'`, tr.QuoteString("a\x00b"))
	assert.Equal(t, `"ab"`, tr.QuoteIdentifier("a\x00b"))
	assert.Equal(t, "/* ab */", tr.Comment("a\x00b"))

	mysqlLike := &BaseTranslator{OpenQuote: "`", CloseQuote: "`", BackslashEscapes: true}
	assert.Equal(t, "`a``b`", mysqlLike.QuoteIdentifier("a`b"))
	assert.Equal(t, `'a\\b'`, mysqlLike.QuoteString(`a\b`))
}

func TestBaseTranslator_Literal(t *testing.T) {
	tr := NewBaseTranslator()
	when := time.Date(2024, 2, 29, 13, 45, 10, 123456000, time.UTC)
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	tests := []struct {
		name string
		v    any
		typ  types.Type
		want string
	}{
		{"null", nil, types.Int32, "NULL"},
		{"bool", true, types.Bool, "TRUE"},
		{"int", int32(-5), types.Int32, "-5"},
		{"uint64", uint64(math.MaxUint64), types.UInt64, "18446744073709551615"},
		{"float", 2.0, types.Float64, "2.0"},
		{"float exponent", 1e21, types.Float64, "1e+21"},
		{"decimal", decimal.RequireFromString("1.50"), types.Decimal, "1.5"},
		{"string", "o'k", types.String, "'o''k'"},
		{"bytes", []byte{0xde, 0xad}, types.Bytes, "X'DEAD'"},
		{"guid", id, types.GUID, "'6ba7b810-9dad-11d1-80b4-00c04fd430c8'"},
		{"datetime", when, types.DateTime, "TIMESTAMP '2024-02-29 13:45:10.123456'"},
		{"date", when, types.Date, "DATE '2024-02-29'"},
		{"time", 90 * time.Minute, types.Time, "TIME '01:30:00.000000'"},
		{"interval", 2 * time.Second, types.Interval, "2000000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tr.Literal(tt.v, tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := tr.Literal(math.NaN(), types.Float64)
	assert.True(t, types.ErrNotSupported.Is(err))

	_, err = tr.Literal("yes", types.Bool)
	assert.True(t, types.ErrConversion.Is(err))
}

func TestBaseTranslator_LimitOffset(t *testing.T) {
	tr := NewBaseTranslator()
	assert.Equal(t, "LIMIT 3 OFFSET 4", tr.LimitOffset("3", "4"))
	assert.Equal(t, "LIMIT 3", tr.LimitOffset("3", ""))
	assert.Equal(t, "OFFSET 4", tr.LimitOffset("", "4"))
	assert.Empty(t, tr.LimitOffset("", ""))
}

func TestBaseTranslator_Fragments(t *testing.T) {
	tr := NewBaseTranslator()

	s, err := tr.Binary(expr.Concat, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "(a || b)", s)

	s, err = tr.Unary(expr.IsNotNull, "a")
	require.NoError(t, err)
	assert.Equal(t, "(a IS NOT NULL)", s)

	s, err = tr.Function(expr.Position, []string{"'x'", "a"})
	require.NoError(t, err)
	assert.Equal(t, "POSITION('x' IN a)", s)

	s, err = tr.Extract(expr.DayOfWeek, "a")
	require.NoError(t, err)
	assert.Equal(t, "CAST(EXTRACT(DOW FROM a) AS INTEGER)", s)

	s, err = tr.Cast("a", types.UInt64)
	require.NoError(t, err)
	assert.Equal(t, "CAST(a AS NUMERIC(20, 0))", s)

	assert.Equal(t, "COUNT(*)", tr.Aggregate(expr.AggCount, "", false))
	assert.Equal(t, "SUM(DISTINCT a)", tr.Aggregate(expr.AggSum, "a", true))
	assert.Equal(t, "INTERSECT ALL", tr.SetOperation(sqldom.Intersect, true))
	assert.Equal(t, "/* a * / b */", tr.Comment("a */ b"))

	lock, err := tr.Lock(sqldom.Lock{Mode: sqldom.LockShared, Behavior: sqldom.LockNoWait})
	require.NoError(t, err)
	assert.Equal(t, "FOR SHARE NOWAIT", lock)

	_, err = tr.Function(expr.Truncate, []string{"a"})
	assert.True(t, types.ErrNotSupported.Is(err))
}

func TestEmitContext_FinishNumbersInTextOrder(t *testing.T) {
	ctx := &EmitContext{Translator: &BaseTranslator{NumberedPlaceholders: true}}
	first := expr.Param{Name: "first", Value: expr.Const(1), T: types.Int32}
	second := expr.Param{Name: "second", Value: expr.Const(2), T: types.Int32}

	a, err := ctx.Param(first)
	require.NoError(t, err)
	b, err := ctx.Param(second)
	require.NoError(t, err)

	sql, params, err := ctx.Finish("instr(" + b + ", " + a + ") + " + a)
	require.NoError(t, err)
	assert.Equal(t, "instr($1, $2) + $3", sql)
	require.Len(t, params, 3)
	assert.Equal(t, []string{"second", "first", "first"}, []string{params[0].Name, params[1].Name, params[2].Name})

	sql, params, err = (&EmitContext{Translator: NewBaseTranslator()}).Finish("SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", sql)
	assert.Empty(t, params)
}

func TestEmitContext_FinishRejectsMalformedTokens(t *testing.T) {
	p := expr.Param{Name: "p", Value: expr.Const(1), T: types.Int32}

	tests := []struct {
		name string
		sql  func(token string) string
	}{
		{name: "stray mark before token", sql: func(token string) string { return "a\x00b " + token }},
		{name: "unterminated", sql: func(token string) string { return token + " \x00" }},
		{name: "index out of range", sql: func(string) string { return "\x007\x00" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := &EmitContext{Translator: NewBaseTranslator()}
			token, err := ctx.Param(p)
			require.NoError(t, err)

			_, _, err = ctx.Finish(tt.sql(token))
			require.Error(t, err)
			assert.True(t, types.ErrInvalidArgument.Is(err))
		})
	}
}
