package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/coregx/rse/internal/expr"
	"github.com/coregx/rse/internal/sqldom"
	"github.com/coregx/rse/internal/typemap"
	"github.com/coregx/rse/internal/types"
)

// Emitter prints a sqldom tree. Every method recurses through ctx.Emitter so
// that a dialect emitter overriding one node kind sees all nested nodes.
type Emitter interface {
	Statement(ctx *EmitContext, s sqldom.Statement) (string, error)
	Select(ctx *EmitContext, s *sqldom.Select) (string, error)
	Source(ctx *EmitContext, s sqldom.TableSource) (string, error)
	Expr(ctx *EmitContext, e expr.Expr) (string, error)
	// Lower replaces one generic node with primitives. It is applied bottom-up
	// by expr.Rewrite before emission.
	Lower(e expr.Expr) (expr.Expr, bool, error)
}

// EmitContext carries the state of one emission.
type EmitContext struct {
	Translator Translator
	Emitter    Emitter
	Mapper     typemap.Mapper
	Dialect    string

	params []expr.Param
}

// NewEmitContext returns a context emitting with d.
func NewEmitContext(d Dialect) *EmitContext {
	return &EmitContext{
		Translator: d.Translator(),
		Emitter:    d.Emitter(),
		Mapper:     d.TypeMapper(),
		Dialect:    d.Name(),
	}
}

// paramMark delimits a parameter token. Quoted literals never contain it.
const paramMark = '\x00'

// Param registers p and returns its token, cast when the mapper requires it.
func (c *EmitContext) Param(p expr.Param) (string, error) {
	token := string(paramMark) + strconv.Itoa(len(c.params)) + string(paramMark)
	c.params = append(c.params, p)
	if c.Mapper != nil && c.Mapper.RequiresCast(p.T) {
		return c.Translator.Cast(token, p.T)
	}
	return token, nil
}

// Finish replaces parameter tokens with placeholders numbered in text order
// and returns the parameters in that order.
func (c *EmitContext) Finish(sql string) (string, []expr.Param, error) {
	if len(c.params) == 0 {
		return sql, nil, nil
	}
	var (
		sb     strings.Builder
		params []expr.Param
	)
	sb.Grow(len(sql))
	for {
		start := strings.IndexByte(sql, paramMark)
		if start < 0 {
			sb.WriteString(sql)
			break
		}
		n := strings.IndexByte(sql[start+1:], paramMark)
		if n < 0 {
			return "", nil, types.ErrInvalidArgument.New("sql", "unterminated parameter token")
		}
		end := start + 1 + n
		idx, err := strconv.Atoi(sql[start+1 : end])
		if err != nil || idx < 0 || idx >= len(c.params) {
			return "", nil, types.ErrInvalidArgument.New("sql", fmt.Sprintf("malformed parameter token %q", sql[start+1:end]))
		}
		sb.WriteString(sql[:start])
		params = append(params, c.params[idx])
		sb.WriteString(c.Translator.Placeholder(len(params)))
		sql = sql[end+1:]
	}
	return sb.String(), params, nil
}

// BaseEmitter prints SQL-92. Dialect emitters embed it.
type BaseEmitter struct{}

func (BaseEmitter) Lower(e expr.Expr) (expr.Expr, bool, error) { return Lower(e) }

func (BaseEmitter) Statement(ctx *EmitContext, s sqldom.Statement) (string, error) {
	switch st := s.(type) {
	case *sqldom.Select:
		return ctx.Emitter.Select(ctx, st)
	case *sqldom.SetQuery:
		left, err := ctx.Emitter.Statement(ctx, st.Left)
		if err != nil {
			return "", err
		}
		right, err := ctx.Emitter.Statement(ctx, st.Right)
		if err != nil {
			return "", err
		}
		return left + " " + ctx.Translator.SetOperation(st.Op, st.All) + " " + right, nil
	}
	return "", types.ErrInvalidArgument.New("statement", "unknown statement node")
}

func (BaseEmitter) Select(ctx *EmitContext, s *sqldom.Select) (string, error) {
	tr := ctx.Translator
	var sb strings.Builder
	if s.Comment != "" {
		sb.WriteString(tr.Comment(s.Comment))
		sb.WriteByte(' ')
	}
	sb.WriteString(tr.Select(SectionEntry))
	if s.Distinct {
		sb.WriteByte(' ')
		sb.WriteString(tr.Select(SectionDistinct))
	}
	for i, col := range s.Columns {
		if i > 0 {
			sb.WriteByte(',')
		}
		v, err := ctx.Emitter.Expr(ctx, col.Expr)
		if err != nil {
			return "", err
		}
		sb.WriteByte(' ')
		sb.WriteString(v)
		if col.Alias != "" {
			sb.WriteString(" AS ")
			sb.WriteString(tr.QuoteIdentifier(col.Alias))
		}
	}
	if s.From != nil {
		src, err := ctx.Emitter.Source(ctx, s.From)
		if err != nil {
			return "", err
		}
		sb.WriteByte(' ')
		sb.WriteString(tr.Select(SectionFrom))
		sb.WriteByte(' ')
		sb.WriteString(src)
	} else if s.Where != nil {
		if dummy := tr.Select(SectionDummyFrom); dummy != "" {
			sb.WriteByte(' ')
			sb.WriteString(dummy)
		}
	}
	if err := clause(ctx, &sb, SectionWhere, s.Where); err != nil {
		return "", err
	}
	if len(s.GroupBy) > 0 {
		list, err := exprList(ctx, s.GroupBy)
		if err != nil {
			return "", err
		}
		sb.WriteString(" " + tr.Select(SectionGroupBy) + " " + list)
	}
	if err := clause(ctx, &sb, SectionHaving, s.Having); err != nil {
		return "", err
	}
	if len(s.OrderBy) > 0 {
		items := make([]string, len(s.OrderBy))
		for i, o := range s.OrderBy {
			v, err := ctx.Emitter.Expr(ctx, o.Expr)
			if err != nil {
				return "", err
			}
			if o.Descending {
				v += " DESC"
			}
			items[i] = v
		}
		sb.WriteString(" " + tr.Select(SectionOrderBy) + " " + strings.Join(items, ", "))
	}
	if s.HasLimit() {
		var limit, offset string
		var err error
		if s.Limit != nil {
			if limit, err = ctx.Emitter.Expr(ctx, s.Limit); err != nil {
				return "", err
			}
		}
		if s.Offset != nil {
			if offset, err = ctx.Emitter.Expr(ctx, s.Offset); err != nil {
				return "", err
			}
		}
		sb.WriteString(" " + tr.LimitOffset(limit, offset))
	}
	if s.Lock != nil {
		lock, err := tr.Lock(*s.Lock)
		if err != nil {
			return "", err
		}
		sb.WriteString(" " + lock)
	}
	if exit := tr.Select(SectionExit); exit != "" {
		sb.WriteString(" " + exit)
	}
	return sb.String(), nil
}

func clause(ctx *EmitContext, sb *strings.Builder, section SelectSection, e expr.Expr) error {
	if e == nil {
		return nil
	}
	v, err := ctx.Emitter.Expr(ctx, e)
	if err != nil {
		return err
	}
	sb.WriteString(" " + ctx.Translator.Select(section) + " " + v)
	return nil
}

func exprList(ctx *EmitContext, es []expr.Expr) (string, error) {
	parts := make([]string, len(es))
	for i, e := range es {
		v, err := ctx.Emitter.Expr(ctx, e)
		if err != nil {
			return "", err
		}
		parts[i] = v
	}
	return strings.Join(parts, ", "), nil
}

// QualifiedName quotes an optionally schema-qualified name.
func QualifiedName(tr Translator, schema, name string) string {
	if schema == "" {
		return tr.QuoteIdentifier(name)
	}
	return tr.QuoteIdentifier(schema) + "." + tr.QuoteIdentifier(name)
}

func (BaseEmitter) Source(ctx *EmitContext, s sqldom.TableSource) (string, error) {
	tr := ctx.Translator
	switch src := s.(type) {
	case *sqldom.Table:
		out := QualifiedName(tr, src.Schema, src.Name) + " AS " + tr.QuoteIdentifier(src.Alias)
		if hint := tr.IndexHint(src.Indexes); hint != "" {
			out += " " + hint
		}
		return out, nil
	case *sqldom.Derived:
		q, err := ctx.Emitter.Statement(ctx, src.Query)
		if err != nil {
			return "", err
		}
		out := "(" + q + ") AS " + tr.QuoteIdentifier(src.Alias)
		if src.Lateral {
			out = "LATERAL " + out
		}
		return out, nil
	case *sqldom.Joined:
		left, err := ctx.Emitter.Source(ctx, src.Left)
		if err != nil {
			return "", err
		}
		right, err := ctx.Emitter.Source(ctx, src.Right)
		if err != nil {
			return "", err
		}
		out := left + " " + tr.Join(src.Kind) + " " + right
		if src.On != nil {
			on, err := ctx.Emitter.Expr(ctx, src.On)
			if err != nil {
				return "", err
			}
			out += " ON " + on
		}
		return out, nil
	case *sqldom.FullText:
		return "", types.ErrNotSupported.New("full-text table", ctx.Dialect)
	}
	return "", types.ErrInvalidArgument.New("table source", "unknown source node")
}

func (BaseEmitter) Expr(ctx *EmitContext, e expr.Expr) (string, error) {
	tr := ctx.Translator
	switch x := e.(type) {
	case expr.BoundColumn:
		if x.Table == "" {
			return tr.QuoteIdentifier(x.Name), nil
		}
		return tr.QuoteIdentifier(x.Table) + "." + tr.QuoteIdentifier(x.Name), nil
	case expr.Column, expr.OuterColumn:
		return "", types.ErrInvalidArgument.New(x.String(), "column is not bound")
	case expr.Literal:
		return tr.Literal(x.Value, x.T)
	case expr.Param:
		return ctx.Param(x)
	case expr.Binary:
		left, err := ctx.Emitter.Expr(ctx, x.Left)
		if err != nil {
			return "", err
		}
		right, err := ctx.Emitter.Expr(ctx, x.Right)
		if err != nil {
			return "", err
		}
		return tr.Binary(x.Op, left, right)
	case expr.Unary:
		v, err := ctx.Emitter.Expr(ctx, x.Operand)
		if err != nil {
			return "", err
		}
		return tr.Unary(x.Op, v)
	case expr.Call:
		if x.Func.IsGeneric() {
			return "", types.ErrNotSupported.New("function "+x.Func.String(), ctx.Dialect)
		}
		args := make([]string, len(x.Args))
		for i, a := range x.Args {
			v, err := ctx.Emitter.Expr(ctx, a)
			if err != nil {
				return "", err
			}
			args[i] = v
		}
		return tr.Function(x.Func, args)
	case expr.Cast:
		v, err := ctx.Emitter.Expr(ctx, x.Operand)
		if err != nil {
			return "", err
		}
		return tr.Cast(v, x.To)
	case expr.Extract:
		v, err := ctx.Emitter.Expr(ctx, x.Operand)
		if err != nil {
			return "", err
		}
		return tr.Extract(x.Part, v)
	case expr.Case:
		var sb strings.Builder
		sb.WriteString("CASE")
		for _, w := range x.Whens {
			cond, err := ctx.Emitter.Expr(ctx, w.Cond)
			if err != nil {
				return "", err
			}
			then, err := ctx.Emitter.Expr(ctx, w.Then)
			if err != nil {
				return "", err
			}
			sb.WriteString(" WHEN " + cond + " THEN " + then)
		}
		if x.Else != nil {
			v, err := ctx.Emitter.Expr(ctx, x.Else)
			if err != nil {
				return "", err
			}
			sb.WriteString(" ELSE " + v)
		}
		sb.WriteString(" END")
		return sb.String(), nil
	case expr.Query:
		stmt, ok := x.Source.(sqldom.Statement)
		if !ok {
			return "", types.ErrInvalidArgument.New(x.String(), "subquery is not compiled")
		}
		q, err := ctx.Emitter.Statement(ctx, stmt)
		if err != nil {
			return "", err
		}
		switch x.Kind {
		case expr.Exists:
			return "EXISTS (" + q + ")", nil
		case expr.In:
			ops, err := exprList(ctx, x.Operands)
			if err != nil {
				return "", err
			}
			if len(x.Operands) > 1 {
				ops = "(" + ops + ")"
			}
			return "(" + ops + " IN (" + q + "))", nil
		}
		return "(" + q + ")", nil
	case expr.InList:
		return emitInList(ctx, x)
	case expr.Aggregate:
		arg := ""
		if x.Arg != nil {
			v, err := ctx.Emitter.Expr(ctx, x.Arg)
			if err != nil {
				return "", err
			}
			arg = v
		}
		return tr.Aggregate(x.Func, arg, x.Distinct), nil
	case expr.RowNumber:
		items := make([]string, len(x.Order))
		for i, k := range x.Order {
			v, err := ctx.Emitter.Expr(ctx, k.Expr)
			if err != nil {
				return "", err
			}
			if k.Descending {
				v += " DESC"
			}
			items[i] = v
		}
		if len(items) == 0 {
			return "ROW_NUMBER() OVER ()", nil
		}
		return "ROW_NUMBER() OVER (ORDER BY " + strings.Join(items, ", ") + ")", nil
	}
	return "", types.ErrInvalidArgument.New("expression", "unknown expression node")
}

func emitInList(ctx *EmitContext, l expr.InList) (string, error) {
	if len(l.Rows) == 0 {
		return "(1 = 0)", nil
	}
	ops, err := exprList(ctx, l.Operands)
	if err != nil {
		return "", err
	}
	rows := make([]string, len(l.Rows))
	for i, r := range l.Rows {
		v, err := exprList(ctx, r)
		if err != nil {
			return "", err
		}
		if len(r) > 1 {
			v = "(" + v + ")"
		}
		rows[i] = v
	}
	if len(l.Operands) > 1 {
		ops = "(" + ops + ")"
	}
	return "(" + ops + " IN (" + strings.Join(rows, ", ") + "))", nil
}
