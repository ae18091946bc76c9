// Package compiler translates provider trees into parameterized SQL for a
// dialect. Compilation has two stages: the provider tree is turned into a
// sqldom statement, binding column references to table aliases and lowering
// generic functions, and the statement is then printed by the dialect emitter.
package compiler

import (
	"fmt"
	"strings"

	"github.com/coregx/rse/internal/expr"
	"github.com/coregx/rse/internal/header"
	"github.com/coregx/rse/internal/provider"
	"github.com/coregx/rse/internal/sqldom"
	"github.com/coregx/rse/internal/types"
)

// Compiler compiles provider trees for one dialect. It is safe for concurrent use.
type Compiler struct {
	dialect Dialect
}

// New returns a compiler for d.
func New(d Dialect) *Compiler {
	return &Compiler{dialect: d}
}

// Dialect returns the target dialect.
func (c *Compiler) Dialect() Dialect { return c.dialect }

// Compile translates p into a command.
func (c *Compiler) Compile(p provider.Provider) (*Command, error) {
	stmt, err := c.Statement(p)
	if err != nil {
		return nil, err
	}
	ctx := NewEmitContext(c.dialect)
	sql, err := ctx.Emitter.Statement(ctx, stmt)
	if err != nil {
		return nil, err
	}
	sql, params, err := ctx.Finish(sql)
	if err != nil {
		return nil, err
	}
	return newCommand(sql, params, p.Header(), ctx.Mapper), nil
}

// Statement translates p into a sqldom statement without printing it.
func (c *Compiler) Statement(p provider.Provider) (sqldom.Statement, error) {
	if p == nil {
		return nil, types.ErrInvalidArgument.New("provider", "nil provider")
	}
	s := &scope{
		dialect:  c.dialect,
		features: c.dialect.Features(),
		emitter:  c.dialect.Emitter(),
		outer:    make(map[*expr.ApplyParameter][]expr.Expr),
	}
	q, err := s.visit(p)
	if err != nil {
		return nil, err
	}
	if order := p.Header().Order(); len(order) > 0 {
		if q.sel == nil {
			q = s.wrap(q)
		}
		if len(q.sel.OrderBy) == 0 {
			q.sel.OrderBy = orderItems(order, q.cols)
		}
	}
	return s.materialize(q), nil
}

// query is a partially built statement. cols holds the bound expression of
// every header column; sel is nil when stmt is a set query.
type query struct {
	stmt   sqldom.Statement
	sel    *sqldom.Select
	cols   []expr.Expr
	header *header.Header
	// names are the output names of a set query.
	names   []string
	grouped bool
	window  bool
}

// simple reports whether a filter or join can be merged into q.
func (q *query) simple() bool {
	return q.sel != nil && !q.sel.Distinct && !q.sel.HasLimit() && !q.grouped && !q.window
}

// plain reports whether q is a bare table read.
func (q *query) plain() bool {
	if !q.simple() || q.sel.From == nil || q.sel.Where != nil || q.sel.Lock != nil {
		return false
	}
	for _, c := range q.cols {
		if _, ok := c.(expr.BoundColumn); !ok {
			return false
		}
	}
	return true
}

type scope struct {
	dialect  Dialect
	features Features
	emitter  Emitter
	aliases  int
	outer    map[*expr.ApplyParameter][]expr.Expr
}

func (s *scope) alias() string {
	a := fmt.Sprintf("a%d", s.aliases)
	s.aliases++
	return a
}

func (s *scope) unsupported(construct string) error {
	return types.ErrNotSupported.New(construct, s.dialect.Name())
}

// materialize finalizes the select list of q and returns its statement.
func (s *scope) materialize(q *query) sqldom.Statement {
	if q.sel == nil {
		return q.stmt
	}
	names := q.header.Columns().Names()
	q.sel.Columns = make([]sqldom.Column, len(q.cols))
	for i, e := range q.cols {
		q.sel.Columns[i] = sqldom.Column{Expr: e, Alias: names[i]}
	}
	return q.stmt
}

// outputNames returns the column names q.stmt produces once materialized.
func (q *query) outputNames() []string {
	if q.sel == nil {
		return q.names
	}
	return q.header.Columns().Names()
}

// wrap turns q into a derived table and returns a select over it.
func (s *scope) wrap(q *query) *query {
	names := q.outputNames()
	stmt := s.materialize(q)
	a := s.alias()
	sel := &sqldom.Select{From: &sqldom.Derived{Query: stmt, Alias: a}}
	cols := make([]expr.Expr, len(names))
	for i, n := range names {
		cols[i] = expr.BoundColumn{Table: a, Name: n, T: q.header.TupleDescriptor().At(i)}
	}
	return &query{stmt: sel, sel: sel, cols: cols, header: q.header}
}

func (s *scope) ensure(q *query, ok bool) *query {
	if ok {
		return q
	}
	return s.wrap(q)
}

func (s *scope) visit(p provider.Provider) (*query, error) {
	switch n := p.(type) {
	case *provider.Table:
		return s.table(n.Ref.Schema, n.Ref.Name, nil, p.Header()), nil
	case *provider.Index:
		return s.table(n.Table.Schema, n.Table.Name, []string{n.Name}, p.Header()), nil
	case *provider.Store:
		return s.table("", n.Name, nil, p.Header()), nil
	case *provider.Raw:
		return s.raw(n)
	case *provider.FreeText:
		return s.freeText(n)
	case *provider.Filter:
		return s.filter(n.Source, n.Predicate)
	case *provider.Seek:
		return s.filter(n.Source, n.Predicate())
	case *provider.Select:
		q, err := s.visit(n.Source)
		if err != nil {
			return nil, err
		}
		q = s.ensure(q, q.sel != nil && !q.sel.Distinct)
		cols := make([]expr.Expr, len(n.Indices))
		for i, idx := range n.Indices {
			cols[i] = q.cols[idx]
		}
		q.cols, q.header = cols, p.Header()
		return q, nil
	case *provider.Join:
		return s.join(n)
	case *provider.Apply:
		return s.apply(n)
	case *provider.Aggregate:
		return s.aggregate(n)
	case *provider.Sort:
		q, err := s.visit(n.Source)
		if err != nil {
			return nil, err
		}
		q = s.ensure(q, q.sel != nil && !q.sel.HasLimit())
		q.header = p.Header()
		return q, nil
	case *provider.Skip:
		return s.limit(n.Source, p.Header(), nil, n.Count)
	case *provider.Take:
		return s.limit(n.Source, p.Header(), &n.Count, provider.Count{})
	case *provider.Distinct:
		q, err := s.visit(n.Source)
		if err != nil {
			return nil, err
		}
		q = s.ensure(q, q.sel != nil && !q.sel.HasLimit())
		q.sel.Distinct = true
		q.header = p.Header()
		return q, nil
	case *provider.SetOperation:
		return s.setOperation(n)
	case *provider.Alias:
		q, err := s.visit(n.Source)
		if err != nil {
			return nil, err
		}
		q.header = p.Header()
		return q, nil
	case *provider.Calculate:
		q, err := s.extendable(n.Source)
		if err != nil {
			return nil, err
		}
		for _, c := range n.Columns {
			e, err := s.bind(c.Expr, q.cols)
			if err != nil {
				return nil, err
			}
			q.cols = append(q.cols, e)
		}
		q.header = p.Header()
		return q, nil
	case *provider.RowNumber:
		q, err := s.visit(n.Source)
		if err != nil {
			return nil, err
		}
		// Window functions are computed before LIMIT and OFFSET.
		q = s.ensure(q, q.sel != nil && !q.sel.Distinct && !q.sel.HasLimit())
		q.cols = append(q.cols, expr.RowNumber{Order: sortKeys(q.header.Order(), q.cols)})
		q.window = true
		q.header = p.Header()
		return q, nil
	case *provider.Include:
		return s.include(n)
	case *provider.Lock:
		if !s.features.RowLocks {
			return nil, s.unsupported("row lock")
		}
		if n.Behavior == provider.LockSkipLocked && !s.features.SkipLocked {
			return nil, s.unsupported("SKIP LOCKED")
		}
		q, err := s.visit(n.Source)
		if err != nil {
			return nil, err
		}
		q = s.ensure(q, q.sel != nil)
		q.sel.Lock = &sqldom.Lock{Mode: sqldom.LockMode(n.Mode), Behavior: sqldom.LockBehavior(n.Behavior)}
		return q, nil
	case *provider.Existence:
		q, err := s.visit(n.Source)
		if err != nil {
			return nil, err
		}
		exists := expr.Query{Kind: expr.Exists, Source: s.materialize(q)}
		sel := &sqldom.Select{}
		return &query{stmt: sel, sel: sel, cols: []expr.Expr{exists}, header: p.Header()}, nil
	case *provider.Tag:
		q, err := s.visit(n.Source)
		if err != nil {
			return nil, err
		}
		q = s.ensure(q, q.sel != nil)
		if q.sel.Comment != "" {
			q.sel.Comment += "; " + n.Tag
		} else {
			q.sel.Comment = n.Tag
		}
		return q, nil
	}
	return nil, types.ErrNotSupported.New("provider "+p.Kind().String(), s.dialect.Name())
}

func (s *scope) table(schema, name string, indexes []string, h *header.Header) *query {
	a := s.alias()
	sel := &sqldom.Select{From: &sqldom.Table{Schema: schema, Name: name, Alias: a, Indexes: indexes}}
	cols := make([]expr.Expr, h.Len())
	for i, c := range h.Columns().All() {
		cols[i] = expr.BoundColumn{Table: a, Name: c.Name(), T: c.Type()}
	}
	return &query{stmt: sel, sel: sel, cols: cols, header: h}
}

// raw builds a UNION ALL of literal rows. An empty row set selects typed NULLs
// under a false condition.
func (s *scope) raw(r *provider.Raw) (*query, error) {
	h := r.Header()
	td := h.TupleDescriptor()
	names := h.Columns().Names()
	row := func(values []any) *sqldom.Select {
		sel := &sqldom.Select{Columns: make([]sqldom.Column, len(names))}
		for i, n := range names {
			var e expr.Expr = expr.Null(td.At(i))
			if values != nil {
				e = expr.Lit(values[i], td.At(i))
			}
			sel.Columns[i] = sqldom.Column{Expr: e, Alias: n}
		}
		return sel
	}
	var stmt sqldom.Statement
	if len(r.Rows) == 0 {
		sel := row(nil)
		sel.Where = expr.Eq(expr.Lit(int64(1), types.Int64), expr.Lit(int64(0), types.Int64))
		stmt = sel
	}
	for _, values := range r.Rows {
		if stmt == nil {
			stmt = row(values)
			continue
		}
		stmt = &sqldom.SetQuery{Op: sqldom.Union, All: true, Left: stmt, Right: row(values)}
	}
	return s.wrap(&query{stmt: stmt, header: h, names: names}), nil
}

func (s *scope) freeText(f *provider.FreeText) (*query, error) {
	if !s.features.FullText {
		return nil, s.unsupported("full-text table")
	}
	criteria, err := s.bind(f.Criteria, nil)
	if err != nil {
		return nil, err
	}
	h := f.Header()
	names := h.Columns().Names()
	a := s.alias()
	src := &sqldom.FullText{
		Schema:    f.Table.Schema,
		Name:      f.Table.Name,
		Criteria:  criteria,
		RankAlias: names[len(names)-1],
		Alias:     a,
	}
	for _, c := range f.Table.Columns {
		src.Columns = append(src.Columns, c.Name)
	}
	for _, idx := range f.Columns {
		src.Search = append(src.Search, f.Table.Columns[idx].Name)
	}
	sel := &sqldom.Select{From: src}
	cols := make([]expr.Expr, h.Len())
	for i, c := range h.Columns().All() {
		name := src.RankAlias
		if i < len(src.Columns) {
			name = src.Columns[i]
		}
		cols[i] = expr.BoundColumn{Table: a, Name: name, T: c.Type()}
	}
	return &query{stmt: sel, sel: sel, cols: cols, header: h}, nil
}

func (s *scope) filter(source provider.Provider, predicate expr.Expr) (*query, error) {
	q, err := s.visit(source)
	if err != nil {
		return nil, err
	}
	q = s.ensure(q, q.simple())
	pred, err := s.bind(predicate, q.cols)
	if err != nil {
		return nil, err
	}
	q.sel.Where = expr.AndAll(q.sel.Where, pred)
	return q, nil
}

// extendable returns the source compiled so that columns can be appended.
func (s *scope) extendable(source provider.Provider) (*query, error) {
	q, err := s.visit(source)
	if err != nil {
		return nil, err
	}
	return s.ensure(q, q.sel != nil && !q.sel.Distinct), nil
}

func (s *scope) join(j *provider.Join) (*query, error) {
	var kind sqldom.JoinKind
	switch j.Type {
	case provider.InnerJoin:
		kind = sqldom.Inner
	case provider.LeftOuterJoin:
		kind = sqldom.LeftOuter
	case provider.FullOuterJoin:
		if !s.features.FullOuterJoin {
			return nil, s.unsupported("FULL OUTER JOIN")
		}
		kind = sqldom.FullOuter
	case provider.CrossJoin:
		kind = sqldom.Cross
	}
	left, err := s.visit(j.Left)
	if err != nil {
		return nil, err
	}
	// A filter on the left side must not be applied before an outer join
	// that keeps unmatched rows of the right side.
	left = s.ensure(left, left.simple() && left.sel.From != nil && left.sel.Lock == nil && (kind != sqldom.FullOuter || left.sel.Where == nil))
	right, err := s.visit(j.Right)
	if err != nil {
		return nil, err
	}
	right = s.ensure(right, right.plain())

	cols := append(append([]expr.Expr(nil), left.cols...), right.cols...)
	conds := make([]expr.Expr, 0, len(j.EqualIndexes)+1)
	for _, pair := range j.EqualIndexes {
		conds = append(conds, expr.Eq(left.cols[pair.Left], right.cols[pair.Right]))
	}
	if j.Predicate != nil {
		pred, err := s.bind(j.Predicate, cols)
		if err != nil {
			return nil, err
		}
		conds = append(conds, pred)
	}
	left.sel.From = &sqldom.Joined{Kind: kind, Left: left.sel.From, Right: right.sel.From, On: expr.AndAll(conds...)}
	left.cols = cols
	left.header = j.Header()
	return left, nil
}

func (s *scope) apply(a *provider.Apply) (*query, error) {
	lateral := a.Type == provider.CrossApply || a.Type == provider.OuterApply
	if lateral && !s.features.LateralJoin {
		return nil, s.unsupported("APPLY")
	}
	left, err := s.visit(a.Left)
	if err != nil {
		return nil, err
	}
	left = s.ensure(left, left.simple() && left.sel.From != nil && left.sel.Lock == nil)
	s.outer[a.Param] = left.cols
	right, err := s.visit(a.Right)
	delete(s.outer, a.Param)
	if err != nil {
		return nil, err
	}
	if !lateral {
		var pred expr.Expr = expr.Query{Kind: expr.Exists, Source: s.materialize(right)}
		if a.Type == provider.NotExistingApply {
			pred = expr.Unary{Op: expr.Not, Operand: pred}
		}
		left.sel.Where = expr.AndAll(left.sel.Where, pred)
		left.header = a.Header()
		return left, nil
	}
	names := right.outputNames()
	alias := s.alias()
	src := &sqldom.Derived{Query: s.materialize(right), Alias: alias, Lateral: true}
	join := &sqldom.Joined{Kind: sqldom.Cross, Left: left.sel.From, Right: src}
	if a.Type == provider.OuterApply {
		join.Kind = sqldom.LeftOuter
		join.On = expr.Lit(true, types.Bool)
	}
	left.sel.From = join
	td := right.header.TupleDescriptor()
	for i, n := range names {
		left.cols = append(left.cols, expr.BoundColumn{Table: alias, Name: n, T: td.At(i)})
	}
	left.header = a.Header()
	return left, nil
}

var aggregateFuncs = map[header.AggregateType]expr.AggregateFunc{
	header.Count:         expr.AggCount,
	header.CountDistinct: expr.AggCount,
	header.Sum:           expr.AggSum,
	header.Avg:           expr.AggAvg,
	header.Min:           expr.AggMin,
	header.Max:           expr.AggMax,
}

func (s *scope) aggregate(a *provider.Aggregate) (*query, error) {
	q, err := s.visit(a.Source)
	if err != nil {
		return nil, err
	}
	q = s.ensure(q, q.simple())
	h := a.Header()
	cols := make([]expr.Expr, 0, h.Len())
	groupBy := make([]expr.Expr, len(a.GroupBy))
	for i, g := range a.GroupBy {
		groupBy[i] = q.cols[g]
		cols = append(cols, q.cols[g])
	}
	for i, spec := range a.Columns {
		agg := expr.Aggregate{
			Func:     aggregateFuncs[spec.Aggregate],
			Distinct: spec.Aggregate == header.CountDistinct,
			T:        h.TupleDescriptor().At(len(a.GroupBy) + i),
		}
		if spec.Source >= 0 {
			agg.Arg = q.cols[spec.Source]
		}
		cols = append(cols, agg)
	}
	q.sel.GroupBy = groupBy
	q.cols, q.header, q.grouped = cols, h, true
	return q, nil
}

// limit applies Take and Skip. The row order of the source becomes the
// ORDER BY of the limited select.
func (s *scope) limit(source provider.Provider, h *header.Header, take *provider.Count, skip provider.Count) (*query, error) {
	q, err := s.visit(source)
	if err != nil {
		return nil, err
	}
	if take != nil {
		q = s.ensure(q, q.sel != nil && q.sel.Limit == nil)
	} else {
		q = s.ensure(q, q.sel != nil && !q.sel.HasLimit())
	}
	if len(q.sel.OrderBy) == 0 {
		q.sel.OrderBy = orderItems(q.header.Order(), q.cols)
	}
	if take != nil {
		q.sel.Limit = take.Expr()
	} else {
		q.sel.Offset = skip.Expr()
	}
	q.header = h
	return q, nil
}

func (s *scope) setOperation(n *provider.SetOperation) (*query, error) {
	var op sqldom.SetOp
	switch n.Kind() {
	case provider.KindUnion, provider.KindConcat:
		op = sqldom.Union
	case provider.KindIntersect:
		if !s.features.Intersect {
			return nil, s.unsupported("INTERSECT")
		}
		op = sqldom.Intersect
	case provider.KindExcept:
		if !s.features.Except {
			return nil, s.unsupported("EXCEPT")
		}
		op = sqldom.Except
	}
	operand := func(p provider.Provider) (sqldom.Statement, error) {
		q, err := s.visit(p)
		if err != nil {
			return nil, err
		}
		q = s.ensure(q, q.sel != nil && !q.sel.HasLimit() && q.sel.Lock == nil)
		return s.materialize(q), nil
	}
	left, err := operand(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := operand(n.Right)
	if err != nil {
		return nil, err
	}
	stmt := &sqldom.SetQuery{Op: op, All: n.Kind() == provider.KindConcat, Left: left, Right: right}
	return &query{stmt: stmt, header: n.Header(), names: n.Left.Header().Columns().Names()}, nil
}

func (s *scope) include(n *provider.Include) (*query, error) {
	q, err := s.extendable(n.Source)
	if err != nil {
		return nil, err
	}
	operands := make([]expr.Expr, len(n.Columns))
	for i, c := range n.Columns {
		operands[i] = q.cols[c]
	}
	var test expr.Expr
	if n.Filter != nil {
		fq, err := s.visit(n.Filter)
		if err != nil {
			return nil, err
		}
		if len(operands) > 1 && !s.features.RowValues {
			return nil, s.unsupported("multi-column IN subquery")
		}
		test = expr.Query{Kind: expr.In, Source: s.materialize(fq), Operands: operands}
	} else {
		test = s.valueList(operands, n.Values)
	}
	q.cols = append(q.cols, test)
	q.header = n.Header()
	return q, nil
}

// valueList tests operands against literal rows. Without row values a
// multi-column list becomes a disjunction of conjunctions.
func (s *scope) valueList(operands []expr.Expr, values [][]any) expr.Expr {
	rows := make([][]expr.Expr, len(values))
	for i, r := range values {
		rows[i] = make([]expr.Expr, len(r))
		for j, v := range r {
			rows[i][j] = expr.Lit(v, operands[j].Type())
		}
	}
	if len(operands) == 1 || s.features.RowValues || len(rows) == 0 {
		return expr.InList{Operands: operands, Rows: rows}
	}
	alts := make([]expr.Expr, len(rows))
	for i, r := range rows {
		conds := make([]expr.Expr, len(r))
		for j, v := range r {
			conds[j] = expr.Eq(operands[j], v)
		}
		alts[i] = expr.AndAll(conds...)
	}
	return expr.OrAll(alts...)
}

// bind replaces column references by the bound expressions of cols, compiles
// subquery sources and lowers generic functions for the dialect.
func (s *scope) bind(e expr.Expr, cols []expr.Expr) (expr.Expr, error) {
	if err := expr.Validate(e, len(cols)); err != nil {
		return nil, err
	}
	bound, err := expr.Rewrite(e, func(n expr.Expr) (expr.Expr, bool, error) {
		switch x := n.(type) {
		case expr.Column:
			return cols[x.Index], true, nil
		case expr.OuterColumn:
			outer, ok := s.outer[x.Param]
			if !ok {
				return nil, false, types.ErrInvalidArgument.New(x.String(), "outer column outside of its apply")
			}
			if x.Index >= len(outer) {
				return nil, false, types.ErrIndexOutOfRange.New(x.Index, len(outer))
			}
			return outer[x.Index], true, nil
		case expr.Query:
			p, ok := x.Source.(provider.Provider)
			if !ok {
				return n, false, nil
			}
			sub, err := s.visit(p)
			if err != nil {
				return nil, false, err
			}
			x.Source = s.materialize(sub)
			return x, true, nil
		}
		return n, false, nil
	})
	if err != nil {
		return nil, err
	}
	return expr.Rewrite(bound, s.emitter.Lower)
}

func orderItems(order header.Order, cols []expr.Expr) []sqldom.OrderItem {
	items := make([]sqldom.OrderItem, len(order))
	for i, o := range order {
		items[i] = sqldom.OrderItem{Expr: cols[o.Index], Descending: o.Direction == header.Descending}
	}
	return items
}

func sortKeys(order header.Order, cols []expr.Expr) []expr.SortKey {
	keys := make([]expr.SortKey, len(order))
	for i, o := range order {
		keys[i] = expr.SortKey{Expr: cols[o.Index], Descending: o.Direction == header.Descending}
	}
	return keys
}

// Describe renders stmt as an indented outline for logs and tests.
func Describe(stmt sqldom.Statement) string {
	var sb strings.Builder
	describeStatement(&sb, stmt, 0)
	return sb.String()
}

func describeStatement(sb *strings.Builder, stmt sqldom.Statement, depth int) {
	indent := strings.Repeat("  ", depth)
	switch st := stmt.(type) {
	case *sqldom.Select:
		fmt.Fprintf(sb, "%sselect %d\n", indent, len(st.Columns))
		describeSource(sb, st.From, depth+1)
	case *sqldom.SetQuery:
		fmt.Fprintf(sb, "%s%s all=%t\n", indent, st.Op, st.All)
		describeStatement(sb, st.Left, depth+1)
		describeStatement(sb, st.Right, depth+1)
	}
}

func describeSource(sb *strings.Builder, src sqldom.TableSource, depth int) {
	indent := strings.Repeat("  ", depth)
	switch s := src.(type) {
	case *sqldom.Table:
		fmt.Fprintf(sb, "%stable %s\n", indent, s)
	case *sqldom.FullText:
		fmt.Fprintf(sb, "%s%s\n", indent, s)
	case *sqldom.Derived:
		fmt.Fprintf(sb, "%sderived %s lateral=%t\n", indent, s.Alias, s.Lateral)
		describeStatement(sb, s.Query, depth+1)
	case *sqldom.Joined:
		fmt.Fprintf(sb, "%s%s\n", indent, s.Kind)
		describeSource(sb, s.Left, depth+1)
		describeSource(sb, s.Right, depth+1)
	}
}
