package provider

import (
	"fmt"
	"strings"

	"github.com/coregx/rse/internal/expr"
	"github.com/coregx/rse/internal/header"
	"github.com/coregx/rse/internal/types"
)

// Filter keeps the source rows for which Predicate is true.
type Filter struct {
	node
	Source    Provider
	Predicate expr.Expr
}

// NewFilter returns source filtered by predicate.
func NewFilter(source Provider, predicate expr.Expr) (*Filter, error) {
	if err := checkSource("filter", source); err != nil {
		return nil, err
	}
	if err := expr.Validate(predicate, source.Header().Len()); err != nil {
		return nil, err
	}
	if t := predicate.Type(); t != types.Bool {
		return nil, types.ErrInvalidArgument.New("filter predicate", "type "+t.String())
	}
	return &Filter{node: node{header: source.Header(), sources: []Provider{source}}, Source: source, Predicate: predicate}, nil
}

func (*Filter) Kind() Kind { return KindFilter }

func (f *Filter) String() string { return describe(KindFilter, f.Predicate.String(), f.Source) }

// Select projects the source onto Indices.
type Select struct {
	node
	Source  Provider
	Indices []int
}

// NewSelect returns the projection of source onto indices.
func NewSelect(source Provider, indices ...int) (*Select, error) {
	if err := checkSource("select", source); err != nil {
		return nil, err
	}
	if len(indices) == 0 {
		return nil, types.ErrInvalidArgument.New("select", "no columns")
	}
	h, err := source.Header().Select(indices...)
	if err != nil {
		return nil, err
	}
	return &Select{node: node{header: h, sources: []Provider{source}}, Source: source, Indices: append([]int(nil), indices...)}, nil
}

func (*Select) Kind() Kind { return KindSelect }

func (s *Select) String() string { return describe(KindSelect, ints(s.Indices), s.Source) }

// Sort declares the order of the source rows.
type Sort struct {
	node
	Source Provider
	Order  header.Order
}

// NewSort returns source ordered by order.
func NewSort(source Provider, order header.Order) (*Sort, error) {
	if err := checkSource("sort", source); err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return nil, types.ErrInvalidArgument.New("sort", "empty order")
	}
	h, err := source.Header().Sort(order)
	if err != nil {
		return nil, err
	}
	return &Sort{node: node{header: h, sources: []Provider{source}}, Source: source, Order: h.Order()}, nil
}

func (*Sort) Kind() Kind { return KindSort }

func (s *Sort) String() string { return describe(KindSort, s.Order.String(), s.Source) }

// Count is a row count for Skip and Take. It is either a literal Value or,
// when Bind is set, late-bound per execution. Name identifies a late-bound count.
type Count struct {
	Value int64
	Name  string
	Bind  expr.ValueFunc
}

// Literal returns a fixed count.
func Literal(n int64) Count { return Count{Value: n} }

// LateBound returns a count resolved from the parameter context at execution time.
func LateBound(name string, fn expr.ValueFunc) Count { return Count{Name: name, Bind: fn} }

// IsLateBound reports whether the count is resolved per execution.
func (c Count) IsLateBound() bool { return c.Bind != nil }

// Expr returns the count as a literal or a parameter expression.
func (c Count) Expr() expr.Expr {
	if c.IsLateBound() {
		return expr.Param{Name: c.Name, Value: c.Bind, T: types.Int64}
	}
	return expr.Lit(c.Value, types.Int64)
}

func (c Count) validate(op string) error {
	if c.IsLateBound() {
		if c.Name == "" {
			return types.ErrInvalidArgument.New(op, "late-bound count without a name")
		}
		return nil
	}
	if c.Value < 0 {
		return types.ErrInvalidArgument.New(op, fmt.Sprintf("negative count %d", c.Value))
	}
	return nil
}

func (c Count) String() string {
	if c.IsLateBound() {
		return "@" + c.Name
	}
	return fmt.Sprint(c.Value)
}

// Skip drops the first Count rows of the source.
type Skip struct {
	node
	Source Provider
	Count  Count
}

// NewSkip returns source without its first count rows.
func NewSkip(source Provider, count Count) (*Skip, error) {
	if err := checkSource("skip", source); err != nil {
		return nil, err
	}
	if err := count.validate("skip"); err != nil {
		return nil, err
	}
	return &Skip{node: node{header: source.Header(), sources: []Provider{source}}, Source: source, Count: count}, nil
}

func (*Skip) Kind() Kind { return KindSkip }

func (s *Skip) String() string { return describe(KindSkip, s.Count.String(), s.Source) }

// Take keeps the first Count rows of the source.
type Take struct {
	node
	Source Provider
	Count  Count
}

// NewTake returns the first count rows of source.
func NewTake(source Provider, count Count) (*Take, error) {
	if err := checkSource("take", source); err != nil {
		return nil, err
	}
	if err := count.validate("take"); err != nil {
		return nil, err
	}
	return &Take{node: node{header: source.Header(), sources: []Provider{source}}, Source: source, Count: count}, nil
}

func (*Take) Kind() Kind { return KindTake }

func (t *Take) String() string { return describe(KindTake, t.Count.String(), t.Source) }

// Distinct removes duplicate rows.
type Distinct struct {
	node
	Source Provider
}

// NewDistinct returns the distinct rows of source.
func NewDistinct(source Provider) (*Distinct, error) {
	if err := checkSource("distinct", source); err != nil {
		return nil, err
	}
	return &Distinct{node: node{header: source.Header(), sources: []Provider{source}}, Source: source}, nil
}

func (*Distinct) Kind() Kind { return KindDistinct }

func (d *Distinct) String() string { return describe(KindDistinct, "", d.Source) }

// Alias renames every source column to Alias.column.
type Alias struct {
	node
	Source Provider
	Alias  string
}

// NewAlias returns source with its columns aliased.
func NewAlias(source Provider, alias string) (*Alias, error) {
	if err := checkSource("alias", source); err != nil {
		return nil, err
	}
	h, err := source.Header().Alias(alias)
	if err != nil {
		return nil, err
	}
	return &Alias{node: node{header: h, sources: []Provider{source}}, Source: source, Alias: alias}, nil
}

func (*Alias) Kind() Kind { return KindAlias }

func (a *Alias) String() string { return describe(KindAlias, a.Alias, a.Source) }

// CalculatedColumn describes a column computed from the current row.
type CalculatedColumn struct {
	Name string
	Expr expr.Expr
}

// Calculate appends calculated columns to the source.
type Calculate struct {
	node
	Source  Provider
	Columns []CalculatedColumn
}

// NewCalculate returns source extended with columns.
func NewCalculate(source Provider, columns ...CalculatedColumn) (*Calculate, error) {
	if err := checkSource("calculate", source); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, types.ErrInvalidArgument.New("calculate", "no columns")
	}
	width := source.Header().Len()
	added := make([]header.Column, len(columns))
	for i, c := range columns {
		if c.Name == "" {
			return nil, types.ErrInvalidArgument.New("calculate", fmt.Sprintf("column %d has no name", i))
		}
		if err := expr.Validate(c.Expr, width); err != nil {
			return nil, err
		}
		added[i] = header.NewCalculatedColumn(c.Name, width+i, c.Expr.Type())
	}
	h, err := source.Header().Add(added...)
	if err != nil {
		return nil, err
	}
	return &Calculate{node: node{header: h, sources: []Provider{source}}, Source: source, Columns: append([]CalculatedColumn(nil), columns...)}, nil
}

func (*Calculate) Kind() Kind { return KindCalculate }

func (c *Calculate) String() string {
	parts := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		parts[i] = col.Name + "=" + col.Expr.String()
	}
	return describe(KindCalculate, strings.Join(parts, " "), c.Source)
}

// RowNumber appends a one-based Int64 row number following the source order.
type RowNumber struct {
	node
	Source Provider
	Name   string
}

// NewRowNumber returns source extended with a row number column.
func NewRowNumber(source Provider, name string) (*RowNumber, error) {
	if err := checkSource("row number", source); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, types.ErrInvalidArgument.New("row number", "empty name")
	}
	h, err := source.Header().Add(header.NewSystemColumn(name, 0, types.Int64))
	if err != nil {
		return nil, err
	}
	return &RowNumber{node: node{header: h, sources: []Provider{source}}, Source: source, Name: name}, nil
}

func (*RowNumber) Kind() Kind { return KindRowNumber }

func (r *RowNumber) String() string { return describe(KindRowNumber, r.Name, r.Source) }

// Include appends a Bool column telling whether the tuple of Columns occurs in
// either Values (a literal row list) or Filter (a provider of equal width).
type Include struct {
	node
	Source  Provider
	Columns []int
	Values  [][]any
	Filter  Provider
	Name    string
}

// NewIncludeValues returns an inclusion test of columns against literal rows.
func NewIncludeValues(source Provider, columns []int, values [][]any, name string) (*Include, error) {
	if err := checkSource("include", source); err != nil {
		return nil, err
	}
	if err := checkInclude(source, columns, name); err != nil {
		return nil, err
	}
	rows := make([][]any, len(values))
	for i, r := range values {
		if len(r) != len(columns) {
			return nil, types.ErrInvalidArgument.New("include", fmt.Sprintf("row %d has %d values, want %d", i, len(r), len(columns)))
		}
		rows[i] = append([]any(nil), r...)
	}
	return newInclude(source, columns, rows, nil, name)
}

// NewIncludeFilter returns an inclusion test of columns against the rows of filter.
func NewIncludeFilter(source Provider, columns []int, filter Provider, name string) (*Include, error) {
	if err := checkSource("include", source, filter); err != nil {
		return nil, err
	}
	if err := checkInclude(source, columns, name); err != nil {
		return nil, err
	}
	if filter.Header().Len() != len(columns) {
		return nil, types.ErrIncompatibleHeaders.New("include", fmt.Sprintf("filter has %d columns, want %d", filter.Header().Len(), len(columns)))
	}
	return newInclude(source, columns, nil, filter, name)
}

func checkInclude(source Provider, columns []int, name string) error {
	if len(columns) == 0 {
		return types.ErrInvalidArgument.New("include", "no columns")
	}
	if name == "" {
		return types.ErrInvalidArgument.New("include", "empty name")
	}
	return checkIndices(source.Header(), columns)
}

func newInclude(source Provider, columns []int, values [][]any, filter Provider, name string) (*Include, error) {
	h, err := source.Header().Add(header.NewSystemColumn(name, 0, types.Bool))
	if err != nil {
		return nil, err
	}
	sources := []Provider{source}
	if filter != nil {
		sources = append(sources, filter)
	}
	return &Include{
		node:    node{header: h, sources: sources},
		Source:  source,
		Columns: append([]int(nil), columns...),
		Values:  values,
		Filter:  filter,
		Name:    name,
	}, nil
}

func (*Include) Kind() Kind { return KindInclude }

func (i *Include) String() string {
	if i.Filter != nil {
		return describe(KindInclude, fmt.Sprintf("%s %s", i.Name, ints(i.Columns)), i.Source, i.Filter)
	}
	return describe(KindInclude, fmt.Sprintf("%s %s %v", i.Name, ints(i.Columns), i.Values), i.Source)
}

// LockMode is the row lock requested by Lock.
type LockMode uint8

// Lock modes.
const (
	LockShared LockMode = iota
	LockExclusive
	LockUpdate
)

func (m LockMode) String() string {
	switch m {
	case LockShared:
		return "shared"
	case LockExclusive:
		return "exclusive"
	case LockUpdate:
		return "update"
	}
	return fmt.Sprintf("LockMode(%d)", uint8(m))
}

// LockBehavior says what to do with rows locked by someone else.
type LockBehavior uint8

// Lock behaviors.
const (
	LockWait LockBehavior = iota
	LockNoWait
	LockSkipLocked
)

func (b LockBehavior) String() string {
	switch b {
	case LockWait:
		return "wait"
	case LockNoWait:
		return "nowait"
	case LockSkipLocked:
		return "skiplocked"
	}
	return fmt.Sprintf("LockBehavior(%d)", uint8(b))
}

// Lock locks the source rows.
type Lock struct {
	node
	Source   Provider
	Mode     LockMode
	Behavior LockBehavior
}

// NewLock returns source with its rows locked.
func NewLock(source Provider, mode LockMode, behavior LockBehavior) (*Lock, error) {
	if err := checkSource("lock", source); err != nil {
		return nil, err
	}
	if mode > LockUpdate || behavior > LockSkipLocked {
		return nil, types.ErrInvalidArgument.New("lock", fmt.Sprintf("mode %d behavior %d", mode, behavior))
	}
	return &Lock{node: node{header: source.Header(), sources: []Provider{source}}, Source: source, Mode: mode, Behavior: behavior}, nil
}

func (*Lock) Kind() Kind { return KindLock }

func (l *Lock) String() string { return describe(KindLock, l.Mode.String()+" "+l.Behavior.String(), l.Source) }

// Seek returns the source rows whose Keys columns equal a late-bound key.
type Seek struct {
	node
	Source Provider
	Keys   []int
	// Values binds one key value per key column. Parameters are named Name.i.
	Values []expr.ValueFunc
	Name   string
}

// NewSeek returns a key lookup over source. With no keys the key columns of the
// first column group are used.
func NewSeek(source Provider, name string, keys []int, values ...expr.ValueFunc) (*Seek, error) {
	if err := checkSource("seek", source); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, types.ErrInvalidArgument.New("seek", "empty name")
	}
	if len(keys) == 0 {
		groups := source.Header().Groups()
		if len(groups) == 0 || len(groups[0].Keys) == 0 {
			return nil, types.ErrInvalidArgument.New("seek", "source has no key columns")
		}
		keys = groups[0].Keys
	}
	if err := checkIndices(source.Header(), keys); err != nil {
		return nil, err
	}
	if len(values) != len(keys) {
		return nil, types.ErrInvalidArgument.New("seek", fmt.Sprintf("%d values for %d key columns", len(values), len(keys)))
	}
	for i, v := range values {
		if v == nil {
			return nil, types.ErrInvalidArgument.New("seek", fmt.Sprintf("value %d is nil", i))
		}
	}
	return &Seek{
		node:   node{header: source.Header(), sources: []Provider{source}},
		Source: source,
		Keys:   append([]int(nil), keys...),
		Values: append([]expr.ValueFunc(nil), values...),
		Name:   name,
	}, nil
}

func (*Seek) Kind() Kind { return KindSeek }

func (s *Seek) String() string { return describe(KindSeek, s.Name+" "+ints(s.Keys), s.Source) }

// Predicate returns the key equality condition over the source row.
func (s *Seek) Predicate() expr.Expr {
	h := s.Source.Header()
	conds := make([]expr.Expr, len(s.Keys))
	for i, k := range s.Keys {
		t := h.Columns().At(k).Type()
		conds[i] = expr.Eq(expr.Column{Index: k, T: t}, expr.Param{Name: fmt.Sprintf("%s.%d", s.Name, i), Value: s.Values[i], T: t})
	}
	return expr.AndAll(conds...)
}

// Existence yields a single row with one Bool column telling whether the
// source has any row.
type Existence struct {
	node
	Source Provider
	Name   string
}

// NewExistence returns the existence test of source.
func NewExistence(source Provider, name string) (*Existence, error) {
	if err := checkSource("existence", source); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, types.ErrInvalidArgument.New("existence", "empty name")
	}
	h, err := header.New([]header.Column{header.NewSystemColumn(name, 0, types.Bool)}, nil, nil)
	if err != nil {
		return nil, err
	}
	return &Existence{node: node{header: h, sources: []Provider{source}}, Source: source, Name: name}, nil
}

func (*Existence) Kind() Kind { return KindExistence }

func (e *Existence) String() string { return describe(KindExistence, e.Name, e.Source) }

// Tag labels the query with a comment.
type Tag struct {
	node
	Source Provider
	Tag    string
}

// NewTag returns source labelled with tag.
func NewTag(source Provider, tag string) (*Tag, error) {
	if err := checkSource("tag", source); err != nil {
		return nil, err
	}
	if tag == "" {
		return nil, types.ErrInvalidArgument.New("tag", "empty tag")
	}
	return &Tag{node: node{header: source.Header(), sources: []Provider{source}}, Source: source, Tag: tag}, nil
}

func (*Tag) Kind() Kind { return KindTag }

func (t *Tag) String() string { return describe(KindTag, t.Tag, t.Source) }
