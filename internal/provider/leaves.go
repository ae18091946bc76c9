package provider

import (
	"fmt"
	"strings"

	"github.com/coregx/rse/internal/expr"
	"github.com/coregx/rse/internal/header"
	"github.com/coregx/rse/internal/types"
)

// TableColumn is one physical column of a TableRef.
type TableColumn struct {
	Name string
	Type types.Type
}

// TableRef names a physical table or view and the columns read from it.
type TableRef struct {
	Schema  string
	Name    string
	Columns []TableColumn
	// Key holds the positions of the primary key columns, if known.
	Key []int
}

func (t TableRef) validate() error {
	if t.Name == "" {
		return types.ErrInvalidArgument.New("table", "empty name")
	}
	if len(t.Columns) == 0 {
		return types.ErrInvalidArgument.New(t.QualifiedName(), "no columns")
	}
	for _, k := range t.Key {
		if k < 0 || k >= len(t.Columns) {
			return types.ErrIndexOutOfRange.New(k, len(t.Columns))
		}
	}
	return nil
}

// QualifiedName returns schema.name, or name without a schema.
func (t TableRef) QualifiedName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

func (t TableRef) header(order header.Order) (*header.Header, error) {
	cols := make([]header.Column, len(t.Columns))
	all := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = header.NewMappedColumn(c.Name, i, c.Type)
		all[i] = i
	}
	var groups []header.ColumnGroup
	if len(t.Key) > 0 {
		groups = []header.ColumnGroup{{Keys: append([]int(nil), t.Key...), Columns: all}}
	}
	return header.New(cols, groups, order)
}

// Table reads every row of a table.
type Table struct {
	node
	Ref TableRef
}

// NewTable returns a provider reading ref.
func NewTable(ref TableRef) (*Table, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	h, err := ref.header(nil)
	if err != nil {
		return nil, err
	}
	return &Table{node: node{header: h}, Ref: ref}, nil
}

func (*Table) Kind() Kind { return KindTable }

func (t *Table) String() string { return describe(KindTable, t.Ref.QualifiedName()) }

// Index reads a table through one of its indexes. Rows come out in index order.
type Index struct {
	node
	Table TableRef
	Name  string
	// Keys is the index key order over table column positions.
	Keys header.Order
}

// NewIndex returns an index scan provider.
func NewIndex(table TableRef, name string, keys header.Order) (*Index, error) {
	if err := table.validate(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, types.ErrInvalidArgument.New("index", "empty name")
	}
	if len(keys) == 0 {
		return nil, types.ErrInvalidArgument.New(name, "no key columns")
	}
	h, err := table.header(keys)
	if err != nil {
		return nil, err
	}
	return &Index{node: node{header: h}, Table: table, Name: name, Keys: keys}, nil
}

func (*Index) Kind() Kind { return KindIndex }

func (i *Index) String() string {
	return describe(KindIndex, fmt.Sprintf("%s.%s %s", i.Table.QualifiedName(), i.Name, i.Keys))
}

// Raw yields a fixed set of rows.
type Raw struct {
	node
	Rows [][]any
}

// NewRaw returns a provider over rows shaped by columns.
func NewRaw(columns []TableColumn, rows [][]any) (*Raw, error) {
	if len(columns) == 0 {
		return nil, types.ErrInvalidArgument.New("raw", "no columns")
	}
	cols := make([]header.Column, len(columns))
	for i, c := range columns {
		cols[i] = header.NewMappedColumn(c.Name, i, c.Type)
	}
	h, err := header.New(cols, nil, nil)
	if err != nil {
		return nil, err
	}
	copied := make([][]any, len(rows))
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, types.ErrInvalidArgument.New("raw", fmt.Sprintf("row %d has %d values, want %d", i, len(r), len(columns)))
		}
		copied[i] = append([]any(nil), r...)
	}
	return &Raw{node: node{header: h}, Rows: copied}, nil
}

func (*Raw) Kind() Kind { return KindRaw }

func (r *Raw) String() string {
	rows := make([]string, len(r.Rows))
	for i, row := range r.Rows {
		rows[i] = fmt.Sprint(row)
	}
	return describe(KindRaw, strings.Join(r.header.Columns().Names(), " ")+" "+strings.Join(rows, ""))
}

// Store reads the rows of a named temporary table holding the result of Source.
// Source may be nil when the table is populated elsewhere.
type Store struct {
	node
	Name   string
	Source Provider
}

// NewStore returns a provider reading the temporary table name shaped like h.
func NewStore(name string, h *header.Header, source Provider) (*Store, error) {
	if name == "" {
		return nil, types.ErrInvalidArgument.New("store", "empty name")
	}
	if h == nil {
		if source == nil {
			return nil, types.ErrInvalidArgument.New(name, "store needs a header or a source")
		}
		h = source.Header()
	}
	cols := make([]header.Column, h.Len())
	for i, c := range h.Columns().All() {
		cols[i] = header.NewMappedColumn(c.Name(), i, c.Type())
	}
	sh, err := header.New(cols, h.Groups(), nil)
	if err != nil {
		return nil, err
	}
	s := &Store{node: node{header: sh}, Name: name, Source: source}
	return s, nil
}

func (*Store) Kind() Kind { return KindStore }

func (s *Store) String() string { return describe(KindStore, s.Name) }

// FreeText searches the full-text indexed Columns of Table for Criteria. The
// header is the table columns followed by a Float64 rank column.
type FreeText struct {
	node
	Table    TableRef
	Columns  []int
	Criteria expr.Expr
	RankName string
}

// NewFreeText returns a full-text search provider.
func NewFreeText(table TableRef, columns []int, criteria expr.Expr, rankName string) (*FreeText, error) {
	if err := table.validate(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, types.ErrInvalidArgument.New("free text", "no searched columns")
	}
	for _, c := range columns {
		if c < 0 || c >= len(table.Columns) {
			return nil, types.ErrIndexOutOfRange.New(c, len(table.Columns))
		}
	}
	if err := expr.Validate(criteria, 0); err != nil {
		return nil, err
	}
	if !criteria.Type().IsText() {
		return nil, types.ErrInvalidArgument.New("free text criteria", criteria.Type().String())
	}
	if rankName == "" {
		rankName = "rank"
	}
	h, err := table.header(nil)
	if err != nil {
		return nil, err
	}
	h, err = h.Add(header.NewSystemColumn(rankName, 0, types.Float64))
	if err != nil {
		return nil, err
	}
	return &FreeText{
		node:     node{header: h},
		Table:    table,
		Columns:  append([]int(nil), columns...),
		Criteria: criteria,
		RankName: rankName,
	}, nil
}

func (*FreeText) Kind() Kind { return KindFreeText }

func (f *FreeText) String() string {
	return describe(KindFreeText, fmt.Sprintf("%s %s %s", f.Table.QualifiedName(), ints(f.Columns), f.Criteria))
}
