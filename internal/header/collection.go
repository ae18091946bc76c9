package header

import (
	"strings"

	"github.com/coregx/rse/internal/types"
)

// ColumnCollection is an immutable, uniquely named column sequence.
type ColumnCollection struct {
	items  []Column
	byName map[string]int
}

// NewColumnCollection builds a collection over a private copy of columns.
// Every column must sit at the position its Index reports and names must be unique.
func NewColumnCollection(columns []Column) (*ColumnCollection, error) {
	items := make([]Column, len(columns))
	copy(items, columns)
	byName := make(map[string]int, len(items))
	for i, c := range items {
		if c == nil {
			return nil, types.ErrInvalidArgument.New("columns", "nil column")
		}
		if c.Index() != i {
			return nil, types.ErrInvalidArgument.New(c.Name(), "column index does not match its position")
		}
		if _, dup := byName[c.Name()]; dup {
			return nil, types.ErrInvalidArgument.New(c.Name(), "duplicate column name")
		}
		byName[c.Name()] = i
	}
	return &ColumnCollection{items: items, byName: byName}, nil
}

// Len returns the number of columns.
func (cc *ColumnCollection) Len() int { return len(cc.items) }

// At returns the i-th column.
func (cc *ColumnCollection) At(i int) Column { return cc.items[i] }

// IndexOf returns the position of the named column.
func (cc *ColumnCollection) IndexOf(name string) (int, bool) {
	i, ok := cc.byName[name]
	return i, ok
}

// All returns a copy of the columns.
func (cc *ColumnCollection) All() []Column {
	out := make([]Column, len(cc.items))
	copy(out, cc.items)
	return out
}

// Names returns the column names in order.
func (cc *ColumnCollection) Names() []string {
	names := make([]string, len(cc.items))
	for i, c := range cc.items {
		names[i] = c.Name()
	}
	return names
}

func (cc *ColumnCollection) String() string {
	parts := make([]string, len(cc.items))
	for i, c := range cc.items {
		parts[i] = c.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// TupleDescriptor is the ordered list of column value types.
type TupleDescriptor struct {
	fields []types.Type
}

// NewTupleDescriptor returns a descriptor over a copy of fields.
func NewTupleDescriptor(fields ...types.Type) TupleDescriptor {
	f := make([]types.Type, len(fields))
	copy(f, fields)
	return TupleDescriptor{fields: f}
}

// Count returns the number of fields.
func (td TupleDescriptor) Count() int { return len(td.fields) }

// At returns the type of the i-th field.
func (td TupleDescriptor) At(i int) types.Type { return td.fields[i] }

// Types returns a copy of the field types.
func (td TupleDescriptor) Types() []types.Type {
	out := make([]types.Type, len(td.fields))
	copy(out, td.fields)
	return out
}

// ColumnGroup is the set of columns that together project one logical entity.
type ColumnGroup struct {
	Keys    []int
	Columns []int
}

func (g ColumnGroup) clone() ColumnGroup {
	return ColumnGroup{Keys: append([]int(nil), g.Keys...), Columns: append([]int(nil), g.Columns...)}
}

func (g ColumnGroup) shift(by int) ColumnGroup {
	n := g.clone()
	for i := range n.Keys {
		n.Keys[i] += by
	}
	for i := range n.Columns {
		n.Columns[i] += by
	}
	return n
}
