package header

import (
	"fmt"

	"github.com/coregx/rse/internal/types"
)

// Header is the row shape of a provider. Headers are never mutated:
// every transformation returns a new Header.
type Header struct {
	tuple   TupleDescriptor
	columns *ColumnCollection
	groups  []ColumnGroup
	order   Order
}

// New builds a header. Columns are re-indexed to their positions;
// group and order indices must address the column list.
func New(columns []Column, groups []ColumnGroup, order Order) (*Header, error) {
	cols := make([]Column, len(columns))
	fields := make([]types.Type, len(columns))
	for i, c := range columns {
		if c == nil {
			return nil, types.ErrInvalidArgument.New("columns", "nil column")
		}
		if c.Index() != i {
			c = c.Clone(i)
		}
		cols[i] = c
		fields[i] = c.Type()
	}
	cc, err := NewColumnCollection(cols)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		for _, idx := range append(append([]int(nil), g.Keys...), g.Columns...) {
			if idx < 0 || idx >= len(cols) {
				return nil, types.ErrIndexOutOfRange.New(idx, len(cols))
			}
		}
	}
	if err := checkOrder(order, len(cols)); err != nil {
		return nil, err
	}
	gs := make([]ColumnGroup, len(groups))
	for i, g := range groups {
		gs[i] = g.clone()
	}
	return &Header{
		tuple:   NewTupleDescriptor(fields...),
		columns: cc,
		groups:  gs,
		order:   order.clone(),
	}, nil
}

// Must is New for statically known headers; it panics on error.
func Must(h *Header, err error) *Header {
	if err != nil {
		panic(err)
	}
	return h
}

// Empty returns a header without columns.
func Empty() *Header {
	return Must(New(nil, nil, nil))
}

func checkOrder(order Order, width int) error {
	for _, item := range order {
		if item.Index < 0 || item.Index >= width {
			return types.ErrIndexOutOfRange.New(item.Index, width)
		}
		if item.Direction != Ascending && item.Direction != Descending {
			return types.ErrInvalidArgument.New("order", fmt.Sprintf("bad direction %d", item.Direction))
		}
	}
	return nil
}

// Len returns the number of columns.
func (h *Header) Len() int { return h.columns.Len() }

// Columns returns the column collection.
func (h *Header) Columns() *ColumnCollection { return h.columns }

// TupleDescriptor returns the column value types.
func (h *Header) TupleDescriptor() TupleDescriptor { return h.tuple }

// Groups returns a copy of the column groups.
func (h *Header) Groups() []ColumnGroup {
	out := make([]ColumnGroup, len(h.groups))
	for i, g := range h.groups {
		out[i] = g.clone()
	}
	return out
}

// Order returns a copy of the declared sort order.
func (h *Header) Order() Order { return h.order.clone() }

// Add appends columns after the existing ones.
func (h *Header) Add(columns ...Column) (*Header, error) {
	all := h.columns.All()
	for i, c := range columns {
		if c == nil {
			return nil, types.ErrInvalidArgument.New("columns", "nil column")
		}
		all = append(all, c.Clone(h.Len()+i))
	}
	return New(all, h.groups, h.order)
}

// Join concatenates right after h. Right groups are shifted; the left order
// is kept and the right order is appended shifted by the left width.
func (h *Header) Join(right *Header) (*Header, error) {
	if right == nil {
		return nil, types.ErrInvalidArgument.New("right", "nil header")
	}
	width := h.Len()
	all := h.columns.All()
	for _, c := range right.columns.All() {
		all = append(all, c.Clone(width+c.Index()))
	}
	if _, err := NewColumnCollection(all); err != nil {
		return nil, types.ErrIncompatibleHeaders.New("join", err.Error())
	}
	groups := h.Groups()
	for _, g := range right.groups {
		groups = append(groups, g.shift(width))
	}
	order := h.order.clone()
	for _, item := range right.order {
		order = append(order, OrderItem{Index: item.Index + width, Direction: item.Direction})
	}
	return New(all, groups, order)
}

// Select projects the header onto indices. Groups survive only when all
// their key columns are kept; the order is truncated before the first
// column that is projected away.
func (h *Header) Select(indices ...int) (*Header, error) {
	remap := make(map[int]int, len(indices))
	cols := make([]Column, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= h.Len() {
			return nil, types.ErrIndexOutOfRange.New(idx, h.Len())
		}
		if _, seen := remap[idx]; !seen {
			remap[idx] = i
		}
		cols[i] = h.columns.At(idx).Clone(i)
	}

	var groups []ColumnGroup
	for _, g := range h.groups {
		keys, ok := remapAll(g.Keys, remap)
		if !ok {
			continue
		}
		var members []int
		for _, c := range g.Columns {
			if n, kept := remap[c]; kept {
				members = append(members, n)
			}
		}
		groups = append(groups, ColumnGroup{Keys: keys, Columns: members})
	}

	var order Order
	for _, item := range h.order {
		n, kept := remap[item.Index]
		if !kept {
			break
		}
		order = append(order, OrderItem{Index: n, Direction: item.Direction})
	}
	return New(cols, groups, order)
}

func remapAll(indices []int, remap map[int]int) ([]int, bool) {
	out := make([]int, len(indices))
	for i, idx := range indices {
		n, ok := remap[idx]
		if !ok {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

// Sort returns h with a new declared order.
func (h *Header) Sort(order Order) (*Header, error) {
	if err := checkOrder(order, h.Len()); err != nil {
		return nil, err
	}
	return New(h.columns.All(), h.groups, order)
}

// Alias renames every column to alias.baseName. Aliasing is a pure rename:
// aliasing an aliased header replaces the previous alias.
func (h *Header) Alias(alias string) (*Header, error) {
	all := h.columns.All()
	for i, c := range all {
		all[i] = c.WithAlias(alias)
	}
	return New(all, h.groups, h.order)
}

func (h *Header) String() string {
	return fmt.Sprintf("%s order=%s", h.columns, h.order)
}
