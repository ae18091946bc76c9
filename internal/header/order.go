package header

import (
	"fmt"
	"strings"
)

// Direction is a sort direction.
type Direction int8

// Sort directions.
const (
	Ascending  Direction = 1
	Descending Direction = -1
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// OrderItem sorts by the column at Index.
type OrderItem struct {
	Index     int
	Direction Direction
}

// Order is an ordered list of sort items.
type Order []OrderItem

// Asc is a shorthand for an ascending Order over indices.
func Asc(indices ...int) Order {
	o := make(Order, len(indices))
	for i, idx := range indices {
		o[i] = OrderItem{Index: idx, Direction: Ascending}
	}
	return o
}

// Then returns a copy of o extended with one item.
func (o Order) Then(index int, dir Direction) Order {
	n := make(Order, len(o), len(o)+1)
	copy(n, o)
	return append(n, OrderItem{Index: index, Direction: dir})
}

func (o Order) clone() Order {
	if o == nil {
		return nil
	}
	n := make(Order, len(o))
	copy(n, o)
	return n
}

func (o Order) String() string {
	parts := make([]string, len(o))
	for i, item := range o {
		parts[i] = fmt.Sprintf("%d %s", item.Index, item.Direction)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
