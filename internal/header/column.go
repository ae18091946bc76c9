// Package header describes the row shape produced by a provider: an ordered,
// uniquely named column list, its value types, column groups and the
// declared sort order.
package header

import (
	"fmt"

	"github.com/coregx/rse/internal/types"
)

// ColumnKind distinguishes the column variants.
type ColumnKind uint8

// Column kinds.
const (
	// KindMapped is backed by a physical table or view column.
	KindMapped ColumnKind = iota
	// KindCalculated is backed by a scalar expression over the current row.
	KindCalculated
	// KindAggregate is backed by a source column and an aggregate function.
	KindAggregate
	// KindSystem is injected by the engine, e.g. a row number.
	KindSystem
)

func (k ColumnKind) String() string {
	switch k {
	case KindMapped:
		return "mapped"
	case KindCalculated:
		return "calculated"
	case KindAggregate:
		return "aggregate"
	case KindSystem:
		return "system"
	}
	return fmt.Sprintf("ColumnKind(%d)", uint8(k))
}

// Column is one named, typed position of a header.
// Columns are values: Clone, Rename and WithAlias return new columns.
type Column interface {
	Name() string
	// BaseName is the name without any alias prefix.
	BaseName() string
	Index() int
	Type() types.Type
	Kind() ColumnKind
	Clone(index int) Column
	Rename(name string) Column
	WithAlias(alias string) Column
	String() string
}

type columnInfo struct {
	name     string
	baseName string
	index    int
	typ      types.Type
}

func (c columnInfo) Name() string     { return c.name }
func (c columnInfo) BaseName() string { return c.baseName }
func (c columnInfo) Index() int       { return c.index }
func (c columnInfo) Type() types.Type { return c.typ }

func (c columnInfo) aliased(alias string) columnInfo {
	if alias == "" {
		c.name = c.baseName
	} else {
		c.name = alias + "." + c.baseName
	}
	return c
}

func newInfo(name string, index int, t types.Type) columnInfo {
	return columnInfo{name: name, baseName: name, index: index, typ: t}
}

// MappedColumn is backed by a physical column named Source.
type MappedColumn struct {
	columnInfo
	Source string
}

// NewMappedColumn returns a column mapped to the physical column of the same name.
func NewMappedColumn(name string, index int, t types.Type) *MappedColumn {
	return &MappedColumn{columnInfo: newInfo(name, index, t), Source: name}
}

func (c *MappedColumn) Kind() ColumnKind { return KindMapped }

func (c *MappedColumn) Clone(index int) Column {
	n := *c
	n.index = index
	return &n
}

func (c *MappedColumn) Rename(name string) Column {
	n := *c
	n.name, n.baseName = name, name
	return &n
}

func (c *MappedColumn) WithAlias(alias string) Column {
	n := *c
	n.columnInfo = c.aliased(alias)
	return &n
}

func (c *MappedColumn) String() string {
	return fmt.Sprintf("%s %s = [%d]", c.name, c.typ, c.index)
}

// CalculatedColumn is computed from a scalar expression owned by a Calculate provider.
type CalculatedColumn struct {
	columnInfo
}

// NewCalculatedColumn returns a calculated column.
func NewCalculatedColumn(name string, index int, t types.Type) *CalculatedColumn {
	return &CalculatedColumn{columnInfo: newInfo(name, index, t)}
}

func (c *CalculatedColumn) Kind() ColumnKind { return KindCalculated }

func (c *CalculatedColumn) Clone(index int) Column {
	n := *c
	n.index = index
	return &n
}

func (c *CalculatedColumn) Rename(name string) Column {
	n := *c
	n.name, n.baseName = name, name
	return &n
}

func (c *CalculatedColumn) WithAlias(alias string) Column {
	n := *c
	n.columnInfo = c.aliased(alias)
	return &n
}

func (c *CalculatedColumn) String() string {
	return fmt.Sprintf("%s %s = calc[%d]", c.name, c.typ, c.index)
}

// AggregateColumn is computed by applying Aggregate to the SourceIndex column
// of the aggregated input. SourceIndex is -1 for COUNT(*).
type AggregateColumn struct {
	columnInfo
	SourceIndex int
	Aggregate   AggregateType
}

// NewAggregateColumn returns an aggregate column.
func NewAggregateColumn(name string, index int, t types.Type, sourceIndex int, agg AggregateType) *AggregateColumn {
	return &AggregateColumn{columnInfo: newInfo(name, index, t), SourceIndex: sourceIndex, Aggregate: agg}
}

func (c *AggregateColumn) Kind() ColumnKind { return KindAggregate }

func (c *AggregateColumn) Clone(index int) Column {
	n := *c
	n.index = index
	return &n
}

func (c *AggregateColumn) Rename(name string) Column {
	n := *c
	n.name, n.baseName = name, name
	return &n
}

func (c *AggregateColumn) WithAlias(alias string) Column {
	n := *c
	n.columnInfo = c.aliased(alias)
	return &n
}

func (c *AggregateColumn) String() string {
	return fmt.Sprintf("%s %s = %s([%d])", c.name, c.typ, c.Aggregate, c.SourceIndex)
}

// SystemColumn is injected by the engine (row numbers, inclusion flags).
type SystemColumn struct {
	columnInfo
}

// NewSystemColumn returns a system column.
func NewSystemColumn(name string, index int, t types.Type) *SystemColumn {
	return &SystemColumn{columnInfo: newInfo(name, index, t)}
}

func (c *SystemColumn) Kind() ColumnKind { return KindSystem }

func (c *SystemColumn) Clone(index int) Column {
	n := *c
	n.index = index
	return &n
}

func (c *SystemColumn) Rename(name string) Column {
	n := *c
	n.name, n.baseName = name, name
	return &n
}

func (c *SystemColumn) WithAlias(alias string) Column {
	n := *c
	n.columnInfo = c.aliased(alias)
	return &n
}

func (c *SystemColumn) String() string {
	return fmt.Sprintf("%s %s = sys[%d]", c.name, c.typ, c.index)
}

// AggregateType is the aggregate function of an AggregateColumn.
type AggregateType uint8

// Aggregate functions.
const (
	Count AggregateType = iota
	CountDistinct
	Sum
	Avg
	Min
	Max
)

func (a AggregateType) String() string {
	switch a {
	case Count:
		return "Count"
	case CountDistinct:
		return "CountDistinct"
	case Sum:
		return "Sum"
	case Avg:
		return "Avg"
	case Min:
		return "Min"
	case Max:
		return "Max"
	}
	return fmt.Sprintf("AggregateType(%d)", uint8(a))
}

// ResultType returns the value type produced by a over a source of type t.
func (a AggregateType) ResultType(t types.Type) types.Type {
	switch a {
	case Count, CountDistinct:
		return types.Int64
	case Sum:
		switch {
		case t.IsInteger():
			if t == types.UInt64 {
				return types.Decimal
			}
			return types.Int64
		case t == types.Float32:
			return types.Float64
		}
		return t
	case Avg:
		if t == types.Decimal || t.IsInteger() {
			return types.Decimal
		}
		if t.IsFloat() {
			return types.Float64
		}
		return t
	}
	return t
}
