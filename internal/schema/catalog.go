package schema

import "github.com/coregx/rse/internal/types"

// Catalog is a frozen catalog. It cannot be modified and is safe for
// concurrent use.
type Catalog struct {
	arena
}

// Name returns the catalog name.
func (c *Catalog) Name() string { return c.nodes[0].name }

// CaseSensitive reports whether names compare case sensitively.
func (c *Catalog) CaseSensitive() bool { return c.caseSensitive }

// Schemas returns the schemas in insertion order.
func (c *Catalog) Schemas() []Schema {
	return handles(c, c.childrenOf(0, KindSchema), func(r ref) Schema { return Schema{r} })
}

// Schema looks up a schema by name.
func (c *Catalog) Schema(name string) (Schema, bool) {
	id, ok := c.find(0, KindSchema, name)
	return Schema{ref{c, id}}, ok
}

// Table looks up a schema-qualified table.
func (c *Catalog) Table(schema, name string) (Table, bool) {
	s, ok := c.Schema(schema)
	if !ok {
		return Table{}, false
	}
	return s.Table(name)
}

type ref struct {
	c  *Catalog
	id NodeID
}

func (r ref) n() *node { return &r.c.nodes[r.id] }

// ID returns the arena id of the node.
func (r ref) ID() NodeID { return r.id }

// Name returns the node name.
func (r ref) Name() string { return r.n().name }

// Kind returns the node kind.
func (r ref) Kind() Kind { return r.n().kind }

// Path returns the qualified name of the node.
func (r ref) Path() string { return r.c.path(r.id) }

func handles[T any](c *Catalog, ids []NodeID, wrap func(ref) T) []T {
	out := make([]T, len(ids))
	for i, id := range ids {
		out[i] = wrap(ref{c, id})
	}
	return out
}

func lookup[T any](r ref, k Kind, name string, wrap func(ref) T) (T, bool) {
	id, ok := r.c.find(r.id, k, name)
	if !ok {
		var zero T
		return zero, false
	}
	return wrap(ref{r.c, id}), true
}

// Schema is a schema of a frozen catalog.
type Schema struct{ ref }

func (s Schema) Tables() []Table {
	return handles(s.c, s.c.childrenOf(s.id, KindTable), wrapTable)
}

func (s Schema) Table(name string) (Table, bool) { return lookup(s.ref, KindTable, name, wrapTable) }

func (s Schema) Views() []View {
	return handles(s.c, s.c.childrenOf(s.id, KindView), wrapView)
}

func (s Schema) View(name string) (View, bool) { return lookup(s.ref, KindView, name, wrapView) }

func (s Schema) Sequences() []Sequence {
	return handles(s.c, s.c.childrenOf(s.id, KindSequence), func(r ref) Sequence { return Sequence{r} })
}

func (s Schema) Domains() []Domain {
	return handles(s.c, s.c.childrenOf(s.id, KindDomain), func(r ref) Domain { return Domain{r} })
}

func (s Schema) Collations() []Collation {
	return handles(s.c, s.c.childrenOf(s.id, KindCollation), func(r ref) Collation { return Collation{r} })
}

func (s Schema) CharacterSets() []CharacterSet {
	return handles(s.c, s.c.childrenOf(s.id, KindCharacterSet), func(r ref) CharacterSet { return CharacterSet{r} })
}

func (s Schema) Assertions() []Assertion {
	return handles(s.c, s.c.childrenOf(s.id, KindAssertion), func(r ref) Assertion { return Assertion{r} })
}

func (s Schema) Translations() []Translation {
	return handles(s.c, s.c.childrenOf(s.id, KindTranslation), func(r ref) Translation { return Translation{r} })
}

func wrapTable(r ref) Table   { return Table{r} }
func wrapView(r ref) View     { return View{r} }
func wrapColumn(r ref) Column { return Column{r} }

// Table is a table of a frozen catalog.
type Table struct{ ref }

func (t Table) Schema() Schema { return Schema{ref{t.c, t.n().parent}} }

func (t Table) Columns() []Column {
	return handles(t.c, t.c.childrenOf(t.id, KindColumn), wrapColumn)
}

func (t Table) Column(name string) (Column, bool) { return lookup(t.ref, KindColumn, name, wrapColumn) }

func (t Table) Indexes() []Index {
	return handles(t.c, t.c.childrenOf(t.id, KindIndex), func(r ref) Index { return Index{r} })
}

// PrimaryKey returns the primary key, if the table has one.
func (t Table) PrimaryKey() (Constraint, bool) {
	pk := t.c.childrenOf(t.id, KindPrimaryKey)
	if len(pk) == 0 {
		return Constraint{}, false
	}
	return Constraint{ref{t.c, pk[0]}}, true
}

// Constraints returns every constraint in insertion order.
func (t Table) Constraints() []Constraint {
	return handles(t.c, t.c.childrenOf(t.id, KindPrimaryKey, KindUnique, KindForeignKey, KindCheck),
		func(r ref) Constraint { return Constraint{r} })
}

// ForeignKeys returns the foreign keys in insertion order.
func (t Table) ForeignKeys() []Constraint {
	return handles(t.c, t.c.childrenOf(t.id, KindForeignKey), func(r ref) Constraint { return Constraint{r} })
}

// View is a view of a frozen catalog.
type View struct{ ref }

func (v View) Schema() Schema { return Schema{ref{v.c, v.n().parent}} }

func (v View) Definition() string { return v.n().def.(ViewDef).Definition }

func (v View) CheckOption() CheckOption { return v.n().def.(ViewDef).CheckOption }

func (v View) Columns() []Column {
	return handles(v.c, v.c.childrenOf(v.id, KindColumn), wrapColumn)
}

func (v View) Column(name string) (Column, bool) { return lookup(v.ref, KindColumn, name, wrapColumn) }

// Column is a table or view column.
type Column struct{ ref }

// Ordinal returns the one-based position of the column in its owner.
func (c Column) Ordinal() int {
	for i, id := range c.c.childrenOf(c.n().parent, KindColumn) {
		if id == c.id {
			return i + 1
		}
	}
	return 0
}

func (c Column) def() ColumnDef { return c.n().def.(ColumnDef) }

func (c Column) Type() types.TypeInfo { return c.def().Type }
func (c Column) Nullable() bool       { return c.def().Nullable }
func (c Column) Default() string      { return c.def().Default }
func (c Column) Collation() string    { return c.def().Collation }
func (c Column) Domain() string       { return c.def().Domain }

// Owner returns the id of the owning table or view.
func (c Column) Owner() NodeID { return c.n().parent }

// Index is an index of a frozen catalog.
type Index struct{ ref }

func (i Index) Table() Table { return Table{ref{i.c, i.n().parent}} }

func (i Index) def() IndexDef        { return i.n().def.(IndexDef) }
func (i Index) Unique() bool         { return i.def().Unique }
func (i Index) IndexKind() IndexKind { return i.def().Kind }
func (i Index) Filter() string       { return i.def().Filter }

// Columns returns the index columns in key order.
func (i Index) Columns() []IndexColumn {
	return handles(i.c, i.c.childrenOf(i.id, KindIndexColumn), func(r ref) IndexColumn { return IndexColumn{r} })
}

// IndexColumn is one key part of an index.
type IndexColumn struct{ ref }

func (ic IndexColumn) Column() Column  { return Column{ref{ic.c, ic.n().target}} }
func (ic IndexColumn) Ascending() bool { return ic.n().ascending }

// Constraint is a primary key, unique, foreign key or check constraint.
type Constraint struct{ ref }

func (k Constraint) Table() Table { return Table{ref{k.c, k.n().parent}} }

// Columns returns the constrained columns. Check constraints have none.
func (k Constraint) Columns() []Column {
	return handles(k.c, k.n().columns, wrapColumn)
}

// Condition returns the condition of a check constraint.
func (k Constraint) Condition() string {
	s, _ := k.n().def.(string)
	return s
}

// ReferencedTable returns the table a foreign key references.
func (k Constraint) ReferencedTable() (Table, bool) {
	if k.Kind() != KindForeignKey {
		return Table{}, false
	}
	return Table{ref{k.c, k.n().target}}, true
}

// ReferencedColumns returns the referenced columns, pairwise with Columns.
func (k Constraint) ReferencedColumns() []Column {
	return handles(k.c, k.n().refs, wrapColumn)
}

// Rules returns the referential actions of a foreign key.
func (k Constraint) Rules() ForeignKeyDef {
	d, _ := k.n().def.(ForeignKeyDef)
	return d
}

// Sequence is a sequence of a frozen catalog.
type Sequence struct{ ref }

func (s Sequence) Def() SequenceDef { return s.n().def.(SequenceDef) }

// Domain is a domain of a frozen catalog.
type Domain struct{ ref }

func (d Domain) Def() DomainDef { return d.n().def.(DomainDef) }

// Collation is a collation of a frozen catalog.
type Collation struct{ ref }

func (c Collation) CharacterSet() string { return c.n().def.(string) }

// CharacterSet is a character set of a frozen catalog.
type CharacterSet struct{ ref }

func (c CharacterSet) DefaultCollation() string { return c.n().def.(string) }

// Assertion is a schema-level check.
type Assertion struct{ ref }

func (a Assertion) Condition() string { return a.n().def.(string) }

// Translation converts between two character sets.
type Translation struct{ ref }

func (t Translation) Source() string { return t.n().def.([2]string)[0] }
func (t Translation) Target() string { return t.n().def.([2]string)[1] }
