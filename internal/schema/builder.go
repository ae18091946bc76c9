package schema

import (
	"fmt"

	"github.com/coregx/rse/internal/types"
)

// Builder assembles a catalog. It is not safe for concurrent use.
type Builder struct {
	arena
	frozen bool
}

// Option configures a Builder.
type Option func(*Builder)

// CaseSensitive makes name uniqueness and lookups case sensitive.
func CaseSensitive() Option {
	return func(b *Builder) {
		b.caseSensitive = true
	}
}

// NewBuilder returns an empty builder for the named catalog.
func NewBuilder(catalog string, opts ...Option) *Builder {
	b := &Builder{}
	for _, opt := range opts {
		opt(b)
	}
	b.arena = newArena(catalog, b.caseSensitive)
	return b
}

// Root is the catalog node.
func (b *Builder) Root() NodeID { return 0 }

// Frozen reports whether Freeze has been called.
func (b *Builder) Frozen() bool { return b.frozen }

func (b *Builder) add(parent NodeID, k Kind, name string, def any) (NodeID, error) {
	if b.frozen {
		return NoNode, ErrLocked.New(b.nodes[0].name)
	}
	if err := b.expect(parent, parentKinds[k]...); err != nil {
		return NoNode, err
	}
	if name == "" {
		return NoNode, types.ErrInvalidArgument.New("name", k.String()+" name is empty")
	}
	key := nameKey{parent, k.collection(), b.fold(name)}
	if _, dup := b.names[key]; dup {
		return NoNode, ErrDuplicateName.New(k, name, b.path(parent))
	}
	id := NodeID(len(b.nodes))
	b.nodes = append(b.nodes, node{kind: k, name: name, parent: parent, target: NoNode, def: def})
	b.names[key] = id
	b.nodes[parent].children = append(b.nodes[parent].children, id)
	return id, nil
}

func (b *Builder) expect(id NodeID, kinds ...Kind) error {
	if !b.valid(id) {
		return types.ErrInvalidArgument.New("node", fmt.Sprintf("%d does not exist", id))
	}
	for _, k := range kinds {
		if b.nodes[id].kind == k {
			return nil
		}
	}
	return types.ErrInvalidArgument.New("node", fmt.Sprintf("%s %s cannot own this object", b.nodes[id].kind, b.path(id)))
}

// AddSchema adds a schema to the catalog.
func (b *Builder) AddSchema(name string) (NodeID, error) {
	return b.add(0, KindSchema, name, nil)
}

// AddTable adds a table to schema.
func (b *Builder) AddTable(schema NodeID, name string) (NodeID, error) {
	return b.add(schema, KindTable, name, nil)
}

// AddView adds a view to schema.
func (b *Builder) AddView(schema NodeID, name string, def ViewDef) (NodeID, error) {
	return b.add(schema, KindView, name, def)
}

// AddColumn appends a column to a table or view.
func (b *Builder) AddColumn(owner NodeID, name string, def ColumnDef) (NodeID, error) {
	return b.add(owner, KindColumn, name, def)
}

// AddIndex adds an index to table.
func (b *Builder) AddIndex(table NodeID, name string, def IndexDef) (NodeID, error) {
	return b.add(table, KindIndex, name, def)
}

// AddIndexColumn appends a column of the indexed table to index.
func (b *Builder) AddIndexColumn(index, column NodeID, ascending bool) (NodeID, error) {
	if err := b.expect(index, KindIndex); err != nil {
		return NoNode, err
	}
	if err := b.member(b.nodes[index].parent, column); err != nil {
		return NoNode, err
	}
	id, err := b.add(index, KindIndexColumn, b.nodes[column].name, nil)
	if err != nil {
		return NoNode, err
	}
	b.nodes[id].target = column
	b.nodes[id].ascending = ascending
	return id, nil
}

// AddPrimaryKey adds the primary key of table. A table has at most one.
func (b *Builder) AddPrimaryKey(table NodeID, name string, columns ...NodeID) (NodeID, error) {
	if err := b.expect(table, KindTable); err == nil {
		if pk := b.childrenOf(table, KindPrimaryKey); len(pk) > 0 {
			return NoNode, ErrDuplicateName.New(KindPrimaryKey, name, b.path(table))
		}
	}
	return b.addKey(table, KindPrimaryKey, name, columns)
}

// AddUnique adds a unique constraint to table.
func (b *Builder) AddUnique(table NodeID, name string, columns ...NodeID) (NodeID, error) {
	return b.addKey(table, KindUnique, name, columns)
}

func (b *Builder) addKey(table NodeID, k Kind, name string, columns []NodeID) (NodeID, error) {
	id, err := b.add(table, k, name, nil)
	if err != nil {
		return NoNode, err
	}
	for _, c := range columns {
		if err := b.AddConstraintColumn(id, c); err != nil {
			return NoNode, err
		}
	}
	return id, nil
}

// AddConstraintColumn appends a column to a primary key or unique constraint.
func (b *Builder) AddConstraintColumn(constraint, column NodeID) error {
	if b.frozen {
		return ErrLocked.New(b.nodes[0].name)
	}
	if err := b.expect(constraint, KindPrimaryKey, KindUnique); err != nil {
		return err
	}
	if err := b.member(b.nodes[constraint].parent, column); err != nil {
		return err
	}
	b.nodes[constraint].columns = append(b.nodes[constraint].columns, column)
	return nil
}

// AddForeignKey adds a foreign key from table to referenced. Column pairs are
// appended with AddForeignKeyColumn.
func (b *Builder) AddForeignKey(table NodeID, name string, referenced NodeID, def ForeignKeyDef) (NodeID, error) {
	if err := b.expect(referenced, KindTable); err != nil {
		return NoNode, err
	}
	id, err := b.add(table, KindForeignKey, name, def)
	if err != nil {
		return NoNode, err
	}
	b.nodes[id].target = referenced
	return id, nil
}

// AddForeignKeyColumn appends a referencing column and the column it references.
func (b *Builder) AddForeignKeyColumn(fk, column, referenced NodeID) error {
	if b.frozen {
		return ErrLocked.New(b.nodes[0].name)
	}
	if err := b.expect(fk, KindForeignKey); err != nil {
		return err
	}
	n := &b.nodes[fk]
	if err := b.member(n.parent, column); err != nil {
		return err
	}
	if err := b.member(n.target, referenced); err != nil {
		return err
	}
	n.columns = append(n.columns, column)
	n.refs = append(n.refs, referenced)
	return nil
}

// AddCheck adds a check constraint to table.
func (b *Builder) AddCheck(table NodeID, name, condition string) (NodeID, error) {
	return b.add(table, KindCheck, name, condition)
}

// AddSequence adds a sequence to schema.
func (b *Builder) AddSequence(schema NodeID, name string, def SequenceDef) (NodeID, error) {
	return b.add(schema, KindSequence, name, def)
}

// AddDomain adds a domain to schema.
func (b *Builder) AddDomain(schema NodeID, name string, def DomainDef) (NodeID, error) {
	return b.add(schema, KindDomain, name, def)
}

// AddCollation adds a collation of characterSet to schema.
func (b *Builder) AddCollation(schema NodeID, name, characterSet string) (NodeID, error) {
	return b.add(schema, KindCollation, name, characterSet)
}

// AddCharacterSet adds a character set with its default collation to schema.
func (b *Builder) AddCharacterSet(schema NodeID, name, defaultCollation string) (NodeID, error) {
	return b.add(schema, KindCharacterSet, name, defaultCollation)
}

// AddAssertion adds a schema-level assertion.
func (b *Builder) AddAssertion(schema NodeID, name, condition string) (NodeID, error) {
	return b.add(schema, KindAssertion, name, condition)
}

// AddTranslation adds a translation between two character sets.
func (b *Builder) AddTranslation(schema NodeID, name, source, target string) (NodeID, error) {
	return b.add(schema, KindTranslation, name, [2]string{source, target})
}

func (b *Builder) member(owner, column NodeID) error {
	if err := b.expect(column, KindColumn); err != nil {
		return err
	}
	if b.nodes[column].parent != owner {
		return types.ErrInvalidArgument.New("column", b.path(column)+" does not belong to "+b.path(owner))
	}
	return nil
}

// Schema looks up a schema by name.
func (b *Builder) Schema(name string) (NodeID, bool) {
	return b.find(0, KindSchema, name)
}

// Table looks up a table of schema.
func (b *Builder) Table(schema NodeID, name string) (NodeID, bool) {
	return b.find(schema, KindTable, name)
}

// View looks up a view of schema.
func (b *Builder) View(schema NodeID, name string) (NodeID, bool) {
	return b.find(schema, KindView, name)
}

// Column looks up a column of a table or view.
func (b *Builder) Column(owner NodeID, name string) (NodeID, bool) {
	return b.find(owner, KindColumn, name)
}

// Index looks up an index of table.
func (b *Builder) Index(table NodeID, name string) (NodeID, bool) {
	return b.find(table, KindIndex, name)
}

// Constraint looks up a constraint of table by name, whatever its kind.
func (b *Builder) Constraint(table NodeID, name string) (NodeID, bool) {
	id, ok := b.names[nameKey{table, collConstraints, b.fold(name)}]
	return id, ok
}

// Name returns the name of id.
func (b *Builder) Name(id NodeID) string { return b.nodes[id].name }

// Kind returns the kind of id.
func (b *Builder) Kind(id NodeID) Kind { return b.nodes[id].kind }

// Parent returns the owner of id.
func (b *Builder) Parent(id NodeID) NodeID { return b.nodes[id].parent }

// Path returns the qualified name of id, e.g. "app.users.id".
func (b *Builder) Path(id NodeID) string { return b.path(id) }

// Children returns the children of id in insertion order.
func (b *Builder) Children(id NodeID) []NodeID {
	return append([]NodeID(nil), b.nodes[id].children...)
}

// Freeze validates the catalog, locks the builder and returns the immutable
// catalog. Every later mutator call fails with ErrLocked.
func (b *Builder) Freeze() (*Catalog, error) {
	if b.frozen {
		return nil, ErrLocked.New(b.nodes[0].name)
	}
	for id := range b.nodes {
		n := &b.nodes[id]
		switch n.kind {
		case KindPrimaryKey, KindUnique, KindForeignKey:
			if len(n.columns) == 0 {
				return nil, ErrIncomplete.New(n.kind, b.path(NodeID(id)))
			}
		case KindIndex:
			if len(n.children) == 0 {
				return nil, ErrIncomplete.New(n.kind, b.path(NodeID(id)))
			}
		}
	}
	b.frozen = true
	return &Catalog{arena: b.clone()}, nil
}
