package extract

import (
	"strings"

	"github.com/spf13/cast"

	"github.com/coregx/rse/internal/schema"
	"github.com/coregx/rse/internal/types"
)

// group tracks the one open parent of a stage. A row whose ordinal does not
// exceed the previous one starts a new parent.
type group struct {
	parent  schema.NodeID
	last    int64
	started bool
}

func (g *group) next(ordinal int64) bool {
	fresh := !g.started || ordinal <= g.last
	g.started = true
	g.last = ordinal
	return fresh
}

type folder struct {
	b *schema.Builder
	g group
}

func newFolder(b *schema.Builder) *folder {
	return &folder{b: b}
}

func (f *folder) reset() {
	f.g = group{parent: schema.NoNode}
}

func (f *folder) handler(stage Stage, d Dialect) func(row) error {
	switch stage {
	case StageTables:
		return f.table
	case StageColumns:
		return func(r row) error { return f.column(r, d, schema.KindTable) }
	case StageViews:
		return f.view
	case StageViewColumns:
		return func(r row) error { return f.column(r, d, schema.KindView) }
	case StageIndexes:
		return f.index
	case StageForeignKeys:
		return f.foreignKey
	case StageCheckConstraints:
		return f.check
	case StageUniqueConstraints:
		return f.key
	case StageSequences:
		return func(r row) error { return f.sequence(r, d) }
	case StageDomains:
		return func(r row) error { return f.domain(r, d) }
	}
	return func(row) error { return nil }
}

func (f *folder) schema(name string) (schema.NodeID, error) {
	if id, ok := f.b.Schema(name); ok {
		return id, nil
	}
	return f.b.AddSchema(name)
}

func (f *folder) relation(k schema.Kind, schemaName, name string) (schema.NodeID, error) {
	s, ok := f.b.Schema(schemaName)
	if ok {
		var id schema.NodeID
		if k == schema.KindView {
			id, ok = f.b.View(s, name)
		} else {
			id, ok = f.b.Table(s, name)
		}
		if ok {
			return id, nil
		}
	}
	return schema.NoNode, types.ErrMissingObject.New(k, schemaName+"."+name)
}

func (f *folder) columnOf(owner schema.NodeID, name string) (schema.NodeID, error) {
	if id, ok := f.b.Column(owner, name); ok {
		return id, nil
	}
	return schema.NoNode, types.ErrMissingObject.New(schema.KindColumn, f.b.Path(owner)+"."+name)
}

func (f *folder) table(r row) error {
	s, err := f.schema(r.str(0))
	if err != nil {
		return err
	}
	_, err = f.b.AddTable(s, r.str(1))
	return err
}

func (f *folder) view(r row) error {
	s, err := f.schema(r.str(0))
	if err != nil {
		return err
	}
	opt := schema.CheckNone
	if v, ok := r.nullable(3); ok {
		if opt, err = schema.ParseCheckOption(v); err != nil {
			return err
		}
	}
	def, _ := r.nullable(2)
	_, err = f.b.AddView(s, r.str(1), schema.ViewDef{Definition: strings.TrimSpace(def), CheckOption: opt})
	return err
}

func (f *folder) column(r row, d Dialect, owner schema.Kind) error {
	ordinal, err := r.int(2)
	if err != nil {
		return err
	}
	if f.g.next(ordinal) {
		if f.g.parent, err = f.relation(owner, r.str(0), r.str(1)); err != nil {
			return err
		}
	}
	ct, err := r.columnType(4)
	if err != nil {
		return err
	}
	nullable, err := r.flag(8)
	if err != nil {
		return err
	}
	def := schema.ColumnDef{Type: d.DecodeType(ct), Nullable: nullable}
	if owner == schema.KindTable {
		def.Default, _ = r.nullable(9)
		def.Collation, _ = r.nullable(10)
	}
	_, err = f.b.AddColumn(f.g.parent, r.str(3), def)
	return err
}

func (f *folder) index(r row) error {
	ordinal, err := r.int(3)
	if err != nil {
		return err
	}
	if f.g.next(ordinal) {
		table, err := f.relation(schema.KindTable, r.str(0), r.str(1))
		if err != nil {
			return err
		}
		unique, err := r.flag(5)
		if err != nil {
			return err
		}
		kind, err := schema.ParseIndexKind(r.str(7))
		if err != nil {
			return err
		}
		filter, _ := r.nullable(8)
		if f.g.parent, err = f.b.AddIndex(table, r.str(2), schema.IndexDef{Unique: unique, Kind: kind, Filter: filter}); err != nil {
			return err
		}
	}
	col, err := f.columnOf(f.b.Parent(f.g.parent), r.str(4))
	if err != nil {
		return err
	}
	asc, err := r.direction(6)
	if err != nil {
		return err
	}
	_, err = f.b.AddIndexColumn(f.g.parent, col, asc)
	return err
}

func (f *folder) foreignKey(r row) error {
	ordinal, err := r.int(3)
	if err != nil {
		return err
	}
	if f.g.next(ordinal) {
		table, err := f.relation(schema.KindTable, r.str(0), r.str(1))
		if err != nil {
			return err
		}
		ref, err := f.relation(schema.KindTable, r.str(5), r.str(6))
		if err != nil {
			return err
		}
		var rules schema.ForeignKeyDef
		if rules.OnUpdate, err = schema.ParseReferentialAction(r.str(8)); err != nil {
			return err
		}
		if rules.OnDelete, err = schema.ParseReferentialAction(r.str(9)); err != nil {
			return err
		}
		if f.g.parent, err = f.b.AddForeignKey(table, r.str(2), ref, rules); err != nil {
			return err
		}
	}
	fk := f.g.parent
	col, err := f.columnOf(f.b.Parent(fk), r.str(4))
	if err != nil {
		return err
	}
	s, _ := f.b.Schema(r.str(5))
	refTable, _ := f.b.Table(s, r.str(6))
	refCol, err := f.columnOf(refTable, r.str(7))
	if err != nil {
		return err
	}
	return f.b.AddForeignKeyColumn(fk, col, refCol)
}

func (f *folder) check(r row) error {
	table, err := f.relation(schema.KindTable, r.str(0), r.str(1))
	if err != nil {
		return err
	}
	_, err = f.b.AddCheck(table, r.str(2), strings.TrimSpace(r.str(3)))
	return err
}

func (f *folder) key(r row) error {
	ordinal, err := r.int(4)
	if err != nil {
		return err
	}
	if f.g.next(ordinal) {
		table, err := f.relation(schema.KindTable, r.str(0), r.str(1))
		if err != nil {
			return err
		}
		switch kind := strings.ToUpper(strings.TrimSpace(r.str(3))); kind {
		case "PRIMARY KEY":
			f.g.parent, err = f.b.AddPrimaryKey(table, r.str(2))
		case "UNIQUE":
			f.g.parent, err = f.b.AddUnique(table, r.str(2))
		default:
			return types.ErrUnmappedValue.New("constraint type", r.str(3))
		}
		if err != nil {
			return err
		}
	}
	col, err := f.columnOf(f.b.Parent(f.g.parent), r.str(5))
	if err != nil {
		return err
	}
	return f.b.AddConstraintColumn(f.g.parent, col)
}

func (f *folder) sequence(r row, d Dialect) error {
	s, err := f.schema(r.str(0))
	if err != nil {
		return err
	}
	def := schema.SequenceDef{Type: d.DecodeType(ColumnType{Native: r.str(2)})}
	for i, dst := range []*int64{&def.Start, &def.Increment, &def.Min, &def.Max} {
		if *dst, err = r.int(3 + i); err != nil {
			return err
		}
	}
	if def.Cycle, err = r.flag(7); err != nil {
		return err
	}
	_, err = f.b.AddSequence(s, r.str(1), def)
	return err
}

func (f *folder) domain(r row, d Dialect) error {
	s, err := f.schema(r.str(0))
	if err != nil {
		return err
	}
	ct, err := r.columnType(2)
	if err != nil {
		return err
	}
	def := schema.DomainDef{Type: d.DecodeType(ct)}
	def.Default, _ = r.nullable(6)
	def.Check, _ = r.nullable(7)
	_, err = f.b.AddDomain(s, r.str(1), def)
	return err
}

// row is one scanned metadata row.
type row []any

func text(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func (r row) str(i int) string {
	return cast.ToString(text(r[i]))
}

func (r row) nullable(i int) (string, bool) {
	if r[i] == nil {
		return "", false
	}
	return r.str(i), true
}

func (r row) int(i int) (int64, error) {
	if r[i] == nil {
		return 0, nil
	}
	n, err := cast.ToInt64E(text(r[i]))
	if err != nil {
		return 0, types.ErrUnmappedValue.New("number", r.str(i))
	}
	return n, nil
}

// flag decodes the boolean spellings catalogs use.
func (r row) flag(i int) (bool, error) {
	switch v := text(r[i]).(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		switch strings.ToUpper(strings.TrimSpace(v)) {
		case "YES", "Y", "TRUE", "T", "1":
			return true, nil
		case "NO", "N", "FALSE", "F", "0", "":
			return false, nil
		}
	default:
		if n, err := cast.ToInt64E(v); err == nil && (n == 0 || n == 1) {
			return n == 1, nil
		}
	}
	return false, types.ErrUnmappedValue.New("flag", r.str(i))
}

func (r row) direction(i int) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(r.str(i))) {
	case "ASC", "A", "":
		return true, nil
	case "DESC", "D":
		return false, nil
	}
	return false, types.ErrUnmappedValue.New("sort direction", r.str(i))
}

// columnType reads type, length, precision and scale starting at i.
func (r row) columnType(i int) (ColumnType, error) {
	ct := ColumnType{Native: r.str(i)}
	var err error
	if ct.Length, err = r.int(i + 1); err != nil {
		return ct, err
	}
	if ct.Precision, err = r.int(i + 2); err != nil {
		return ct, err
	}
	ct.Scale, err = r.int(i + 3)
	return ct, err
}
