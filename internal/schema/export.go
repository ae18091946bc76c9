package schema

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/coregx/rse/internal/types"
)

// Document is the plain, serializable form of a frozen catalog.
type Document struct {
	Catalog       string           `yaml:"catalog" json:"catalog"`
	CaseSensitive bool             `yaml:"case_sensitive,omitempty" json:"case_sensitive,omitempty"`
	Schemas       []SchemaDocument `yaml:"schemas" json:"schemas"`
}

type SchemaDocument struct {
	Name          string             `yaml:"name" json:"name"`
	Tables        []TableDocument    `yaml:"tables,omitempty" json:"tables,omitempty"`
	Views         []ViewDocument     `yaml:"views,omitempty" json:"views,omitempty"`
	Sequences     []SequenceDocument `yaml:"sequences,omitempty" json:"sequences,omitempty"`
	Domains       []DomainDocument   `yaml:"domains,omitempty" json:"domains,omitempty"`
	Collations    []NamedValue       `yaml:"collations,omitempty" json:"collations,omitempty"`
	CharacterSets []NamedValue       `yaml:"character_sets,omitempty" json:"character_sets,omitempty"`
	Assertions    []NamedValue       `yaml:"assertions,omitempty" json:"assertions,omitempty"`
	Translations  []NamedValue       `yaml:"translations,omitempty" json:"translations,omitempty"`
}

type TableDocument struct {
	Name        string               `yaml:"name" json:"name"`
	Columns     []ColumnDocument     `yaml:"columns" json:"columns"`
	Indexes     []IndexDocument      `yaml:"indexes,omitempty" json:"indexes,omitempty"`
	Constraints []ConstraintDocument `yaml:"constraints,omitempty" json:"constraints,omitempty"`
}

type ViewDocument struct {
	Name        string           `yaml:"name" json:"name"`
	Definition  string           `yaml:"definition,omitempty" json:"definition,omitempty"`
	CheckOption string           `yaml:"check_option,omitempty" json:"check_option,omitempty"`
	Columns     []ColumnDocument `yaml:"columns,omitempty" json:"columns,omitempty"`
}

type ColumnDocument struct {
	Name      string `yaml:"name" json:"name"`
	Type      string `yaml:"type" json:"type"`
	Native    string `yaml:"native,omitempty" json:"native,omitempty"`
	Nullable  bool   `yaml:"nullable" json:"nullable"`
	Default   string `yaml:"default,omitempty" json:"default,omitempty"`
	Collation string `yaml:"collation,omitempty" json:"collation,omitempty"`
	Domain    string `yaml:"domain,omitempty" json:"domain,omitempty"`
}

type IndexDocument struct {
	Name    string   `yaml:"name" json:"name"`
	Unique  bool     `yaml:"unique,omitempty" json:"unique,omitempty"`
	Kind    string   `yaml:"kind" json:"kind"`
	Filter  string   `yaml:"filter,omitempty" json:"filter,omitempty"`
	Columns []string `yaml:"columns" json:"columns"`
}

type ConstraintDocument struct {
	Name       string   `yaml:"name" json:"name"`
	Kind       string   `yaml:"kind" json:"kind"`
	Columns    []string `yaml:"columns,omitempty" json:"columns,omitempty"`
	Condition  string   `yaml:"condition,omitempty" json:"condition,omitempty"`
	References string   `yaml:"references,omitempty" json:"references,omitempty"`
	RefColumns []string `yaml:"ref_columns,omitempty" json:"ref_columns,omitempty"`
	OnDelete   string   `yaml:"on_delete,omitempty" json:"on_delete,omitempty"`
	OnUpdate   string   `yaml:"on_update,omitempty" json:"on_update,omitempty"`
}

type SequenceDocument struct {
	Name      string `yaml:"name" json:"name"`
	Type      string `yaml:"type,omitempty" json:"type,omitempty"`
	Start     int64  `yaml:"start" json:"start"`
	Increment int64  `yaml:"increment" json:"increment"`
	Min       int64  `yaml:"min" json:"min"`
	Max       int64  `yaml:"max" json:"max"`
	Cycle     bool   `yaml:"cycle,omitempty" json:"cycle,omitempty"`
}

type DomainDocument struct {
	Name    string `yaml:"name" json:"name"`
	Type    string `yaml:"type" json:"type"`
	Default string `yaml:"default,omitempty" json:"default,omitempty"`
	Check   string `yaml:"check,omitempty" json:"check,omitempty"`
}

// NamedValue is a named object with one textual attribute.
type NamedValue struct {
	Name  string `yaml:"name" json:"name"`
	Value string `yaml:"value,omitempty" json:"value,omitempty"`
}

// Export converts the catalog into its serializable form.
func (c *Catalog) Export() Document {
	doc := Document{Catalog: c.Name(), CaseSensitive: c.caseSensitive}
	for _, s := range c.Schemas() {
		sd := SchemaDocument{Name: s.Name()}
		for _, t := range s.Tables() {
			sd.Tables = append(sd.Tables, exportTable(t))
		}
		for _, v := range s.Views() {
			vd := ViewDocument{Name: v.Name(), Definition: v.Definition(), Columns: exportColumns(v.Columns())}
			if v.CheckOption() != CheckNone {
				vd.CheckOption = v.CheckOption().String()
			}
			sd.Views = append(sd.Views, vd)
		}
		for _, q := range s.Sequences() {
			d := q.Def()
			sd.Sequences = append(sd.Sequences, SequenceDocument{
				Name: q.Name(), Type: optionalType(d.Type),
				Start: d.Start, Increment: d.Increment, Min: d.Min, Max: d.Max, Cycle: d.Cycle,
			})
		}
		for _, d := range s.Domains() {
			def := d.Def()
			sd.Domains = append(sd.Domains, DomainDocument{Name: d.Name(), Type: def.Type.String(), Default: def.Default, Check: def.Check})
		}
		for _, x := range s.Collations() {
			sd.Collations = append(sd.Collations, NamedValue{x.Name(), x.CharacterSet()})
		}
		for _, x := range s.CharacterSets() {
			sd.CharacterSets = append(sd.CharacterSets, NamedValue{x.Name(), x.DefaultCollation()})
		}
		for _, x := range s.Assertions() {
			sd.Assertions = append(sd.Assertions, NamedValue{x.Name(), x.Condition()})
		}
		for _, x := range s.Translations() {
			sd.Translations = append(sd.Translations, NamedValue{x.Name(), x.Source() + " -> " + x.Target()})
		}
		doc.Schemas = append(doc.Schemas, sd)
	}
	return doc
}

func optionalType(ti types.TypeInfo) string {
	if ti.Type == types.SQLUnknown {
		return ""
	}
	return ti.String()
}

func exportTable(t Table) TableDocument {
	td := TableDocument{Name: t.Name(), Columns: exportColumns(t.Columns())}
	for _, ix := range t.Indexes() {
		id := IndexDocument{Name: ix.Name(), Unique: ix.Unique(), Kind: ix.IndexKind().String(), Filter: ix.Filter()}
		for _, ic := range ix.Columns() {
			name := ic.Column().Name()
			if !ic.Ascending() {
				name += " DESC"
			}
			id.Columns = append(id.Columns, name)
		}
		td.Indexes = append(td.Indexes, id)
	}
	for _, k := range t.Constraints() {
		cd := ConstraintDocument{Name: k.Name(), Kind: k.Kind().String(), Columns: columnNames(k.Columns()), Condition: k.Condition()}
		if ref, ok := k.ReferencedTable(); ok {
			rules := k.Rules()
			cd.References = ref.Path()
			cd.RefColumns = columnNames(k.ReferencedColumns())
			cd.OnDelete = rules.OnDelete.String()
			cd.OnUpdate = rules.OnUpdate.String()
		}
		td.Constraints = append(td.Constraints, cd)
	}
	return td
}

func exportColumns(cols []Column) []ColumnDocument {
	var out []ColumnDocument
	for _, c := range cols {
		ti := c.Type()
		out = append(out, ColumnDocument{
			Name: c.Name(), Type: ti.String(), Native: ti.Native, Nullable: c.Nullable(),
			Default: c.Default(), Collation: c.Collation(), Domain: c.Domain(),
		})
	}
	return out
}

func columnNames(cols []Column) []string {
	var out []string
	for _, c := range cols {
		out = append(out, c.Name())
	}
	return out
}

// WriteYAML writes the exported catalog as YAML.
func (c *Catalog) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c.Export()); err != nil {
		return err
	}
	return enc.Close()
}

// WriteJSON writes the exported catalog as indented JSON.
func (c *Catalog) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(c.Export())
}
