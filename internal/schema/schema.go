// Package schema is the in-memory database catalog model.
//
// A catalog is assembled with a Builder (by the extractor or by hand) and then
// frozen into an immutable Catalog. Nodes live in an arena addressed by NodeID;
// ownership is kept in an explicit parent map instead of back references.
package schema

import (
	"strings"

	"github.com/coregx/rse/internal/types"
)

// NodeID addresses a node of one builder or catalog arena.
type NodeID int32

// NoNode is the zero reference.
const NoNode NodeID = -1

// Kind is the kind of a catalog node.
type Kind uint8

// Node kinds.
const (
	KindCatalog Kind = iota
	KindSchema
	KindTable
	KindView
	KindColumn
	KindIndex
	KindIndexColumn
	KindPrimaryKey
	KindUnique
	KindForeignKey
	KindCheck
	KindSequence
	KindDomain
	KindCollation
	KindCharacterSet
	KindAssertion
	KindTranslation
)

var kindNames = [...]string{
	"catalog", "schema", "table", "view", "column", "index", "index column",
	"primary key", "unique constraint", "foreign key", "check constraint",
	"sequence", "domain", "collation", "character set", "assertion", "translation",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsConstraint reports whether k is a table constraint kind.
func (k Kind) IsConstraint() bool {
	return k >= KindPrimaryKey && k <= KindCheck
}

// collection groups kinds sharing one name space under a parent.
type collection uint8

const (
	collNone collection = iota
	collSchemas
	collRelations
	collColumns
	collIndexes
	collIndexColumns
	collConstraints
	collSequences
	collDomains
	collCollations
	collCharacterSets
	collAssertions
	collTranslations
)

func (k Kind) collection() collection {
	switch k {
	case KindSchema:
		return collSchemas
	case KindTable, KindView:
		return collRelations
	case KindColumn:
		return collColumns
	case KindIndex:
		return collIndexes
	case KindIndexColumn:
		return collIndexColumns
	case KindPrimaryKey, KindUnique, KindForeignKey, KindCheck:
		return collConstraints
	case KindSequence:
		return collSequences
	case KindDomain:
		return collDomains
	case KindCollation:
		return collCollations
	case KindCharacterSet:
		return collCharacterSets
	case KindAssertion:
		return collAssertions
	case KindTranslation:
		return collTranslations
	}
	return collNone
}

// parentKinds lists the kinds a node of a given kind may be attached to.
var parentKinds = map[Kind][]Kind{
	KindSchema:       {KindCatalog},
	KindTable:        {KindSchema},
	KindView:         {KindSchema},
	KindColumn:       {KindTable, KindView},
	KindIndex:        {KindTable},
	KindIndexColumn:  {KindIndex},
	KindPrimaryKey:   {KindTable},
	KindUnique:       {KindTable},
	KindForeignKey:   {KindTable},
	KindCheck:        {KindTable},
	KindSequence:     {KindSchema},
	KindDomain:       {KindSchema},
	KindCollation:    {KindSchema},
	KindCharacterSet: {KindSchema},
	KindAssertion:    {KindSchema},
	KindTranslation:  {KindSchema},
}

// ColumnDef describes a table or view column.
type ColumnDef struct {
	Type      types.TypeInfo
	Nullable  bool
	Default   string
	Collation string
	// Domain names the domain the column is declared over, if any.
	Domain string
}

// ViewDef describes a view.
type ViewDef struct {
	Definition  string
	CheckOption CheckOption
}

// CheckOption is the WITH CHECK OPTION level of a view.
type CheckOption uint8

// View check options.
const (
	CheckNone CheckOption = iota
	CheckLocal
	CheckCascaded
)

var checkOptionNames = [...]string{"NONE", "LOCAL", "CASCADED"}

func (o CheckOption) String() string {
	if int(o) < len(checkOptionNames) {
		return checkOptionNames[o]
	}
	return "UNKNOWN"
}

// ParseCheckOption decodes a catalog check option value.
func ParseCheckOption(s string) (CheckOption, error) {
	return parseEnum[CheckOption]("check option", s, checkOptionNames[:])
}

// IndexKind is the physical kind of an index.
type IndexKind uint8

// Index kinds.
const (
	IndexBTree IndexKind = iota
	IndexHash
	IndexFullText
	IndexSpatial
	IndexBitmap
)

var indexKindNames = [...]string{"BTREE", "HASH", "FULLTEXT", "SPATIAL", "BITMAP"}

func (k IndexKind) String() string {
	if int(k) < len(indexKindNames) {
		return indexKindNames[k]
	}
	return "UNKNOWN"
}

// ParseIndexKind decodes a catalog index type value. The empty string is a
// plain B-tree index.
func ParseIndexKind(s string) (IndexKind, error) {
	if strings.TrimSpace(s) == "" {
		return IndexBTree, nil
	}
	return parseEnum[IndexKind]("index kind", s, indexKindNames[:])
}

// IndexDef describes an index.
type IndexDef struct {
	Unique bool
	Kind   IndexKind
	// Filter is the predicate of a partial index.
	Filter string
}

// ReferentialAction is the ON DELETE / ON UPDATE rule of a foreign key.
type ReferentialAction uint8

// Referential actions.
const (
	NoAction ReferentialAction = iota
	Restrict
	Cascade
	SetNull
	SetDefault
)

var referentialActionNames = [...]string{"NO ACTION", "RESTRICT", "CASCADE", "SET NULL", "SET DEFAULT"}

func (a ReferentialAction) String() string {
	if int(a) < len(referentialActionNames) {
		return referentialActionNames[a]
	}
	return "UNKNOWN"
}

// ParseReferentialAction decodes a catalog rule value such as "SET NULL".
func ParseReferentialAction(s string) (ReferentialAction, error) {
	return parseEnum[ReferentialAction]("referential action", s, referentialActionNames[:])
}

// ForeignKeyDef describes the rules of a foreign key.
type ForeignKeyDef struct {
	OnDelete ReferentialAction
	OnUpdate ReferentialAction
}

// SequenceDef describes a sequence.
type SequenceDef struct {
	Type      types.TypeInfo
	Start     int64
	Increment int64
	Min       int64
	Max       int64
	Cycle     bool
}

// DomainDef describes a domain.
type DomainDef struct {
	Type    types.TypeInfo
	Default string
	// Check is the domain constraint condition, if any.
	Check string
}

func parseEnum[T ~uint8](what, s string, names []string) (T, error) {
	v := strings.ToUpper(strings.Join(strings.Fields(s), " "))
	for i, n := range names {
		if n == v {
			return T(i), nil
		}
	}
	return 0, types.ErrUnmappedValue.New(what, s)
}
