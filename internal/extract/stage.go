package extract

// Stage is one metadata query of an extraction. Every template must return
// the columns listed for its stage, in that order, sorted by schema, owner,
// object name and ordinal position.
type Stage uint8

const (
	// StageTables returns: schema, table.
	StageTables Stage = iota
	// StageColumns returns: schema, table, ordinal, column, type, length,
	// precision, scale, nullable, default, collation.
	StageColumns
	// StageViews returns: schema, view, definition, check option.
	StageViews
	// StageViewColumns returns: schema, view, ordinal, column, type, length,
	// precision, scale, nullable.
	StageViewColumns
	// StageIndexes returns: schema, table, index, ordinal, column, unique,
	// direction (ASC or DESC), kind, filter.
	StageIndexes
	// StageForeignKeys returns: schema, table, constraint, ordinal, column,
	// referenced schema, referenced table, referenced column, update rule,
	// delete rule.
	StageForeignKeys
	// StageCheckConstraints returns: schema, table, constraint, condition.
	StageCheckConstraints
	// StageUniqueConstraints returns: schema, table, constraint, constraint
	// type (PRIMARY KEY or UNIQUE), ordinal, column.
	StageUniqueConstraints
	// StageSequences returns: schema, sequence, type, start, increment,
	// minimum, maximum, cycle.
	StageSequences
	// StageDomains returns: schema, domain, type, length, precision, scale,
	// default, check.
	StageDomains
)

// Stages is the order stages run in. Referenced objects are always folded
// before the objects referencing them.
var Stages = []Stage{
	StageTables,
	StageColumns,
	StageViews,
	StageViewColumns,
	StageIndexes,
	StageForeignKeys,
	StageCheckConstraints,
	StageUniqueConstraints,
	StageSequences,
	StageDomains,
}

var stageNames = [...]string{
	"tables", "columns", "views", "view_columns", "indexes", "foreign_keys",
	"check_constraints", "unique_constraints", "sequences", "domains",
}

var stageWidths = [...]int{2, 11, 4, 9, 9, 10, 4, 6, 8, 8}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

func (s Stage) width() int {
	return stageWidths[s]
}
