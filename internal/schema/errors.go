package schema

import errors "gopkg.in/src-d/go-errors.v1"

var (
	// ErrLocked is returned by every mutator once the builder has been frozen.
	ErrLocked = errors.NewKind("catalog %s is locked")

	// ErrDuplicateName is returned when a name is already taken in its collection.
	ErrDuplicateName = errors.NewKind("%s %s already exists in %s")

	// ErrIncomplete is returned by Freeze for a constraint or index without columns.
	ErrIncomplete = errors.NewKind("%s %s has no columns")
)
