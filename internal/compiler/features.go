package compiler

import "github.com/coregx/rse/internal/typemap"

// Features lists the optional constructs a dialect can express. The compiler
// fails with types.ErrNotSupported instead of emitting an unsupported one.
type Features struct {
	Intersect     bool
	Except        bool
	FullOuterJoin bool
	// LateralJoin allows cross and outer applies.
	LateralJoin bool
	FullText    bool
	RowLocks    bool
	SkipLocked  bool
	// RowValues allows (a, b) IN ((1, 2), ...) lists.
	RowValues bool
}

// Dialect bundles the parts of a SQL dialect the compiler needs.
type Dialect interface {
	Name() string
	Translator() Translator
	Emitter() Emitter
	Features() Features
	TypeMapper() typemap.Mapper
}
