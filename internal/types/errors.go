package types

import errors "gopkg.in/src-d/go-errors.v1"

// Error kinds shared by every layer of the compiler and the extractor.
var (
	// ErrNotSupported is returned when a construct has no translation in the active dialect.
	ErrNotSupported = errors.NewKind("%s is not supported by the %s dialect")

	// ErrInvalidArgument is returned when a required argument is missing or malformed.
	ErrInvalidArgument = errors.NewKind("invalid argument %s: %s")

	// ErrIndexOutOfRange is returned when a column index does not address a header column.
	ErrIndexOutOfRange = errors.NewKind("column index %d is out of range [0, %d)")

	// ErrIncompatibleHeaders is returned when the inputs of an n-ary operator do not line up.
	ErrIncompatibleHeaders = errors.NewKind("incompatible headers for %s: %s")

	// ErrMissingObject is returned when a catalog object referenced during extraction is missing.
	ErrMissingObject = errors.NewKind("%s %s is not found")

	// ErrUnmappedValue is returned when an enumerated metadata value has no known meaning.
	ErrUnmappedValue = errors.NewKind("unmapped %s value %q")

	// ErrExtractionIO wraps a connection-level failure during extraction. It is
	// the only retryable error kind.
	ErrExtractionIO = errors.NewKind("i/o failure while extracting %s: %s")

	// ErrConversion is returned when a host value cannot be bound or read as the requested type.
	ErrConversion = errors.NewKind("cannot convert %T to %s")
)
