// Package typemap maps host value types to SQL parameter and column types and
// converts values in both directions.
package typemap

import (
	"fmt"

	"github.com/coregx/rse/internal/types"
)

// DBType tags a bound parameter with the provider type it is sent as.
type DBType uint8

// Parameter types.
const (
	DBUnknown DBType = iota
	DBBoolean
	DBSByte
	DBByte
	DBInt16
	DBUInt16
	DBInt32
	DBUInt32
	DBInt64
	DBUInt64
	DBSingle
	DBDouble
	DBDecimal
	DBString
	DBStringFixedLength
	DBBinary
	DBGuid
	DBDateTime
	DBDateTimeOffset
	DBDate
	DBTime
)

var dbTypeNames = [...]string{
	"Unknown", "Boolean", "SByte", "Byte", "Int16", "UInt16", "Int32", "UInt32",
	"Int64", "UInt64", "Single", "Double", "Decimal", "String", "StringFixedLength",
	"Binary", "Guid", "DateTime", "DateTimeOffset", "Date", "Time",
}

func (t DBType) String() string {
	if int(t) < len(dbTypeNames) {
		return dbTypeNames[t]
	}
	return fmt.Sprintf("DBType(%d)", uint8(t))
}

// Mapping is the default storage of a host type.
type Mapping struct {
	// Column is the column type used when no explicit mapping is configured.
	Column types.TypeInfo
	// Param is the parameter type values are bound as.
	Param DBType
}

// Mapper maps host types for one dialect.
type Mapper interface {
	// RequiresCast reports whether a parameter of type t must be wrapped in an
	// explicit SQL cast.
	RequiresCast(t types.Type) bool
	// Map returns the default column and parameter type of t.
	Map(t types.Type) (Mapping, error)
	// Bind converts a host value of type t into a driver value.
	Bind(t types.Type, v any) (any, error)
	// Read converts a raw driver value into the host value of type t.
	Read(t types.Type, raw any) (any, error)
}
