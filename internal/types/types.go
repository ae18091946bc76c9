// Package types describes the host value types carried by query headers and
// the SQL column types they are stored as.
package types

import "fmt"

// Type is a host value type. Every header column and scalar expression has one.
type Type uint8

// Host value types.
const (
	Unknown Type = iota
	Null
	Bool
	Int8
	Int16
	Int32
	Int64
	UInt8
	UInt16
	UInt32
	UInt64
	Float32
	Float64
	Decimal
	String
	Char
	Bytes
	GUID
	DateTime
	DateTimeOffset
	Date
	Time
	// Interval is a signed count of nanoseconds.
	Interval
)

var typeNames = [...]string{
	Unknown:        "unknown",
	Null:           "null",
	Bool:           "bool",
	Int8:           "int8",
	Int16:          "int16",
	Int32:          "int32",
	Int64:          "int64",
	UInt8:          "uint8",
	UInt16:         "uint16",
	UInt32:         "uint32",
	UInt64:         "uint64",
	Float32:        "float32",
	Float64:        "float64",
	Decimal:        "decimal",
	String:         "string",
	Char:           "char",
	Bytes:          "bytes",
	GUID:           "guid",
	DateTime:       "datetime",
	DateTimeOffset: "datetimeoffset",
	Date:           "date",
	Time:           "time",
	Interval:       "interval",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// IsInteger reports whether t is a signed or unsigned integer type.
func (t Type) IsInteger() bool {
	return t >= Int8 && t <= UInt64
}

// IsUnsigned reports whether t is an unsigned integer type.
func (t Type) IsUnsigned() bool {
	return t >= UInt8 && t <= UInt64
}

// IsNumeric reports whether t is an integer, floating point or decimal type.
func (t Type) IsNumeric() bool {
	return t.IsInteger() || t == Float32 || t == Float64 || t == Decimal
}

// IsFloat reports whether t is a binary floating point type.
func (t Type) IsFloat() bool {
	return t == Float32 || t == Float64
}

// IsTemporal reports whether t is a date, time or date-time type.
func (t Type) IsTemporal() bool {
	return t == DateTime || t == DateTimeOffset || t == Date || t == Time
}

// IsText reports whether t is a character type.
func (t Type) IsText() bool {
	return t == String || t == Char
}

// Temporal constants shared by the interval decompositions.
const (
	NanosecondsPerMicrosecond int64 = 1000
	NanosecondsPerMillisecond int64 = 1000 * NanosecondsPerMicrosecond
	NanosecondsPerSecond      int64 = 1000 * NanosecondsPerMillisecond
	NanosecondsPerMinute      int64 = 60 * NanosecondsPerSecond
	NanosecondsPerHour        int64 = 60 * NanosecondsPerMinute
	NanosecondsPerDay         int64 = 24 * NanosecondsPerHour
	SecondsPerDay             int64 = 86400
	MicrosecondsPerDay        int64 = SecondsPerDay * 1000000
)
