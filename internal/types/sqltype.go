package types

import (
	"fmt"
	"strings"
)

// SQLType is the vendor-neutral SQL column type used by the schema model.
type SQLType uint8

// SQL types.
const (
	SQLUnknown SQLType = iota
	SQLBoolean
	SQLTinyInt
	SQLSmallInt
	SQLInteger
	SQLBigInt
	SQLDecimal
	SQLFloat
	SQLDouble
	SQLChar
	SQLVarChar
	SQLText
	SQLBinary
	SQLVarBinary
	SQLBlob
	SQLDate
	SQLTime
	SQLDateTime
	SQLDateTimeOffset
	SQLInterval
	SQLGUID
	SQLJSON
	SQLEnum
	SQLSet
	SQLGeometry
	// SQLUserDefined marks a native type that has no registered mapping.
	SQLUserDefined
)

var sqlTypeNames = [...]string{
	SQLUnknown:        "UNKNOWN",
	SQLBoolean:        "BOOLEAN",
	SQLTinyInt:        "TINYINT",
	SQLSmallInt:       "SMALLINT",
	SQLInteger:        "INTEGER",
	SQLBigInt:         "BIGINT",
	SQLDecimal:        "DECIMAL",
	SQLFloat:          "FLOAT",
	SQLDouble:         "DOUBLE",
	SQLChar:           "CHAR",
	SQLVarChar:        "VARCHAR",
	SQLText:           "TEXT",
	SQLBinary:         "BINARY",
	SQLVarBinary:      "VARBINARY",
	SQLBlob:           "BLOB",
	SQLDate:           "DATE",
	SQLTime:           "TIME",
	SQLDateTime:       "DATETIME",
	SQLDateTimeOffset: "DATETIMEOFFSET",
	SQLInterval:       "INTERVAL",
	SQLGUID:           "GUID",
	SQLJSON:           "JSON",
	SQLEnum:           "ENUM",
	SQLSet:            "SET",
	SQLGeometry:       "GEOMETRY",
	SQLUserDefined:    "USER-DEFINED",
}

func (t SQLType) String() string {
	if int(t) < len(sqlTypeNames) {
		return sqlTypeNames[t]
	}
	return fmt.Sprintf("SQLType(%d)", uint8(t))
}

// TypeInfo is a SQL type together with its facets. Zero facets mean "not set".
type TypeInfo struct {
	Type      SQLType
	Length    int
	Precision int
	Scale     int
	Unsigned  bool
	// Native is the vendor spelling as reported by the server, if any.
	Native string
}

// NewTypeInfo returns a TypeInfo without facets.
func NewTypeInfo(t SQLType) TypeInfo {
	return TypeInfo{Type: t}
}

// WithLength returns a copy of ti with the given length.
func (ti TypeInfo) WithLength(n int) TypeInfo {
	ti.Length = n
	return ti
}

// WithPrecision returns a copy of ti with the given precision and scale.
func (ti TypeInfo) WithPrecision(precision, scale int) TypeInfo {
	ti.Precision = precision
	ti.Scale = scale
	return ti
}

func (ti TypeInfo) String() string {
	var sb strings.Builder
	if ti.Type == SQLUserDefined && ti.Native != "" {
		sb.WriteString(ti.Native)
	} else {
		sb.WriteString(ti.Type.String())
	}
	switch {
	case ti.Length > 0:
		fmt.Fprintf(&sb, "(%d)", ti.Length)
	case ti.Precision > 0 && ti.Scale > 0:
		fmt.Fprintf(&sb, "(%d,%d)", ti.Precision, ti.Scale)
	case ti.Precision > 0:
		fmt.Fprintf(&sb, "(%d)", ti.Precision)
	}
	if ti.Unsigned {
		sb.WriteString(" UNSIGNED")
	}
	return sb.String()
}
