package dialects

import (
	"fmt"
	"regexp"
	"time"

	"github.com/coregx/rse/internal/compiler"
	"github.com/coregx/rse/internal/expr"
	"github.com/coregx/rse/internal/extract"
	"github.com/coregx/rse/internal/sqldom"
	"github.com/coregx/rse/internal/typemap"
	"github.com/coregx/rse/internal/types"
)

// MySQLDialect implements the MySQL 8 dialect.
type MySQLDialect struct {
	translator *mysqlTranslator
	mapper     *mysqlMapper
	decoder    *extract.TypeDecoder
}

// NewMySQL returns the MySQL dialect.
func NewMySQL() *MySQLDialect {
	return &MySQLDialect{
		translator: &mysqlTranslator{&compiler.BaseTranslator{
			Dialect:          "mysql",
			OpenQuote:        "`",
			CloseQuote:       "`",
			BackslashEscapes: true,
		}},
		mapper:  &mysqlMapper{&typemap.Base{Casts: map[types.Type]bool{types.GUID: true}, Mappings: mysqlMappings}},
		decoder: mysqlTypes,
	}
}

func (d *MySQLDialect) Name() string                    { return "mysql" }
func (d *MySQLDialect) Translator() compiler.Translator { return d.translator }
func (d *MySQLDialect) Emitter() compiler.Emitter       { return mysqlEmitter{} }
func (d *MySQLDialect) TypeMapper() typemap.Mapper      { return d.mapper }
func (d *MySQLDialect) QuoteString(s string) string     { return d.translator.QuoteString(s) }

func (d *MySQLDialect) DecodeType(c extract.ColumnType) types.TypeInfo {
	return d.decoder.Decode(c)
}

// Features reports MySQL 8 capabilities. INTERSECT and EXCEPT arrived only in
// 8.0.31 and are left out.
func (d *MySQLDialect) Features() compiler.Features {
	return compiler.Features{
		LateralJoin: true,
		FullText:    true,
		RowLocks:    true,
		SkipLocked:  true,
		RowValues:   true,
	}
}

// AllSchemas excludes the system databases.
func (d *MySQLDialect) AllSchemas() string {
	return "NOT IN ('mysql', 'information_schema', 'performance_schema', 'sys')"
}

func (d *MySQLDialect) Query(stage extract.Stage) (string, bool) {
	q, ok := mysqlQueries[stage]
	return q, ok
}

type mysqlTranslator struct {
	*compiler.BaseTranslator
}

// maxLimit stands in for a missing LIMIT when only OFFSET is given.
const maxLimit = "18446744073709551615"

func (t *mysqlTranslator) Literal(v any, typ types.Type) (string, error) {
	if typ == types.DateTimeOffset && v != nil {
		ts, err := typemap.ToTime(v)
		if err != nil {
			return "", err
		}
		return "TIMESTAMP " + t.QuoteString(ts.UTC().Format(compiler.DateTimeLayout)), nil
	}
	return t.BaseTranslator.Literal(v, typ)
}

func (t *mysqlTranslator) Binary(op expr.BinaryOp, left, right string) (string, error) {
	switch op {
	case expr.IntDivide:
		return "(" + left + " DIV " + right + ")", nil
	case expr.Concat:
		return "CONCAT(" + left + ", " + right + ")", nil
	case expr.BitXor:
		return "(" + left + " ^ " + right + ")", nil
	}
	return t.BaseTranslator.Binary(op, left, right)
}

func (t *mysqlTranslator) Function(fn expr.Function, args []string) (string, error) {
	switch fn {
	case expr.Position:
		return "LOCATE(" + args[0] + ", " + args[1] + ")", nil
	case expr.RandomValue:
		return "RAND()", nil
	case expr.AddYears:
		return "DATE_ADD(" + args[0] + ", INTERVAL (" + args[1] + ") YEAR)", nil
	case expr.AddMonths:
		return "DATE_ADD(" + args[0] + ", INTERVAL (" + args[1] + ") MONTH)", nil
	case expr.AddDays:
		return "DATE_ADD(" + args[0] + ", INTERVAL (" + args[1] + ") DAY)", nil
	case expr.AddMicroseconds:
		return "DATE_ADD(" + args[0] + ", INTERVAL (" + args[1] + ") MICROSECOND)", nil
	case expr.DiffDays:
		return "DATEDIFF(" + args[0] + ", " + args[1] + ")", nil
	case expr.DiffMicroseconds:
		return "TIMESTAMPDIFF(MICROSECOND, " + args[0] + ", " + args[1] + ")", nil
	case expr.SecondsOfDay:
		return "TIME_TO_SEC(" + args[0] + ")", nil
	case expr.SecondsToTime:
		return "SEC_TO_TIME(" + args[0] + ")", nil
	case expr.TruncToInt:
		return "TRUNCATE(" + args[0] + ", 0)", nil
	case expr.ConcatStrings:
		return "CONCAT(" + join(args) + ")", nil
	case expr.DateOf:
		return "DATE(" + args[0] + ")", nil
	}
	return t.BaseTranslator.Function(fn, args)
}

var mysqlParts = map[expr.DatePart]string{
	expr.Year:      "YEAR(%s)",
	expr.Month:     "MONTH(%s)",
	expr.Day:       "DAYOFMONTH(%s)",
	expr.Hour:      "HOUR(%s)",
	expr.Minute:    "MINUTE(%s)",
	expr.Second:    "SECOND(%s)",
	expr.DayOfWeek: "(DAYOFWEEK(%s) - 1)",
	expr.DayOfYear: "DAYOFYEAR(%s)",
	// MICROSECOND keeps the full fraction.
	expr.Millisecond: "(MICROSECOND(%s) DIV 1000)",
}

func (t *mysqlTranslator) Extract(part expr.DatePart, operand string) (string, error) {
	if f, ok := mysqlParts[part]; ok {
		return fmt.Sprintf(f, operand), nil
	}
	return t.BaseTranslator.Extract(part, operand)
}

var mysqlCasts = map[types.Type]string{
	types.Bool:           "SIGNED",
	types.Int8:           "SIGNED",
	types.Int16:          "SIGNED",
	types.Int32:          "SIGNED",
	types.Int64:          "SIGNED",
	types.UInt8:          "UNSIGNED",
	types.UInt16:         "UNSIGNED",
	types.UInt32:         "UNSIGNED",
	types.UInt64:         "UNSIGNED",
	types.Float32:        "FLOAT",
	types.Float64:        "DOUBLE",
	types.Decimal:        "DECIMAL(65, 30)",
	types.String:         "CHAR",
	types.Char:           "CHAR(1)",
	types.Bytes:          "BINARY",
	types.GUID:           "CHAR(36)",
	types.DateTime:       "DATETIME(6)",
	types.DateTimeOffset: "DATETIME(6)",
	types.Date:           "DATE",
	types.Time:           "TIME(6)",
	types.Interval:       "SIGNED",
}

func (t *mysqlTranslator) Cast(operand string, typ types.Type) (string, error) {
	name, ok := mysqlCasts[typ]
	if !ok {
		return "", types.ErrNotSupported.New("cast to "+typ.String(), t.Dialect)
	}
	return "CAST(" + operand + " AS " + name + ")", nil
}

func (t *mysqlTranslator) Select(section compiler.SelectSection) string {
	if section == compiler.SectionDummyFrom {
		return "FROM DUAL"
	}
	return t.BaseTranslator.Select(section)
}

func (t *mysqlTranslator) LimitOffset(limit, offset string) string {
	if limit == "" && offset != "" {
		limit = maxLimit
	}
	return t.BaseTranslator.LimitOffset(limit, offset)
}

func (t *mysqlTranslator) IndexHint(indexes []string) string {
	if len(indexes) == 0 {
		return ""
	}
	names := make([]string, len(indexes))
	for i, idx := range indexes {
		names[i] = t.QuoteIdentifier(idx)
	}
	return "USE INDEX (" + join(names) + ")"
}

type mysqlEmitter struct {
	compiler.BaseEmitter
}

// Lower keeps TimeToDateTime, which MySQL spells natively.
func (e mysqlEmitter) Lower(n expr.Expr) (expr.Expr, bool, error) {
	if c, ok := n.(expr.Call); ok && c.Func == expr.TimeToDateTime {
		return n, false, nil
	}
	return e.BaseEmitter.Lower(n)
}

func (e mysqlEmitter) Expr(ctx *compiler.EmitContext, n expr.Expr) (string, error) {
	if c, ok := n.(expr.Call); ok && c.Func == expr.TimeToDateTime {
		v, err := ctx.Emitter.Expr(ctx, c.Args[0])
		if err != nil {
			return "", err
		}
		return "ADDTIME(CAST(CURDATE() AS DATETIME(6)), " + v + ")", nil
	}
	return e.BaseEmitter.Expr(ctx, n)
}

func (e mysqlEmitter) Source(ctx *compiler.EmitContext, s sqldom.TableSource) (string, error) {
	if ft, ok := s.(*sqldom.FullText); ok {
		return fullText(ctx, ft, func(columns []string, criteria string) (string, string) {
			match := "MATCH(" + join(columns) + ") AGAINST (" + criteria + " IN NATURAL LANGUAGE MODE)"
			return match, match
		})
	}
	return e.BaseEmitter.Source(ctx, s)
}

type mysqlMapper struct {
	*typemap.Base
}

// Bind sends unsigned 64-bit values natively and date-times with offsets in
// UTC, since DATETIME carries no zone.
func (m *mysqlMapper) Bind(t types.Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case types.UInt64:
		n, err := typemap.ToDecimal(v)
		if err != nil {
			return nil, err
		}
		if n.Sign() < 0 || !n.IsInteger() {
			return nil, types.ErrConversion.New(v, t)
		}
		return n.BigInt().Uint64(), nil
	case types.DateTimeOffset:
		ts, err := typemap.ToTime(v)
		if err != nil {
			return nil, err
		}
		return ts.UTC(), nil
	}
	return m.Base.Bind(t, v)
}

// Read reattaches UTC to date-times with offsets.
func (m *mysqlMapper) Read(t types.Type, raw any) (any, error) {
	v, err := m.Base.Read(t, raw)
	if err != nil || t != types.DateTimeOffset || v == nil {
		return v, err
	}
	ts := v.(time.Time)
	return time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), time.UTC), nil
}

var mysqlMappings = map[types.Type]typemap.Mapping{
	types.Bool:           {Column: types.NewTypeInfo(types.SQLTinyInt).WithLength(1), Param: typemap.DBBoolean},
	types.Int8:           {Column: types.NewTypeInfo(types.SQLTinyInt), Param: typemap.DBSByte},
	types.UInt8:          {Column: unsigned(types.SQLTinyInt), Param: typemap.DBByte},
	types.UInt16:         {Column: unsigned(types.SQLSmallInt), Param: typemap.DBUInt16},
	types.UInt32:         {Column: unsigned(types.SQLInteger), Param: typemap.DBUInt32},
	types.UInt64:         {Column: unsigned(types.SQLBigInt), Param: typemap.DBUInt64},
	types.GUID:           {Column: types.NewTypeInfo(types.SQLChar).WithLength(36), Param: typemap.DBGuid},
	types.DateTimeOffset: {Column: types.NewTypeInfo(types.SQLDateTime), Param: typemap.DBDateTimeOffset},
}

func unsigned(t types.SQLType) types.TypeInfo {
	ti := types.NewTypeInfo(t)
	ti.Unsigned = true
	return ti
}

var mysqlTypes = &extract.TypeDecoder{
	Rules: []extract.TypeRule{
		{Pattern: regexp.MustCompile(`^tinyint\(1\)`), Type: types.NewTypeInfo(types.SQLBoolean)},
	},
	Names: map[string]types.SQLType{
		"bool":       types.SQLBoolean,
		"boolean":    types.SQLBoolean,
		"tinyint":    types.SQLTinyInt,
		"smallint":   types.SQLSmallInt,
		"mediumint":  types.SQLInteger,
		"int":        types.SQLInteger,
		"integer":    types.SQLInteger,
		"bigint":     types.SQLBigInt,
		"decimal":    types.SQLDecimal,
		"numeric":    types.SQLDecimal,
		"float":      types.SQLFloat,
		"double":     types.SQLDouble,
		"real":       types.SQLDouble,
		"bit":        types.SQLBinary,
		"char":       types.SQLChar,
		"varchar":    types.SQLVarChar,
		"tinytext":   types.SQLText,
		"text":       types.SQLText,
		"mediumtext": types.SQLText,
		"longtext":   types.SQLText,
		"binary":     types.SQLBinary,
		"varbinary":  types.SQLVarBinary,
		"tinyblob":   types.SQLBlob,
		"blob":       types.SQLBlob,
		"mediumblob": types.SQLBlob,
		"longblob":   types.SQLBlob,
		"date":       types.SQLDate,
		"time":       types.SQLTime,
		"datetime":   types.SQLDateTime,
		"timestamp":  types.SQLDateTime,
		"year":       types.SQLSmallInt,
		"json":       types.SQLJSON,
		"enum":       types.SQLEnum,
		"set":        types.SQLSet,
		"geometry":   types.SQLGeometry,
		"point":      types.SQLGeometry,
		"linestring": types.SQLGeometry,
		"polygon":    types.SQLGeometry,
	},
}

const mysqlColumns = `SELECT c.TABLE_SCHEMA, c.TABLE_NAME, c.ORDINAL_POSITION, c.COLUMN_NAME, c.COLUMN_TYPE,
  c.CHARACTER_MAXIMUM_LENGTH, c.NUMERIC_PRECISION, c.NUMERIC_SCALE, c.IS_NULLABLE%s
FROM information_schema.COLUMNS c
JOIN information_schema.TABLES t ON t.TABLE_SCHEMA = c.TABLE_SCHEMA AND t.TABLE_NAME = c.TABLE_NAME
WHERE t.TABLE_TYPE = '%s' AND c.TABLE_SCHEMA {SCHEMA_FILTER} AND c.TABLE_NAME {TABLE_FILTER}
ORDER BY c.TABLE_SCHEMA, c.TABLE_NAME, c.ORDINAL_POSITION`

var mysqlQueries = map[extract.Stage]string{
	extract.StageTables: `SELECT TABLE_SCHEMA, TABLE_NAME
FROM information_schema.TABLES
WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_SCHEMA {SCHEMA_FILTER} AND TABLE_NAME {TABLE_FILTER}
ORDER BY TABLE_SCHEMA, TABLE_NAME`,

	extract.StageColumns: fmt.Sprintf(mysqlColumns, ", c.COLUMN_DEFAULT, c.COLLATION_NAME", "BASE TABLE"),

	extract.StageViews: `SELECT TABLE_SCHEMA, TABLE_NAME, VIEW_DEFINITION, CHECK_OPTION
FROM information_schema.VIEWS
WHERE TABLE_SCHEMA {SCHEMA_FILTER} AND TABLE_NAME {TABLE_FILTER}
ORDER BY TABLE_SCHEMA, TABLE_NAME`,

	extract.StageViewColumns: fmt.Sprintf(mysqlColumns, "", "VIEW"),

	extract.StageIndexes: `SELECT TABLE_SCHEMA, TABLE_NAME, INDEX_NAME, SEQ_IN_INDEX, COLUMN_NAME,
  CASE NON_UNIQUE WHEN 0 THEN 'YES' ELSE 'NO' END,
  CASE COLLATION WHEN 'D' THEN 'DESC' ELSE 'ASC' END,
  CASE INDEX_TYPE WHEN 'RTREE' THEN 'SPATIAL' ELSE INDEX_TYPE END,
  NULL
FROM information_schema.STATISTICS
WHERE COLUMN_NAME IS NOT NULL AND TABLE_SCHEMA {SCHEMA_FILTER} AND TABLE_NAME {TABLE_FILTER}
ORDER BY TABLE_SCHEMA, TABLE_NAME, INDEX_NAME, SEQ_IN_INDEX`,

	extract.StageForeignKeys: `SELECT k.TABLE_SCHEMA, k.TABLE_NAME, k.CONSTRAINT_NAME, k.ORDINAL_POSITION, k.COLUMN_NAME,
  k.REFERENCED_TABLE_SCHEMA, k.REFERENCED_TABLE_NAME, k.REFERENCED_COLUMN_NAME, r.UPDATE_RULE, r.DELETE_RULE
FROM information_schema.KEY_COLUMN_USAGE k
JOIN information_schema.REFERENTIAL_CONSTRAINTS r
  ON r.CONSTRAINT_SCHEMA = k.CONSTRAINT_SCHEMA AND r.TABLE_NAME = k.TABLE_NAME AND r.CONSTRAINT_NAME = k.CONSTRAINT_NAME
WHERE k.TABLE_SCHEMA {SCHEMA_FILTER} AND k.TABLE_NAME {TABLE_FILTER}
ORDER BY k.TABLE_SCHEMA, k.TABLE_NAME, k.CONSTRAINT_NAME, k.ORDINAL_POSITION`,

	extract.StageCheckConstraints: `SELECT tc.TABLE_SCHEMA, tc.TABLE_NAME, tc.CONSTRAINT_NAME, cc.CHECK_CLAUSE
FROM information_schema.TABLE_CONSTRAINTS tc
JOIN information_schema.CHECK_CONSTRAINTS cc
  ON cc.CONSTRAINT_SCHEMA = tc.CONSTRAINT_SCHEMA AND cc.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
WHERE tc.CONSTRAINT_TYPE = 'CHECK' AND tc.TABLE_SCHEMA {SCHEMA_FILTER} AND tc.TABLE_NAME {TABLE_FILTER}
ORDER BY tc.TABLE_SCHEMA, tc.TABLE_NAME, tc.CONSTRAINT_NAME`,

	extract.StageUniqueConstraints: `SELECT tc.TABLE_SCHEMA, tc.TABLE_NAME, tc.CONSTRAINT_NAME, tc.CONSTRAINT_TYPE, k.ORDINAL_POSITION, k.COLUMN_NAME
FROM information_schema.TABLE_CONSTRAINTS tc
JOIN information_schema.KEY_COLUMN_USAGE k
  ON k.CONSTRAINT_SCHEMA = tc.CONSTRAINT_SCHEMA AND k.TABLE_NAME = tc.TABLE_NAME AND k.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
WHERE tc.CONSTRAINT_TYPE IN ('PRIMARY KEY', 'UNIQUE') AND tc.TABLE_SCHEMA {SCHEMA_FILTER} AND tc.TABLE_NAME {TABLE_FILTER}
ORDER BY tc.TABLE_SCHEMA, tc.TABLE_NAME, tc.CONSTRAINT_NAME, k.ORDINAL_POSITION`,
}

func init() {
	RegisterDialect("mysql", NewMySQL())
}
