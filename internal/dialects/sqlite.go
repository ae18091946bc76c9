package dialects

import (
	"fmt"
	"time"

	"github.com/coregx/rse/internal/compiler"
	"github.com/coregx/rse/internal/expr"
	"github.com/coregx/rse/internal/extract"
	"github.com/coregx/rse/internal/sqldom"
	"github.com/coregx/rse/internal/typemap"
	"github.com/coregx/rse/internal/types"
)

// SQLiteDialect implements the SQLite dialect. Temporal values are stored as
// ISO-8601 text and booleans as 0 or 1.
type SQLiteDialect struct {
	translator *sqliteTranslator
	mapper     *sqliteMapper
}

// NewSQLite returns the SQLite dialect.
func NewSQLite() *SQLiteDialect {
	return &SQLiteDialect{
		translator: &sqliteTranslator{&compiler.BaseTranslator{
			Dialect:    "sqlite",
			OpenQuote:  `"`,
			CloseQuote: `"`,
		}},
		mapper: &sqliteMapper{&typemap.Base{Casts: map[types.Type]bool{}, Mappings: sqliteMappings}},
	}
}

func (d *SQLiteDialect) Name() string                    { return "sqlite" }
func (d *SQLiteDialect) Translator() compiler.Translator { return d.translator }
func (d *SQLiteDialect) Emitter() compiler.Emitter       { return compiler.BaseEmitter{} }
func (d *SQLiteDialect) TypeMapper() typemap.Mapper      { return d.mapper }
func (d *SQLiteDialect) QuoteString(s string) string     { return d.translator.QuoteString(s) }

func (d *SQLiteDialect) DecodeType(c extract.ColumnType) types.TypeInfo {
	return sqliteTypes.Decode(c)
}

// Features reports SQLite capabilities. There is no row locking and no
// full-text search without a virtual table.
func (d *SQLiteDialect) Features() compiler.Features {
	return compiler.Features{
		Intersect: true,
		Except:    true,
	}
}

// AllSchemas matches the main database, the only one extracted.
func (d *SQLiteDialect) AllSchemas() string {
	return "= 'main'"
}

func (d *SQLiteDialect) Query(stage extract.Stage) (string, bool) {
	q, ok := sqliteQueries[stage]
	return q, ok
}

type sqliteTranslator struct {
	*compiler.BaseTranslator
}

// sqliteStamp formats date-times the way SQLite date functions return them.
const sqliteStamp = "'%Y-%m-%d %H:%M:%f'"

func (t *sqliteTranslator) Literal(v any, typ types.Type) (string, error) {
	if v == nil {
		return "NULL", nil
	}
	switch typ {
	case types.Bool:
		b, ok := v.(bool)
		if !ok {
			return "", types.ErrConversion.New(v, typ)
		}
		if b {
			return "1", nil
		}
		return "0", nil
	case types.DateTime, types.DateTimeOffset, types.Date, types.Time:
		s, err := sqliteTemporal(typ, v)
		if err != nil {
			return "", err
		}
		return t.QuoteString(s.(string)), nil
	}
	return t.BaseTranslator.Literal(v, typ)
}

func (t *sqliteTranslator) Binary(op expr.BinaryOp, left, right string) (string, error) {
	if op == expr.BitXor {
		return "((" + left + " | " + right + ") - (" + left + " & " + right + "))", nil
	}
	return t.BaseTranslator.Binary(op, left, right)
}

func (t *sqliteTranslator) Function(fn expr.Function, args []string) (string, error) {
	switch fn {
	case expr.Ceiling:
		return "(CAST(" + args[0] + " AS INTEGER) + (" + args[0] + " > CAST(" + args[0] + " AS INTEGER)))", nil
	case expr.Floor:
		return "(CAST(" + args[0] + " AS INTEGER) - (" + args[0] + " < CAST(" + args[0] + " AS INTEGER)))", nil
	case expr.Substring:
		return "SUBSTR(" + join(args) + ")", nil
	case expr.Position:
		return "INSTR(" + args[1] + ", " + args[0] + ")", nil
	case expr.Length:
		return "LENGTH(" + args[0] + ")", nil
	case expr.Lpad, expr.Rpad:
		return "", types.ErrNotSupported.New("function "+fn.String(), t.Dialect)
	case expr.RandomValue:
		return "((RANDOM() & 9007199254740991) / 9007199254740992.0)", nil
	case expr.CurrentDate:
		return "DATE('now')", nil
	case expr.CurrentTimestamp:
		return "STRFTIME(" + sqliteStamp + ", 'now')", nil
	case expr.AddYears:
		return shift(args, "' years'"), nil
	case expr.AddMonths:
		return shift(args, "' months'"), nil
	case expr.AddDays:
		return shift(args, "' days'"), nil
	case expr.AddMicroseconds:
		return "STRFTIME(" + sqliteStamp + ", " + args[0] + ", ((" + args[1] + ") / 1000000.0) || ' seconds')", nil
	case expr.DiffDays:
		return "CAST(JULIANDAY(DATE(" + args[0] + ")) - JULIANDAY(DATE(" + args[1] + ")) AS INTEGER)", nil
	case expr.DiffMicroseconds:
		return "CAST(ROUND((JULIANDAY(" + args[1] + ") - JULIANDAY(" + args[0] + ")) * 86400000000) AS INTEGER)", nil
	case expr.SecondsOfDay:
		return "CAST(STRFTIME('%s', '1970-01-01 ' || TIME(" + args[0] + ")) AS INTEGER)", nil
	case expr.SecondsToTime:
		return "TIME(" + args[0] + ", 'unixepoch')", nil
	case expr.TruncToInt:
		return "CAST(" + args[0] + " AS INTEGER)", nil
	case expr.DateOf:
		return "DATE(" + args[0] + ")", nil
	}
	return t.BaseTranslator.Function(fn, args)
}

func shift(args []string, unit string) string {
	return "STRFTIME(" + sqliteStamp + ", " + args[0] + ", (" + args[1] + ") || " + unit + ")"
}

var sqliteParts = map[expr.DatePart]string{
	expr.Year:        "CAST(STRFTIME('%%Y', %s) AS INTEGER)",
	expr.Month:       "CAST(STRFTIME('%%m', %s) AS INTEGER)",
	expr.Day:         "CAST(STRFTIME('%%d', %s) AS INTEGER)",
	expr.Hour:        "CAST(STRFTIME('%%H', %s) AS INTEGER)",
	expr.Minute:      "CAST(STRFTIME('%%M', %s) AS INTEGER)",
	expr.Second:      "CAST(STRFTIME('%%S', %s) AS INTEGER)",
	expr.Millisecond: "(CAST(STRFTIME('%%f', %s) * 1000 AS INTEGER) %% 1000)",
	expr.DayOfWeek:   "CAST(STRFTIME('%%w', %s) AS INTEGER)",
	expr.DayOfYear:   "CAST(STRFTIME('%%j', %s) AS INTEGER)",
}

func (t *sqliteTranslator) Extract(part expr.DatePart, operand string) (string, error) {
	if f, ok := sqliteParts[part]; ok {
		return fmt.Sprintf(f, operand), nil
	}
	return t.BaseTranslator.Extract(part, operand)
}

func (t *sqliteTranslator) Cast(operand string, typ types.Type) (string, error) {
	switch {
	case typ == types.DateTime || typ == types.DateTimeOffset:
		return "STRFTIME(" + sqliteStamp + ", " + operand + ")", nil
	case typ == types.Date:
		return "DATE(" + operand + ")", nil
	case typ == types.Time:
		return "TIME(" + operand + ")", nil
	case typ == types.Bool || typ == types.Interval || typ.IsInteger() && typ != types.UInt64:
		return "CAST(" + operand + " AS INTEGER)", nil
	case typ == types.UInt64 || typ == types.Decimal:
		return "CAST(" + operand + " AS NUMERIC)", nil
	case typ.IsFloat():
		return "CAST(" + operand + " AS REAL)", nil
	case typ == types.String || typ == types.Char || typ == types.GUID:
		return "CAST(" + operand + " AS TEXT)", nil
	case typ == types.Bytes:
		return "CAST(" + operand + " AS BLOB)", nil
	}
	return "", types.ErrNotSupported.New("cast to "+typ.String(), t.Dialect)
}

func (t *sqliteTranslator) LimitOffset(limit, offset string) string {
	if limit == "" && offset != "" {
		limit = "-1"
	}
	return t.BaseTranslator.LimitOffset(limit, offset)
}

func (t *sqliteTranslator) Lock(sqldom.Lock) (string, error) {
	return "", types.ErrNotSupported.New("row lock", t.Dialect)
}

// IndexHint forces the single named index. SQLite accepts no index lists.
func (t *sqliteTranslator) IndexHint(indexes []string) string {
	if len(indexes) != 1 {
		return ""
	}
	return "INDEXED BY " + t.QuoteIdentifier(indexes[0])
}

type sqliteMapper struct {
	*typemap.Base
}

func (m *sqliteMapper) Bind(t types.Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case types.Bool:
		b, err := m.Base.Bind(t, v)
		if err != nil {
			return nil, err
		}
		if b.(bool) {
			return int64(1), nil
		}
		return int64(0), nil
	case types.DateTime, types.DateTimeOffset, types.Date, types.Time:
		return sqliteTemporal(t, v)
	}
	return m.Base.Bind(t, v)
}

// sqliteTemporal formats a temporal value as the text SQLite compares.
func sqliteTemporal(t types.Type, v any) (any, error) {
	if t == types.Time {
		d, err := typemap.TimeOfDay(v)
		if err != nil {
			return nil, err
		}
		return typemap.FormatTimeOfDay(d), nil
	}
	ts, err := typemap.ToTime(v)
	if err != nil {
		return nil, err
	}
	switch t {
	case types.Date:
		return ts.Format(compiler.DateLayout), nil
	case types.DateTimeOffset:
		ts = ts.UTC()
	}
	return ts.Format(sqliteLayout), nil
}

// sqliteLayout matches the output of STRFTIME with %f, so stored values and
// computed ones compare as text. SQLite date functions keep milliseconds only.
const sqliteLayout = "2006-01-02 15:04:05.000"

func (m *sqliteMapper) Read(t types.Type, raw any) (any, error) {
	v, err := m.Base.Read(t, raw)
	if err != nil || t != types.DateTimeOffset || v == nil {
		return v, err
	}
	return v.(time.Time).UTC(), nil
}

var sqliteMappings = map[types.Type]typemap.Mapping{
	types.Bool:           {Column: types.NewTypeInfo(types.SQLInteger), Param: typemap.DBBoolean},
	types.Int8:           {Column: types.NewTypeInfo(types.SQLInteger), Param: typemap.DBSByte},
	types.UInt8:          {Column: types.NewTypeInfo(types.SQLInteger), Param: typemap.DBByte},
	types.Int16:          {Column: types.NewTypeInfo(types.SQLInteger), Param: typemap.DBInt16},
	types.UInt16:         {Column: types.NewTypeInfo(types.SQLInteger), Param: typemap.DBUInt16},
	types.Int32:          {Column: types.NewTypeInfo(types.SQLInteger), Param: typemap.DBInt32},
	types.UInt32:         {Column: types.NewTypeInfo(types.SQLInteger), Param: typemap.DBUInt32},
	types.Int64:          {Column: types.NewTypeInfo(types.SQLInteger), Param: typemap.DBInt64},
	types.String:         {Column: types.NewTypeInfo(types.SQLText), Param: typemap.DBString},
	types.Bytes:          {Column: types.NewTypeInfo(types.SQLBlob), Param: typemap.DBBinary},
	types.GUID:           {Column: types.NewTypeInfo(types.SQLText), Param: typemap.DBGuid},
	types.DateTime:       {Column: types.NewTypeInfo(types.SQLText), Param: typemap.DBDateTime},
	types.DateTimeOffset: {Column: types.NewTypeInfo(types.SQLText), Param: typemap.DBDateTimeOffset},
	types.Date:           {Column: types.NewTypeInfo(types.SQLText), Param: typemap.DBDate},
	types.Time:           {Column: types.NewTypeInfo(types.SQLText), Param: typemap.DBTime},
	types.Interval:       {Column: types.NewTypeInfo(types.SQLInteger), Param: typemap.DBInt64},
}

var sqliteTypes = &extract.TypeDecoder{
	Names: map[string]types.SQLType{
		"boolean":   types.SQLBoolean,
		"bool":      types.SQLBoolean,
		"tinyint":   types.SQLTinyInt,
		"smallint":  types.SQLSmallInt,
		"int":       types.SQLInteger,
		"integer":   types.SQLInteger,
		"bigint":    types.SQLBigInt,
		"numeric":   types.SQLDecimal,
		"decimal":   types.SQLDecimal,
		"real":      types.SQLDouble,
		"double":    types.SQLDouble,
		"float":     types.SQLFloat,
		"char":      types.SQLChar,
		"varchar":   types.SQLVarChar,
		"text":      types.SQLText,
		"clob":      types.SQLText,
		"blob":      types.SQLBlob,
		"date":      types.SQLDate,
		"time":      types.SQLTime,
		"datetime":  types.SQLDateTime,
		"timestamp": types.SQLDateTime,
		"json":      types.SQLJSON,
	},
}

const sqliteColumns = `SELECT 'main', m.name, p.cid + 1, p.name, p.type, NULL, NULL, NULL,
  CASE p."notnull" WHEN 0 THEN 'YES' ELSE 'NO' END%s
FROM sqlite_master m
JOIN pragma_table_info(m.name) p
WHERE m.type = '%s' AND m.name NOT LIKE 'sqlite_%%' AND 'main' {SCHEMA_FILTER} AND m.name {TABLE_FILTER}
ORDER BY m.name, p.cid`

var sqliteQueries = map[extract.Stage]string{
	extract.StageTables: `SELECT 'main', name
FROM sqlite_master
WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND 'main' {SCHEMA_FILTER} AND name {TABLE_FILTER}
ORDER BY name`,

	extract.StageColumns: fmt.Sprintf(sqliteColumns, ", p.dflt_value, NULL", "table"),

	extract.StageViews: `SELECT 'main', name, sql, NULL
FROM sqlite_master
WHERE type = 'view' AND 'main' {SCHEMA_FILTER} AND name {TABLE_FILTER}
ORDER BY name`,

	extract.StageViewColumns: fmt.Sprintf(sqliteColumns, "", "view"),

	extract.StageIndexes: `SELECT 'main', m.name, il.name, x.seqno + 1, x.name,
  CASE il."unique" WHEN 1 THEN 'YES' ELSE 'NO' END,
  CASE x."desc" WHEN 1 THEN 'DESC' ELSE 'ASC' END,
  'BTREE', NULL
FROM sqlite_master m
JOIN pragma_index_list(m.name) il
JOIN pragma_index_xinfo(il.name) x
WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%' AND il.origin = 'c' AND x."key" = 1 AND x.cid >= 0
  AND 'main' {SCHEMA_FILTER} AND m.name {TABLE_FILTER}
ORDER BY m.name, il.name, x.seqno`,

	extract.StageForeignKeys: `SELECT 'main', m.name, 'fk_' || m.name || '_' || f.id, f.seq + 1, f."from", 'main', f."table",
  COALESCE(f."to", (SELECT p.name FROM pragma_table_info(f."table") p WHERE p.pk = f.seq + 1)),
  f.on_update, f.on_delete
FROM sqlite_master m
JOIN pragma_foreign_key_list(m.name) f
WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%' AND 'main' {SCHEMA_FILTER} AND m.name {TABLE_FILTER}
ORDER BY m.name, f.id, f.seq`,

	extract.StageUniqueConstraints: `SELECT 'main', m.name, 'pk_' || m.name, 'PRIMARY KEY', p.pk, p.name
FROM sqlite_master m
JOIN pragma_table_info(m.name) p
WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%' AND p.pk > 0 AND 'main' {SCHEMA_FILTER} AND m.name {TABLE_FILTER}
UNION ALL
SELECT 'main', m.name, il.name, 'UNIQUE', i.seqno + 1, i.name
FROM sqlite_master m
JOIN pragma_index_list(m.name) il
JOIN pragma_index_info(il.name) i
WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%' AND il.origin = 'u' AND 'main' {SCHEMA_FILTER} AND m.name {TABLE_FILTER}
ORDER BY 2, 3, 5`,
}

func init() {
	d := NewSQLite()
	RegisterDialect("sqlite", d)
	RegisterDialect("sqlite3", d)
}
