package dialects

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/coregx/rse/internal/compiler"
	"github.com/coregx/rse/internal/expr"
	"github.com/coregx/rse/internal/extract"
	"github.com/coregx/rse/internal/sqldom"
	"github.com/coregx/rse/internal/typemap"
	"github.com/coregx/rse/internal/types"
)

// PostgresDialect implements the PostgreSQL dialect.
type PostgresDialect struct {
	translator *postgresTranslator
	mapper     *typemap.Base
}

// NewPostgres returns the PostgreSQL dialect.
func NewPostgres() *PostgresDialect {
	return &PostgresDialect{
		translator: &postgresTranslator{&compiler.BaseTranslator{
			Dialect:              "postgres",
			OpenQuote:            `"`,
			CloseQuote:           `"`,
			NumberedPlaceholders: true,
		}},
		mapper: &typemap.Base{Mappings: postgresMappings},
	}
}

func (d *PostgresDialect) Name() string                    { return "postgres" }
func (d *PostgresDialect) Translator() compiler.Translator { return d.translator }
func (d *PostgresDialect) Emitter() compiler.Emitter       { return postgresEmitter{} }
func (d *PostgresDialect) TypeMapper() typemap.Mapper      { return d.mapper }
func (d *PostgresDialect) QuoteString(s string) string     { return d.translator.QuoteString(s) }

func (d *PostgresDialect) DecodeType(c extract.ColumnType) types.TypeInfo {
	return postgresTypes.Decode(c)
}

func (d *PostgresDialect) Features() compiler.Features {
	return compiler.Features{
		Intersect:     true,
		Except:        true,
		FullOuterJoin: true,
		LateralJoin:   true,
		FullText:      true,
		RowLocks:      true,
		SkipLocked:    true,
		RowValues:     true,
	}
}

// AllSchemas excludes the system catalogs.
func (d *PostgresDialect) AllSchemas() string {
	return "NOT IN ('pg_catalog', 'information_schema', 'pg_toast')"
}

func (d *PostgresDialect) Query(stage extract.Stage) (string, bool) {
	q, ok := postgresQueries[stage]
	return q, ok
}

type postgresTranslator struct {
	*compiler.BaseTranslator
}

func (t *postgresTranslator) QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(strings.ReplaceAll(name, "\x00", ""))
}

// QuoteString drops NUL bytes, which text values cannot hold.
func (t *postgresTranslator) QuoteString(s string) string {
	return pq.QuoteLiteral(strings.ReplaceAll(s, "\x00", ""))
}

func (t *postgresTranslator) Literal(v any, typ types.Type) (string, error) {
	if v == nil {
		return "NULL", nil
	}
	switch typ {
	case types.String, types.Char:
		if s, ok := v.(string); ok {
			return t.QuoteString(s), nil
		}
	case types.GUID:
		u, err := typemap.ToUUID(v)
		if err != nil {
			return "", err
		}
		return t.QuoteString(u.String()) + "::uuid", nil
	case types.Bytes:
		b, ok := v.([]byte)
		if !ok {
			return "", types.ErrConversion.New(v, typ)
		}
		return `'\x` + hex.EncodeToString(b) + "'::bytea", nil
	}
	return t.BaseTranslator.Literal(v, typ)
}

func (t *postgresTranslator) Function(fn expr.Function, args []string) (string, error) {
	if fn == expr.AddMicroseconds {
		return "(" + args[0] + " + (" + args[1] + ") * INTERVAL '1 microsecond')", nil
	}
	return t.BaseTranslator.Function(fn, args)
}

func (t *postgresTranslator) Lock(lock sqldom.Lock) (string, error) {
	if lock.Mode != sqldom.LockUpdate {
		return t.BaseTranslator.Lock(lock)
	}
	s, err := t.BaseTranslator.Lock(sqldom.Lock{Mode: sqldom.LockExclusive, Behavior: lock.Behavior})
	if err != nil {
		return "", err
	}
	return strings.Replace(s, "FOR UPDATE", "FOR NO KEY UPDATE", 1), nil
}

type postgresEmitter struct {
	compiler.BaseEmitter
}

func (e postgresEmitter) Source(ctx *compiler.EmitContext, s sqldom.TableSource) (string, error) {
	if ft, ok := s.(*sqldom.FullText); ok {
		return fullText(ctx, ft, func(columns []string, criteria string) (string, string) {
			parts := make([]string, len(columns))
			for i, c := range columns {
				parts[i] = "COALESCE(" + c + ", '')"
			}
			doc := "to_tsvector(" + strings.Join(parts, " || ' ' || ") + ")"
			query := "plainto_tsquery(" + criteria + ")"
			return "ts_rank(" + doc + ", " + query + ")", "(" + doc + " @@ " + query + ")"
		})
	}
	return e.BaseEmitter.Source(ctx, s)
}

var postgresMappings = map[types.Type]typemap.Mapping{
	types.Bytes:          {Column: types.TypeInfo{Type: types.SQLBlob, Native: "bytea"}, Param: typemap.DBBinary},
	types.String:         {Column: types.NewTypeInfo(types.SQLText), Param: typemap.DBString},
	types.DateTimeOffset: {Column: types.TypeInfo{Type: types.SQLDateTimeOffset, Native: "timestamptz"}, Param: typemap.DBDateTimeOffset},
}

var postgresTypes = &extract.TypeDecoder{
	Names: map[string]types.SQLType{
		"boolean":                     types.SQLBoolean,
		"bool":                        types.SQLBoolean,
		"smallint":                    types.SQLSmallInt,
		"int2":                        types.SQLSmallInt,
		"integer":                     types.SQLInteger,
		"int4":                        types.SQLInteger,
		"int":                         types.SQLInteger,
		"bigint":                      types.SQLBigInt,
		"int8":                        types.SQLBigInt,
		"numeric":                     types.SQLDecimal,
		"decimal":                     types.SQLDecimal,
		"real":                        types.SQLFloat,
		"float4":                      types.SQLFloat,
		"double precision":            types.SQLDouble,
		"float8":                      types.SQLDouble,
		"character":                   types.SQLChar,
		"char":                        types.SQLChar,
		"bpchar":                      types.SQLChar,
		"character varying":           types.SQLVarChar,
		"varchar":                     types.SQLVarChar,
		"text":                        types.SQLText,
		"bytea":                       types.SQLBlob,
		"date":                        types.SQLDate,
		"time without time zone":      types.SQLTime,
		"time":                        types.SQLTime,
		"timestamp without time zone": types.SQLDateTime,
		"timestamp":                   types.SQLDateTime,
		"timestamp with time zone":    types.SQLDateTimeOffset,
		"timestamptz":                 types.SQLDateTimeOffset,
		"interval":                    types.SQLInterval,
		"uuid":                        types.SQLGUID,
		"json":                        types.SQLJSON,
		"jsonb":                       types.SQLJSON,
		"point":                       types.SQLGeometry,
		"polygon":                     types.SQLGeometry,
	},
}

const postgresColumns = `SELECT c.table_schema, c.table_name,
  row_number() OVER (PARTITION BY c.table_schema, c.table_name ORDER BY c.ordinal_position),
  c.column_name,
  CASE WHEN c.data_type IN ('USER-DEFINED', 'ARRAY') THEN c.udt_name ELSE c.data_type END,
  c.character_maximum_length, c.numeric_precision, c.numeric_scale, c.is_nullable%s
FROM information_schema.columns c
JOIN information_schema.tables t ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE t.table_type = '%s' AND c.table_schema {SCHEMA_FILTER} AND c.table_name {TABLE_FILTER}
ORDER BY c.table_schema, c.table_name, c.ordinal_position`

const postgresRules = `CASE %s WHEN 'a' THEN 'NO ACTION' WHEN 'r' THEN 'RESTRICT' WHEN 'c' THEN 'CASCADE'
    WHEN 'n' THEN 'SET NULL' WHEN 'd' THEN 'SET DEFAULT' END`

var postgresQueries = map[extract.Stage]string{
	extract.StageTables: `SELECT table_schema, table_name
FROM information_schema.tables
WHERE table_type = 'BASE TABLE' AND table_schema {SCHEMA_FILTER} AND table_name {TABLE_FILTER}
ORDER BY table_schema, table_name`,

	extract.StageColumns: fmt.Sprintf(postgresColumns, ", c.column_default, c.collation_name", "BASE TABLE"),

	extract.StageViews: `SELECT table_schema, table_name, view_definition, check_option
FROM information_schema.views
WHERE table_schema {SCHEMA_FILTER} AND table_name {TABLE_FILTER}
ORDER BY table_schema, table_name`,

	extract.StageViewColumns: fmt.Sprintf(postgresColumns, "", "VIEW"),

	extract.StageIndexes: `SELECT n.nspname, t.relname, i.relname, k.ord, a.attname,
  CASE WHEN x.indisunique THEN 'YES' ELSE 'NO' END,
  CASE WHEN x.indoption[k.ord::int - 1] & 1 = 1 THEN 'DESC' ELSE 'ASC' END,
  CASE am.amname WHEN 'gin' THEN 'FULLTEXT' WHEN 'gist' THEN 'SPATIAL' WHEN 'spgist' THEN 'SPATIAL' ELSE upper(am.amname) END,
  pg_get_expr(x.indpred, x.indrelid)
FROM pg_index x
JOIN pg_class t ON t.oid = x.indrelid
JOIN pg_class i ON i.oid = x.indexrelid
JOIN pg_namespace n ON n.oid = t.relnamespace
JOIN pg_am am ON am.oid = i.relam
CROSS JOIN LATERAL unnest(x.indkey) WITH ORDINALITY AS k(attnum, ord)
JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
WHERE n.nspname {SCHEMA_FILTER} AND t.relname {TABLE_FILTER}
ORDER BY n.nspname, t.relname, i.relname, k.ord`,

	extract.StageForeignKeys: `SELECT n.nspname, t.relname, c.conname, k.ord, a.attname, rn.nspname, rt.relname, ra.attname,
  ` + fmt.Sprintf(postgresRules, "c.confupdtype") + `,
  ` + fmt.Sprintf(postgresRules, "c.confdeltype") + `
FROM pg_constraint c
JOIN pg_class t ON t.oid = c.conrelid
JOIN pg_namespace n ON n.oid = t.relnamespace
JOIN pg_class rt ON rt.oid = c.confrelid
JOIN pg_namespace rn ON rn.oid = rt.relnamespace
CROSS JOIN LATERAL unnest(c.conkey, c.confkey) WITH ORDINALITY AS k(attnum, refnum, ord)
JOIN pg_attribute a ON a.attrelid = c.conrelid AND a.attnum = k.attnum
JOIN pg_attribute ra ON ra.attrelid = c.confrelid AND ra.attnum = k.refnum
WHERE c.contype = 'f' AND n.nspname {SCHEMA_FILTER} AND t.relname {TABLE_FILTER}
ORDER BY n.nspname, t.relname, c.conname, k.ord`,

	extract.StageCheckConstraints: `SELECT n.nspname, t.relname, c.conname, pg_get_constraintdef(c.oid)
FROM pg_constraint c
JOIN pg_class t ON t.oid = c.conrelid
JOIN pg_namespace n ON n.oid = t.relnamespace
WHERE c.contype = 'c' AND n.nspname {SCHEMA_FILTER} AND t.relname {TABLE_FILTER}
ORDER BY n.nspname, t.relname, c.conname`,

	extract.StageUniqueConstraints: `SELECT n.nspname, t.relname, c.conname,
  CASE c.contype WHEN 'p' THEN 'PRIMARY KEY' ELSE 'UNIQUE' END, k.ord, a.attname
FROM pg_constraint c
JOIN pg_class t ON t.oid = c.conrelid
JOIN pg_namespace n ON n.oid = t.relnamespace
CROSS JOIN LATERAL unnest(c.conkey) WITH ORDINALITY AS k(attnum, ord)
JOIN pg_attribute a ON a.attrelid = c.conrelid AND a.attnum = k.attnum
WHERE c.contype IN ('p', 'u') AND n.nspname {SCHEMA_FILTER} AND t.relname {TABLE_FILTER}
ORDER BY n.nspname, t.relname, c.conname, k.ord`,

	extract.StageSequences: `SELECT sequence_schema, sequence_name, data_type, start_value, increment,
  minimum_value, maximum_value, cycle_option
FROM information_schema.sequences
WHERE sequence_schema {SCHEMA_FILTER}
ORDER BY sequence_schema, sequence_name`,

	extract.StageDomains: `SELECT n.nspname, t.typname, format_type(t.typbasetype, t.typtypmod), NULL, NULL, NULL, t.typdefault,
  (SELECT string_agg(pg_get_constraintdef(c.oid), ' AND ' ORDER BY c.conname) FROM pg_constraint c WHERE c.contypid = t.oid)
FROM pg_type t
JOIN pg_namespace n ON n.oid = t.typnamespace
WHERE t.typtype = 'd' AND n.nspname {SCHEMA_FILTER}
ORDER BY n.nspname, t.typname`,
}

func init() {
	d := NewPostgres()
	RegisterDialect("postgres", d)
	RegisterDialect("postgresql", d)
}
