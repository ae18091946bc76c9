package dialects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/rse/internal/compiler"
	"github.com/coregx/rse/internal/expr"
	"github.com/coregx/rse/internal/extract"
	"github.com/coregx/rse/internal/provider"
	"github.com/coregx/rse/internal/types"
)

var usersRef = provider.TableRef{
	Schema: "app",
	Name:   "users",
	Columns: []provider.TableColumn{
		{Name: "id", Type: types.Int64},
		{Name: "name", Type: types.String},
		{Name: "age", Type: types.Int32},
	},
	Key: []int{0},
}

var eventsRef = provider.TableRef{
	Name: "events",
	Columns: []provider.TableColumn{
		{Name: "at", Type: types.DateTime},
		{Name: "clock", Type: types.Time},
		{Name: "price", Type: types.Float64},
	},
}

func compile(t *testing.T, d Dialect, c *provider.Chain) *compiler.Command {
	t.Helper()
	p, err := c.Provider()
	require.NoError(t, err)
	cmd, err := compiler.New(d).Compile(p)
	require.NoError(t, err)
	return cmd
}

func compileErr(t *testing.T, d Dialect, c *provider.Chain) error {
	t.Helper()
	p, err := c.Provider()
	require.NoError(t, err)
	_, err = compiler.New(d).Compile(p)
	require.Error(t, err)
	return err
}

func calc(name string, e expr.Expr) provider.CalculatedColumn {
	return provider.CalculatedColumn{Name: name, Expr: e}
}

var (
	at    = expr.Column{Index: 0, T: types.DateTime}
	clock = expr.Column{Index: 1, T: types.Time}
	price = expr.Column{Index: 2, T: types.Float64}
)

func TestLookup(t *testing.T) {
	tests := []struct {
		driver string
		want   string
	}{
		{"mysql", "mysql"},
		{"postgres", "postgres"},
		{"postgresql", "postgres"},
		{"sqlite", "sqlite"},
		{"sqlite3", "sqlite"},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := Lookup(tt.driver)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name())
			assert.Same(t, d, GetDialect(tt.driver))
		})
	}

	_, err := Lookup("oracle")
	assert.ErrorIs(t, err, ErrUnknownDialect)
	assert.PanicsWithValue(t, "unsupported dialect: oracle", func() { GetDialect("oracle") })
	assert.Subset(t, Names(), []string{"mysql", "postgres", "postgresql", "sqlite", "sqlite3"})
}

func TestDialects_Substitutable(t *testing.T) {
	chain := provider.FromTable(usersRef).
		Filter(expr.Binary{Op: expr.Greater, Left: expr.Column{Index: 2, T: types.Int32}, Right: expr.Lit(int32(30), types.Int32)}).
		Take(provider.LateBound("n", expr.FromContext("n")))

	tests := []struct {
		dialect Dialect
		want    string
	}{
		{
			NewMySQL(),
			"SELECT `a0`.`id` AS `id`, `a0`.`name` AS `name`, `a0`.`age` AS `age` FROM `app`.`users` AS `a0` WHERE (`a0`.`age` > 30) LIMIT ?",
		},
		{
			NewPostgres(),
			`SELECT "a0"."id" AS "id", "a0"."name" AS "name", "a0"."age" AS "age" FROM "app"."users" AS "a0" WHERE ("a0"."age" > 30) LIMIT $1`,
		},
		{
			NewSQLite(),
			`SELECT "a0"."id" AS "id", "a0"."name" AS "name", "a0"."age" AS "age" FROM "app"."users" AS "a0" WHERE ("a0"."age" > 30) LIMIT ?`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.dialect.Name(), func(t *testing.T) {
			cmd := compile(t, tt.dialect, chain)
			assert.Equal(t, tt.want, cmd.SQL)
			require.Len(t, cmd.Params, 1)
			assert.Equal(t, "n", cmd.Params[0].Name)
		})
	}
}

func TestDialects_UnsupportedConstructs(t *testing.T) {
	ids, err := provider.FromTable(usersRef).Select(0).Provider()
	require.NoError(t, err)
	other, err := provider.FromTable(usersRef).Alias("o").Provider()
	require.NoError(t, err)
	name := expr.Column{Index: 1, T: types.String}
	fullOuter := provider.FromTable(usersRef).Alias("u").JoinOn(other, provider.FullOuterJoin, expr.Lit(true, types.Bool))

	tests := []struct {
		name    string
		dialect Dialect
		chain   *provider.Chain
	}{
		{"mysql intersect", NewMySQL(), provider.FromTable(usersRef).Select(0).Intersect(ids)},
		{"mysql except", NewMySQL(), provider.FromTable(usersRef).Select(0).Except(ids)},
		{"mysql full outer join", NewMySQL(), fullOuter},
		{"sqlite lock", NewSQLite(), provider.FromTable(usersRef).Lock(provider.LockExclusive, provider.LockWait)},
		{"sqlite pad", NewSQLite(), provider.FromTable(usersRef).Calculate(calc("p", expr.Fn(expr.PadLeft, name, expr.Lit(int32(8), types.Int32))))},
		{"sqlite full outer join", NewSQLite(), fullOuter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := compileErr(t, tt.dialect, tt.chain)
			assert.True(t, types.ErrNotSupported.Is(err), err.Error())
			assert.Contains(t, err.Error(), tt.dialect.Name())
		})
	}

	ft, err := provider.NewFreeText(usersRef, []int{1}, expr.Lit("bob", types.String), "")
	require.NoError(t, err)
	_, err = compiler.New(NewSQLite()).Compile(ft)
	assert.True(t, types.ErrNotSupported.Is(err))
}

func TestDialects_Templates(t *testing.T) {
	for _, name := range []string{"mysql", "postgres", "sqlite"} {
		d := GetDialect(name)
		t.Run(name, func(t *testing.T) {
			ex := extract.New(nil, d)
			for _, stage := range extract.Stages {
				tmpl, ok := d.Query(stage)
				if !ok {
					continue
				}
				assert.Contains(t, tmpl, extract.SchemaFilter, stage.String())
				q, _ := ex.Render(stage, nil)
				assert.Contains(t, q, d.AllSchemas(), stage.String())
				assert.NotContains(t, q, "{", stage.String())
			}
			_, ok := d.Query(extract.StageTables)
			assert.True(t, ok)
		})
	}
}

func TestDialects_QuoteString(t *testing.T) {
	tests := []struct {
		dialect Dialect
		in      string
		want    string
	}{
		{NewMySQL(), `it's a\b`, `'it''s a\\b'`},
		{NewPostgres(), `it's`, `'it''s'`},
		{NewPostgres(), `a\b`, ` E'a\\b'`},
		{NewSQLite(), "it's a\\b\x00", `'it''s a\b'`},
	}
	for _, tt := range tests {
		t.Run(tt.dialect.Name()+" "+tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dialect.QuoteString(tt.in))
		})
	}
}

func TestDialects_DecodeType(t *testing.T) {
	tests := []struct {
		dialect Dialect
		in      extract.ColumnType
		want    string
	}{
		{NewMySQL(), extract.ColumnType{Native: "tinyint(1)"}, "BOOLEAN"},
		{NewMySQL(), extract.ColumnType{Native: "int unsigned"}, "INTEGER UNSIGNED"},
		{NewMySQL(), extract.ColumnType{Native: "varchar(40)", Length: 40}, "VARCHAR(40)"},
		{NewMySQL(), extract.ColumnType{Native: "longtext", Length: 4294967295}, "TEXT"},
		{NewPostgres(), extract.ColumnType{Native: "character varying", Length: 20}, "VARCHAR(20)"},
		{NewPostgres(), extract.ColumnType{Native: "numeric(12,2)"}, "DECIMAL(12,2)"},
		{NewPostgres(), extract.ColumnType{Native: "timestamp with time zone"}, "DATETIMEOFFSET"},
		{NewPostgres(), extract.ColumnType{Native: "citext"}, "citext"},
		{NewSQLite(), extract.ColumnType{Native: "VARCHAR(120)"}, "VARCHAR(120)"},
		{NewSQLite(), extract.ColumnType{Native: "INTEGER"}, "INTEGER"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect.Name()+" "+tt.in.Native, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dialect.DecodeType(tt.in).String())
		})
	}
}

func TestDialects_IntervalArithmeticIsSpelledNatively(t *testing.T) {
	chain := provider.FromTable(eventsRef).Calculate(calc("later",
		expr.Fn(expr.DateTimeAddInterval, at, expr.Lit(int64(90*types.NanosecondsPerMinute), types.Interval))))

	tests := []struct {
		dialect Dialect
		want    []string
	}{
		{NewMySQL(), []string{"DATE_ADD(DATE_ADD(`a0`.`at`, INTERVAL (", ") DAY), INTERVAL (", ") MICROSECOND) AS `later`", " DIV 86400000000000)"}},
		{NewPostgres(), []string{`(("a0"."at" + (`, `) * INTERVAL '1' DAY) + (`, `) * INTERVAL '1 microsecond') AS "later"`}},
		{NewSQLite(), []string{`STRFTIME('%Y-%m-%d %H:%M:%f', STRFTIME('%Y-%m-%d %H:%M:%f', "a0"."at", (`, `) || ' days'), ((`, `) / 1000000.0) || ' seconds') AS "later"`}},
	}
	for _, tt := range tests {
		t.Run(tt.dialect.Name(), func(t *testing.T) {
			sql := compile(t, tt.dialect, chain).SQL
			for _, frag := range tt.want {
				assert.Contains(t, sql, frag)
			}
		})
	}
}
