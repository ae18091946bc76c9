package dialects

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/coregx/rse/internal/compiler"
	"github.com/coregx/rse/internal/expr"
	"github.com/coregx/rse/internal/extract"
	"github.com/coregx/rse/internal/header"
	"github.com/coregx/rse/internal/provider"
	"github.com/coregx/rse/internal/schema"
	"github.com/coregx/rse/internal/types"
)

const sqliteFixture = `
CREATE TABLE users (
	id INTEGER PRIMARY KEY,
	email VARCHAR(120) NOT NULL UNIQUE,
	score NUMERIC(10,2) DEFAULT 0
);
CREATE INDEX ix_users_score ON users (score DESC, email);
CREATE TABLE orders (
	id INTEGER PRIMARY KEY,
	user_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	note TEXT
);
CREATE VIEW big_orders AS SELECT id, note FROM orders WHERE id > 10;
INSERT INTO users (id, email, score) VALUES (1, 'a@example.com', 1.5), (2, 'b@example.com', 7), (3, 'c@example.com', 3);
`

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(sqliteFixture)
	require.NoError(t, err)
	return db
}

func TestSQLite_Extract(t *testing.T) {
	db := openSQLite(t)

	cat, err := extract.New(db, NewSQLite()).Extract(context.Background(), "test")
	require.NoError(t, err)

	s, ok := cat.Schema("main")
	require.True(t, ok)
	assert.Len(t, s.Tables(), 2)

	users, ok := s.Table("users")
	require.True(t, ok)
	require.Len(t, users.Columns(), 3)

	email, ok := users.Column("email")
	require.True(t, ok)
	assert.Equal(t, "VARCHAR(120)", email.Type().String())
	assert.False(t, email.Nullable())
	assert.Equal(t, 2, email.Ordinal())

	score, ok := users.Column("score")
	require.True(t, ok)
	assert.Equal(t, "DECIMAL(10,2)", score.Type().String())
	assert.Equal(t, "0", score.Default())

	pk, ok := users.PrimaryKey()
	require.True(t, ok)
	assert.Equal(t, "pk_users", pk.Name())
	assert.Equal(t, []string{"id"}, names(pk.Columns()))

	var unique []schema.Constraint
	for _, k := range users.Constraints() {
		if k.Kind() == schema.KindUnique {
			unique = append(unique, k)
		}
	}
	require.Len(t, unique, 1)
	assert.Equal(t, "sqlite_autoindex_users_1", unique[0].Name())
	assert.Equal(t, []string{"email"}, names(unique[0].Columns()))

	require.Len(t, users.Indexes(), 1)
	ix := users.Indexes()[0]
	assert.Equal(t, "ix_users_score", ix.Name())
	assert.False(t, ix.Unique())
	assert.Equal(t, schema.IndexBTree, ix.IndexKind())
	require.Len(t, ix.Columns(), 2)
	assert.Equal(t, "score", ix.Columns()[0].Column().Name())
	assert.False(t, ix.Columns()[0].Ascending())
	assert.Equal(t, "email", ix.Columns()[1].Column().Name())
	assert.True(t, ix.Columns()[1].Ascending())

	orders, ok := s.Table("orders")
	require.True(t, ok)
	fks := orders.ForeignKeys()
	require.Len(t, fks, 1)
	assert.Equal(t, "fk_orders_0", fks[0].Name())
	assert.Equal(t, []string{"user_id"}, names(fks[0].Columns()))
	ref, ok := fks[0].ReferencedTable()
	require.True(t, ok)
	assert.Equal(t, "users", ref.Name())
	assert.Equal(t, []string{"id"}, names(fks[0].ReferencedColumns()))
	assert.Equal(t, schema.Cascade, fks[0].Rules().OnDelete)
	assert.Equal(t, schema.NoAction, fks[0].Rules().OnUpdate)

	view, ok := s.View("big_orders")
	require.True(t, ok)
	assert.Contains(t, view.Definition(), "SELECT id, note FROM orders")
	assert.Equal(t, []string{"id", "note"}, names(view.Columns()))
}

func TestSQLite_ExtractTableFilter(t *testing.T) {
	db := openSQLite(t)

	cat, err := extract.New(db, NewSQLite(), extract.WithTables("users")).Extract(context.Background(), "test", "main")
	require.NoError(t, err)

	s, ok := cat.Schema("main")
	require.True(t, ok)
	assert.Equal(t, []string{"users"}, names(s.Tables()))
	assert.Empty(t, s.Views())
}

func TestSQLite_CompiledQueryRuns(t *testing.T) {
	db := openSQLite(t)

	ref := provider.TableRef{
		Name: "users",
		Columns: []provider.TableColumn{
			{Name: "id", Type: types.Int64},
			{Name: "email", Type: types.String},
		},
		Key: []int{0},
	}
	chain := provider.FromTable(ref).
		Filter(expr.Binary{
			Op:    expr.Greater,
			Left:  expr.Column{Index: 0, T: types.Int64},
			Right: expr.Param{Name: "min", T: types.Int64, Value: expr.FromContext("min")},
		}).
		OrderBy(header.Order{{Index: 0, Direction: header.Descending}}).
		Take(provider.LateBound("n", expr.FromContext("n")))

	cmd := compile(t, NewSQLite(), chain)
	args, err := cmd.Args(expr.NewParameterContext(map[string]any{"min": int64(1), "n": int64(1)}))
	require.NoError(t, err)

	rows, err := db.Query(cmd.SQL, compiler.Values(args)...)
	require.NoError(t, err)
	defer rows.Close()

	var got [][]any
	for rows.Next() {
		raw := make([]any, 2)
		require.NoError(t, rows.Scan(&raw[0], &raw[1]))
		row, err := cmd.Read(raw)
		require.NoError(t, err)
		got = append(got, row)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, [][]any{{int64(3), "c@example.com"}}, got)
}

func TestSQLite_RowNumberStartsAtOneAfterSkip(t *testing.T) {
	db := openSQLite(t)

	ref := provider.TableRef{
		Name:    "users",
		Columns: []provider.TableColumn{{Name: "id", Type: types.Int64}},
		Key:     []int{0},
	}
	cmd := compile(t, NewSQLite(), provider.FromTable(ref).OrderBy(header.Asc(0)).Skip(provider.Literal(1)).RowNumber("rn"))

	rows, err := db.Query(cmd.SQL)
	require.NoError(t, err)
	defer rows.Close()

	var got [][]any
	for rows.Next() {
		raw := make([]any, 2)
		require.NoError(t, rows.Scan(&raw[0], &raw[1]))
		row, err := cmd.Read(raw)
		require.NoError(t, err)
		got = append(got, row)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, [][]any{{int64(2), int64(1)}, {int64(3), int64(2)}}, got)
}

func TestSQLite_TemporalLiteralsCompareAsText(t *testing.T) {
	db := openSQLite(t)

	when := time.Date(2024, 2, 29, 13, 45, 10, 123000000, time.UTC)
	lit, err := NewSQLite().Translator().Literal(when, types.DateTime)
	require.NoError(t, err)
	assert.Equal(t, "'2024-02-29 13:45:10.123'", lit)

	var shifted string
	require.NoError(t, db.QueryRow("SELECT STRFTIME("+sqliteStamp+", "+lit+", '1 days')").Scan(&shifted))
	assert.Equal(t, "2024-03-01 13:45:10.123", shifted)

	bound, err := NewSQLite().TypeMapper().Bind(types.DateTime, when)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29 13:45:10.123", bound)
}

func TestSQLite_Emission(t *testing.T) {
	ix, err := provider.NewIndex(usersRef, "ix_users_age", header.Order{{Index: 2, Direction: header.Ascending}})
	require.NoError(t, err)
	cmd, err := compiler.New(NewSQLite()).Compile(ix)
	require.NoError(t, err)
	assert.Contains(t, cmd.SQL, `FROM "app"."users" AS "a0" INDEXED BY "ix_users_age"`)

	skipped := compile(t, NewSQLite(), provider.FromTable(usersRef).Skip(provider.Literal(5)))
	assert.Contains(t, skipped.SQL, "LIMIT -1 OFFSET 5")

	name := expr.Column{Index: 1, T: types.String}
	flags := compile(t, NewSQLite(), provider.FromTable(usersRef).Calculate(
		calc("yes", expr.Lit(true, types.Bool)),
		calc("pos", expr.Fn(expr.Position, expr.Lit("b", types.String), name)),
	))
	assert.Contains(t, flags.SQL, `1 AS "yes"`)
	assert.Contains(t, flags.SQL, `INSTR("a0"."name", 'b') AS "pos"`)

	b, err := NewSQLite().TypeMapper().Bind(types.Bool, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), b)
}

func names[T interface{ Name() string }](items []T) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name()
	}
	return out
}
