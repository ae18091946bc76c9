package analyzer

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/coregx/rse/internal/types"
)

const mysqlJoinPlan = `{
  "query_block": {
    "select_id": 1,
    "cost_info": {"query_cost": "12.50"},
    "ordering_operation": {
      "using_filesort": true,
      "nested_loop": [
        {"table": {"table_name": "a0", "access_type": "ALL", "rows_examined_per_scan": 100}},
        {"table": {"table_name": "a1", "access_type": "ref", "key": "ix_orders_user", "rows_examined_per_scan": 3}}
      ]
    }
  }
}`

const mysqlTreePlan = `-> Filter: (a0.age > 30)  (cost=0.35..10.25 rows=33) (actual time=0.041..0.512 rows=12 loops=1)
    -> Index range scan on a0 using ix_users_age over (30 < age)  (cost=10.25 rows=33) (actual time=0.039..0.498 rows=12 loops=1)
        -> Table scan on a1  (cost=1.00 rows=8)`

const postgresPlan = `[{
  "Plan": {
    "Node Type": "Hash Join", "Total Cost": 41.5, "Plan Rows": 120,
    "Actual Rows": 40, "Actual Loops": 1,
    "Plans": [
      {"Node Type": "Seq Scan", "Relation Name": "orders", "Total Cost": 20.0, "Plan Rows": 900},
      {"Node Type": "Hash", "Plans": [
        {"Node Type": "Bitmap Index Scan", "Index Name": "ix_users_age", "Total Cost": 4.2, "Plan Rows": 40}
      ]}
    ]
  },
  "Planning Time": 0.2,
  "Execution Time": 1.5
}]`

func TestFor(t *testing.T) {
	for _, name := range []string{"mysql", "postgres", "postgresql", "sqlite", "sqlite3"} {
		e, err := For(name)
		require.NoError(t, err, name)
		assert.NotNil(t, e)
	}

	_, err := For("oracle")
	require.Error(t, err)
	assert.True(t, types.ErrNotSupported.Is(err))
}

func TestParseMySQLJSON(t *testing.T) {
	plan, err := parseMySQLJSON(mysqlJoinPlan)
	require.NoError(t, err)
	assert.Equal(t, 12.5, plan.Cost)
	assert.Equal(t, int64(103), plan.EstimatedRows)
	assert.Equal(t, []string{"ix_orders_user"}, plan.Indexes)
	assert.Equal(t, []string{"a0"}, plan.FullScans)
	assert.True(t, plan.UsesIndex())
	assert.True(t, plan.FullScan())

	_, err = parseMySQLJSON("{not json")
	assert.Error(t, err)
}

func TestParseMySQLJSON_DerivedTable(t *testing.T) {
	plan, err := parseMySQLJSON(`{"query_block": {"cost_info": {"query_cost": 3.1}, "table": {
		"table_name": "a1", "access_type": "ALL", "rows_examined_per_scan": 2,
		"materialized_from_subquery": {"query_block": {"table": {"table_name": "a0", "access_type": "range", "key": "PRIMARY", "rows_examined_per_scan": 2}}}
	}}}`)
	require.NoError(t, err)
	assert.Equal(t, 3.1, plan.Cost)
	assert.Equal(t, []string{"PRIMARY"}, plan.Indexes)
	assert.Equal(t, []string{"a1"}, plan.FullScans)
}

func TestParseMySQLTree(t *testing.T) {
	plan := parseMySQLTree(mysqlTreePlan)
	assert.Equal(t, 0.35, plan.Cost)
	assert.Equal(t, int64(33), plan.EstimatedRows)
	assert.Equal(t, int64(12), plan.ActualRows)
	assert.Equal(t, 512*time.Microsecond, plan.ActualTime)
	assert.Equal(t, []string{"ix_users_age"}, plan.Indexes)
	assert.Equal(t, []string{"a1"}, plan.FullScans)
}

func TestParsePostgresJSON(t *testing.T) {
	plan, err := parsePostgresJSON(postgresPlan)
	require.NoError(t, err)
	assert.Equal(t, 41.5, plan.Cost)
	assert.Equal(t, int64(120), plan.EstimatedRows)
	assert.Equal(t, int64(40), plan.ActualRows)
	assert.Equal(t, 1500*time.Microsecond, plan.ActualTime)
	assert.Equal(t, []string{"ix_users_age"}, plan.Indexes)
	assert.Equal(t, []string{"orders"}, plan.FullScans)

	_, err = parsePostgresJSON("[]")
	assert.Error(t, err)
}

func TestParseSQLitePlan(t *testing.T) {
	tests := []struct {
		name      string
		lines     []string
		indexes   []string
		fullScans []string
	}{
		{name: "full scan", lines: []string{"SCAN users"}, fullScans: []string{"users"}},
		{name: "legacy full scan", lines: []string{"SCAN TABLE users AS a0"}, fullScans: []string{"users"}},
		{name: "index search", lines: []string{"SEARCH a0 USING INDEX ix_email (email=?)"}, indexes: []string{"ix_email"}},
		{name: "covering index", lines: []string{"SCAN a0 USING COVERING INDEX ix_score"}, indexes: []string{"ix_score"}},
		{name: "rowid", lines: []string{"SEARCH a0 USING INTEGER PRIMARY KEY (rowid=?)"}, indexes: []string{"PRIMARY KEY"}},
		{name: "automatic", lines: []string{"SEARCH a1 USING AUTOMATIC COVERING INDEX (user_id=?)"}, indexes: []string{"AUTOMATIC INDEX"}},
		{name: "temp b-tree is not a scan", lines: []string{"USE TEMP B-TREE FOR ORDER BY"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := parseSQLitePlan(tt.lines)
			assert.Equal(t, tt.indexes, plan.Indexes)
			assert.Equal(t, tt.fullScans, plan.FullScans)
		})
	}
}

func TestMySQLExplainer_Runs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	query := "SELECT `a0`.`id` AS `id` FROM `users` AS `a0` WHERE (`a0`.`age` > ?)"
	mock.ExpectQuery(regexp.QuoteMeta("EXPLAIN FORMAT=JSON "+query)).
		WithArgs(int64(30)).
		WillReturnRows(sqlmock.NewRows([]string{"EXPLAIN"}).AddRow(mysqlJoinPlan))
	mock.ExpectQuery(regexp.QuoteMeta("EXPLAIN ANALYZE "+query)).
		WithArgs(int64(30)).
		WillReturnRows(sqlmock.NewRows([]string{"EXPLAIN"}).AddRow(mysqlTreePlan))

	plan, err := mysqlExplainer{}.Explain(context.Background(), db, query, []any{int64(30)}, false)
	require.NoError(t, err)
	assert.Equal(t, mysqlJoinPlan, plan.Raw)
	assert.Equal(t, "mysql", plan.Dialect)

	plan, err = mysqlExplainer{}.Explain(context.Background(), db, query, []any{int64(30)}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(12), plan.ActualRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresExplainer_Runs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	query := `SELECT "a0"."id" AS "id" FROM "users" AS "a0"`
	mock.ExpectQuery(regexp.QuoteMeta("EXPLAIN (ANALYZE, BUFFERS, FORMAT JSON) " + query)).
		WillReturnRows(sqlmock.NewRows([]string{"QUERY PLAN"}).AddRow(postgresPlan))
	mock.ExpectQuery(regexp.QuoteMeta("EXPLAIN (FORMAT JSON) " + query)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectQuery(regexp.QuoteMeta("EXPLAIN (FORMAT JSON) " + query)).
		WillReturnRows(sqlmock.NewRows([]string{"QUERY PLAN"}))

	plan, err := postgresExplainer{}.Explain(context.Background(), db, query, nil, true)
	require.NoError(t, err)
	assert.Equal(t, "postgres", plan.Dialect)
	assert.Equal(t, 1500*time.Microsecond, plan.ActualTime)

	_, err = postgresExplainer{}.Explain(context.Background(), db, query, nil, false)
	assert.ErrorContains(t, err, "connection reset")

	_, err = postgresExplainer{}.Explain(context.Background(), db, query, nil, false)
	assert.ErrorContains(t, err, "no plan returned")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteExplainer_Runs(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT, age INTEGER);
CREATE INDEX ix_users_email ON users (email);`)
	require.NoError(t, err)

	e := sqliteExplainer{}
	ctx := context.Background()

	scan, err := e.Explain(ctx, db, `SELECT "a0"."id" AS "id" FROM "users" AS "a0" WHERE ("a0"."age" > ?)`, []any{int64(1)}, false)
	require.NoError(t, err)
	assert.True(t, scan.FullScan())
	assert.False(t, scan.UsesIndex())
	assert.NotEmpty(t, scan.Raw)

	seek, err := e.Explain(ctx, db, `SELECT "a0"."id" AS "id" FROM "users" AS "a0" WHERE ("a0"."email" = ?)`, []any{"a@example.com"}, false)
	require.NoError(t, err)
	assert.Contains(t, seek.Indexes, "ix_users_email")
	assert.False(t, seek.FullScan())

	_, err = e.Explain(ctx, db, "SELECT 1", nil, true)
	assert.True(t, types.ErrNotSupported.Is(err))
}
