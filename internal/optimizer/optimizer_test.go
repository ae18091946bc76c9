package optimizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/rse/internal/analyzer"
	"github.com/coregx/rse/internal/dialects"
	"github.com/coregx/rse/internal/expr"
	"github.com/coregx/rse/internal/provider"
	"github.com/coregx/rse/internal/schema"
	"github.com/coregx/rse/internal/types"
)

var users = provider.TableRef{
	Schema: "app",
	Name:   "users",
	Columns: []provider.TableColumn{
		{Name: "id", Type: types.Int64},
		{Name: "email", Type: types.String},
		{Name: "age", Type: types.Int64},
		{Name: "country", Type: types.String},
	},
	Key: []int{0},
}

func col(i int) expr.Column {
	return expr.Column{Index: i, T: users.Columns[i].Type}
}

func cmp(op expr.BinaryOp, i int, v any) expr.Expr {
	return expr.Binary{Op: op, Left: col(i), Right: expr.Lit(v, users.Columns[i].Type)}
}

func and(l, r expr.Expr) expr.Expr { return expr.Binary{Op: expr.And, Left: l, Right: r} }

func filterUsers(t *testing.T, predicate expr.Expr) provider.Provider {
	t.Helper()
	p, err := provider.FromTable(users).Alias("u").Filter(predicate).Provider()
	require.NoError(t, err)
	return p
}

// catalog has app.users with a unique index on email and a primary key on id.
func catalog(t *testing.T) *schema.Catalog {
	t.Helper()
	b := schema.NewBuilder("shop")
	app, err := b.AddSchema("app")
	require.NoError(t, err)
	tbl, err := b.AddTable(app, "users")
	require.NoError(t, err)
	var ids []schema.NodeID
	for _, c := range users.Columns {
		id, err := b.AddColumn(tbl, c.Name, schema.ColumnDef{Type: types.NewTypeInfo(types.SQLInteger)})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	_, err = b.AddPrimaryKey(tbl, "pk_users", ids[0])
	require.NoError(t, err)
	ix, err := b.AddIndex(tbl, "ux_users_email", schema.IndexDef{Unique: true})
	require.NoError(t, err)
	_, err = b.AddIndexColumn(ix, ids[1], true)
	require.NoError(t, err)
	cat, err := b.Freeze()
	require.NoError(t, err)
	return cat
}

func scanPlan(tables ...string) *analyzer.Plan {
	return &analyzer.Plan{Dialect: "postgres", FullScans: tables}
}

func TestPredicateColumns(t *testing.T) {
	tests := []struct {
		name      string
		predicate expr.Expr
		equality  []int
		ranged    []int
	}{
		{name: "equality", predicate: cmp(expr.Equal, 1, "a@b.c"), equality: []int{1}},
		{name: "range", predicate: cmp(expr.Greater, 2, int64(30)), ranged: []int{2}},
		{name: "value on the left", predicate: expr.Binary{Op: expr.Less, Left: expr.Lit(int64(3), types.Int64), Right: col(2)}, ranged: []int{2}},
		{name: "conjunction puts equality first",
			predicate: and(cmp(expr.Greater, 2, int64(30)), cmp(expr.Equal, 3, "NZ")),
			equality:  []int{3}, ranged: []int{2}},
		{name: "equality wins over range on same column",
			predicate: and(cmp(expr.GreaterOrEqual, 2, int64(1)), cmp(expr.Equal, 2, int64(5))),
			equality:  []int{2}},
		{name: "disjunction ignored", predicate: expr.Binary{Op: expr.Or, Left: cmp(expr.Equal, 1, "x"), Right: cmp(expr.Equal, 3, "y")}},
		{name: "not equal ignored", predicate: cmp(expr.NotEqual, 3, "NZ")},
		{name: "column against column ignored", predicate: expr.Binary{Op: expr.Equal, Left: col(0), Right: col(2)}},
		{name: "parameter", predicate: expr.Binary{Op: expr.Equal, Left: col(1), Right: expr.Param{Name: "email", T: types.String, Value: expr.FromContext("email")}}, equality: []int{1}},
		{name: "in list", predicate: expr.InList{Operands: []expr.Expr{col(3)}, Rows: [][]expr.Expr{{expr.Lit("NZ", types.String)}}}, equality: []int{3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eq, rng := predicateColumns(tt.predicate)
			assert.Equal(t, tt.equality, eq)
			assert.Equal(t, tt.ranged, rng)
		})
	}
}

func TestAdvisor_Analyze(t *testing.T) {
	tests := []struct {
		name    string
		catalog bool
		plan    *analyzer.Plan
		pred    expr.Expr
		want    [][]string
	}{
		{name: "full scan on range", plan: scanPlan("users"), pred: cmp(expr.Greater, 2, int64(30)), want: [][]string{{"age"}}},
		{name: "no plan still advises", pred: cmp(expr.Equal, 3, "NZ"), want: [][]string{{"country"}}},
		{name: "index used", plan: &analyzer.Plan{Indexes: []string{"ix"}}, pred: cmp(expr.Equal, 3, "NZ")},
		{name: "composite", plan: scanPlan("users"),
			pred: and(cmp(expr.Greater, 2, int64(30)), cmp(expr.Equal, 3, "NZ")),
			want: [][]string{{"country", "age"}}},
		{name: "catalog index already leads", catalog: true, plan: scanPlan("users"), pred: cmp(expr.Equal, 1, "a@b.c")},
		{name: "catalog primary key already leads", catalog: true, plan: scanPlan("users"), pred: cmp(expr.Greater, 0, int64(10))},
		{name: "catalog without index", catalog: true, plan: scanPlan("users"), pred: cmp(expr.Equal, 3, "NZ"), want: [][]string{{"country"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cat *schema.Catalog
			if tt.catalog {
				cat = catalog(t)
			}
			a := NewAdvisor(dialects.NewPostgres(), cat, 0)
			analysis := a.Analyze(filterUsers(t, tt.pred), tt.plan)

			var got [][]string
			for _, rec := range analysis.MissingIndexes {
				assert.Equal(t, "users", rec.Table)
				got = append(got, rec.Columns)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdvisor_SlowQuery(t *testing.T) {
	a := NewAdvisor(dialects.NewSQLite(), nil, 50*time.Millisecond)
	analysis := a.Analyze(filterUsers(t, cmp(expr.Equal, 3, "NZ")), &analyzer.Plan{Indexes: []string{"ix"}, ActualTime: 80 * time.Millisecond})
	assert.True(t, analysis.SlowQuery)
	assert.Equal(t, 80*time.Millisecond, analysis.ExecutionTime)

	suggestions := a.Suggest(analysis)
	require.Len(t, suggestions, 1)
	assert.Equal(t, SuggestionSlowQuery, suggestions[0].Type)
	assert.Equal(t, "warning: query took 80ms (threshold 50ms)", suggestions[0].String())
}

func TestAdvisor_Suggest(t *testing.T) {
	pred := and(cmp(expr.Greater, 2, int64(30)), cmp(expr.Equal, 3, "NZ"))

	tests := []struct {
		dialect dialects.Dialect
		plan    *analyzer.Plan
		types   []SuggestionType
		sql     []string
	}{
		{
			dialect: dialects.NewPostgres(),
			plan:    &analyzer.Plan{FullScans: []string{"users"}, EstimatedRows: 250_000},
			types:   []SuggestionType{SuggestionFullScan, SuggestionIndexMissing, SuggestionStatistics, SuggestionParallel},
			sql: []string{"", `CREATE INDEX "idx_users_country_age" ON "app"."users" ("country", "age");`,
				`ANALYZE "users";`, "SET max_parallel_workers_per_gather = 4;"},
		},
		{
			dialect: dialects.NewMySQL(),
			plan:    &analyzer.Plan{FullScans: []string{"u"}},
			types:   []SuggestionType{SuggestionFullScan, SuggestionIndexMissing, SuggestionStatistics, SuggestionIndexHint},
			sql: []string{"", "CREATE INDEX `idx_users_country_age` ON `app`.`users` (`country`, `age`);",
				"ANALYZE TABLE `users`;", ""},
		},
		{
			dialect: dialects.NewSQLite(),
			plan:    &analyzer.Plan{FullScans: []string{"users"}},
			types:   []SuggestionType{SuggestionFullScan, SuggestionIndexMissing, SuggestionStatistics},
			sql: []string{"", `CREATE INDEX "idx_users_country_age" ON "app"."users" ("country", "age");`,
				"ANALYZE;"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.dialect.Name(), func(t *testing.T) {
			a := NewAdvisor(tt.dialect, nil, 0)
			suggestions := a.Suggest(a.Analyze(filterUsers(t, pred), tt.plan))

			var gotTypes []SuggestionType
			var gotSQL []string
			for _, s := range suggestions {
				gotTypes = append(gotTypes, s.Type)
				gotSQL = append(gotSQL, s.SQL)
			}
			assert.Equal(t, tt.types, gotTypes)
			assert.Equal(t, tt.sql, gotSQL)
		})
	}
}

func TestAdvisor_MySQLIndexHint(t *testing.T) {
	a := NewAdvisor(dialects.NewMySQL(), nil, 0)
	suggestions := a.Suggest(a.Analyze(filterUsers(t, cmp(expr.Equal, 3, "NZ")), &analyzer.Plan{FullScans: []string{"u"}}))
	require.NotEmpty(t, suggestions)
	last := suggestions[len(suggestions)-1]
	assert.Equal(t, "once created, idx_users_country can be forced with USE INDEX (`idx_users_country`)", last.Message)
}

func TestIndexRecommendation_IndexName(t *testing.T) {
	assert.Equal(t, "idx_users", IndexRecommendation{Table: "users"}.IndexName())
	assert.Equal(t, "idx_users_a_b", IndexRecommendation{Table: "users", Columns: []string{"a", "b"}}.IndexName())
}
