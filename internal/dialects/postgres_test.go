package dialects

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/rse/internal/compiler"
	"github.com/coregx/rse/internal/expr"
	"github.com/coregx/rse/internal/provider"
	"github.com/coregx/rse/internal/types"
)

func TestPostgres_Locks(t *testing.T) {
	tests := []struct {
		mode     provider.LockMode
		behavior provider.LockBehavior
		want     string
	}{
		{provider.LockShared, provider.LockWait, "FOR SHARE"},
		{provider.LockExclusive, provider.LockNoWait, "FOR UPDATE NOWAIT"},
		{provider.LockUpdate, provider.LockWait, "FOR NO KEY UPDATE"},
		{provider.LockUpdate, provider.LockSkipLocked, "FOR NO KEY UPDATE SKIP LOCKED"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			cmd := compile(t, NewPostgres(), provider.FromTable(usersRef).Lock(tt.mode, tt.behavior))
			assert.True(t, len(cmd.SQL) > len(tt.want))
			assert.Equal(t, tt.want, cmd.SQL[len(cmd.SQL)-len(tt.want):])
		})
	}
}

func TestPostgres_Literals(t *testing.T) {
	tr := NewPostgres().Translator()
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	tests := []struct {
		name string
		v    any
		typ  types.Type
		want string
	}{
		{"bytes", []byte{0xde, 0xad, 0x01}, types.Bytes, `'\xdead01'::bytea`},
		{"uuid", id, types.GUID, "'6ba7b810-9dad-11d1-80b4-00c04fd430c8'::uuid"},
		{"uuid from string", id.String(), types.GUID, "'6ba7b810-9dad-11d1-80b4-00c04fd430c8'::uuid"},
		{"nul dropped", "a\x00b", types.String, "'ab'"},
		{"bool", true, types.Bool, "TRUE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tr.Literal(tt.v, tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := tr.Literal(42, types.Bytes)
	assert.True(t, types.ErrConversion.Is(err))
}

func TestPostgres_QuoteIdentifier(t *testing.T) {
	tr := NewPostgres().Translator()
	assert.Equal(t, `"weird""name"`, tr.QuoteIdentifier(`weird"name`))
}

func TestPostgres_FullText(t *testing.T) {
	ft, err := provider.NewFreeText(usersRef, []int{1}, expr.Lit("bob", types.String), "score")
	require.NoError(t, err)
	cmd, err := compiler.New(NewPostgres()).Compile(ft)
	require.NoError(t, err)

	doc := `to_tsvector(COALESCE("a0"."name", ''))`
	assert.Contains(t, cmd.SQL, `ts_rank(`+doc+`, plainto_tsquery('bob')) AS "score"`)
	assert.Contains(t, cmd.SQL, `WHERE (`+doc+` @@ plainto_tsquery('bob'))`)
	assert.Contains(t, cmd.SQL, `FROM "app"."users" AS "a0"`)
}

func TestPostgres_PlaceholdersNumberedInTextOrder(t *testing.T) {
	age := expr.Column{Index: 2, T: types.Int32}
	chain := provider.FromTable(usersRef).
		Filter(expr.Binary{
			Op:    expr.Greater,
			Left:  age,
			Right: expr.Param{Name: "min", T: types.Int32, Value: expr.FromContext("min")},
		}).
		Skip(provider.LateBound("skip", expr.FromContext("skip"))).
		Take(provider.LateBound("take", expr.FromContext("take")))

	cmd := compile(t, NewPostgres(), chain)
	assert.Contains(t, cmd.SQL, `("a0"."age" > $1)`)
	assert.Contains(t, cmd.SQL, "LIMIT $2 OFFSET $3")
	require.Len(t, cmd.Params, 3)
	assert.Equal(t, []string{"min", "take", "skip"}, []string{cmd.Params[0].Name, cmd.Params[1].Name, cmd.Params[2].Name})
}
