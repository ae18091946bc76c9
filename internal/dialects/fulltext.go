package dialects

import (
	"strings"

	"github.com/coregx/rse/internal/compiler"
	"github.com/coregx/rse/internal/sqldom"
)

// matcher spells the rank expression and the row predicate of a full-text
// search over the qualified search columns.
type matcher func(columns []string, criteria string) (rank, filter string)

// fullText emits a full-text source as a derived table exposing the table
// columns followed by the rank.
func fullText(ctx *compiler.EmitContext, src *sqldom.FullText, match matcher) (string, error) {
	tr := ctx.Translator
	criteria, err := ctx.Emitter.Expr(ctx, src.Criteria)
	if err != nil {
		return "", err
	}
	alias := tr.QuoteIdentifier(src.Alias)
	search := make([]string, len(src.Search))
	for i, c := range src.Search {
		search[i] = alias + "." + tr.QuoteIdentifier(c)
	}
	rank, filter := match(search, criteria)

	var sb strings.Builder
	sb.WriteString("(SELECT ")
	for _, c := range src.Columns {
		sb.WriteString(alias + "." + tr.QuoteIdentifier(c) + ", ")
	}
	sb.WriteString(rank + " AS " + tr.QuoteIdentifier(src.RankAlias))
	sb.WriteString(" FROM " + compiler.QualifiedName(tr, src.Schema, src.Name) + " AS " + alias)
	sb.WriteString(" WHERE " + filter + ") AS " + alias)
	return sb.String(), nil
}
