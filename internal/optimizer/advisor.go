package optimizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/coregx/rse/internal/analyzer"
	"github.com/coregx/rse/internal/compiler"
	"github.com/coregx/rse/internal/expr"
	"github.com/coregx/rse/internal/provider"
	"github.com/coregx/rse/internal/schema"
)

// Advisor recommends indexes for the filters of a provider tree.
type Advisor struct {
	dialect   compiler.Dialect
	catalog   *schema.Catalog
	threshold time.Duration
}

// NewAdvisor returns an advisor for dialect. The catalog is optional; with
// it, filters already served by an index are not reported. A non-positive
// threshold means DefaultSlowThreshold.
func NewAdvisor(dialect compiler.Dialect, catalog *schema.Catalog, threshold time.Duration) *Advisor {
	if threshold <= 0 {
		threshold = DefaultSlowThreshold
	}
	return &Advisor{dialect: dialect, catalog: catalog, threshold: threshold}
}

// Analyze combines plan with the filters of p. Missing indexes are only
// looked for when the plan scans a table, or when there is no plan.
func (a *Advisor) Analyze(p provider.Provider, plan *analyzer.Plan) *Analysis {
	analysis := &Analysis{Plan: plan}
	if plan != nil {
		analysis.ExecutionTime = plan.ActualTime
		analysis.SlowQuery = plan.ActualTime > a.threshold
		if !plan.FullScan() {
			return analysis
		}
	}
	for _, f := range filteredTables(p) {
		if rec, ok := a.recommend(f); ok {
			analysis.MissingIndexes = append(analysis.MissingIndexes, rec)
		}
	}
	return analysis
}

// Suggest turns an analysis into suggestions, general ones first.
func (a *Advisor) Suggest(analysis *Analysis) []Suggestion {
	var out []Suggestion
	if analysis.SlowQuery {
		out = append(out, Suggestion{
			Type:     SuggestionSlowQuery,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("query took %v (threshold %v)", analysis.ExecutionTime, a.threshold),
		})
	}
	if analysis.Plan != nil && analysis.Plan.FullScan() {
		out = append(out, Suggestion{
			Type:     SuggestionFullScan,
			Severity: SeverityWarning,
			Message:  "full scan of " + strings.Join(analysis.Plan.FullScans, ", "),
		})
	}
	for _, idx := range analysis.MissingIndexes {
		out = append(out, Suggestion{
			Type:     SuggestionIndexMissing,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("consider an index on %s(%s): %s", idx.Table, strings.Join(idx.Columns, ", "), idx.Reason),
			SQL:      a.createIndex(idx),
		})
	}
	return append(out, a.hints(analysis)...)
}

func (a *Advisor) createIndex(idx IndexRecommendation) string {
	tr := a.dialect.Translator()
	table := tr.QuoteIdentifier(idx.Table)
	if idx.Schema != "" {
		table = tr.QuoteIdentifier(idx.Schema) + "." + table
	}
	cols := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		cols[i] = tr.QuoteIdentifier(c)
	}
	return fmt.Sprintf("CREATE INDEX %s ON %s (%s);", tr.QuoteIdentifier(idx.IndexName()), table, strings.Join(cols, ", "))
}

// filtered is a filter applied directly to a table.
type filtered struct {
	ref      provider.TableRef
	// equality and ranged hold table column positions.
	equality []int
	ranged   []int
}

func filteredTables(p provider.Provider) []filtered {
	var out []filtered
	var walk func(provider.Provider)
	walk = func(p provider.Provider) {
		if f, ok := p.(*provider.Filter); ok {
			if t, ok := baseTable(f.Source); ok {
				eq, rng := predicateColumns(f.Predicate)
				if len(eq)+len(rng) > 0 {
					out = append(out, filtered{ref: t.Ref, equality: eq, ranged: rng})
				}
			}
		}
		for _, s := range p.Sources() {
			walk(s)
		}
	}
	walk(p)
	return out
}

// baseTable sees through nodes that keep column positions.
func baseTable(p provider.Provider) (*provider.Table, bool) {
	for {
		switch n := p.(type) {
		case *provider.Table:
			return n, true
		case *provider.Alias:
			p = n.Source
		case *provider.Tag:
			p = n.Source
		case *provider.Filter:
			p = n.Source
		default:
			return nil, false
		}
	}
}

// predicateColumns returns the columns compared against a value, split by
// whether the comparison is an equality. Conjunctions are followed;
// disjunctions are not, since one index cannot serve both branches.
func predicateColumns(e expr.Expr) (equality, ranged []int) {
	add := func(dst *[]int, idx int) {
		if !contains(*dst, idx) {
			*dst = append(*dst, idx)
		}
	}
	var visit func(expr.Expr)
	visit = func(e expr.Expr) {
		switch n := e.(type) {
		case expr.Binary:
			switch {
			case n.Op == expr.And:
				visit(n.Left)
				visit(n.Right)
			case n.Op.IsComparison() && n.Op != expr.NotEqual:
				idx, ok := columnAgainstValue(n.Left, n.Right)
				if !ok {
					return
				}
				if n.Op == expr.Equal {
					add(&equality, idx)
				} else {
					add(&ranged, idx)
				}
			}
		case expr.InList:
			if len(n.Operands) == 1 {
				if c, ok := n.Operands[0].(expr.Column); ok {
					add(&equality, c.Index)
				}
			}
		}
	}
	visit(e)
	// An equality found after a range on the same column wins.
	var kept []int
	for _, idx := range ranged {
		if !contains(equality, idx) {
			kept = append(kept, idx)
		}
	}
	return equality, kept
}

func columnAgainstValue(l, r expr.Expr) (int, bool) {
	if c, ok := l.(expr.Column); ok && isValue(r) {
		return c.Index, true
	}
	if c, ok := r.(expr.Column); ok && isValue(l) {
		return c.Index, true
	}
	return 0, false
}

func isValue(e expr.Expr) bool {
	switch e.(type) {
	case expr.Literal, expr.Param, expr.OuterColumn, expr.BoundColumn:
		return true
	}
	return false
}

func contains(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func (a *Advisor) recommend(f filtered) (IndexRecommendation, bool) {
	positions := append(append([]int(nil), f.equality...), f.ranged...)
	cols := make([]string, 0, len(positions))
	for _, p := range positions {
		if p < len(f.ref.Columns) {
			cols = append(cols, f.ref.Columns[p].Name)
		}
	}
	if len(cols) == 0 || a.served(f.ref, cols[0]) {
		return IndexRecommendation{}, false
	}
	reason := "filter without a usable index"
	if len(f.equality) > 0 && len(f.ranged) > 0 {
		reason = "equality columns lead, range columns follow"
	}
	return IndexRecommendation{Schema: f.ref.Schema, Table: f.ref.Name, Columns: cols, Reason: reason}, true
}

// served reports whether an index or key of the cataloged table already
// leads with column.
func (a *Advisor) served(ref provider.TableRef, column string) bool {
	t, ok := a.lookup(ref)
	if !ok {
		return false
	}
	same := strings.EqualFold
	if a.catalog.CaseSensitive() {
		same = func(x, y string) bool { return x == y }
	}
	for _, ix := range t.Indexes() {
		if cols := ix.Columns(); len(cols) > 0 && same(cols[0].Column().Name(), column) {
			return true
		}
	}
	for _, k := range t.Constraints() {
		if k.Kind() == schema.KindForeignKey || k.Kind() == schema.KindCheck {
			continue
		}
		if cols := k.Columns(); len(cols) > 0 && same(cols[0].Name(), column) {
			return true
		}
	}
	return false
}

func (a *Advisor) lookup(ref provider.TableRef) (schema.Table, bool) {
	if a.catalog == nil {
		return schema.Table{}, false
	}
	if ref.Schema != "" {
		return a.catalog.Table(ref.Schema, ref.Name)
	}
	for _, s := range a.catalog.Schemas() {
		if t, ok := s.Table(ref.Name); ok {
			return t, true
		}
	}
	return schema.Table{}, false
}
