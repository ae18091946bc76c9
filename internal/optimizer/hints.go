package optimizer

import "fmt"

const (
	parallelRows = 100_000
)

// hints returns dialect specific maintenance suggestions.
func (a *Advisor) hints(analysis *Analysis) []Suggestion {
	plan := analysis.Plan
	if plan == nil {
		return nil
	}
	var out []Suggestion
	tr := a.dialect.Translator()

	switch a.dialect.Name() {
	case "postgres":
		for _, t := range plan.FullScans {
			out = append(out, Suggestion{
				Type:     SuggestionStatistics,
				Severity: SeverityInfo,
				Message:  "refresh planner statistics for " + t,
				SQL:      "ANALYZE " + tr.QuoteIdentifier(t) + ";",
			})
		}
		if plan.EstimatedRows > parallelRows {
			out = append(out, Suggestion{
				Type:     SuggestionParallel,
				Severity: SeverityInfo,
				Message:  fmt.Sprintf("%d estimated rows; check that parallel scans are enabled", plan.EstimatedRows),
				SQL:      "SET max_parallel_workers_per_gather = 4;",
			})
		}
	case "mysql":
		// MySQL reports the alias, so the table name comes from the recommendation.
		for _, idx := range analysis.MissingIndexes {
			out = append(out,
				Suggestion{
					Type:     SuggestionStatistics,
					Severity: SeverityInfo,
					Message:  "refresh index statistics for " + idx.Table,
					SQL:      "ANALYZE TABLE " + tr.QuoteIdentifier(idx.Table) + ";",
				},
				Suggestion{
					Type:     SuggestionIndexHint,
					Severity: SeverityInfo,
					Message:  fmt.Sprintf("once created, %s can be forced with %s", idx.IndexName(), tr.IndexHint([]string{idx.IndexName()})),
				})
		}
	case "sqlite":
		if plan.FullScan() {
			out = append(out, Suggestion{
				Type:     SuggestionStatistics,
				Severity: SeverityInfo,
				Message:  "run ANALYZE so the planner has statistics",
				SQL:      "ANALYZE;",
			})
		}
	}
	return out
}
