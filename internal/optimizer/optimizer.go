// Package optimizer turns query plans into index and maintenance suggestions.
// Filtered columns are read from the provider tree rather than parsed back
// out of SQL, so suggestions always name physical columns.
package optimizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/coregx/rse/internal/analyzer"
)

// DefaultSlowThreshold is used when an Advisor is given no threshold.
const DefaultSlowThreshold = 100 * time.Millisecond

// Analysis is a plan together with the indexes that would avoid its scans.
type Analysis struct {
	// SlowQuery is set when the measured time exceeds the threshold.
	// Only analyzed plans carry a measured time.
	SlowQuery      bool
	ExecutionTime  time.Duration
	Plan           *analyzer.Plan
	MissingIndexes []IndexRecommendation
}

// Suggestion is one actionable recommendation.
type Suggestion struct {
	Type     SuggestionType
	Message  string
	Severity Severity
	// SQL is the statement that applies the suggestion, if there is one.
	SQL      string
}

func (s Suggestion) String() string {
	if s.SQL != "" {
		return fmt.Sprintf("%s: %s\n  Fix: %s", s.Severity, s.Message, s.SQL)
	}
	return fmt.Sprintf("%s: %s", s.Severity, s.Message)
}

// SuggestionType categorizes suggestions.
type SuggestionType string

const (
	SuggestionIndexMissing SuggestionType = "index_missing"
	SuggestionSlowQuery    SuggestionType = "slow_query"
	SuggestionFullScan     SuggestionType = "full_scan"
	// SuggestionStatistics asks for planner statistics to be refreshed.
	SuggestionStatistics   SuggestionType = "statistics"
	SuggestionIndexHint    SuggestionType = "index_hint"
	SuggestionParallel     SuggestionType = "parallel_scan"
)

// Severity ranks suggestions.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// IndexRecommendation is an index that would serve a filter.
type IndexRecommendation struct {
	Schema  string
	Table   string
	// Columns lists equality columns before range columns.
	Columns []string
	Reason  string
}

// IndexName returns idx_<table>_<column>_...
func (i IndexRecommendation) IndexName() string {
	if len(i.Columns) == 0 {
		return "idx_" + i.Table
	}
	return "idx_" + i.Table + "_" + strings.Join(i.Columns, "_")
}
