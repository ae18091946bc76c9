package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/coregx/rse/internal/types"
)

// sqliteExplainer reads EXPLAIN QUERY PLAN. SQLite reports neither costs
// nor row estimates and cannot analyze.
type sqliteExplainer struct{}

func (sqliteExplainer) Explain(ctx context.Context, q Querier, query string, args []any, analyze bool) (*Plan, error) {
	if analyze {
		return nil, types.ErrNotSupported.New("EXPLAIN ANALYZE", "sqlite")
	}
	rows, err := q.QueryContext(ctx, "EXPLAIN QUERY PLAN "+query, args...)
	if err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}
	defer rows.Close()

	// id, parent, notused, detail
	var lines []string
	for rows.Next() {
		var id, parent, unused int64
		var detail string
		if err := rows.Scan(&id, &parent, &unused, &detail); err != nil {
			return nil, fmt.Errorf("explain: %w", err)
		}
		lines = append(lines, detail)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}

	plan := parseSQLitePlan(lines)
	plan.Raw = strings.Join(lines, "\n")
	return plan, nil
}

// parseSQLitePlan reads detail lines such as
//
//	SCAN users
//	SEARCH users USING INDEX ix_email (email=?)
//	SEARCH users USING INTEGER PRIMARY KEY (rowid=?)
//	SCAN a0 USING COVERING INDEX ix_score
func parseSQLitePlan(lines []string) *Plan {
	plan := &Plan{Dialect: "sqlite"}
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 || (fields[0] != "SCAN" && fields[0] != "SEARCH") {
			continue
		}
		table := fields[1]
		if fields[1] == "TABLE" && len(fields) > 2 {
			// Servers before 3.36 print "SCAN TABLE users".
			table = fields[2]
		}
		upper := strings.ToUpper(line)
		switch {
		case strings.Contains(upper, "USING INTEGER PRIMARY KEY"):
			plan.addIndex("PRIMARY KEY")
		case strings.Contains(upper, "USING AUTOMATIC"):
			plan.addIndex("AUTOMATIC INDEX")
		case strings.Contains(upper, "INDEX "):
			plan.addIndex(indexAfter(line))
		case fields[0] == "SCAN":
			plan.addFullScan(table)
		}
	}
	return plan
}

// indexAfter returns the word following "INDEX".
func indexAfter(line string) string {
	fields := strings.Fields(line)
	for i := 0; i < len(fields)-1; i++ {
		if strings.EqualFold(fields[i], "INDEX") {
			return strings.TrimSuffix(fields[i+1], "(")
		}
	}
	return ""
}
