package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// postgresExplainer reads EXPLAIN (FORMAT JSON).
type postgresExplainer struct{}

func (postgresExplainer) Explain(ctx context.Context, q Querier, query string, args []any, analyze bool) (*Plan, error) {
	prefix := "EXPLAIN (FORMAT JSON) "
	if analyze {
		prefix = "EXPLAIN (ANALYZE, BUFFERS, FORMAT JSON) "
	}
	raw, err := single(ctx, q, prefix+query, args)
	if err != nil {
		return nil, err
	}
	plan, err := parsePostgresJSON(raw)
	if err != nil {
		return nil, err
	}
	plan.Raw = raw
	return plan, nil
}

type postgresNode struct {
	NodeType   string         `json:"Node Type"`
	Relation   string         `json:"Relation Name"`
	IndexName  string         `json:"Index Name"`
	TotalCost  float64        `json:"Total Cost"`
	PlanRows   int64          `json:"Plan Rows"`
	ActualRows int64          `json:"Actual Rows"`
	Loops      int64          `json:"Actual Loops"`
	Plans      []postgresNode `json:"Plans"`
}

func parsePostgresJSON(raw string) (*Plan, error) {
	var roots []struct {
		Plan          postgresNode `json:"Plan"`
		ExecutionTime float64      `json:"Execution Time"`
	}
	if err := json.Unmarshal([]byte(raw), &roots); err != nil {
		return nil, fmt.Errorf("explain: parse postgres plan: %w", err)
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("explain: empty postgres plan")
	}
	root := roots[0]
	plan := &Plan{
		Dialect:       "postgres",
		Cost:          root.Plan.TotalCost,
		EstimatedRows: root.Plan.PlanRows,
		ActualRows:    root.Plan.ActualRows * max(root.Plan.Loops, 1),
		ActualTime:    time.Duration(root.ExecutionTime * float64(time.Millisecond)),
	}
	walkPostgres(&root.Plan, plan)
	return plan, nil
}

func walkPostgres(n *postgresNode, plan *Plan) {
	switch {
	case strings.Contains(n.NodeType, "Index"):
		// Index Scan, Index Only Scan and Bitmap Index Scan.
		plan.addIndex(n.IndexName)
	case n.NodeType == "Seq Scan":
		plan.addFullScan(n.Relation)
	}
	for i := range n.Plans {
		walkPostgres(&n.Plans[i], plan)
	}
}
