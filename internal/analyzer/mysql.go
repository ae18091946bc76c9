package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// mysqlExplainer reads EXPLAIN FORMAT=JSON, or the EXPLAIN ANALYZE tree of
// MySQL 8.0.18 and later.
type mysqlExplainer struct{}

func (mysqlExplainer) Explain(ctx context.Context, q Querier, query string, args []any, analyze bool) (*Plan, error) {
	if analyze {
		raw, err := single(ctx, q, "EXPLAIN ANALYZE "+query, args)
		if err != nil {
			return nil, err
		}
		plan := parseMySQLTree(raw)
		plan.Raw = raw
		return plan, nil
	}
	raw, err := single(ctx, q, "EXPLAIN FORMAT=JSON "+query, args)
	if err != nil {
		return nil, err
	}
	plan, err := parseMySQLJSON(raw)
	if err != nil {
		return nil, err
	}
	plan.Raw = raw
	return plan, nil
}

type mysqlQueryBlock struct {
	CostInfo struct {
		QueryCost any `json:"query_cost"`
	} `json:"cost_info"`
	Table      *mysqlTable      `json:"table"`
	NestedLoop []mysqlLoopEntry `json:"nested_loop"`
	Grouping   *mysqlOperation  `json:"grouping_operation"`
	Ordering   *mysqlOperation  `json:"ordering_operation"`
	Duplicates *mysqlOperation  `json:"duplicates_removal"`
}

type mysqlOperation struct {
	Table      *mysqlTable      `json:"table"`
	NestedLoop []mysqlLoopEntry `json:"nested_loop"`
	Grouping   *mysqlOperation  `json:"grouping_operation"`
	Duplicates *mysqlOperation  `json:"duplicates_removal"`
}

type mysqlLoopEntry struct {
	Table *mysqlTable `json:"table"`
}

type mysqlTable struct {
	Name                string `json:"table_name"`
	AccessType          string `json:"access_type"`
	Key                 string `json:"key"`
	RowsExaminedPerScan int64  `json:"rows_examined_per_scan"`
	// Derived tables nest a whole query block.
	Materialized *struct {
		QueryBlock mysqlQueryBlock `json:"query_block"`
	} `json:"materialized_from_subquery"`
}

func parseMySQLJSON(raw string) (*Plan, error) {
	var root struct {
		QueryBlock mysqlQueryBlock `json:"query_block"`
	}
	if err := json.Unmarshal([]byte(raw), &root); err != nil {
		return nil, fmt.Errorf("explain: parse mysql plan: %w", err)
	}
	plan := &Plan{Dialect: "mysql"}
	// query_cost is a quoted number in 5.7 and 8.0.
	plan.Cost, _ = cast.ToFloat64E(root.QueryBlock.CostInfo.QueryCost)
	walkMySQLBlock(&root.QueryBlock, plan)
	return plan, nil
}

func walkMySQLBlock(b *mysqlQueryBlock, plan *Plan) {
	walkMySQLOperation(&mysqlOperation{Table: b.Table, NestedLoop: b.NestedLoop}, plan)
	for _, op := range []*mysqlOperation{b.Grouping, b.Ordering, b.Duplicates} {
		walkMySQLOperation(op, plan)
	}
}

func walkMySQLOperation(op *mysqlOperation, plan *Plan) {
	if op == nil {
		return
	}
	mysqlTableAccess(op.Table, plan)
	for _, e := range op.NestedLoop {
		mysqlTableAccess(e.Table, plan)
	}
	walkMySQLOperation(op.Grouping, plan)
	walkMySQLOperation(op.Duplicates, plan)
}

func mysqlTableAccess(t *mysqlTable, plan *Plan) {
	if t == nil {
		return
	}
	if t.Materialized != nil {
		walkMySQLBlock(&t.Materialized.QueryBlock, plan)
	}
	plan.addIndex(t.Key)
	if t.AccessType == "ALL" {
		plan.addFullScan(t.Name)
	}
	plan.EstimatedRows += t.RowsExaminedPerScan
}

var (
	mysqlCost     = regexp.MustCompile(`\(cost=([0-9.e+]+?)(?:\.\.[0-9.e+]+)? rows=([0-9.e+]+)\)`)
	mysqlActual   = regexp.MustCompile(`\(actual time=[0-9.]+\.\.([0-9.]+) rows=([0-9.e+]+) loops=\d+\)`)
	mysqlScan     = regexp.MustCompile(`Table scan on (\S+)`)
	mysqlIndexUse = regexp.MustCompile(`(?i)index .*\busing (\S+)`)
)

// parseMySQLTree reads the EXPLAIN ANALYZE text tree. The first line is the
// root iterator and carries the totals.
func parseMySQLTree(raw string) *Plan {
	plan := &Plan{Dialect: "mysql"}
	for i, line := range strings.Split(raw, "\n") {
		if i == 0 {
			if m := mysqlCost.FindStringSubmatch(line); m != nil {
				plan.Cost = cast.ToFloat64(m[1])
				plan.EstimatedRows = int64(cast.ToFloat64(m[2]))
			}
			if m := mysqlActual.FindStringSubmatch(line); m != nil {
				ms := cast.ToFloat64(m[1])
				plan.ActualTime = time.Duration(ms * float64(time.Millisecond))
				plan.ActualRows = int64(cast.ToFloat64(m[2]))
			}
		}
		if m := mysqlScan.FindStringSubmatch(line); m != nil {
			plan.addFullScan(m[1])
		}
		if m := mysqlIndexUse.FindStringSubmatch(line); m != nil {
			plan.addIndex(m[1])
		}
	}
	return plan
}
