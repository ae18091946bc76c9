package provider

import (
	"fmt"
	"strings"

	"github.com/coregx/rse/internal/expr"
	"github.com/coregx/rse/internal/header"
	"github.com/coregx/rse/internal/types"
)

// AggregateSpec describes one aggregate output column.
type AggregateSpec struct {
	Name string
	// Source is the aggregated column, -1 for COUNT(*).
	Source    int
	Aggregate header.AggregateType
}

// Aggregate groups the source by GroupBy and computes Columns per group. The
// header is the group columns followed by the aggregate columns.
type Aggregate struct {
	node
	Source  Provider
	GroupBy []int
	Columns []AggregateSpec
}

// NewAggregate returns the aggregation of source.
func NewAggregate(source Provider, groupBy []int, columns ...AggregateSpec) (*Aggregate, error) {
	if err := checkSource("aggregate", source); err != nil {
		return nil, err
	}
	if len(groupBy) == 0 && len(columns) == 0 {
		return nil, types.ErrInvalidArgument.New("aggregate", "no group columns and no aggregates")
	}
	sh := source.Header()
	if err := checkIndices(sh, groupBy); err != nil {
		return nil, err
	}
	cols := make([]header.Column, 0, len(groupBy)+len(columns))
	for i, g := range groupBy {
		cols = append(cols, sh.Columns().At(g).Clone(i))
	}
	for _, c := range columns {
		if c.Name == "" {
			return nil, types.ErrInvalidArgument.New("aggregate", "column without a name")
		}
		src := types.Int64
		switch {
		case c.Source == -1:
			if c.Aggregate != header.Count {
				return nil, types.ErrInvalidArgument.New(c.Name, c.Aggregate.String()+" needs a source column")
			}
		case c.Source < 0 || c.Source >= sh.Len():
			return nil, types.ErrIndexOutOfRange.New(c.Source, sh.Len())
		default:
			src = sh.Columns().At(c.Source).Type()
		}
		cols = append(cols, header.NewAggregateColumn(c.Name, len(cols), c.Aggregate.ResultType(src), c.Source, c.Aggregate))
	}
	var groups []header.ColumnGroup
	if len(groupBy) > 0 {
		keys := make([]int, len(groupBy))
		all := make([]int, len(cols))
		for i := range keys {
			keys[i] = i
		}
		for i := range all {
			all[i] = i
		}
		groups = []header.ColumnGroup{{Keys: keys, Columns: all}}
	}
	h, err := header.New(cols, groups, nil)
	if err != nil {
		return nil, err
	}
	return &Aggregate{
		node:    node{header: h, sources: []Provider{source}},
		Source:  source,
		GroupBy: append([]int(nil), groupBy...),
		Columns: append([]AggregateSpec(nil), columns...),
	}, nil
}

func (*Aggregate) Kind() Kind { return KindAggregate }

func (a *Aggregate) String() string {
	parts := make([]string, len(a.Columns))
	for i, c := range a.Columns {
		parts[i] = fmt.Sprintf("%s=%s(%d)", c.Name, c.Aggregate, c.Source)
	}
	return describe(KindAggregate, ints(a.GroupBy)+" "+strings.Join(parts, " "), a.Source)
}

// JoinType is the kind of a Join.
type JoinType uint8

// Join types.
const (
	InnerJoin JoinType = iota
	LeftOuterJoin
	FullOuterJoin
	CrossJoin
)

func (t JoinType) String() string {
	switch t {
	case InnerJoin:
		return "inner"
	case LeftOuterJoin:
		return "leftouter"
	case FullOuterJoin:
		return "fullouter"
	case CrossJoin:
		return "cross"
	}
	return fmt.Sprintf("JoinType(%d)", uint8(t))
}

// ColumnPair is an equality condition between a left and a right column.
type ColumnPair struct {
	Left  int
	Right int
}

// Join combines Left and Right. The condition is the conjunction of the
// EqualIndexes equalities and Predicate, which is evaluated over the joined row.
type Join struct {
	node
	Left         Provider
	Right        Provider
	Type         JoinType
	EqualIndexes []ColumnPair
	Predicate    expr.Expr
}

// NewJoin returns left joined with right. Cross joins take no condition; other
// joins need at least one equality or a predicate.
func NewJoin(left, right Provider, typ JoinType, pairs []ColumnPair, predicate expr.Expr) (*Join, error) {
	if err := checkSource("join", left, right); err != nil {
		return nil, err
	}
	if typ > CrossJoin {
		return nil, types.ErrInvalidArgument.New("join", typ.String())
	}
	lh, rh := left.Header(), right.Header()
	h, err := lh.Join(rh)
	if err != nil {
		return nil, err
	}
	if typ == CrossJoin && (len(pairs) > 0 || predicate != nil) {
		return nil, types.ErrInvalidArgument.New("cross join", "condition given")
	}
	if typ != CrossJoin && len(pairs) == 0 && predicate == nil {
		return nil, types.ErrInvalidArgument.New(typ.String()+" join", "no condition")
	}
	for _, p := range pairs {
		if p.Left < 0 || p.Left >= lh.Len() {
			return nil, types.ErrIndexOutOfRange.New(p.Left, lh.Len())
		}
		if p.Right < 0 || p.Right >= rh.Len() {
			return nil, types.ErrIndexOutOfRange.New(p.Right, rh.Len())
		}
	}
	if predicate != nil {
		if err := expr.Validate(predicate, h.Len()); err != nil {
			return nil, err
		}
		if predicate.Type() != types.Bool {
			return nil, types.ErrInvalidArgument.New("join predicate", "type "+predicate.Type().String())
		}
	}
	return &Join{
		node:         node{header: h, sources: []Provider{left, right}},
		Left:         left,
		Right:        right,
		Type:         typ,
		EqualIndexes: append([]ColumnPair(nil), pairs...),
		Predicate:    predicate,
	}, nil
}

func (*Join) Kind() Kind { return KindJoin }

func (j *Join) String() string {
	parts := make([]string, len(j.EqualIndexes))
	for i, p := range j.EqualIndexes {
		parts[i] = fmt.Sprintf("%d=%d", p.Left, p.Right)
	}
	params := j.Type.String() + " [" + strings.Join(parts, " ") + "]"
	if j.Predicate != nil {
		params += " " + j.Predicate.String()
	}
	return describe(KindJoin, params, j.Left, j.Right)
}

// ApplyType is the kind of an Apply.
type ApplyType uint8

// Apply types.
const (
	// CrossApply pairs every left row with each row of the right side evaluated for it.
	CrossApply ApplyType = iota
	// OuterApply is CrossApply keeping left rows with no right rows.
	OuterApply
	// ExistingApply keeps left rows for which the right side has rows.
	ExistingApply
	// NotExistingApply keeps left rows for which the right side has no rows.
	NotExistingApply
)

func (t ApplyType) String() string {
	switch t {
	case CrossApply:
		return "cross"
	case OuterApply:
		return "outer"
	case ExistingApply:
		return "existing"
	case NotExistingApply:
		return "notexisting"
	}
	return fmt.Sprintf("ApplyType(%d)", uint8(t))
}

// Apply evaluates Right once per Left row; Right refers to that row through
// Param. Existence applies keep the left header, the others join both headers.
type Apply struct {
	node
	Left  Provider
	Right Provider
	Type  ApplyType
	Param *expr.ApplyParameter
}

// NewApply returns the correlated application of right to left.
func NewApply(left, right Provider, typ ApplyType, param *expr.ApplyParameter) (*Apply, error) {
	if err := checkSource("apply", left, right); err != nil {
		return nil, err
	}
	if param == nil {
		return nil, types.ErrInvalidArgument.New("apply", "nil apply parameter")
	}
	if typ > NotExistingApply {
		return nil, types.ErrInvalidArgument.New("apply", typ.String())
	}
	h := left.Header()
	if typ == CrossApply || typ == OuterApply {
		var err error
		if h, err = h.Join(right.Header()); err != nil {
			return nil, err
		}
	}
	return &Apply{node: node{header: h, sources: []Provider{left, right}}, Left: left, Right: right, Type: typ, Param: param}, nil
}

func (*Apply) Kind() Kind { return KindApply }

func (a *Apply) String() string {
	return describe(KindApply, a.Type.String()+" "+a.Param.String(), a.Left, a.Right)
}

// SetOperation combines two providers of equal shape.
type SetOperation struct {
	node
	kind  Kind
	Left  Provider
	Right Provider
}

func newSetOperation(kind Kind, left, right Provider) (*SetOperation, error) {
	op := strings.ToLower(kind.String())
	if err := checkSource(op, left, right); err != nil {
		return nil, err
	}
	lh, rh := left.Header(), right.Header()
	if lh.Len() != rh.Len() {
		return nil, types.ErrIncompatibleHeaders.New(op, fmt.Sprintf("%d columns vs %d", lh.Len(), rh.Len()))
	}
	for i := 0; i < lh.Len(); i++ {
		lt, rt := lh.TupleDescriptor().At(i), rh.TupleDescriptor().At(i)
		if lt != rt && lt != types.Null && rt != types.Null {
			return nil, types.ErrIncompatibleHeaders.New(op, fmt.Sprintf("column %d is %s vs %s", i, lt, rt))
		}
	}
	h, err := header.New(lh.Columns().All(), nil, nil)
	if err != nil {
		return nil, err
	}
	return &SetOperation{node: node{header: h, sources: []Provider{left, right}}, kind: kind, Left: left, Right: right}, nil
}

// NewUnion returns the distinct rows of left and right.
func NewUnion(left, right Provider) (*SetOperation, error) { return newSetOperation(KindUnion, left, right) }

// NewIntersect returns the distinct rows present in both left and right.
func NewIntersect(left, right Provider) (*SetOperation, error) {
	return newSetOperation(KindIntersect, left, right)
}

// NewExcept returns the distinct rows of left absent from right.
func NewExcept(left, right Provider) (*SetOperation, error) {
	return newSetOperation(KindExcept, left, right)
}

// NewConcat returns all rows of left followed by all rows of right.
func NewConcat(left, right Provider) (*SetOperation, error) {
	return newSetOperation(KindConcat, left, right)
}

func (s *SetOperation) Kind() Kind { return s.kind }

func (s *SetOperation) String() string { return describe(s.kind, "", s.Left, s.Right) }
