package provider

import (
	"github.com/coregx/rse/internal/expr"
	"github.com/coregx/rse/internal/header"
)

// Chain composes providers fluently. The first failing step is remembered and
// every later step is skipped, so one error check at Provider suffices:
//
//	p, err := provider.From(users).
//		Filter(pred).
//		OrderBy(header.Asc(1)).
//		Take(provider.Literal(10)).
//		Provider()
type Chain struct {
	p   Provider
	err error
}

// From starts a chain at p.
func From(p Provider) *Chain {
	return &Chain{p: p}
}

// FromTable starts a chain at a table scan.
func FromTable(ref TableRef) *Chain {
	t, err := NewTable(ref)
	if err != nil {
		return &Chain{err: err}
	}
	return &Chain{p: t}
}

// Provider returns the built provider or the first error.
func (c *Chain) Provider() (Provider, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.p, nil
}

// Header returns the header of the current provider, nil after an error.
func (c *Chain) Header() *header.Header {
	if c.err != nil || c.p == nil {
		return nil
	}
	return c.p.Header()
}

func (c *Chain) then(fn func(Provider) (Provider, error)) *Chain {
	if c.err != nil {
		return c
	}
	p, err := fn(c.p)
	if err != nil {
		return &Chain{err: err}
	}
	return &Chain{p: p}
}

func (c *Chain) Filter(predicate expr.Expr) *Chain {
	return c.then(func(p Provider) (Provider, error) { return NewFilter(p, predicate) })
}

func (c *Chain) Select(indices ...int) *Chain {
	return c.then(func(p Provider) (Provider, error) { return NewSelect(p, indices...) })
}

// Join inner-joins right on column equalities.
func (c *Chain) Join(right Provider, pairs ...ColumnPair) *Chain {
	return c.then(func(p Provider) (Provider, error) { return NewJoin(p, right, InnerJoin, pairs, nil) })
}

// LeftJoin left-outer-joins right on column equalities.
func (c *Chain) LeftJoin(right Provider, pairs ...ColumnPair) *Chain {
	return c.then(func(p Provider) (Provider, error) { return NewJoin(p, right, LeftOuterJoin, pairs, nil) })
}

// JoinOn joins right on a predicate over the joined row.
func (c *Chain) JoinOn(right Provider, typ JoinType, predicate expr.Expr) *Chain {
	return c.then(func(p Provider) (Provider, error) { return NewJoin(p, right, typ, nil, predicate) })
}

func (c *Chain) CrossJoin(right Provider) *Chain {
	return c.then(func(p Provider) (Provider, error) { return NewJoin(p, right, CrossJoin, nil, nil) })
}

func (c *Chain) Apply(right Provider, typ ApplyType, param *expr.ApplyParameter) *Chain {
	return c.then(func(p Provider) (Provider, error) { return NewApply(p, right, typ, param) })
}

func (c *Chain) Aggregate(groupBy []int, columns ...AggregateSpec) *Chain {
	return c.then(func(p Provider) (Provider, error) { return NewAggregate(p, groupBy, columns...) })
}

func (c *Chain) OrderBy(order header.Order) *Chain {
	return c.then(func(p Provider) (Provider, error) { return NewSort(p, order) })
}

func (c *Chain) Skip(n Count) *Chain {
	return c.then(func(p Provider) (Provider, error) { return NewSkip(p, n) })
}

func (c *Chain) Take(n Count) *Chain {
	return c.then(func(p Provider) (Provider, error) { return NewTake(p, n) })
}

func (c *Chain) Distinct() *Chain {
	return c.then(func(p Provider) (Provider, error) { return NewDistinct(p) })
}

func (c *Chain) Union(right Provider) *Chain {
	return c.then(func(p Provider) (Provider, error) { return NewUnion(p, right) })
}

func (c *Chain) Intersect(right Provider) *Chain {
	return c.then(func(p Provider) (Provider, error) { return NewIntersect(p, right) })
}

func (c *Chain) Except(right Provider) *Chain {
	return c.then(func(p Provider) (Provider, error) { return NewExcept(p, right) })
}

func (c *Chain) Concat(right Provider) *Chain {
	return c.then(func(p Provider) (Provider, error) { return NewConcat(p, right) })
}

func (c *Chain) Alias(alias string) *Chain {
	return c.then(func(p Provider) (Provider, error) { return NewAlias(p, alias) })
}

func (c *Chain) Calculate(columns ...CalculatedColumn) *Chain {
	return c.then(func(p Provider) (Provider, error) { return NewCalculate(p, columns...) })
}

func (c *Chain) RowNumber(name string) *Chain {
	return c.then(func(p Provider) (Provider, error) { return NewRowNumber(p, name) })
}

// Include appends a Bool column testing columns against literal rows.
func (c *Chain) Include(columns []int, values [][]any, name string) *Chain {
	return c.then(func(p Provider) (Provider, error) { return NewIncludeValues(p, columns, values, name) })
}

// IncludeFrom appends a Bool column testing columns against the rows of filter.
func (c *Chain) IncludeFrom(columns []int, filter Provider, name string) *Chain {
	return c.then(func(p Provider) (Provider, error) { return NewIncludeFilter(p, columns, filter, name) })
}

func (c *Chain) Lock(mode LockMode, behavior LockBehavior) *Chain {
	return c.then(func(p Provider) (Provider, error) { return NewLock(p, mode, behavior) })
}

func (c *Chain) Seek(name string, keys []int, values ...expr.ValueFunc) *Chain {
	return c.then(func(p Provider) (Provider, error) { return NewSeek(p, name, keys, values...) })
}

func (c *Chain) Existence(name string) *Chain {
	return c.then(func(p Provider) (Provider, error) { return NewExistence(p, name) })
}

func (c *Chain) Tag(tag string) *Chain {
	return c.then(func(p Provider) (Provider, error) { return NewTag(p, tag) })
}
