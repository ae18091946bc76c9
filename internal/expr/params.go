package expr

import (
	"fmt"
	"sync"

	"github.com/coregx/rse/internal/types"
)

// ParameterContext carries the values of late-bound parameters for one
// execution of a compiled command.
type ParameterContext struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewParameterContext returns a context holding values.
func NewParameterContext(values map[string]any) *ParameterContext {
	pc := &ParameterContext{values: make(map[string]any, len(values))}
	for k, v := range values {
		pc.values[k] = v
	}
	return pc
}

// Set stores the value of name.
func (pc *ParameterContext) Set(name string, v any) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.values == nil {
		pc.values = make(map[string]any)
	}
	pc.values[name] = v
}

// Get returns the value of name.
func (pc *ParameterContext) Get(name string) (any, bool) {
	if pc == nil {
		return nil, false
	}
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	v, ok := pc.values[name]
	return v, ok
}

// ValueFunc produces a late-bound value for one execution.
type ValueFunc func(*ParameterContext) (any, error)

// Const returns a ValueFunc that always yields v.
func Const(v any) ValueFunc {
	return func(*ParameterContext) (any, error) { return v, nil }
}

// FromContext returns a ValueFunc reading name from the parameter context.
func FromContext(name string) ValueFunc {
	return func(pc *ParameterContext) (any, error) {
		v, ok := pc.Get(name)
		if !ok {
			return nil, types.ErrInvalidArgument.New(name, "no value in parameter context")
		}
		return v, nil
	}
}

// ApplyParameter names the outer row of a correlated Apply. Inner expressions
// refer to it through OuterColumn.
type ApplyParameter struct {
	Name string
}

// NewApplyParameter returns a new correlation slot.
func NewApplyParameter(name string) *ApplyParameter {
	return &ApplyParameter{Name: name}
}

func (p *ApplyParameter) String() string {
	if p == nil {
		return "<nil>"
	}
	return fmt.Sprintf("$%s", p.Name)
}
