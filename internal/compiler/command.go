package compiler

import (
	"github.com/coregx/rse/internal/expr"
	"github.com/coregx/rse/internal/header"
	"github.com/coregx/rse/internal/typemap"
	"github.com/coregx/rse/internal/types"
)

// Parameter is one placeholder of a command, in placeholder order. The same
// late-bound value appears once per placeholder that uses it.
type Parameter struct {
	Name  string
	Type  types.Type
	Value expr.ValueFunc
}

// Arg is a bound parameter value ready for the driver.
type Arg struct {
	Name   string
	Value  any
	DBType typemap.DBType
}

// Command is a compiled query. It holds no bound values and can be cached and
// executed concurrently with different parameter contexts.
type Command struct {
	SQL    string
	Params []Parameter
	// Header is the row shape of the result.
	Header *header.Header

	mapper typemap.Mapper
}

func newCommand(sql string, params []expr.Param, h *header.Header, mapper typemap.Mapper) *Command {
	c := &Command{SQL: sql, Header: h, mapper: mapper}
	for _, p := range params {
		c.Params = append(c.Params, Parameter{Name: p.Name, Type: p.T, Value: p.Value})
	}
	return c
}

// Rebind returns a copy of c whose parameters take their value functions
// from values by name. Parameters without an entry keep their own.
func (c *Command) Rebind(values map[string]expr.ValueFunc) *Command {
	out := *c
	out.Params = make([]Parameter, len(c.Params))
	for i, p := range c.Params {
		if v, ok := values[p.Name]; ok {
			p.Value = v
		}
		out.Params[i] = p
	}
	return &out
}

// Args evaluates every parameter against pc and converts it for the driver.
func (c *Command) Args(pc *expr.ParameterContext) ([]Arg, error) {
	args := make([]Arg, len(c.Params))
	for i, p := range c.Params {
		v, err := p.Value(pc)
		if err != nil {
			return nil, err
		}
		arg := Arg{Name: p.Name, Value: v}
		if c.mapper != nil {
			if arg.Value, err = c.mapper.Bind(p.Type, v); err != nil {
				return nil, err
			}
			if m, err := c.mapper.Map(p.Type); err == nil {
				arg.DBType = m.Param
			}
		}
		args[i] = arg
	}
	return args, nil
}

// Values returns the driver values of args for database/sql calls.
func Values(args []Arg) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a.Value
	}
	return out
}

// Read converts the raw driver values of one result row into host values.
func (c *Command) Read(raw []any) ([]any, error) {
	td := c.Header.TupleDescriptor()
	if len(raw) != td.Count() {
		return nil, types.ErrIncompatibleHeaders.New("row", "value count does not match the header")
	}
	out := make([]any, len(raw))
	for i, v := range raw {
		if c.mapper == nil {
			out[i] = v
			continue
		}
		x, err := c.mapper.Read(td.At(i), v)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}
