// Package provider implements the relational operator tree compiled to SQL.
//
// Providers are immutable. Every constructor validates its inputs, derives
// the output header and returns a new node; inputs are never modified, so
// subtrees may be shared freely.
package provider

import (
	"fmt"
	"strings"

	"github.com/coregx/rse/internal/header"
	"github.com/coregx/rse/internal/types"
)

// Kind identifies a provider variant.
type Kind uint8

// Provider kinds.
const (
	KindTable Kind = iota
	KindIndex
	KindRaw
	KindStore
	KindFreeText
	KindFilter
	KindSelect
	KindJoin
	KindApply
	KindAggregate
	KindSort
	KindSkip
	KindTake
	KindDistinct
	KindUnion
	KindIntersect
	KindExcept
	KindConcat
	KindAlias
	KindCalculate
	KindRowNumber
	KindInclude
	KindLock
	KindSeek
	KindExistence
	KindTag
)

var kindNames = [...]string{
	"Table", "Index", "Raw", "Store", "FreeText", "Filter", "Select", "Join",
	"Apply", "Aggregate", "Sort", "Skip", "Take", "Distinct", "Union",
	"Intersect", "Except", "Concat", "Alias", "Calculate", "RowNumber",
	"Include", "Lock", "Seek", "Existence", "Tag",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Provider is one node of the operator tree.
type Provider interface {
	Kind() Kind
	// Header is the row shape the node produces.
	Header() *header.Header
	// Sources are the input providers, left to right.
	Sources() []Provider
	// String is a structural description; equal trees print equally.
	String() string
	provider()
}

type node struct {
	header  *header.Header
	sources []Provider
}

func (n *node) Header() *header.Header { return n.header }

func (n *node) Sources() []Provider {
	out := make([]Provider, len(n.sources))
	copy(out, n.sources)
	return out
}

func (*node) provider() {}

func checkSource(op string, sources ...Provider) error {
	for i, s := range sources {
		if s == nil {
			return types.ErrInvalidArgument.New(op, fmt.Sprintf("source %d is nil", i))
		}
	}
	return nil
}

func checkIndices(h *header.Header, indices []int) error {
	for _, idx := range indices {
		if idx < 0 || idx >= h.Len() {
			return types.ErrIndexOutOfRange.New(idx, h.Len())
		}
	}
	return nil
}

func describe(kind Kind, params string, sources ...Provider) string {
	var sb strings.Builder
	sb.WriteString(kind.String())
	sb.WriteByte('(')
	sb.WriteString(params)
	for _, s := range sources {
		if sb.Len() > len(kind.String())+1 {
			sb.WriteString(", ")
		}
		sb.WriteString(s.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

func ints(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Walk visits p and its sources in pre-order until fn returns false.
func Walk(p Provider, fn func(Provider) bool) {
	if p == nil || !fn(p) {
		return
	}
	for _, s := range p.Sources() {
		Walk(s, fn)
	}
}
