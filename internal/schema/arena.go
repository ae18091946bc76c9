package schema

import (
	"strings"

	"golang.org/x/text/cases"
)

type node struct {
	kind     Kind
	name     string
	parent   NodeID
	children []NodeID
	// columns are the member columns of a constraint.
	columns []NodeID
	// refs are the referenced columns of a foreign key, pairwise with columns.
	refs []NodeID
	// target is the referenced table of a foreign key or the column of an
	// index column.
	target    NodeID
	ascending bool
	def       any
}

type nameKey struct {
	parent NodeID
	coll   collection
	name   string
}

// arena holds the nodes shared by Builder and Catalog. Node 0 is the catalog.
type arena struct {
	nodes         []node
	names         map[nameKey]NodeID
	caseSensitive bool
}

func newArena(catalog string, caseSensitive bool) arena {
	a := arena{names: make(map[nameKey]NodeID), caseSensitive: caseSensitive}
	a.nodes = append(a.nodes, node{kind: KindCatalog, name: catalog, parent: NoNode, target: NoNode})
	return a
}

// fold returns the lookup form of name. A Caser keeps state, so each call
// gets its own.
func (a *arena) fold(name string) string {
	if a.caseSensitive {
		return name
	}
	return cases.Fold().String(name)
}

func (a *arena) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(a.nodes)
}

func (a *arena) find(parent NodeID, k Kind, name string) (NodeID, bool) {
	id, ok := a.names[nameKey{parent, k.collection(), a.fold(name)}]
	if !ok || a.nodes[id].kind != k {
		return NoNode, false
	}
	return id, true
}

func (a *arena) childrenOf(parent NodeID, kinds ...Kind) []NodeID {
	var out []NodeID
	for _, c := range a.nodes[parent].children {
		for _, k := range kinds {
			if a.nodes[c].kind == k {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// path returns the dot-separated qualified name of id, without the catalog.
func (a *arena) path(id NodeID) string {
	var parts []string
	for ; a.valid(id) && a.nodes[id].kind != KindCatalog; id = a.nodes[id].parent {
		parts = append(parts, a.nodes[id].name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	if len(parts) == 0 {
		return a.nodes[0].name
	}
	return strings.Join(parts, ".")
}

func (a *arena) clone() arena {
	out := arena{
		nodes:         make([]node, len(a.nodes)),
		names:         make(map[nameKey]NodeID, len(a.names)),
		caseSensitive: a.caseSensitive,
	}
	for i, n := range a.nodes {
		n.children = append([]NodeID(nil), n.children...)
		n.columns = append([]NodeID(nil), n.columns...)
		n.refs = append([]NodeID(nil), n.refs...)
		out.nodes[i] = n
	}
	for k, v := range a.names {
		out.names[k] = v
	}
	return out
}
