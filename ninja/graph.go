package ninja

import (
	"strings"

	"github.com/zyedidia/generic/mapset"
)

// Graph is a directed graph over PathKeys, built from a BuildDescription
// with arcs pointing from each edge's outputs to its inputs. This
// direction lets one post-order DFS from the requested targets serve
// both jobs at once: finding the reachable subgraph and producing a
// build order where every key's dependencies precede it.
type Graph struct {
	bd       *BuildDescription
	arcsFrom map[PathKey][]PathKey
}

// BuildGraph constructs the Graph from a frozen BuildDescription.
func BuildGraph(bd *BuildDescription) *Graph {
	g := &Graph{bd: bd, arcsFrom: make(map[PathKey][]PathKey, len(bd.Edges))}
	for _, e := range bd.Edges {
		ins := e.AllInputs()
		for _, o := range e.Outputs {
			g.arcsFrom[o] = ins
		}
	}
	return g
}

// Inputs returns the keys k's defining edge (if any) depends on, in
// explicit/implicit/order-only order.
func (g *Graph) Inputs(k PathKey) []PathKey {
	return g.arcsFrom[k]
}

// Edge returns the edge that builds k, or nil if k is a source (leaf)
// node with no defining edge.
func (g *Graph) Edge(k PathKey) *Edge {
	return g.bd.ByOutput[k]
}

// IsSource reports whether k has no defining edge.
func (g *Graph) IsSource(k PathKey) bool {
	return g.bd.ByOutput[k] == nil
}

// CycleError reports a dependency cycle discovered during traversal,
// with the offending cycle's keys in order for diagnostics.
type CycleError struct {
	Interner *Interner
	Cycle    []PathKey
}

func (e *CycleError) Error() string {
	names := make([]string, len(e.Cycle))
	for i, k := range e.Cycle {
		names[i] = e.Interner.Lookup(k)
	}
	return "dependency cycle: " + strings.Join(names, " -> ")
}

type dfsFrame struct {
	key PathKey
	idx int
}

// ReachablePostOrder computes the reachable subgraph from targets and
// returns it in an order where every key's dependencies appear before
// it. The traversal is iterative (grey/black coloring on an explicit
// stack) since the graph may be deeper than a process stack allows, and
// detects cycles by catching a back-edge into a node still on the stack
// (grey).
func (g *Graph) ReachablePostOrder(targets []PathKey) ([]PathKey, error) {
	visited := mapset.New[PathKey]() // black: fully processed
	onStack := mapset.New[PathKey]() // grey: currently on the DFS stack
	order := make([]PathKey, 0)

	for _, target := range targets {
		if visited.Has(target) {
			continue
		}

		stack := []dfsFrame{{key: target}}
		onStack.Put(target)

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			children := g.Inputs(top.key)

			if top.idx < len(children) {
				child := children[top.idx]
				top.idx++
				if onStack.Has(child) {
					cycle := make([]PathKey, 0, len(stack)+1)
					for _, f := range stack {
						cycle = append(cycle, f.key)
					}
					cycle = append(cycle, child)
					return nil, &CycleError{Interner: g.bd.Interner, Cycle: cycle}
				}
				if visited.Has(child) {
					continue
				}
				stack = append(stack, dfsFrame{key: child})
				onStack.Put(child)
				continue
			}

			onStack.Remove(top.key)
			visited.Put(top.key)
			order = append(order, top.key)
			stack = stack[:len(stack)-1]
		}
	}

	return order, nil
}

// Sources returns every key in the reachable order that has no defining
// edge: the leaves of the build.
func (g *Graph) Sources(order []PathKey) []PathKey {
	var sources []PathKey
	for _, k := range order {
		if g.IsSource(k) {
			sources = append(sources, k)
		}
	}
	return sources
}
