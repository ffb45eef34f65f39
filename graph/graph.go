// Package graph evaluates components in dependency order, once per input event or
// timer tick. Each node declares what it reads; a node is evaluated only when a node
// it depends on fired in the current pass (or when it was triggered directly).
//
// Values flow through cells. A cell is written only by its owner node and read in one
// of three ways, each with its own type so the generation being read is explicit:
//
//	Dep[T]  current pass value, registers a dependency on the owner
//	Peek[T] current value without registering a dependency
//	Last[T] value committed at the end of the previous pass
package graph

import (
	"errors"
	"fmt"
)

// MaxNodes bounds the graph so a pass result fits in one word
const MaxNodes = 64

var ErrSealed = errors.New("graph: already sealed")

// Node is one component evaluation step. Its eval function reports whether any value it
// owns changed.
type Node struct {
	name  string
	id    int
	eval  func() bool
	deps  []*Node
	users []*Node

	fired   bool
	trigger bool
}

func (n *Node) Name() string { return n.name }

// Fired reports whether the node fired in the most recent pass
func (n *Node) Fired() bool { return n.fired }

func (n *Node) dependOn(src *Node) {
	for _, d := range n.deps {
		if d == src {
			return
		}
	}
	n.deps = append(n.deps, src)
	src.users = append(src.users, n)
}

// Graph owns the nodes, their topological order, and the commit list of every cell
type Graph struct {
	nodes   []*Node
	order   []*Node
	commits []func()
	sealed  bool
	passes  uint64
}

func New() *Graph {
	return &Graph{}
}

// Source adds a node without an eval function; it fires only when triggered
func (g *Graph) Source(name string) *Node {
	return g.Node(name, nil)
}

// Node adds a component node. Panics after Seal or past MaxNodes.
func (g *Graph) Node(name string, eval func() bool) *Node {
	if g.sealed {
		panic(ErrSealed)
	}
	if len(g.nodes) >= MaxNodes {
		panic(fmt.Sprintf("graph: more than %d nodes", MaxNodes))
	}
	n := &Node{name: name, id: len(g.nodes), eval: eval}
	g.nodes = append(g.nodes, n)
	return n
}

// Seal fixes the evaluation order. It fails if the dependencies contain a cycle.
func (g *Graph) Seal() error {
	if g.sealed {
		return ErrSealed
	}
	indeg := make([]int, len(g.nodes))
	for _, n := range g.nodes {
		indeg[n.id] = len(n.deps)
	}
	// Kahn's algorithm; ties keep declaration order so evaluation is deterministic
	var order []*Node
	done := make([]bool, len(g.nodes))
	for len(order) < len(g.nodes) {
		progressed := false
		for _, n := range g.nodes {
			if done[n.id] || indeg[n.id] != 0 {
				continue
			}
			done[n.id] = true
			order = append(order, n)
			for _, u := range n.users {
				indeg[u.id]--
			}
			progressed = true
		}
		if !progressed {
			var stuck []string
			for _, n := range g.nodes {
				if !done[n.id] {
					stuck = append(stuck, n.name)
				}
			}
			return fmt.Errorf("graph: dependency cycle among %v", stuck)
		}
	}
	g.order = order
	g.sealed = true
	return nil
}

// Order returns node names in evaluation order
func (g *Graph) Order() []string {
	names := make([]string, len(g.order))
	for i, n := range g.order {
		names[i] = n.name
	}
	return names
}

// Trigger marks n to be evaluated (or, for a source, to fire) in the next pass
func (g *Graph) Trigger(n *Node) {
	n.trigger = true
}

// Fired is the set of nodes that fired in one pass
type Fired uint64

func (f Fired) Has(n *Node) bool { return f&(1<<uint(n.id)) != 0 }
func (f Fired) Empty() bool      { return f == 0 }

// Run evaluates one pass and commits every cell
func (g *Graph) Run() Fired {
	if !g.sealed {
		if err := g.Seal(); err != nil {
			panic(err)
		}
	}
	for _, n := range g.nodes {
		n.fired = false
	}
	var fired Fired
	for _, n := range g.order {
		run := n.trigger
		for _, d := range n.deps {
			if d.fired {
				run = true
				break
			}
		}
		n.trigger = false
		if !run {
			continue
		}
		if n.eval == nil {
			n.fired = true
		} else {
			n.fired = n.eval()
		}
		if n.fired {
			fired |= 1 << uint(n.id)
		}
	}
	for _, c := range g.commits {
		c()
	}
	g.passes++
	return fired
}

// Passes returns how many passes have run
func (g *Graph) Passes() uint64 { return g.passes }
