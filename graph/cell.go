package graph

// Cell holds a value written by its owner node
type Cell[T any] struct {
	owner *Node
	cur   T
	last  T
}

// NewCell creates a cell owned by n and registers its commit with g
func NewCell[T any](g *Graph, owner *Node, init T) *Cell[T] {
	if g.sealed {
		panic(ErrSealed)
	}
	c := &Cell[T]{owner: owner, cur: init, last: init}
	g.commits = append(g.commits, func() { c.last = c.cur })
	return c
}

// Set replaces the current value. Only the owner's eval should call it.
func (c *Cell[T]) Set(v T) { c.cur = v }

// Update mutates the current value in place
func (c *Cell[T]) Update(fn func(*T)) { fn(&c.cur) }

// Reset replaces both the current and the committed value. It is meant for restoring
// state between passes.
func (c *Cell[T]) Reset(v T) {
	c.cur = v
	c.last = v
}

func (c *Cell[T]) Owner() *Node { return c.owner }

// Dep reads the current pass value of a cell the reader depends on
type Dep[T any] struct{ c *Cell[T] }

// Watch registers reader as depending on c's owner
func Watch[T any](reader *Node, c *Cell[T]) Dep[T] {
	if reader == c.owner {
		panic("graph: node cannot watch its own cell; use Committed")
	}
	reader.dependOn(c.owner)
	return Dep[T]{c: c}
}

func (d Dep[T]) Get() T { return d.c.cur }

// Fired reports whether the owner fired in the current pass, i.e. the value is fresh
func (d Dep[T]) Fired() bool { return d.c.owner.fired }

// Peek reads the current value without creating a dependency. The value may belong to
// the current or the previous pass depending on evaluation order.
type Peek[T any] struct{ c *Cell[T] }

func PeekAt[T any](c *Cell[T]) Peek[T] { return Peek[T]{c: c} }

func (p Peek[T]) Get() T { return p.c.cur }

// Last reads the value committed at the end of the previous pass
type Last[T any] struct{ c *Cell[T] }

func Committed[T any](c *Cell[T]) Last[T] { return Last[T]{c: c} }

func (l Last[T]) Get() T { return l.c.last }
