// Package bayes holds the discrete graphical-model data structures shared by
// learning, inference and decision analysis: categorical variables, the DAG
// that connects them and the tables attached to each node.
//
// A Graph is built incrementally (AddNode, AddArc, SetTable) and then frozen.
// Once frozen it is read-only and may be shared between goroutines without
// locking; every mutating method returns ErrFrozen.
package bayes

import (
	"fmt"
	"sort"
)

// Role tags what a node represents in a network or influence diagram.
type Role int

const (
	// Chance nodes are random variables with a conditional probability table.
	Chance Role = iota
	// Decision nodes are finite action sets chosen by the decision maker.
	Decision
	// Utility nodes hold one real value per parent configuration.
	Utility
)

func (r Role) String() string {
	switch r {
	case Chance:
		return "chance"
	case Decision:
		return "decision"
	case Utility:
		return "utility"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Arc is a directed edge from Parent to Child.
type Arc struct {
	Parent string
	Child  string
}

// Node is a variable inside a Graph. Slices returned by its accessors are
// owned by the graph and must not be modified.
type Node struct {
	id       int
	name     string
	role     Role
	labels   []string
	lookup   map[string]int
	parents  []*Node
	children []*Node
	table    []float64
}

func (n *Node) Name() string     { return n.name }
func (n *Node) Role() Role       { return n.role }
func (n *Node) Labels() []string { return n.labels }
func (n *Node) HasTable() bool   { return n.table != nil }

// Table returns the node's flat table (CPT or utility values). Row-major over
// the parents in Parents() order; for chance nodes the own value is the last,
// fastest-varying axis.
func (n *Node) Table() []float64 { return n.table }

// Card is the size of the node's own domain. Utility nodes have a single
// numeric cell per parent configuration, so their card is 1.
func (n *Node) Card() int {
	if n.role == Utility {
		return 1
	}
	return len(n.labels)
}

// LabelIndex returns the position of label in the node's domain.
func (n *Node) LabelIndex(label string) (int, bool) {
	i, ok := n.lookup[label]
	return i, ok
}

// Parents returns parent names in arc-insertion order.
func (n *Node) Parents() []string {
	out := make([]string, len(n.parents))
	for i, p := range n.parents {
		out[i] = p.name
	}
	return out
}

// Children returns child names in arc-insertion order.
func (n *Node) Children() []string {
	out := make([]string, len(n.children))
	for i, c := range n.children {
		out[i] = c.name
	}
	return out
}

// ParentCards returns the domain sizes of the node's parents in order.
func (n *Node) ParentCards() []int {
	cards := make([]int, len(n.parents))
	for i, p := range n.parents {
		cards[i] = p.Card()
	}
	return cards
}

// Configurations is the number of parent configurations.
func (n *Node) Configurations() int {
	q := 1
	for _, p := range n.parents {
		q *= p.Card()
	}
	return q
}

// TableSize is the number of cells a table for this node must have.
func (n *Node) TableSize() int {
	return n.Configurations() * n.Card()
}

// Graph is a DAG of nodes plus their tables.
type Graph struct {
	name   string
	nodes  []*Node
	index  map[string]*Node
	frozen bool
}

// New returns an empty, mutable graph.
func New(name string) *Graph {
	return &Graph{
		name:  name,
		index: make(map[string]*Node),
	}
}

func (g *Graph) Name() string { return g.name }

// Freeze makes the graph read-only. It is idempotent.
func (g *Graph) Freeze() { g.frozen = true }

func (g *Graph) Frozen() bool { return g.frozen }

// AddNode adds a chance node with the given ordered domain.
func (g *Graph) AddNode(name string, labels []string) error {
	return g.addNode(name, Chance, labels)
}

// AddDecision adds a decision node whose labels are the candidate actions.
func (g *Graph) AddDecision(name string, actions []string) error {
	return g.addNode(name, Decision, actions)
}

// AddUtility adds a utility node. Its table is sized by its parents.
func (g *Graph) AddUtility(name string) error {
	return g.addNode(name, Utility, nil)
}

func (g *Graph) addNode(name string, role Role, labels []string) error {
	if g.frozen {
		return fmt.Errorf("add node %q: %w", name, ErrFrozen)
	}
	if _, exists := g.index[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateNode, name)
	}
	n := &Node{
		id:     len(g.nodes),
		name:   name,
		role:   role,
		lookup: make(map[string]int, len(labels)),
	}
	if role != Utility {
		if len(labels) == 0 {
			return fmt.Errorf("node %q: %w", name, ErrEmptyDomain)
		}
		n.labels = make([]string, len(labels))
		for i, l := range labels {
			if _, dup := n.lookup[l]; dup {
				return fmt.Errorf("node %q label %q: %w", name, l, ErrDuplicateLabel)
			}
			n.labels[i] = l
			n.lookup[l] = i
		}
	}
	g.nodes = append(g.nodes, n)
	g.index[name] = n
	return nil
}

// AddArc adds parent -> child. On error the graph is left unchanged. A
// successful call drops the child's table because its shape changed.
func (g *Graph) AddArc(parent, child string) error {
	if g.frozen {
		return fmt.Errorf("add arc %s->%s: %w", parent, child, ErrFrozen)
	}
	p, ok := g.index[parent]
	if !ok {
		return unknownNode(parent)
	}
	c, ok := g.index[child]
	if !ok {
		return unknownNode(child)
	}
	if p == c {
		return fmt.Errorf("%w: self-loop on %q", ErrCycle, parent)
	}
	for _, existing := range c.parents {
		if existing == p {
			return fmt.Errorf("%w: %s->%s", ErrDuplicateArc, parent, child)
		}
	}
	switch {
	case p.role == Utility:
		return fmt.Errorf("%w: utility node %q cannot be a parent", ErrInvalidArc, parent)
	case p.role == Decision && c.role == Chance:
		return fmt.Errorf("%w: decision %q cannot condition chance node %q", ErrInvalidArc, parent, child)
	}
	if g.reachable(c, p) {
		return fmt.Errorf("%w: %s->%s", ErrCycle, parent, child)
	}

	c.parents = append(c.parents, p)
	p.children = append(p.children, c)
	c.table = nil
	return nil
}

// reachable reports whether to can be reached from from along arcs.
func (g *Graph) reachable(from, to *Node) bool {
	seen := make([]bool, len(g.nodes))
	stack := []*Node{from}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == to {
			return true
		}
		if seen[n.id] {
			continue
		}
		seen[n.id] = true
		stack = append(stack, n.children...)
	}
	return false
}

// SetTable attaches a table to a chance or utility node. The slice is copied.
func (g *Graph) SetTable(name string, values []float64) error {
	if g.frozen {
		return fmt.Errorf("set table %q: %w", name, ErrFrozen)
	}
	n, ok := g.index[name]
	if !ok {
		return unknownNode(name)
	}
	if n.role == Decision {
		return fmt.Errorf("set table %q: %w: decision nodes carry no table", name, ErrRoleMismatch)
	}
	if want := n.TableSize(); len(values) != want {
		return fmt.Errorf("node %q: %w: got %d cells, want %d", name, ErrShapeMismatch, len(values), want)
	}
	if n.role == Chance {
		if err := CheckDistribution(values, n.Card()); err != nil {
			return fmt.Errorf("node %q: %w", name, err)
		}
	}
	n.table = append([]float64(nil), values...)
	return nil
}

// Node looks up a node by name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.index[name]
	return n, ok
}

// MustNode is Node for callers that already validated the name.
func (g *Graph) MustNode(name string) *Node {
	n, ok := g.index[name]
	if !ok {
		panic(fmt.Sprintf("bayes: unknown node %q", name))
	}
	return n
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	return append([]*Node(nil), g.nodes...)
}

// Names returns node names in insertion order.
func (g *Graph) Names() []string {
	out := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.name
	}
	return out
}

// NodesByRole returns the nodes with the given role in insertion order.
func (g *Graph) NodesByRole(role Role) []*Node {
	var out []*Node
	for _, n := range g.nodes {
		if n.role == role {
			out = append(out, n)
		}
	}
	return out
}

func (g *Graph) Len() int { return len(g.nodes) }

// Arcs lists arcs grouped by child (insertion order), parents in table order.
func (g *Graph) Arcs() []Arc {
	var arcs []Arc
	for _, c := range g.nodes {
		for _, p := range c.parents {
			arcs = append(arcs, Arc{Parent: p.name, Child: c.name})
		}
	}
	return arcs
}

// Parents returns the parent names of a node.
func (g *Graph) Parents(name string) ([]string, error) {
	n, ok := g.index[name]
	if !ok {
		return nil, unknownNode(name)
	}
	return n.Parents(), nil
}

// Children returns the child names of a node.
func (g *Graph) Children(name string) ([]string, error) {
	n, ok := g.index[name]
	if !ok {
		return nil, unknownNode(name)
	}
	return n.Children(), nil
}

// TopologicalOrder returns node names so that every parent precedes its
// children. Among nodes that are ready at the same time the one inserted first
// wins, which makes the order deterministic.
func (g *Graph) TopologicalOrder() []string {
	indeg := make([]int, len(g.nodes))
	for _, n := range g.nodes {
		indeg[n.id] = len(n.parents)
	}
	var ready []int
	for _, n := range g.nodes {
		if indeg[n.id] == 0 {
			ready = append(ready, n.id)
		}
	}
	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		n := g.nodes[id]
		order = append(order, n.name)
		for _, c := range n.children {
			indeg[c.id]--
			if indeg[c.id] == 0 {
				at := sort.SearchInts(ready, c.id)
				ready = append(ready, 0)
				copy(ready[at+1:], ready[at:])
				ready[at] = c.id
			}
		}
	}
	return order
}

// Ancestors returns the named nodes together with all of their ancestors.
func (g *Graph) Ancestors(names ...string) (map[string]bool, error) {
	out := make(map[string]bool)
	var stack []*Node
	for _, name := range names {
		n, ok := g.index[name]
		if !ok {
			return nil, unknownNode(name)
		}
		stack = append(stack, n)
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if out[n.name] {
			continue
		}
		out[n.name] = true
		stack = append(stack, n.parents...)
	}
	return out, nil
}

// Descendants returns all nodes reachable from name, excluding name itself.
func (g *Graph) Descendants(name string) (map[string]bool, error) {
	n, ok := g.index[name]
	if !ok {
		return nil, unknownNode(name)
	}
	out := make(map[string]bool)
	stack := append([]*Node(nil), n.children...)
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if out[c.name] {
			continue
		}
		out[c.name] = true
		stack = append(stack, c.children...)
	}
	return out, nil
}

// Validate checks that every chance and utility node has a table.
func (g *Graph) Validate() error {
	for _, n := range g.nodes {
		if n.role != Decision && n.table == nil {
			return fmt.Errorf("%s node %q: %w", n.role, n.name, ErrMissingTable)
		}
	}
	return nil
}

// Clone returns an unfrozen deep copy.
func (g *Graph) Clone() *Graph {
	out := New(g.name)
	for _, n := range g.nodes {
		// Names and labels were already validated on the source graph.
		_ = out.addNode(n.name, n.role, n.labels)
	}
	for _, c := range g.nodes {
		oc := out.index[c.name]
		for _, p := range c.parents {
			op := out.index[p.name]
			oc.parents = append(oc.parents, op)
			op.children = append(op.children, oc)
		}
		if c.table != nil {
			oc.table = append([]float64(nil), c.table...)
		}
	}
	return out
}
