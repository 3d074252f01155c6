// Package decision extends a fitted network with decision and utility nodes
// and picks the action with the highest expected utility.
package decision

import (
	"fmt"

	"github.com/moolen/riskgraph/internal/bayes"
	"github.com/moolen/riskgraph/internal/inference"
	"github.com/moolen/riskgraph/internal/logging"
)

// Diagram is an influence diagram. It is editable until the first solver is
// created, after which the graph is frozen.
type Diagram struct {
	g      *bayes.Graph
	solver *Solver
	logger *logging.Logger
}

// FromNetwork copies the chance nodes, arcs and CPTs of bn into a new,
// editable diagram. bn itself is not modified.
func FromNetwork(bn *bayes.Graph) (*Diagram, error) {
	for _, n := range bn.Nodes() {
		if n.Role() == bayes.Chance && !n.HasTable() {
			return nil, fmt.Errorf("chance node %q: %w", n.Name(), bayes.ErrMissingTable)
		}
	}
	g := bn.Clone()
	return Wrap(g), nil
}

// Wrap uses g as the diagram graph directly.
func Wrap(g *bayes.Graph) *Diagram {
	return &Diagram{g: g, logger: logging.GetLogger("decision")}
}

func (d *Diagram) Graph() *bayes.Graph { return d.g }

func (d *Diagram) AddDecision(name string, actions []string) error {
	return d.g.AddDecision(name, actions)
}

func (d *Diagram) AddUtility(name string) error {
	return d.g.AddUtility(name)
}

// AddArc adds an informational arc (chance -> decision) or a utility
// dependency (chance or decision -> utility). Adding a parent resets the
// child's utility table.
func (d *Diagram) AddArc(parent, child string) error {
	return d.g.AddArc(parent, child)
}

// SetUtility replaces a utility table. Values are row-major over the utility
// node's parents in arc order.
func (d *Diagram) SetUtility(name string, values []float64) error {
	n, ok := d.g.Node(name)
	if !ok {
		return fmt.Errorf("%w: %q", bayes.ErrUnknownNode, name)
	}
	if n.Role() != bayes.Utility {
		return fmt.Errorf("set utility on %s node %q: %w", n.Role(), name, bayes.ErrRoleMismatch)
	}
	return d.g.SetTable(name, values)
}

// SetUtilityAt sets one cell of a utility table. assignment must give a label
// for every parent. Cells not yet set are zero.
func (d *Diagram) SetUtilityAt(name string, assignment map[string]string, value float64) error {
	n, ok := d.g.Node(name)
	if !ok {
		return fmt.Errorf("%w: %q", bayes.ErrUnknownNode, name)
	}
	if n.Role() != bayes.Utility {
		return fmt.Errorf("set utility on %s node %q: %w", n.Role(), name, bayes.ErrRoleMismatch)
	}
	values := make([]int, 0, len(n.Parents()))
	for _, p := range n.Parents() {
		label, ok := assignment[p]
		if !ok {
			return fmt.Errorf("utility %q: no value for parent %q", name, p)
		}
		idx, ok := d.g.MustNode(p).LabelIndex(label)
		if !ok {
			return &bayes.ValueError{Node: p, Value: label}
		}
		values = append(values, idx)
	}
	if len(assignment) != len(values) {
		return fmt.Errorf("utility %q: assignment names %d nodes, node has %d parents", name, len(assignment), len(values))
	}

	table := make([]float64, n.TableSize())
	if n.HasTable() {
		copy(table, n.Table())
	}
	table[bayes.ConfigIndex(n.ParentCards(), values)] = value
	return d.g.SetTable(name, table)
}

// NewSolver freezes the diagram and returns a solver with its own inference
// engine. Every utility node must have a table.
func (d *Diagram) NewSolver() (*Solver, error) {
	for _, n := range d.g.NodesByRole(bayes.Utility) {
		if !n.HasTable() {
			return nil, fmt.Errorf("utility node %q: %w", n.Name(), bayes.ErrMissingTable)
		}
	}
	engine, err := inference.NewEngine(d.g)
	if err != nil {
		return nil, err
	}
	return &Solver{g: d.g, engine: engine}, nil
}

// OptimalDecision solves on a solver owned by the diagram. It is not safe
// for concurrent use; give each goroutine its own Solver instead.
func (d *Diagram) OptimalDecision(decision string, evidence map[string]string) (*Choice, error) {
	if d.solver == nil {
		s, err := d.NewSolver()
		if err != nil {
			return nil, err
		}
		d.solver = s
		d.logger.Debug("diagram %q frozen for solving", d.g.Name())
	}
	return d.solver.OptimalDecision(decision, evidence)
}
