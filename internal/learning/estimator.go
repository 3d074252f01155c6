package learning

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/moolen/riskgraph/internal/bayes"
	"github.com/moolen/riskgraph/internal/dataset"
)

var (
	ErrInvalidSmoothing        = errors.New("smoothing strength must be >= 0")
	ErrUnobservedConfiguration = errors.New("parent configuration never observed")
)

// UnobservedError names the family and parent configuration that had no rows
// while smoothing was disabled.
type UnobservedError struct {
	Node          string
	Configuration []string
}

func (e *UnobservedError) Error() string {
	return fmt.Sprintf("node %q: %v: (%s)", e.Node, ErrUnobservedConfiguration, strings.Join(e.Configuration, ", "))
}

func (e *UnobservedError) Unwrap() error { return ErrUnobservedConfiguration }

// Estimator fills chance-node CPTs from fully observed rows using additive
// smoothing: P(v|pa) = (N(v,pa) + a) / (N(pa) + a*|dom(v)|).
type Estimator struct {
	alpha float64
}

// NewEstimator returns an estimator with smoothing strength alpha.
func NewEstimator(alpha float64) (*Estimator, error) {
	if alpha < 0 {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidSmoothing, alpha)
	}
	return &Estimator{alpha: alpha}, nil
}

func (e *Estimator) Smoothing() float64 { return e.alpha }

// Fit estimates the CPT of every chance node of g from d and freezes g.
// The dataset must have a column for every chance node.
func (e *Estimator) Fit(g *bayes.Graph, d *dataset.Dataset) error {
	names := chanceNames(g)
	enc, err := encode(g, d, names)
	if err != nil {
		return err
	}
	return e.fitFamilies(g, enc, names)
}

// FitObserved estimates the families whose members are all dataset columns
// and gives the remaining chance nodes uniform CPTs. It returns the names of
// the nodes that were left uniform, then freezes g.
func (e *Estimator) FitObserved(g *bayes.Graph, d *dataset.Dataset) ([]string, error) {
	var observed []string
	for _, n := range g.NodesByRole(bayes.Chance) {
		if _, ok := d.ColumnIndex(n.Name()); ok {
			observed = append(observed, n.Name())
		}
	}
	enc, err := encode(g, d, observed)
	if err != nil {
		return nil, err
	}

	var fit, uniform []string
	for _, n := range g.NodesByRole(bayes.Chance) {
		if familyObserved(n, enc) {
			fit = append(fit, n.Name())
			continue
		}
		uniform = append(uniform, n.Name())
		if err := g.SetTable(n.Name(), bayes.UniformTable(n.Configurations(), n.Card())); err != nil {
			return nil, err
		}
	}
	if err := e.fitFamilies(g, enc, fit); err != nil {
		return nil, err
	}
	return uniform, nil
}

func familyObserved(n *bayes.Node, enc *encoded) bool {
	if _, ok := enc.lookup(n.Name()); !ok {
		return false
	}
	for _, p := range n.Parents() {
		if _, ok := enc.lookup(p); !ok {
			return false
		}
	}
	return true
}

func (e *Estimator) fitFamilies(g *bayes.Graph, enc *encoded, names []string) error {
	for _, name := range names {
		n := g.MustNode(name)
		child, _ := enc.lookup(name)
		parents := make([]int, 0, len(n.Parents()))
		for _, p := range n.Parents() {
			idx, _ := enc.lookup(p)
			parents = append(parents, idx)
		}
		cpt, err := e.estimate(g, enc.counts(child, parents), n)
		if err != nil {
			return err
		}
		if err := g.SetTable(name, cpt); err != nil {
			return err
		}
	}
	g.Freeze()
	return nil
}

// estimate normalizes family counts into a smoothed CPT.
func (e *Estimator) estimate(g *bayes.Graph, counts []float64, n *bayes.Node) ([]float64, error) {
	r := n.Card()
	cpt := make([]float64, len(counts))
	for row := 0; row < len(counts)/r; row++ {
		slice := counts[row*r : (row+1)*r]
		total := floats.Sum(slice)
		denom := total + e.alpha*float64(r)
		if denom == 0 {
			return nil, &UnobservedError{Node: n.Name(), Configuration: describeConfig(g, n, row)}
		}
		for v := range slice {
			cpt[row*r+v] = (slice[v] + e.alpha) / denom
		}
	}
	return cpt, nil
}

func describeConfig(g *bayes.Graph, n *bayes.Node, row int) []string {
	parents := n.Parents()
	values := bayes.DecodeConfig(row, n.ParentCards())
	out := make([]string, len(parents))
	for i, p := range parents {
		out[i] = p + "=" + g.MustNode(p).Labels()[values[i]]
	}
	return out
}

func chanceNames(g *bayes.Graph) []string {
	nodes := g.NodesByRole(bayes.Chance)
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name()
	}
	return names
}
