// Package inference computes exact posteriors and expected utilities over a
// frozen network by variable elimination.
package inference

import (
	"errors"
	"fmt"
	"sort"

	"github.com/moolen/riskgraph/internal/bayes"
)

var (
	ErrMissingDecision = errors.New("decision not assigned")
	ErrDuplicateQuery  = errors.New("node queried more than once")
)

// Joint is a normalized distribution over several chance nodes, row-major in
// the order of Names.
type Joint struct {
	Names  []string
	Labels [][]string
	Values []float64
}

// Probability returns P(Names[i] = values[i] for all i) by domain index.
func (j *Joint) Probability(values ...int) float64 {
	cards := make([]int, len(j.Labels))
	for i, l := range j.Labels {
		cards[i] = len(l)
	}
	return j.Values[bayes.ConfigIndex(cards, values)]
}

// Engine answers queries against one network under a mutable evidence set.
// An Engine is not safe for concurrent use; create one per goroutine. The
// underlying graph is frozen and can be shared.
type Engine struct {
	g        *bayes.Graph
	labels   *bayes.LabelIndex
	id       map[string]int
	chance   []*bayes.Node
	rank     map[string]int // topological position
	evidence map[string]int
}

// NewEngine freezes g and prepares it for queries. Every chance node must
// have a CPT.
func NewEngine(g *bayes.Graph) (*Engine, error) {
	e := &Engine{
		g:        g,
		id:       make(map[string]int),
		rank:     make(map[string]int),
		evidence: make(map[string]int),
	}
	for _, n := range g.NodesByRole(bayes.Chance) {
		if !n.HasTable() {
			return nil, fmt.Errorf("chance node %q: %w", n.Name(), bayes.ErrMissingTable)
		}
		e.id[n.Name()] = len(e.chance)
		e.chance = append(e.chance, n)
	}
	for i, name := range g.TopologicalOrder() {
		e.rank[name] = i
	}
	g.Freeze()
	e.labels = bayes.NewLabelIndex(g)
	return e, nil
}

// Graph returns the network the engine reads.
func (e *Engine) Graph() *bayes.Graph { return e.g }

// Labels returns the label index of the engine's graph.
func (e *Engine) Labels() *bayes.LabelIndex { return e.labels }

// SetEvidence adds or overwrites observations. Values are reconciled with
// node labels. All entries are checked before any is applied.
func (e *Engine) SetEvidence(evidence map[string]string) error {
	resolved := make(map[string]int, len(evidence))
	for name, raw := range evidence {
		n, ok := e.g.Node(name)
		if !ok {
			return fmt.Errorf("evidence: %w: %q", bayes.ErrUnknownNode, name)
		}
		if n.Role() != bayes.Chance {
			return fmt.Errorf("evidence on %s node %q: %w", n.Role(), name, bayes.ErrRoleMismatch)
		}
		idx, err := e.labels.ResolveIndex(name, raw)
		if err != nil {
			return fmt.Errorf("evidence: %w", err)
		}
		resolved[name] = idx
	}
	for name, idx := range resolved {
		e.evidence[name] = idx
	}
	return nil
}

// Evidence returns a copy of the current observations as labels.
func (e *Engine) Evidence() map[string]string {
	out := make(map[string]string, len(e.evidence))
	for name, idx := range e.evidence {
		out[name] = e.g.MustNode(name).Labels()[idx]
	}
	return out
}

// ClearEvidence returns the engine to the no-evidence state.
func (e *Engine) ClearEvidence() {
	e.evidence = make(map[string]int)
}

// Posterior returns P(name | evidence) over the node's labels.
func (e *Engine) Posterior(name string) ([]float64, error) {
	j, err := e.JointPosterior(name)
	if err != nil {
		return nil, err
	}
	return j.Values, nil
}

// JointPosterior returns P(names | evidence). Evidenced nodes come out
// one-hot.
func (e *Engine) JointPosterior(names ...string) (*Joint, error) {
	targets := make([]int, 0, len(names))
	joint := &Joint{Names: append([]string(nil), names...)}
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("query: %w: %q", ErrDuplicateQuery, name)
		}
		seen[name] = struct{}{}
		n, ok := e.g.Node(name)
		if !ok {
			return nil, fmt.Errorf("query: %w: %q", bayes.ErrUnknownNode, name)
		}
		if n.Role() != bayes.Chance {
			return nil, fmt.Errorf("query on %s node %q: %w", n.Role(), name, bayes.ErrRoleMismatch)
		}
		targets = append(targets, e.id[name])
		joint.Labels = append(joint.Labels, n.Labels())
	}

	f, err := e.eliminate(targets)
	if err != nil {
		return nil, err
	}
	joint.Values = f.values
	return joint, nil
}

// ProbabilityOfEvidence returns P(evidence).
func (e *Engine) ProbabilityOfEvidence() (float64, error) {
	f, err := e.run(nil)
	if err != nil {
		return 0, err
	}
	return f.total(), nil
}

// eliminate returns the normalized factor over targets, in target order.
func (e *Engine) eliminate(targets []int) (*factor, error) {
	f, err := e.run(targets)
	if err != nil {
		return nil, err
	}
	if f.total() == 0 {
		return nil, fmt.Errorf("%w: evidence %v", bayes.ErrImpossibleEvidence, e.Evidence())
	}
	f = f.reorder(targets)
	f.normalize()
	return f, nil
}

// run multiplies the relevant CPTs and sums out everything except targets.
// The result is unnormalized; its total is P(evidence).
func (e *Engine) run(targets []int) (*factor, error) {
	isTarget := make(map[int]bool, len(targets))
	roots := make([]string, 0, len(targets)+len(e.evidence))
	for _, t := range targets {
		isTarget[t] = true
		roots = append(roots, e.chance[t].Name())
	}
	for name := range e.evidence {
		roots = append(roots, name)
	}
	// Nodes outside the ancestral set of the query and evidence sum to one
	// and can be dropped.
	relevant, err := e.g.Ancestors(roots...)
	if err != nil {
		return nil, err
	}

	var factors []*factor
	var hidden []*bayes.Node
	for _, n := range e.chance {
		if !relevant[n.Name()] {
			continue
		}
		f := cptFactor(n, e.id)
		for _, p := range append(n.Parents(), n.Name()) {
			obs, ok := e.evidence[p]
			if !ok {
				continue
			}
			if isTarget[e.id[p]] {
				f.mask(e.id[p], obs)
			} else {
				f = f.restrict(e.id[p], obs)
			}
		}
		factors = append(factors, f)
		if _, observed := e.evidence[n.Name()]; !observed && !isTarget[e.id[n.Name()]] {
			hidden = append(hidden, n)
		}
	}

	// Children are absorbed before their parents.
	sort.SliceStable(hidden, func(a, b int) bool {
		return e.rank[hidden[a].Name()] > e.rank[hidden[b].Name()]
	})
	for _, n := range hidden {
		v := e.id[n.Name()]
		var keep []*factor
		var bucket *factor
		for _, f := range factors {
			if f.position(v) < 0 {
				keep = append(keep, f)
				continue
			}
			if bucket == nil {
				bucket = f
			} else {
				bucket = product(bucket, f)
			}
		}
		if bucket != nil {
			keep = append(keep, bucket.sumOut(v))
		}
		factors = keep
	}

	result := &factor{values: []float64{1}}
	for _, f := range factors {
		result = product(result, f)
	}
	return result, nil
}

// ExpectedUtility returns the sum over the utility node's chance parents of
// P(parents | evidence) * U(parents, decisions). decisions must assign every
// decision parent of the utility node.
func (e *Engine) ExpectedUtility(utility string, decisions map[string]string) (float64, error) {
	u, ok := e.g.Node(utility)
	if !ok {
		return 0, fmt.Errorf("utility: %w: %q", bayes.ErrUnknownNode, utility)
	}
	if u.Role() != bayes.Utility {
		return 0, fmt.Errorf("%s node %q is not a utility: %w", u.Role(), utility, bayes.ErrRoleMismatch)
	}
	if !u.HasTable() {
		return 0, fmt.Errorf("utility node %q: %w", utility, bayes.ErrMissingTable)
	}

	parents := u.Parents()
	fixed := make(map[int]int) // parent position -> decision value
	var chanceNames []string
	var chancePos []int
	for i, p := range parents {
		pn := e.g.MustNode(p)
		if pn.Role() != bayes.Decision {
			chanceNames = append(chanceNames, p)
			chancePos = append(chancePos, i)
			continue
		}
		raw, ok := decisions[p]
		if !ok {
			return 0, fmt.Errorf("utility %q: %w: %q", utility, ErrMissingDecision, p)
		}
		idx, err := e.labels.ResolveIndex(p, raw)
		if err != nil {
			return 0, err
		}
		fixed[i] = idx
	}

	weights := []float64{1}
	if len(chanceNames) > 0 {
		j, err := e.JointPosterior(chanceNames...)
		if err != nil {
			return 0, err
		}
		weights = j.Values
	}

	cards := u.ParentCards()
	chanceCards := make([]int, len(chancePos))
	for i, p := range chancePos {
		chanceCards[i] = cards[p]
	}
	eu := 0.0
	for row := 0; row < u.Configurations(); row++ {
		values := bayes.DecodeConfig(row, cards)
		match := true
		for pos, want := range fixed {
			if values[pos] != want {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		chanceValues := make([]int, len(chancePos))
		for i, p := range chancePos {
			chanceValues[i] = values[p]
		}
		w := weights[bayes.ConfigIndex(chanceCards, chanceValues)]
		eu += w * u.Table()[row]
	}
	return eu, nil
}
