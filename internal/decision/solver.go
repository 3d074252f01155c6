package decision

import (
	"fmt"

	"github.com/moolen/riskgraph/internal/bayes"
	"github.com/moolen/riskgraph/internal/inference"
)

// Candidate is one action and its expected utility.
type Candidate struct {
	Action          string  `yaml:"action"`
	ExpectedUtility float64 `yaml:"expected_utility"`
}

// Choice is the outcome of OptimalDecision. Candidates are listed in the
// decision node's declaration order.
type Choice struct {
	Decision   string      `yaml:"decision"`
	Action     string      `yaml:"action"`
	Index      int         `yaml:"-"`
	Candidates []Candidate `yaml:"candidates"`
}

// ExpectedUtility of the chosen action.
func (c *Choice) ExpectedUtility() float64 {
	return c.Candidates[c.Index].ExpectedUtility
}

// Solver evaluates decisions against one inference engine. It is not safe for
// concurrent use.
type Solver struct {
	g      *bayes.Graph
	engine *inference.Engine
}

func (s *Solver) Engine() *inference.Engine { return s.engine }

// OptimalDecision sets evidence, computes for each action the summed expected
// utility of every utility node downstream of decision, and returns the best
// action. Ties go to the action declared first. Evidence is cleared before
// returning.
func (s *Solver) OptimalDecision(decision string, evidence map[string]string) (*Choice, error) {
	dn, ok := s.g.Node(decision)
	if !ok {
		return nil, fmt.Errorf("%w: %q", bayes.ErrUnknownNode, decision)
	}
	if dn.Role() != bayes.Decision {
		return nil, fmt.Errorf("%s node %q is not a decision: %w", dn.Role(), decision, bayes.ErrRoleMismatch)
	}
	utilities, err := s.downstreamUtilities(decision)
	if err != nil {
		return nil, err
	}

	s.engine.ClearEvidence()
	defer s.engine.ClearEvidence()
	if err := s.engine.SetEvidence(evidence); err != nil {
		return nil, err
	}

	choice := &Choice{Decision: decision, Index: -1}
	for i, action := range dn.Labels() {
		eu := 0.0
		for _, u := range utilities {
			v, err := s.engine.ExpectedUtility(u, map[string]string{decision: action})
			if err != nil {
				return nil, err
			}
			eu += v
		}
		choice.Candidates = append(choice.Candidates, Candidate{Action: action, ExpectedUtility: eu})
		if choice.Index < 0 || eu > choice.Candidates[choice.Index].ExpectedUtility {
			choice.Index = i
		}
	}
	choice.Action = choice.Candidates[choice.Index].Action
	return choice, nil
}

func (s *Solver) downstreamUtilities(decision string) ([]string, error) {
	reach, err := s.g.Descendants(decision)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, n := range s.g.NodesByRole(bayes.Utility) {
		if reach[n.Name()] {
			out = append(out, n.Name())
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("decision %q influences no utility node", decision)
	}
	return out, nil
}

// RealizedUtility reads the utility table of node for a complete assignment
// of its parents, typically the true outcome plus the chosen action.
func RealizedUtility(g *bayes.Graph, node string, assignment map[string]string) (float64, error) {
	n, ok := g.Node(node)
	if !ok {
		return 0, fmt.Errorf("%w: %q", bayes.ErrUnknownNode, node)
	}
	if n.Role() != bayes.Utility || !n.HasTable() {
		return 0, fmt.Errorf("node %q: %w", node, bayes.ErrMissingTable)
	}
	values := make([]int, 0, len(n.Parents()))
	for _, p := range n.Parents() {
		label, ok := assignment[p]
		if !ok {
			return 0, fmt.Errorf("utility %q: no value for parent %q", node, p)
		}
		idx, ok := g.MustNode(p).LabelIndex(label)
		if !ok {
			return 0, &bayes.ValueError{Node: p, Value: label}
		}
		values = append(values, idx)
	}
	return n.UtilityAt(values), nil
}
