package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moolen/riskgraph/internal/bayes"
	"github.com/moolen/riskgraph/internal/decision"
	"github.com/moolen/riskgraph/internal/inference"
	"github.com/moolen/riskgraph/internal/netio"
)

var (
	inferNetwork  string
	inferQueries  []string
	inferEvidence []string
)

var inferCmd = &cobra.Command{
	Use:   "infer",
	Short: "Query posteriors or the optimal decision given evidence",
	Long: `Compute exact posteriors by variable elimination. Querying a decision node
of a diagram prints the expected utility of every action instead.

Example:
  riskgraph infer --network out/german_credit_diagram.xml \
    --query CreditRisk --query ApproveLoan \
    --evidence CheckingAccount="No Checking" --evidence Age=Young`,
	RunE: runInfer,
}

func init() {
	f := inferCmd.Flags()
	f.StringVar(&inferNetwork, "network", "", "Network or diagram (.bif or .xml)")
	f.StringArrayVarP(&inferQueries, "query", "q", nil, "Node to query (repeatable)")
	f.StringArrayVarP(&inferEvidence, "evidence", "e", nil, "Observation as node=label (repeatable)")
	_ = inferCmd.MarkFlagRequired("network")
	_ = inferCmd.MarkFlagRequired("query")
}

// parseEvidence splits node=label pairs on the first '='.
func parseEvidence(pairs []string) (map[string]string, error) {
	evidence := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		node, label, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(node) == "" {
			return nil, fmt.Errorf("invalid evidence %q, want node=label", pair)
		}
		evidence[strings.TrimSpace(node)] = label
	}
	return evidence, nil
}

func runInfer(cmd *cobra.Command, _ []string) error {
	evidence, err := parseEvidence(inferEvidence)
	if err != nil {
		return err
	}
	g, err := netio.ReadFile(inferNetwork)
	if err != nil {
		return err
	}

	p := newPrinter(cmd.OutOrStdout())
	if len(evidence) > 0 {
		p.title("Evidence")
		for _, node := range sortedKeys(evidence) {
			p.kv(node, evidence[node])
		}
	}

	var solver *decision.Solver
	engine, err := inference.NewEngine(g)
	if err != nil {
		return err
	}
	if err := engine.SetEvidence(evidence); err != nil {
		return err
	}
	if pe, err := engine.ProbabilityOfEvidence(); err == nil && len(evidence) > 0 {
		p.kv("P(evidence)", fmt.Sprintf("%.6g", pe))
	}

	for _, q := range inferQueries {
		n, ok := g.Node(q)
		if !ok {
			return fmt.Errorf("%w: %q", bayes.ErrUnknownNode, q)
		}
		switch n.Role() {
		case bayes.Chance:
			probs, err := engine.Posterior(q)
			if err != nil {
				return err
			}
			p.title("P(%s | evidence)", q)
			p.distribution(n.Labels(), probs)
		case bayes.Decision:
			if solver == nil {
				if solver, err = decision.Wrap(g).NewSolver(); err != nil {
					return err
				}
			}
			choice, err := solver.OptimalDecision(q, evidence)
			if err != nil {
				return err
			}
			p.title("Optimal %s", q)
			for _, c := range choice.Candidates {
				p.kv("EU("+c.Action+")", fmt.Sprintf("%.4f", c.ExpectedUtility))
			}
			p.kv("decision", choice.Action)
		default:
			return fmt.Errorf("cannot query %s node %q: %w", n.Role(), q, bayes.ErrRoleMismatch)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
