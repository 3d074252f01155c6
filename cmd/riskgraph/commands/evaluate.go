package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moolen/riskgraph/internal/bayes"
	"github.com/moolen/riskgraph/internal/config"
	"github.com/moolen/riskgraph/internal/decision"
	"github.com/moolen/riskgraph/internal/evaluation"
	"github.com/moolen/riskgraph/internal/logging"
	"github.com/moolen/riskgraph/internal/netio"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Replay the dataset through the diagram and total the realized utility",
	Long: `Solve the ApproveLoan decision for every row of the dataset, using the other
columns as evidence, and sum the utility of each chosen action under the
recorded CreditRisk. A plain network (no decision node) is extended with the
configured utilities first.`,
	RunE: runEvaluate,
}

func init() {
	def := config.Default().Evaluate
	f := evaluateCmd.Flags()
	f.String("diagram", def.Diagram, "Influence diagram (.xml) or network (.bif, .xml)")
	f.String("data", def.Data, "Raw german.data file or processed CSV")
	f.String("policy", def.Policy, "Row error policy: skip or abort")
	f.Int("workers", def.Workers, "Goroutines evaluating rows")
	f.String("report", "", "Write the YAML evaluation report to this path")

	bindFlag(f, "diagram", "evaluate.diagram")
	bindFlag(f, "data", "evaluate.data")
	bindFlag(f, "policy", "evaluate.policy")
	bindFlag(f, "workers", "evaluate.workers")
	bindFlag(f, "report", "evaluate.report")
}

// loadDiagram reads a diagram, building the credit diagram around g when
// the file holds a plain network.
func loadDiagram(path string, payoffs decision.Payoffs) (*decision.Diagram, error) {
	g, err := netio.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(g.NodesByRole(bayes.Decision)) > 0 {
		return decision.Wrap(g), nil
	}
	logging.GetLogger("cli").Info("%s has no decision node, building the credit diagram", path)
	return decision.CreditDiagram(g, payoffs)
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	cfg := state.cfg.Evaluate

	policy, err := evaluation.ParseErrorPolicy(cfg.Policy)
	if err != nil {
		return err
	}
	d, err := loadDiagram(cfg.Diagram, state.cfg.Diagram.Utility)
	if err != nil {
		return err
	}
	data, err := loadDataset(cfg.Data)
	if err != nil {
		return err
	}
	ev, err := evaluation.New(d, evaluation.Options{
		Policy:  policy,
		Workers: cfg.Workers,
		Metrics: evaluation.NewMetrics(state.registry),
	})
	if err != nil {
		return err
	}

	session, err := ev.Evaluate(cmd.Context(), data)
	if err != nil {
		return err
	}

	p := newPrinter(cmd.OutOrStdout())
	p.title("Policy evaluation %s", session.ID)
	p.kv("rows", session.Rows)
	p.kv("evaluated", session.Count)
	p.kv("total utility", fmt.Sprintf("%.4f", session.Total))
	p.kv("mean utility", fmt.Sprintf("%.4f", session.Mean()))
	p.counts("decisions", session.Decisions)
	for _, outcome := range sortedKeys(session.Confusion) {
		p.counts("truth "+outcome, session.Confusion[outcome])
	}
	if n := session.Skipped(); n > 0 {
		p.warn("%d rows skipped; first: %s", n, session.Errors[0].Error())
	}

	if cfg.Report != "" {
		return session.WriteReportFile(cfg.Report)
	}
	return nil
}
