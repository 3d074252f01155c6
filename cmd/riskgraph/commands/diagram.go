package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moolen/riskgraph/internal/config"
	"github.com/moolen/riskgraph/internal/decision"
	"github.com/moolen/riskgraph/internal/netio"
)

var diagramCmd = &cobra.Command{
	Use:   "diagram",
	Short: "Extend a network into the loan approval influence diagram",
	Long: `Copy a learned network into an influence diagram with an ApproveLoan
decision and a Utility node over (ApproveLoan, CreditRisk), then write it as
diagram XML.`,
	RunE: runDiagram,
}

func init() {
	def := config.Default().Diagram
	f := diagramCmd.Flags()
	f.String("network", def.Network, "Input network (.bif or .xml)")
	f.StringP("output", "o", def.Output, "Output diagram path (.xml)")
	f.Float64("good-approve", def.Utility.GoodApprove, "Utility of approving a good applicant")
	f.Float64("bad-approve", def.Utility.BadApprove, "Utility of approving a bad applicant")
	f.Float64("good-reject", def.Utility.GoodReject, "Utility of rejecting a good applicant")
	f.Float64("bad-reject", def.Utility.BadReject, "Utility of rejecting a bad applicant")

	bindFlag(f, "network", "diagram.network")
	bindFlag(f, "output", "diagram.output")
	bindFlag(f, "good-approve", "diagram.utility.good_approve")
	bindFlag(f, "bad-approve", "diagram.utility.bad_approve")
	bindFlag(f, "good-reject", "diagram.utility.good_reject")
	bindFlag(f, "bad-reject", "diagram.utility.bad_reject")
}

func runDiagram(cmd *cobra.Command, _ []string) error {
	cfg := state.cfg.Diagram

	bn, err := netio.ReadFile(cfg.Network)
	if err != nil {
		return err
	}
	d, err := decision.CreditDiagram(bn, cfg.Utility)
	if err != nil {
		return err
	}
	if err := netio.WriteFile(cfg.Output, d.Graph()); err != nil {
		return err
	}
	// Solving freezes the diagram, so it happens after writing.
	choice, err := d.OptimalDecision(decision.DecisionNode, nil)
	if err != nil {
		return err
	}

	p := newPrinter(cmd.OutOrStdout())
	p.title("Influence diagram %s", d.Graph().Name())
	p.kv("nodes", d.Graph().Len())
	p.kv("output", cfg.Output)
	for _, c := range choice.Candidates {
		p.kv("EU("+c.Action+")", fmt.Sprintf("%.4f", c.ExpectedUtility))
	}
	p.kv("prior decision", choice.Action)
	return nil
}
