package decision

import (
	"github.com/moolen/riskgraph/internal/bayes"
	"github.com/moolen/riskgraph/internal/logging"
)

const (
	DecisionNode = "ApproveLoan"
	UtilityNode  = "Utility"
	OutcomeNode  = "CreditRisk"

	Approve = "Approve"
	Reject  = "Reject"
)

// Payoffs holds the payoff of each (outcome, action) pair of the credit
// diagram.
type Payoffs struct {
	GoodApprove float64 `yaml:"good_approve"`
	BadApprove  float64 `yaml:"bad_approve"`
	GoodReject  float64 `yaml:"good_reject"`
	BadReject   float64 `yaml:"bad_reject"`
}

// DefaultPayoffs follows the cost matrix shipped with the German credit
// data: approving a bad applicant costs 5, rejecting a good one costs 1.
func DefaultPayoffs() Payoffs {
	return Payoffs{GoodApprove: 0, BadApprove: -5, GoodReject: -1, BadReject: 0}
}

// CreditDiagram extends bn with the loan decision. CreditRisk must be a
// chance node with the labels Good and Bad.
func CreditDiagram(bn *bayes.Graph, payoffs Payoffs) (*Diagram, error) {
	d, err := FromNetwork(bn)
	if err != nil {
		return nil, err
	}
	if err := d.AddDecision(DecisionNode, []string{Approve, Reject}); err != nil {
		return nil, err
	}
	if err := d.AddArc(OutcomeNode, DecisionNode); err != nil {
		return nil, err
	}
	if err := d.AddUtility(UtilityNode); err != nil {
		return nil, err
	}
	if err := d.AddArc(DecisionNode, UtilityNode); err != nil {
		return nil, err
	}
	if err := d.AddArc(OutcomeNode, UtilityNode); err != nil {
		return nil, err
	}

	cells := []struct {
		outcome, action string
		value           float64
	}{
		{"Good", Approve, payoffs.GoodApprove},
		{"Bad", Approve, payoffs.BadApprove},
		{"Good", Reject, payoffs.GoodReject},
		{"Bad", Reject, payoffs.BadReject},
	}
	for _, c := range cells {
		assignment := map[string]string{OutcomeNode: c.outcome, DecisionNode: c.action}
		if err := d.SetUtilityAt(UtilityNode, assignment, c.value); err != nil {
			return nil, err
		}
	}
	d.logger.InfoWithFields("built credit influence diagram",
		logging.Field("nodes", d.g.Len()),
		logging.Field("bad_approve", payoffs.BadApprove),
		logging.Field("good_reject", payoffs.GoodReject),
	)
	return d, nil
}
