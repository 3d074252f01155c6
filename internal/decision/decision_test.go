package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/riskgraph/internal/bayes"
)

// creditNetwork is Checking -> CreditRisk where P(Bad | low) = 0.2 and
// P(Bad | high) = 0.1.
func creditNetwork(t *testing.T) *bayes.Graph {
	t.Helper()
	g := bayes.New("credit")
	require.NoError(t, g.AddNode("Checking", []string{"low", "high"}))
	require.NoError(t, g.AddNode(OutcomeNode, []string{"Good", "Bad"}))
	require.NoError(t, g.AddArc("Checking", OutcomeNode))
	require.NoError(t, g.SetTable("Checking", []float64{0.5, 0.5}))
	require.NoError(t, g.SetTable(OutcomeNode, []float64{0.8, 0.2, 0.9, 0.1}))
	g.Freeze()
	return g
}

func TestOptimalDecisionPicksHighestExpectedUtility(t *testing.T) {
	d, err := CreditDiagram(creditNetwork(t), DefaultPayoffs())
	require.NoError(t, err)

	tests := []struct {
		checking string
		want     string
		approve  float64
		reject   float64
	}{
		{checking: "low", want: Reject, approve: -1.0, reject: -0.8},
		{checking: "high", want: Approve, approve: -0.5, reject: -0.9},
	}
	for _, tt := range tests {
		t.Run(tt.checking, func(t *testing.T) {
			choice, err := d.OptimalDecision(DecisionNode, map[string]string{"Checking": tt.checking})
			require.NoError(t, err)
			assert.Equal(t, tt.want, choice.Action)
			require.Len(t, choice.Candidates, 2)
			assert.Equal(t, Approve, choice.Candidates[0].Action)
			assert.InDelta(t, tt.approve, choice.Candidates[0].ExpectedUtility, 1e-12)
			assert.InDelta(t, tt.reject, choice.Candidates[1].ExpectedUtility, 1e-12)
		})
	}

	// Evidence does not leak between calls.
	assert.Empty(t, d.solver.Engine().Evidence())
}

func TestOptimalDecisionTieGoesToFirstAction(t *testing.T) {
	flat := Payoffs{GoodApprove: 1, BadApprove: 1, GoodReject: 1, BadReject: 1}
	d, err := CreditDiagram(creditNetwork(t), flat)
	require.NoError(t, err)

	choice, err := d.OptimalDecision(DecisionNode, nil)
	require.NoError(t, err)
	assert.Equal(t, Approve, choice.Action)
	assert.Equal(t, 0, choice.Index)
	assert.InDelta(t, 1.0, choice.ExpectedUtility(), 1e-12)
}

func TestFromNetworkCopiesChanceTables(t *testing.T) {
	bn := creditNetwork(t)
	d, err := CreditDiagram(bn, DefaultPayoffs())
	require.NoError(t, err)

	assert.Equal(t, 2, bn.Len(), "source network must not change")
	for _, n := range bn.Nodes() {
		copied := d.Graph().MustNode(n.Name())
		assert.Equal(t, n.Table(), copied.Table())
		assert.NoError(t, bayes.CheckDistribution(copied.Table(), copied.Card()))
	}
	assert.Equal(t, []string{OutcomeNode}, d.Graph().MustNode(DecisionNode).Parents())
	assert.Equal(t, []string{DecisionNode, OutcomeNode}, d.Graph().MustNode(UtilityNode).Parents())
	// Rows are (Approve, Good), (Approve, Bad), (Reject, Good), (Reject, Bad).
	assert.Equal(t, []float64{0, -5, -1, 0}, d.Graph().MustNode(UtilityNode).Table())

	missing := bayes.New("missing")
	require.NoError(t, missing.AddNode("A", []string{"a"}))
	_, err = FromNetwork(missing)
	assert.ErrorIs(t, err, bayes.ErrMissingTable)
}

func TestDiagramEditing(t *testing.T) {
	d, err := FromNetwork(creditNetwork(t))
	require.NoError(t, err)
	require.NoError(t, d.AddDecision("Act", []string{"yes", "no"}))
	require.NoError(t, d.AddUtility("Gain"))

	assert.ErrorIs(t, d.AddArc("Act", "Checking"), bayes.ErrInvalidArc)
	assert.ErrorIs(t, d.AddArc("Gain", "Act"), bayes.ErrInvalidArc)
	require.NoError(t, d.AddArc("Act", "Gain"))

	assert.ErrorIs(t, d.SetUtility("Checking", []float64{1, 2}), bayes.ErrRoleMismatch)
	assert.ErrorIs(t, d.SetUtility("Gain", []float64{1}), bayes.ErrShapeMismatch)
	assert.ErrorIs(t, d.SetUtilityAt("Gain", map[string]string{"Act": "maybe"}, 1), bayes.ErrInvalidValue)
	require.NoError(t, d.SetUtilityAt("Gain", map[string]string{"Act": "no"}, 3))
	assert.Equal(t, []float64{0, 3}, d.Graph().MustNode("Gain").Table())

	// Solving freezes the diagram.
	choice, err := d.OptimalDecision("Act", nil)
	require.NoError(t, err)
	assert.Equal(t, "no", choice.Action)
	assert.ErrorIs(t, d.AddUtility("Late"), bayes.ErrFrozen)

	_, err = d.OptimalDecision("Checking", nil)
	assert.ErrorIs(t, err, bayes.ErrRoleMismatch)
}

func TestNewSolverRequiresUtilityTables(t *testing.T) {
	d, err := FromNetwork(creditNetwork(t))
	require.NoError(t, err)
	require.NoError(t, d.AddDecision("Act", []string{"yes", "no"}))
	require.NoError(t, d.AddUtility("Gain"))
	require.NoError(t, d.AddArc("Act", "Gain"))
	_, err = d.NewSolver()
	assert.ErrorIs(t, err, bayes.ErrMissingTable)
}

func TestRealizedUtility(t *testing.T) {
	d, err := CreditDiagram(creditNetwork(t), DefaultPayoffs())
	require.NoError(t, err)

	u, err := RealizedUtility(d.Graph(), UtilityNode, map[string]string{OutcomeNode: "Bad", DecisionNode: Approve})
	require.NoError(t, err)
	assert.Equal(t, -5.0, u)

	_, err = RealizedUtility(d.Graph(), UtilityNode, map[string]string{OutcomeNode: "Bad"})
	assert.Error(t, err)

	_, err = RealizedUtility(d.Graph(), UtilityNode, map[string]string{OutcomeNode: "Unknown", DecisionNode: Approve})
	assert.ErrorIs(t, err, bayes.ErrInvalidValue)
}
