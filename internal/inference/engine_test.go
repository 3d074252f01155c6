package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/riskgraph/internal/bayes"
)

// chain builds A -> B -> C with binary domains.
func chain(t *testing.T) *bayes.Graph {
	t.Helper()
	g := bayes.New("chain")
	require.NoError(t, g.AddNode("A", []string{"a0", "a1"}))
	require.NoError(t, g.AddNode("B", []string{"b0", "b1"}))
	require.NoError(t, g.AddNode("C", []string{"c0", "c1"}))
	require.NoError(t, g.AddArc("A", "B"))
	require.NoError(t, g.AddArc("B", "C"))
	require.NoError(t, g.SetTable("A", []float64{0.6, 0.4}))
	require.NoError(t, g.SetTable("B", []float64{0.7, 0.3, 0.2, 0.8}))
	require.NoError(t, g.SetTable("C", []float64{0.9, 0.1, 0.4, 0.6}))
	return g
}

func newEngine(t *testing.T, g *bayes.Graph) *Engine {
	t.Helper()
	e, err := NewEngine(g)
	require.NoError(t, err)
	return e
}

func TestPosteriorWithoutEvidence(t *testing.T) {
	e := newEngine(t, chain(t))

	tests := []struct {
		node string
		want []float64
	}{
		{node: "A", want: []float64{0.6, 0.4}},
		{node: "B", want: []float64{0.5, 0.5}},
		{node: "C", want: []float64{0.65, 0.35}},
	}
	for _, tt := range tests {
		t.Run(tt.node, func(t *testing.T) {
			got, err := e.Posterior(tt.node)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, got, 1e-12)
		})
	}
}

func TestPosteriorWithEvidence(t *testing.T) {
	e := newEngine(t, chain(t))

	require.NoError(t, e.SetEvidence(map[string]string{"C": "c0"}))
	got, err := e.Posterior("A")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{9.0 / 13, 4.0 / 13}, got, 1e-12)

	pe, err := e.ProbabilityOfEvidence()
	require.NoError(t, err)
	assert.InDelta(t, 0.65, pe, 1e-12)

	// Later calls overwrite existing keys.
	require.NoError(t, e.SetEvidence(map[string]string{"C": "c1", "A": "a1"}))
	got, err = e.Posterior("B")
	require.NoError(t, err)
	// P(B | a1, c1) is proportional to {0.2*0.1, 0.8*0.6}.
	assert.InDeltaSlice(t, []float64{0.02 / 0.5, 0.48 / 0.5}, got, 1e-12)
}

func TestEvidencedNodeIsOneHot(t *testing.T) {
	e := newEngine(t, chain(t))
	require.NoError(t, e.SetEvidence(map[string]string{"B": "b1"}))

	got, err := e.Posterior("B")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 1}, got, 1e-15)

	got, err = e.Posterior("C")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.4, 0.6}, got, 1e-12)
}

func TestClearEvidenceMatchesFreshEngine(t *testing.T) {
	e := newEngine(t, chain(t))
	require.NoError(t, e.SetEvidence(map[string]string{"C": "c1"}))
	_, err := e.Posterior("A")
	require.NoError(t, err)
	e.ClearEvidence()
	assert.Empty(t, e.Evidence())

	fresh := newEngine(t, chain(t))
	for _, name := range []string{"A", "B", "C"} {
		want, err := fresh.Posterior(name)
		require.NoError(t, err)
		got, err := e.Posterior(name)
		require.NoError(t, err)
		assert.InDeltaSlice(t, want, got, 1e-12, name)
	}
}

func TestSetEvidenceValidatesEveryEntry(t *testing.T) {
	e := newEngine(t, chain(t))

	err := e.SetEvidence(map[string]string{"A": "a1", "Z": "z0"})
	assert.ErrorIs(t, err, bayes.ErrUnknownNode)
	assert.Empty(t, e.Evidence())

	err = e.SetEvidence(map[string]string{"A": "a2"})
	assert.ErrorIs(t, err, bayes.ErrInvalidValue)
	assert.Empty(t, e.Evidence())

	// Surrounding whitespace is ignored.
	require.NoError(t, e.SetEvidence(map[string]string{"A": " a1 "}))
	assert.Equal(t, map[string]string{"A": "a1"}, e.Evidence())

	_, err = e.Posterior("Nope")
	assert.ErrorIs(t, err, bayes.ErrUnknownNode)
}

func TestImpossibleEvidence(t *testing.T) {
	g := bayes.New("zero")
	require.NoError(t, g.AddNode("X", []string{"x0", "x1"}))
	require.NoError(t, g.AddNode("Y", []string{"y0", "y1"}))
	require.NoError(t, g.AddArc("X", "Y"))
	require.NoError(t, g.SetTable("X", []float64{0, 1}))
	require.NoError(t, g.SetTable("Y", []float64{0.5, 0.5, 1, 0}))

	e := newEngine(t, g)
	require.NoError(t, e.SetEvidence(map[string]string{"Y": "y1"}))
	_, err := e.Posterior("X")
	assert.ErrorIs(t, err, bayes.ErrImpossibleEvidence)
}

// A is uniform, B copies A and C copies B.
func TestDeterministicChain(t *testing.T) {
	g := bayes.New("copy")
	require.NoError(t, g.AddNode("A", []string{"0", "1"}))
	require.NoError(t, g.AddNode("B", []string{"0", "1"}))
	require.NoError(t, g.AddNode("C", []string{"0", "1"}))
	require.NoError(t, g.AddArc("A", "B"))
	require.NoError(t, g.AddArc("B", "C"))
	require.NoError(t, g.SetTable("A", []float64{0.5, 0.5}))
	require.NoError(t, g.SetTable("B", []float64{1, 0, 0, 1}))
	require.NoError(t, g.SetTable("C", []float64{1, 0, 0, 1}))

	e := newEngine(t, g)
	require.NoError(t, e.SetEvidence(map[string]string{"A": "0"}))
	got, err := e.Posterior("C")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 0}, got, 1e-15)

	got, err = e.Posterior("B")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 0}, got, 1e-15)

	require.NoError(t, e.SetEvidence(map[string]string{"C": "1"}))
	_, err = e.Posterior("B")
	assert.ErrorIs(t, err, bayes.ErrImpossibleEvidence)
	_, err = e.Posterior("C")
	assert.ErrorIs(t, err, bayes.ErrImpossibleEvidence)
	pe, err := e.ProbabilityOfEvidence()
	require.NoError(t, err)
	assert.Zero(t, pe)
}

func TestNewEngineFreezesAndRequiresTables(t *testing.T) {
	g := chain(t)
	newEngine(t, g)
	assert.True(t, g.Frozen())
	assert.ErrorIs(t, g.AddNode("D", []string{"d"}), bayes.ErrFrozen)

	bare := bayes.New("bare")
	require.NoError(t, bare.AddNode("A", []string{"a0", "a1"}))
	_, err := NewEngine(bare)
	assert.ErrorIs(t, err, bayes.ErrMissingTable)
}

func TestJointPosterior(t *testing.T) {
	e := newEngine(t, chain(t))
	j, err := e.JointPosterior("C", "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A"}, j.Names)
	// P(c0, a0) = 0.6 * 0.75, P(c0, a1) = 0.4 * 0.5.
	assert.InDelta(t, 0.45, j.Probability(0, 0), 1e-12)
	assert.InDelta(t, 0.20, j.Probability(0, 1), 1e-12)
	assert.InDelta(t, 1.0, j.Values[0]+j.Values[1]+j.Values[2]+j.Values[3], 1e-12)
}

func TestJointPosteriorRejectsRepeatedNames(t *testing.T) {
	e := newEngine(t, chain(t))
	_, err := e.JointPosterior("A", "A")
	assert.ErrorIs(t, err, ErrDuplicateQuery)

	_, err = e.JointPosterior("C", "B", "C")
	assert.ErrorIs(t, err, ErrDuplicateQuery)
}

func TestExpectedUtility(t *testing.T) {
	g := chain(t)
	require.NoError(t, g.AddDecision("D", []string{"go", "stop"}))
	require.NoError(t, g.AddUtility("U"))
	require.NoError(t, g.AddArc("D", "U"))
	require.NoError(t, g.AddArc("C", "U"))
	require.NoError(t, g.SetTable("U", []float64{10, -5, 0, 0}))
	e := newEngine(t, g)

	eu, err := e.ExpectedUtility("U", map[string]string{"D": "go"})
	require.NoError(t, err)
	assert.InDelta(t, 0.65*10-0.35*5, eu, 1e-12)

	eu, err = e.ExpectedUtility("U", map[string]string{"D": "stop"})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, eu, 1e-12)

	_, err = e.ExpectedUtility("U", nil)
	assert.ErrorIs(t, err, ErrMissingDecision)

	_, err = e.ExpectedUtility("C", map[string]string{"D": "go"})
	assert.ErrorIs(t, err, bayes.ErrRoleMismatch)

	err = e.SetEvidence(map[string]string{"D": "go"})
	assert.ErrorIs(t, err, bayes.ErrRoleMismatch)
}

func TestFactorOperations(t *testing.T) {
	a := &factor{vars: []int{0}, cards: []int{2}, values: []float64{0.6, 0.4}}
	ba := &factor{vars: []int{0, 1}, cards: []int{2, 3}, values: []float64{0.1, 0.2, 0.7, 0.5, 0.25, 0.25}}

	joint := product(a, ba)
	assert.Equal(t, []int{0, 1}, joint.vars)
	assert.InDeltaSlice(t, []float64{0.06, 0.12, 0.42, 0.2, 0.1, 0.1}, joint.values, 1e-12)

	marginal := joint.sumOut(0)
	assert.Equal(t, []int{1}, marginal.vars)
	assert.InDeltaSlice(t, []float64{0.26, 0.22, 0.52}, marginal.values, 1e-12)

	restricted := ba.restrict(1, 2)
	assert.Equal(t, []int{0}, restricted.vars)
	assert.InDeltaSlice(t, []float64{0.7, 0.25}, restricted.values, 1e-12)

	swapped := ba.reorder([]int{1, 0})
	assert.InDeltaSlice(t, []float64{0.1, 0.5, 0.2, 0.25, 0.7, 0.25}, swapped.values, 1e-12)
}
