package bayes

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func binary() []string { return []string{"0", "1"} }

func chainGraph(t *testing.T) *Graph {
	t.Helper()
	g := New("chain")
	require.NoError(t, g.AddNode("A", binary()))
	require.NoError(t, g.AddNode("B", binary()))
	require.NoError(t, g.AddNode("C", binary()))
	require.NoError(t, g.AddArc("A", "B"))
	require.NoError(t, g.AddArc("B", "C"))
	return g
}

func TestAddNodeRejectsDuplicatesAndEmptyDomains(t *testing.T) {
	g := New("g")
	require.NoError(t, g.AddNode("A", binary()))

	err := g.AddNode("A", binary())
	assert.ErrorIs(t, err, ErrDuplicateNode)
	assert.ErrorIs(t, err, ErrStructural)

	assert.ErrorIs(t, g.AddNode("B", nil), ErrEmptyDomain)
	assert.ErrorIs(t, g.AddNode("C", []string{"x", "x"}), ErrDuplicateLabel)
	assert.Equal(t, 1, g.Len())
}

func TestAddArcErrors(t *testing.T) {
	tests := []struct {
		name   string
		parent string
		child  string
		want   error
	}{
		{name: "unknown parent", parent: "X", child: "A", want: ErrUnknownNode},
		{name: "unknown child", parent: "A", child: "X", want: ErrUnknownNode},
		{name: "self loop", parent: "A", child: "A", want: ErrCycle},
		{name: "closes cycle", parent: "C", child: "A", want: ErrCycle},
		{name: "duplicate", parent: "A", child: "B", want: ErrDuplicateArc},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := chainGraph(t)
			before := g.Arcs()

			err := g.AddArc(tt.parent, tt.child)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrStructural)
			assert.Equal(t, before, g.Arcs(), "failed AddArc must leave the graph unchanged")
		})
	}
}

func TestAddArcRoleRules(t *testing.T) {
	g := New("id")
	require.NoError(t, g.AddNode("Risk", []string{"Good", "Bad"}))
	require.NoError(t, g.AddDecision("Act", []string{"Approve", "Reject"}))
	require.NoError(t, g.AddUtility("U"))

	require.NoError(t, g.AddArc("Risk", "Act"))
	require.NoError(t, g.AddArc("Act", "U"))
	require.NoError(t, g.AddArc("Risk", "U"))

	assert.ErrorIs(t, g.AddArc("U", "Risk"), ErrInvalidArc)
	require.NoError(t, g.AddNode("Other", binary()))
	assert.ErrorIs(t, g.AddArc("Act", "Other"), ErrInvalidArc)
}

func TestSetTable(t *testing.T) {
	g := chainGraph(t)

	require.NoError(t, g.SetTable("A", []float64{0.5, 0.5}))
	require.NoError(t, g.SetTable("B", []float64{1, 0, 0, 1}))

	assert.ErrorIs(t, g.SetTable("B", []float64{1, 0}), ErrShapeMismatch)
	assert.ErrorIs(t, g.SetTable("C", []float64{0.7, 0.7, 0, 1}), ErrNotAProbability)
	assert.ErrorIs(t, g.SetTable("C", []float64{-0.5, 1.5, 0, 1}), ErrNotAProbability)
	assert.ErrorIs(t, g.SetTable("Z", []float64{1}), ErrUnknownNode)

	err := g.Validate()
	assert.ErrorIs(t, err, ErrMissingTable)
}

func TestAddArcDropsChildTable(t *testing.T) {
	g := New("g")
	require.NoError(t, g.AddNode("A", binary()))
	require.NoError(t, g.AddNode("B", binary()))
	require.NoError(t, g.SetTable("B", []float64{0.5, 0.5}))

	require.NoError(t, g.AddArc("A", "B"))
	assert.False(t, g.MustNode("B").HasTable())
	assert.Equal(t, 4, g.MustNode("B").TableSize())
}

func TestUtilityTableIsNotNormalized(t *testing.T) {
	g := New("id")
	require.NoError(t, g.AddNode("Risk", []string{"Good", "Bad"}))
	require.NoError(t, g.AddDecision("Act", []string{"Approve", "Reject"}))
	require.NoError(t, g.AddUtility("U"))
	require.NoError(t, g.AddArc("Risk", "U"))
	require.NoError(t, g.AddArc("Act", "U"))

	require.NoError(t, g.SetTable("U", []float64{0, -1, -5, 0}))
	assert.Equal(t, -5.0, g.MustNode("U").UtilityAt([]int{1, 0}))
	assert.ErrorIs(t, g.SetTable("Act", []float64{1, 0}), ErrRoleMismatch)
}

func TestFreezeBlocksMutation(t *testing.T) {
	g := chainGraph(t)
	g.Freeze()

	assert.True(t, errors.Is(g.AddNode("D", binary()), ErrFrozen))
	assert.True(t, errors.Is(g.AddArc("A", "C"), ErrFrozen))
	assert.True(t, errors.Is(g.SetTable("A", []float64{0.5, 0.5}), ErrFrozen))

	clone := g.Clone()
	assert.False(t, clone.Frozen())
	require.NoError(t, clone.AddArc("A", "C"))
}

func TestTopologicalOrderBreaksTiesByInsertion(t *testing.T) {
	g := New("g")
	for _, name := range []string{"Z", "Y", "X", "W"} {
		require.NoError(t, g.AddNode(name, binary()))
	}
	require.NoError(t, g.AddArc("X", "Z"))
	require.NoError(t, g.AddArc("W", "Y"))

	// Z becomes ready after X and was inserted before W.
	assert.Equal(t, []string{"X", "Z", "W", "Y"}, g.TopologicalOrder())
}

func TestAncestorsAndDescendants(t *testing.T) {
	g := chainGraph(t)

	anc, err := g.Ancestors("B")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"A": true, "B": true}, anc)

	desc, err := g.Descendants("A")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"B": true, "C": true}, desc)

	_, err = g.Ancestors("nope")
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestCloneAndCompare(t *testing.T) {
	g := chainGraph(t)
	require.NoError(t, g.SetTable("A", []float64{0.5, 0.5}))
	require.NoError(t, g.SetTable("B", []float64{1, 0, 0, 1}))
	require.NoError(t, g.SetTable("C", []float64{1, 0, 0, 1}))

	clone := g.Clone()
	require.NoError(t, Compare(g, clone, Tolerance))

	require.NoError(t, clone.SetTable("A", []float64{0.4, 0.6}))
	assert.Error(t, Compare(g, clone, Tolerance))
}

func TestConfigIndexRoundTrip(t *testing.T) {
	cards := []int{2, 3, 4}
	for idx := 0; idx < 24; idx++ {
		assert.Equal(t, idx, ConfigIndex(cards, DecodeConfig(idx, cards)))
	}
	assert.Equal(t, []int{12, 4, 1}, Strides(cards))
}
