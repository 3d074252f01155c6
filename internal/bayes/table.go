package bayes

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Tolerance is the allowed deviation of a CPT slice sum from 1.
const Tolerance = 1e-6

// Strides returns row-major strides for the given axis sizes.
func Strides(cards []int) []int {
	strides := make([]int, len(cards))
	s := 1
	for i := len(cards) - 1; i >= 0; i-- {
		strides[i] = s
		s *= cards[i]
	}
	return strides
}

// ConfigIndex maps per-axis values to a flat row-major index.
func ConfigIndex(cards, values []int) int {
	idx := 0
	for i, v := range values {
		idx = idx*cards[i] + v
	}
	return idx
}

// DecodeConfig is the inverse of ConfigIndex.
func DecodeConfig(index int, cards []int) []int {
	values := make([]int, len(cards))
	for i := len(cards) - 1; i >= 0; i-- {
		values[i] = index % cards[i]
		index /= cards[i]
	}
	return values
}

// CheckDistribution verifies that each consecutive slice of length card is a
// probability distribution.
func CheckDistribution(values []float64, card int) error {
	if card <= 0 || len(values)%card != 0 {
		return fmt.Errorf("%w: %d cells not divisible by domain size %d", ErrShapeMismatch, len(values), card)
	}
	for row := 0; row < len(values)/card; row++ {
		slice := values[row*card : (row+1)*card]
		for _, v := range slice {
			if v < 0 || math.IsNaN(v) {
				return fmt.Errorf("%w: negative or NaN cell in configuration %d", ErrNotAProbability, row)
			}
		}
		if sum := floats.Sum(slice); math.Abs(sum-1) > Tolerance {
			return fmt.Errorf("%w: configuration %d sums to %g", ErrNotAProbability, row, sum)
		}
	}
	return nil
}

// UniformTable returns a CPT giving every value the same probability.
func UniformTable(configurations, card int) []float64 {
	t := make([]float64, configurations*card)
	for i := range t {
		t[i] = 1 / float64(card)
	}
	return t
}

// Probability reads P(value | parents) from a chance node's CPT.
func (n *Node) Probability(parentValues []int, value int) float64 {
	row := ConfigIndex(n.ParentCards(), parentValues)
	return n.table[row*n.Card()+value]
}

// UtilityAt reads a utility node's value for a parent configuration.
func (n *Node) UtilityAt(parentValues []int) float64 {
	return n.table[ConfigIndex(n.ParentCards(), parentValues)]
}

// Compare reports the first difference between two graphs: node names, roles,
// labels, parent lists and tables within tol. It returns nil when they match.
func Compare(a, b *Graph, tol float64) error {
	if a.Len() != b.Len() {
		return fmt.Errorf("node count %d != %d", a.Len(), b.Len())
	}
	for _, na := range a.nodes {
		nb, ok := b.index[na.name]
		if !ok {
			return fmt.Errorf("node %q missing", na.name)
		}
		if na.role != nb.role {
			return fmt.Errorf("node %q role %s != %s", na.name, na.role, nb.role)
		}
		if !equalStrings(na.labels, nb.labels) {
			return fmt.Errorf("node %q labels %v != %v", na.name, na.labels, nb.labels)
		}
		if !equalStrings(na.Parents(), nb.Parents()) {
			return fmt.Errorf("node %q parents %v != %v", na.name, na.Parents(), nb.Parents())
		}
		if len(na.table) != len(nb.table) {
			return fmt.Errorf("node %q table size %d != %d", na.name, len(na.table), len(nb.table))
		}
		if !floats.EqualApprox(na.table, nb.table, tol) {
			return fmt.Errorf("node %q tables differ", na.name)
		}
	}
	return nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
