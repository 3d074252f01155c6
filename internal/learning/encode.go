package learning

import (
	"fmt"

	"github.com/moolen/riskgraph/internal/bayes"
	"github.com/moolen/riskgraph/internal/dataset"
)

// encoded is a dataset mapped onto domain indices, stored column-major so
// family counting walks contiguous slices.
type encoded struct {
	names []string
	cards []int
	cols  [][]int
	rows  int
}

func (e *encoded) lookup(name string) (int, bool) {
	for i, n := range e.names {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// encode maps the given chance nodes of g onto the dataset columns of the
// same name. Every value must resolve against the node's domain.
func encode(g *bayes.Graph, d *dataset.Dataset, names []string) (*encoded, error) {
	labels := bayes.NewLabelIndex(g)
	enc := &encoded{
		names: names,
		cards: make([]int, len(names)),
		cols:  make([][]int, len(names)),
		rows:  d.Len(),
	}
	for v, name := range names {
		n, ok := g.Node(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", bayes.ErrUnknownNode, name)
		}
		c, ok := d.ColumnIndex(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", dataset.ErrUnknownColumn, name)
		}
		enc.cards[v] = n.Card()
		col := make([]int, d.Len())
		for r := 0; r < d.Len(); r++ {
			idx, err := labels.ResolveIndex(name, d.Row(r)[c])
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", r, err)
			}
			col[r] = idx
		}
		enc.cols[v] = col
	}
	return enc, nil
}

// counts tallies N(parent configuration, value) for child given parents
// (indices into e). The result is laid out like a CPT.
func (e *encoded) counts(child int, parents []int) []float64 {
	r := e.cards[child]
	q := 1
	for _, p := range parents {
		q *= e.cards[p]
	}
	out := make([]float64, q*r)
	childCol := e.cols[child]
	for row := 0; row < e.rows; row++ {
		cfg := 0
		for _, p := range parents {
			cfg = cfg*e.cards[p] + e.cols[p][row]
		}
		out[cfg*r+childCol[row]]++
	}
	return out
}

// structureFromDataset creates one chance node per column, in column order,
// using the column's declared or inferred domain.
func structureFromDataset(name string, d *dataset.Dataset, columns []string) (*bayes.Graph, error) {
	g := bayes.New(name)
	for _, col := range columns {
		labels, err := d.Domain(col)
		if err != nil {
			return nil, err
		}
		if err := g.AddNode(col, labels); err != nil {
			return nil, err
		}
	}
	return g, nil
}
