package inference

import (
	"gonum.org/v1/gonum/floats"

	"github.com/moolen/riskgraph/internal/bayes"
)

// factor is a non-negative table over a set of variables, row-major with the
// last variable fastest.
type factor struct {
	vars   []int
	cards  []int
	values []float64
}

func (f *factor) position(v int) int {
	for i, x := range f.vars {
		if x == v {
			return i
		}
	}
	return -1
}

// cptFactor builds a factor over (parents..., node) from a chance CPT.
func cptFactor(n *bayes.Node, id map[string]int) *factor {
	parents := n.Parents()
	f := &factor{
		vars:   make([]int, 0, len(parents)+1),
		cards:  append(n.ParentCards(), n.Card()),
		values: append([]float64(nil), n.Table()...),
	}
	for _, p := range parents {
		f.vars = append(f.vars, id[p])
	}
	f.vars = append(f.vars, id[n.Name()])
	return f
}

// restrict fixes v to value and drops it from the factor.
func (f *factor) restrict(v, value int) *factor {
	pos := f.position(v)
	if pos < 0 {
		return f
	}
	out := &factor{
		vars:  append(append([]int(nil), f.vars[:pos]...), f.vars[pos+1:]...),
		cards: append(append([]int(nil), f.cards[:pos]...), f.cards[pos+1:]...),
	}
	out.values = make([]float64, size(out.cards))
	stride := bayes.Strides(f.cards)[pos]
	card := f.cards[pos]
	for i := range out.values {
		// Split i around the removed axis and reinsert value there.
		hi, lo := i/stride, i%stride
		out.values[i] = f.values[(hi*card+value)*stride+lo]
	}
	return out
}

// mask zeroes every cell where v differs from value and keeps v in the
// factor.
func (f *factor) mask(v, value int) {
	pos := f.position(v)
	if pos < 0 {
		return
	}
	stride := bayes.Strides(f.cards)[pos]
	card := f.cards[pos]
	for i := range f.values {
		if (i/stride)%card != value {
			f.values[i] = 0
		}
	}
}

// product multiplies two factors over the union of their variables.
func product(a, b *factor) *factor {
	out := &factor{
		vars:  append([]int(nil), a.vars...),
		cards: append([]int(nil), a.cards...),
	}
	for i, v := range b.vars {
		if a.position(v) < 0 {
			out.vars = append(out.vars, v)
			out.cards = append(out.cards, b.cards[i])
		}
	}
	aMap := axisMap(out, a)
	bMap := axisMap(out, b)
	aStrides := bayes.Strides(a.cards)
	bStrides := bayes.Strides(b.cards)

	out.values = make([]float64, size(out.cards))
	assignment := make([]int, len(out.vars))
	for i := range out.values {
		ai, bi := 0, 0
		for k, val := range assignment {
			if p := aMap[k]; p >= 0 {
				ai += val * aStrides[p]
			}
			if p := bMap[k]; p >= 0 {
				bi += val * bStrides[p]
			}
		}
		out.values[i] = a.values[ai] * b.values[bi]
		increment(assignment, out.cards)
	}
	return out
}

// sumOut marginalizes v away.
func (f *factor) sumOut(v int) *factor {
	pos := f.position(v)
	if pos < 0 {
		return f
	}
	out := &factor{
		vars:  append(append([]int(nil), f.vars[:pos]...), f.vars[pos+1:]...),
		cards: append(append([]int(nil), f.cards[:pos]...), f.cards[pos+1:]...),
	}
	out.values = make([]float64, size(out.cards))
	stride := bayes.Strides(f.cards)[pos]
	card := f.cards[pos]
	for i, val := range f.values {
		hi, lo := i/(stride*card), i%stride
		out.values[hi*stride+lo] += val
	}
	return out
}

// reorder returns the factor with its axes permuted to vars, which must be a
// permutation of f.vars.
func (f *factor) reorder(vars []int) *factor {
	out := &factor{vars: append([]int(nil), vars...), cards: make([]int, len(vars))}
	for i, v := range vars {
		out.cards[i] = f.cards[f.position(v)]
	}
	src := axisMap(out, f)
	strides := bayes.Strides(f.cards)
	out.values = make([]float64, len(f.values))
	assignment := make([]int, len(vars))
	for i := range out.values {
		idx := 0
		for k, val := range assignment {
			idx += val * strides[src[k]]
		}
		out.values[i] = f.values[idx]
		increment(assignment, out.cards)
	}
	return out
}

func (f *factor) total() float64 { return floats.Sum(f.values) }

func (f *factor) normalize() {
	floats.Scale(1/f.total(), f.values)
}

// axisMap maps each axis of outer to the matching axis of inner, or -1.
func axisMap(outer, inner *factor) []int {
	m := make([]int, len(outer.vars))
	for i, v := range outer.vars {
		m[i] = inner.position(v)
	}
	return m
}

// increment advances a row-major odometer.
func increment(assignment, cards []int) {
	for k := len(assignment) - 1; k >= 0; k-- {
		assignment[k]++
		if assignment[k] < cards[k] {
			return
		}
		assignment[k] = 0
	}
}

func size(cards []int) int {
	n := 1
	for _, c := range cards {
		n *= c
	}
	return n
}
