package learning

import (
	"math"
)

// mutualInformation is I(X;Y) in bits under the empirical distribution.
func mutualInformation(e *encoded, x, y int) float64 {
	joint := e.counts(y, []int{x})
	rx, ry := e.cards[x], e.cards[y]
	px := make([]float64, rx)
	py := make([]float64, ry)
	for i := 0; i < rx; i++ {
		for j := 0; j < ry; j++ {
			px[i] += joint[i*ry+j]
			py[j] += joint[i*ry+j]
		}
	}
	n := float64(e.rows)
	mi := 0.0
	for i := 0; i < rx; i++ {
		for j := 0; j < ry; j++ {
			c := joint[i*ry+j]
			if c == 0 {
				continue
			}
			mi += c / n * math.Log2(c*n/(px[i]*py[j]))
		}
	}
	return mi
}

// conditionalMutualInformation is I(X;Y|C) in bits under the empirical
// distribution.
func conditionalMutualInformation(e *encoded, x, y, c int) float64 {
	// joint is laid out [c][x][y].
	joint := e.counts(y, []int{c, x})
	rc, rx, ry := e.cards[c], e.cards[x], e.cards[y]
	pc := make([]float64, rc)
	pxc := make([]float64, rc*rx)
	pyc := make([]float64, rc*ry)
	for k := 0; k < rc; k++ {
		for i := 0; i < rx; i++ {
			for j := 0; j < ry; j++ {
				v := joint[(k*rx+i)*ry+j]
				pc[k] += v
				pxc[k*rx+i] += v
				pyc[k*ry+j] += v
			}
		}
	}
	n := float64(e.rows)
	cmi := 0.0
	for k := 0; k < rc; k++ {
		for i := 0; i < rx; i++ {
			for j := 0; j < ry; j++ {
				v := joint[(k*rx+i)*ry+j]
				if v == 0 {
					continue
				}
				cmi += v / n * math.Log2(pc[k]*v/(pxc[k*rx+i]*pyc[k*ry+j]))
			}
		}
	}
	return cmi
}

// maximumSpanningTree runs Prim's algorithm over vertices from root and
// returns arcs directed away from the root. Among equal weights the first
// (u, v) pair in vertex order wins.
func maximumSpanningTree(vertices []int, root int, weight func(a, b int) float64) [][2]int {
	inTree := map[int]bool{root: true}
	var arcs [][2]int
	for len(inTree) < len(vertices) {
		bestU, bestV := -1, -1
		bestW := math.Inf(-1)
		for _, u := range vertices {
			if !inTree[u] {
				continue
			}
			for _, v := range vertices {
				if inTree[v] {
					continue
				}
				if w := weight(u, v); w > bestW {
					bestU, bestV, bestW = u, v, w
				}
			}
		}
		if bestV < 0 {
			break
		}
		inTree[bestV] = true
		arcs = append(arcs, [2]int{bestU, bestV})
	}
	return arcs
}

// symmetricWeights precomputes a pairwise weight matrix.
func symmetricWeights(vertices []int, n int, w func(a, b int) float64) func(a, b int) float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	for ai, a := range vertices {
		for _, b := range vertices[ai+1:] {
			v := w(a, b)
			m[a][b], m[b][a] = v, v
		}
	}
	return func(a, b int) float64 { return m[a][b] }
}
