package learning

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"
)

// minImprovement is the smallest score delta accepted as an improvement.
const minImprovement = 1e-9

var negInf = math.Inf(-1)

type moveKind int

const (
	moveInsert moveKind = iota
	moveDelete
	moveReverse
)

func (k moveKind) String() string {
	switch k {
	case moveInsert:
		return "insert"
	case moveDelete:
		return "delete"
	default:
		return "reverse"
	}
}

// move is an arc operator on from -> to. A reversal turns the existing arc
// from -> to into to -> from.
type move struct {
	kind     moveKind
	from, to int
}

// inverse returns the move that undoes m.
func (m move) inverse() move {
	switch m.kind {
	case moveInsert:
		return move{kind: moveDelete, from: m.from, to: m.to}
	case moveDelete:
		return move{kind: moveInsert, from: m.from, to: m.to}
	default:
		return move{kind: moveReverse, from: m.to, to: m.from}
	}
}

// structure is a DAG over variable indices kept as an adjacency matrix plus
// per-child parent lists.
type structure struct {
	arcs    [][]bool
	parents [][]int
}

func newStructure(n int) *structure {
	s := &structure{arcs: make([][]bool, n), parents: make([][]int, n)}
	for i := range s.arcs {
		s.arcs[i] = make([]bool, n)
	}
	return s
}

func (s *structure) clone() *structure {
	c := newStructure(len(s.arcs))
	for i := range s.arcs {
		copy(c.arcs[i], s.arcs[i])
		c.parents[i] = append([]int(nil), s.parents[i]...)
	}
	return c
}

func (s *structure) has(from, to int) bool { return s.arcs[from][to] }

func (s *structure) add(from, to int) {
	s.arcs[from][to] = true
	s.parents[to] = append(s.parents[to], from)
}

func (s *structure) remove(from, to int) {
	s.arcs[from][to] = false
	s.parents[to] = without(s.parents[to], from)
}

func (s *structure) apply(m move) {
	switch m.kind {
	case moveInsert:
		s.add(m.from, m.to)
	case moveDelete:
		s.remove(m.from, m.to)
	case moveReverse:
		s.remove(m.from, m.to)
		s.add(m.to, m.from)
	}
}

// reaches reports whether a directed path from -> to exists, ignoring the
// direct arc from -> to when skipDirect is set.
func (s *structure) reaches(from, to int, skipDirect bool) bool {
	seen := make([]bool, len(s.arcs))
	stack := []int{from}
	seen[from] = true
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for next, ok := range s.arcs[cur] {
			if !ok || skipDirect && cur == from && next == to {
				continue
			}
			if next == to {
				return true
			}
			if seen[next] {
				continue
			}
			seen[next] = true
			stack = append(stack, next)
		}
	}
	return false
}

// candidates enumerates the legal moves: inserts, then deletes, then
// reversals, each group ordered by (from, to) in the given variable order.
func (s *structure) candidates(order []int, maxParents int) []move {
	full := func(v int) bool { return maxParents > 0 && len(s.parents[v]) >= maxParents }
	var out []move
	for _, i := range order {
		for _, j := range order {
			if i == j || s.has(i, j) || s.has(j, i) || full(j) {
				continue
			}
			if !s.reaches(j, i, false) {
				out = append(out, move{kind: moveInsert, from: i, to: j})
			}
		}
	}
	for _, i := range order {
		for _, j := range order {
			if i != j && s.has(i, j) {
				out = append(out, move{kind: moveDelete, from: i, to: j})
			}
		}
	}
	for _, i := range order {
		for _, j := range order {
			if i == j || !s.has(i, j) || full(i) {
				continue
			}
			if !s.reaches(i, j, true) {
				out = append(out, move{kind: moveReverse, from: i, to: j})
			}
		}
	}
	return out
}

// delta is the total score change of applying m to s.
func (s *structure) delta(sc *scorer, m move) float64 {
	child := s.parents[m.to]
	switch m.kind {
	case moveInsert:
		return sc.family(m.to, with(child, m.from)) - sc.family(m.to, child)
	case moveDelete:
		return sc.family(m.to, without(child, m.from)) - sc.family(m.to, child)
	default:
		parent := s.parents[m.from]
		return sc.family(m.to, without(child, m.from)) - sc.family(m.to, child) +
			sc.family(m.from, with(parent, m.to)) - sc.family(m.from, parent)
	}
}

func with(set []int, v int) []int {
	out := make([]int, 0, len(set)+1)
	out = append(out, set...)
	return append(out, v)
}

func without(set []int, v int) []int {
	out := make([]int, 0, len(set))
	for _, x := range set {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

// evaluate scores every move against s, fanning out over workers. The
// structure is only read while the group runs.
func evaluate(ctx context.Context, s *structure, sc *scorer, moves []move, workers int) ([]float64, error) {
	deltas := make([]float64, len(moves))
	if workers < 1 {
		workers = 1
	}
	chunk := (len(moves) + workers - 1) / workers
	if chunk == 0 {
		return deltas, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(moves); start += chunk {
		end := min(start+chunk, len(moves))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				deltas[i] = s.delta(sc, moves[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sc.metrics.evaluated(len(moves))
	return deltas, nil
}

// bestMove returns the index of the first move with the largest delta, or -1
// when no delta exceeds floor. Tabu moves are skipped.
func bestMove(moves []move, deltas []float64, floor float64, tabu map[move]bool) int {
	best := -1
	bestDelta := floor
	for i, d := range deltas {
		if tabu[moves[i]] {
			continue
		}
		if d > bestDelta {
			best = i
			bestDelta = d
		}
	}
	return best
}
