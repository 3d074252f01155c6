package learning

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/moolen/riskgraph/internal/bayes"
	"github.com/moolen/riskgraph/internal/dataset"
	"github.com/moolen/riskgraph/internal/logging"
)

var ErrUnsupportedMethod = errors.New("unsupported learning method")

// Method selects how a classifier structure is built.
type Method string

const (
	MethodNaive   Method = "naive"
	MethodTAN     Method = "tan"
	MethodChowLiu Method = "chowliu"
	MethodGHC     Method = "ghc"
	MethodTabu    Method = "tabu"
)

// ParseMethod accepts naive, tan, chowliu, ghc or tabu, case-insensitively.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodNaive, MethodTAN, MethodChowLiu, MethodGHC, MethodTabu:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q (want naive, tan, chowliu, ghc or tabu)", ErrUnsupportedMethod, s)
}

// Options configures a Learner.
type Options struct {
	Score         string
	Smoothing     float64
	MaxIterations int // 0 means no limit
	MaxParents    int // 0 means no limit
	Workers       int
	TabuSize      int
	TabuPatience  int
	Metrics       *Metrics // optional
}

// DefaultOptions returns AIC scoring with unit smoothing.
func DefaultOptions() Options {
	return Options{
		Score:         string(ScoreAIC),
		Smoothing:     1,
		MaxIterations: 1000,
		Workers:       runtime.NumCPU(),
		TabuSize:      10,
		TabuPatience:  20,
	}
}

// Learner searches network structures over a dataset and estimates their
// parameters.
type Learner struct {
	opts      Options
	score     Score
	estimator *Estimator
	logger    *logging.Logger
	tracer    trace.Tracer
}

// New validates opts. Bad score names and negative smoothing are rejected
// here, before any data is touched.
func New(opts Options) (*Learner, error) {
	score, err := ParseScore(opts.Score)
	if err != nil {
		return nil, err
	}
	est, err := NewEstimator(opts.Smoothing)
	if err != nil {
		return nil, err
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.TabuSize < 1 {
		opts.TabuSize = 10
	}
	if opts.TabuPatience < 1 {
		opts.TabuPatience = 20
	}
	return &Learner{
		opts:      opts,
		score:     score,
		estimator: est,
		logger:    logging.GetLogger("learning"),
		tracer:    otel.Tracer("riskgraph/learning"),
	}, nil
}

// Estimator returns the parameter estimator configured with the learner's
// smoothing.
func (l *Learner) Estimator() *Estimator { return l.estimator }

// Learn runs greedy hill climbing over all dataset columns and returns the
// fitted, frozen network.
func (l *Learner) Learn(ctx context.Context, d *dataset.Dataset) (*bayes.Graph, error) {
	return l.LearnClassifier(ctx, d, MethodGHC, "")
}

// LearnClassifier builds a structure with the given method. target is
// required for naive, tan and chowliu and ignored otherwise.
func (l *Learner) LearnClassifier(ctx context.Context, d *dataset.Dataset, method Method, target string) (*bayes.Graph, error) {
	if _, err := ParseMethod(string(method)); err != nil {
		return nil, err
	}
	ctx, span := l.tracer.Start(ctx, "learning.Learn",
		trace.WithAttributes(
			attribute.String("learning.method", string(method)),
			attribute.String("learning.score", string(l.score)),
			attribute.Int("learning.rows", d.Len()),
		),
	)
	defer span.End()

	g, err := l.learn(ctx, d, method, target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "learning failed")
		return nil, err
	}
	return g, nil
}

func (l *Learner) learn(ctx context.Context, d *dataset.Dataset, method Method, target string) (*bayes.Graph, error) {
	columns := d.Columns()
	g, err := structureFromDataset("learned_"+string(method), d, columns)
	if err != nil {
		return nil, err
	}
	enc, err := encode(g, d, columns)
	if err != nil {
		return nil, err
	}

	tgt := -1
	switch method {
	case MethodNaive, MethodTAN, MethodChowLiu:
		idx, ok := enc.lookup(target)
		if !ok {
			return nil, fmt.Errorf("%w: target %q", dataset.ErrUnknownColumn, target)
		}
		tgt = idx
	}

	var s *structure
	switch method {
	case MethodNaive:
		s = naiveBayes(enc, tgt)
	case MethodTAN:
		s = treeAugmented(enc, tgt)
	case MethodChowLiu:
		s = chowLiu(enc, tgt)
	case MethodGHC, MethodTabu:
		sc, err := newScorer(enc, l.score, l.estimator.alpha, l.opts.Metrics)
		if err != nil {
			return nil, err
		}
		if method == MethodGHC {
			s, err = l.hillClimb(ctx, enc, sc)
		} else {
			s, err = l.tabuSearch(ctx, enc, sc)
		}
		if err != nil {
			return nil, err
		}
		total := sc.total(s.parents)
		l.opts.Metrics.setScore(total)
		l.logger.InfoWithFields("structure search finished",
			logging.Field("method", string(method)),
			logging.Field("score", string(l.score)),
			logging.Field("value", total),
		)
	}

	if err := addArcs(g, enc, s); err != nil {
		return nil, err
	}
	l.logger.Debug("learned %d arcs over %d variables", len(g.Arcs()), g.Len())
	if err := l.estimator.Fit(g, d); err != nil {
		return nil, err
	}
	return g, nil
}

// ScoreGraph returns the configured score of g's chance-node structure on d.
func (l *Learner) ScoreGraph(g *bayes.Graph, d *dataset.Dataset) (float64, error) {
	names := chanceNames(g)
	enc, err := encode(g, d, names)
	if err != nil {
		return 0, err
	}
	sc, err := newScorer(enc, l.score, l.estimator.alpha, nil)
	if err != nil {
		return 0, err
	}
	s := newStructure(len(names))
	for _, arc := range g.Arcs() {
		from, ok1 := enc.lookup(arc.Parent)
		to, ok2 := enc.lookup(arc.Child)
		if ok1 && ok2 {
			s.add(from, to)
		}
	}
	return sc.total(s.parents), nil
}

// addArcs copies s into g, children in column order and parents sorted by
// name.
func addArcs(g *bayes.Graph, enc *encoded, s *structure) error {
	for child, parents := range s.parents {
		names := make([]string, len(parents))
		for i, p := range parents {
			names[i] = enc.names[p]
		}
		sort.Strings(names)
		for _, p := range names {
			if err := g.AddArc(p, enc.names[child]); err != nil {
				return err
			}
		}
	}
	return nil
}

// lexicalOrder returns variable indices sorted by name.
func lexicalOrder(enc *encoded) []int {
	order := make([]int, len(enc.names))
	for i := range order {
		order[i] = i
	}
	return byName(enc, order)
}

func byName(enc *encoded, vs []int) []int {
	out := append([]int(nil), vs...)
	sort.SliceStable(out, func(a, b int) bool { return enc.names[out[a]] < enc.names[out[b]] })
	return out
}

func (l *Learner) hillClimb(ctx context.Context, enc *encoded, sc *scorer) (*structure, error) {
	s := newStructure(len(enc.names))
	order := lexicalOrder(enc)
	for iter := 0; l.opts.MaxIterations <= 0 || iter < l.opts.MaxIterations; iter++ {
		moves := s.candidates(order, l.opts.MaxParents)
		deltas, err := evaluate(ctx, s, sc, moves, l.opts.Workers)
		if err != nil {
			return nil, err
		}
		best := bestMove(moves, deltas, minImprovement, nil)
		if best < 0 {
			l.logger.Debug("hill climbing converged after %d moves", iter)
			return s, nil
		}
		m := moves[best]
		l.logger.DebugWithFields("accepted move",
			logging.Field("op", m.kind.String()),
			logging.Field("from", enc.names[m.from]),
			logging.Field("to", enc.names[m.to]),
			logging.Field("delta", deltas[best]),
		)
		s.apply(m)
		sc.metrics.iteration()
	}
	l.logger.Warn("hill climbing stopped at the iteration limit (%d)", l.opts.MaxIterations)
	return s, nil
}

// tabuSearch always takes the best non-tabu move, remembers the inverses of
// recent moves and returns the best structure it visited.
func (l *Learner) tabuSearch(ctx context.Context, enc *encoded, sc *scorer) (*structure, error) {
	s := newStructure(len(enc.names))
	order := lexicalOrder(enc)
	current := sc.total(s.parents)
	best, bestScore := s.clone(), current

	var recent []move
	tabu := make(map[move]bool)
	stale := 0
	for iter := 0; l.opts.MaxIterations <= 0 || iter < l.opts.MaxIterations; iter++ {
		if stale >= l.opts.TabuPatience {
			break
		}
		moves := s.candidates(order, l.opts.MaxParents)
		deltas, err := evaluate(ctx, s, sc, moves, l.opts.Workers)
		if err != nil {
			return nil, err
		}
		pick := bestMove(moves, deltas, negInf, tabu)
		if pick < 0 {
			break
		}
		m := moves[pick]
		s.apply(m)
		current += deltas[pick]
		sc.metrics.iteration()

		inv := m.inverse()
		recent = append(recent, inv)
		tabu[inv] = true
		if len(recent) > l.opts.TabuSize {
			delete(tabu, recent[0])
			recent = recent[1:]
		}

		if current > bestScore+minImprovement {
			best, bestScore = s.clone(), current
			stale = 0
		} else {
			stale++
		}
	}
	return best, nil
}

func naiveBayes(enc *encoded, target int) *structure {
	s := newStructure(len(enc.names))
	for v := range enc.names {
		if v != target {
			s.add(target, v)
		}
	}
	return s
}

func features(enc *encoded, target int) []int {
	var out []int
	for v := range enc.names {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}

func treeAugmented(enc *encoded, target int) *structure {
	s := naiveBayes(enc, target)
	feats := features(enc, target)
	if len(feats) == 0 {
		return s
	}
	w := symmetricWeights(feats, len(enc.names), func(a, b int) float64 {
		return conditionalMutualInformation(enc, a, b, target)
	})
	for _, arc := range maximumSpanningTree(byName(enc, feats), feats[0], w) {
		s.add(arc[0], arc[1])
	}
	return s
}

func chowLiu(enc *encoded, target int) *structure {
	s := newStructure(len(enc.names))
	all := make([]int, len(enc.names))
	for i := range all {
		all[i] = i
	}
	w := symmetricWeights(all, len(enc.names), func(a, b int) float64 {
		return mutualInformation(enc, a, b)
	})
	for _, arc := range maximumSpanningTree(byName(enc, all), target, w) {
		s.add(arc[0], arc[1])
	}
	return s
}
