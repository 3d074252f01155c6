// Package evaluation replays a dataset through an influence diagram and
// totals the utility the recommended decisions would have realized.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/moolen/riskgraph/internal/bayes"
	"github.com/moolen/riskgraph/internal/dataset"
	"github.com/moolen/riskgraph/internal/decision"
	"github.com/moolen/riskgraph/internal/logging"
)

var ErrUnsupportedPolicy = errors.New("unsupported error policy")

// ErrorPolicy decides what happens when a row cannot be evaluated.
type ErrorPolicy string

const (
	// PolicySkip records the row error and continues.
	PolicySkip ErrorPolicy = "skip"
	// PolicyAbort stops the run at the first failing row.
	PolicyAbort ErrorPolicy = "abort"
)

func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch p := ErrorPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicySkip, PolicyAbort:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q (want skip or abort)", ErrUnsupportedPolicy, s)
}

// Options configures an Evaluator. Empty node names default to the credit
// diagram's.
type Options struct {
	Target   string
	Decision string
	Utility  string
	Policy   ErrorPolicy
	Workers  int
	Metrics  *Metrics // optional
}

// Evaluator scores the diagram's recommended decisions against the true
// outcomes of a dataset.
type Evaluator struct {
	diagram *decision.Diagram
	opts    Options
	logger  *logging.Logger
	tracer  trace.Tracer
}

func New(d *decision.Diagram, opts Options) (*Evaluator, error) {
	if opts.Target == "" {
		opts.Target = decision.OutcomeNode
	}
	if opts.Decision == "" {
		opts.Decision = decision.DecisionNode
	}
	if opts.Utility == "" {
		opts.Utility = decision.UtilityNode
	}
	if opts.Policy == "" {
		opts.Policy = PolicySkip
	}
	if _, err := ParseErrorPolicy(string(opts.Policy)); err != nil {
		return nil, err
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	g := d.Graph()
	checks := []struct {
		name string
		role bayes.Role
	}{
		{opts.Target, bayes.Chance},
		{opts.Decision, bayes.Decision},
		{opts.Utility, bayes.Utility},
	}
	for _, c := range checks {
		n, ok := g.Node(c.name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", bayes.ErrUnknownNode, c.name)
		}
		if n.Role() != c.role {
			return nil, fmt.Errorf("node %q is a %s node, want %s: %w", c.name, n.Role(), c.role, bayes.ErrRoleMismatch)
		}
	}

	return &Evaluator{
		diagram: d,
		opts:    opts,
		logger:  logging.GetLogger("evaluation"),
		tracer:  otel.Tracer("riskgraph/evaluation"),
	}, nil
}

type rowResult struct {
	row     int
	outcome string
	action  string
	utility float64
	elapsed time.Duration
	err     error
}

// Evaluate runs every row of data through the diagram. Rows are split over
// Workers goroutines, each with its own inference engine; results are merged
// in row order.
func (ev *Evaluator) Evaluate(ctx context.Context, data *dataset.Dataset) (*Session, error) {
	ctx, span := ev.tracer.Start(ctx, "evaluation.Evaluate",
		trace.WithAttributes(
			attribute.Int("evaluation.rows", data.Len()),
			attribute.Int("evaluation.workers", ev.opts.Workers),
			attribute.String("evaluation.policy", string(ev.opts.Policy)),
		),
	)
	defer span.End()

	session, err := ev.evaluate(ctx, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("evaluation.session_id", session.ID),
		attribute.Float64("evaluation.total_utility", session.Total),
	)
	return session, nil
}

func (ev *Evaluator) evaluate(ctx context.Context, data *dataset.Dataset) (*Session, error) {
	if _, ok := data.ColumnIndex(ev.opts.Target); !ok {
		return nil, fmt.Errorf("%w: target %q", dataset.ErrUnknownColumn, ev.opts.Target)
	}
	g := ev.diagram.Graph()
	var evidenceCols []string
	for _, col := range data.Columns() {
		n, ok := g.Node(col)
		if ok && n.Role() == bayes.Chance && col != ev.opts.Target {
			evidenceCols = append(evidenceCols, col)
		}
	}

	workers := min(ev.opts.Workers, max(data.Len(), 1))
	// Solvers are created up front: the first one freezes the graph.
	solvers := make([]*decision.Solver, workers)
	for w := range solvers {
		s, err := ev.diagram.NewSolver()
		if err != nil {
			return nil, err
		}
		solvers[w] = s
	}

	session := newSession(data.Len())
	ev.logger.InfoWithFields("evaluation started",
		logging.Field("session_id", session.ID),
		logging.Field("rows", data.Len()),
		logging.Field("workers", workers),
		logging.Field("evidence_columns", len(evidenceCols)),
	)

	results := make([]*rowResult, data.Len())
	// Under abort, rows below the lowest failure seen so far are still
	// evaluated, so the reported row does not depend on scheduling.
	var failed atomic.Int64
	failed.Store(int64(data.Len()))
	group, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		solver := solvers[w]
		group.Go(func() error {
			for i := w; i < data.Len(); i += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				if int64(i) > failed.Load() {
					return nil
				}
				r := ev.evaluateRow(solver, data, i, evidenceCols)
				ev.opts.Metrics.observe(r)
				results[i] = r
				if r.err != nil && ev.opts.Policy == PolicyAbort {
					lowerFailure(&failed, int64(i))
					return nil
				}
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if row := int(failed.Load()); row < data.Len() {
		r := results[row]
		return nil, &RowError{Row: row, Reason: r.err.Error(), Err: r.err}
	}

	for _, r := range results {
		session.record(r)
		if r.err != nil {
			ev.logger.WarnWithFields("row skipped",
				logging.Field("row", r.row),
				logging.Field("error", r.err.Error()),
			)
		}
	}
	session.Finished = time.Now()
	ev.opts.Metrics.finish(session)
	ev.logger.InfoWithFields("evaluation finished",
		logging.Field("session_id", session.ID),
		logging.Field("total_utility", session.Total),
		logging.Field("mean_utility", session.Mean()),
		logging.Field("skipped", session.Skipped()),
	)
	return session, nil
}

func lowerFailure(failed *atomic.Int64, row int64) {
	for {
		cur := failed.Load()
		if row >= cur || failed.CompareAndSwap(cur, row) {
			return
		}
	}
}

// evaluateRow builds evidence from the row, solves the decision and reads the
// utility of the chosen action under the true outcome.
func (ev *Evaluator) evaluateRow(solver *decision.Solver, data *dataset.Dataset, i int, evidenceCols []string) *rowResult {
	start := time.Now()
	r := &rowResult{row: i}
	defer func() { r.elapsed = time.Since(start) }()

	labels := solver.Engine().Labels()
	truth, _ := data.Value(i, ev.opts.Target)
	outcome, err := labels.Resolve(ev.opts.Target, truth)
	if err != nil {
		r.err = err
		return r
	}
	r.outcome = outcome

	evidence := make(map[string]string, len(evidenceCols))
	for _, col := range evidenceCols {
		v, _ := data.Value(i, col)
		evidence[col] = v
	}
	choice, err := solver.OptimalDecision(ev.opts.Decision, evidence)
	if err != nil {
		r.err = err
		return r
	}
	r.action = choice.Action

	g := ev.diagram.Graph()
	assignment := make(map[string]string)
	for _, p := range g.MustNode(ev.opts.Utility).Parents() {
		switch {
		case p == ev.opts.Decision:
			assignment[p] = choice.Action
		case p == ev.opts.Target:
			assignment[p] = outcome
		default:
			raw, ok := evidence[p]
			if !ok {
				r.err = fmt.Errorf("utility parent %q is neither observed nor the decision", p)
				return r
			}
			label, err := labels.Resolve(p, raw)
			if err != nil {
				r.err = err
				return r
			}
			assignment[p] = label
		}
	}
	r.utility, r.err = decision.RealizedUtility(g, ev.opts.Utility, assignment)
	return r
}
