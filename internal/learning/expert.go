package learning

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/moolen/riskgraph/internal/bayes"
	"github.com/moolen/riskgraph/internal/dataset"
	"github.com/moolen/riskgraph/internal/logging"
)

var ErrUnknownVariable = errors.New("variable is neither a dataset column nor a latent variable")

// ExpertNetwork is a hand-drawn structure over dataset columns and latent
// variables that have no column of their own.
type ExpertNetwork struct {
	Name   string           `yaml:"name"`
	Latent []LatentVariable `yaml:"latent" validate:"dive"`
	Arcs   []ExpertArc      `yaml:"arcs" validate:"required,min=1,dive"`
}

type LatentVariable struct {
	Name   string   `yaml:"name" validate:"required"`
	States []string `yaml:"states" validate:"required,min=1"`
}

type ExpertArc struct {
	From string `yaml:"from" validate:"required"`
	To   string `yaml:"to" validate:"required"`
}

// Build creates the graph without tables. Nodes are added in order of first
// mention in Arcs; latent variables get their declared states and observed
// ones the domain inferred from d. Columns no arc mentions are left out.
func (x *ExpertNetwork) Build(d *dataset.Dataset) (*bayes.Graph, error) {
	latent := make(map[string][]string, len(x.Latent))
	for _, v := range x.Latent {
		if _, ok := d.ColumnIndex(v.Name); ok {
			return nil, fmt.Errorf("%w: latent variable %q shadows a dataset column", bayes.ErrDuplicateNode, v.Name)
		}
		latent[v.Name] = v.States
	}

	name := x.Name
	if name == "" {
		name = "expert"
	}
	g := bayes.New(name)
	add := func(v string) error {
		if _, ok := g.Node(v); ok {
			return nil
		}
		if states, ok := latent[v]; ok {
			return g.AddNode(v, states)
		}
		if _, ok := d.ColumnIndex(v); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownVariable, v)
		}
		labels, err := d.Domain(v)
		if err != nil {
			return err
		}
		return g.AddNode(v, labels)
	}

	for _, a := range x.Arcs {
		if err := add(a.From); err != nil {
			return nil, err
		}
		if err := add(a.To); err != nil {
			return nil, err
		}
		if err := g.AddArc(a.From, a.To); err != nil {
			return nil, err
		}
	}
	for _, v := range x.Latent {
		if err := add(v.Name); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// FitExpert builds x over d and fits it with FitObserved: fully observed
// families are estimated, families touching a latent variable stay uniform.
// It returns the frozen graph and the names of the uniform nodes.
func (l *Learner) FitExpert(ctx context.Context, d *dataset.Dataset, x *ExpertNetwork) (*bayes.Graph, []string, error) {
	_, span := l.tracer.Start(ctx, "learning.FitExpert",
		trace.WithAttributes(
			attribute.String("learning.network", x.Name),
			attribute.Int("learning.arcs", len(x.Arcs)),
			attribute.Int("learning.latent", len(x.Latent)),
		),
	)
	defer span.End()

	g, err := x.Build(d)
	if err == nil {
		var uniform []string
		if uniform, err = l.estimator.FitObserved(g, d); err == nil {
			l.logger.WithContext(ctx).InfoWithFields("expert network fitted",
				logging.Field("nodes", g.Len()),
				logging.Field("arcs", len(g.Arcs())),
				logging.Field("uniform", len(uniform)),
			)
			return g, uniform, nil
		}
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "expert network fit failed")
	return nil, nil, err
}
