package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/moolen/riskgraph/internal/decision"
	"github.com/moolen/riskgraph/internal/evaluation"
	"github.com/moolen/riskgraph/internal/learning"
	"github.com/moolen/riskgraph/internal/tracing"
)

// Config holds all configuration for the riskgraph commands. Each command
// reads its own section.
type Config struct {
	Learn    LearnConfig    `yaml:"learn"`
	Manual   ManualConfig   `yaml:"manual"`
	Diagram  DiagramConfig  `yaml:"diagram"`
	Evaluate EvaluateConfig `yaml:"evaluate"`
	Tracing  tracing.Config `yaml:"tracing"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// LearnConfig drives structure and parameter learning.
type LearnConfig struct {
	// Data is the raw german.data file or a processed CSV (by extension).
	Data          string  `yaml:"data"`
	Score         string  `yaml:"score"`
	Method        string  `yaml:"method"`
	Target        string  `yaml:"target"`
	Smoothing     float64 `yaml:"smoothing" validate:"gte=0"`
	MaxIterations int     `yaml:"max_iterations" validate:"gte=0"`
	MaxParents    int     `yaml:"max_parents" validate:"gte=0"`
	Workers       int     `yaml:"workers" validate:"gte=1"`
	TabuSize      int     `yaml:"tabu_size" validate:"gte=1"`
	TabuPatience  int     `yaml:"tabu_patience" validate:"gte=1"`
	// Output is a .bif or .xml path.
	Output        string `yaml:"output" validate:"required"`
	SaveProcessed string `yaml:"save_processed"`
	Summary       string `yaml:"summary"`
}

// ManualConfig drives fitting the expert network.
type ManualConfig struct {
	Definition string  `yaml:"definition" validate:"required"`
	Data       string  `yaml:"data"`
	Smoothing  float64 `yaml:"smoothing" validate:"gte=0"`
	Output     string  `yaml:"output" validate:"required"`
}

// DiagramConfig turns a learned network into the credit influence diagram.
type DiagramConfig struct {
	Network string           `yaml:"network" validate:"required"`
	Output  string           `yaml:"output" validate:"required"`
	Utility decision.Payoffs `yaml:"utility"`
}

// EvaluateConfig drives the batch policy evaluator.
type EvaluateConfig struct {
	Diagram string `yaml:"diagram" validate:"required"`
	Data    string `yaml:"data"`
	Policy  string `yaml:"policy"`
	Workers int    `yaml:"workers" validate:"gte=1"`
	Report  string `yaml:"report"`
}

type MetricsConfig struct {
	// File receives the Prometheus registry in text format after a run.
	File string `yaml:"file"`
}

// Default returns the configuration used when neither a file nor a flag sets
// a value.
func Default() *Config {
	learn := learning.DefaultOptions()
	return &Config{
		Learn: LearnConfig{
			Data:          "data/german.data",
			Score:         learn.Score,
			Method:        string(learning.MethodGHC),
			Target:        "CreditRisk",
			Smoothing:     learn.Smoothing,
			MaxIterations: learn.MaxIterations,
			Workers:       runtime.NumCPU(),
			TabuSize:      learn.TabuSize,
			TabuPatience:  learn.TabuPatience,
			Output:        "out/german_credit.bif",
		},
		Manual: ManualConfig{
			Definition: "networks/german_credit_expert.yaml",
			Data:       "data/german.data",
			Smoothing:  1,
			Output:     "out/german_credit_expert.bif",
		},
		Diagram: DiagramConfig{
			Network: "out/german_credit.bif",
			Output:  "out/german_credit_diagram.xml",
			Utility: decision.DefaultPayoffs(),
		},
		Evaluate: EvaluateConfig{
			Diagram: "out/german_credit_diagram.xml",
			Data:    "data/german.data",
			Policy:  string(evaluation.PolicySkip),
			Workers: runtime.NumCPU(),
		},
		Tracing: tracing.Config{SampleRatio: 1},
	}
}

var validate = validator.New()

// Validate checks struct tags first, then the enumerated names.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	if _, err := learning.ParseScore(c.Learn.Score); err != nil {
		return wrapConfigError("learn.score", err)
	}
	if _, err := learning.ParseMethod(c.Learn.Method); err != nil {
		return wrapConfigError("learn.method", err)
	}
	if _, err := evaluation.ParseErrorPolicy(c.Evaluate.Policy); err != nil {
		return wrapConfigError("evaluate.policy", err)
	}
	return nil
}

// LearnOptions converts the learn section.
func (c *Config) LearnOptions() (learning.Options, error) {
	score, err := learning.ParseScore(c.Learn.Score)
	if err != nil {
		return learning.Options{}, wrapConfigError("learn.score", err)
	}
	opts := learning.DefaultOptions()
	opts.Score = string(score)
	opts.Smoothing = c.Learn.Smoothing
	opts.MaxIterations = c.Learn.MaxIterations
	opts.MaxParents = c.Learn.MaxParents
	opts.Workers = c.Learn.Workers
	opts.TabuSize = c.Learn.TabuSize
	opts.TabuPatience = c.Learn.TabuPatience
	return opts, nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ConfigError{message: err.Error(), err: err}
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return &ConfigError{message: strings.Join(msgs, "; "), err: err}
}

func formatFieldError(e validator.FieldError) string {
	field := fieldPath(e.Namespace())
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_if":
		return fmt.Sprintf("%s is required when %s", field, e.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, e.Tag())
	}
}

// fieldPath turns "Config.Learn.MaxIterations" into "learn.maxiterations".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.ToLower(ns)
}

// ConfigError represents a configuration error.
type ConfigError struct {
	message string
	err     error
}

func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

func wrapConfigError(field string, err error) *ConfigError {
	return &ConfigError{message: fmt.Sprintf("%s: %v", field, err), err: err}
}

func (e *ConfigError) Error() string {
	return e.message
}

func (e *ConfigError) Unwrap() error {
	return e.err
}
