package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/moolen/riskgraph/internal/bayes"
	"github.com/moolen/riskgraph/internal/config"
	"github.com/moolen/riskgraph/internal/learning"
	"github.com/moolen/riskgraph/internal/logging"
	"github.com/moolen/riskgraph/internal/netio"
)

var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Learn a Bayesian network from the credit data",
	Long: `Learn a network structure with hill climbing, tabu search or one of the
classifier methods (naive, tan, chowliu), fit its CPTs with Laplace smoothing
and write it as BIF (.bif) or diagram XML (.xml).`,
	RunE: runLearn,
}

func init() {
	def := config.Default().Learn
	f := learnCmd.Flags()
	f.String("data", def.Data, "Raw german.data file or processed CSV")
	f.String("score", def.Score, "Structure score: aic, bic or log")
	f.String("method", def.Method, "Learning method: ghc, tabu, naive, tan or chowliu")
	f.String("target", def.Target, "Class variable for naive, tan and chowliu")
	f.Float64("smoothing", def.Smoothing, "Laplace pseudo-count added to every CPT cell")
	f.Int("max-iterations", def.MaxIterations, "Search step limit (0 = no limit)")
	f.Int("max-parents", def.MaxParents, "Parent limit per node (0 = no limit)")
	f.Int("workers", def.Workers, "Goroutines scoring candidate moves")
	f.StringP("output", "o", def.Output, "Output network path (.bif or .xml)")
	f.String("save-processed", "", "Also write the preprocessed dataset as CSV")
	f.String("summary", "", "Write a YAML summary of the learned network")

	for flag, key := range map[string]string{
		"data":           "learn.data",
		"score":          "learn.score",
		"method":         "learn.method",
		"target":         "learn.target",
		"smoothing":      "learn.smoothing",
		"max-iterations": "learn.max_iterations",
		"max-parents":    "learn.max_parents",
		"workers":        "learn.workers",
		"output":         "learn.output",
		"save-processed": "learn.save_processed",
		"summary":        "learn.summary",
	} {
		bindFlag(f, flag, key)
	}
}

// learnSummary is the --summary document.
type learnSummary struct {
	Network    string   `yaml:"network"`
	Method     string   `yaml:"method"`
	Score      string   `yaml:"score"`
	ScoreValue float64  `yaml:"score_value"`
	Rows       int      `yaml:"rows"`
	Nodes      int      `yaml:"nodes"`
	Arcs       []string `yaml:"arcs"`
	Output     string   `yaml:"output"`
}

func runLearn(cmd *cobra.Command, _ []string) error {
	logger := logging.GetLogger("cli")
	cfg := state.cfg.Learn

	method, err := learning.ParseMethod(cfg.Method)
	if err != nil {
		return err
	}
	opts, err := state.cfg.LearnOptions()
	if err != nil {
		return err
	}
	opts.Metrics = learning.NewMetrics(state.registry)
	learner, err := learning.New(opts)
	if err != nil {
		return err
	}

	data, err := loadDataset(cfg.Data)
	if err != nil {
		return err
	}
	logger.Info("Loaded %d rows with %d columns from %s", data.Len(), len(data.Columns()), cfg.Data)
	if cfg.SaveProcessed != "" {
		if err := data.WriteCSVFile(cfg.SaveProcessed); err != nil {
			return err
		}
		logger.Info("Wrote processed dataset to %s", cfg.SaveProcessed)
	}

	g, err := learner.LearnClassifier(cmd.Context(), data, method, cfg.Target)
	if err != nil {
		return err
	}
	value, err := learner.ScoreGraph(g, data)
	if err != nil {
		return err
	}
	if err := netio.WriteFile(cfg.Output, g); err != nil {
		return err
	}

	summary := learnSummary{
		Network:    g.Name(),
		Method:     string(method),
		Score:      opts.Score,
		ScoreValue: value,
		Rows:       data.Len(),
		Nodes:      g.Len(),
		Arcs:       arcStrings(g),
		Output:     cfg.Output,
	}
	p := newPrinter(cmd.OutOrStdout())
	p.title("Learned network %s", g.Name())
	p.kv("method", summary.Method)
	p.kv("score", fmt.Sprintf("%s = %.3f", summary.Score, value))
	p.kv("nodes", summary.Nodes)
	p.kv("arcs", len(summary.Arcs))
	p.kv("output", cfg.Output)

	if cfg.Summary != "" {
		return writeYAML(cfg.Summary, summary)
	}
	return nil
}

func arcStrings(g *bayes.Graph) []string {
	arcs := g.Arcs()
	out := make([]string, len(arcs))
	for i, a := range arcs {
		out[i] = a.Parent + " -> " + a.Child
	}
	return out
}

func writeYAML(path string, v interface{}) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	// #nosec G306 -- summaries are not sensitive
	return os.WriteFile(path, out, 0o644)
}
