package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/moolen/riskgraph/internal/config"
	"github.com/moolen/riskgraph/internal/learning"
	"github.com/moolen/riskgraph/internal/netio"
)

var manualCmd = &cobra.Command{
	Use:   "manual",
	Short: "Fit the hand-drawn expert network",
	Long: `Build the expert network described by a YAML definition (observed columns,
latent variables and arcs), estimate the CPTs of fully observed families from
the data and give families with latent members uniform CPTs.`,
	RunE: runManual,
}

func init() {
	def := config.Default().Manual
	f := manualCmd.Flags()
	f.String("definition", def.Definition, "Network definition YAML")
	f.String("data", def.Data, "Raw german.data file or processed CSV")
	f.Float64("smoothing", def.Smoothing, "Laplace pseudo-count added to every CPT cell")
	f.StringP("output", "o", def.Output, "Output network path (.bif or .xml)")

	bindFlag(f, "definition", "manual.definition")
	bindFlag(f, "data", "manual.data")
	bindFlag(f, "smoothing", "manual.smoothing")
	bindFlag(f, "output", "manual.output")
}

func runManual(cmd *cobra.Command, _ []string) error {
	cfg := state.cfg.Manual

	x, err := config.LoadExpertNetwork(cfg.Definition)
	if err != nil {
		return err
	}
	data, err := loadDataset(cfg.Data)
	if err != nil {
		return err
	}
	opts := learning.DefaultOptions()
	opts.Smoothing = cfg.Smoothing
	learner, err := learning.New(opts)
	if err != nil {
		return err
	}

	g, uniform, err := learner.FitExpert(cmd.Context(), data, x)
	if err != nil {
		return err
	}
	if err := netio.WriteFile(cfg.Output, g); err != nil {
		return err
	}

	p := newPrinter(cmd.OutOrStdout())
	p.title("Expert network %s", g.Name())
	p.kv("nodes", g.Len())
	p.kv("arcs", len(g.Arcs()))
	p.kv("output", cfg.Output)
	if len(uniform) > 0 {
		p.warn("uniform CPTs (latent families): %s", strings.Join(uniform, ", "))
	}
	return nil
}
