package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/moolen/riskgraph/internal/config"
	"github.com/moolen/riskgraph/internal/dataset"
	"github.com/moolen/riskgraph/internal/logging"
	"github.com/moolen/riskgraph/internal/tracing"
)

const Version = "0.1.0"

// configKeyAnnotation ties a flag to the dotted config key it overrides.
const configKeyAnnotation = "riskgraph/config-key"

var (
	logLevelFlags []string // Supports multiple --log-level flags
	configPath    string
	metricsFile   string

	state runState
)

// runState is built in PersistentPreRunE and torn down by Execute.
type runState struct {
	cfg      *config.Config
	registry *prometheus.Registry
	tracing  *tracing.Provider
}

var rootCmd = &cobra.Command{
	Use:   "riskgraph",
	Short: "riskgraph - Bayesian networks and influence diagrams for credit risk",
	Long: `riskgraph learns Bayesian networks from the German credit data, extends them
into an influence diagram with a loan approval decision, and evaluates the
resulting approval policy against the recorded outcomes.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if cerr := state.close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func init() {
	// Supports per-package log levels: --log-level debug --log-level learning=debug
	rootCmd.PersistentFlags().StringSliceVar(&logLevelFlags, "log-level",
		[]string{"info"},
		"Log level for packages. Use 'level' for the default, or 'package=level' for per-package.\n"+
			"Examples: --log-level debug (all), --log-level learning=debug --log-level evaluation=warn")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "",
		"Write Prometheus metrics in text format to this file after the run")
	bindFlag(rootCmd.PersistentFlags(), "metrics-file", "metrics.file")

	rootCmd.AddCommand(learnCmd)
	rootCmd.AddCommand(manualCmd)
	rootCmd.AddCommand(diagramCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(inferCmd)
	rootCmd.AddCommand(versionCmd)
}

func setup(cmd *cobra.Command, _ []string) error {
	state = runState{}
	if err := setupLog(logLevelFlags); err != nil {
		return err
	}
	cfg, err := config.Load(configPath, flagOverrides(cmd.Flags()))
	if err != nil {
		return err
	}
	tp, err := tracing.NewTracingProvider(cfg.Tracing, Version)
	if err != nil {
		return err
	}
	state = runState{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
		tracing:  tp,
	}
	return nil
}

// close flushes spans and writes the metrics file. It is a no-op when setup
// never ran.
func (s *runState) close() error {
	if s.cfg == nil {
		return nil
	}
	defer func() { *s = runState{} }()
	var firstErr error
	if path := s.cfg.Metrics.File; path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				firstErr = fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}
		if firstErr == nil {
			if err := prometheus.WriteToTextfile(path, s.registry); err != nil {
				firstErr = fmt.Errorf("failed to write metrics: %w", err)
			}
		}
	}
	if err := s.tracing.Shutdown(context.Background()); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// bindFlag marks flag name as an override for the config key.
func bindFlag(flags *pflag.FlagSet, name, key string) {
	if err := flags.SetAnnotation(name, configKeyAnnotation, []string{key}); err != nil {
		panic(err)
	}
}

// flagOverrides collects the explicitly set flags that are bound to config
// keys. Values stay strings; the config decoder converts them.
func flagOverrides(flags *pflag.FlagSet) map[string]interface{} {
	overrides := make(map[string]interface{})
	flags.Visit(func(f *pflag.Flag) {
		if keys := f.Annotations[configKeyAnnotation]; len(keys) == 1 {
			overrides[keys[0]] = f.Value.String()
		}
	})
	return overrides
}

// loadDataset reads a processed CSV (.csv) or the raw german.data format.
func loadDataset(path string) (*dataset.Dataset, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return dataset.ReadCSVFile(path)
	}
	return dataset.LoadGermanCreditFile(path)
}

func setupLog(flags []string) error {
	defaultLevel, packageLevels, err := parseLogLevelFlags(flags)
	if err != nil {
		return err
	}
	return logging.Initialize(defaultLevel, packageLevels)
}

// parseLogLevelFlags merges LOG_LEVEL_* environment variables with the
// --log-level flags; flags win.
//
// CLI format: ["debug"], ["default=info", "learning=debug"]
// Env vars: LOG_LEVEL_LEARNING=debug (package name uppercased, dots to underscores)
func parseLogLevelFlags(flags []string) (string, map[string]string, error) {
	result := make(map[string]string)

	for _, envPair := range os.Environ() {
		key, level, ok := strings.Cut(envPair, "=")
		if !ok || !strings.HasPrefix(key, "LOG_LEVEL_") {
			continue
		}
		result[convertEnvKeyToPackageName(key)] = level
	}

	for _, flag := range flags {
		if pkg, level, ok := strings.Cut(flag, "="); ok {
			result[pkg] = level
		} else {
			result["default"] = flag
		}
	}

	defaultLevel := "info"
	if level, exists := result["default"]; exists {
		defaultLevel = level
		delete(result, "default")
	}
	if _, err := logging.ParseLevel(defaultLevel); err != nil {
		return "", nil, err
	}
	for pkg, level := range result {
		if _, err := logging.ParseLevel(level); err != nil {
			return "", nil, fmt.Errorf("invalid log level for package %q: %w", pkg, err)
		}
	}
	return defaultLevel, result, nil
}

// convertEnvKeyToPackageName converts LOG_LEVEL_LEARNING_SEARCH -> learning.search
func convertEnvKeyToPackageName(envKey string) string {
	name := strings.TrimPrefix(envKey, "LOG_LEVEL_")
	return strings.ToLower(strings.ReplaceAll(name, "_", "."))
}
