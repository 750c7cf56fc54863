package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/kvlunge/internal/performance/config"
	"github.com/wesleyorama2/kvlunge/internal/performance/executor"
	"github.com/wesleyorama2/kvlunge/internal/performance/generator"
	"github.com/wesleyorama2/kvlunge/internal/performance/sequence"
)

var validateCmd = &cobra.Command{
	Use:   "validate <config>",
	Short: "Validate a configuration file without running it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateConfig(args[0], cmd.OutOrStdout())
	},
}

// validateConfig loads path, validates it and prints what a run would do.
func validateConfig(path string, w io.Writer) error {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	config.ApplyDefaults(cfg)

	table, kind, err := cfg.Workload()
	if err != nil {
		return err
	}
	ops := kind.String()
	if table != nil {
		ops = table.Description()
	}
	src, err := sequence.New(cfg.SequenceSpec(), cfg.Seed)
	if err != nil {
		return fmt.Errorf("sequence: %w", err)
	}
	keys, err := generator.New(cfg.KeySpec())
	if err != nil {
		return fmt.Errorf("keys: %w", err)
	}
	values, err := generator.New(cfg.ValueSpec())
	if err != nil {
		return fmt.Errorf("values: %w", err)
	}
	thresholds, err := cfg.ResultThresholds()
	if err != nil {
		return err
	}

	targets := make([]string, len(cfg.Targets))
	for i, t := range cfg.Targets {
		targets[i] = fmt.Sprintf("%s (%s)", t.Name, t.Type)
	}

	fmt.Fprintf(w, "%s: OK\n", path)
	fmt.Fprintf(w, "  Executor:   %s\n", executor.Describe(cfg.ExecutorConfig()))
	fmt.Fprintf(w, "  Targets:    %s\n", strings.Join(targets, ", "))
	fmt.Fprintf(w, "  Operations: %s\n", ops)
	sharing := "shared"
	if !cfg.Sequence.IsShared() {
		sharing = "per worker"
	}
	fmt.Fprintf(w, "  Sequence:   %s, %s\n", src.Description(), sharing)
	fmt.Fprintf(w, "  Keys:       %s\n", keys.Description())
	fmt.Fprintf(w, "  Values:     %s\n", values.Description())
	if cfg.Throttle != nil {
		fmt.Fprintf(w, "  Throttle:   %s at %g/s\n", cfg.Throttle.Result, cfg.Throttle.Limit)
	}
	if cfg.Pace > 0 {
		fmt.Fprintf(w, "  Pace:       %g iterations/s\n", cfg.Pace)
	}
	if len(thresholds) > 0 {
		fmt.Fprintf(w, "  Thresholds: %d\n", len(thresholds))
	}
	return nil
}
