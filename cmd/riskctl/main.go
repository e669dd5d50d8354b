// Command riskctl runs the risk engine in-process and prints route assessments.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jwolfsohn/Atlas-Sentinel/app"
	"github.com/jwolfsohn/Atlas-Sentinel/config"
)

var rootCmd = &cobra.Command{
	Use:   "riskctl",
	Short: "Score shipping routes for disruption risk",
	Long: `riskctl builds the engine from the usual environment and config file,
evaluates routes against the configured signal sources and prints the results.`,
	SilenceUsage:      true,
	PersistentPreRunE: openEngine,
	PersistentPostRun: closeEngine,
}

var opts struct {
	seed  int64
	model string
	json  bool
}

// engine is opened before every subcommand and closed after it.
var engine *app.Engine

func init() {
	rootCmd.PersistentFlags().Int64Var(&opts.seed, "seed", 42, "simulator seed")
	rootCmd.PersistentFlags().StringVar(&opts.model, "model", "", "risk model (heuristic or regression)")
	rootCmd.PersistentFlags().BoolVar(&opts.json, "json", false, "output results as JSON")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openEngine(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("seed") {
		cfg.Source.Seed = opts.seed
	}
	if opts.model != "" {
		cfg.Risk.Model = opts.model
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	e, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	engine = e
	return nil
}

func closeEngine(*cobra.Command, []string) {
	if engine != nil {
		engine.Close()
		engine = nil
	}
}

func outputJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
