package main

import (
	"fmt"
	"os"

	"github.com/rupamthxt/lookalike/internal/config"
	"github.com/rupamthxt/lookalike/internal/logging"
	"github.com/spf13/cobra"
)

var (
	// version is set at build time
	version = "dev"

	configPath string
	debug      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "lookalike",
		Short:         "Match portrait embeddings against a character catalog",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to lookalike.yaml")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMatchCmd())
	rootCmd.AddCommand(newValidateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and lets command-line flags win.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("catalog") {
		cfg.Catalog.Path, _ = flags.GetString("catalog")
	}
	if flags.Changed("dim") {
		cfg.Matching.ExpectedDimension, _ = flags.GetInt("dim")
	}
	if flags.Changed("top-k") {
		cfg.Matching.TopK, _ = flags.GetInt("top-k")
	}
	if flags.Changed("threshold") {
		t, _ := flags.GetFloat64("threshold")
		cfg.Matching.Threshold = &t
	}
	if flags.Changed("score-mode") {
		cfg.Matching.ScoreMode, _ = flags.GetString("score-mode")
	}
	if flags.Changed("addr") {
		cfg.Server.Addr, _ = flags.GetString("addr")
	}
	if flags.Changed("join") {
		cfg.Cluster.Join, _ = flags.GetString("join")
	}
	if debug {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(os.Stderr, cfg.Log.Format, level)
}

func addMatchingFlags(cmd *cobra.Command) {
	cmd.Flags().String("catalog", "", "Catalog location (file path or s3://bucket/key)")
	cmd.Flags().Int("dim", 0, "Expected embedding dimension")
	cmd.Flags().Int("top-k", 0, "Number of candidates to return")
	cmd.Flags().Float64("threshold", 0, "Cosine threshold below which the result is unknown")
	cmd.Flags().String("score-mode", "", "Score reporting: percent or cosine")
}
