package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	cfgpkg "github.com/KaramelBytes/fracture-cli/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	debug   bool

	// Loaded configuration; nil when loading failed (see cfgErr)
	cfg    *cfgpkg.Global
	cfgErr error

	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "fracture",
	Short: "Fracture CLI: clean, sample and classify pathological fracture visits",
	Long: `Fracture loads a tabular export of patient visits, profiles and cleans it,
builds a stratified and rebalanced training set, fits outcome classifiers and
writes per-record predictions with a per-class evaluation.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(setupLogger, loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.fracture/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func setupLogger() {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func loadConfig() {
	cfg, cfgErr = cfgpkg.Load(cfgFile)
	if cfgErr != nil {
		// Non-fatal: commands that need config report cfgErr themselves
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", cfgErr)
	}
}

// requireConfig returns the loaded configuration or the reason it is missing.
func requireConfig() (*cfgpkg.Global, error) {
	if cfg == nil {
		if cfgErr != nil {
			return nil, cfgErr
		}
		return nil, fmt.Errorf("no config loaded")
	}
	return cfg, nil
}
