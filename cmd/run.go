package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/fracture-cli/internal/analysis"
	"github.com/KaramelBytes/fracture-cli/internal/clean"
	cfgpkg "github.com/KaramelBytes/fracture-cli/internal/config"
	"github.com/KaramelBytes/fracture-cli/internal/dataset"
	"github.com/KaramelBytes/fracture-cli/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	runSplit      float64
	runRatio      float64
	runThreshold  float64
	runSeed       int64
	runModels     string
	runOutputDir  string
	runNoOutliers bool
	runLedger     bool
	runSheetName  string
	runSheetIndex int
)

var runPipelineCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Clean, sample, fit and evaluate on a CSV/TSV/XLSX export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		eff := *c
		applyRunFlags(cmd, &eff)
		if err := eff.Validate(); err != nil {
			return err
		}

		res, err := pipeline.Run(cmd.Context(), args[0], pipelineOptions(&eff), logger)
		if err != nil {
			return err
		}
		run := res.Run
		fmt.Printf("✓ Run %s: %d rows loaded, %d after cleaning, train %d (balanced %d), test %d\n",
			run.ID, run.Sizes.Loaded, run.Sizes.Cleaned, run.Sizes.Train, run.Sizes.Balanced, run.Sizes.Test)
		if len(run.Dropped) > 0 {
			fmt.Printf("⚠ Dropped constant features: %s\n", strings.Join(run.Dropped, ", "))
		}
		for _, s := range res.Summaries {
			fmt.Printf("✓ %s: accuracy %.4f, sensitivity %.4f, specificity %.4f\n", s.Model, s.Accuracy, s.Sensitivity, s.Specificity)
		}
		fmt.Printf("✓ Wrote results to %s\n", run.Dir())
		return nil
	},
}

// applyRunFlags overrides config values with flags the user set explicitly.
func applyRunFlags(cmd *cobra.Command, c *cfgpkg.Global) {
	f := cmd.Flags()
	if f.Changed("split") {
		c.Split = runSplit
	}
	if f.Changed("ratio") {
		c.Ratio = runRatio
	}
	if f.Changed("threshold") {
		c.Threshold = runThreshold
	}
	if f.Changed("seed") {
		c.Seed = runSeed
	}
	if f.Changed("models") {
		c.Models = splitList(runModels)
	}
	if f.Changed("output-dir") {
		c.OutputDir = runOutputDir
	}
	if f.Changed("no-outliers") {
		c.RemoveOutliers = !runNoOutliers
	}
	if f.Changed("ledger") {
		c.Ledger = runLedger
	}
	if f.Changed("sheet-name") {
		c.SheetName = runSheetName
	}
	if f.Changed("sheet-index") {
		c.SheetIndex = runSheetIndex
	}
}

func loadOptions(c *cfgpkg.Global) dataset.LoadOptions {
	return dataset.LoadOptions{
		IDColumn:    c.IDColumn,
		LabelColumn: c.LabelColumn,
		Numeric:     c.NumericColumns,
		Categorical: c.CategoricalColumns,
		SheetName:   c.SheetName,
		SheetIndex:  c.SheetIndex,
	}
}

func profileOptions(c *cfgpkg.Global) analysis.Options {
	opt := analysis.DefaultOptions()
	opt.OutlierThreshold = c.OutlierThreshold
	opt.RareShare = c.RareShare
	return opt
}

func pipelineOptions(c *cfgpkg.Global) pipeline.Options {
	opt := pipeline.Options{
		Load: loadOptions(c),
		Clean: clean.Options{
			ForwardFill:      c.ForwardFill,
			AnomalyColumn:    c.AnomalyColumn,
			AnomalyValue:     c.AnomalyValue,
			RemoveOutliers:   c.RemoveOutliers,
			OutlierColumns:   c.OutlierColumns,
			OutlierThreshold: c.OutlierThreshold,
		},
		Profile:   profileOptions(c),
		Split:     c.Split,
		Ratio:     c.Ratio,
		Threshold: c.Threshold,
		Seed:      c.Seed,
		Models:    c.Models,
		Lambda:    c.Lambda,
		MaxIter:   c.MaxIter,
		OutputDir: c.OutputDir,
	}
	if c.Ledger {
		opt.LedgerPath = c.LedgerPath
	}
	return opt
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func init() {
	rootCmd.AddCommand(runPipelineCmd)
	runPipelineCmd.Flags().Float64Var(&runSplit, "split", 0.5, "fraction of each outcome class used for training (overrides config)")
	runPipelineCmd.Flags().Float64Var(&runRatio, "ratio", 1, "non-fracture rows kept per fracture row when under-sampling (overrides config)")
	runPipelineCmd.Flags().Float64Var(&runThreshold, "threshold", 0.5, "probability at or above which a visit is predicted yes (overrides config)")
	runPipelineCmd.Flags().Int64Var(&runSeed, "seed", 42, "random seed for split and under-sampling (overrides config)")
	runPipelineCmd.Flags().StringVar(&runModels, "models", "", "comma-separated models: naive-bayes,logistic (overrides config)")
	runPipelineCmd.Flags().StringVarP(&runOutputDir, "output-dir", "o", "", "directory that receives the run folder (overrides config)")
	runPipelineCmd.Flags().BoolVar(&runNoOutliers, "no-outliers", false, "keep robust outliers instead of dropping them")
	runPipelineCmd.Flags().BoolVar(&runLedger, "ledger", false, "record the run in the SQLite run ledger")
	runPipelineCmd.Flags().StringVar(&runSheetName, "sheet-name", "", "XLSX: sheet name to read")
	runPipelineCmd.Flags().IntVar(&runSheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
}
