package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/KaramelBytes/fracture-cli/internal/ledger"
	"github.com/KaramelBytes/fracture-cli/internal/report"
	"github.com/spf13/cobra"
)

var (
	runsLimit  int
	runsLedger bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List previous runs from the ledger or the output directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if runsLedger {
			return listLedgerRuns(cmd, c.LedgerPath)
		}
		return listRunDirs(c.OutputDir)
	},
}

func listLedgerRuns(cmd *cobra.Command, path string) error {
	if _, err := os.Stat(path); err != nil {
		fmt.Println("(no runs)")
		return nil
	}
	l, err := ledger.Open(cmd.Context(), path)
	if err != nil {
		return err
	}
	defer l.Close()
	entries, err := l.List(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("(no runs)")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("- %s %s %s: accuracy %.4f, sensitivity %.4f, specificity %.4f (seed %d, %s)\n",
			e.CreatedAt.Format("2006-01-02 15:04"), e.RunID, e.Model,
			e.Accuracy, e.Sensitivity, e.Specificity, e.Seed, filepath.Base(e.Input))
	}
	return nil
}

func listRunDirs(root string) error {
	dirs, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("(no runs)")
			return nil
		}
		return err
	}
	var runs []*report.Run
	for _, e := range dirs {
		if !e.IsDir() {
			continue
		}
		r, err := report.LoadRun(filepath.Join(root, e.Name()))
		if err != nil {
			logger.Debug("skipping directory", "dir", e.Name(), "error", err)
			continue
		}
		runs = append(runs, r)
	}
	if len(runs) == 0 {
		fmt.Println("(no runs)")
		return nil
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if runsLimit > 0 && len(runs) > runsLimit {
		runs = runs[:runsLimit]
	}
	for _, r := range runs {
		fmt.Printf("- %s %s (%s, test %d)\n", r.StartedAt.Format("2006-01-02 15:04"), r.ID, filepath.Base(r.Input), r.Sizes.Test)
		for _, m := range r.Models {
			if m.Summary == nil {
				continue
			}
			fmt.Printf("    %s: accuracy %.4f, sensitivity %.4f, specificity %.4f\n",
				m.Name, m.Summary.Accuracy, m.Summary.Sensitivity, m.Summary.Specificity)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list (0 = all)")
	runsCmd.Flags().BoolVar(&runsLedger, "ledger", false, "read the SQLite run ledger instead of scanning output_dir")
}
