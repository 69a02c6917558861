package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/fracture-cli/internal/pipeline"
	"github.com/KaramelBytes/fracture-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	profOutputDir  string
	profSampleRows int
	profOutlierThr float64
	profSheetName  string
	profSheetIndex int
	profQuiet      bool
)

var profileCmd = &cobra.Command{
	Use:   "profile <files...>",
	Short: "Profile one or more CSV/TSV/XLSX visit exports without fitting models",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		eff := *c
		if cmd.Flags().Changed("sheet-name") {
			eff.SheetName = profSheetName
		}
		if cmd.Flags().Changed("sheet-index") {
			eff.SheetIndex = profSheetIndex
		}
		if cmd.Flags().Changed("outlier-threshold") {
			if profOutlierThr <= 0 {
				return fmt.Errorf("--outlier-threshold must be greater than 0")
			}
			eff.OutlierThreshold = profOutlierThr
		}
		opt := profileOptions(&eff)
		if cmd.Flags().Changed("sample-rows") {
			opt.SampleRows = profSampleRows
		}

		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		total := len(files)
		for i, path := range files {
			if !profQuiet && total > 1 {
				fmt.Printf("[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			rep, err := pipeline.ProfileFile(path, loadOptions(&eff), opt)
			if err != nil {
				return err
			}
			for _, w := range rep.Warnings {
				logger.Debug("profile note", "file", rep.Name, "note", w)
			}
			md := rep.Markdown()
			if profOutputDir == "" {
				fmt.Println(md)
				continue
			}
			out, err := profileOutputPath(profOutputDir, path)
			if err != nil {
				return err
			}
			if err := utils.SafeWriteFile(out, []byte(md)); err != nil {
				return fmt.Errorf("write profile: %w", err)
			}
			if !profQuiet {
				fmt.Printf("✓ Wrote profile to %s\n", out)
			}
		}
		return nil
	},
}

// expandInputs resolves globs and literal paths into a sorted, de-duplicated list.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

// profileOutputPath picks <dir>/<base>.profile.md, adding a numeric suffix
// when a profile with that name already exists.
func profileOutputPath(dir, input string) (string, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return "", err
	}
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	out := filepath.Join(dir, stem+".profile.md")
	if _, err := os.Stat(out); err != nil {
		return out, nil
	}
	for idx := 2; ; idx++ {
		cand := filepath.Join(dir, fmt.Sprintf("%s__%d.profile.md", stem, idx))
		if _, err := os.Stat(cand); os.IsNotExist(err) {
			if !profQuiet {
				fmt.Printf("⚠ Detected existing profile, writing to %s to avoid overwrite.\n", filepath.Base(cand))
			}
			return cand, nil
		}
	}
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().StringVarP(&profOutputDir, "output-dir", "o", "", "write <name>.profile.md files here instead of stdout")
	profileCmd.Flags().IntVar(&profSampleRows, "sample-rows", 5, "number of sample rows to include (0 disables samples)")
	profileCmd.Flags().Float64Var(&profOutlierThr, "outlier-threshold", 3.5, "robust |z| threshold for outliers (MAD-based)")
	profileCmd.Flags().StringVar(&profSheetName, "sheet-name", "", "XLSX: sheet name to analyze")
	profileCmd.Flags().IntVar(&profSheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	profileCmd.Flags().BoolVar(&profQuiet, "quiet", false, "suppress progress and non-essential output")
}
