// Package pipeline runs the load, clean, sample, fit and evaluate stages end
// to end. Each stage takes the previous stage's output and returns a new value;
// nothing is mutated in place.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/fracture-cli/internal/analysis"
	"github.com/KaramelBytes/fracture-cli/internal/clean"
	"github.com/KaramelBytes/fracture-cli/internal/dataset"
	"github.com/KaramelBytes/fracture-cli/internal/evaluate"
	"github.com/KaramelBytes/fracture-cli/internal/features"
	"github.com/KaramelBytes/fracture-cli/internal/ledger"
	"github.com/KaramelBytes/fracture-cli/internal/model"
	"github.com/KaramelBytes/fracture-cli/internal/report"
	"github.com/KaramelBytes/fracture-cli/internal/sample"
)

// Stage names reported in StageError and logs.
const (
	StageLoad      = "load"
	StageProfile   = "profile"
	StageClean     = "clean"
	StagePartition = "partition"
	StageBalance   = "balance"
	StageFilter    = "filter"
	StageEncode    = "encode"
	StageFit       = "fit"
	StageEvaluate  = "evaluate"
	StageWrite     = "write"
	StageLedger    = "ledger"
)

// Options configures a run.
type Options struct {
	Load    dataset.LoadOptions
	Clean   clean.Options
	Profile analysis.Options

	Split     float64
	Ratio     float64
	Threshold float64
	Seed      int64
	Models    []string
	Lambda    float64
	MaxIter   int

	OutputDir string
	// LedgerPath enables the run ledger when non-empty.
	LedgerPath string
}

// Result is what a completed run produced.
type Result struct {
	Run       *report.Run
	Profile   *analysis.Report
	Summaries []*evaluate.Summary
}

type fitted struct {
	name  string
	preds []model.Prediction
}

// Run executes every stage on the file at input.
func Run(ctx context.Context, input string, opt Options, log *slog.Logger) (*Result, error) {
	if log == nil {
		log = slog.Default()
	}
	if len(opt.Models) == 0 {
		return nil, &StageError{Stage: StageFit, Err: fmt.Errorf("no models configured")}
	}
	run := report.NewRun(opt.OutputDir, input)
	run.Settings = report.Settings{
		Seed: opt.Seed, Split: opt.Split, Ratio: opt.Ratio, Threshold: opt.Threshold,
		Models: append([]string(nil), opt.Models...), RemoveOutliers: opt.Clean.RemoveOutliers,
	}
	log = log.With("run", run.ID)
	res := &Result{Run: run}

	// load
	var raw *dataset.Dataset
	err := step(ctx, log, StageLoad, func() error {
		ds, st, err := dataset.Load(input, opt.Load)
		if err != nil {
			return err
		}
		raw, run.Load = ds, st
		run.Sizes.Loaded = ds.Len()
		log.Info("loaded", "rows", ds.Len(), "format", st.Format, "conditions", len(ds.Schema.Conditions))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := step(ctx, log, StageProfile, func() error {
		res.Profile = analysis.Profile(raw, opt.Profile)
		res.Profile.NoteLoad(run.Load)
		return nil
	}); err != nil {
		return nil, err
	}

	// clean
	var cleaned *dataset.Dataset
	if err := step(ctx, log, StageClean, func() error {
		ds, st, err := clean.Clean(raw, opt.Clean)
		if err != nil {
			return err
		}
		cleaned, run.Clean = ds, st
		run.Sizes.Cleaned = ds.Len()
		log.Info("cleaned", "rows", ds.Len(), "dropped_anomalies", st.DroppedAnomalies, "dropped_outliers", st.DroppedOutliers)
		return nil
	}); err != nil {
		return nil, err
	}

	// partition and balance
	var split sample.Split
	if err := step(ctx, log, StagePartition, func() error {
		s, err := sample.Partition(cleaned, opt.Split, sample.NewRand(opt.Seed))
		if err != nil {
			return err
		}
		split = s
		run.Sizes.Train, run.Sizes.Test = s.Train.Len(), s.Test.Len()
		log.Info("partitioned", "train", s.Train.Len(), "test", s.Test.Len(), "train_yes", s.Train.CountLabel(dataset.Yes))
		return nil
	}); err != nil {
		return nil, err
	}
	var balanced *dataset.Dataset
	if err := step(ctx, log, StageBalance, func() error {
		b, err := sample.Balance(split.Train, opt.Ratio, sample.NewRand(opt.Seed+1))
		if err != nil {
			return err
		}
		balanced = b
		run.Sizes.Balanced = b.Len()
		log.Info("balanced", "rows", b.Len(), "yes", b.CountLabel(dataset.Yes), "no", b.CountLabel(dataset.No))
		return nil
	}); err != nil {
		return nil, err
	}

	// features
	var train, test *dataset.Dataset
	if err := step(ctx, log, StageFilter, func() error {
		f := features.FitFilter(balanced)
		var err error
		if train, err = f.Apply(balanced); err != nil {
			return err
		}
		if test, err = f.Apply(split.Test); err != nil {
			return err
		}
		run.Dropped = f.Dropped
		log.Info("filtered", "dropped", len(f.Dropped))
		return nil
	}); err != nil {
		return nil, err
	}
	var trainM, testM features.Matrix
	if err := step(ctx, log, StageEncode, func() error {
		enc := features.FitEncoder(train)
		var err error
		if trainM, err = enc.Transform(train); err != nil {
			return err
		}
		if testM, err = enc.Transform(test); err != nil {
			return err
		}
		run.Features = trainM.Columns
		log.Info("encoded", "columns", len(trainM.Columns))
		return nil
	}); err != nil {
		return nil, err
	}

	// fit every model concurrently on the same matrices
	results := make([]fitted, len(opt.Models))
	if err := step(ctx, log, StageFit, func() error {
		g, gctx := errgroup.WithContext(ctx)
		for i, name := range opt.Models {
			i, name := i, name
			g.Go(func() error {
				c, err := model.New(name, model.Options{Threshold: opt.Threshold, Lambda: opt.Lambda, MaxIter: opt.MaxIter})
				if err != nil {
					return err
				}
				start := time.Now()
				if err := c.Fit(gctx, trainM); err != nil {
					return err
				}
				preds, err := c.Predict(gctx, testM)
				if err != nil {
					return err
				}
				log.Debug("model fitted", "model", name, "duration", time.Since(start))
				results[i] = fitted{name: name, preds: preds}
				return nil
			})
		}
		return g.Wait()
	}); err != nil {
		return nil, err
	}

	truth := make([]dataset.Label, test.Len())
	for i, r := range test.Records {
		truth[i] = r.Label
	}
	if err := step(ctx, log, StageEvaluate, func() error {
		for _, f := range results {
			labels := make([]dataset.Label, len(f.preds))
			for i, p := range f.preds {
				labels[i] = p.Label
			}
			s, err := evaluate.Evaluate(f.name, truth, labels)
			if err != nil {
				return err
			}
			res.Summaries = append(res.Summaries, s)
			log.Info("evaluated", "model", f.name, "accuracy", s.Accuracy, "sensitivity", s.Sensitivity, "specificity", s.Specificity)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := step(ctx, log, StageWrite, func() error {
		for i, f := range results {
			name, err := run.WritePredictions(f.name, testM.IDs, truth, f.preds)
			if err != nil {
				return err
			}
			run.Models = append(run.Models, report.ModelResult{Name: f.name, Predictions: name, Summary: res.Summaries[i]})
		}
		if _, err := run.WriteFile(report.EvaluationFileName, []byte(evaluate.Markdown(res.Summaries))); err != nil {
			return err
		}
		if _, err := run.WriteFile(report.ProfileFileName, []byte(res.Profile.Markdown())); err != nil {
			return err
		}
		run.FinishedAt = time.Now()
		return run.Save()
	}); err != nil {
		return nil, err
	}

	if opt.LedgerPath != "" {
		if err := step(ctx, log, StageLedger, func() error {
			return record(ctx, opt.LedgerPath, run)
		}); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// ProfileFile loads a file and profiles it without running the pipeline.
func ProfileFile(path string, load dataset.LoadOptions, opt analysis.Options) (*analysis.Report, error) {
	ds, st, err := dataset.Load(path, load)
	if err != nil {
		return nil, &StageError{Stage: StageLoad, Err: err}
	}
	rep := analysis.Profile(ds, opt)
	rep.Name = filepath.Base(path)
	rep.NoteLoad(st)
	return rep, nil
}

func record(ctx context.Context, path string, run *report.Run) error {
	l, err := ledger.Open(ctx, path)
	if err != nil {
		return err
	}
	defer l.Close()
	entries := make([]ledger.Entry, 0, len(run.Models))
	for _, m := range run.Models {
		entries = append(entries, ledger.Entry{
			RunID: run.ID, CreatedAt: run.StartedAt, Input: run.Input, Model: m.Name,
			Seed: run.Settings.Seed, Split: run.Settings.Split, Ratio: run.Settings.Ratio, Threshold: run.Settings.Threshold,
			TrainRows: run.Sizes.Balanced, TestRows: run.Sizes.Test,
			Accuracy: m.Summary.Accuracy, Sensitivity: m.Summary.Sensitivity, Specificity: m.Summary.Specificity,
		})
	}
	return l.Record(ctx, entries...)
}

// step runs fn as a named stage, wrapping failures in StageError.
func step(ctx context.Context, log *slog.Logger, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: name, Err: err}
	}
	start := time.Now()
	if err := fn(); err != nil {
		log.Error("stage failed", "stage", name, "error", err)
		return &StageError{Stage: name, Err: err}
	}
	log.Debug("stage done", "stage", name, "duration", time.Since(start))
	return nil
}
