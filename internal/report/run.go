package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/fracture-cli/internal/clean"
	"github.com/KaramelBytes/fracture-cli/internal/dataset"
	"github.com/KaramelBytes/fracture-cli/internal/evaluate"
	"github.com/KaramelBytes/fracture-cli/internal/utils"
)

const (
	manifestFileName   = "run.json"
	EvaluationFileName = "evaluation.md"
	ProfileFileName    = "profile.md"
)

// Settings is the configuration snapshot a run was made with.
type Settings struct {
	Seed           int64    `json:"seed"`
	Split          float64  `json:"split"`
	Ratio          float64  `json:"ratio"`
	Threshold      float64  `json:"threshold"`
	Models         []string `json:"models"`
	RemoveOutliers bool     `json:"remove_outliers"`
}

// Sizes records row counts as data moves through the pipeline.
type Sizes struct {
	Loaded   int `json:"loaded"`
	Cleaned  int `json:"cleaned"`
	Train    int `json:"train"`
	Balanced int `json:"balanced"`
	Test     int `json:"test"`
}

// ModelResult is the outcome of one classifier.
type ModelResult struct {
	Name        string            `json:"name"`
	Predictions string            `json:"predictions"` // file name inside the run directory
	Summary     *evaluate.Summary `json:"summary"`
}

// Run is the manifest of one pipeline execution persisted as run.json.
type Run struct {
	ID         string             `json:"id"`
	Input      string             `json:"input"`
	Settings   Settings           `json:"settings"`
	Load       *dataset.LoadStats `json:"load,omitempty"`
	Clean      *clean.Stats       `json:"clean,omitempty"`
	Sizes      Sizes              `json:"sizes"`
	Features   []string           `json:"features"`
	Dropped    []string           `json:"dropped_features"`
	Models     []ModelResult      `json:"models"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`

	// Not serialized: on-disk location of run.json
	rootDir string `json:"-"`
}

// NewRun constructs a run with a fresh id whose directory lives under outputDir.
// Call Save() to persist.
func NewRun(outputDir, input string) *Run {
	id := uuid.NewString()
	return &Run{
		ID:        id,
		Input:     input,
		StartedAt: time.Now(),
		rootDir:   filepath.Join(outputDir, id),
	}
}

// LoadRun reads run.json from a run directory.
func LoadRun(dir string) (*Run, error) {
	path := filepath.Join(dir, manifestFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("run not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read run: %w", err)
	}
	var r Run
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("parse run: %w", err)
	}
	r.rootDir = dir
	return &r, nil
}

// Dir returns the on-disk run directory.
func (r *Run) Dir() string { return r.rootDir }

// Save writes run.json using atomic write.
func (r *Run) Save() error {
	if r.rootDir == "" {
		return errors.New("run directory not set")
	}
	if err := utils.EnsureDir(r.rootDir); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	data, err := utils.PrettyJSON(r)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(r.rootDir, manifestFileName), data)
}

// WriteFile writes a named artifact into the run directory.
func (r *Run) WriteFile(name string, data []byte) (string, error) {
	if r.rootDir == "" {
		return "", errors.New("run directory not set")
	}
	if err := utils.EnsureDir(r.rootDir); err != nil {
		return "", fmt.Errorf("ensure dir: %w", err)
	}
	path := filepath.Join(r.rootDir, name)
	if err := utils.SafeWriteFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}
