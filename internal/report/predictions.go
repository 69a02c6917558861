package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/KaramelBytes/fracture-cli/internal/dataset"
	"github.com/KaramelBytes/fracture-cli/internal/model"
)

// PredictionsFileName is the per-model predictions file inside a run directory.
func PredictionsFileName(modelName string) string {
	return "predictions_" + modelName + ".csv"
}

// WritePredictionsCSV writes id,actual,predicted,match and, when the model
// yields probabilities, a trailing probability column.
func WritePredictionsCSV(w io.Writer, ids []string, truth []dataset.Label, preds []model.Prediction) error {
	if len(ids) != len(truth) || len(truth) != len(preds) {
		return fmt.Errorf("predictions: %d ids, %d labels, %d predictions", len(ids), len(truth), len(preds))
	}
	withProb := false
	for _, p := range preds {
		if !math.IsNaN(p.Probability) {
			withProb = true
			break
		}
	}
	cw := csv.NewWriter(w)
	header := []string{"id", "actual", "predicted", "match"}
	if withProb {
		header = append(header, "probability")
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, p := range preds {
		rec := []string{ids[i], truth[i].String(), p.Label.String(), strconv.FormatBool(p.Label == truth[i])}
		if withProb {
			prob := ""
			if !math.IsNaN(p.Probability) {
				prob = strconv.FormatFloat(p.Probability, 'f', 6, 64)
			}
			rec = append(rec, prob)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePredictions stores a model's predictions in the run directory and
// returns the file name used.
func (r *Run) WritePredictions(modelName string, ids []string, truth []dataset.Label, preds []model.Prediction) (string, error) {
	var buf bytes.Buffer
	if err := WritePredictionsCSV(&buf, ids, truth, preds); err != nil {
		return "", err
	}
	name := PredictionsFileName(modelName)
	if _, err := r.WriteFile(name, buf.Bytes()); err != nil {
		return "", err
	}
	return name, nil
}
