// Package evaluate compares predictions against the true outcome, broken down
// by true class.
package evaluate

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/fracture-cli/internal/dataset"
)

// Row is one (true label, match) cell of the breakdown.
type Row struct {
	Label      dataset.Label `json:"label"`
	Match      bool          `json:"match"`
	Count      int           `json:"count"`
	Proportion float64       `json:"proportion"` // share within the true-label group
}

// Summary is the per-class breakdown for one model.
type Summary struct {
	Model string `json:"model"`
	Total int    `json:"total"`
	// Rows are ordered yes/true, yes/false, no/true, no/false.
	Rows        []Row   `json:"rows"`
	Accuracy    float64 `json:"accuracy"`
	Sensitivity float64 `json:"sensitivity"`
	Specificity float64 `json:"specificity"`
}

// LengthMismatchError is returned when truth and predictions are not aligned.
type LengthMismatchError struct {
	Truth, Predicted int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("evaluate: %d true labels but %d predictions", e.Truth, e.Predicted)
}

// Evaluate builds the breakdown. A class absent from truth reports zero counts
// and zero proportions.
func Evaluate(model string, truth, predicted []dataset.Label) (*Summary, error) {
	if len(truth) != len(predicted) {
		return nil, &LengthMismatchError{Truth: len(truth), Predicted: len(predicted)}
	}
	// counts[label][match]
	var counts [2][2]int
	hits := 0
	for i, t := range truth {
		m := 0
		if predicted[i] == t {
			m = 1
			hits++
		}
		counts[t][m]++
	}

	s := &Summary{Model: model, Total: len(truth)}
	for _, lbl := range []dataset.Label{dataset.Yes, dataset.No} {
		group := counts[lbl][0] + counts[lbl][1]
		for _, match := range []bool{true, false} {
			m := 0
			if match {
				m = 1
			}
			r := Row{Label: lbl, Match: match, Count: counts[lbl][m]}
			if group > 0 {
				r.Proportion = float64(r.Count) / float64(group)
			}
			s.Rows = append(s.Rows, r)
		}
	}
	if s.Total > 0 {
		s.Accuracy = float64(hits) / float64(s.Total)
	}
	s.Sensitivity = s.Rows[0].Proportion
	s.Specificity = s.Rows[2].Proportion
	return s, nil
}

// Lookup returns the row for (label, match).
func (s *Summary) Lookup(lbl dataset.Label, match bool) Row {
	for _, r := range s.Rows {
		if r.Label == lbl && r.Match == match {
			return r
		}
	}
	return Row{Label: lbl, Match: match}
}

// Markdown renders one or more summaries as a report.
func Markdown(summaries []*Summary) string {
	var b strings.Builder
	b.WriteString("[EVALUATION]\n")
	for i, s := range summaries {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("Model: %s (n=%d)\n", s.Model, s.Total))
		b.WriteString("| result | match | count | proportion |\n")
		b.WriteString("| --- | --- | --- | --- |\n")
		for _, r := range s.Rows {
			b.WriteString(fmt.Sprintf("| %s | %t | %d | %.4f |\n", r.Label, r.Match, r.Count, r.Proportion))
		}
		b.WriteString(fmt.Sprintf("Accuracy: %.4f; sensitivity: %.4f; specificity: %.4f\n", s.Accuracy, s.Sensitivity, s.Specificity))
	}
	return b.String()
}
