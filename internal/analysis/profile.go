package analysis

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/fracture-cli/internal/dataset"
	"github.com/KaramelBytes/fracture-cli/internal/stats"
)

// Options controls dataset profiling.
type Options struct {
	// OutlierThreshold is the robust |z| above which a value counts as an outlier.
	OutlierThreshold float64
	// RareShare flags categorical levels whose share of non-null values is below it.
	RareShare float64
	// TopValues caps the categorical levels listed per column.
	TopValues int
	// SampleRows determines how many example rows to include in the report.
	SampleRows int
}

// DefaultOptions returns reasonable defaults for dataset profiling.
func DefaultOptions() Options {
	return Options{
		OutlierThreshold: 3.5,
		RareShare:        0.005,
		TopValues:        8,
		SampleRows:       5,
	}
}

// Report is a markdown-friendly profile of a loaded dataset.
type Report struct {
	Name         string
	Rows         int
	Cols         []ColumnSummary
	Conditions   []ConditionSummary
	Label        LabelBalance
	SampleHeader []string
	Samples      [][]string
	Warnings     []string
}

// ColumnSummary captures statistics per numeric or categorical column.
type ColumnSummary struct {
	Name    string
	Kind    string // numeric|categorical
	NonNull int
	Missing int
	Unique  int
	// Numeric stats
	Min    float64
	Max    float64
	Mean   float64
	Std    float64
	Median float64
	// Outliers (robust Z via MAD)
	OutliersCount    int
	OutliersMaxAbsZ  float64
	OutlierThreshold float64
	// Categorical levels, most frequent first
	TopValues []CategoryCount
	Rare      []CategoryCount
}

type CategoryCount struct {
	Value string
	Count int
}

// ConditionSummary counts records per status of one condition code.
type ConditionSummary struct {
	Code   string
	Counts []CategoryCount // one entry per status, absent first
}

// Raised returns the number of records with any non-absent status.
func (c ConditionSummary) Raised() int {
	n := 0
	for _, kv := range c.Counts {
		if kv.Value != dataset.Absent.String() {
			n += kv.Count
		}
	}
	return n
}

// LabelBalance describes the outcome distribution.
type LabelBalance struct {
	Yes, No  int
	YesShare float64
}

// Profile inspects ds without modifying it.
func Profile(ds *dataset.Dataset, opt Options) *Report {
	if opt.OutlierThreshold <= 0 {
		opt.OutlierThreshold = 3.5
	}
	if opt.TopValues <= 0 {
		opt.TopValues = 8
	}
	rep := &Report{Rows: ds.Len()}

	for j, name := range ds.Schema.Numeric {
		rep.Cols = append(rep.Cols, numericSummary(name, ds.NumericColumn(j), opt))
	}
	for j, name := range ds.Schema.Categorical {
		s := categoricalSummary(name, ds.CategoricalColumn(j), opt)
		for _, kv := range s.Rare {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("%s: rare level %q (%d of %d, %.2f%%)",
				name, kv.Value, kv.Count, s.NonNull, float64(kv.Count)*100/float64(s.NonNull)))
		}
		rep.Cols = append(rep.Cols, s)
	}
	for _, c := range rep.Cols {
		if c.NonNull == 0 && rep.Rows > 0 {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("%s: every value is missing", c.Name))
		}
	}

	for c, code := range ds.Schema.Conditions {
		counts := make(map[dataset.Status]int)
		for _, r := range ds.Records {
			counts[r.Conditions[c]]++
		}
		cs := ConditionSummary{Code: code}
		cs.Counts = append(cs.Counts, CategoryCount{Value: dataset.Absent.String(), Count: counts[dataset.Absent]})
		for _, st := range dataset.FlagStatuses {
			cs.Counts = append(cs.Counts, CategoryCount{Value: st.String(), Count: counts[st]})
		}
		if cs.Raised() == 0 {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("condition %s is never raised", code))
		}
		rep.Conditions = append(rep.Conditions, cs)
	}

	rep.Label = LabelBalance{Yes: ds.CountLabel(dataset.Yes), No: ds.CountLabel(dataset.No), YesShare: ds.LabelShare(dataset.Yes)}
	if rep.Rows > 0 && (rep.Label.Yes == 0 || rep.Label.No == 0) {
		rep.Warnings = append(rep.Warnings, "outcome has a single class")
	}

	if dups := duplicateIDs(ds); len(dups) > 0 {
		shown := dups
		if len(shown) > 10 {
			shown = shown[:10]
		}
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%d duplicate ids: %s", len(dups), strings.Join(shown, ", ")))
	}

	rep.SampleHeader, rep.Samples = sampleRows(ds, opt.SampleRows)
	return rep
}

// NoteLoad records loader observations as report warnings.
func (r *Report) NoteLoad(st *dataset.LoadStats) {
	if st == nil {
		return
	}
	if r.Name == "" {
		r.Name = st.Name
	}
	if st.FlagCollisions > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("%d condition flags had more than one status raised; resolved by precedence", st.FlagCollisions))
	}
	if len(st.Ignored) > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("ignored columns: %s", strings.Join(st.Ignored, ", ")))
	}
}

func numericSummary(name string, col []float64, opt Options) ColumnSummary {
	d := stats.Describe(col)
	s := ColumnSummary{
		Name: name, Kind: "numeric",
		NonNull: d.Count, Missing: len(col) - d.Count,
		Min: d.Min, Max: d.Max, Mean: d.Mean, Std: d.Std, Median: d.Median,
		OutlierThreshold: opt.OutlierThreshold,
	}
	seen := map[float64]struct{}{}
	for _, v := range col {
		if math.IsNaN(v) {
			continue
		}
		seen[v] = struct{}{}
		if d.MAD == 0 {
			continue
		}
		az := math.Abs(stats.RobustZ(v, d.Median, d.MAD))
		if az > opt.OutlierThreshold {
			s.OutliersCount++
		}
		if az > s.OutliersMaxAbsZ {
			s.OutliersMaxAbsZ = az
		}
	}
	s.Unique = len(seen)
	return s
}

func categoricalSummary(name string, col []string, opt Options) ColumnSummary {
	s := ColumnSummary{Name: name, Kind: "categorical"}
	cats := map[string]int{}
	for _, v := range col {
		if v == "" {
			s.Missing++
			continue
		}
		s.NonNull++
		cats[v]++
	}
	tops := make([]CategoryCount, 0, len(cats))
	for k, v := range cats {
		tops = append(tops, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	s.Unique = len(tops)
	if opt.RareShare > 0 && len(tops) > 1 {
		for _, kv := range tops {
			if float64(kv.Count) < opt.RareShare*float64(s.NonNull) {
				s.Rare = append(s.Rare, kv)
			}
		}
	}
	if len(tops) > opt.TopValues {
		tops = tops[:opt.TopValues]
	}
	s.TopValues = tops
	return s
}

func duplicateIDs(ds *dataset.Dataset) []string {
	seen := make(map[string]int, ds.Len())
	var dups []string
	for _, r := range ds.Records {
		if r.ID == "" {
			continue
		}
		seen[r.ID]++
		if seen[r.ID] == 2 {
			dups = append(dups, r.ID)
		}
	}
	return dups
}

func sampleRows(ds *dataset.Dataset, n int) ([]string, [][]string) {
	if n <= 0 || ds.Len() == 0 {
		return nil, nil
	}
	sc := ds.Schema
	header := []string{sc.ID}
	header = append(header, sc.Numeric...)
	header = append(header, sc.Categorical...)
	header = append(header, sc.Conditions...)
	header = append(header, sc.Label)
	if n > ds.Len() {
		n = ds.Len()
	}
	rows := make([][]string, 0, n)
	for _, r := range ds.Records[:n] {
		row := []string{r.ID}
		for _, v := range r.Numeric {
			if math.IsNaN(v) {
				row = append(row, "")
				continue
			}
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		row = append(row, r.Categorical...)
		for _, st := range r.Conditions {
			row = append(row, st.String())
		}
		rows = append(rows, append(row, r.Label.String()))
	}
	return header, rows
}

// Markdown renders a compact report suitable for standalone docs.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", r.Rows))
	b.WriteString(fmt.Sprintf("Columns: %d (+%d conditions)\n\n", len(r.Cols), len(r.Conditions)))

	b.WriteString("[SCHEMA]\n")
	for _, c := range r.Cols {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", safeName(c.Name), c.Kind, c.NonNull, missPct))
		switch c.Kind {
		case "numeric":
			if c.NonNull == 0 {
				break
			}
			b.WriteString(fmt.Sprintf(" — min %.4g, max %.4g, mean %.4g, std %.4g, median %.4g", c.Min, c.Max, c.Mean, c.Std, c.Median))
			b.WriteString(fmt.Sprintf("; outliers: %d above |z|>%.1f", c.OutliersCount, c.OutlierThreshold))
			if c.OutliersMaxAbsZ > 0 {
				b.WriteString(fmt.Sprintf(" (max |z|≈%.2f)", c.OutliersMaxAbsZ))
			}
		case "categorical":
			if len(c.TopValues) > 0 {
				b.WriteString(" — top: ")
				for i, kv := range c.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
				}
				if c.Unique > len(c.TopValues) {
					b.WriteString(fmt.Sprintf("; unique=%d", c.Unique))
				}
			}
		}
		b.WriteString("\n")
	}

	if len(r.Conditions) > 0 {
		b.WriteString("\n[CONDITIONS]\n")
		for _, c := range r.Conditions {
			b.WriteString(fmt.Sprintf("- %s:", c.Code))
			for _, kv := range c.Counts {
				b.WriteString(fmt.Sprintf(" %s=%d", kv.Value, kv.Count))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n[OUTCOME]\n")
	b.WriteString(fmt.Sprintf("- yes: %d (%.2f%%)\n", r.Label.Yes, r.Label.YesShare*100))
	b.WriteString(fmt.Sprintf("- no: %d\n", r.Label.No))

	if len(r.Samples) > 0 {
		b.WriteString("\n[HEAD AND SAMPLE ROWS]\n")
		b.WriteString("| " + strings.Join(r.SampleHeader, " | ") + " |\n")
		b.WriteString("|" + strings.Repeat(" --- |", len(r.SampleHeader)) + "\n")
		for _, row := range r.Samples {
			vals := make([]string, len(row))
			for i, v := range row {
				vals[i] = safeVal(v)
			}
			b.WriteString("| " + strings.Join(vals, " | ") + " |\n")
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
