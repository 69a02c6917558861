package dataset

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/ulikunitz/xz"
	"github.com/xuri/excelize/v2"
)

// MissingTokens are cell values read as missing.
var MissingTokens = []string{"", "NA", "NaN", "nan", "<nil>", "?"}

// LoadOptions controls how a table is mapped onto a Dataset.
type LoadOptions struct {
	IDColumn    string
	LabelColumn string
	Numeric     []string
	Categorical []string
	// Delimiter for delimited text. If 0, picked from the file name ('\t' for .tsv, else ',').
	Delimiter rune
	// XLSX sheet selection; SheetIndex is 1-based and used when SheetName is empty.
	SheetName  string
	SheetIndex int
	// MaxRows limits rows read; 0 means unlimited.
	MaxRows int
}

// DefaultLoadOptions returns the column layout of the fracture study export.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		IDColumn:    "id",
		LabelColumn: "result",
		Numeric:     []string{"age", "test1", "test2", "test3"},
		Categorical: []string{"gender", "calcium"},
		SheetIndex:  1,
	}
}

// LoadStats describes what the loader saw.
type LoadStats struct {
	Name           string   `json:"name"`
	Format         string   `json:"format"`
	Rows           int      `json:"rows"`
	FlagColumns    int      `json:"flag_columns"`
	FlagCollisions int      `json:"flag_collisions"`   // records where more than one status flag of a code was raised
	Ignored        []string `json:"ignored,omitempty"` // columns that matched no role
}

// Load reads a CSV/TSV (optionally .gz or .xz compressed) or XLSX file.
func Load(path string, opt LoadOptions) (*Dataset, *LoadStats, error) {
	df, format, err := readTable(path, opt)
	if err != nil {
		return nil, nil, err
	}
	ds, stats, err := FromDataFrame(df, opt)
	if err != nil {
		return nil, nil, err
	}
	stats.Name = filepath.Base(path)
	stats.Format = format
	return ds, stats, nil
}

// FromRecords maps raw rows (header first) onto a Dataset.
func FromRecords(rows [][]string, opt LoadOptions) (*Dataset, *LoadStats, error) {
	if len(rows) == 0 {
		return nil, nil, &SchemaMismatchError{Column: opt.IDColumn, Reason: "table has no header"}
	}
	df := dataframe.LoadRecords(padRows(rows), tableOptions(0)...)
	if df.Err != nil {
		return nil, nil, fmt.Errorf("parse table: %w", df.Err)
	}
	return FromDataFrame(df, opt)
}

// FromDataFrame maps a string-typed DataFrame onto a Dataset.
func FromDataFrame(df dataframe.DataFrame, opt LoadOptions) (*Dataset, *LoadStats, error) {
	names := df.Names()
	cols := make(map[string][]string, len(names))
	headers := make(map[string]string, len(names))
	for _, n := range names {
		key := strings.ToLower(strings.TrimSpace(n))
		cols[key] = df.Col(n).Records()
		headers[key] = n
	}
	lookup := func(name string) ([]string, error) {
		c, ok := cols[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, &SchemaMismatchError{Column: name, Reason: "column not found"}
		}
		return c, nil
	}

	schema := Schema{ID: opt.IDColumn, Label: opt.LabelColumn}
	idCol, err := lookup(opt.IDColumn)
	if err != nil {
		return nil, nil, err
	}
	labelCol, err := lookup(opt.LabelColumn)
	if err != nil {
		return nil, nil, err
	}
	used := map[string]bool{
		strings.ToLower(opt.IDColumn):    true,
		strings.ToLower(opt.LabelColumn): true,
	}
	numCols := make([][]string, len(opt.Numeric))
	for j, n := range opt.Numeric {
		if numCols[j], err = lookup(n); err != nil {
			return nil, nil, err
		}
		used[strings.ToLower(n)] = true
		schema.Numeric = append(schema.Numeric, n)
	}
	catCols := make([][]string, len(opt.Categorical))
	for j, n := range opt.Categorical {
		if catCols[j], err = lookup(n); err != nil {
			return nil, nil, err
		}
		used[strings.ToLower(n)] = true
		schema.Categorical = append(schema.Categorical, n)
	}

	// Group flag columns by condition code, keeping header order.
	type flag struct {
		header string
		status Status
		values []string
	}
	stats := &LoadStats{}
	flags := map[string][]flag{}
	for _, n := range names {
		key := strings.ToLower(strings.TrimSpace(n))
		if used[key] {
			continue
		}
		code, st, ok := ParseFlagColumn(n)
		if !ok {
			stats.Ignored = append(stats.Ignored, n)
			continue
		}
		if _, seen := flags[code]; !seen {
			schema.Conditions = append(schema.Conditions, code)
		}
		flags[code] = append(flags[code], flag{header: headers[key], status: st, values: cols[key]})
		stats.FlagColumns++
	}

	nrows := df.Nrow()
	if opt.MaxRows > 0 && nrows > opt.MaxRows {
		nrows = opt.MaxRows
	}
	records := make([]Record, 0, nrows)
	for i := 0; i < nrows; i++ {
		row := i + 1
		rec := Record{
			Numeric:     make([]float64, len(schema.Numeric)),
			Categorical: make([]string, len(schema.Categorical)),
			Conditions:  make([]Status, len(schema.Conditions)),
		}
		rec.ID = strings.TrimSpace(idCol[i])
		if isMissingToken(rec.ID) {
			return nil, nil, &SchemaMismatchError{Column: opt.IDColumn, Row: row, Value: idCol[i], Reason: "missing identifier"}
		}
		lbl, ok := ParseLabel(labelCol[i])
		if !ok {
			return nil, nil, &SchemaMismatchError{Column: opt.LabelColumn, Row: row, Value: labelCol[i], Reason: "label must be yes or no"}
		}
		rec.Label = lbl
		for j := range schema.Numeric {
			v, ok := parseNumber(numCols[j][i])
			if !ok {
				return nil, nil, &SchemaMismatchError{Column: schema.Numeric[j], Row: row, Value: numCols[j][i], Reason: "not numeric"}
			}
			rec.Numeric[j] = v
		}
		for j := range schema.Categorical {
			rec.Categorical[j] = normalizeLevel(catCols[j][i])
		}
		for c, code := range schema.Conditions {
			raised := map[Status]bool{}
			for _, f := range flags[code] {
				on, ok := parseFlag(f.values[i])
				if !ok {
					return nil, nil, &SchemaMismatchError{Column: f.header, Row: row, Value: f.values[i], Reason: "flag must be 0 or 1"}
				}
				if on {
					raised[f.status] = true
				}
			}
			st, collided := ResolveStatus(raised)
			if collided {
				stats.FlagCollisions++
			}
			rec.Conditions[c] = st
		}
		records = append(records, rec)
	}
	stats.Rows = len(records)
	return New(schema, records), stats, nil
}

func readTable(path string, opt LoadOptions) (dataframe.DataFrame, string, error) {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".xlsx") {
		rows, err := readXLSX(path, opt.SheetName, opt.SheetIndex)
		if err != nil {
			return dataframe.DataFrame{}, "", err
		}
		if len(rows) == 0 {
			return dataframe.DataFrame{}, "", fmt.Errorf("xlsx %s: sheet is empty", filepath.Base(path))
		}
		df := dataframe.LoadRecords(padRows(rows), tableOptions(0)...)
		if df.Err != nil {
			return df, "", fmt.Errorf("parse xlsx: %w", df.Err)
		}
		return df, "xlsx", nil
	}

	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, "", fmt.Errorf("open table: %w", err)
	}
	defer f.Close()
	var r io.Reader = bufio.NewReader(f)
	format := "csv"
	switch {
	case strings.HasSuffix(lower, ".gz"):
		gz, err := gzip.NewReader(r)
		if err != nil {
			return dataframe.DataFrame{}, "", fmt.Errorf("open gzip: %w", err)
		}
		defer gz.Close()
		r = gz
		lower = strings.TrimSuffix(lower, ".gz")
		format = "csv+gzip"
	case strings.HasSuffix(lower, ".xz"):
		xr, err := xz.NewReader(r)
		if err != nil {
			return dataframe.DataFrame{}, "", fmt.Errorf("open xz: %w", err)
		}
		r = xr
		lower = strings.TrimSuffix(lower, ".xz")
		format = "csv+xz"
	}
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(lower)
	}
	if delim == '\t' {
		format = strings.Replace(format, "csv", "tsv", 1)
	}
	df := dataframe.ReadCSV(r, tableOptions(delim)...)
	if df.Err != nil {
		return df, "", fmt.Errorf("parse %s: %w", format, df.Err)
	}
	return df, format, nil
}

func tableOptions(delim rune) []dataframe.LoadOption {
	opts := []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.NaNValues(MissingTokens),
	}
	if delim != 0 {
		opts = append(opts, dataframe.WithDelimiter(delim))
	}
	return opts
}

func readXLSX(path, sheetName string, sheetIndex int) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	sheet := sheetName
	if sheet != "" {
		idx, err := f.GetSheetIndex(sheet)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("sheet '%s' not found in workbook '%s'.\nAvailable sheets: %s",
				sheetName, filepath.Base(path), strings.Join(sheets, ", "))
		}
	} else {
		idx := sheetIndex
		if idx <= 0 {
			idx = 1
		}
		if idx > len(sheets) {
			return nil, fmt.Errorf("sheet index %d out of range: workbook '%s' has %d sheet(s)", idx, filepath.Base(path), len(sheets))
		}
		sheet = sheets[idx-1]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

// padRows makes every row as wide as the header; spreadsheet readers drop
// trailing empty cells.
func padRows(rows [][]string) [][]string {
	if len(rows) == 0 {
		return rows
	}
	width := len(rows[0])
	out := make([][]string, len(rows))
	for i, r := range rows {
		if len(r) == width {
			out[i] = r
			continue
		}
		tmp := make([]string, width)
		copy(tmp, r)
		out[i] = tmp
	}
	return out
}

func sniffDelimiter(name string) rune {
	if strings.HasSuffix(name, ".tsv") {
		return '\t'
	}
	return ','
}

func isMissingToken(s string) bool {
	s = strings.TrimSpace(s)
	for _, t := range MissingTokens {
		if s == t {
			return true
		}
	}
	return false
}

func parseNumber(s string) (float64, bool) {
	if isMissingToken(s) {
		return math.NaN(), true
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// normalizeLevel trims a categorical value and renders integral numbers
// without a fraction so "1.0" and "1" are the same level.
func normalizeLevel(s string) string {
	if isMissingToken(s) {
		return ""
	}
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}

func parseFlag(s string) (bool, bool) {
	if isMissingToken(s) {
		return false, true
	}
	switch strings.TrimSpace(s) {
	case "0", "0.0", "false", "FALSE":
		return false, true
	case "1", "1.0", "true", "TRUE":
		return true, true
	}
	return false, false
}
