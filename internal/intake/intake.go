// Package intake reads batches of lead inputs from JSON Lines, JSON, CSV
// and XLSX files.
package intake

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-intel/internal/model"
)

// Format names an input encoding.
type Format string

const (
	FormatJSONL Format = "jsonl"
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
	FormatXLSX  Format = "xlsx"
)

// DetectFormat maps a file extension to a Format.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".json":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("intake: unsupported file type %q", filepath.Ext(path))
	}
}

// ReadFile reads every input in path, choosing the decoder by extension.
func ReadFile(path string) ([]model.LeadInput, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	if format == FormatXLSX {
		return ReadXLSX(path, XLSXOptions{})
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "intake: open %s", path)
	}
	defer f.Close()

	switch format {
	case FormatJSONL:
		return ReadJSONL(f)
	case FormatJSON:
		return ReadJSON(f)
	default:
		return ReadCSV(f)
	}
}

// Tabular column names, matched case-insensitively against the header row.
const (
	ColCompany                = "company"
	ColIndustry               = "industry"
	ColLocation               = "location"
	ColSource                 = "source"
	ColSourceURL              = "source_url"
	ColProductCode            = "product_code"
	ColType                   = "type"
	ColText                   = "text"
	ColHasVolume              = "has_volume"
	ColHasCapacity            = "has_capacity"
	ColHighConfidenceIndustry = "has_high_confidence_industry"
	ColProperties             = "properties"
	ColDetectedAt             = "detected_at"
)

// Columns lists the tabular header in canonical order.
var Columns = []string{
	ColCompany, ColIndustry, ColLocation, ColSource, ColSourceURL, ColProductCode,
	ColType, ColText, ColHasVolume, ColHasCapacity, ColHighConfidenceIndustry, ColProperties,
	ColDetectedAt,
}

// table maps header names to column positions.
type table map[string]int

func newTable(header []string) (table, error) {
	t := make(table, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if name == "" {
			continue
		}
		if _, dup := t[name]; dup {
			return nil, eris.Errorf("intake: duplicate column %q", name)
		}
		t[name] = i
	}
	for _, req := range []string{ColType, ColText} {
		if _, ok := t[req]; !ok {
			return nil, eris.Errorf("intake: missing required column %q", req)
		}
	}
	return t, nil
}

func (t table) get(row []string, col string) string {
	i, ok := t[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// decodeRow turns one data row into an input. line is 1-based and only used
// in error messages.
func (t table) decodeRow(row []string, line int) (model.LeadInput, error) {
	in := model.LeadInput{
		Company: model.Company{
			Name:     t.get(row, ColCompany),
			Industry: t.get(row, ColIndustry),
			Location: t.get(row, ColLocation),
		},
		Source:      t.get(row, ColSource),
		SourceURL:   t.get(row, ColSourceURL),
		ProductCode: strings.ToUpper(t.get(row, ColProductCode)),
	}

	typ, _ := model.ParseSignalType(t.get(row, ColType))
	in.Signal = model.Signal{
		Text: t.get(row, ColText),
		Type: typ,
	}

	var err error
	if in.Signal.HasVolume, err = parseBool(t.get(row, ColHasVolume)); err != nil {
		return in, eris.Wrapf(err, "intake: line %d: %s", line, ColHasVolume)
	}
	if in.Signal.HasCapacity, err = parseBool(t.get(row, ColHasCapacity)); err != nil {
		return in, eris.Wrapf(err, "intake: line %d: %s", line, ColHasCapacity)
	}
	if in.Signal.HasHighConfidenceIndustry, err = parseBool(t.get(row, ColHighConfidenceIndustry)); err != nil {
		return in, eris.Wrapf(err, "intake: line %d: %s", line, ColHighConfidenceIndustry)
	}
	in.Signal.Properties = parseProperties(t.get(row, ColProperties))
	if in.Signal.DetectedAt, err = parseTime(t.get(row, ColDetectedAt)); err != nil {
		return in, eris.Wrapf(err, "intake: line %d: %s", line, ColDetectedAt)
	}

	return in, nil
}

// parseTime accepts RFC 3339 timestamps or bare dates. Empty is the zero time.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, eris.Errorf("not a date: %q", s)
	}
	return t, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "", "n", "no":
		return false, nil
	case "y", "yes":
		return true, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, eris.Errorf("not a boolean: %q", s)
	}
	return b, nil
}

// parseProperties reads a ";"-separated list of enabled feature names.
func parseProperties(s string) map[string]bool {
	if s == "" {
		return nil
	}
	props := make(map[string]bool)
	for _, p := range strings.Split(s, ";") {
		if p = strings.TrimSpace(p); p != "" {
			props[p] = true
		}
	}
	if len(props) == 0 {
		return nil
	}
	return props
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// decodeTable decodes a header row followed by data rows. firstLine is the
// line number of the header.
func decodeTable(rows [][]string, firstLine int) ([]model.LeadInput, error) {
	if len(rows) == 0 {
		return nil, eris.New("intake: no header row")
	}
	t, err := newTable(rows[0])
	if err != nil {
		return nil, err
	}

	var out []model.LeadInput
	for i, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		in, err := t.decodeRow(row, firstLine+i+1)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}
