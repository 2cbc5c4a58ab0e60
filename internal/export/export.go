// Package export writes stored leads out for sales teams.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/lead-intel/internal/model"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// ParseFormat resolves a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatJSON:
		return f, nil
	default:
		return "", eris.Errorf("export: unsupported format %q (want csv, xlsx or json)", s)
	}
}

// columns defines the ordered tabular output columns.
var columns = []string{
	"ID",
	"Company",
	"Industry",
	"Location",
	"Product",
	"Confidence",
	"Priority",
	"Status",
	"Assigned To",
	"Matched Rule",
	"Reasons",
	"Source",
	"Source URL",
	"Created",
}

// Write renders leads to w in format.
func Write(w io.Writer, format Format, leads []model.Lead) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, leads)
	case FormatJSON:
		return WriteJSON(w, leads)
	case FormatXLSX:
		return WriteXLSX(w, leads)
	default:
		return eris.Errorf("export: unsupported format %q", format)
	}
}

// WriteCSV writes one row per lead with a header row.
func WriteCSV(w io.Writer, leads []model.Lead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for i := range leads {
		if err := cw.Write(buildRow(&leads[i])); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteJSON writes leads as an indented JSON array.
func WriteJSON(w io.Writer, leads []model.Lead) error {
	if leads == nil {
		leads = []model.Lead{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(leads), "export: encode json")
}

// WriteXLSX writes a single "Leads" sheet. Confidence and priority are
// stored as numbers.
func WriteXLSX(w io.Writer, leads []model.Lead) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Leads")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, c := range columns {
		header.AddCell().SetString(c)
	}

	for i := range leads {
		row := sheet.AddRow()
		for j, v := range buildRow(&leads[i]) {
			cell := row.AddCell()
			switch j {
			case confidenceColumn:
				cell.SetFloat(leads[i].Score.FinalConfidence)
				continue
			case priorityColumn:
				cell.SetFloat(leads[i].Priority.Score)
				continue
			}
			cell.SetString(v)
		}
	}

	return eris.Wrap(f.Write(w), "export: write xlsx")
}

const (
	confidenceColumn = 5
	priorityColumn   = 6
)

func buildRow(l *model.Lead) []string {
	return []string{
		l.ID,
		l.Company.Name,
		l.Company.Industry,
		l.Company.Location,
		l.ProductCode,
		strconv.FormatFloat(l.Score.FinalConfidence, 'f', 2, 64),
		strconv.FormatFloat(l.Priority.Score, 'f', 2, 64),
		string(l.Status),
		l.AssignedTo,
		l.Score.MatchedRule,
		strings.Join(l.Score.ReasonCodes, "; "),
		l.Source,
		l.SourceURL,
		formatTime(l.CreatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
