package intake

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/lead-intel/internal/model"
)

// XLSXOptions configures the XLSX reader.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	SkipRows   int    // rows above the header row
}

// ReadXLSX reads inputs from one sheet of an XLSX workbook. The first row
// after SkipRows is the header.
func ReadXLSX(path string, opts XLSXOptions) ([]model.LeadInput, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "intake: open xlsx")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for i, row := range sheet.Rows {
		if i < opts.SkipRows {
			continue
		}
		rows = append(rows, rowToStrings(row))
	}

	return decodeTable(rows, opts.SkipRows+1)
}

// WriteXLSX saves inputs to path in the layout ReadXLSX accepts.
func WriteXLSX(path string, inputs []model.LeadInput) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Signals")
	if err != nil {
		return eris.Wrap(err, "intake: add sheet")
	}
	addRow(sheet, Columns)
	for _, in := range inputs {
		addRow(sheet, Row(in))
	}
	return eris.Wrap(f.Save(path), "intake: save xlsx")
}

// Row renders an input in Columns order.
func Row(in model.LeadInput) []string {
	return []string{
		in.Company.Name,
		in.Company.Industry,
		in.Company.Location,
		in.Source,
		in.SourceURL,
		in.ProductCode,
		string(in.Signal.Type),
		in.Signal.Text,
		strconv.FormatBool(in.Signal.HasVolume),
		strconv.FormatBool(in.Signal.HasCapacity),
		strconv.FormatBool(in.Signal.HasHighConfidenceIndustry),
		strings.Join(in.Signal.EnabledProperties(), ";"),
		formatTime(in.Signal.DetectedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("intake: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("intake: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
