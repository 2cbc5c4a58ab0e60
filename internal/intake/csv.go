package intake

import (
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-intel/internal/model"
)

// ReadCSV reads a CSV file with a header row.
func ReadCSV(r io.Reader) ([]model.LeadInput, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // allow variable fields
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "intake: read csv")
	}
	return decodeTable(rows, 1)
}

// WriteCSV writes inputs in the tabular layout ReadCSV accepts.
func WriteCSV(w io.Writer, inputs []model.LeadInput) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return eris.Wrap(err, "intake: write csv header")
	}
	for _, in := range inputs {
		if err := cw.Write(Row(in)); err != nil {
			return eris.Wrap(err, "intake: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "intake: flush csv")
}
