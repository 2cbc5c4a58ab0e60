package intake

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-intel/internal/model"
)

const maxLineBytes = 4 << 20

// ReadJSONL reads one JSON object per line. Blank lines are skipped.
func ReadJSONL(r io.Reader) ([]model.LeadInput, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var out []model.LeadInput
	line := 0
	for scanner.Scan() {
		line++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		in, err := decodeInput(b)
		if err != nil {
			return nil, eris.Wrapf(err, "intake: line %d", line)
		}
		out = append(out, in)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "intake: read jsonl")
	}
	return out, nil
}

// ReadJSON reads a JSON array of inputs.
func ReadJSON(r io.Reader) ([]model.LeadInput, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, eris.Wrap(err, "intake: decode json array")
	}

	out := make([]model.LeadInput, 0, len(raw))
	for i, b := range raw {
		in, err := decodeInput(b)
		if err != nil {
			return nil, eris.Wrapf(err, "intake: element %d", i)
		}
		out = append(out, in)
	}
	return out, nil
}

func decodeInput(b []byte) (model.LeadInput, error) {
	var in model.LeadInput
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return in, eris.Wrap(err, "decode input")
	}
	if t, ok := model.ParseSignalType(string(in.Signal.Type)); ok {
		in.Signal.Type = t
	}
	return in, nil
}
