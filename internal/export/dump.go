package export

import (
	"encoding/json"
	"io"

	"flowpulse/internal/trace"
)

// WriteTraceDump writes a raw trace snapshot as a JSON array, the input
// format of the report and export CLI commands.
func WriteTraceDump(w io.Writer, traces []trace.EventTrace) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(traces)
}

// ReadTraceDump parses a raw trace snapshot produced by WriteTraceDump.
func ReadTraceDump(r io.Reader) ([]trace.EventTrace, error) {
	var traces []trace.EventTrace
	if err := json.NewDecoder(r).Decode(&traces); err != nil {
		return nil, err
	}
	return traces, nil
}
