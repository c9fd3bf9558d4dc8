package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// StripHeaderBOM removes a UTF-8 BOM from the first header cell if present.
func StripHeaderBOM(headers []string) []string {
	if len(headers) == 0 {
		return headers
	}
	headers[0] = strings.TrimPrefix(headers[0], utf8BOM)
	return headers
}

// ReadAll parses a file produced by Writer and returns its header and data
// records.
func ReadAll(r io.Reader) (header []string, rows [][]string, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	all, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	if len(all) == 0 {
		return nil, nil, nil
	}
	return StripHeaderBOM(all[0]), all[1:], nil
}
