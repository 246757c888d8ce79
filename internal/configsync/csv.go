package configsync

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// ImportResult reports what a CSV prompt import parsed.
type ImportResult struct {
	ParsedQueries    []string `json:"parsed_queries"`
	DuplicateRows    int      `json:"duplicate_rows"`
	HeaderRowSkipped bool     `json:"header_row_skipped"`
}

// ParseCSV reads a one-column prompt CSV. A leading "query" header row is
// skipped, blank rows are ignored, and duplicate query texts are counted
// but returned only once, in first-seen order.
func ParseCSV(r io.Reader) (ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var result ImportResult
	seen := map[string]struct{}{}
	first := true

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ImportResult{}, fmt.Errorf("failed to parse csv: %w", err)
		}

		text := ""
		if len(record) > 0 {
			text = strings.TrimSpace(record[0])
		}

		if first {
			first = false
			if strings.EqualFold(text, "query") {
				result.HeaderRowSkipped = true
				continue
			}
		}
		if text == "" {
			continue
		}
		if _, dup := seen[text]; dup {
			result.DuplicateRows++
			continue
		}
		seen[text] = struct{}{}
		result.ParsedQueries = append(result.ParsedQueries, text)
	}

	return result, nil
}
