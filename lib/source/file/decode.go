package file

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"

	"github.com/artie-labs/medallion/lib/settings"
)

var jsonAPI = jsoniter.Config{UseNumber: true}.Froze()

type csvOptions struct {
	header bool
	comma  rune
	// lazyQuotes is set when quoting is disabled.
	lazyQuotes bool
}

func newCSVOptions(spec settings.SourceSpec) (csvOptions, error) {
	opts := csvOptions{header: spec.BoolOption("header", false), comma: ','}
	delimiter := spec.Option("delimiter")
	if delimiter == "" {
		delimiter = spec.Option("sep")
	}

	if delimiter != "" {
		if utf8.RuneCountInString(delimiter) != 1 {
			return csvOptions{}, fmt.Errorf("delimiter must be a single character, got %q", delimiter)
		}
		opts.comma, _ = utf8.DecodeRuneInString(delimiter)
	}

	if quote, isOk := spec.Options["quote"]; isOk {
		switch fmt.Sprint(quote) {
		case `"`:
		case "":
			opts.lazyQuotes = true
		default:
			return csvOptions{}, fmt.Errorf("quote %q is not supported, only %q or an empty string", quote, `"`)
		}
	}

	return opts, nil
}

// decodeCSV returns the column names and rows of a CSV file. When [names] is set, fields are mapped by position
// and the header line (if any) is skipped. Empty fields are nulls.
func decodeCSV(contents []byte, opts csvOptions, names []string) ([]string, []map[string]any, error) {
	reader := csv.NewReader(bytes.NewReader(contents))
	reader.Comma = opts.comma
	reader.LazyQuotes = opts.lazyQuotes
	reader.FieldsPerRecord = -1

	var rows []map[string]any
	first := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}

		if first {
			first = false
			if opts.header {
				if names == nil {
					names = record
				}
				continue
			}
		}

		if names == nil {
			names = make([]string, len(record))
			for i := range record {
				names[i] = fmt.Sprintf("_c%d", i)
			}
		}

		row := make(map[string]any, len(names))
		for i, name := range names {
			if i < len(record) && record[i] != "" {
				row[name] = record[i]
			} else {
				row[name] = nil
			}
		}
		rows = append(rows, row)
	}

	return names, rows, nil
}

// decodeJSON accepts newline delimited objects or a single array of objects.
func decodeJSON(contents []byte) ([]map[string]any, error) {
	trimmed := bytes.TrimSpace(contents)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var rows []map[string]any
		if err := jsonAPI.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("failed to decode json array: %w", err)
		}
		return rows, nil
	}

	var rows []map[string]any
	decoder := jsonAPI.NewDecoder(bytes.NewReader(trimmed))
	for decoder.More() {
		var row map[string]any
		if err := decoder.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode json line %d: %w", len(rows)+1, err)
		}
		rows = append(rows, row)
	}

	return rows, nil
}
