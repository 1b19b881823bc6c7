package beacon

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// ExportFormat defines the output format for exported records.
type ExportFormat int

const (
	// JSON exports records as a JSON array.
	JSON ExportFormat = iota
	// CSV exports records as CSV with one column per field present.
	CSV
)

// Export writes the records still pending in queue ("events" or "logs")
// to w. The queues are not modified.
func (c *Client) Export(ctx context.Context, w io.Writer, queue string, format ExportFormat) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrClosed
	}
	c.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	var (
		records any
		leading []string
	)
	switch queue {
	case queueEvents:
		records = c.events.Snapshot()
		leading = []string{"event_index", "event_datetime", "type"}
	case queueLogs:
		records = c.logs.Snapshot()
		leading = []string{"event_datetime"}
	default:
		return fmt.Errorf("%w: unknown queue %q", ErrInvalidInput, queue)
	}

	switch format {
	case CSV:
		rows, err := flatten(records)
		if err != nil {
			return err
		}
		return exportCSV(w, rows, leading)
	default:
		return exportJSON(w, records)
	}
}

// exportJSON writes records as a JSON array.
func exportJSON(w io.Writer, records any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(records)
}

// flatten turns records into their wire-form field maps. Numbers stay
// json.Number so large event indexes keep every digit.
func flatten(records any) ([]map[string]any, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var rows []map[string]any
	if err := decoder.Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// exportCSV writes rows as CSV.
// Column order: leading columns, then every other field sorted by name.
func exportCSV(w io.Writer, rows []map[string]any, leading []string) error {
	if len(rows) == 0 {
		return nil
	}

	header := append(append([]string(nil), leading...), collectKeys(rows, leading)...)

	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		line := make([]string, len(header))
		for i, k := range header {
			line[i] = formatValue(row[k])
		}
		if err := writer.Write(line); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// collectKeys collects all unique field names across rows, minus skip.
func collectKeys(rows []map[string]any, skip []string) []string {
	seen := make(map[string]struct{})
	for _, k := range skip {
		seen[k] = struct{}{}
	}

	var keys []string
	for _, row := range rows {
		for k := range row {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// formatValue converts a field value to a string for CSV export.
func formatValue(v any) string {
	if v == nil {
		return ""
	}

	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		// Use JSON encoding for numbers, arrays, objects, etc.
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
