package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/asungur/beacon"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	infoColor    = color.New(color.FgCyan)
	warnColor    = color.New(color.FgYellow)
	headerColor  = color.New(color.FgWhite, color.Bold)
)

func success(w io.Writer, format string, a ...any) {
	successColor.Fprintf(w, "✓ "+format+"\n", a...)
}

func info(w io.Writer, format string, a ...any) {
	infoColor.Fprintf(w, format+"\n", a...)
}

func warn(w io.Writer, format string, a ...any) {
	warnColor.Fprintf(w, "⚠ "+format+"\n", a...)
}

// printStatus renders the client status as a table, JSON or YAML.
func printStatus(w io.Writer, format string, st beacon.Status) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(st); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	fmt.Fprintf(w, "Device:   %s\n", st.DeviceTag)
	fmt.Fprintf(w, "Session:  %s\n", st.SessionKey)
	if st.UserTag != "" {
		fmt.Fprintf(w, "User:     %s\n", st.UserTag)
	}
	fmt.Fprintf(w, "Endpoint: %s\n", st.BaseURL)
	if st.Ready {
		successColor.Fprintln(w, "Ready:    yes")
	} else {
		warnColor.Fprintln(w, "Ready:    no (disabled by collector)")
	}
	fmt.Fprintln(w)

	renderTable(w, []string{"QUEUE", "PENDING", "STATE", "FAILURES"}, [][]string{
		{"events", strconv.Itoa(st.Events.Pending), st.Events.State, strconv.Itoa(st.Events.Failures)},
		{"logs", strconv.Itoa(st.Logs.Pending), st.Logs.State, strconv.Itoa(st.Logs.Failures)},
	})
	return nil
}

func renderTable(w io.Writer, headers []string, rows [][]string) {
	// Calculate column widths
	widths := make([]int, len(headers))
	for i, header := range headers {
		widths[i] = len(header)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	for i, header := range headers {
		headerColor.Fprintf(w, "%-*s  ", widths[i], header)
	}
	fmt.Fprintln(w)
	for i := range headers {
		fmt.Fprint(w, strings.Repeat("-", widths[i])+"  ")
	}
	fmt.Fprintln(w)
	for _, row := range rows {
		for i, cell := range row {
			fmt.Fprintf(w, "%-*s  ", widths[i], cell)
		}
		fmt.Fprintln(w)
	}
}
