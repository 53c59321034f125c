// Package output renders CLI results as tables, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is an output format selected with --output.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses --output. The empty string selects the table format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table", "":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format: %q (valid: table, json, yaml)", s)
	}
}

func (f Format) String() string {
	return string(f)
}

// Print writes data in format f. Tables are rendered from table, the
// structured formats from data.
func Print(w io.Writer, f Format, data any, table TableRenderer) error {
	switch f {
	case FormatJSON:
		return PrintJSON(w, data)
	case FormatYAML:
		return PrintYAML(w, data)
	case FormatTable:
		return PrintTable(w, table)
	default:
		return fmt.Errorf("unknown format: %s", f)
	}
}

// PrintJSON writes data as indented JSON.
func PrintJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// PrintYAML writes data as YAML.
func PrintYAML(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer func() { _ = encoder.Close() }()
	return encoder.Encode(data)
}

const (
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorReset  = "\033[0m"
)

// Success writes a confirmation line, green when color is set.
func Success(w io.Writer, msg string, color bool) {
	writeColored(w, colorGreen, msg, color)
}

// Warning writes a warning line, yellow when color is set.
func Warning(w io.Writer, msg string, color bool) {
	writeColored(w, colorYellow, msg, color)
}

func writeColored(w io.Writer, code, msg string, color bool) {
	if color {
		_, _ = fmt.Fprintf(w, "%s%s%s\n", code, msg, colorReset)
		return
	}
	_, _ = fmt.Fprintln(w, msg)
}
