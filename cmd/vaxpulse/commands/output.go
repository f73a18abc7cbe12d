package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Output formats for the kpi subcommands
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

// render prints v in the selected --output format.
// table falls through to the command's own printer.
func render(v any, table func()) error {
	return renderTo(os.Stdout, outputFormat, v, table)
}

func renderTo(w io.Writer, format string, v any, table func()) error {
	switch format {
	case "", OutputTable:
		table()
		return nil
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (expected table|json|yaml)", format)
	}
}
