package util

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Output formats accepted by --format.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// ValidateFormat rejects anything other than table, json or yaml.
func ValidateFormat(format string) error {
	switch strings.ToLower(format) {
	case FormatTable, FormatJSON, FormatYAML:
		return nil
	}
	return fmt.Errorf("unsupported output format '%s' (use %s, %s or %s)", format, FormatTable, FormatJSON, FormatYAML)
}

// WriteStructured encodes v as json or yaml.
func WriteStructured(w io.Writer, format string, v interface{}) error {
	switch strings.ToLower(format) {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode json output: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml output: %w", err)
		}
		return enc.Close()
	}
	return ValidateFormat(format)
}
