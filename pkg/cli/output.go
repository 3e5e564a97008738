package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-yaml"
)

// Format names how a command prints its result.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	// FormatText prints strings verbatim and anything else as YAML.
	FormatText Format = "text"
)

// ParseFormat reads an --output value. Empty selects YAML.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", "yml":
		return FormatYAML, nil
	case FormatYAML, FormatJSON, FormatText:
		return f, nil
	}
	return "", fmt.Errorf("unsupported output format %q, want yaml, json or text", s)
}

// Print writes v to w in format f. The output always ends with a newline.
func Print(w io.Writer, f Format, v any) error {
	var (
		b   []byte
		err error
	)
	switch f {
	case FormatJSON:
		b, err = json.MarshalIndent(v, "", "  ")
	case FormatText:
		if s, ok := v.(string); ok {
			b = []byte(s)
			break
		}
		fallthrough
	case FormatYAML, "":
		b, err = yaml.Marshal(v)
	default:
		return fmt.Errorf("unsupported output format %q", f)
	}
	if err != nil {
		return fmt.Errorf("format result: %w", err)
	}
	if len(b) == 0 || b[len(b)-1] != '\n' {
		b = append(b, '\n')
	}
	_, err = w.Write(b)
	return err
}
