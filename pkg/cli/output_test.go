package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatYAML, false},
		{"yaml", FormatYAML, false},
		{"YML", FormatYAML, false},
		{" json ", FormatJSON, false},
		{"text", FormatText, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrint_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Print(&buf, FormatJSON, map[string]any{"name": "fern", "water": 2}); err != nil {
		t.Fatalf("Print error: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if got["name"] != "fern" {
		t.Errorf("name = %v, want fern", got["name"])
	}
	if !strings.Contains(buf.String(), "\n  \"") || !strings.HasSuffix(buf.String(), "}\n") {
		t.Errorf("JSON output = %q, want indented with a final newline", buf.String())
	}
}

func TestPrint_YAML(t *testing.T) {
	var buf bytes.Buffer
	if err := Print(&buf, FormatYAML, map[string]string{"chat_model": "grok-3-mini"}); err != nil {
		t.Fatalf("Print error: %v", err)
	}
	if buf.String() != "chat_model: grok-3-mini\n" {
		t.Errorf("Print = %q", buf.String())
	}
}

func TestPrint_Text(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"A short poem.", "A short poem.\n"},
		{"ends with newline\n", "ends with newline\n"},
		{"", "\n"},
		{map[string]int{"n": 1}, "n: 1\n"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		if err := Print(&buf, FormatText, tt.in); err != nil {
			t.Fatalf("Print(%v) error: %v", tt.in, err)
		}
		if buf.String() != tt.want {
			t.Errorf("Print(%v) = %q, want %q", tt.in, buf.String(), tt.want)
		}
	}
}

func TestPrint_UnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Print(&buf, "xml", "x"); err == nil {
		t.Error("expected error for unsupported format")
	}
	if buf.Len() != 0 {
		t.Errorf("wrote %q for an unsupported format", buf.String())
	}
}
