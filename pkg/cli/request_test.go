package cli

import (
	"os"
	"path/filepath"
	"testing"
)

type schemaDoc struct {
	Type     string              `json:"type"`
	Required []string            `json:"required"`
	Props    map[string]struct{} `json:"properties"`
}

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name string
		file string
		data string
	}{
		{"json", "s.json", `{"type": "object", "required": ["name"], "properties": {"name": {}}}`},
		{"yaml", "s.yaml", "type: object\nrequired: [name]\nproperties:\n  name: {}\n"},
		{"sniff json", "schema", `{"type": "object", "required": ["name"], "properties": {"name": {}}}`},
		{"sniff yaml", "schema", "type: object\nrequired:\n  - name\nproperties:\n  name: {}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got schemaDoc
			if err := ParseRequest([]byte(tt.data), tt.file, &got); err != nil {
				t.Fatalf("ParseRequest error: %v", err)
			}
			if got.Type != "object" || len(got.Required) != 1 || got.Required[0] != "name" {
				t.Errorf("ParseRequest = %+v", got)
			}
			if _, ok := got.Props["name"]; !ok {
				t.Errorf("properties = %v, want name", got.Props)
			}
		})
	}
}

func TestParseRequest_Invalid(t *testing.T) {
	var v schemaDoc
	if err := ParseRequest([]byte("{not json"), "s.json", &v); err == nil {
		t.Error("expected JSON error")
	}
	if err := ParseRequest([]byte("a: [unclosed"), "s.yaml", &v); err == nil {
		t.Error("expected YAML error")
	}
}

func TestLoadRequest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yml")
	if err := os.WriteFile(path, []byte("type: object\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var v schemaDoc
	if err := LoadRequest(path, &v); err != nil {
		t.Fatalf("LoadRequest error: %v", err)
	}
	if v.Type != "object" {
		t.Errorf("Type = %q", v.Type)
	}
	if err := LoadRequest(filepath.Join(t.TempDir(), "missing.json"), &v); err == nil {
		t.Error("expected error for missing file")
	}
}
