package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadRequest loads a YAML or JSON file into v. "-" reads stdin.
func LoadRequest(path string, v any) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return ParseRequest(data, path, v)
}

// ParseRequest decodes data into v by the file extension, trying JSON and
// then YAML when the extension says neither. YAML documents are converted to
// JSON first, so v decodes through its JSON tags and UnmarshalJSON methods.
func ParseRequest(data []byte, filename string, v any) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to parse JSON: %w", err)
		}
		return nil
	case ".yaml", ".yml":
		if err := yamlToJSON(data, v); err != nil {
			return fmt.Errorf("failed to parse YAML: %w", err)
		}
		return nil
	}
	if err := json.Unmarshal(data, v); err == nil {
		return nil
	}
	if err := yamlToJSON(data, v); err != nil {
		return fmt.Errorf("failed to parse file (tried JSON and YAML)")
	}
	return nil
}

func yamlToJSON(data []byte, v any) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
