package llm

import (
	"encoding/json"
	"errors"

	"github.com/kaptinlin/jsonrepair"
)

// UnmarshalJSON unmarshals data into v. Syntax errors are retried once after
// repairing the input, since models often emit near-miss JSON.
func UnmarshalJSON(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return err
	}
	fixed, rerr := RepairJSON(string(data))
	if rerr != nil {
		return err
	}
	return json.Unmarshal([]byte(fixed), v)
}

// RepairJSON rewrites loosely formatted JSON (single quotes, unquoted keys,
// trailing commas, Python literals) into valid JSON.
func RepairJSON(s string) (string, error) {
	return jsonrepair.JSONRepair(s)
}
