package config

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/goccy/go-yaml"
)

// Switch is a boolean that also accepts the legacy list form, where a list
// naming "assist" or the default local agent means true.
type Switch bool

func (s *Switch) UnmarshalYAML(b []byte) error {
	var v any
	if err := yaml.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case nil:
		*s = false
	case bool:
		*s = Switch(v)
	case []any:
		*s = Switch(slices.ContainsFunc(v, func(e any) bool {
			return e == "assist" || e == "conversation.home_assistant"
		}))
	default:
		*s = false
	}
	return nil
}

// Duration is a time.Duration written as "10s". Bare numbers are seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d *Duration) UnmarshalYAML(b []byte) error {
	var v any
	if err := yaml.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case nil:
		*d = 0
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(time.Duration(v) * time.Second)
	case uint64:
		*d = Duration(time.Duration(v) * time.Second)
	case int64:
		*d = Duration(time.Duration(v) * time.Second)
	case float64:
		*d = Duration(v * float64(time.Second))
	default:
		return fmt.Errorf("config: duration: unexpected %T", v)
	}
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
