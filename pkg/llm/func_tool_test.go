package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type lightArg struct {
	EntityID   string `json:"entity_id"`
	Brightness int    `json:"brightness,omitempty"`
}

func TestFuncTool_Invoke(t *testing.T) {
	tool := MustNewFuncTool("turn_on", "Turn on a light", func(ctx context.Context, call *ToolCall, arg lightArg) (any, error) {
		if arg.EntityID == "" {
			return nil, errors.New("entity_id is required")
		}
		return map[string]any{"entity_id": arg.EntityID, "brightness": arg.Brightness}, nil
	})
	if tool.Argument == nil || tool.Argument.Properties["entity_id"] == nil {
		t.Fatalf("argument schema = %+v", tool.Argument)
	}

	tests := []struct {
		name string
		args string
		want string
	}{
		{"strict", `{"entity_id": "light.kitchen", "brightness": 80}`, `{"brightness":80,"entity_id":"light.kitchen"}`},
		{"repaired", `{'entity_id': 'light.kitchen',}`, `{"brightness":0,"entity_id":"light.kitchen"}`},
		{"empty", ``, `{"error":"entity_id is required"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tool.Invoke(context.Background(), &ToolCall{ID: "1", Name: "turn_on", Arguments: tt.args})
			if got != tt.want {
				t.Errorf("Invoke = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFuncTool_StringResult(t *testing.T) {
	tool := MustNewFuncTool("echo", "", func(ctx context.Context, call *ToolCall, arg struct{}) (any, error) {
		return "plain text", nil
	})
	if got := tool.Invoke(context.Background(), &ToolCall{Name: "echo"}); got != "plain text" {
		t.Errorf("Invoke = %q", got)
	}
}

func TestFuncTool_BadArguments(t *testing.T) {
	tool := MustNewFuncTool[lightArg]("turn_on", "", nil)
	got := tool.Invoke(context.Background(), &ToolCall{Name: "turn_on", Arguments: `["light.kitchen"]`})
	if !strings.HasPrefix(got, `{"error":"unmarshal`) {
		t.Errorf("Invoke = %s", got)
	}
}

func TestUnmarshalJSON(t *testing.T) {
	var v map[string]any
	if err := UnmarshalJSON([]byte(`{text: 'hi', agent_id: null}`), &v); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if v["text"] != "hi" {
		t.Errorf("text = %v", v["text"])
	}

	var n int
	if err := UnmarshalJSON([]byte(`"five"`), &n); err == nil {
		t.Error("type mismatch should not be repaired")
	}
}
