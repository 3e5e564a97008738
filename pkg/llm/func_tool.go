package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// InvokeFunc runs a tool with decoded arguments and returns its result,
// which is sent back to the model as JSON.
type InvokeFunc[T any] func(ctx context.Context, call *ToolCall, arg T) (any, error)

type FuncTool struct {
	Name        string
	Description string
	Argument    *jsonschema.Schema

	invoke func(ctx context.Context, call *ToolCall) (any, error)
}

// NewFuncTool creates a tool whose argument schema is derived from ArgType.
func NewFuncTool[ArgType any](name, description string, fn InvokeFunc[ArgType]) (*FuncTool, error) {
	arg, err := jsonschema.For[ArgType](nil)
	if err != nil {
		return nil, fmt.Errorf("llm: schema for tool %s: %w", name, err)
	}
	tool := &FuncTool{
		Name:        name,
		Description: description,
		Argument:    arg,
	}
	tool.invoke = func(ctx context.Context, call *ToolCall) (any, error) {
		var v ArgType
		args := call.Arguments
		if args == "" {
			args = "{}"
		}
		if err := UnmarshalJSON([]byte(args), &v); err != nil {
			return nil, fmt.Errorf("unmarshal %q error: %w", call.Arguments, err)
		}
		if fn == nil {
			return &v, nil
		}
		return fn(ctx, call, v)
	}
	return tool, nil
}

func MustNewFuncTool[ArgType any](name, description string, fn InvokeFunc[ArgType]) *FuncTool {
	tool, err := NewFuncTool(name, description, fn)
	if err != nil {
		panic(err)
	}
	return tool
}

// Invoke runs the tool for call and encodes the result as a tool message
// body. Failures are reported to the model as {"error": "..."} rather than
// returned, so a single bad call does not end the turn.
func (tool *FuncTool) Invoke(ctx context.Context, call *ToolCall) string {
	res, err := tool.invoke(ctx, call)
	if err != nil {
		return encodeToolResult(map[string]string{"error": err.Error()})
	}
	if s, ok := res.(string); ok {
		return s
	}
	return encodeToolResult(res)
}

func encodeToolResult(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(b)
}
