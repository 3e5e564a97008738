package assist

import (
	"context"

	"github.com/pajeronda/grok-generative-ai-conversation/pkg/llm"
)

type callServiceArg struct {
	Domain   string         `json:"domain" jsonschema:"service domain, for example light or cover"`
	Service  string         `json:"service" jsonschema:"service name, for example turn_on"`
	EntityID string         `json:"entity_id,omitempty" jsonschema:"target entity id, for example light.kitchen"`
	Data     map[string]any `json:"data,omitempty" jsonschema:"extra service data such as brightness"`
}

type getStateArg struct {
	EntityID string `json:"entity_id" jsonschema:"entity id to read, for example sensor.living_room_temperature"`
}

// Tools returns the automation tools offered to the model when local
// dispatch could not resolve a command.
func Tools(c *Client) []*llm.FuncTool {
	return []*llm.FuncTool{
		llm.MustNewFuncTool("call_service",
			"Call a Home Assistant service to control devices.",
			func(ctx context.Context, _ *llm.ToolCall, arg callServiceArg) (any, error) {
				data := make(map[string]any, len(arg.Data)+1)
				for k, v := range arg.Data {
					data[k] = v
				}
				if arg.EntityID != "" {
					data["entity_id"] = arg.EntityID
				}
				changed, err := c.CallService(ctx, arg.Domain, arg.Service, data)
				if err != nil {
					return nil, err
				}
				return map[string]any{"success": true, "changed": changed}, nil
			}),
		llm.MustNewFuncTool("get_state",
			"Read the current state and attributes of a Home Assistant entity.",
			func(ctx context.Context, _ *llm.ToolCall, arg getStateArg) (any, error) {
				return c.State(ctx, arg.EntityID)
			}),
	}
}
