package llm

import "fmt"

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type Role string

func (r Role) String() string {
	return string(r)
}

// ToolCall is a complete function call requested by the model.
type ToolCall struct {
	ID        string `msgpack:"id"`
	Name      string `msgpack:"name"`
	Arguments string `msgpack:"arguments"`
}

func (tc *ToolCall) String() string {
	return fmt.Sprintf("%s(%s)#%s", tc.Name, tc.Arguments, tc.ID)
}

// Delta is one element of a Stream. Exactly one of Role, Content or ToolCall
// is expected to be set; an empty Delta is a no-op.
type Delta struct {
	Role     Role
	Content  string
	ToolCall *ToolCall
}

// IsRoleMarker reports whether the delta only opens a new message.
func (d *Delta) IsRoleMarker() bool {
	return d != nil && d.Role != "" && d.Content == "" && d.ToolCall == nil
}

// Message is a complete conversation entry.
type Message struct {
	Role       Role        `msgpack:"role"`
	Name       string      `msgpack:"name,omitempty"`
	Content    string      `msgpack:"content,omitempty"`
	ToolCalls  []*ToolCall `msgpack:"tool_calls,omitempty"`
	ToolCallID string      `msgpack:"tool_call_id,omitempty"`
}

func UserMessage(text string) *Message {
	return &Message{Role: RoleUser, Content: text}
}

func AssistantMessage(text string) *Message {
	return &Message{Role: RoleAssistant, Content: text}
}

func ToolResultMessage(callID, result string) *Message {
	return &Message{Role: RoleTool, Content: result, ToolCallID: callID}
}
