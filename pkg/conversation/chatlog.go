package conversation

import (
	"github.com/pajeronda/grok-generative-ai-conversation/pkg/llm"
)

// ChatLog collects the messages of one turn from the deltas it consumes.
type ChatLog struct {
	ConversationID string
	Messages       []*llm.Message

	// OnDelta, if set, sees every consumed delta before it is recorded.
	OnDelta func(*llm.Delta)
}

// Add appends complete messages.
func (l *ChatLog) Add(msgs ...*llm.Message) {
	l.Messages = append(l.Messages, msgs...)
}

// Consume drains s into the log and closes it. A role marker opens a new
// message; content and tool calls arriving before any marker open an
// assistant message. Normal, truncated and filtered endings return nil.
// It returns the messages opened by s.
func (l *ChatLog) Consume(s llm.Stream) ([]*llm.Message, error) {
	defer s.Close()
	first := len(l.Messages)
	var cur *llm.Message
	open := func(role llm.Role) {
		cur = &llm.Message{Role: role}
		l.Messages = append(l.Messages, cur)
	}
	for {
		d, err := s.Next()
		if err != nil {
			if llm.IsFinished(err) {
				err = nil
			}
			return l.Messages[first:], err
		}
		if l.OnDelta != nil {
			l.OnDelta(d)
		}
		if d.IsRoleMarker() {
			open(d.Role)
			continue
		}
		if d.Content == "" && d.ToolCall == nil {
			continue
		}
		if cur == nil {
			open(llm.RoleAssistant)
		}
		cur.Content += d.Content
		if d.ToolCall != nil {
			cur.ToolCalls = append(cur.ToolCalls, d.ToolCall)
		}
	}
}

// LastAssistant returns the most recent assistant message, or nil.
func (l *ChatLog) LastAssistant() *llm.Message {
	for i := len(l.Messages) - 1; i >= 0; i-- {
		if l.Messages[i].Role == llm.RoleAssistant {
			return l.Messages[i]
		}
	}
	return nil
}

// Transcript returns the plain user and assistant messages with content,
// which is what later turns replay.
func (l *ChatLog) Transcript() []*llm.Message {
	var out []*llm.Message
	for _, m := range l.Messages {
		if m.Content == "" || len(m.ToolCalls) > 0 {
			continue
		}
		if m.Role == llm.RoleUser || m.Role == llm.RoleAssistant {
			out = append(out, m)
		}
	}
	return out
}
