package history

import (
	"context"
	"sync"

	"github.com/pajeronda/grok-generative-ai-conversation/pkg/llm"
)

// Memory is an in-process Store. Messages are stored encoded so callers
// cannot mutate history through retained pointers.
type Memory struct {
	mu    sync.Mutex
	clock clock
	convs map[string][][]byte
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{convs: make(map[string][][]byte)}
}

func (m *Memory) Append(_ context.Context, conversationID string, msgs ...*llm.Message) error {
	if conversationID == "" {
		return ErrEmptyConversationID
	}
	encoded := make([][]byte, 0, len(msgs))
	for _, msg := range msgs {
		b, err := encodeRecord(m.clock.next(), msg)
		if err != nil {
			return err
		}
		encoded = append(encoded, b)
	}
	m.mu.Lock()
	m.convs[conversationID] = append(m.convs[conversationID], encoded...)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Load(_ context.Context, conversationID string, recent int) ([]*llm.Message, error) {
	m.mu.Lock()
	records := tail(m.convs[conversationID], recent)
	records = append([][]byte(nil), records...)
	m.mu.Unlock()

	out := make([]*llm.Message, 0, len(records))
	for _, b := range records {
		r, err := decodeRecord(b)
		if err != nil {
			return nil, err
		}
		out = append(out, r.Message)
	}
	return out, nil
}

func (m *Memory) Clear(_ context.Context, conversationID string) error {
	m.mu.Lock()
	delete(m.convs, conversationID)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error {
	return nil
}
