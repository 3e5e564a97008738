// Package history stores the messages of each conversation so later turns
// can replay recent context to the model.
package history

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/pajeronda/grok-generative-ai-conversation/pkg/llm"
	"github.com/vmihailenco/msgpack/v5"
)

var ErrEmptyConversationID = errors.New("history: empty conversation id")

// Store keeps conversation messages in append order.
type Store interface {
	// Append adds msgs to the end of the conversation.
	Append(ctx context.Context, conversationID string, msgs ...*llm.Message) error
	// Load returns the last recent messages, oldest first. recent <= 0
	// returns the whole conversation.
	Load(ctx context.Context, conversationID string, recent int) ([]*llm.Message, error)
	// Clear deletes the conversation.
	Clear(ctx context.Context, conversationID string) error
	Close() error
}

type record struct {
	At      int64        `msgpack:"at"`
	Message *llm.Message `msgpack:"msg"`
}

func encodeRecord(at int64, m *llm.Message) ([]byte, error) {
	b, err := msgpack.Marshal(&record{At: at, Message: m})
	if err != nil {
		return nil, fmt.Errorf("history: encode: %w", err)
	}
	return b, nil
}

func decodeRecord(b []byte) (*record, error) {
	var r record
	if err := msgpack.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("history: decode: %w", err)
	}
	return &r, nil
}

// prefix returns the key prefix of a conversation. The id is escaped so that
// one id can never be a prefix of another's keys.
func prefix(conversationID string) string {
	return "conv:" + url.QueryEscape(conversationID) + ":"
}

func key(conversationID string, at int64) []byte {
	return fmt.Appendf(nil, "%s%020d", prefix(conversationID), at)
}

// clock hands out strictly increasing nanosecond stamps so keys written in
// the same instant keep their order.
type clock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func (c *clock) next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	t := now().UnixNano()
	if t <= c.last {
		t = c.last + 1
	}
	c.last = t
	return t
}

func tail[T any](s []T, n int) []T {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
