package assist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
)

// Response types reported by the conversation agent.
const (
	ResponseActionDone  = "action_done"
	ResponseQueryAnswer = "query_answer"
	ResponseError       = "error"
)

// Request is one conversation/process call.
type Request struct {
	Text           string `json:"text"`
	Language       string `json:"language,omitempty"`
	AgentID        string `json:"agent_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Response is the part of a conversation result this module reads.
type Response struct {
	ResponseType   string
	Speech         string
	ConversationID string
	Data           map[string]any
}

var (
	qResponseType   = mustCompile(`.response.response_type // ""`)
	qSpeech         = mustCompile(`.response.speech.plain.speech // ""`)
	qConversationID = mustCompile(`.conversation_id // ""`)
	qData           = mustCompile(`.response.data // {}`)
)

func mustCompile(expr string) *gojq.Code {
	q, err := gojq.Parse(expr)
	if err != nil {
		panic(fmt.Sprintf("assist: invalid jq expression %q: %v", expr, err))
	}
	code, err := gojq.Compile(q)
	if err != nil {
		panic(fmt.Sprintf("assist: compile jq expression %q: %v", expr, err))
	}
	return code
}

// ParseResponse extracts a Response from a decoded conversation result.
func ParseResponse(ctx context.Context, v any) (*Response, error) {
	var (
		r   Response
		err error
	)
	if r.ResponseType, err = runString(ctx, qResponseType, v); err != nil {
		return nil, err
	}
	if r.Speech, err = runString(ctx, qSpeech, v); err != nil {
		return nil, err
	}
	if r.ConversationID, err = runString(ctx, qConversationID, v); err != nil {
		return nil, err
	}
	data, err := run(ctx, qData, v)
	if err != nil {
		return nil, err
	}
	r.Data, _ = data.(map[string]any)
	return &r, nil
}

// DecodeResponse parses a raw JSON conversation result.
func DecodeResponse(ctx context.Context, b []byte) (*Response, error) {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("assist: decode response: %w", err)
	}
	return ParseResponse(ctx, v)
}

func run(ctx context.Context, code *gojq.Code, v any) (any, error) {
	iter := code.RunWithContext(ctx, v)
	x, ok := iter.Next()
	if !ok {
		return nil, nil
	}
	if err, ok := x.(error); ok {
		return nil, fmt.Errorf("assist: extract response: %w", err)
	}
	return x, nil
}

func runString(ctx context.Context, code *gojq.Code, v any) (string, error) {
	x, err := run(ctx, code, v)
	if err != nil {
		return "", err
	}
	switch x := x.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	default:
		return fmt.Sprint(x), nil
	}
}
