package conversation

import (
	"context"

	"github.com/google/uuid"
	"github.com/pajeronda/grok-generative-ai-conversation/pkg/assist"
	"github.com/pajeronda/grok-generative-ai-conversation/pkg/handoff"
)

// LocalDispatcher sends directives to a Home Assistant conversation agent.
// Every dispatch runs in its own local conversation.
func LocalDispatcher(p assist.Processor) handoff.Dispatcher {
	return handoff.DispatchFunc(func(ctx context.Context, text, language, agentID string) (*handoff.LocalResult, error) {
		resp, err := p.Process(ctx, assist.Request{
			Text:           text,
			Language:       language,
			AgentID:        agentID,
			ConversationID: uuid.NewString(),
		})
		if err != nil {
			return nil, err
		}
		return &handoff.LocalResult{
			ResponseType: resp.ResponseType,
			Speech:       resp.Speech,
		}, nil
	})
}
