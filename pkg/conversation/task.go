package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	"github.com/pajeronda/grok-generative-ai-conversation/pkg/handoff"
	"github.com/pajeronda/grok-generative-ai-conversation/pkg/llm"
)

// Task asks the model to generate data.
type Task struct {
	Name         string
	Instructions string
	Language     string

	// Structure, if set, requires a JSON reply valid against it.
	Structure *jsonschema.Schema
}

// TaskResult holds the generated data: the reply text, or the decoded JSON
// value when the task had a structure.
type TaskResult struct {
	ConversationID string
	Data           any
}

// GenerateData runs a task through the directive pipeline.
func (a *Agent) GenerateData(ctx context.Context, task Task) (*TaskResult, error) {
	var resolved *jsonschema.Resolved
	if task.Structure != nil {
		var err error
		if resolved, err = task.Structure.Resolve(nil); err != nil {
			return nil, fmt.Errorf("conversation: task structure: %w", err)
		}
	}

	var mcb llm.ModelContextBuilder
	mcb.Params = a.opts.Params
	if task.Structure != nil {
		schema, err := json.Marshal(task.Structure)
		if err != nil {
			return nil, fmt.Errorf("conversation: task structure: %w", err)
		}
		mcb.PromptText("system", "Reply with a single JSON value, without code fences, matching this JSON schema:\n"+string(schema))
	}
	mcb.UserText(task.Instructions)

	chat := &ChatLog{ConversationID: uuid.NewString()}
	chat.Add(llm.UserMessage(task.Instructions))
	language := task.Language
	if language == "" {
		language = handoff.DefaultLanguage
	}
	if err := a.runTagged(ctx, mcb.Build(), chat, language); err != nil {
		return nil, err
	}

	last := chat.LastAssistant()
	if last == nil {
		a.log.Error("conversation: task produced no assistant message", "task", task.Name)
		return nil, ErrGettingResponse
	}
	res := &TaskResult{ConversationID: chat.ConversationID, Data: last.Content}
	if task.Structure == nil {
		return res, nil
	}

	var data any
	if err := json.Unmarshal([]byte(strings.TrimSpace(last.Content)), &data); err != nil {
		a.log.Error("conversation: task reply is not JSON", "task", task.Name, "error", err, "reply", last.Content)
		return nil, fmt.Errorf("%w: %w", ErrGettingResponse, err)
	}
	if err := resolved.Validate(data); err != nil {
		a.log.Error("conversation: task reply does not match structure", "task", task.Name, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrGettingResponse, err)
	}
	res.Data = data
	return res, nil
}

// ContentRequest is a one-shot prompt. Unset fields fall back to the
// agent's model and parameters.
type ContentRequest struct {
	Prompt      string
	Model       string
	Temperature *float64
	TopP        *float64
	MaxTokens   int
}

var ErrNoCompleter = errors.New("conversation: content generation is not configured")

// GenerateContent runs a single non-streaming completion of req.Prompt.
func (a *Agent) GenerateContent(ctx context.Context, req ContentRequest) (string, error) {
	if a.completer == nil {
		return "", ErrNoCompleter
	}
	var params llm.ModelParams
	if a.opts.Params != nil {
		params = *a.opts.Params
	}
	params = params.Merge(&llm.ModelParams{
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	})

	var mcb llm.ModelContextBuilder
	mcb.Model = req.Model
	mcb.Params = &params
	mcb.UserText(req.Prompt)
	text, err := a.completer.Complete(ctx, mcb.Build())
	if err != nil {
		return "", fmt.Errorf("conversation: content generation: %w", err)
	}
	if text == "" {
		return "", errors.New("conversation: content generation: empty reply")
	}
	return text, nil
}
