package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pajeronda/grok-generative-ai-conversation/pkg/handoff"
	"github.com/pajeronda/grok-generative-ai-conversation/pkg/history"
	"github.com/pajeronda/grok-generative-ai-conversation/pkg/llm"
)

// ErrGettingResponse is reported to the user when the model could not be
// reached or returned nothing usable.
var ErrGettingResponse = errors.New("Sorry, there was a problem getting a response from Grok.")

// FallbackConversationID is the conversation id of tools fallback turns.
const FallbackConversationID = "fallback_tools"

// MaxToolRounds bounds the model calls of one tools-enabled turn.
const MaxToolRounds = 5

var errToolRounds = fmt.Errorf("conversation: tool calls did not settle after %d rounds", MaxToolRounds)

// Options tune a conversation agent.
type Options struct {
	// Prompt holds user instructions appended to DefaultPrompt.
	Prompt string

	// LLMHassAPI runs every turn with the automation tools enabled instead
	// of the directive pipeline.
	LLMHassAPI bool

	// Recent is the number of stored messages replayed each turn.
	// Zero replays none.
	Recent int

	// Params are sent with every request.
	Params *llm.ModelParams

	LocalTimeout    time.Duration
	FallbackTimeout time.Duration
}

// Config wires an Agent to its collaborators.
type Config struct {
	// Generator streams model replies. It must send a context's tools for
	// the tools fallback to work.
	Generator llm.Generator

	// Completer serves GenerateContent. Nil disables it.
	Completer llm.Completer

	// Local resolves directives with the local agent. Nil skips straight
	// to the tools fallback.
	Local handoff.Dispatcher

	// Tools are offered to the model in tools-enabled turns.
	Tools []*llm.FuncTool

	// History stores conversations. Nil keeps them in memory.
	History history.Store

	Options Options
	Logger  *slog.Logger
}

// Agent runs conversation turns.
type Agent struct {
	gen       llm.Generator
	completer llm.Completer
	tools     []*llm.FuncTool
	history   history.Store
	opts      Options
	log       *slog.Logger

	handler handoff.Handler
}

var _ handoff.Fallback = (*Agent)(nil)

func New(cfg Config) *Agent {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	store := cfg.History
	if store == nil {
		store = history.NewMemory()
	}
	a := &Agent{
		gen:       cfg.Generator,
		completer: cfg.Completer,
		tools:     cfg.Tools,
		history:   store,
		opts:      cfg.Options,
		log:       log,
	}
	a.handler = &handoff.Orchestrator{
		Local:           cfg.Local,
		Fallback:        a,
		LocalTimeout:    cfg.Options.LocalTimeout,
		FallbackTimeout: cfg.Options.FallbackTimeout,
		Logger:          log,
	}
	return a
}

// Input is one user turn.
type Input struct {
	Text string

	// ConversationID continues an earlier conversation. Empty starts a new
	// one.
	ConversationID string
	Language       string

	// ExtraSystemPrompt is appended to the system prompt for this turn.
	ExtraSystemPrompt string

	// OnDelta, if set, receives the reply as it streams.
	OnDelta func(*llm.Delta)
}

// Result is the outcome of a turn.
type Result struct {
	ConversationID string
	Speech         string
	Messages       []*llm.Message
}

// Handle runs one turn and records it in the conversation history.
func (a *Agent) Handle(ctx context.Context, in Input) (*Result, error) {
	id := in.ConversationID
	if id == "" {
		id = uuid.NewString()
	}
	language := in.Language
	if language == "" {
		language = handoff.DefaultLanguage
	}

	var mcb llm.ModelContextBuilder
	mcb.Params = a.opts.Params
	mcb.PromptText("system", SystemPrompt(a.opts.Prompt))
	mcb.PromptText("system", in.ExtraSystemPrompt)
	for _, m := range a.recent(ctx, id) {
		mcb.AddMessage(m)
	}
	mcb.UserText(in.Text)

	chat := &ChatLog{ConversationID: id, OnDelta: in.OnDelta}
	chat.Add(llm.UserMessage(in.Text))

	var err error
	if a.opts.LLMHassAPI {
		mcb.AddTool(a.tools...)
		err = a.runTools(ctx, &mcb, chat, handoff.WithLogger(a.log))
	} else {
		err = a.runTagged(ctx, mcb.Build(), chat, language)
	}
	if err != nil {
		return nil, err
	}

	if err := a.history.Append(ctx, id, chat.Transcript()...); err != nil {
		a.log.Warn("conversation: save history failed", "conversation_id", id, "error", err)
	}
	res := &Result{ConversationID: id, Messages: chat.Messages}
	if m := chat.LastAssistant(); m != nil {
		res.Speech = m.Content
	}
	return res, nil
}

func (a *Agent) recent(ctx context.Context, id string) []*llm.Message {
	if a.opts.Recent <= 0 {
		return nil
	}
	msgs, err := a.history.Load(ctx, id, a.opts.Recent)
	if err != nil {
		a.log.Warn("conversation: load history failed", "conversation_id", id, "error", err)
		return nil
	}
	return msgs
}

// Forget deletes the stored history of a conversation.
func (a *Agent) Forget(ctx context.Context, conversationID string) error {
	return a.history.Clear(ctx, conversationID)
}

// runTagged streams one reply through the directive pipeline into chat.
func (a *Agent) runTagged(ctx context.Context, mctx *llm.ModelContext, chat *ChatLog, language string) error {
	stream, err := a.gen.GenerateStream(ctx, mctx)
	if err != nil {
		a.log.Error("conversation: model request failed", "error", err)
		return fmt.Errorf("%w: %w", ErrGettingResponse, err)
	}
	out := handoff.Transform(ctx, stream, a.handler,
		handoff.WithLanguage(language),
		handoff.WithLogger(a.log),
	)
	_, err = chat.Consume(out)
	return err
}

// runTools runs model rounds with tools until the model answers without
// calling one. opts configure the Bypass of each round.
func (a *Agent) runTools(ctx context.Context, mcb *llm.ModelContextBuilder, chat *ChatLog, opts ...handoff.Option) error {
	for round := 0; round < MaxToolRounds; round++ {
		mctx := mcb.Build()
		stream, err := a.gen.GenerateStream(ctx, mctx)
		if err != nil {
			a.log.Error("conversation: model request failed", "round", round, "error", err)
			return fmt.Errorf("%w: %w", ErrGettingResponse, err)
		}
		opened, err := chat.Consume(handoff.Bypass(ctx, stream, opts...))
		if err != nil {
			a.log.Error("conversation: model stream failed", "round", round, "error", err)
			return fmt.Errorf("%w: %w", ErrGettingResponse, err)
		}
		reply := lastOf(opened, llm.RoleAssistant)
		if reply == nil || len(reply.ToolCalls) == 0 {
			return nil
		}
		mcb.AddMessage(reply)
		for _, call := range reply.ToolCalls {
			result := invokeTool(ctx, mctx, call)
			a.log.Debug("conversation: tool call", "call", call.String(), "result", result)
			msg := llm.ToolResultMessage(call.ID, result)
			mcb.AddMessage(msg)
			chat.Add(msg)
		}
	}
	return errToolRounds
}

func invokeTool(ctx context.Context, mctx *llm.ModelContext, call *llm.ToolCall) string {
	tool, ok := mctx.Tool(call.Name)
	if !ok {
		return fmt.Sprintf(`{"error": %q}`, "unknown tool "+call.Name)
	}
	return tool.Invoke(ctx, call)
}

func lastOf(msgs []*llm.Message, role llm.Role) *llm.Message {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == role {
			return msgs[i]
		}
	}
	return nil
}

// FallbackWithTools answers text in a fresh turn with the automation tools
// enabled. It implements the second step of directive resolution.
func (a *Agent) FallbackWithTools(ctx context.Context, text, language string) (string, error) {
	if language == "" {
		language = handoff.DefaultLanguage
	}
	var mcb llm.ModelContextBuilder
	mcb.Params = a.opts.Params
	mcb.PromptText("system", ToolsPrompt)
	mcb.PromptText("system", "Language: "+language)
	mcb.UserText(text)
	mcb.AddTool(a.tools...)

	chat := &ChatLog{ConversationID: FallbackConversationID}
	chat.Add(llm.UserMessage(text))
	// A failed stream must fail the fallback, not become its reply.
	err := a.runTools(ctx, &mcb, chat, handoff.WithLogger(a.log), handoff.WithFailOnError())
	if err != nil {
		return "", err
	}
	m := chat.LastAssistant()
	if m == nil || m.Content == "" {
		return "", nil
	}
	return m.Content, nil
}
