package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/pajeronda/grok-generative-ai-conversation/pkg/assist"
	"github.com/pajeronda/grok-generative-ai-conversation/pkg/handoff"
	"github.com/pajeronda/grok-generative-ai-conversation/pkg/history"
	"github.com/pajeronda/grok-generative-ai-conversation/pkg/llm"
)

// scriptedGenerator returns its streams in order and records every request.
type scriptedGenerator struct {
	mu      sync.Mutex
	replies []llm.Stream
	seen    []*llm.ModelContext
	err     error
}

func (g *scriptedGenerator) GenerateStream(_ context.Context, mctx *llm.ModelContext) (llm.Stream, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seen = append(g.seen, mctx)
	if g.err != nil {
		return nil, g.err
	}
	if len(g.replies) == 0 {
		return nil, errors.New("no reply scripted")
	}
	s := g.replies[0]
	g.replies = g.replies[1:]
	return s, nil
}

func (g *scriptedGenerator) request(i int) *llm.ModelContext {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i >= len(g.seen) {
		return nil
	}
	return g.seen[i]
}

func (g *scriptedGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}

func toolStream(calls ...*llm.ToolCall) llm.Stream {
	sb := llm.NewStreamBuilder(len(calls) + 2)
	sb.Add(&llm.Delta{Role: llm.RoleAssistant})
	for _, c := range calls {
		sb.Add(&llm.Delta{ToolCall: c})
	}
	sb.Done(llm.Usage{})
	return sb.Stream()
}

type stateArg struct {
	EntityID string `json:"entity_id"`
}

func stateTool(t *testing.T) *llm.FuncTool {
	t.Helper()
	return llm.MustNewFuncTool("get_state", "Read an entity state.",
		func(_ context.Context, _ *llm.ToolCall, arg stateArg) (any, error) {
			return map[string]string{"entity_id": arg.EntityID, "state": "on"}, nil
		})
}

func localReply(responseType, speech string, err error) handoff.Dispatcher {
	return handoff.DispatchFunc(func(context.Context, string, string, string) (*handoff.LocalResult, error) {
		if err != nil {
			return nil, err
		}
		return &handoff.LocalResult{ResponseType: responseType, Speech: speech}, nil
	})
}

func TestAgent_Conversational(t *testing.T) {
	ctx := context.Background()
	gen := &scriptedGenerator{replies: []llm.Stream{
		llm.TextStream("Hello", " there"),
		llm.TextStream("Still here"),
	}}
	store := history.NewMemory()
	a := New(Config{Generator: gen, History: store, Options: Options{Recent: 10}})

	var streamed strings.Builder
	res, err := a.Handle(ctx, Input{Text: "hi", OnDelta: func(d *llm.Delta) { streamed.WriteString(d.Content) }})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Speech != "Hello there" {
		t.Errorf("Speech = %q, want %q", res.Speech, "Hello there")
	}
	if streamed.String() != "Hello there" {
		t.Errorf("streamed = %q", streamed.String())
	}
	if res.ConversationID == "" {
		t.Fatal("ConversationID is empty")
	}
	first := gen.request(0)
	if len(first.Prompts) != 1 || first.Prompts[0].Text != DefaultPrompt {
		t.Errorf("system prompt = %+v, want DefaultPrompt", first.Prompts)
	}
	if len(first.Tools) != 0 {
		t.Errorf("tagged turn sent %d tools", len(first.Tools))
	}

	if _, err := a.Handle(ctx, Input{Text: "still there?", ConversationID: res.ConversationID}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	var got []string
	for _, m := range gen.request(1).Messages {
		got = append(got, string(m.Role)+":"+m.Content)
	}
	want := []string{"user:hi", "assistant:Hello there", "user:still there?"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("second turn messages = %v, want %v", got, want)
	}
}

func TestAgent_UserPrompt(t *testing.T) {
	gen := &scriptedGenerator{replies: []llm.Stream{llm.TextStream("ok")}}
	a := New(Config{Generator: gen, Options: Options{Prompt: "Answer in Italian."}})
	if _, err := a.Handle(context.Background(), Input{Text: "hi", ExtraSystemPrompt: "The user is in the kitchen."}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	p := gen.request(0).Prompts
	if len(p) != 1 {
		t.Fatalf("prompts = %d, want merged into 1", len(p))
	}
	for _, want := range []string{DefaultPrompt, UserInstructionsHeader + "\nAnswer in Italian.", "The user is in the kitchen."} {
		if !strings.Contains(p[0].Text, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}

func TestAgent_DirectiveLocal(t *testing.T) {
	gen := &scriptedGenerator{replies: []llm.Stream{
		llm.TextStream(`[[HA_LOCAL: {"text": `, `"turn on the light"}]]`),
	}}
	store := history.NewMemory()
	a := New(Config{
		Generator: gen,
		Local:     localReply(assist.ResponseActionDone, "Turned on the light", nil),
		History:   store,
	})
	res, err := a.Handle(context.Background(), Input{Text: "light on", ConversationID: "c1"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Speech != "Turned on the light" {
		t.Errorf("Speech = %q", res.Speech)
	}
	if gen.calls() != 1 {
		t.Errorf("model calls = %d, want 1", gen.calls())
	}
	saved, _ := store.Load(context.Background(), "c1", 0)
	if len(saved) != 2 || saved[1].Content != "Turned on the light" {
		t.Errorf("saved history = %+v", saved)
	}
}

func TestAgent_DirectiveFallback(t *testing.T) {
	gen := &scriptedGenerator{replies: []llm.Stream{
		llm.TextStream(`[[HA_LOCAL: {"text": "is the porch light on?"}]]`),
		toolStream(&llm.ToolCall{ID: "call_1", Name: "get_state", Arguments: `{"entity_id": "light.porch"}`}),
		llm.TextStream("Yes, the porch light is on."),
	}}
	a := New(Config{
		Generator: gen,
		Local:     localReply(assist.ResponseError, "Sorry, I couldn't understand that", nil),
		Tools:     []*llm.FuncTool{stateTool(t)},
	})
	res, err := a.Handle(context.Background(), Input{Text: "porch light?", Language: "en"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Speech != "Yes, the porch light is on." {
		t.Errorf("Speech = %q", res.Speech)
	}

	round1 := gen.request(1)
	if len(round1.Tools) != 1 || round1.Prompts[0].Text != ToolsPrompt+"\nLanguage: en" {
		t.Errorf("fallback request = tools %d, prompt %q", len(round1.Tools), round1.Prompts[0].Text)
	}
	round2 := gen.request(2)
	if n := len(round2.Messages); n != 3 {
		t.Fatalf("round 2 messages = %d, want user, tool call, tool result", n)
	}
	result := round2.Messages[2]
	if result.Role != llm.RoleTool || result.ToolCallID != "call_1" || !strings.Contains(result.Content, `"state":"on"`) {
		t.Errorf("tool result = %+v", result)
	}
}

func TestAgent_DirectiveExhausted(t *testing.T) {
	gen := &scriptedGenerator{replies: []llm.Stream{
		llm.TextStream(`[[HA_LOCAL: {"text": "open the garage"}]]`),
	}}
	a := New(Config{
		Generator: gen,
		Local:     localReply("", "", errors.New("connection refused")),
	})
	res, err := a.Handle(context.Background(), Input{Text: "open the garage"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Speech != handoff.FailureMessage {
		t.Errorf("Speech = %q, want FailureMessage", res.Speech)
	}
}

func TestAgent_FallbackStreamFails(t *testing.T) {
	gen := &scriptedGenerator{replies: []llm.Stream{
		llm.TextStream(`[[HA_LOCAL: {"text": "open the garage"}]]`),
		llm.ErrorStream(llm.Error(llm.Usage{}, errors.New("500 Internal Server Error"))),
	}}
	a := New(Config{
		Generator: gen,
		Local:     localReply("", "", errors.New("connection refused")),
		Tools:     []*llm.FuncTool{stateTool(t)},
	})
	res, err := a.Handle(context.Background(), Input{Text: "open the garage"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Speech != handoff.FailureMessage {
		t.Errorf("Speech = %q, want FailureMessage", res.Speech)
	}
	if n := gen.calls(); n != 2 {
		t.Errorf("model calls = %d, want 2", n)
	}
}

func TestAgent_FallbackWithTools_StreamError(t *testing.T) {
	cause := errors.New("connection reset by peer")
	gen := &scriptedGenerator{replies: []llm.Stream{
		llm.ErrorStream(llm.Error(llm.Usage{}, cause), "Turning on"),
	}}
	a := New(Config{Generator: gen})
	reply, err := a.FallbackWithTools(context.Background(), "turn on the light", "en")
	if !errors.Is(err, cause) {
		t.Fatalf("FallbackWithTools error = %v, want %v", err, cause)
	}
	if reply != "" {
		t.Errorf("reply = %q, want empty", reply)
	}
}

func TestAgent_LLMHassAPI(t *testing.T) {
	gen := &scriptedGenerator{replies: []llm.Stream{
		toolStream(&llm.ToolCall{ID: "call_1", Name: "get_state", Arguments: `{"entity_id": "light.porch"}`}),
		llm.TextStream("It is on."),
	}}
	store := history.NewMemory()
	a := New(Config{
		Generator: gen,
		Tools:     []*llm.FuncTool{stateTool(t)},
		History:   store,
		Options:   Options{LLMHassAPI: true},
	})
	res, err := a.Handle(context.Background(), Input{Text: "porch?", ConversationID: "c"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Speech != "It is on." {
		t.Errorf("Speech = %q", res.Speech)
	}
	if len(gen.request(0).Tools) != 1 {
		t.Error("tools were not offered")
	}
	saved, _ := store.Load(context.Background(), "c", 0)
	if len(saved) != 2 {
		t.Errorf("saved %d messages, want user and final assistant only", len(saved))
	}
}

func TestAgent_ToolRounds(t *testing.T) {
	var replies []llm.Stream
	for i := 0; i < MaxToolRounds; i++ {
		replies = append(replies, toolStream(&llm.ToolCall{ID: "c", Name: "get_state", Arguments: `{}`}))
	}
	gen := &scriptedGenerator{replies: replies}
	a := New(Config{Generator: gen, Tools: []*llm.FuncTool{stateTool(t)}})
	if _, err := a.FallbackWithTools(context.Background(), "loop", "en"); !errors.Is(err, errToolRounds) {
		t.Errorf("FallbackWithTools error = %v, want errToolRounds", err)
	}
	if gen.calls() != MaxToolRounds {
		t.Errorf("model calls = %d, want %d", gen.calls(), MaxToolRounds)
	}
}

func TestAgent_UnknownTool(t *testing.T) {
	gen := &scriptedGenerator{replies: []llm.Stream{
		toolStream(&llm.ToolCall{ID: "c", Name: "launch_rocket", Arguments: `{}`}),
		llm.TextStream("I can't do that."),
	}}
	a := New(Config{Generator: gen})
	got, err := a.FallbackWithTools(context.Background(), "launch", "")
	if err != nil {
		t.Fatalf("FallbackWithTools: %v", err)
	}
	if got != "I can't do that." {
		t.Errorf("reply = %q", got)
	}
	if msg := gen.request(1).Messages[2]; !strings.Contains(msg.Content, "unknown tool launch_rocket") {
		t.Errorf("tool result = %q", msg.Content)
	}
}

func TestAgent_GeneratorError(t *testing.T) {
	a := New(Config{Generator: &scriptedGenerator{err: errors.New("401 Unauthorized")}})
	if _, err := a.Handle(context.Background(), Input{Text: "hi"}); !errors.Is(err, ErrGettingResponse) {
		t.Errorf("Handle error = %v, want ErrGettingResponse", err)
	}
}

func TestAgent_Forget(t *testing.T) {
	ctx := context.Background()
	store := history.NewMemory()
	store.Append(ctx, "c", llm.UserMessage("hi"))
	a := New(Config{Generator: &scriptedGenerator{}, History: store})
	if err := a.Forget(ctx, "c"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if got, _ := store.Load(ctx, "c", 0); len(got) != 0 {
		t.Errorf("history after Forget = %d messages", len(got))
	}
}

func TestGenerateData(t *testing.T) {
	structure := &jsonschema.Schema{
		Type:       "object",
		Properties: map[string]*jsonschema.Schema{"name": {Type: "string"}},
		Required:   []string{"name"},
	}
	tests := []struct {
		name      string
		reply     string
		structure *jsonschema.Schema
		want      any
		wantErr   bool
	}{
		{name: "text", reply: "A short poem.", want: "A short poem."},
		{name: "json", reply: ` {"name": "kitchen"} `, structure: structure, want: map[string]any{"name": "kitchen"}},
		{name: "not json", reply: "name: kitchen", structure: structure, wantErr: true},
		{name: "schema mismatch", reply: `{"title": "kitchen"}`, structure: structure, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &scriptedGenerator{replies: []llm.Stream{llm.TextStream(tt.reply)}}
			a := New(Config{Generator: gen})
			res, err := a.GenerateData(context.Background(), Task{Name: "t", Instructions: "do it", Structure: tt.structure})
			if tt.wantErr {
				if !errors.Is(err, ErrGettingResponse) {
					t.Errorf("GenerateData error = %v, want ErrGettingResponse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("GenerateData: %v", err)
			}
			if m, ok := tt.want.(map[string]any); ok {
				got, _ := res.Data.(map[string]any)
				if got["name"] != m["name"] {
					t.Errorf("Data = %v, want %v", res.Data, tt.want)
				}
			} else if res.Data != tt.want {
				t.Errorf("Data = %v, want %v", res.Data, tt.want)
			}
			if tt.structure != nil && !strings.Contains(gen.request(0).Prompts[0].Text, `"required":["name"]`) {
				t.Errorf("structure prompt = %q", gen.request(0).Prompts[0].Text)
			}
		})
	}
}

type recordingCompleter struct {
	seen *llm.ModelContext
	text string
	err  error
}

func (c *recordingCompleter) Complete(_ context.Context, mctx *llm.ModelContext) (string, error) {
	c.seen = mctx
	return c.text, c.err
}

func TestGenerateContent(t *testing.T) {
	zero, half := 0.0, 0.5
	c := &recordingCompleter{text: "Once upon a time"}
	a := New(Config{
		Generator: &scriptedGenerator{},
		Completer: c,
		Options:   Options{Params: &llm.ModelParams{MaxTokens: 2000, Temperature: &zero}},
	})
	got, err := a.GenerateContent(context.Background(), ContentRequest{Prompt: "tell a story", Model: "grok-4", Temperature: &half})
	if err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	if got != "Once upon a time" {
		t.Errorf("GenerateContent = %q", got)
	}
	if c.seen.Model != "grok-4" || c.seen.Params.MaxTokens != 2000 || *c.seen.Params.Temperature != 0.5 {
		t.Errorf("request = model %q params %+v", c.seen.Model, c.seen.Params)
	}

	c.text = ""
	if _, err := a.GenerateContent(context.Background(), ContentRequest{Prompt: "x"}); err == nil {
		t.Error("GenerateContent with empty reply error = nil")
	}
	if _, err := New(Config{}).GenerateContent(context.Background(), ContentRequest{Prompt: "x"}); !errors.Is(err, ErrNoCompleter) {
		t.Errorf("GenerateContent without completer error = %v", err)
	}
}

type fakeProcessor struct {
	got  assist.Request
	resp *assist.Response
}

func (p *fakeProcessor) Process(_ context.Context, req assist.Request) (*assist.Response, error) {
	p.got = req
	return p.resp, nil
}

func TestLocalDispatcher(t *testing.T) {
	p := &fakeProcessor{resp: &assist.Response{ResponseType: assist.ResponseQueryAnswer, Speech: "It is 21 degrees"}}
	res, err := LocalDispatcher(p).Dispatch(context.Background(), "temperature?", "en", handoff.DefaultLocalAgent)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.ResponseType != assist.ResponseQueryAnswer || res.Speech != "It is 21 degrees" {
		t.Errorf("Dispatch = %+v", res)
	}
	if p.got.AgentID != handoff.DefaultLocalAgent || p.got.Language != "en" || p.got.ConversationID == "" {
		t.Errorf("request = %+v", p.got)
	}
}
