package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/packages/ssestream"
)

const (
	oaiFinishReasonStop          string = "stop"
	oaiFinishReasonToolCalls     string = "tool_calls"
	oaiFinishReasonLength        string = "length"
	oaiFinishReasonFunctionCall  string = "function_call"
	oaiFinishReasonContentFilter string = "content_filter"
)

// DefaultBaseURL is the xAI OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.x.ai/v1"

// DefaultRequestTimeout bounds connecting and waiting for response headers
// on clients built by NewOpenAIClient.
const DefaultRequestTimeout = 10 * time.Second

var (
	// ErrAuthFailed reports credentials rejected by the endpoint.
	ErrAuthFailed = errors.New("llm: authentication failed")
	// ErrUnreachable reports an endpoint that could not be reached.
	ErrUnreachable = errors.New("llm: endpoint unreachable")
)

// NewOpenAIClient returns a client for an OpenAI-compatible endpoint. An
// empty baseURL selects DefaultBaseURL. The client uses
// NewHTTPClient(DefaultRequestTimeout) unless opts replace it.
func NewOpenAIClient(apiKey, baseURL string, opts ...option.RequestOption) *openai.Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	all := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(NewHTTPClient(DefaultRequestTimeout)),
		option.WithMaxRetries(1),
	}, opts...)
	c := openai.NewClient(all...)
	return &c
}

// NewHTTPClient returns an HTTP client whose dial, TLS handshake and wait for
// response headers each give up after timeout. Streamed bodies are not
// bounded; use option.WithRequestTimeout for that.
func NewHTTPClient(timeout time.Duration) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if timeout > 0 {
		tr.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
		tr.TLSHandshakeTimeout = timeout
		tr.ResponseHeaderTimeout = timeout
	}
	return &http.Client{Transport: tr}
}

// Generator streams completions for a model context.
type Generator interface {
	GenerateStream(ctx context.Context, mctx *ModelContext) (Stream, error)
}

// Completer runs a single non-streaming completion.
type Completer interface {
	Complete(ctx context.Context, mctx *ModelContext) (string, error)
}

// OpenAIGenerator talks to any OpenAI-compatible chat completions API.
type OpenAIGenerator struct {
	Client *openai.Client

	Model  string
	Params *ModelParams

	// SupportToolCalls sends the context's tools with each request.
	SupportToolCalls bool
	// UseSystemRole sends prompts as system messages instead of developer
	// messages. xAI expects system.
	UseSystemRole bool

	Logger *slog.Logger
}

var (
	_ Generator = (*OpenAIGenerator)(nil)
	_ Completer = (*OpenAIGenerator)(nil)
)

func (g *OpenAIGenerator) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

// GenerateStream starts a streaming completion. The returned stream yields an
// assistant role marker, content deltas, and one delta per assembled tool
// call. Closing the stream aborts the request.
func (g *OpenAIGenerator) GenerateStream(ctx context.Context, mctx *ModelContext) (Stream, error) {
	params, err := g.chatCompletion(mctx)
	if err != nil {
		return nil, err
	}
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: param.NewOpt(true),
	}
	ctx, cancel := context.WithCancel(ctx)
	sb := NewStreamBuilder(32)
	go func() {
		defer cancel()
		go func() {
			select {
			case <-sb.Closed():
				cancel()
			case <-ctx.Done():
			}
		}()
		stream := g.Client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()
		if err := (&oaiPuller{}).pull(sb, stream); err != nil {
			if errors.Is(err, ErrClosed) {
				return
			}
			g.logger().Debug("llm/openai: stream failed", "model", g.Model, "error", err)
			sb.Abort(err)
		}
	}()
	return sb.Stream(), nil
}

// Complete runs a non-streaming completion and returns the assistant text.
func (g *OpenAIGenerator) Complete(ctx context.Context, mctx *ModelContext) (string, error) {
	params, err := g.chatCompletion(mctx)
	if err != nil {
		return "", err
	}
	resp, err := g.Client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm/openai: no choices")
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return "", Blocked(oaiConvUsage(&resp.Usage), choice.Message.Refusal)
	}
	return choice.Message.Content, nil
}

// Ping lists the endpoint's models to check that it is reachable and
// accepts the credentials. Failures wrap ErrAuthFailed or ErrUnreachable
// when they can be told apart.
func (g *OpenAIGenerator) Ping(ctx context.Context) error {
	var resp *http.Response
	_, err := g.Client.Models.List(ctx, option.WithResponseInto(&resp))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if resp == nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	return fmt.Errorf("llm/openai: list models: %w", err)
}

func (g *OpenAIGenerator) chatCompletion(mctx *ModelContext) (openai.ChatCompletionNewParams, error) {
	msgs, err := g.convModelContext(mctx)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}
	params := openai.ChatCompletionNewParams{
		Messages: msgs,
		Model:    g.Model,
	}
	if mctx.Model != "" {
		params.Model = mctx.Model
	}
	var mp ModelParams
	if g.Params != nil {
		mp = *g.Params
	}
	mp = mp.Merge(mctx.Params)
	if mp.MaxTokens > 0 {
		params.MaxTokens = param.NewOpt(int64(mp.MaxTokens))
	}
	if mp.Temperature != nil {
		params.Temperature = param.NewOpt(*mp.Temperature)
	}
	if mp.TopP != nil {
		params.TopP = param.NewOpt(*mp.TopP)
	}
	if g.SupportToolCalls && len(mctx.Tools) > 0 {
		for _, tool := range mctx.Tools {
			params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
				Function: openai.FunctionDefinitionParam{
					Name:        tool.Name,
					Description: param.NewOpt(tool.Description),
					Parameters:  convSchema(tool.Argument),
				},
			})
		}
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: param.NewOpt("auto"),
		}
	}
	return params, nil
}

func (g *OpenAIGenerator) convModelContext(mctx *ModelContext) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := []openai.ChatCompletionMessageParamUnion{}
	for _, p := range mctx.Prompts {
		out = append(out, g.convPrompt(p))
	}
	for _, msg := range mctx.Messages {
		m, err := convMessage(msg)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (g *OpenAIGenerator) convPrompt(p *Prompt) openai.ChatCompletionMessageParamUnion {
	if g.UseSystemRole {
		mp := openai.ChatCompletionMessageParamUnion{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: param.NewOpt(p.Text),
				},
			},
		}
		if p.Name != "" {
			mp.OfSystem.Name = param.NewOpt(p.Name)
		}
		return mp
	}
	mp := openai.ChatCompletionMessageParamUnion{
		OfDeveloper: &openai.ChatCompletionDeveloperMessageParam{
			Content: openai.ChatCompletionDeveloperMessageParamContentUnion{
				OfString: param.NewOpt(p.Text),
			},
		},
	}
	if p.Name != "" {
		mp.OfDeveloper.Name = param.NewOpt(p.Name)
	}
	return mp
}

func convMessage(msg *Message) (openai.ChatCompletionMessageParamUnion, error) {
	switch msg.Role {
	case RoleUser:
		mp := openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfString: param.NewOpt(msg.Content),
			},
		}
		if msg.Name != "" {
			mp.Name = param.NewOpt(msg.Name)
		}
		return openai.ChatCompletionMessageParamUnion{OfUser: &mp}, nil
	case RoleAssistant:
		mp := openai.ChatCompletionAssistantMessageParam{}
		if msg.Content != "" {
			mp.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
				OfString: param.NewOpt(msg.Content),
			}
		}
		for _, tc := range msg.ToolCalls {
			mp.ToolCalls = append(mp.ToolCalls, openai.ChatCompletionMessageToolCallParam{
				ID: tc.ID,
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		if msg.Content == "" && len(mp.ToolCalls) == 0 {
			return openai.ChatCompletionMessageParamUnion{}, errors.New("llm/openai: assistant message must contain text or tool calls")
		}
		if msg.Name != "" {
			mp.Name = param.NewOpt(msg.Name)
		}
		return openai.ChatCompletionMessageParamUnion{OfAssistant: &mp}, nil
	case RoleTool:
		return openai.ToolMessage(msg.Content, msg.ToolCallID), nil
	case RoleSystem:
		return openai.SystemMessage(msg.Content), nil
	default:
		return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("llm/openai: unexpected message role: %s", msg.Role)
	}
}

// oaiPuller converts chat completion chunks into deltas. Tool call fragments
// are accumulated by index and emitted whole once the choice finishes.
type oaiPuller struct {
	started bool
	tools   map[int64]*ToolCall
}

func (p *oaiPuller) commitTools(sb *StreamBuilder) error {
	if len(p.tools) == 0 {
		return nil
	}
	idx := make([]int64, 0, len(p.tools))
	for i := range p.tools {
		idx = append(idx, i)
	}
	sort.Slice(idx, func(a, b int) bool { return idx[a] < idx[b] })
	for _, i := range idx {
		tc := p.tools[i]
		if strings.TrimSpace(tc.Arguments) == "" {
			tc.Arguments = "{}"
		}
		if err := sb.Add(&Delta{ToolCall: tc}); err != nil {
			return err
		}
	}
	p.tools = nil
	return nil
}

func (p *oaiPuller) start(sb *StreamBuilder) error {
	if p.started {
		return nil
	}
	p.started = true
	return sb.Add(&Delta{Role: RoleAssistant})
}

func (p *oaiPuller) pull(sb *StreamBuilder, stream *ssestream.Stream[openai.ChatCompletionChunk]) error {
	var (
		usage    Usage
		finished string
	)
	for stream.Next() {
		chunk := stream.Current()
		if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
			usage = oaiConvUsage(&chunk.Usage)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		sel := chunk.Choices[0]
		if err := p.start(sb); err != nil {
			return err
		}
		if s := sel.Delta.Content; s != "" {
			if err := sb.Add(&Delta{Content: s}); err != nil {
				return err
			}
		}
		for _, t := range sel.Delta.ToolCalls {
			if p.tools == nil {
				p.tools = make(map[int64]*ToolCall)
			}
			tc, ok := p.tools[t.Index]
			if !ok {
				tc = &ToolCall{}
				p.tools[t.Index] = tc
			}
			if t.ID != "" {
				tc.ID = t.ID
			}
			tc.Name += t.Function.Name
			tc.Arguments += t.Function.Arguments
		}
		if s := sel.Delta.Refusal; s != "" {
			return sb.Blocked(usage, s)
		}
		if sel.FinishReason != "" {
			finished = sel.FinishReason
		}
	}
	if err := stream.Err(); err != nil {
		return err
	}
	if err := p.start(sb); err != nil {
		return err
	}
	switch finished {
	case oaiFinishReasonLength:
		if err := p.commitTools(sb); err != nil {
			return err
		}
		return sb.Truncated(usage)
	case oaiFinishReasonContentFilter:
		return sb.Blocked(usage, "content filter")
	default:
		if err := p.commitTools(sb); err != nil {
			return err
		}
		return sb.Done(usage)
	}
}

func convSchema(s *jsonschema.Schema) openai.FunctionParameters {
	if s == nil {
		return openai.FunctionParameters{"type": "object", "properties": map[string]any{}}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var m openai.FunctionParameters
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}

func oaiConvUsage(usage *openai.CompletionUsage) Usage {
	return Usage{
		PromptTokens:    usage.PromptTokens,
		GeneratedTokens: usage.CompletionTokens,
	}
}
