package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/openai/openai-go/option"

	"github.com/pajeronda/grok-generative-ai-conversation/pkg/assist"
	"github.com/pajeronda/grok-generative-ai-conversation/pkg/config"
	"github.com/pajeronda/grok-generative-ai-conversation/pkg/conversation"
	"github.com/pajeronda/grok-generative-ai-conversation/pkg/handoff"
	"github.com/pajeronda/grok-generative-ai-conversation/pkg/history"
	"github.com/pajeronda/grok-generative-ai-conversation/pkg/llm"
)

var errNoHomeAssistant = errors.New("home_assistant.url is not configured")

// app holds the components built from one config.
type app struct {
	cfg   *config.Config
	agent *conversation.Agent

	closers []io.Closer
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	log := slog.Default()
	a := &app{cfg: cfg}

	gen := newGenerator(cfg)

	var store history.Store = history.NewMemory()
	if cfg.History.Dir != "" {
		b, err := history.OpenBadger(history.BadgerOptions{Dir: cfg.History.Dir, Logger: log})
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		store = b
	}
	a.closers = append(a.closers, store)

	var (
		local handoff.Dispatcher
		tools []*llm.FuncTool
	)
	if cfg.HomeAssistant.URL != "" {
		rest := newAssistClient(cfg)
		tools = assist.Tools(rest)
		proc, err := a.processor(ctx, rest)
		if err != nil {
			a.Close()
			return nil, err
		}
		local = conversation.LocalDispatcher(proc)
	} else {
		log.Debug("grokconv: home assistant not configured, directives go to the tools fallback")
	}

	a.agent = conversation.New(conversation.Config{
		Generator: gen,
		Completer: gen,
		Local:     local,
		Tools:     tools,
		History:   store,
		Options: conversation.Options{
			Prompt:          cfg.Prompt,
			LLMHassAPI:      bool(cfg.LLMHassAPI),
			Recent:          cfg.History.Recent,
			Params:          cfg.ModelParams(),
			LocalTimeout:    cfg.Timeouts.LocalDispatch.Std(),
			FallbackTimeout: cfg.Timeouts.Fallback.Std(),
		},
		Logger: log,
	})
	return a, nil
}

// newGenerator returns the xAI generator. Requests give up after
// timeouts.request without response headers and after timeouts.response in
// total.
func newGenerator(cfg *config.Config) *llm.OpenAIGenerator {
	opts := []option.RequestOption{
		option.WithHTTPClient(llm.NewHTTPClient(cfg.Timeouts.Request.Std())),
	}
	if d := cfg.Timeouts.Response.Std(); d > 0 {
		opts = append(opts, option.WithRequestTimeout(d))
	}
	return &llm.OpenAIGenerator{
		Client:           llm.NewOpenAIClient(cfg.APIKey, cfg.APIEndpoint, opts...),
		Model:            cfg.ChatModel,
		SupportToolCalls: true,
		UseSystemRole:    true,
		Logger:           slog.Default(),
	}
}

func newAssistClient(cfg *config.Config) *assist.Client {
	c := assist.NewClient(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token)
	c.HTTPClient = llm.NewHTTPClient(cfg.Timeouts.Request.Std())
	c.Logger = slog.Default()
	return c
}

// processor returns the conversation processor for the configured transport.
func (a *app) processor(ctx context.Context, rest *assist.Client) (assist.Processor, error) {
	if a.cfg.HomeAssistant.Transport != config.TransportWebSocket {
		return rest, nil
	}
	ws, err := assist.DialWS(ctx, a.cfg.HomeAssistant.URL, a.cfg.HomeAssistant.Token, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("connect to home assistant: %w", err)
	}
	a.closers = append(a.closers, ws)
	return ws, nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}
