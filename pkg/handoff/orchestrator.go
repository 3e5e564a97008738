package handoff

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DefaultLocalAgent is the agent every local dispatch targets.
	DefaultLocalAgent = "conversation.home_assistant"

	// DefaultLanguage is used when the turn carries no language.
	DefaultLanguage = "en"

	DefaultLocalTimeout    = 10 * time.Second
	DefaultFallbackTimeout = 30 * time.Second
)

// ResponseTypeError marks a local result the agent could not act on.
const ResponseTypeError = "error"

// LocalResult is the structured reply of the local agent.
type LocalResult struct {
	ResponseType string
	Speech       string
}

// Dispatcher sends a command to the local conversation agent.
type Dispatcher interface {
	Dispatch(ctx context.Context, text, language, agentID string) (*LocalResult, error)
}

// Fallback runs a fresh model turn with automation tools enabled and returns
// its final text.
type Fallback interface {
	FallbackWithTools(ctx context.Context, text, language string) (string, error)
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(ctx context.Context, text, language, agentID string) (*LocalResult, error)

func (f DispatchFunc) Dispatch(ctx context.Context, text, language, agentID string) (*LocalResult, error) {
	return f(ctx, text, language, agentID)
}

// FallbackFunc adapts a function to Fallback.
type FallbackFunc func(ctx context.Context, text, language string) (string, error)

func (f FallbackFunc) FallbackWithTools(ctx context.Context, text, language string) (string, error) {
	return f(ctx, text, language)
}

// Handler resolves a parsed directive into the reply shown to the user.
type Handler interface {
	Handle(ctx context.Context, p Payload, language string) (string, error)
}

// Orchestrator resolves a directive in two steps: the local agent, then the
// tools fallback. Each step runs at most once and under its own timeout.
type Orchestrator struct {
	Local    Dispatcher
	Fallback Fallback

	// LocalAgent overrides DefaultLocalAgent.
	LocalAgent string

	LocalTimeout    time.Duration
	FallbackTimeout time.Duration

	Logger *slog.Logger
}

var _ Handler = (*Orchestrator)(nil)

// Handle returns the reply for p. The only errors are ErrEmptyDirective and
// ErrHandoffExhausted; step failures are logged and never returned.
func (o *Orchestrator) Handle(ctx context.Context, p Payload, language string) (string, error) {
	text := strings.TrimSpace(p.Text)
	if text == "" {
		return "", ErrEmptyDirective
	}
	if language == "" {
		language = DefaultLanguage
	}
	log := o.logger().With("text", truncate(text, 30), "language", language)

	local := o.dispatchLocal(ctx, text, language)
	if local.OK() {
		log.Debug("handoff: resolved by local agent")
		return local.Text, nil
	}
	log.Warn("handoff: local dispatch did not resolve", "outcome", local.String())
	if ctx.Err() != nil {
		// The turn is gone; a fallback turn would be abandoned at once.
		return "", ErrHandoffExhausted
	}

	fb := o.fallback(ctx, text, language)
	if fb.OK() {
		log.Debug("handoff: resolved by tools fallback")
		return fb.Text, nil
	}
	log.Warn("handoff: tools fallback did not resolve", "outcome", fb.String())
	return "", ErrHandoffExhausted
}

func (o *Orchestrator) dispatchLocal(ctx context.Context, text, language string) Outcome {
	if o.Local == nil {
		return Declined("no local dispatcher")
	}
	ctx, cancel := context.WithTimeout(ctx, orDefault(o.LocalTimeout, DefaultLocalTimeout))
	defer cancel()

	agent := o.LocalAgent
	if agent == "" {
		agent = DefaultLocalAgent
	}
	res, err := o.Local.Dispatch(ctx, text, language, agent)
	switch {
	case err != nil:
		return Failed(err)
	case res == nil:
		return Declined("no result")
	case res.ResponseType == ResponseTypeError:
		return Declined("response type error")
	case strings.TrimSpace(res.Speech) == "":
		return Declined("no speech")
	}
	return Success(res.Speech)
}

func (o *Orchestrator) fallback(ctx context.Context, text, language string) Outcome {
	if o.Fallback == nil {
		return Declined("no tools fallback")
	}
	ctx, cancel := context.WithTimeout(ctx, orDefault(o.FallbackTimeout, DefaultFallbackTimeout))
	defer cancel()

	reply, err := o.Fallback.FallbackWithTools(ctx, text, language)
	switch {
	case err != nil:
		return Failed(err)
	case strings.TrimSpace(reply) == "":
		return Declined("empty reply")
	}
	return Success(reply)
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
