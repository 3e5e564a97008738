package handoff

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pajeronda/grok-generative-ai-conversation/pkg/llm"
)

const streamBuffer = 32

// Option configures Transform and Bypass.
type Option func(*transformer)

// WithLanguage sets the language passed to the Handler.
func WithLanguage(language string) Option {
	return func(t *transformer) { t.language = language }
}

func WithLogger(l *slog.Logger) Option {
	return func(t *transformer) { t.logger = l }
}

// WithFailOnError ends the output with the upstream failure itself instead
// of an inline stream error, so the consumer sees the call fail.
func WithFailOnError() Option {
	return func(t *transformer) { t.failOnError = true }
}

type transformer struct {
	handler     Handler
	language    string
	logger      *slog.Logger
	failOnError bool
}

func newTransformer(h Handler, opts []Option) *transformer {
	t := &transformer{handler: h, language: DefaultLanguage}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t
}

// Transform classifies the reply in and returns the stream shown to the user.
// The output opens with an assistant role marker. A conversational reply is
// forwarded fragment by fragment. A directive reply yields exactly one
// fragment, produced by h once in has ended.
//
// Normal completion, truncation and content-filter stops of in end the
// output normally. Any other failure of in is appended to the output as an
// inline stream error. When ctx is done, the output ends with ctx.Err() and
// nothing further is emitted.
func Transform(ctx context.Context, in llm.Stream, h Handler, opts ...Option) llm.Stream {
	t := newTransformer(h, opts)
	sb := llm.NewStreamBuilder(streamBuffer)
	go t.run(ctx, in, sb, t.tagged)
	return sb.Stream()
}

// Bypass forwards every delta of in unchanged, tool calls included, with no
// directive detection. Role markers from in are collapsed into the single
// leading assistant marker.
func Bypass(ctx context.Context, in llm.Stream, opts ...Option) llm.Stream {
	t := newTransformer(nil, opts)
	sb := llm.NewStreamBuilder(streamBuffer)
	go t.run(ctx, in, sb, t.bypass)
	return sb.Stream()
}

type pumpFunc func(ctx context.Context, in llm.Stream, sb *llm.StreamBuilder)

func (t *transformer) run(ctx context.Context, in llm.Stream, sb *llm.StreamBuilder, pump pumpFunc) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			in.CloseWithError(ctx.Err())
		case <-sb.Closed():
			in.Close()
		case <-stop:
		}
	}()
	defer in.Close()

	if err := sb.Add(&llm.Delta{Role: llm.RoleAssistant}); err != nil {
		return
	}
	pump(ctx, in, sb)
}

func (t *transformer) bypass(ctx context.Context, in llm.Stream, sb *llm.StreamBuilder) {
	for {
		d, err := in.Next()
		if err != nil {
			t.end(ctx, sb, err, "")
			return
		}
		if d.IsRoleMarker() {
			continue
		}
		if d.Content == "" && d.ToolCall == nil {
			continue
		}
		if sb.Add(d) != nil {
			return
		}
	}
}

func (t *transformer) tagged(ctx context.Context, in llm.Stream, sb *llm.StreamBuilder) {
	var det Detector
	for {
		d, err := in.Next()
		if err != nil {
			t.finishTagged(ctx, sb, &det, err)
			return
		}
		if out, ok := det.Feed(d.Content); ok {
			if sb.Add(&llm.Delta{Content: out}) != nil {
				return
			}
		}
	}
}

func (t *transformer) finishTagged(ctx context.Context, sb *llm.StreamBuilder, det *Detector, err error) {
	if ctx.Err() != nil {
		sb.Finish(ctx.Err())
		return
	}
	if errors.Is(err, llm.ErrClosed) {
		sb.Finish(err)
		return
	}
	if !llm.IsFinished(err) {
		t.logger.Error("handoff: upstream stream failed",
			"class", det.Class().String(),
			"buffer", truncate(det.Buffer(), 100),
			"error", err)
		// A directive span is never shown raw.
		t.end(ctx, sb, err, det.Finish())
		return
	}

	if rest := det.Finish(); rest != "" {
		if sb.Add(&llm.Delta{Content: rest}) != nil {
			return
		}
	}
	if det.Class() == Directive && det.Buffer() != "" {
		reply := t.resolve(ctx, det.Buffer())
		if ctx.Err() != nil {
			sb.Finish(ctx.Err())
			return
		}
		if sb.Add(&llm.Delta{Content: reply}) != nil {
			return
		}
	}
	t.end(ctx, sb, err, "")
}

// resolve turns a directive span into the single reply fragment.
func (t *transformer) resolve(ctx context.Context, span string) string {
	p, err := ParseDirective(span)
	if err != nil {
		t.logger.Warn("handoff: malformed directive", "buffer", truncate(span, 100))
		return FailureMessage
	}
	if t.handler == nil {
		return FailureMessage
	}
	reply, err := t.handler.Handle(ctx, p, t.language)
	if err != nil {
		if errors.Is(err, ErrEmptyDirective) {
			t.logger.Warn("handoff: directive has no command text", "buffer", truncate(span, 100))
		}
		return FailureMessage
	}
	return reply
}

// end terminates the output for the upstream error err. pending is text
// that was held back and must still be forwarded.
func (t *transformer) end(ctx context.Context, sb *llm.StreamBuilder, err error, pending string) {
	if ctx.Err() != nil {
		sb.Finish(ctx.Err())
		return
	}
	if pending != "" {
		if sb.Add(&llm.Delta{Content: pending}) != nil {
			return
		}
	}
	if llm.IsFinished(err) {
		var usage llm.Usage
		var st *llm.State
		if errors.As(err, &st) {
			usage = st.Usage()
		}
		if st != nil && st.Status() != llm.StatusDone {
			t.logger.Debug("handoff: upstream stopped early", "status", st.Status().String())
		}
		sb.Done(usage)
		return
	}
	if errors.Is(err, llm.ErrClosed) || t.failOnError {
		sb.Finish(err)
		return
	}
	if sb.Add(&llm.Delta{Content: StreamErrorPrefix + llm.Cause(err).Error()}) != nil {
		return
	}
	sb.Done(llm.Usage{})
}
