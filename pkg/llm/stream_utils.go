package llm

import (
	"errors"
	"strings"
)

// TextStream returns a finished stream that yields an assistant role marker
// followed by one content delta per fragment. Empty fragments are kept so
// consumers see them as no-ops.
func TextStream(fragments ...string) Stream {
	sb := NewStreamBuilder(len(fragments) + 2)
	sb.Add(&Delta{Role: RoleAssistant})
	for _, f := range fragments {
		sb.Add(&Delta{Content: f})
	}
	sb.Done(Usage{})
	return sb.Stream()
}

// ErrorStream returns a stream that yields fragments and then fails with err.
func ErrorStream(err error, fragments ...string) Stream {
	sb := NewStreamBuilder(len(fragments) + 1)
	for _, f := range fragments {
		sb.Add(&Delta{Content: f})
	}
	sb.Finish(err)
	return sb.Stream()
}

// Completion is a fully drained stream.
type Completion struct {
	Text      string
	ToolCalls []*ToolCall
	Usage     Usage
}

// Collect drains s and closes it. A stream that ended by truncation or a
// content filter still yields the text received so far together with the
// terminal error.
func Collect(s Stream) (*Completion, error) {
	defer s.Close()
	var (
		text strings.Builder
		out  Completion
	)
	for {
		d, err := s.Next()
		if err != nil {
			out.Text = text.String()
			var st *State
			if errors.As(err, &st) {
				out.Usage = st.Usage()
			}
			if errors.Is(err, ErrDone) {
				return &out, nil
			}
			return &out, err
		}
		text.WriteString(d.Content)
		if d.ToolCall != nil {
			out.ToolCalls = append(out.ToolCalls, d.ToolCall)
		}
	}
}
