// Package llm provides a small streaming client layer for OpenAI-compatible
// chat models such as xAI Grok.
//
// # Core Types
//
// Delta is the unit of data in a Stream:
//   - Role: set on role markers that open a new assistant message
//   - Content: an incremental text fragment
//   - ToolCall: an assembled tool call requested by the model
//
// Stream is the pull-based flow abstraction shared by producers (model
// generators) and transforms (see package handoff):
//
//	type Stream interface {
//	    Next() (*Delta, error)
//	    Close() error
//	    CloseWithError(error) error
//	}
//
// Next returns ErrDone (possibly wrapped in a *State) once the producer has
// finished normally.
//
// # Producing Streams
//
// StreamBuilder is the producer side of a Stream. A generator goroutine adds
// deltas and finishes the stream with Done, Truncated, Blocked or Abort:
//
//	sb := llm.NewStreamBuilder(32)
//	go func() {
//	    sb.Add(&llm.Delta{Content: "hello"})
//	    sb.Done(llm.Usage{})
//	}()
//	return sb.Stream()
package llm
