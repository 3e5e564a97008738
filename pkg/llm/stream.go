package llm

import (
	"errors"
	"fmt"
)

// ErrDone is returned when the stream is done.
var ErrDone = errors.New("llm: done")

// ErrClosed is returned to producers after the reader closed the stream.
var ErrClosed = errors.New("llm: stream closed")

type Stream interface {
	Next() (*Delta, error)
	Close() error
	CloseWithError(error) error
}

type Status int

const (
	StatusOK Status = iota
	StatusDone
	StatusTruncated
	StatusBlocked
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusDone:
		return "done"
	case StatusTruncated:
		return "truncated"
	case StatusBlocked:
		return "blocked"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

type Usage struct {
	PromptTokens    int64
	GeneratedTokens int64
}

// State is the terminal error of a Stream. Streams that finished normally
// return a State that unwraps to ErrDone.
type State struct {
	usage  Usage
	status Status
	err    error
}

func Done(usage Usage) *State {
	return &State{usage: usage, status: StatusDone, err: ErrDone}
}

func Truncated(usage Usage) *State {
	return &State{usage: usage, status: StatusTruncated, err: errors.New("llm: generate truncated")}
}

func Blocked(usage Usage, refusal string) *State {
	return &State{usage: usage, status: StatusBlocked, err: fmt.Errorf("llm: generate blocked: %s", refusal)}
}

// Error wraps a transport failure. Unwrap returns err itself.
func Error(usage Usage, err error) *State {
	return &State{usage: usage, status: StatusError, err: err}
}

func (s *State) Usage() Usage {
	return s.usage
}

func (s *State) Status() Status {
	return s.status
}

func (s *State) Unwrap() error {
	return s.err
}

func (s *State) Error() string {
	switch s.status {
	case StatusDone:
		return "llm: generate done"
	case StatusError:
		return "llm: generate error: " + s.err.Error()
	default:
		return s.err.Error()
	}
}

// Cause returns the underlying failure of a State error, or err itself.
func Cause(err error) error {
	var st *State
	if errors.As(err, &st) && st.err != nil {
		return st.err
	}
	return err
}

// IsFinished reports whether err marks a stream that ended without a
// transport failure: done, truncated by length, or stopped by a content
// filter.
func IsFinished(err error) bool {
	if errors.Is(err, ErrDone) {
		return true
	}
	var st *State
	if errors.As(err, &st) {
		return st.status == StatusTruncated || st.status == StatusBlocked
	}
	return false
}
