package llm

import (
	"sync"
)

type streamEvent struct {
	delta *Delta
	err   error
}

// StreamBuilder is the producer side of a Stream. It is safe for one
// producer goroutine and one reader goroutine.
type StreamBuilder struct {
	events chan streamEvent

	// mu serializes producers and guards finished; the reader never takes it.
	mu       sync.Mutex
	finished bool

	quit     chan struct{}
	quitOnce sync.Once
	quitErr  error

	// last is only touched by the reader.
	last error
}

// NewStreamBuilder creates a builder whose stream buffers up to size deltas.
func NewStreamBuilder(size int) *StreamBuilder {
	return &StreamBuilder{
		events: make(chan streamEvent, size),
		quit:   make(chan struct{}),
	}
}

// Add appends deltas. It blocks while the buffer is full and returns
// ErrClosed (or the reader's close error) once the reader is gone.
func (sb *StreamBuilder) Add(deltas ...*Delta) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if sb.finished {
		return ErrClosed
	}
	for _, d := range deltas {
		if d == nil {
			continue
		}
		if err := sb.push(streamEvent{delta: d}); err != nil {
			return err
		}
	}
	return nil
}

func (sb *StreamBuilder) Done(usage Usage) error {
	return sb.finish(Done(usage))
}

func (sb *StreamBuilder) Truncated(usage Usage) error {
	return sb.finish(Truncated(usage))
}

func (sb *StreamBuilder) Blocked(usage Usage, refusal string) error {
	return sb.finish(Blocked(usage, refusal))
}

// Abort ends the stream with a transport failure.
func (sb *StreamBuilder) Abort(err error) error {
	return sb.finish(Error(Usage{}, err))
}

// Finish ends the stream with err as the terminal error returned by Next.
func (sb *StreamBuilder) Finish(err error) error {
	return sb.finish(err)
}

func (sb *StreamBuilder) finish(err error) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if sb.finished {
		return ErrClosed
	}
	sb.finished = true
	defer close(sb.events)
	return sb.push(streamEvent{err: err})
}

func (sb *StreamBuilder) push(evt streamEvent) error {
	select {
	case <-sb.quit:
		return sb.quitErr
	default:
	}
	select {
	case sb.events <- evt:
		return nil
	case <-sb.quit:
		return sb.quitErr
	}
}

// Closed is closed once the reader closes the stream.
func (sb *StreamBuilder) Closed() <-chan struct{} {
	return sb.quit
}

func (sb *StreamBuilder) Stream() Stream {
	return (*builderStream)(sb)
}

type builderStream StreamBuilder

func (s *builderStream) Next() (*Delta, error) {
	if s.last != nil {
		return nil, s.last
	}
	// A closed reader wins over buffered events.
	select {
	case <-s.quit:
		s.last = s.quitErr
		return nil, s.last
	default:
	}
	select {
	case evt, ok := <-s.events:
		if !ok {
			s.last = ErrDone
			return nil, s.last
		}
		if evt.err != nil {
			s.last = evt.err
			return nil, s.last
		}
		return evt.delta, nil
	case <-s.quit:
		s.last = s.quitErr
		return nil, s.last
	}
}

func (s *builderStream) Close() error {
	return s.CloseWithError(ErrClosed)
}

func (s *builderStream) CloseWithError(err error) error {
	if err == nil {
		err = ErrClosed
	}
	s.quitOnce.Do(func() {
		s.quitErr = err
		close(s.quit)
	})
	return nil
}
