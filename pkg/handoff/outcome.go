package handoff

import "fmt"

// OutcomeKind tags the result of one resolution step.
type OutcomeKind int

const (
	// OutcomeSuccess carries a reply for the user.
	OutcomeSuccess OutcomeKind = iota + 1
	// OutcomeDeclined means the step ran but produced nothing usable.
	OutcomeDeclined
	// OutcomeError means the step failed in transport or processing.
	OutcomeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeDeclined:
		return "declined"
	case OutcomeError:
		return "error"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the tagged result of a resolution step.
type Outcome struct {
	Kind OutcomeKind
	// Text is the reply when Kind is OutcomeSuccess.
	Text string
	// Reason explains a declined step.
	Reason string
	// Err is the cause when Kind is OutcomeError.
	Err error
}

func Success(text string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Text: text}
}

func Declined(reason string) Outcome {
	return Outcome{Kind: OutcomeDeclined, Reason: reason}
}

func Failed(err error) Outcome {
	return Outcome{Kind: OutcomeError, Err: err}
}

func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeSuccess:
		return "success"
	case OutcomeDeclined:
		return "declined: " + o.Reason
	case OutcomeError:
		return fmt.Sprintf("error: %v", o.Err)
	default:
		return o.Kind.String()
	}
}
