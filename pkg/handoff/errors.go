package handoff

import "errors"

var (
	// ErrMalformedDirective is returned when a directive buffer has no
	// complete [[HA_LOCAL: ... ]] span.
	ErrMalformedDirective = errors.New("handoff: malformed directive")

	// ErrEmptyDirective is returned when a directive carries no command text.
	ErrEmptyDirective = errors.New("handoff: empty directive")

	// ErrHandoffExhausted is returned when neither the local agent nor the
	// tools fallback produced a reply.
	ErrHandoffExhausted = errors.New("handoff: exhausted")
)

// FailureMessage is shown to the user whenever a directive cannot be
// resolved.
const FailureMessage = "I was not able to handle your request. Please try rephrasing it."

// StreamErrorPrefix precedes the cause of an upstream failure appended to a
// partially forwarded reply.
const StreamErrorPrefix = "\n\nStream Error: "
