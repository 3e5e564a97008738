// Package handoff routes directives embedded in a model reply to the local
// conversation agent.
//
// A model may answer a turn with a directive instead of prose:
//
//	[[HA_LOCAL: {"text": "turn on the kitchen light"}]]
//
// [Transform] watches the leading characters of the reply as they stream in.
// A reply that starts with anything else is forwarded fragment by fragment
// without delay. A reply that starts with the marker is held back until the
// model stops, parsed with [ParseDirective], and handed to a [Handler],
// normally an [Orchestrator]. The orchestrator tries the local agent first,
// then a tools-enabled model turn, and otherwise reports
// [FailureMessage]. Exactly one fragment is emitted for a directive.
//
// Every call to Transform owns its own [Detector]; nothing is shared
// between turns.
package handoff
