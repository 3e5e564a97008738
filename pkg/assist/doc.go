// Package assist talks to the Home Assistant conversation API.
//
// [Client] uses the REST API and also serves the automation tools offered to
// the model in the tools fallback. [WSClient] keeps one authenticated
// WebSocket open and multiplexes conversation/process commands over it.
// Both implement [Processor].
package assist
