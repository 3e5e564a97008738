// Package conversation runs conversation turns against the model.
//
// A turn streams the model reply through the directive pipeline in
// package handoff: conversational replies reach the caller as they arrive,
// while a directive reply is resolved by the local agent or, failing that,
// by a tools-enabled model turn (see [Agent.FallbackWithTools]).
//
// The same agent serves data generation tasks ([Agent.GenerateData]) and
// one-shot content generation ([Agent.GenerateContent]).
package conversation
