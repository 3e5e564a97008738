// Package main is the entry point for the grokconv CLI.
//
// Usage:
//
//	grokconv [flags] <command> [args]
//
// Commands:
//
//	chat      - Talk to the agent (one message or an interactive session)
//	generate  - One-shot content generation
//	task      - Generate data, optionally as JSON matching a schema
//	assist    - Send a command straight to the Home Assistant agent
//	config    - Show the effective configuration
//	version   - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/pajeronda/grok-generative-ai-conversation/cmd/grokconv/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
