package conversation

import (
	_ "embed"
	"strings"
)

// UserInstructionsHeader separates user instructions from the default prompt.
const UserInstructionsHeader = "# --- USER INSTRUCTIONS ---"

var (
	//go:embed prompt_default.txt
	DefaultPrompt string

	//go:embed prompt_tools.txt
	ToolsPrompt string
)

// SystemPrompt returns the default prompt followed by the user instructions,
// if any.
func SystemPrompt(user string) string {
	user = strings.TrimSpace(user)
	if user == "" {
		return DefaultPrompt
	}
	return DefaultPrompt + "\n\n" + UserInstructionsHeader + "\n" + user
}
