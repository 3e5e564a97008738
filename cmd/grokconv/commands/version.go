package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/pajeronda/grok-generative-ai-conversation/cmd/grokconv/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, build.String())
		if verbose {
			fmt.Fprintf(out, "  go:     %s\n", runtime.Version())
			fmt.Fprintf(out, "  config: %s\n", configPath)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
