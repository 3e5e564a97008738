package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pajeronda/grok-generative-ai-conversation/pkg/conversation"
)

var (
	generatePrompt string
	generateModel  string
	generateTemp   float64
	generateTopP   float64
	generateTokens int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate content from a prompt",
	Long: `Run a single completion of a prompt, outside any conversation.

Unset sampling flags fall back to the configured values.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if generatePrompt == "" {
			return fmt.Errorf("--prompt is required")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		req := conversation.ContentRequest{
			Prompt:    generatePrompt,
			Model:     generateModel,
			MaxTokens: generateTokens,
		}
		if cmd.Flags().Changed("temperature") {
			req.Temperature = &generateTemp
		}
		if cmd.Flags().Changed("top-p") {
			req.TopP = &generateTopP
		}
		text, err := a.agent.GenerateContent(cmd.Context(), req)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVarP(&generatePrompt, "prompt", "p", "", "prompt text")
	generateCmd.Flags().StringVar(&generateModel, "model", "", "model override")
	generateCmd.Flags().Float64Var(&generateTemp, "temperature", 0, "sampling temperature")
	generateCmd.Flags().Float64Var(&generateTopP, "top-p", 0, "nucleus sampling")
	generateCmd.Flags().IntVar(&generateTokens, "max-tokens", 0, "maximum reply tokens")
	rootCmd.AddCommand(generateCmd)
}
