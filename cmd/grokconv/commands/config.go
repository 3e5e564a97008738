package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pajeronda/grok-generative-ai-conversation/pkg/llm"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration",
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Show the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return printResult(cmd, cfg.Masked())
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(configPath)
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the xAI credentials and Home Assistant connection",
	Long: `Contact the configured endpoints with the configured credentials.

A rejected API key is reported apart from an endpoint that cannot be reached.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.RequireAPIKey(); err != nil {
			return err
		}
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if err := newGenerator(cfg).Ping(ctx); err != nil {
			switch {
			case errors.Is(err, llm.ErrAuthFailed):
				return fmt.Errorf("xai: api_key was rejected: %w", err)
			case errors.Is(err, llm.ErrUnreachable):
				return fmt.Errorf("xai: cannot reach %s: %w", cfg.APIEndpoint, err)
			}
			return fmt.Errorf("xai: %w", err)
		}
		fmt.Fprintln(out, styles.KeyValue("xai", "ok"))

		if cfg.HomeAssistant.URL == "" {
			fmt.Fprintln(out, styles.KeyValue("home_assistant", "not configured"))
			return nil
		}
		if err := newAssistClient(cfg).Ping(ctx); err != nil {
			return fmt.Errorf("home_assistant: %w", err)
		}
		fmt.Fprintln(out, styles.KeyValue("home_assistant", "ok"))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configViewCmd, configPathCmd, configCheckCmd)
	rootCmd.AddCommand(configCmd)
}
