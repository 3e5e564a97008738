package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pajeronda/grok-generative-ai-conversation/pkg/cli"
	"github.com/pajeronda/grok-generative-ai-conversation/pkg/config"
)

var (
	// Global flags
	verbose      bool
	configPath   string
	formatOutput string

	styles = cli.NewStyles(cli.DefaultTheme)
)

var rootCmd = &cobra.Command{
	Use:   "grokconv",
	Short: "Grok conversation agent with Home Assistant handoff",
	Long: `grokconv - talk to Grok with smart home commands handed to Home Assistant.

Replies that start with a [[HA_LOCAL: {...}]] directive are sent to the
Home Assistant conversation agent; when it cannot act, a Grok turn with
Home Assistant tools takes over.

Configuration is read from ~/.grokconv/config.yaml (see --config).
Values written as $VAR are taken from the environment or a .env file.

Examples:
  grokconv chat -m "turn on the kitchen light"
  grokconv chat
  grokconv generate -p "write a haiku about autumn"
  grokconv task -i "list three plants" --structure plants.schema.yaml
  grokconv assist "what's the temperature in the living room"`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	defaultPath := cli.DefaultBaseDir + "/" + cli.DefaultConfigFile
	if p, err := cli.NewPaths(); err == nil {
		defaultPath = p.ConfigFile()
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultPath, "config file")
	rootCmd.PersistentFlags().StringVarP(&formatOutput, "output", "o", "yaml", "output format for structured results (yaml, json, text)")
}

// loadConfig reads the config named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config not available: %w", err)
	}
	return cfg, nil
}

// printResult prints v to the command output in the --output format.
func printResult(cmd *cobra.Command, v any) error {
	f, err := cli.ParseFormat(formatOutput)
	if err != nil {
		return err
	}
	return cli.Print(cmd.OutOrStdout(), f, v)
}
