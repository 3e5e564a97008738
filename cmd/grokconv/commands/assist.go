package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pajeronda/grok-generative-ai-conversation/pkg/assist"
	"github.com/pajeronda/grok-generative-ai-conversation/pkg/config"
	"github.com/pajeronda/grok-generative-ai-conversation/pkg/handoff"
)

var (
	assistLanguage string
	assistAgent    string
)

var assistCmd = &cobra.Command{
	Use:   "assist <text>",
	Short: "Send a command straight to the Home Assistant agent",
	Long: `Send text to the Home Assistant conversation agent without involving Grok.
Useful to check what the local agent answers to a directive.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.HomeAssistant.URL == "" {
			return errNoHomeAssistant
		}
		ctx := cmd.Context()
		req := assist.Request{
			Text:     strings.Join(args, " "),
			Language: assistLanguage,
			AgentID:  assistAgent,
		}

		var p assist.Processor = newAssistClient(cfg)
		if cfg.HomeAssistant.Transport == config.TransportWebSocket {
			ws, err := assist.DialWS(ctx, cfg.HomeAssistant.URL, cfg.HomeAssistant.Token, nil)
			if err != nil {
				return err
			}
			defer ws.Close()
			p = ws
		}
		resp, err := p.Process(ctx, req)
		if err != nil {
			return err
		}
		if verbose {
			fmt.Fprintln(cmd.ErrOrStderr(), styles.KeyValue("response_type", resp.ResponseType))
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Speech)
		return nil
	},
}

func init() {
	assistCmd.Flags().StringVarP(&assistLanguage, "language", "l", handoff.DefaultLanguage, "language of the text")
	assistCmd.Flags().StringVar(&assistAgent, "agent", handoff.DefaultLocalAgent, "conversation agent id")
	rootCmd.AddCommand(assistCmd)
}
