package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pajeronda/grok-generative-ai-conversation/pkg/cli"
	"github.com/pajeronda/grok-generative-ai-conversation/pkg/conversation"
	"github.com/pajeronda/grok-generative-ai-conversation/pkg/llm"
)

var (
	chatMessage        string
	chatConversationID string
	chatLanguage       string
	chatForget         bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the agent",
	Long: `Send one message with -m, or start an interactive session without it.

Replies stream as they arrive. Smart home commands are resolved by Home
Assistant and the result is shown in place of the directive.

Interactive commands:
  /new    start a new conversation
  /exit   quit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if chatForget && chatConversationID != "" {
			if err := a.agent.Forget(ctx, chatConversationID); err != nil {
				return err
			}
		}
		if chatMessage != "" {
			_, err := chatTurn(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), a.agent, chatMessage, chatConversationID)
			return err
		}
		return chatLoop(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), a.agent)
	},
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "message to send (interactive session if empty)")
	chatCmd.Flags().StringVar(&chatConversationID, "conversation", "", "conversation id to continue")
	chatCmd.Flags().StringVarP(&chatLanguage, "language", "l", "en", "language of the messages")
	chatCmd.Flags().BoolVar(&chatForget, "forget", false, "clear the stored history of --conversation first")
	rootCmd.AddCommand(chatCmd)
}

// chatTurn runs one turn, streaming the reply to out, and returns the
// conversation id.
func chatTurn(ctx context.Context, out, errOut io.Writer, agent *conversation.Agent, text, conversationID string) (string, error) {
	start := time.Now()
	res, err := agent.Handle(ctx, conversation.Input{
		Text:           text,
		ConversationID: conversationID,
		Language:       chatLanguage,
		OnDelta: func(d *llm.Delta) {
			io.WriteString(out, d.Content)
		},
	})
	if err != nil {
		return conversationID, err
	}
	fmt.Fprintln(out)
	if verbose {
		fmt.Fprintln(errOut, styles.Help.Render(fmt.Sprintf("conversation %s, %s", res.ConversationID, cli.FormatDuration(time.Since(start)))))
	}
	return res.ConversationID, nil
}

func chatLoop(ctx context.Context, in io.Reader, out, errOut io.Writer, agent *conversation.Agent) error {
	fmt.Fprintln(out, styles.Title.Render("grokconv")+styles.Help.Render("/new starts over, /exit quits"))
	id := chatConversationID
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, styles.Prompt.Render("you> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/new":
			id = ""
			fmt.Fprintln(out, styles.Help.Render("new conversation"))
			continue
		}
		fmt.Fprint(out, styles.Prompt.Render("grok> "))
		next, err := chatTurn(ctx, out, errOut, agent, line, id)
		if err != nil {
			fmt.Fprintln(out)
			fmt.Fprintln(errOut, styles.Error.Render("error: ")+err.Error())
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		id = next
	}
}
