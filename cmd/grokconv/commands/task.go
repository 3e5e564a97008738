package commands

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/spf13/cobra"

	"github.com/pajeronda/grok-generative-ai-conversation/pkg/cli"
	"github.com/pajeronda/grok-generative-ai-conversation/pkg/conversation"
)

var (
	taskName         string
	taskInstructions string
	taskStructure    string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Generate data for a task",
	Long: `Run a data generation task. With --structure the reply must be JSON valid
against the given JSON schema (a .json or .yaml file, or - for stdin) and is
printed in the --output format; otherwise the reply text is printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if taskInstructions == "" {
			return fmt.Errorf("--instructions is required")
		}
		task := conversation.Task{
			Name:         taskName,
			Instructions: taskInstructions,
		}
		if taskStructure != "" {
			var schema jsonschema.Schema
			if err := cli.LoadRequest(taskStructure, &schema); err != nil {
				return fmt.Errorf("load structure: %w", err)
			}
			task.Structure = &schema
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

		res, err := a.agent.GenerateData(cmd.Context(), task)
		if err != nil {
			return err
		}
		if task.Structure == nil {
			return cli.Print(cmd.OutOrStdout(), cli.FormatText, res.Data)
		}
		return printResult(cmd, res.Data)
	},
}

func init() {
	taskCmd.Flags().StringVar(&taskName, "name", "task", "task name used in logs")
	taskCmd.Flags().StringVarP(&taskInstructions, "instructions", "i", "", "task instructions")
	taskCmd.Flags().StringVar(&taskStructure, "structure", "", "JSON schema file the reply must satisfy")
	rootCmd.AddCommand(taskCmd)
}
