package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Tkzito/lori-llm-local/internal/agent"
)

func newChatCmd() *cobra.Command {
	var (
		showThoughts bool
		contextFiles []string
	)

	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send one message to the assistant and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			session := a.runner.NewSession()
			stdin := bufio.NewReader(os.Stdin)

			turn := agent.TurnRequest{
				Message:      strings.Join(args, " "),
				ContextFiles: contextFiles,
			}
			return a.runner.RunTurn(cmd.Context(), session, turn, func(e agent.Event) {
				switch e.Type {
				case agent.EventThought:
					if showThoughts {
						fmt.Fprintf(os.Stderr, "[thinking] %s", e.Content)
					}
				case agent.EventContent:
					fmt.Print(e.Content)
				case agent.EventToolCall:
					if data, ok := e.Data.(agent.ToolCallData); ok {
						fmt.Fprintf(os.Stderr, "\n[tool] %s\n", data.Name)
					}
				case agent.EventConfirmRequired:
					data, ok := e.Data.(agent.ConfirmRequiredData)
					if !ok {
						return
					}
					fmt.Fprintf(os.Stderr, "\n%s\nAllow %s? [y/N] ", data.Reason, data.Action)
					line, _ := stdin.ReadString('\n')
					answer := strings.ToLower(strings.TrimSpace(line))
					session.ResolveConfirmation(answer == "y" || answer == "yes")
				case agent.EventError:
					if data, ok := e.Data.(agent.ErrorData); ok {
						fmt.Fprintf(os.Stderr, "\nerror (%s): %s\n", data.Kind, data.Message)
					}
				case agent.EventDone:
					fmt.Println()
				}
			})
		},
	}

	cmd.Flags().BoolVar(&showThoughts, "thoughts", false, "print the model's thinking to stderr")
	cmd.Flags().StringSliceVar(&contextFiles, "file", nil, "pin a file into the conversation (repeatable)")

	return cmd
}
