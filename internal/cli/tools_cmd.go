package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Tkzito/lori-llm-local/internal/tool"
)

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the tool registry",
	}

	cmd.AddCommand(newToolsListCmd())
	return cmd
}

func newToolsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The listing only needs the registry shape, not a live backend.
			reg := tool.NewRegistry()
			tool.RegisterAll(reg, tool.NewWorkspace("/", nil))

			for _, def := range reg.Definitions() {
				marker := " "
				if def.Sensitive {
					marker = "*"
				}
				fmt.Printf("%s %-14s %s\n", marker, def.Name, def.Description)

				names := make([]string, 0, len(def.Schema.Params))
				for n := range def.Schema.Params {
					names = append(names, n)
				}
				sort.Strings(names)
				for _, n := range names {
					p := def.Schema.Params[n]
					req := ""
					if p.Required {
						req = " (required)"
					}
					fmt.Printf("    %s: %s%s  %s\n", n, p.Type, req, p.Description)
				}
			}
			fmt.Println("\n* requires confirmation before running")
			return nil
		},
	}
}
