package cmds

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-go-golems/palaver/pkg/roster"
)

func NewScenariosCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "Inspect the bundled scenarios",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the bundled scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			for _, name := range roster.Scenarios() {
				r, err := roster.Scenario(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%-10s %-9s %d agents  %s\n", name, r.Mode, len(r.Agents), r.Description)
			}
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Print the roster file of a bundled scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := roster.Raw(args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}

	cmd.AddCommand(listCmd, showCmd)
	return cmd
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
