package cmds

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-go-golems/palaver/pkg/inference/scripted"
	"github.com/go-go-golems/palaver/pkg/roster"
)

func NewRosterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Work with roster files",
	}

	validateCmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a roster file and build it against the scripted backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := roster.Load(args[0])
			if err != nil {
				return err
			}
			script, err := r.Script()
			if err != nil {
				return err
			}
			// building resolves capabilities, the handoff graph and the policies
			if _, err := r.Build(roster.Deps{Service: scripted.NewEngine(script)}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s mode, %d agents, capabilities: %s\n",
				r.Name, r.Mode, len(r.Agents), joinNames(r.Capabilities()))
			return nil
		},
	}

	cmd.AddCommand(validateCmd)
	return cmd
}
