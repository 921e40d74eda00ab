package cmds

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/palaver/pkg/history"
)

func NewTokensCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Token counting helpers",
	}

	var model string
	countCmd := &cobra.Command{
		Use:   "count [text...]",
		Short: "Count the tokens of the arguments, or of stdin without arguments",
		RunE: func(cmd *cobra.Command, args []string) error {
			input := strings.Join(args, " ")
			if len(args) == 0 {
				b, err := io.ReadAll(os.Stdin)
				if err != nil {
					return errors.Wrap(err, "could not read stdin")
				}
				input = string(b)
			}

			codec, err := history.CodecFor(model)
			if err != nil {
				return err
			}
			count, err := history.CountTokens(codec, input)
			if err != nil {
				return errors.Wrap(err, "error encoding input")
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Model: %s\n", model)
			fmt.Fprintf(w, "Codec: %s\n", codec.GetName())
			fmt.Fprintf(w, "Total tokens: %d\n", count)
			return nil
		},
	}
	countCmd.Flags().StringVar(&model, "model", "gpt-4", "Model used for encoding")

	cmd.AddCommand(countCmd)
	return cmd
}
