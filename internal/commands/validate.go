package commands

import (
	"fmt"

	"github.com/liamcoop/csvetl/rules"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config>",
		Short: "Check a rule set and print it with defaults filled in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := rules.Load(args[0])
			if err != nil {
				return err
			}

			data, err := rs.Marshal()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if _, err := w.Write(data); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.ErrOrStderr(), "%d rules, %d targets\n", rs.Len(), len(rs.Targets()))
			return err
		},
	}
}
