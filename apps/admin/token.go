package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trezcool/ilmlab/core/identity"
)

func (cli *commandLine) tokenCmd() *cobra.Command {
	var idt identity.Identity
	cmd := &cobra.Command{
		Use:   "token USER_ID",
		Short: "Issue an API token for a user (development only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idt.ID = args[0]
			token, err := cli.tokens.Issue(idt)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&idt.Email, "email", "", "user email")
	cmd.Flags().StringVar(&idt.DisplayName, "name", "", "display name")
	return cmd
}
