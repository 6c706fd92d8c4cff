package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/ilmlab/core"
	"github.com/trezcool/ilmlab/core/identity"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var idt identity.Identity
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a progress record (a random id is used when --id is empty)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			created, err := cli.addUser(&idt)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "created user %s\n", idt.ID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "user %s already exists\n", idt.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&idt.ID, "id", "", "user id")
	cmd.Flags().StringVar(&idt.Email, "email", "", "user email")
	cmd.Flags().StringVar(&idt.DisplayName, "name", "", "display name")
	cmd.Flags().StringVar(&idt.PhotoURL, "photo", "", "photo url")
	return cmd
}

// addUser creates the record of idt unless it exists already. idt.ID is generated when empty.
func (cli *commandLine) addUser(idt *identity.Identity) (bool, error) {
	idt.ID = core.CleanString(idt.ID)
	if idt.ID == "" {
		idt.ID = uuid.NewString()
	}
	idt.Email = core.CleanString(idt.Email, true /* lower */)
	idt.DisplayName = core.CleanString(idt.DisplayName)

	_, created, err := cli.ledger.Enroll(context.Background(), *idt)
	if err != nil {
		return false, errors.Wrap(err, "enrolling user")
	}
	return created, nil
}
