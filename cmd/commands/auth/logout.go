package auth

import (
	"errors"
	"fmt"

	"nathanbeddoewebdev/mcfleet/internal/auth"

	"github.com/spf13/cobra"
)

func LogoutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout <crafty|hetzner>",
		Short: "Remove a stored API token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := validateName(args[0])
			if err != nil {
				return err
			}

			err = storeFactory().DeleteToken(name)
			switch {
			case err == nil:
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s token\n", name)
			case errors.Is(err, auth.ErrTokenNotFound):
				fmt.Fprintf(cmd.OutOrStdout(), "No %s token stored\n", name)
			default:
				return err
			}
			return nil
		},
		SilenceUsage: true,
	}

	return cmd
}
