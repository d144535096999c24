package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"nathanbeddoewebdev/mcfleet/internal/auth"

	"github.com/spf13/cobra"
)

func StatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which tokens are available",
		Long: `Show which API tokens are available and where each one comes from.

Example:
  mcfleet auth status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := storeFactory()

			for _, name := range auth.KnownTokens {
				if strings.TrimSpace(os.Getenv(auth.EnvVar(name))) != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: set via %s\n", name, auth.EnvVar(name))
					continue
				}
				_, err := store.GetToken(name)
				switch {
				case err == nil:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: logged in\n", name)
				case errors.Is(err, auth.ErrTokenNotFound):
					fmt.Fprintf(cmd.OutOrStdout(), "%s: not logged in\n", name)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: error (%v)\n", name, err)
				}
			}
			return nil
		},
		SilenceUsage: true,
	}

	return cmd
}
