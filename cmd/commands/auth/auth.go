package auth

import (
	"fmt"
	"slices"

	"nathanbeddoewebdev/mcfleet/internal/auth"

	"github.com/spf13/cobra"
)

// storeFactory returns the token store. Tests swap it for a mock.
var storeFactory = auth.DefaultStore

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage API tokens",
		Long: `Manage the API tokens mcfleet uses.

Tokens are stored in the local keychain. The crafty token authenticates
against the monitoring provider, the hetzner token against Hetzner Cloud.
MCFLEET_<NAME>_TOKEN environment variables take precedence over stored
tokens.`,
	}

	cmd.AddCommand(LoginCommand())
	cmd.AddCommand(StatusCommand())
	cmd.AddCommand(LogoutCommand())

	return cmd
}

// validateName checks that name is a token mcfleet reads.
func validateName(name string) (string, error) {
	normalized := auth.NormalizeName(name)
	if !slices.Contains(auth.KnownTokens, normalized) {
		return "", fmt.Errorf("unknown token %q (valid: %v)", name, auth.KnownTokens)
	}
	return normalized, nil
}
