package auth

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/spf13/cobra"
)

func LoginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <crafty|hetzner>",
		Short: "Store an API token",
		Long: `Store an API token using the local keychain.

Example:
  mcfleet auth login crafty
  mcfleet auth login hetzner --token "$HCLOUD_TOKEN"`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			name, err := validateName(strings.TrimSpace(args[0]))
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return
			}

			token, err := cmd.Flags().GetString("token")
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return
			}

			token = strings.TrimSpace(token)
			if token == "" {
				if !term.IsTerminal(int(os.Stdin.Fd())) {
					fmt.Fprintln(cmd.ErrOrStderr(), "no terminal to prompt on: pass --token")
					return
				}
				fmt.Fprint(cmd.OutOrStdout(), "Enter API token: ")
				bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
				fmt.Fprintln(cmd.OutOrStdout())
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), err)
					return
				}
				token = strings.TrimSpace(string(bytes))
			}

			if token == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "token cannot be empty")
				return
			}

			if err := storeFactory().SetToken(name, token); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s token\n", name)
		},
	}

	cmd.Flags().String("token", "", "API token (optional, overrides prompt)")

	return cmd
}
