package config

import (
	"nathanbeddoewebdev/mcfleet/internal/config"

	"github.com/spf13/cobra"
)

// NewCommand returns the "config" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage mcfleet configuration",
		Long: "View and modify persistent mcfleet settings.\n\n" +
			"Configuration is stored at ~/.config/mcfleet/config.json. Every key can be\n" +
			"overridden for the daemon with an MCFLEET_<KEY> environment variable\n" +
			"(dashes become underscores), or from a .env file.\n\n" +
			config.KeysHelp(),
	}

	cmd.AddCommand(SetCommand())
	cmd.AddCommand(GetCommand())
	cmd.AddCommand(ListCommand())

	return cmd
}
