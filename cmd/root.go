package cmd

import (
	"os"

	"nathanbeddoewebdev/mcfleet/cmd/commands/auth"
	cfgcmd "nathanbeddoewebdev/mcfleet/cmd/commands/config"
	"nathanbeddoewebdev/mcfleet/cmd/commands/daemon"
	"nathanbeddoewebdev/mcfleet/cmd/commands/fleet"
	"nathanbeddoewebdev/mcfleet/cmd/commands/history"
	"nathanbeddoewebdev/mcfleet/cmd/commands/server"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
func rootCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "mcfleet",
		Short: "Run a Minecraft server fleet on a single on-demand host",
		Long: `mcfleet tracks the game servers managed by a Crafty Controller panel,
powers their compute host on when a server is started, stops servers
that sit idle, and powers the host off once the whole fleet is down.

Supported host providers: Google Compute Engine, Hetzner Cloud.

Quick start:
  mcfleet auth login crafty                          # Store the panel API token
  mcfleet config set crafty-url https://panel:8443   # Point at the panel
  mcfleet config set gce-project my-project          # Describe the host
  mcfleet daemon                                     # Run the orchestrator
  mcfleet server start 1                             # Start a server`,
	}

	cmd.AddCommand(auth.NewCommand())
	cmd.AddCommand(cfgcmd.NewCommand())
	cmd.AddCommand(daemon.NewCommand())
	cmd.AddCommand(server.NewCommand())
	cmd.AddCommand(fleet.NewCommand())
	cmd.AddCommand(fleet.HostCommand())
	cmd.AddCommand(history.NewCommand())

	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	var root = rootCmd()
	err := root.Execute()
	if err != nil {
		os.Exit(1)
	}
}
