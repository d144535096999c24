package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"nathanbeddoewebdev/mcfleet/cmd/commands/apiflag"
	"nathanbeddoewebdev/mcfleet/internal/api"

	"github.com/spf13/cobra"
)

// StartCommand returns a cobra.Command that starts a server and its host.
func StartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <id>",
		Short: "Start a server",
		Long: `Start a game server, powering on the host first if needed.

The command waits until the daemon confirms the server is up and prints
the address players connect to.

Examples:
  mcfleet server start 1`,
		Args: cobra.ExactArgs(1),
		Run:  runStart,
	}

	return cmd
}

func runStart(cmd *cobra.Command, args []string) {
	id, err := parseID(args[0])
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return
	}

	client, err := apiflag.Client(cmd)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var res api.StartResponse
	spinErr := waitFor(cmd, fmt.Sprintf("Starting server %d...", id), func() {
		res, err = client.StartServer(ctx, id)
	})
	if spinErr != nil {
		cancel()
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", spinErr)
		return
	}
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error starting server: %v\n", err)
		return
	}
	if !res.OK {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: server %d did not start: %s\n", id, res.Error)
		return
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Server %d started successfully.\n", id)
	if res.Address != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Connect to %s\n", res.Address)
	}
}
