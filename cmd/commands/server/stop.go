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

// StopCommand returns a cobra.Command that stops a server.
func StopCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop <id>",
		Short: "Stop a server",
		Long: `Stop a game server and wait until it is down.

If no other server is left running the daemon powers the host off.

Examples:
  mcfleet server stop 1`,
		Args: cobra.ExactArgs(1),
		Run:  runStop,
	}

	return cmd
}

func runStop(cmd *cobra.Command, args []string) {
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

	var res api.StopResult
	spinErr := waitFor(cmd, fmt.Sprintf("Stopping server %d...", id), func() {
		res, err = client.StopServer(ctx, id)
	})
	if spinErr != nil {
		cancel()
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", spinErr)
		return
	}
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error stopping server: %v\n", err)
		return
	}
	if !res.OK {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: server %d did not stop: %s\n", id, res.Error)
		return
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Server %d stopped successfully.\n", id)
}
