package server

import (
	"context"
	"fmt"
	"strings"

	"nathanbeddoewebdev/mcfleet/cmd/commands/apiflag"

	"github.com/spf13/cobra"
)

// ExecCommand returns a cobra.Command that sends console input to a server.
func ExecCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <id> <command...>",
		Short: "Send a console command to a server",
		Long: `Send raw console input to a running server.

Examples:
  mcfleet server exec 1 say back in five
  mcfleet server exec 1 whitelist add steve`,
		Args:         cobra.MinimumNArgs(2),
		RunE:         runExec,
		SilenceUsage: true,
	}

	return cmd
}

func runExec(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	client, err := apiflag.Client(cmd)
	if err != nil {
		return err
	}

	command := strings.Join(args[1:], " ")
	if err := client.SendCommand(context.Background(), id, command); err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Sent %q to server %d.\n", command, id)
	return nil
}
