package server

import (
	"context"
	"fmt"

	"nathanbeddoewebdev/mcfleet/cmd/commands/apiflag"

	"github.com/spf13/cobra"
)

// ShowCommand returns a cobra.Command that displays a fresh snapshot of a
// single server.
func ShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show the current status of a server",
		Long: `Fetch and display a fresh status snapshot of a single server.

Examples:
  mcfleet server show 1
  mcfleet server show 1 -o json`,
		Args:         cobra.ExactArgs(1),
		RunE:         runShow,
		SilenceUsage: true,
	}

	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")

	return cmd
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	client, err := apiflag.Client(cmd)
	if err != nil {
		return err
	}

	snap, err := client.GetServer(context.Background(), id)
	if err != nil {
		return fmt.Errorf("failed to fetch server: %w", err)
	}

	output, _ := cmd.Flags().GetString("output")
	switch output {
	case "json":
		printJSON(cmd, snap)
	case "table", "":
		printSnapshot(cmd, snap)
	default:
		return fmt.Errorf("unsupported output format %q", output)
	}
	return nil
}
