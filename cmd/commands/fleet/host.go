package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"nathanbeddoewebdev/mcfleet/cmd/commands/apiflag"
	"nathanbeddoewebdev/mcfleet/internal/styles"

	"github.com/spf13/cobra"
)

// HostCommand returns the "host" command, which prints the last observed
// power state of the compute host.
func HostCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "host",
		Short:             "Show the compute host power state",
		Long:              `Show the power state and external IP of the host running the fleet.`,
		Args:              cobra.NoArgs,
		PersistentPreRunE: apiflag.Resolve,
		RunE:              runHost,
		SilenceUsage:      true,
	}

	apiflag.Register(cmd)
	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")

	return cmd
}

func runHost(cmd *cobra.Command, args []string) error {
	client, err := apiflag.Client(cmd)
	if err != nil {
		return err
	}

	status, err := client.Host(context.Background())
	if err != nil {
		return fmt.Errorf("failed to fetch host status: %w", err)
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  State:\t%s\n", styles.Host(status.State, colorEnabled(cmd)))
	if status.RawStatus != "" {
		fmt.Fprintf(w, "  Provider status:\t%s\n", status.RawStatus)
	}
	if status.ExternalIP != "" {
		fmt.Fprintf(w, "  External IP:\t%s\n", status.ExternalIP)
	}
	if !status.CheckedAt.IsZero() {
		fmt.Fprintf(w, "  Checked:\t%s\n", status.CheckedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	return w.Flush()
}
