package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"nathanbeddoewebdev/mcfleet/cmd/commands/apiflag"
	"nathanbeddoewebdev/mcfleet/internal/styles"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewCommand returns the "fleet" command, which prints the tracked state
// of every server.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fleet",
		Short: "Show the tracked state of every server",
		Long: `Show the phase, players and idle time of every server the daemon tracks.

Examples:
  mcfleet fleet
  mcfleet fleet -o json`,
		Args:              cobra.NoArgs,
		PersistentPreRunE: apiflag.Resolve,
		RunE:              runFleet,
		SilenceUsage:      true,
	}

	apiflag.Register(cmd)
	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")

	return cmd
}

func runFleet(cmd *cobra.Command, args []string) error {
	client, err := apiflag.Client(cmd)
	if err != nil {
		return err
	}

	states, err := client.Fleet(context.Background())
	if err != nil {
		return fmt.Errorf("failed to fetch fleet: %w", err)
	}

	output, _ := cmd.Flags().GetString("output")
	switch output {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(states)
	case "table", "":
	default:
		return fmt.Errorf("unsupported output format %q", output)
	}

	if len(states) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No servers tracked.")
		return nil
	}

	color := colorEnabled(cmd)
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPHASE\tPLAYERS\tIDLE\tSTREAM")
	fmt.Fprintln(w, "--\t----\t-----\t-------\t----\t------")
	for _, st := range states {
		stream := "-"
		if st.StreamConnected {
			stream = "live"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d/%d\t%s\t%s\n",
			st.Identity.ID,
			st.Identity.Name,
			styles.Phase(st.Phase, color),
			st.Snapshot.OnlineCount,
			st.Snapshot.MaxPlayers,
			formatIdle(st.IdleHours),
			stream,
		)
	}
	return w.Flush()
}

func formatIdle(hours float64) string {
	switch {
	case hours >= math.MaxFloat64, math.IsInf(hours, 1):
		return "never seen"
	case hours <= 0:
		return "-"
	case hours < 1:
		return fmt.Sprintf("%dm", int(hours*60))
	default:
		return fmt.Sprintf("%.1fh", hours)
	}
}

// colorEnabled reports whether stdout is an interactive terminal.
func colorEnabled(cmd *cobra.Command) bool {
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
