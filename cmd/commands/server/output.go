package server

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"nathanbeddoewebdev/mcfleet/internal/domain"

	"github.com/spf13/cobra"
)

// printJSON encodes v as indented JSON to the command's stdout.
func printJSON(cmd *cobra.Command, v any) {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// printSnapshot prints a vertical key-value table of a server snapshot.
func printSnapshot(cmd *cobra.Command, snap *domain.ServerSnapshot) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "  ID:\t%d\n", snap.Identity.ID)
	fmt.Fprintf(w, "  Name:\t%s\n", snap.Identity.Name)
	fmt.Fprintf(w, "  Port:\t%d\n", snap.Identity.Port)

	status := "stopped"
	if snap.Running {
		status = "running"
	}
	fmt.Fprintf(w, "  Status:\t%s\n", status)
	fmt.Fprintf(w, "  Players:\t%d/%d\n", snap.OnlineCount, snap.MaxPlayers)

	if snap.Description != "" {
		fmt.Fprintf(w, "  MOTD:\t%s\n", snap.Description)
	}
	if snap.Started != nil {
		fmt.Fprintf(w, "  Started:\t%s\n", snap.Started.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	if !snap.FetchedAt.IsZero() {
		fmt.Fprintf(w, "  Fetched:\t%s\n", snap.FetchedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	}

	w.Flush()
}
