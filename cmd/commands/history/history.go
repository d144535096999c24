package history

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"nathanbeddoewebdev/mcfleet/internal/config"
	"nathanbeddoewebdev/mcfleet/internal/database"
	"nathanbeddoewebdev/mcfleet/internal/history"

	"github.com/spf13/cobra"
)

// NewCommand returns the "history" command. It lists recorded transitions
// and carries the prune subcommand.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded server and host transitions",
		Long: `List the phase and power state transitions recorded by the daemon.

History is read directly from the local SQLite file (database-path, or
~/.config/mcfleet/mcfleet.db by default), so the daemon does not need to
be running.

Examples:
  mcfleet history
  mcfleet history --limit 50
  mcfleet history --subject survival
  mcfleet history --subject host -o json`,
		Args:         cobra.NoArgs,
		RunE:         runList,
		SilenceUsage: true,
	}

	cmd.Flags().Int("limit", 25, "Number of entries to display")
	cmd.Flags().String("subject", "", "Filter by server id, server name, or \"host\"")
	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")

	cmd.AddCommand(PruneCommand())

	return cmd
}

func openRepository() (*history.SQLiteRepository, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	path, err := database.Resolve(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	return history.OpenAt(path)
}

func runList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return fmt.Errorf("limit must be greater than 0")
	}

	subject, _ := cmd.Flags().GetString("subject")
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = "table"
	}

	repo, err := openRepository()
	if err != nil {
		return err
	}
	defer repo.Close()

	var entries []history.Entry
	if subject != "" {
		entries, err = repo.ListBySubject(subject, limit)
	} else {
		entries, err = repo.List(limit)
	}
	if err != nil {
		return err
	}

	if output == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(entries)
	}
	if output != "table" {
		return fmt.Errorf("unsupported output format %q", output)
	}

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No history entries found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tKIND\tSUBJECT\tTRANSITION\tREASON")
	fmt.Fprintln(w, "----\t----\t-------\t----------\t------")
	for _, entry := range entries {
		reason := entry.Reason
		if reason == "" {
			reason = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s -> %s\t%s\n",
			entry.Timestamp.Local().Format("2006-01-02 15:04:05"),
			entry.Kind,
			formatSubject(entry),
			entry.From,
			entry.To,
			reason,
		)
	}
	w.Flush()
	return nil
}

func formatSubject(entry history.Entry) string {
	if entry.Name == "" || entry.Name == entry.Subject {
		return entry.Subject
	}
	return entry.Subject + " (" + entry.Name + ")"
}
