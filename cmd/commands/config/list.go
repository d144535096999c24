package config

import (
	"fmt"
	"text/tabwriter"

	"nathanbeddoewebdev/mcfleet/internal/config"

	"github.com/spf13/cobra"
)

// ListCommand returns the "config list" command.
func ListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "list",
		Short:        "List every configuration value",
		Long:         "List every configuration key with its stored value, or its default when unset.",
		Args:         cobra.NoArgs,
		RunE:         runList,
		SilenceUsage: true,
	}

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tVALUE\tENV")
	for _, spec := range config.Keys {
		value := spec.Get(cfg)
		switch {
		case value != "":
		case spec.Default != "":
			value = spec.Default + " (default)"
		default:
			value = "(not set)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", spec.Name, value, spec.EnvVar())
	}
	return w.Flush()
}
