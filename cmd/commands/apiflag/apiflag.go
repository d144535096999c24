// Package apiflag wires the --api flag shared by every command that
// talks to a running daemon.
package apiflag

import (
	"fmt"

	"nathanbeddoewebdev/mcfleet/internal/apiclient"
	"nathanbeddoewebdev/mcfleet/internal/config"

	"github.com/spf13/cobra"
)

const flagName = "api"

// Register adds the persistent --api flag to cmd.
func Register(cmd *cobra.Command) {
	cmd.PersistentFlags().String(flagName, "", "Daemon API base URL (overrides api-url config)")
}

// Resolve fills --api from the config when it was not passed explicitly.
func Resolve(cmd *cobra.Command, args []string) error {
	flag := cmd.Flag(flagName)
	if flag == nil || flag.Changed {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return flag.Value.Set(cfg.API())
}

// Client returns an API client for the resolved --api value.
func Client(cmd *cobra.Command) (*apiclient.Client, error) {
	return apiclient.New(cmd.Flag(flagName).Value.String(), nil)
}
