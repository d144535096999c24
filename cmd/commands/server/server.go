/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package server

import (
	"fmt"
	"strconv"

	"nathanbeddoewebdev/mcfleet/cmd/commands/apiflag"

	"github.com/spf13/cobra"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Inspect and control game servers",
		Long: `List, inspect, start and stop game servers through the mcfleet daemon.

Starting a server also powers on the host if it is down. The host is
powered off again once every server has stopped.`,
		PersistentPreRunE: apiflag.Resolve,
	}

	cmd.AddCommand(ListCommand())
	cmd.AddCommand(ShowCommand())
	cmd.AddCommand(StartCommand())
	cmd.AddCommand(StopCommand())
	cmd.AddCommand(ExecCommand())

	apiflag.Register(cmd)

	return cmd
}

func parseID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid server id %q", raw)
	}
	return id, nil
}
