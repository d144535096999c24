package server

import (
	"context"
	"fmt"
	"text/tabwriter"

	"nathanbeddoewebdev/mcfleet/cmd/commands/apiflag"
	"nathanbeddoewebdev/mcfleet/internal/domain"
	"nathanbeddoewebdev/mcfleet/internal/swrcache"

	"github.com/spf13/cobra"
)

// listCache holds the server listing between invocations. Tests replace it.
var listCache = func() *swrcache.Cache {
	return swrcache.New(swrcache.DefaultDir(), 0, 0)
}

func ListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all servers",
		Long: `List every server managed by the monitoring provider.

The listing is cached locally for a short while. Pass --refresh to
always ask the daemon.`,
		Run: func(cmd *cobra.Command, args []string) {
			client, err := apiflag.Client(cmd)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return
			}

			cache := listCache()
			key := "servers-" + cmd.Flag("api").Value.String()
			if refresh, _ := cmd.Flags().GetBool("refresh"); refresh {
				_ = cache.Invalidate(key)
			}

			servers, freshness, err := swrcache.GetOrFetch(context.Background(), cache, key,
				func(ctx context.Context) ([]domain.ServerIdentity, error) {
					return client.ListServers(ctx)
				})
			defer cache.Wait()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error listing servers: %v\n", err)
				return
			}

			output, _ := cmd.Flags().GetString("output")
			if output == "json" {
				printJSON(cmd, servers)
				return
			}

			if freshness != swrcache.Fetched {
				fmt.Fprintln(cmd.ErrOrStderr(), "(cached listing; pass --refresh to re-fetch)")
			}

			if len(servers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No servers found.")
				return
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPORT\tUUID")
			fmt.Fprintln(w, "--\t----\t----\t----")

			for _, server := range servers {
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\n",
					server.ID,
					server.Name,
					server.Port,
					server.UUID,
				)
			}

			w.Flush()
		},
	}

	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")
	cmd.Flags().Bool("refresh", false, "Bypass the local listing cache")

	return cmd
}
