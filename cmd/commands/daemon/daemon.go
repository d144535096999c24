package daemon

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"nathanbeddoewebdev/mcfleet/internal/api"
	"nathanbeddoewebdev/mcfleet/internal/auth"
	"nathanbeddoewebdev/mcfleet/internal/config"
	"nathanbeddoewebdev/mcfleet/internal/logger"
	"nathanbeddoewebdev/mcfleet/internal/orchestrator"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewCommand returns the "daemon" command, which runs the orchestrator and
// serves the HTTP API until interrupted.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the fleet orchestrator and HTTP API",
		Long: `Run the fleet orchestrator in the foreground.

The daemon tracks every server on the monitoring provider, starts the
host on demand, stops idle servers, and powers the host off once the
whole fleet has stopped. It serves the HTTP API used by the other
commands until it receives SIGINT or SIGTERM.

Settings come from the config file, a .env file in the working directory
and MCFLEET_* environment variables, in increasing order of precedence.`,
		Args:         cobra.NoArgs,
		RunE:         runDaemon,
		SilenceUsage: true,
	}

	cmd.Flags().String("listen", "", "Listen address (overrides listen-addr config)")

	return cmd
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadRuntime()
	if err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.ListenAddr = listen
	}

	log := logger.NewWithOutput(cmd.ErrOrStderr(), cfg.Level(), cfg.Format())

	svc, err := orchestrator.Build(cfg, auth.DefaultStore(), log)
	if err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	defer svc.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	gin.SetMode(gin.ReleaseMode)
	router := api.Setup(api.NewHandler(svc), log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(ctx) })
	g.Go(func() error { return api.Serve(ctx, cfg.Listen(), router, log) })

	err = g.Wait()
	log.Info("daemon stopped")
	return err
}
