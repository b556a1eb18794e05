package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dotcommander/mcpagent/internal/catalog"
	"github.com/dotcommander/mcpagent/internal/errs"
	"github.com/dotcommander/mcpagent/internal/metrics"
	"github.com/dotcommander/mcpagent/internal/server"
)

func newServeCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Discover tools and serve the websocket chat endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return rt.runServe(ctx)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&rt.flags.listen, "listen", "l", "", flagUsage("listen"))
	flags.IntVar(&rt.flags.maxIterations, "max-iterations", 0, flagUsage("max-iterations"))
	flags.Var(newDurationFlag(0, &rt.flags.chunkDelay), "chunk-delay", flagUsage("chunk-delay"))
	return cmd
}

func (rt *runtime) runServe(ctx context.Context) error {
	log := rt.logger()
	m := metrics.New()

	cat, err := rt.discover(ctx, log, m)
	switch {
	case errors.Is(err, catalog.ErrNoServers):
		log.Warn().Msg("no MCP servers configured, serving an empty catalog")
		cat = catalog.Empty()
	case err != nil:
		return err
	}
	defer func() {
		if err := cat.Close(); err != nil {
			log.Warn().Err(err).Msg("closing MCP connections")
		}
	}()

	tools, servers := cat.Summary()
	log.Info().Int("tools", tools).Int("servers", servers).Msg("tool catalog ready")

	loop, err := rt.newLoop(ctx, cat, log, m)
	if err != nil {
		return err
	}
	srv, err := server.New(server.Config{
		Listen:         rt.cfg.Server.Listen,
		AllowedOrigins: rt.cfg.Server.AllowedOrigins,
		Runner:         loop,
		Catalog:        cat,
		Metrics:        m,
		Logger:         log,
	})
	if err != nil {
		return err
	}
	if err := srv.ListenAndServe(ctx); err != nil {
		return errs.Wrapf(err, "Could not serve on %s.", rt.cfg.Server.Listen)
	}
	return nil
}
