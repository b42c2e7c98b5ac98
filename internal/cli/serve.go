package cli

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/Liggi/ai-learning-assistant-sub003/internal/server"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/buildinfo"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/session"
)

// serveCommand creates the serve command, which exposes learning maps over
// HTTP for browser renderers.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve learning maps over HTTP",
		Long: `Serve learning maps over a JSON API with server-sent updates.

Maps are opened on first request and stay in memory until shutdown; every
change is saved to the configured store. Prometheus metrics are served at
/metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				c.cfg.Server.Addr = addr
			}
			return c.runServe(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}

func (c *CLI) runServe(ctx context.Context) error {
	logger := loggerFromContext(ctx)

	res, err := c.cfg.Open(ctx, logger)
	if err != nil {
		return err
	}
	defer res.Close()

	sessions := session.NewManager(res.Options)
	defer sessions.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := server.New(sessions, server.Options{
		CORSOrigins: c.cfg.Server.CORSOrigins,
		Registry:    reg,
		Logger:      logger,
	})
	logger.Info("starting server",
		"version", buildinfo.Get().Short(),
		"store", c.cfg.Store.Backend,
		"generator", c.cfg.Generator.Backend,
		"layout_cache", c.cfg.Layout.Cache,
	)
	return srv.ListenAndServe(ctx, c.cfg.Server.Addr)
}
