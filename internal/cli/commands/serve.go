package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cattools/cattools/internal/tracing"
	"github.com/cattools/cattools/internal/web/api"
	"github.com/cattools/cattools/internal/web/server"
)

// NewServeCommand creates the serve command
func NewServeCommand(opts *globalOptions) *cobra.Command {
	var (
		port           int
		host           string
		requestTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the category API over HTTP",
		Long: `Start the HTTP API.

Each request is one render with its own expensive-call budget. The budget
lives in memory or, with budget.backend=redis, in Redis so that several
instances share it.

Endpoints:
  GET  /api/categories/{category}/pages
  GET  /api/categories/{category}/members/{ns}/{title...}
  POST /api/membership
  POST /api/invoke
  GET  /healthz
  GET  /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			a, err := openApp(ctx, opts)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			if cmd.Flags().Changed("host") {
				a.cfg.Server.Host = host
			}

			shutdownTracing, err := tracing.Setup(ctx, a.cfg.TracingSetup(Version))
			if err != nil {
				a.Close()
				return err
			}

			counters, closeCounters, err := a.counters(ctx)
			if err != nil {
				shutdownTracing(ctx)
				a.Close()
				return err
			}

			handler := api.NewHandler(a.toolbox, a.engine(counters), counters, a.db, a.logger)

			srvCfg := server.DefaultConfig(handler.Routes(api.WithRequestTimeout(requestTimeout)))
			srvCfg.Address = a.cfg.Server.Addr()
			srvCfg.ReadTimeout = a.cfg.Server.ReadTimeout
			srvCfg.WriteTimeout = a.cfg.Server.WriteTimeout

			srv, err := server.New(srvCfg)
			if err != nil {
				closeCounters()
				shutdownTracing(ctx)
				a.Close()
				return err
			}

			gs := server.NewGracefulShutdown(srv, a.cfg.Server.ShutdownTimeout, a.logger)
			gs.RegisterHook(func(context.Context) error { return closeCounters() })
			gs.RegisterHook(shutdownTracing)
			gs.RegisterHook(func(context.Context) error {
				a.Close()
				return nil
			})

			a.logger.Info("starting cattools",
				zap.String("version", Version),
				zap.String("driver", a.cfg.Database.Driver),
				zap.String("budget", a.cfg.Budget.Backend),
				zap.Int("budget_limit", a.cfg.Budget.Limit),
			)
			return gs.Run(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "port to listen on (overrides server.port)")
	cmd.Flags().StringVar(&host, "host", "localhost", "host to bind (overrides server.host)")
	cmd.Flags().DurationVar(&requestTimeout, "request-timeout", 30*time.Second, "deadline for each request, 0 disables it")

	return cmd
}
