package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/manthysbr/aulesql/internal/core/domain"
	"github.com/manthysbr/aulesql/internal/core/services"
	"github.com/manthysbr/aulesql/pkg/kernel"
)

func newServeCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")

			ctx, cancel := signalContext()
			defer cancel()

			logger := newLogger(flags.verbose)
			logger.Info("starting aule-sql server")

			a, err := newApp(ctx, logger, flags)
			if err != nil {
				return err
			}
			defer a.close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			apiServer, err := kernel.NewServer(
				logger,
				a.agent,
				services.NewSchemaExplorer(logger, a.store),
				a.tracer,
				a.history,
				a.bus,
				a.settings,
			)
			if err != nil {
				return fmt.Errorf("failed to build api server: %w", err)
			}

			// model and agent settings apply to the next run; the data
			// store stays open until restart
			a.settings.OnChange(func(cfg *domain.AppConfig) {
				if cfg.Store != a.cfg.Store {
					logger.Warn("store settings changed, restart to apply")
				}
				cfg.Store = a.cfg.Store
				agent, err := a.buildAgent(cfg)
				if err != nil {
					logger.Error("failed to apply settings", "error", err)
					return
				}
				apiServer.SwapAgent(agent)
			})

			c := cors.New(cors.Options{
				AllowedOrigins:   a.cfg.Server.AllowedOrigins,
				AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
				AllowedHeaders:   []string{"*"},
				AllowCredentials: true,
			})

			httpServer := &http.Server{
				Addr:              addr,
				Handler:           c.Handler(apiServer.Handler()),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gCtx := errgroup.WithContext(ctx)

			g.Go(func() error {
				logger.Info("starting api server", "addr", addr, "driver", a.store.Driver())
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return fmt.Errorf("api server failed: %w", err)
				}
				return nil
			})

			g.Go(func() error {
				<-gCtx.Done()
				logger.Info("shutting down api server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			})

			return g.Wait()
		},
	}

	cmd.Flags().String("addr", "", "listen address (default from settings, :8080)")
	return cmd
}
