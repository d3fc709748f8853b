package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"scenecast-backend/internal/router"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background reconciler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.logger(cfg)

			if cfg.Environment == "production" {
				gin.SetMode(gin.ReleaseMode)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(runCtx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			reconcilerDone := make(chan struct{})
			go func() {
				defer close(reconcilerDone)
				a.reconciler.Start(runCtx)
			}()

			srv := &http.Server{
				Addr: ":" + cfg.Port,
				Handler: router.New(router.Deps{
					Config:       cfg,
					Logger:       logger,
					DB:           a.store,
					Orchestrator: a.orch,
					Reconciler:   a.reconciler,
					Hub:          a.hub,
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			serveErr := make(chan error, 1)
			go func() {
				logger.Info().Str("port", cfg.Port).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case err := <-serveErr:
				if err != nil {
					stop()
					<-reconcilerDone
					return err
				}
			case <-runCtx.Done():
			}

			logger.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("graceful shutdown failed")
			}
			<-reconcilerDone
			return nil
		},
	}
}
