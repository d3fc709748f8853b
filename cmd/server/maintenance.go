package main

import (
	"github.com/spf13/cobra"

	"scenecast-backend/internal/database"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.logger(cfg)

			store, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}
			logger.Info().Msg("migrations completed successfully")
			return nil
		},
	}
}

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Reconcile every in-flight video task once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.logger(cfg)

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.reconciler.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info().
				Int("checked", stats.Checked).
				Int("completed", stats.Completed).
				Int("failed", stats.Failed).
				Int("retrying", stats.Retrying).
				Int("errors", stats.Errors).
				Msg("sweep finished")
			return nil
		},
	}
}
