package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trivora/internal/app"
	"trivora/internal/config"
)

// withAgent loads config, opens the local store and hands both to fn.
func withAgent(ctx context.Context, configPath string, fn func(ctx context.Context, deps *agentDeps, cfg config.Config, logger *zap.Logger) error) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	deps, err := openAgent(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.store.Close()
	return fn(ctx, deps, cfg, logger)
}

// NewSyncCmd runs a single reconciliation pass.
func NewSyncCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Upload unsynced quiz results once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd.Context(), *configPath, func(ctx context.Context, deps *agentDeps, cfg config.Config, logger *zap.Logger) error {
				reconciler := app.NewReconciler(deps.store, deps.remote, nil, 0, logger.Named("sync"))
				report, err := reconciler.SyncOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "attempted=%d synced=%d failed=%d pending=%d\n",
					report.Attempted, report.Synced, report.Failed, report.Pending)
				return nil
			})
		},
	}
}

// NewDownloadCmd caches a category (or the whole catalog) for offline play.
func NewDownloadCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "download [category]",
		Short: "Download questions for offline play",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category := ""
			if len(args) == 1 {
				category = args[0]
			}
			return withAgent(cmd.Context(), *configPath, func(ctx context.Context, deps *agentDeps, cfg config.Config, logger *zap.Logger) error {
				n, err := app.NewDownloader(deps.remote, deps.store, logger).Download(ctx, category)
				if err != nil {
					return err
				}
				available, err := deps.store.AvailableCount(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "downloaded=%d available=%d\n", n, available)
				return nil
			})
		},
	}
}

// NewCleanupCmd drops cached questions older than the stale window.
func NewCleanupCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete cached questions older than 30 days",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd.Context(), *configPath, func(ctx context.Context, deps *agentDeps, cfg config.Config, logger *zap.Logger) error {
				removed, err := deps.store.CleanupStale(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed=%d\n", removed)
				return nil
			})
		},
	}
}

// NewWipeCmd clears all local quiz data, keeping the install identity.
func NewWipeCmd(configPath *string) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete all cached questions, attempts and results",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to wipe local data without --yes")
			}
			return withAgent(cmd.Context(), *configPath, func(ctx context.Context, deps *agentDeps, cfg config.Config, logger *zap.Logger) error {
				if err := deps.store.Wipe(ctx); err != nil {
					return err
				}
				logger.Info("local data wiped")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion of local data")
	return cmd
}
