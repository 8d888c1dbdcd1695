package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trivora/internal/app"
	"trivora/internal/config"
	"trivora/internal/infra/memory"
	transport "trivora/internal/transport/http"
)

// NewAgentCmd runs the on-device agent: connectivity watch, periodic sync and
// the local session websocket.
func NewAgentCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "agent",
		Short: "Run the offline-first quiz agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context(), *configPath, *port)
		},
	}
}

func runAgent(ctx context.Context, configPath, portFlag string) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := openAgent(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.store.Close()

	if err := deps.store.InitSyncStatus(ctx); err != nil {
		return err
	}
	if removed, err := deps.store.CleanupStale(ctx); err != nil {
		logger.Warn("stale question cleanup failed", zap.Error(err))
	} else if removed > 0 {
		logger.Info("removed stale cached questions", zap.Int64("count", removed))
	}

	network := app.NewConnectivity(deps.remote,
		config.TTLDuration(cfg.Agent.ProbeInterval, time.Minute), logger.Named("connectivity"))
	reconciler := app.NewReconciler(deps.store, deps.remote, network,
		config.TTLDuration(cfg.Agent.SyncInterval, app.DefaultSyncInterval), logger.Named("sync"))

	sessions := memory.NewSessionStore()
	defaultDifficulty := cfg.Agent.DefaultDifficulty
	factory := func(sc app.SessionConfig) *app.Session {
		if sc.Difficulty == "" {
			sc.Difficulty = defaultDifficulty
		}
		sc.UserID = deps.identity.UserID
		sc.DeviceID = deps.identity.DeviceID
		return app.NewSession(sc, app.SessionDeps{
			Remote:   deps.remote,
			Cache:    deps.store,
			Results:  deps.store,
			Uploader: reconciler,
			Network:  network,
			Logger:   logger.Named("session"),
		})
	}

	listen := config.StringOr(cfg.Agent.Listen, defaultAgentListen)
	if portFlag != "" {
		listen = "127.0.0.1:" + portFlag
	}
	ws := transport.NewWSHandler(factory, sessions, logger.Named("ws"))
	server := &http.Server{
		Addr:        listen,
		Handler:     transport.NewAgentRouter(ws, deps.store, network, sessions, logger.Named("http")),
		ReadTimeout: 15 * time.Second,
	}

	logger.Info("agent identity",
		zap.String("device", deps.identity.DeviceID),
		zap.String("user", deps.identity.UserID),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return network.Watch(gctx) })
	g.Go(func() error { return reconciler.Run(gctx) })
	g.Go(func() error {
		logger.Info("agent listening", zap.String("addr", listen))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
