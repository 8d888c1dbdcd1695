package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trivora/internal/auth"
	"trivora/internal/backend"
	"trivora/internal/config"
	"trivora/internal/infra/memory"
	"trivora/internal/infra/postgres"
	redisinfra "trivora/internal/infra/redis"
	transport "trivora/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the backend API.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia backend API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Auth.Secret == "" {
		return errors.New("auth secret not configured (auth.secret or TRIVORA_AUTH_SECRET)")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := config.StringOr(portFlag, config.StringOr(cfg.Server.Port, defaultBackendPort))

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var (
		questionStore backend.QuestionStore
		profileStore  backend.ProfileStore
	)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		questionStore = postgres.NewQuestionStore(pool)
		profileStore = postgres.NewProfileStore(pool)
	} else {
		samples, err := backend.SampleQuestions()
		if err != nil {
			return err
		}
		logger.Warn("no postgres configured, using in-memory stores")
		questionStore = memory.NewQuestionStore(samples)
		profileStore = memory.NewProfileStore()
	}

	ttl := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var catalog backend.QuestionCatalog
	if redisClient != nil {
		catalog = redisinfra.NewQuestionCache(redisClient, questionStore, ttl)
	} else {
		catalog = memory.NewQuestionCache(questionStore, ttl)
	}

	var notifier backend.Notifier = backend.NewLogNotifier(logger.Named("notifier"))
	if redisClient != nil {
		notifier = redisinfra.NewNotifier(redisClient, cfg.Notifications.Channel)
	}

	notifications := backend.NewNotificationService(profileStore, notifier, logger)
	api := transport.NewAPI(
		backend.NewQuestionService(questionStore, catalog, logger),
		backend.NewUserService(profileStore, logger),
		backend.NewResultService(profileStore, logger),
		notifications,
		auth.NewVerifier(cfg.Auth.Secret, cfg.Auth.Issuer),
		logger.Named("http"),
	)
	scheduler, err := backend.NewReminderScheduler(notifications, cfg.Notifications.DailyCron, cfg.Notifications.Timezone, logger.Named("reminders"))
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      api.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting trivia api", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return scheduler.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
