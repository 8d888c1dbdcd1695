package cli

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"trivora/internal/auth"
	"trivora/internal/config"
	"trivora/internal/domain"
	"trivora/internal/infra/sqlite"
	"trivora/internal/logging"
	"trivora/internal/remote"
)

const (
	defaultBackendPort = "3000"
	defaultAgentListen = "127.0.0.1:8090"
	defaultAgentDB     = "trivora.db"
)

func loadConfig(path string) (config.Config, *zap.Logger, error) {
	cfg, err := config.LoadOptional(path)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// agentDeps is the device-side wiring shared by the agent and the local commands.
type agentDeps struct {
	store    *sqlite.Store
	remote   *remote.Client
	identity domain.Identity
}

func openAgent(ctx context.Context, cfg config.Config, logger *zap.Logger) (*agentDeps, error) {
	store, err := sqlite.Open(ctx, config.StringOr(cfg.Agent.DBPath, defaultAgentDB), logger)
	if err != nil {
		return nil, err
	}
	identity, err := store.Identity(ctx, cfg.Agent.UserID)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	token := cfg.Agent.Token
	if token == "" && cfg.Auth.Secret != "" {
		// dev setups share the backend secret and mint their own token
		token, err = auth.NewIssuer(cfg.Auth.Secret, cfg.Auth.Issuer, 0).Issue(domain.Caller{UserID: identity.UserID})
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	client := remote.New(
		config.StringOr(cfg.Agent.APIURL, "http://localhost:"+defaultBackendPort),
		token,
		config.TTLDuration(cfg.Agent.RequestTimeout, 10*time.Second),
		remote.WithLogger(logger.Named("remote")),
	)
	return &agentDeps{store: store, remote: client, identity: identity}, nil
}
