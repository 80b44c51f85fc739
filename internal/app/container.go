package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/LukaszDygon/sbcw-kiro-sub000/domain"
	"github.com/LukaszDygon/sbcw-kiro-sub000/internal/config"
	"github.com/LukaszDygon/sbcw-kiro-sub000/internal/events"
	"github.com/LukaszDygon/sbcw-kiro-sub000/internal/http/handlers"
	"github.com/LukaszDygon/sbcw-kiro-sub000/internal/http/middleware"
	"github.com/LukaszDygon/sbcw-kiro-sub000/internal/infrastructure/backend"
	"github.com/LukaszDygon/sbcw-kiro-sub000/internal/infrastructure/repositories"
	"github.com/LukaszDygon/sbcw-kiro-sub000/internal/infrastructure/storage"
	"github.com/LukaszDygon/sbcw-kiro-sub000/internal/obs"
	"github.com/LukaszDygon/sbcw-kiro-sub000/internal/services"
)

// Container wires the whole dependency graph from configuration.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Store   domain.KeyValueStore
	Creds   domain.CredentialStore
	Backend domain.BackendClient
	Bus     domain.EventBus
	Metrics *obs.Metrics
	Auth    domain.AuthService
	Monitor *services.IdleMonitor
	Guard   *middleware.Guard
	Handler *handlers.AuthHandler

	redisClient *redis.Client
}

// NewContainer builds every component. The credential store runs on Redis
// when an address is configured, otherwise in memory.
func NewContainer(cfg *config.Config) (*Container, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	var store domain.KeyValueStore
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = storage.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("redis connect: %w", err)
		}
		store = storage.NewRedisStore(redisClient, cfg.RedisPrefix)
		logger.Info("credential store on redis", "addr", cfg.RedisAddr)
	} else {
		store = storage.NewMemoryStore()
		logger.Info("credential store in memory")
	}

	client, err := backend.NewClient(cfg.BackendBaseURL, backend.WithTimeout(cfg.BackendTimeout))
	if err != nil {
		return nil, fmt.Errorf("backend client: %w", err)
	}

	creds := repositories.NewCredentialRepository(store)
	bus := events.NewBus(logger)
	metrics := obs.NewMetrics()

	auth := services.NewAuthService(client, creds, bus, services.AuthConfig{
		RefreshMargin: cfg.RefreshMargin,
		RefreshFloor:  cfg.RefreshFloor,
		PollInterval:  cfg.PollInterval,
	}, logger, services.WithMetrics(metrics))

	monitor := services.NewIdleMonitor(auth, services.IdleConfig{
		CheckInterval:    cfg.IdleCheckInterval,
		AutoLogoutAfter:  cfg.AutoLogoutAfter,
		WarningThreshold: cfg.WarningThreshold,
	}, logger, services.WithIdleMetrics(metrics))

	guard := middleware.NewGuard(auth, monitor, bus)
	handler := handlers.NewAuthHandler(auth, monitor, logger)

	return &Container{
		Config:      cfg,
		Logger:      logger,
		Store:       store,
		Creds:       creds,
		Backend:     client,
		Bus:         bus,
		Metrics:     metrics,
		Auth:        auth,
		Monitor:     monitor,
		Guard:       guard,
		Handler:     handler,
		redisClient: redisClient,
	}, nil
}

// Close releases external resources.
func (c *Container) Close() error {
	if c.redisClient != nil {
		return c.redisClient.Close()
	}
	return nil
}
