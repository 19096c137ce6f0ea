package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/lock"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/logging"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/phone"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/provider"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/queue"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/reconciler"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/repository"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/app/service"
	"github.com/vibast-solutions/ms-go-messaging-webhooks/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	authclient "github.com/vibast-solutions/lib-go-auth/client"
	authservice "github.com/vibast-solutions/lib-go-auth/service"
)

// providerEventsMaxLen caps the provider events stream.
const providerEventsMaxLen = 100000

type dependencies struct {
	cfg            *config.Config
	logger         *logrus.Logger
	db             *sql.DB
	rdb            *redis.Client
	reconciler     *reconciler.Reconciler
	channelService *service.ChannelService
	webhookService *service.WebhookService
}

// loadDependencies connects to MySQL and Redis and builds the services shared
// by the server and the consumers.
func loadDependencies() *dependencies {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	db.SetMaxOpenConns(cfg.MySQLMaxOpen)
	db.SetMaxIdleConns(cfg.MySQLMaxIdle)
	db.SetConnMaxLifetime(cfg.MySQLMaxLife)

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	locker, err := buildLocker(cfg, db, rdb)
	if err != nil {
		log.Fatalf("Failed to build locker: %v", err)
	}
	disconnector, err := buildDisconnector(cfg)
	if err != nil {
		log.Fatalf("Failed to build provider client: %v", err)
	}

	rec := reconciler.NewReconciler(repository.NewMessageRepository(db), locker, logger)
	channelService := service.NewChannelService(
		repository.NewChannelRepository(db),
		disconnector,
		phone.NewMatcher(cfg.PhoneDefaultRegion),
		logger,
	)
	events := queue.NewEventPublisher(rdb, providerEventsMaxLen)
	webhookService := service.NewWebhookService(channelService, rec, events, logger)

	return &dependencies{
		cfg:            cfg,
		logger:         logger,
		db:             db,
		rdb:            rdb,
		reconciler:     rec,
		channelService: channelService,
		webhookService: webhookService,
	}
}

func (d *dependencies) Close() {
	_ = d.rdb.Close()
	_ = d.db.Close()
}

// buildInternalAuth connects to the auth service that validates the X-API-Key
// of internal callers. APP_API_KEY identifies this service to it.
func buildInternalAuth(cfg *config.Config) (*authservice.InternalAuthService, *authclient.GRPCClient, error) {
	if strings.TrimSpace(cfg.AuthServiceAddr) == "" {
		return nil, nil, fmt.Errorf("AUTH_SERVICE_GRPC_ADDR is required")
	}
	client, err := authclient.NewGRPCClientFromAddr(context.Background(), cfg.AuthServiceAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("auth client: %w", err)
	}
	return authservice.NewInternalAuthService(client), client, nil
}

func buildLocker(cfg *config.Config, db *sql.DB, rdb redis.UniversalClient) (lock.Locker, error) {
	switch strings.ToLower(cfg.LockBackend) {
	case "", "redis":
		return lock.NewRedisLocker(rdb), nil
	case "mysql":
		return lock.NewMySQLLocker(db), nil
	case "local":
		return lock.NewLocalLocker(), nil
	default:
		return nil, fmt.Errorf("unsupported LOCK_BACKEND: %s", cfg.LockBackend)
	}
}

func buildDisconnector(cfg *config.Config) (provider.Disconnector, error) {
	switch strings.ToLower(cfg.DisconnectProvider) {
	case "", "zapi":
		return provider.NewZAPIProvider(cfg.ZAPIBaseURL, cfg.ZAPIClientToken), nil
	case "noop":
		return provider.NewNoopProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported DISCONNECT_PROVIDER: %s", cfg.DisconnectProvider)
	}
}
