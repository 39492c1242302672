// Package app wires the service together and owns startup and shutdown
// ordering.
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Shaktiprasadram22/Elearning-Platform/internal/api"
	"github.com/Shaktiprasadram22/Elearning-Platform/internal/catalog"
	"github.com/Shaktiprasadram22/Elearning-Platform/internal/config"
	"github.com/Shaktiprasadram22/Elearning-Platform/internal/notify"
	"github.com/Shaktiprasadram22/Elearning-Platform/internal/relay"
	"github.com/Shaktiprasadram22/Elearning-Platform/internal/session"
	"github.com/Shaktiprasadram22/Elearning-Platform/internal/sessionlog"
	"github.com/Shaktiprasadram22/Elearning-Platform/internal/store"
)

// Application holds the assembled components.
type Application struct {
	cfg      *config.Config
	log      *logrus.Logger
	server   *api.Server
	registry *relay.Registry
	logStore *sessionlog.Store
}

// New builds the application bottom-up: databases, stores, services,
// transport. It fails fast on any component that cannot initialize.
func New(cfg *config.Config, logger *logrus.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := openSessionDB(cfg.SessionDB)
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}

	sessionStore := store.New(db)
	if err := sessionStore.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate session store: %w", err)
	}

	cat := catalog.NewGormCatalog(db)
	if err := cat.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate catalog: %w", err)
	}

	logStore, err := sessionlog.OpenStore(cfg.LogStore.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("open session log store: %w", err)
	}

	notifier := notify.NewNotifier(logger)
	manager := session.NewManager(sessionStore, cat, logStore, notifier, logger)
	logService := sessionlog.NewService(logStore, cat, logger)

	registry := relay.NewRegistry(logger)
	roomHandler := relay.NewHandler(registry, manager, cat, cfg.WebSocket, logger)
	notifyHandler := notify.NewHandler(notifier, cfg.WebSocket, logger)

	server := api.NewServer(cfg.HTTP, cfg.Env, manager, logService, cat, roomHandler, notifyHandler, logger)

	return &Application{
		cfg:      cfg,
		log:      logger,
		server:   server,
		registry: registry,
		logStore: logStore,
	}, nil
}

// Start runs the HTTP server. Blocks until the listener stops.
func (a *Application) Start() error {
	return a.server.Start()
}

// Stop shuts down in reverse dependency order: stop accepting requests,
// drop live websockets, then flush and close the log store.
func (a *Application) Stop(ctx context.Context) error {
	if err := a.server.Shutdown(ctx); err != nil {
		a.log.WithError(err).Warn("http shutdown")
	}
	a.registry.CloseAll()
	if err := a.logStore.Shutdown(); err != nil {
		return fmt.Errorf("close session log store: %w", err)
	}
	return nil
}

func openSessionDB(cfg config.SessionDBConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	switch cfg.Driver {
	case "postgres":
		return gorm.Open(postgres.Open(cfg.DSN), gormCfg)
	default:
		return gorm.Open(sqlite.Open(cfg.DSN), gormCfg)
	}
}
