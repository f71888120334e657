// Package internal wires the application together.
package internal

import (
	"fmt"
	"log/slog"

	"github.com/karloscodes/cartridge"

	"slimmers/internal/config"
	"slimmers/internal/database"
	"slimmers/internal/jobs"
)

// Application wraps cartridge.Application with the migration-aware DB manager.
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager
	Logger    *slog.Logger
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	return NewAppWithConfig(config.GetConfig())
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	scheduler := jobs.NewScheduler(dbManager, logger, jobs.NewRetentionJob(cfg.EventRetentionDays))

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         dbManager,
		ServerConfig:      NewServerConfig(cfg),
		RouteMountFunc:    MountAppRoutes,
		BackgroundWorkers: []cartridge.BackgroundWorker{scheduler},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
		Logger:      logger,
	}, nil
}

// NewServerConfig returns cartridge's server defaults with the proxy header
// applied, so c.IP() reads the client address the reverse proxy forwards.
func NewServerConfig(cfg *config.Config) *cartridge.ServerConfig {
	serverCfg := cartridge.DefaultServerConfig()
	serverCfg.ProxyHeader = cfg.ProxyHeader
	return serverCfg
}
