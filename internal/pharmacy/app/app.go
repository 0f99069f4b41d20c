// Package app wires the pharmacy services from configuration for both binaries
package app

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/events"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/handler"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/repository"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/service"
	"github.com/pharmapsy/pharmapsy-backend/pkg/config"
	"github.com/pharmapsy/pharmapsy-backend/pkg/database"
	"github.com/pharmapsy/pharmapsy-backend/pkg/logger"
	"github.com/pharmapsy/pharmapsy-backend/pkg/messaging"
	"github.com/pharmapsy/pharmapsy-backend/pkg/metrics"
)

// App holds the connections and services of a running process
type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	Metrics  *metrics.Metrics
	DB       *database.DB        // nil with the memory driver
	RabbitMQ *messaging.RabbitMQ // nil when no broker is configured
	Store    repository.Store
	Events   *events.Publisher
	Clock    service.Clock

	Catalog   *service.CatalogService
	Settings  *service.SettingsService
	Inventory *service.InventoryService
	Orders    *service.OrderService
	Reports   *service.ReportService
	Backups   *service.BackupService
}

// Open connects the store and the broker and builds the services.
// Callers must Close the returned App.
func Open(cfg *config.Config, log *logger.Logger) (*App, error) {
	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", cfg.Scheduler.Timezone, err)
	}

	a := &App{
		Config:  cfg,
		Logger:  log,
		Metrics: metrics.New("pharmapsy"),
		Clock:   func() time.Time { return time.Now().In(loc) },
	}

	var store repository.Store
	if cfg.Database.Driver == config.DriverMemory {
		log.Warn().Msg("using the in-memory store, data is lost on exit")
		store = repository.NewMemoryStore()
	} else {
		a.DB, err = database.New(&cfg.Database, log)
		if err != nil {
			return nil, err
		}
		store = repository.NewPostgresStore(a.DB)
	}
	a.Store = repository.Instrument(store, a.Metrics)

	if cfg.RabbitMQ.URL != "" {
		a.RabbitMQ, err = messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Events, err = events.NewPublisher(a.RabbitMQ, a.Metrics, log)
		if err != nil {
			a.Close()
			return nil, err
		}
	} else {
		log.Info().Msg("no broker configured, events are not published")
	}

	a.Catalog = service.NewCatalogService(a.Store, log)
	a.Settings = service.NewSettingsService(a.Store)
	a.Inventory = service.NewInventoryService(a.Store, a.Events, a.Clock, log)
	a.Orders = service.NewOrderService(a.Store, a.Events, a.Clock, log)
	a.Reports = service.NewReportService(a.Store, a.Metrics, a.Clock, log)
	a.Backups = service.NewBackupService(a.Store, a.Events, cfg.Backup.Directory, a.Clock, log)

	return a, nil
}

// Migrate applies pending schema migrations; the memory store has none
func (a *App) Migrate(ctx context.Context) (int, error) {
	if a.DB == nil {
		return 0, nil
	}
	return a.DB.Migrate(ctx)
}

// Services returns the dependencies of the HTTP routes
func (a *App) Services() handler.Services {
	return handler.Services{
		Catalog:   a.Catalog,
		Settings:  a.Settings,
		Inventory: a.Inventory,
		Orders:    a.Orders,
		Reports:   a.Reports,
		Backups:   a.Backups,
		Clock:     a.Clock,
	}
}

// Health reports the store and broker status
func (a *App) Health(ctx context.Context) map[string]interface{} {
	out := map[string]interface{}{
		"store": a.Store.Health(ctx),
	}
	if a.RabbitMQ != nil {
		out["rabbitmq"] = a.RabbitMQ.Health()
	}
	return out
}

// Close releases the broker and database connections
func (a *App) Close() {
	if a.RabbitMQ != nil {
		if err := a.RabbitMQ.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("failed to close RabbitMQ connection")
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("failed to close database")
		}
	}
}
