// Package app assembles the application from configuration: providers,
// router, caches, checkpoint store, tools, usage accounting and the decision
// pipeline. Entry points (CLI, future HTTP surface) depend on App and never
// wire components themselves.
package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fiscogo/fisco/internal/billing"
	"github.com/fiscogo/fisco/internal/config"
	"github.com/fiscogo/fisco/internal/log"
	"github.com/fiscogo/fisco/internal/pipeline"
	"github.com/fiscogo/fisco/internal/provider"
)

// App is the application container. Built once by Setup; call Close to
// release every resource it owns.
type App struct {
	Config    *config.Config
	Logger    log.Logger
	Pipeline  *pipeline.Pipeline
	Providers *provider.Registry
	Billing   *billing.LogRecorder

	pool  *pgxpool.Pool
	redis *redis.Client
}

// Close shuts down owned resources in reverse dependency order. The usage
// recorder drains first so buffered events still reach the log.
func (a *App) Close() error {
	slog.Debug("shutting down application")

	if a.Billing != nil {
		a.Billing.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.Warn("closing redis client", "error", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return nil
}
