package cmd

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/wonny/findata/internal/infra/cache"
	"github.com/wonny/findata/internal/infra/database/postgres"
	stockrepo "github.com/wonny/findata/internal/infra/database/postgres/stock"
	"github.com/wonny/findata/internal/pkg/logger"
	"github.com/wonny/findata/internal/service/financial"
)

// app holds the process-wide dependencies shared by the commands
type app struct {
	db    *postgres.Manager
	cache *cache.StatsCache // nil when REDIS_ADDR is empty
	svc   *financial.Service
}

func newApp(ctx context.Context) (*app, error) {
	db := postgres.NewManager(cfg.Database,
		postgres.WithQueryLogger(logger.NewQueryLogger(loggerConfig(cfg)), cfg.Logging.Level))

	stats, err := cache.Connect(ctx, cfg.Redis)
	if err != nil {
		// 캐시 없이도 동작
		log.Warn().Err(err).Msg("Stats cache disabled")
		stats = nil
	}

	var statsCache financial.StatsCache
	if stats != nil {
		statsCache = stats
	}

	return &app{
		db:    db,
		cache: stats,
		svc:   financial.NewService(stockrepo.NewRepository(db), statsCache, cfg.Ingest.BatchSize),
	}, nil
}

func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
	a.db.Close()
}
