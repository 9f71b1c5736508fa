package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/ewindex/internal/external/fmp"
	"github.com/wonny/ewindex/internal/external/stockanalysis"
	"github.com/wonny/ewindex/internal/index"
	"github.com/wonny/ewindex/internal/ingest"
	"github.com/wonny/ewindex/internal/service"
	"github.com/wonny/ewindex/internal/store"
	"github.com/wonny/ewindex/pkg/config"
	"github.com/wonny/ewindex/pkg/database"
	"github.com/wonny/ewindex/pkg/httputil"
	"github.com/wonny/ewindex/pkg/logger"
	"github.com/wonny/ewindex/pkg/redis"
)

// app bundles the wired components every command starts from.
type app struct {
	cfg     *config.Config
	logger  *logger.Logger
	db      *database.DB
	cache   *redis.Client
	service *service.Service
}

// bootstrap loads config and wires the database, cache, repositories, and
// service. Callers must defer app.close().
func bootstrap() (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to database and ensure schema
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.EnsureSchema(ctx, db.Pool); err != nil {
		db.Close()
		return nil, err
	}

	// 4. Connect to Redis (optional; disabled stub when off)
	cache, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without cache")
		cache = mustDisabledRedis()
	}

	// 5. Wire repositories and service
	settings := index.Settings{
		BaseDate:       cfg.Index.BaseDate,
		BaseValue:      cfg.Index.BaseValue,
		Size:           cfg.Index.Size,
		AllowShortfall: cfg.Index.AllowShortfall,
	}
	if err := settings.Validate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("index settings: %w", err)
	}

	markets := store.NewMarketRepository(db.Pool)
	states := store.NewIndexRepository(db.Pool)
	svc := service.New(settings, markets, states, redis.NewCache(cache, "ewi"), log)

	return &app{
		cfg:     cfg,
		logger:  log,
		db:      db,
		cache:   cache,
		service: svc,
	}, nil
}

// newCollector wires the ingestion pipeline on top of an app.
func (a *app) newCollector() *ingest.Collector {
	httpClient := httputil.New(a.logger).
		WithRateLimit(a.cfg.FMP.RequestsPerMinute, a.cfg.FMP.ChunkSize)
	fmpClient := fmp.NewClient(httpClient, a.cfg.FMP, a.logger)
	saClient := stockanalysis.NewClient(httputil.New(a.logger), a.logger)
	markets := store.NewMarketRepository(a.db.Pool)

	return ingest.NewCollector(fmpClient, saClient, markets, a.cfg.Index.Universe, a.logger)
}

func (a *app) close() {
	a.cache.Close()
	a.db.Close()
}

// mustDisabledRedis builds the no-op cache client; it cannot fail.
func mustDisabledRedis() *redis.Client {
	client, _ := redis.New(&config.Config{})
	return client
}

// parseDateFlag parses a required YYYY-MM-DD flag value.
func parseDateFlag(value, name string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("--%s is required (YYYY-MM-DD)", name)
	}
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q, want YYYY-MM-DD", name, value)
	}
	return d, nil
}
