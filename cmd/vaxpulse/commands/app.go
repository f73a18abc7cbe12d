package commands

import (
	"fmt"

	"github.com/wonny/vaxpulse/internal/external/owid"
	"github.com/wonny/vaxpulse/internal/report"
	"github.com/wonny/vaxpulse/internal/source"
	"github.com/wonny/vaxpulse/internal/store"
	"github.com/wonny/vaxpulse/pkg/config"
	"github.com/wonny/vaxpulse/pkg/database"
	"github.com/wonny/vaxpulse/pkg/httputil"
	"github.com/wonny/vaxpulse/pkg/logger"
	"github.com/wonny/vaxpulse/pkg/redis"
)

// app holds the wired components shared by the serving commands
type app struct {
	cfg          *config.Config
	log          *logger.Logger
	db           *database.DB // nil when DATABASE_URL is not set
	redis        *redis.Client
	httpClient   *httputil.Client
	cache        *source.PayloadCache
	orchestrator *source.Orchestrator
	reporter     *report.Reporter
}

// newApp wires config → store → external client → cache → orchestrator → reporter
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)
	a := &app{cfg: cfg, log: log}

	// Primary store (optional when fallback is enabled)
	var primary source.Primary
	if cfg.HasDatabase() {
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		primary = store.NewRepository(db.Pool)
	} else {
		log.Warn("DATABASE_URL not set, every request is served by the fallback source")
	}

	// Shared payload cache (optional)
	redisClient, err := redis.New(cfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = redisClient

	a.httpClient = httputil.New(cfg, log)
	fetcher := owid.NewClient(a.httpClient, log, cfg.Source.FetchTimeout)
	if redisClient.Enabled() && cfg.Source.SharedFetchLimit > 0 {
		fetcher.WithFetchLimit(redis.NewRateLimiter(redisClient, "vaxpulse"),
			cfg.Source.SharedFetchLimit, cfg.Source.SharedFetchWindow)
	}

	a.cache = source.NewPayloadCache(cfg.Source.CacheTTL, nil, log)
	if redisClient.Enabled() {
		a.cache.WithSharedStore(redis.NewCache(redisClient, "vaxpulse"))
	}

	a.orchestrator = source.NewOrchestrator(primary, fetcher, a.cache, source.OptionsFromConfig(cfg), log)
	a.reporter = report.NewReporter(a.orchestrator)

	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
