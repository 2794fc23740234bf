package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wonny/trifund/internal/audit"
	"github.com/wonny/trifund/internal/brain"
	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/internal/narrative"
	"github.com/wonny/trifund/internal/portfolio"
	"github.com/wonny/trifund/internal/s0_data"
	"github.com/wonny/trifund/internal/s0_data/collector"
	"github.com/wonny/trifund/internal/s0_data/quality"
	"github.com/wonny/trifund/internal/s1_universe"
	"github.com/wonny/trifund/internal/strategyconfig"
	"github.com/wonny/trifund/pkg/config"
	"github.com/wonny/trifund/pkg/database"
	"github.com/wonny/trifund/pkg/httputil"
	"github.com/wonny/trifund/pkg/logger"
	"github.com/wonny/trifund/pkg/metrics"
	"github.com/wonny/trifund/pkg/redis"
)

const keyPrefix = "trifund"

// app holds the process-wide collaborators of one command
type app struct {
	cfg          *config.Config
	log          *logger.Logger
	db           *database.DB // nil when offline
	redis        *redis.Client
	strategy     *strategyconfig.Config
	strategyYAML []byte
	metrics      *metrics.Registry
}

// bootstrap loads config, logger and the strategy file; online commands also
// connect PostgreSQL (schema ensured) and Redis
func bootstrap(offline bool) (*app, error) {
	load := config.Load
	if offline {
		load = config.LoadOffline
	}

	cfg, err := load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	strategy, raw, err := loadStrategy(cfg)
	if err != nil {
		return nil, err
	}
	for _, w := range strategyconfig.Warn(strategy) {
		log.WithFields(map[string]interface{}{
			"code": w.Code,
		}).Warn(w.Message)
	}

	a := &app{
		cfg:          cfg,
		log:          log,
		strategy:     strategy,
		strategyYAML: raw,
		metrics:      metrics.NewRegistry(),
	}

	if offline {
		a.redis, _ = redis.New(&config.Config{}) // disabled client
		return a, nil
	}

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	a.db = db
	log.Info("Connected to database")

	rc, err := redis.New(cfg)
	if err != nil {
		// 캐시/레이트리밋 없이도 동작은 가능
		log.WithError(err).Warn("Redis unavailable, continuing without cache")
		rc, _ = redis.New(&config.Config{})
	}
	a.redis = rc

	return a, nil
}

func loadStrategy(cfg *config.Config) (*strategyconfig.Config, []byte, error) {
	path := strategyFile
	if path == "" {
		path = cfg.StrategyConfigPath
	}

	strategy, raw, err := strategyconfig.LoadOrDefault(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load strategy config: %w", err)
	}
	return strategy, raw, nil
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// httpClient is the shared outbound client for index pages
func (a *app) httpClient() *httputil.Client {
	client := httputil.New(a.log).WithUserAgent(a.cfg.Universe.UserAgent)
	if a.redis.Enabled() {
		client = client.WithRateLimiter(redis.NewRateLimiter(a.redis, keyPrefix), redis.WikipediaRateLimit)
	}
	return client
}

// universeSource picks the index membership feed per UNIVERSE_SOURCE
func (a *app) universeSource() (contracts.UniverseProvider, contracts.CatalystDetector) {
	repo := s1_universe.NewRepository(a.db.Pool)
	if a.cfg.Universe.Source == "wikipedia" {
		source := s1_universe.NewWikipediaSource(a.httpClient(), "", a.log)
		return s1_universe.NewProvider(source), repo
	}
	return repo, repo
}

// dispatcher wires Claude → Service (cache, rate limit) → Dispatcher.
// nil when narrative is disabled in either the env or the strategy file.
func (a *app) dispatcher() *narrative.Dispatcher {
	if !a.cfg.Narrative.Enabled || !a.strategy.Narrative.Enabled {
		return nil
	}

	svcCfg := narrative.DefaultServiceConfig()
	svcCfg.Timeout = a.cfg.Narrative.Timeout
	svcCfg.MaxRetries = a.cfg.Narrative.MaxRetries

	service := narrative.NewService(narrative.NewClaudeClient(a.cfg.Narrative, a.log), svcCfg, a.log)
	if a.redis.Enabled() {
		service = service.
			WithCache(redis.NewCache(a.redis, keyPrefix)).
			WithRateLimiter(redis.NewRateLimiter(a.redis, keyPrefix))
	}

	return narrative.NewDispatcher(service, narrative.DispatchConfig{
		Concurrency: a.cfg.Narrative.Concurrency,
		RPS:         a.cfg.Narrative.RPS,
		Context:     a.strategy.Narrative.Context,
	}, a.metrics, a.log)
}

// orchestrator builds the S1→S5 pipeline. offline != nil runs from a
// snapshot file with no database.
func (a *app) orchestrator(offline *s0_data.OfflineData, publisher contracts.Publisher) (*brain.Orchestrator, error) {
	deps := brain.Deps{
		Config:      a.strategy,
		QualityGate: quality.NewQualityGate(quality.Config{MinCoverage: 0.8}),
		Dispatcher:  a.dispatcher(),
		Publisher:   publisher,
		Metrics:     a.metrics,
	}

	var store contracts.FactorStore
	if offline != nil {
		deps.Universe = offline
		deps.Catalysts = offline
		store = offline.Store
	} else {
		deps.Universe, deps.Catalysts = a.universeSource()
		store = s0_data.NewCachedStore(s0_data.NewRepository(a.db.Pool), redis.NewCache(a.redis, keyPrefix), a.log)
		deps.QualityStore = quality.NewRepository(a.db.Pool)
		deps.Store = portfolio.NewRepository(a.db.Pool)
	}

	deps.Fetcher = collector.NewCollector(store, collector.DefaultConfig(), a.metrics, a.log)

	return brain.NewOrchestrator(deps, a.log)
}

// runner wraps orch with the audit recorder when a database is connected
func (a *app) runner(orch *brain.Orchestrator) (audit.Runner, error) {
	if a.db == nil {
		return orch, nil
	}

	raw := a.strategyYAML
	if len(raw) == 0 {
		// 내장 기본값 사용 시에도 해시가 가리키는 설정을 남긴다
		var err error
		if raw, err = yaml.Marshal(a.strategy); err != nil {
			return nil, fmt.Errorf("encode strategy config: %w", err)
		}
	}

	snap, err := strategyconfig.NewSnapshot(a.strategy, raw)
	if err != nil {
		return nil, fmt.Errorf("snapshot strategy config: %w", err)
	}

	return audit.NewRecorder(orch, audit.NewRepository(a.db.Pool), snap, a.log), nil
}

// serveMetrics exposes /metrics on METRICS_PORT until ctx ends
func (a *app) serveMetrics(ctx context.Context) {
	if !a.cfg.MetricsEnabled {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{Addr: ":" + a.cfg.MetricsPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.WithError(err).Warn("Metrics server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	a.log.WithField("port", a.cfg.MetricsPort).Info("Metrics endpoint started")
}
