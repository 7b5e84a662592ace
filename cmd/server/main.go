package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/player-valuation/internal/api"
	"github.com/jstittsworth/player-valuation/internal/identity"
	"github.com/jstittsworth/player-valuation/internal/metrics"
	"github.com/jstittsworth/player-valuation/internal/models"
	"github.com/jstittsworth/player-valuation/internal/providers"
	"github.com/jstittsworth/player-valuation/internal/scoring"
	"github.com/jstittsworth/player-valuation/internal/services"
	"github.com/jstittsworth/player-valuation/internal/window"
	"github.com/jstittsworth/player-valuation/pkg/config"
	"github.com/jstittsworth/player-valuation/pkg/database"
	"github.com/jstittsworth/player-valuation/pkg/logger"
)

const (
	breakerTimeout = 30 * time.Second
	jobTimeout     = 5 * time.Minute
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Setup logging
	log := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if cfg.IsDevelopment() {
		if err := db.AutoMigrate(models.AllModels()...); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
	}

	cacheService := services.NewCacheService(connectRedis(cfg, log), log)
	cacheService.SetLoadTimeout(cfg.RequestTimeout)
	recorder := metrics.NewRecorder()
	breakers := services.NewCircuitBreakerService(cfg.CircuitBreakerThreshold, breakerTimeout, recorder, log)

	// Initialize data providers
	fetcher := providers.NewFetcher(cfg.UpstreamRPS, cfg.UpstreamBurst, log)
	rosters := rosterSources(cfg, fetcher, log)

	leagues, err := cfg.LeagueConfigs()
	if err != nil {
		log.Fatalf("Invalid league configuration: %v", err)
	}
	for _, l := range leagues {
		logger.WithLeagueContext(l.Platform, l.LeagueKey, l.TeamKey).Info("League configured")
	}

	identityStore := identity.NewStore(db, log)
	if _, err := identityStore.Reload(context.Background()); err != nil {
		log.WithError(err).Warn("Starting with an empty identity snapshot")
	}

	norms, err := scoring.LoadNorms(cfg.ScoringConfigPath)
	if err != nil {
		log.Fatalf("Failed to load scoring norms: %v", err)
	}
	seasonEnd, _ := cfg.SeasonEnd()

	engine := services.NewValuationEngine(
		services.Upstreams{
			Stats:        providers.NewStatsFeedClient(fetcher, cfg.StatsAPIURL, log),
			Leaderboards: providers.NewLeaderboardClient(fetcher, cfg.LeaderboardBaseURL, log),
			Boards:       leaderboards(cfg.Leaderboards, log),
			Rosters:      rosters,
		},
		identityStore,
		db,
		cacheService,
		breakers,
		scoring.NewScorer(norms),
		window.NewSelector(seasonEnd, nil),
		recorder,
		log,
		services.EngineConfig{
			Season:             cfg.Season,
			RequestTimeout:     cfg.RequestTimeout,
			LeaderboardTimeout: cfg.LeaderboardTimeout,
			CacheTTL:           cfg.CacheTTL,
		},
	)

	// Background jobs; without ENABLE_BACKGROUND_JOBS they only run from the admin endpoints
	rosterSync := services.NewRosterSyncService(db, rosters, leagues, breakers, log)
	identityRefresh := services.NewIdentityRefreshService(db, providers.NewIDMapClient(fetcher, cfg.IDMapURL, log), identityStore, log)

	dataFetcher := services.NewDataFetcherService(recorder, log, jobTimeout)
	jobs := []struct {
		id, name, schedule string
		run                func(context.Context) error
	}{
		{services.JobIdentityRefresh, "Identity map refresh", cfg.IdentityRefreshSchedule, func(ctx context.Context) error {
			_, err := identityRefresh.Refresh(ctx)
			return err
		}},
		{services.JobRosterSync, "League roster sync", cfg.RosterSyncSchedule, func(ctx context.Context) error {
			_, err := rosterSync.SyncAll(ctx)
			return err
		}},
		{services.JobCacheWarming, "Season cache warming", cfg.CacheWarmingSchedule, func(ctx context.Context) error {
			_, err := engine.Warm(ctx)
			return err
		}},
	}
	for _, job := range jobs {
		schedule := job.schedule
		if !cfg.EnableBackgroundJobs {
			schedule = ""
		}
		if err := dataFetcher.AddJob(job.id, schedule, job.name, job.run); err != nil {
			log.Fatalf("Failed to register job %s: %v", job.id, err)
		}
	}
	if cfg.EnableBackgroundJobs {
		if err := dataFetcher.Start(); err != nil {
			log.Errorf("Failed to start data fetcher: %v", err)
		}
		if identityStore.Snapshot().Len() == 0 {
			go func() {
				if _, err := dataFetcher.RunNow(services.JobIdentityRefresh); err != nil {
					log.WithError(err).Warn("Initial identity refresh failed")
				}
			}()
		}
	}
	defer dataFetcher.Stop()

	router := api.NewRouter(api.Dependencies{
		Config:      cfg,
		DB:          db,
		Cache:       cacheService,
		Engine:      engine,
		Sessions:    services.NewSessionStore(cacheService, cfg.SessionTTL),
		Identity:    identityStore,
		Breakers:    breakers,
		DataFetcher: dataFetcher,
		Metrics:     recorder,
		Logger:      log,
	})

	// Log all registered routes
	for _, route := range router.Routes() {
		log.Debugf("%s %s", route.Method, route.Path)
	}

	// Setup server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

// connectRedis returns nil when redis is unreachable; the service then runs without a cache
func connectRedis(cfg *config.Config, log *logrus.Logger) *redis.Client {
	if cfg.RedisURL == "" {
		log.Warn("REDIS_URL not set, caching disabled")
		return nil
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to parse Redis URL: %v", err)
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("Redis unreachable, caching disabled")
		_ = client.Close()
		return nil
	}
	return client
}

func rosterSources(cfg *config.Config, fetcher *providers.Fetcher, log *logrus.Logger) map[string]providers.RosterSource {
	sources := map[string]providers.RosterSource{
		// public ESPN leagues need no cookies
		models.PlatformESPN: providers.NewESPNRosterClient(fetcher, cfg.ESPNBaseURL, cfg.Season, cfg.ESPNS2, cfg.ESPNSWID, log),
	}
	if cfg.YahooAccessToken != "" {
		sources[models.PlatformYahoo] = providers.NewYahooRosterClient(fetcher, cfg.YahooBaseURL, cfg.YahooAccessToken, log)
	} else {
		log.Info("YAHOO_ACCESS_TOKEN not set, Yahoo leagues use stored rosters only")
	}
	return sources
}

func leaderboards(names []string, log *logrus.Logger) []providers.Leaderboard {
	boards := make([]providers.Leaderboard, 0, len(names))
	for _, name := range names {
		board, ok := providers.LeaderboardCatalog[name]
		if !ok {
			log.WithField("leaderboard", name).Warn("Unknown leaderboard, skipping")
			continue
		}
		boards = append(boards, board)
	}
	return boards
}
