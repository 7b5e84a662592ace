package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/player-valuation/internal/api/handlers"
	"github.com/jstittsworth/player-valuation/internal/api/middleware"
	"github.com/jstittsworth/player-valuation/internal/identity"
	"github.com/jstittsworth/player-valuation/internal/metrics"
	"github.com/jstittsworth/player-valuation/internal/services"
	"github.com/jstittsworth/player-valuation/pkg/config"
	"github.com/jstittsworth/player-valuation/pkg/database"
)

// Dependencies are the long-lived services the routes are built from
type Dependencies struct {
	Config      *config.Config
	DB          *database.DB
	Cache       *services.CacheService
	Engine      handlers.Valuator
	Sessions    *services.SessionStore
	Identity    *identity.Store
	Breakers    *services.CircuitBreakerService
	DataFetcher *services.DataFetcherService
	Metrics     *metrics.Recorder
	Logger      *logrus.Logger
}

// NewRouter builds the gin engine with middleware, probes, metrics and the versioned API
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(deps.Logger, deps.Metrics))
	router.Use(middleware.CORS(deps.Config.CorsOrigins))

	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Cache, deps.Identity, deps.Breakers)
	router.GET("/health", healthHandler.GetHealth)
	router.GET("/ready", healthHandler.GetReady)
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	SetupRoutes(router.Group("/api/v1"), deps)
	return router
}

// SetupRoutes configures all API routes on the given router group
func SetupRoutes(group *gin.RouterGroup, deps Dependencies) {
	leagues, err := deps.Config.LeagueConfigs()
	if err != nil {
		deps.Logger.WithError(err).Warn("Ignoring invalid LEAGUES configuration")
	}

	playerHandler := handlers.NewPlayerHandler(deps.Engine, deps.Sessions, leagues, deps.Config.SessionTTL, deps.Logger)
	adminHandler := handlers.NewAdminHandler(deps.DB, deps.Cache, deps.DataFetcher, deps.Logger)

	// Player endpoints
	group.GET("/players", playerHandler.GetPlayers)
	group.GET("/players/:id", playerHandler.GetPlayer)

	// Operator endpoints
	admin := group.Group("/admin")
	admin.Use(middleware.AuthRequired(deps.Config.JWTSecret, middleware.RoleAdmin))
	{
		admin.POST("/identity/refresh", adminHandler.RefreshIdentity)
		admin.POST("/rosters/sync", adminHandler.SyncRosters)
		admin.POST("/cache/warm", adminHandler.WarmCache)
		admin.POST("/cache/invalidate", adminHandler.InvalidateCache)
		admin.GET("/jobs", adminHandler.GetJobs)
		admin.GET("/sync-runs", adminHandler.GetSyncRuns)
	}
}
