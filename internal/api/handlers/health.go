package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jstittsworth/player-valuation/internal/identity"
	"github.com/jstittsworth/player-valuation/internal/services"
	"github.com/jstittsworth/player-valuation/pkg/database"
)

type HealthHandler struct {
	db       *database.DB
	cache    *services.CacheService
	identity *identity.Store
	breakers *services.CircuitBreakerService
}

func NewHealthHandler(db *database.DB, cache *services.CacheService, identityStore *identity.Store, breakers *services.CircuitBreakerService) *HealthHandler {
	return &HealthHandler{
		db:       db,
		cache:    cache,
		identity: identityStore,
		breakers: breakers,
	}
}

// GetHealth returns basic health status - always returns 200 if server is running
// This is used for basic liveness probes
func (h *HealthHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"time":    time.Now().UTC(),
		"service": "player-valuation",
	})
}

// GetReady returns 200 once the database answers. Redis is optional; without it the cache
// is reported as degraded and requests go straight to the upstreams.
func (h *HealthHandler) GetReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true

	if err := h.db.Ping(); err != nil {
		checks["database"] = err.Error()
		ready = false
	} else {
		checks["database"] = "ok"
	}

	switch {
	case !h.cache.Enabled():
		checks["cache"] = "disabled"
	case h.cache.Ping(ctx) != nil:
		checks["cache"] = "degraded"
	default:
		checks["cache"] = "ok"
	}

	body := gin.H{
		"checks":            checks,
		"identity_mappings": h.identity.Snapshot().Len(),
		"circuit_breakers":  h.breakers.States(),
	}
	if !ready {
		body["status"] = "not_ready"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	body["status"] = "ready"
	c.JSON(http.StatusOK, body)
}
