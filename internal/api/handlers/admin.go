package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/player-valuation/internal/models"
	"github.com/jstittsworth/player-valuation/internal/services"
	"github.com/jstittsworth/player-valuation/pkg/database"
	"github.com/jstittsworth/player-valuation/pkg/utils"
)

// AdminHandler exposes operator actions: manual job runs, cache invalidation and job status
type AdminHandler struct {
	db          *database.DB
	cache       *services.CacheService
	dataFetcher *services.DataFetcherService
	logger      *logrus.Logger
}

func NewAdminHandler(db *database.DB, cache *services.CacheService, dataFetcher *services.DataFetcherService, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		db:          db,
		cache:       cache,
		dataFetcher: dataFetcher,
		logger:      logger,
	}
}

// RefreshIdentity downloads the ID map and swaps the identity snapshot
func (h *AdminHandler) RefreshIdentity(c *gin.Context) {
	h.runJob(c, services.JobIdentityRefresh)
}

// SyncRosters refreshes the stored roster snapshot of every configured league
func (h *AdminHandler) SyncRosters(c *gin.Context) {
	h.runJob(c, services.JobRosterSync)
}

// WarmCache loads the season baseline and leaderboards into the cache
func (h *AdminHandler) WarmCache(c *gin.Context) {
	h.runJob(c, services.JobCacheWarming)
}

func (h *AdminHandler) runJob(c *gin.Context, id string) {
	if _, ok := h.dataFetcher.GetJob(id); !ok {
		utils.SendNotFound(c, "Job not registered")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"component": "admin_handler",
		"job_id":    id,
	}).Info("Manual job run requested")

	job, err := h.dataFetcher.RunNow(id)
	if errors.Is(err, services.ErrJobRunning) {
		utils.SendConflict(c, "Job already running")
		return
	}
	if err != nil {
		utils.SendUpstreamError(c, "Job failed", job.LastError)
		return
	}
	utils.SendSuccess(c, job)
}

// InvalidateCache drops cached upstream payloads. target is stats, leaderboards or all (default).
func (h *AdminHandler) InvalidateCache(c *gin.Context) {
	target := c.DefaultQuery("target", "all")
	prefixes, ok := services.UpstreamCachePrefixes[target]
	if !ok {
		utils.SendValidationError(c, "Invalid cache target", "want stats, leaderboards or all")
		return
	}

	deleted := 0
	for _, prefix := range prefixes {
		n, err := h.cache.InvalidatePrefix(c.Request.Context(), prefix)
		deleted += n
		if err != nil {
			h.logger.WithFields(logrus.Fields{
				"component": "admin_handler",
				"prefix":    prefix,
			}).WithError(err).Error("Cache invalidation failed")
			utils.SendInternalError(c, "Cache invalidation failed")
			return
		}
	}

	utils.SendSuccess(c, gin.H{
		"target":  target,
		"deleted": deleted,
		"enabled": h.cache.Enabled(),
	})
}

// GetJobs returns the status of every registered job
func (h *AdminHandler) GetJobs(c *gin.Context) {
	utils.SendSuccess(c, h.dataFetcher.GetJobs())
}

// GetSyncRuns returns the most recent persisted job runs
func (h *AdminHandler) GetSyncRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 200 {
		utils.SendValidationError(c, "Invalid limit", "must be between 1 and 200")
		return
	}

	runs, err := models.RecentSyncRuns(c.Request.Context(), h.db, limit)
	if err != nil {
		utils.SendInternalError(c, "Failed to load sync runs")
		return
	}
	utils.SendSuccess(c, runs)
}
