package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/player-valuation/internal/identity"
	"github.com/jstittsworth/player-valuation/internal/models"
	"github.com/jstittsworth/player-valuation/internal/providers"
	"github.com/jstittsworth/player-valuation/pkg/config"
	"github.com/jstittsworth/player-valuation/pkg/database"
)

const (
	JobRosterSync      = "roster_sync"
	JobIdentityRefresh = "identity_refresh"
	JobCacheWarming    = "cache_warming"
)

// SyncResult reports one league's roster sync
type SyncResult struct {
	Platform  string `json:"platform"`
	LeagueKey string `json:"league_key"`
	Records   int    `json:"records"`
	Error     string `json:"error,omitempty"`
}

// RosterSyncService replaces each configured league's stored roster snapshot with a fresh one
type RosterSyncService struct {
	db       *database.DB
	rosters  map[string]providers.RosterSource
	leagues  []config.League
	breakers *CircuitBreakerService
	logger   *logrus.Logger
}

func NewRosterSyncService(db *database.DB, rosters map[string]providers.RosterSource, leagues []config.League, breakers *CircuitBreakerService, logger *logrus.Logger) *RosterSyncService {
	return &RosterSyncService{
		db:       db,
		rosters:  rosters,
		leagues:  leagues,
		breakers: breakers,
		logger:   logger,
	}
}

// SyncAll syncs every configured league. One league failing does not stop the others.
func (s *RosterSyncService) SyncAll(ctx context.Context) ([]SyncResult, error) {
	results := make([]SyncResult, 0, len(s.leagues))
	var errs []error
	for _, league := range s.leagues {
		res, err := s.SyncLeague(ctx, league)
		if err != nil {
			errs = append(errs, err)
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// SyncLeague fetches one league and replaces its stored snapshot. Stale entries are deleted, not merged.
func (s *RosterSyncService) SyncLeague(ctx context.Context, league config.League) (SyncResult, error) {
	result := SyncResult{Platform: league.Platform, LeagueKey: league.LeagueKey}
	logger := s.logger.WithFields(logrus.Fields{
		"component":  "roster_sync",
		"platform":   league.Platform,
		"league_key": league.LeagueKey,
	})

	src, ok := s.rosters[league.Platform]
	if !ok {
		err := fmt.Errorf("no roster source for platform %q", league.Platform)
		result.Error = err.Error()
		return result, err
	}

	run, err := models.StartSyncRun(ctx, s.db, JobRosterSync, league.Platform+":"+league.LeagueKey)
	if err != nil {
		return result, fmt.Errorf("failed to record sync run: %w", err)
	}

	written, syncErr := s.fetchAndReplace(ctx, src, league.LeagueKey)
	if err := models.FinishSyncRun(ctx, s.db, run, written, syncErr); err != nil {
		logger.WithError(err).Warn("Failed to record sync run outcome")
	}

	result.Records = written
	if syncErr != nil {
		result.Error = syncErr.Error()
		logger.WithError(syncErr).Error("Roster sync failed, stored snapshot kept")
		return result, syncErr
	}

	logger.WithField("records", written).Info("Roster snapshot replaced")
	return result, nil
}

func (s *RosterSyncService) fetchAndReplace(ctx context.Context, src providers.RosterSource, leagueKey string) (int, error) {
	v, err := s.breakers.Execute("roster:"+src.Platform(), func() (interface{}, error) {
		return src.FetchRoster(ctx, leagueKey)
	})
	if err != nil {
		return 0, err
	}
	return models.ReplaceLeagueRoster(ctx, s.db, leagueKey, v.([]models.RosterEntry))
}

// IDMapSource downloads the authoritative ID map
type IDMapSource interface {
	Fetch(ctx context.Context) ([]models.IdentityMapping, error)
}

// IdentityRefreshService loads the ID map into the mapping table and swaps the live snapshot
type IdentityRefreshService struct {
	db     *database.DB
	source IDMapSource
	store  *identity.Store
	logger *logrus.Logger
}

func NewIdentityRefreshService(db *database.DB, source IDMapSource, store *identity.Store, logger *logrus.Logger) *IdentityRefreshService {
	return &IdentityRefreshService{db: db, source: source, store: store, logger: logger}
}

// Refresh downloads the map and upserts it. On failure the current snapshot stays in place.
func (s *IdentityRefreshService) Refresh(ctx context.Context) (int, error) {
	run, err := models.StartSyncRun(ctx, s.db, JobIdentityRefresh, "")
	if err != nil {
		return 0, fmt.Errorf("failed to record sync run: %w", err)
	}

	written, refreshErr := s.refresh(ctx)
	if err := models.FinishSyncRun(ctx, s.db, run, written, refreshErr); err != nil {
		s.logger.WithField("component", "identity_refresh").WithError(err).Warn("Failed to record sync run outcome")
	}
	return written, refreshErr
}

func (s *IdentityRefreshService) refresh(ctx context.Context) (int, error) {
	mappings, err := s.source.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	if len(mappings) == 0 {
		return 0, errors.New("id map is empty")
	}

	written, err := s.store.Upsert(ctx, mappings)
	if err != nil {
		return written, err
	}

	s.logger.WithFields(logrus.Fields{
		"component": "identity_refresh",
		"mappings":  written,
	}).Info("Identity mappings refreshed")
	return written, nil
}
