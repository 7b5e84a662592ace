package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// SessionDefaults is the league context remembered between requests
type SessionDefaults struct {
	Platform  string `json:"platform,omitempty"`
	LeagueKey string `json:"league_key,omitempty"`
	TeamKey   string `json:"team_key,omitempty"`
}

// IsZero reports whether no league context is stored
func (d SessionDefaults) IsZero() bool {
	return d.LeagueKey == "" && d.TeamKey == "" && d.Platform == ""
}

// SessionStore persists SessionDefaults per session ID in redis. Without redis it keeps them in
// process memory, which is only suitable for a single instance.
type SessionStore struct {
	cache *CacheService
	ttl   time.Duration

	mu    sync.RWMutex
	local map[string]SessionDefaults
}

func NewSessionStore(cache *CacheService, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &SessionStore{
		cache: cache,
		ttl:   ttl,
		local: make(map[string]SessionDefaults),
	}
}

// Get returns the stored defaults; an unknown session yields zero defaults
func (s *SessionStore) Get(ctx context.Context, sessionID string) (SessionDefaults, error) {
	if sessionID == "" {
		return SessionDefaults{}, nil
	}

	if s.cache.Enabled() {
		var d SessionDefaults
		err := s.cache.Get(ctx, SessionCacheKey(sessionID), &d)
		if errors.Is(err, ErrCacheMiss) {
			return SessionDefaults{}, nil
		}
		if err != nil {
			return SessionDefaults{}, fmt.Errorf("failed to load session: %w", err)
		}
		return d, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.local[sessionID], nil
}

// Save stores defaults for the session and refreshes its TTL
func (s *SessionStore) Save(ctx context.Context, sessionID string, d SessionDefaults) error {
	if sessionID == "" {
		return nil
	}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, SessionCacheKey(sessionID), d, s.ttl); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.local[sessionID] = d
	return nil
}

// Apply merges explicitly supplied values over the stored defaults. When anything was supplied
// the merged result becomes the new default.
func (s *SessionStore) Apply(ctx context.Context, sessionID string, supplied SessionDefaults) (SessionDefaults, error) {
	stored, err := s.Get(ctx, sessionID)
	if err != nil {
		return supplied, err
	}
	if supplied.IsZero() {
		return stored, nil
	}

	merged := stored
	if supplied.Platform != "" {
		merged.Platform = supplied.Platform
	}
	if supplied.LeagueKey != "" {
		if supplied.LeagueKey != stored.LeagueKey {
			// a team key belongs to its league
			merged.TeamKey = ""
		}
		merged.LeagueKey = supplied.LeagueKey
	}
	if supplied.TeamKey != "" {
		merged.TeamKey = supplied.TeamKey
	}

	if err := s.Save(ctx, sessionID, merged); err != nil {
		return merged, err
	}
	return merged, nil
}
