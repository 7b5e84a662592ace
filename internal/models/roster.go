package models

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/jstittsworth/player-valuation/pkg/database"
)

// RosterEntry is one (league, team, player) ownership claim from a fantasy platform snapshot
type RosterEntry struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	LeagueKey         string         `gorm:"size:64;not null;uniqueIndex:idx_roster_league_player" json:"league_key"`
	TeamKey           string         `gorm:"size:64;not null;index" json:"team_key"`
	Platform          string         `gorm:"size:20;not null" json:"platform"`
	PlatformPlayerID  string         `gorm:"size:64;not null;uniqueIndex:idx_roster_league_player" json:"platform_player_id"`
	PlayerName        string         `gorm:"size:120" json:"player_name"`
	EligiblePositions pq.StringArray `gorm:"type:text" json:"eligible_positions"`
	Attributes        datatypes.JSON `json:"attributes,omitempty"`
	SyncedAt          time.Time      `json:"synced_at"`
}

// TableName specifies the table name for GORM
func (RosterEntry) TableName() string {
	return "roster_entries"
}

// ReplaceLeagueRoster deletes the league's stored snapshot and inserts entries in one transaction.
// A player claimed twice keeps the last claim.
func ReplaceLeagueRoster(ctx context.Context, db *database.DB, leagueKey string, entries []RosterEntry) (int, error) {
	unique := dedupeRoster(leagueKey, entries)

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("league_key = ?", leagueKey).Delete(&RosterEntry{}).Error; err != nil {
			return fmt.Errorf("failed to clear roster for league %s: %w", leagueKey, err)
		}
		if len(unique) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(unique, 500).Error; err != nil {
			return fmt.Errorf("failed to insert roster for league %s: %w", leagueKey, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(unique), nil
}

// ListRosterEntries returns the stored snapshot for a league
func ListRosterEntries(ctx context.Context, db *database.DB, leagueKey string) ([]RosterEntry, error) {
	var entries []RosterEntry
	err := db.WithContext(ctx).Where("league_key = ?", leagueKey).Order("team_key, platform_player_id").Find(&entries).Error
	return entries, err
}

func dedupeRoster(leagueKey string, entries []RosterEntry) []RosterEntry {
	index := make(map[string]int, len(entries))
	unique := make([]RosterEntry, 0, len(entries))
	for _, e := range entries {
		if e.PlatformPlayerID == "" {
			continue
		}
		e.ID = 0
		e.LeagueKey = leagueKey
		if i, seen := index[e.PlatformPlayerID]; seen {
			unique[i] = e
			continue
		}
		index[e.PlatformPlayerID] = len(unique)
		unique = append(unique, e)
	}
	return unique
}
