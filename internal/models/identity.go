package models

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/jstittsworth/player-valuation/pkg/database"
)

// Fantasy platforms whose player IDs are mapped to canonical IDs
const (
	PlatformYahoo = "yahoo"
	PlatformESPN  = "espn"
)

// IdentityMapping links one platform player ID to the canonical (official feed) player ID
type IdentityMapping struct {
	Platform         string    `gorm:"primaryKey;size:20" json:"platform"`
	PlatformPlayerID string    `gorm:"primaryKey;size:64" json:"platform_player_id"`
	CanonicalID      int       `gorm:"index;not null" json:"canonical_id"`
	DisplayName      string    `gorm:"size:120" json:"display_name"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (IdentityMapping) TableName() string {
	return "identity_mappings"
}

// UpsertIdentityMappings writes mappings by (platform, platform player ID), last write wins.
// Duplicate keys inside the batch collapse to the last occurrence.
func UpsertIdentityMappings(ctx context.Context, db *database.DB, mappings []IdentityMapping) (int, error) {
	unique := dedupeMappings(mappings)
	if len(unique) == 0 {
		return 0, nil
	}

	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "platform"}, {Name: "platform_player_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"canonical_id", "display_name", "updated_at"}),
	}).CreateInBatches(unique, 500).Error
	if err != nil {
		return 0, err
	}
	return len(unique), nil
}

// ListIdentityMappings loads the whole mapping table
func ListIdentityMappings(ctx context.Context, db *database.DB) ([]IdentityMapping, error) {
	var mappings []IdentityMapping
	err := db.WithContext(ctx).Order("platform, platform_player_id").Find(&mappings).Error
	return mappings, err
}

func dedupeMappings(mappings []IdentityMapping) []IdentityMapping {
	type key struct{ platform, id string }
	index := make(map[key]int, len(mappings))
	unique := make([]IdentityMapping, 0, len(mappings))
	for _, m := range mappings {
		if m.Platform == "" || m.PlatformPlayerID == "" || m.CanonicalID <= 0 {
			continue
		}
		k := key{m.Platform, m.PlatformPlayerID}
		if i, seen := index[k]; seen {
			unique[i] = m
			continue
		}
		index[k] = len(unique)
		unique = append(unique, m)
	}
	return unique
}
