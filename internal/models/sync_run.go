package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jstittsworth/player-valuation/pkg/database"
)

// Sync run statuses
const (
	SyncRunning   = "running"
	SyncSucceeded = "succeeded"
	SyncFailed    = "failed"
)

// SyncRun records one execution of a background refresh (identity map, roster sync)
type SyncRun struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	Job        string     `gorm:"size:50;not null;index" json:"job"`
	Target     string     `gorm:"size:64" json:"target,omitempty"`
	Status     string     `gorm:"size:20;not null" json:"status"`
	Records    int        `json:"records"`
	Error      string     `gorm:"type:text" json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// TableName specifies the table name for GORM
func (SyncRun) TableName() string {
	return "sync_runs"
}

// BeforeCreate assigns a UUID when none was provided
func (r *SyncRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// StartSyncRun inserts a running record
func StartSyncRun(ctx context.Context, db *database.DB, job, target string) (*SyncRun, error) {
	run := &SyncRun{
		Job:       job,
		Target:    target,
		Status:    SyncRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// FinishSyncRun stores the outcome of a run
func FinishSyncRun(ctx context.Context, db *database.DB, run *SyncRun, records int, runErr error) error {
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Records = records
	run.Status = SyncSucceeded
	if runErr != nil {
		run.Status = SyncFailed
		run.Error = runErr.Error()
	}
	return db.WithContext(ctx).Save(run).Error
}

// RecentSyncRuns returns the latest runs, newest first
func RecentSyncRuns(ctx context.Context, db *database.DB, limit int) ([]SyncRun, error) {
	var runs []SyncRun
	err := db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// AllModels lists every model managed by migrations
func AllModels() []interface{} {
	return []interface{}{
		&IdentityMapping{},
		&RosterEntry{},
		&SyncRun{},
	}
}
