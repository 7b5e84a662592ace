// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jstittsworth/player-valuation/internal/models"
	"github.com/jstittsworth/player-valuation/pkg/database"
)

// NewSQLiteDB opens a migrated in-memory database that lives for the duration of the test
func NewSQLiteDB(t testing.TB) *database.DB {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	// a second connection would open a second, empty in-memory database
	sqlDB.SetMaxOpenConns(1)

	db := &database.DB{DB: gormDB}
	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	t.Cleanup(func() { _ = db.Close() })
	return db
}
