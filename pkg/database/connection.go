package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqliteScheme = "sqlite://"

type DB struct {
	*gorm.DB
}

// NewConnection opens postgres, or sqlite when the URL starts with sqlite://
// (sqlite://:memory: and sqlite:///tmp/pv.db both work).
func NewConnection(databaseURL string, isDevelopment bool) (*DB, error) {
	logLevel := logger.Error
	if isDevelopment {
		logLevel = logger.Info
	}

	dialector, isSQLite := dialectorFor(databaseURL)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		PrepareStmt: !isSQLite,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Connection pool settings
	if isSQLite {
		// every connection to :memory: is a separate database
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithField("driver", dialector.Name()).Info("Database connection established successfully")

	return &DB{db}, nil
}

// Wrap adapts an already opened gorm handle, mostly for tests
func Wrap(db *gorm.DB) *DB {
	return &DB{db}
}

func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the underlying connection
func (db *DB) Ping() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func dialectorFor(databaseURL string) (gorm.Dialector, bool) {
	if strings.HasPrefix(databaseURL, sqliteScheme) {
		return sqlite.Open(strings.TrimPrefix(databaseURL, sqliteScheme)), true
	}
	return postgres.Open(databaseURL), false
}
