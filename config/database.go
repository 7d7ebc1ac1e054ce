package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kendall-kelly/delivery-profitability-api/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// ConnectDatabase opens the orders store named by databaseURL.
// postgres:// and postgresql:// URLs use the PostgreSQL driver; sqlite://path,
// file: DSNs and *.db paths use SQLite. gorm output goes to the zap logger at
// the level GormLogLevel picks for logLevel.
func ConnectDatabase(databaseURL, logLevel string) error {
	dialector, err := Dialector(databaseURL)
	if err != nil {
		return err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	DB = db
	return nil
}

// GormLogLevel maps LOG_LEVEL onto gorm. Statements are traced only at debug;
// otherwise slow queries and errors are reported.
func GormLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return gormlogger.Info
	case "error", "fatal":
		return gormlogger.Error
	default:
		return gormlogger.Warn
	}
}

func newGormLogger(level string) gormlogger.Interface {
	return gormlogger.New(
		zap.NewStdLog(logger.Logger.Named("gorm")),
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  GormLogLevel(level),
			IgnoreRecordNotFoundError: true,
		},
	)
}

// Dialector picks the gorm driver for a database URL
func Dialector(databaseURL string) (gorm.Dialector, error) {
	switch {
	case databaseURL == "":
		return nil, fmt.Errorf("database URL is empty")
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgres.Open(databaseURL), nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(databaseURL, "sqlite://")), nil
	case strings.HasPrefix(databaseURL, "file:"), strings.HasSuffix(databaseURL, ".db"), databaseURL == ":memory:":
		return sqlite.Open(databaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported database URL scheme: %q", databaseURL)
	}
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// SetDB sets the database instance (primarily for testing)
func SetDB(db *gorm.DB) {
	DB = db
}
