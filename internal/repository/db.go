package repository

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	puresqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"casual-tasker/internal/model"
)

const (
	DriverSQLite     = "sqlite"
	DriverPureSQLite = "sqlite-pure"
	DriverPostgres   = "postgres"
)

// Options selects the backend for NewDB.
type Options struct {
	Driver string
	DSN    string
	// LogWriter receives gorm's own log lines; stdout when nil.
	LogWriter io.Writer
	LogLevel  logger.LogLevel
}

// NewDB opens the configured database and runs migrations.
func NewDB(opts Options) (*gorm.DB, error) {
	if opts.Driver == "" {
		opts.Driver = DriverSQLite
	}
	if opts.DSN == "" && opts.Driver != DriverPostgres {
		opts.DSN = "casual_tasker.db"
	}
	if opts.LogWriter == nil {
		opts.LogWriter = os.Stdout
	}
	if opts.LogLevel == 0 {
		opts.LogLevel = logger.Warn
	}

	var dialector gorm.Dialector
	switch opts.Driver {
	case DriverSQLite:
		if err := ensureDirForSQLite(opts.DSN); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(opts.DSN)
	case DriverPureSQLite:
		if err := ensureDirForSQLite(opts.DSN); err != nil {
			return nil, err
		}
		dialector = puresqlite.Open(opts.DSN)
	case DriverPostgres:
		dialector = postgres.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	dbLogger := logger.New(
		log.New(opts.LogWriter, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  opts.LogLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: dbLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if opts.Driver != DriverPostgres {
		// SQLite has a single writer; one connection also keeps :memory: databases intact.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("sql db: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	}

	if err := db.AutoMigrate(&model.Category{}, &model.Task{}); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	return db, nil
}

// ensureDirForSQLite creates parent dir for SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	// Ignore DSNs with explicit mode=memory or network.
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	// Strip file: prefix if present.
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}
