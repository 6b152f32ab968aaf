package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"casual-tasker/internal/logging"
	"casual-tasker/internal/model"
)

var errInjected = errors.New("injected failure")

type testStores struct {
	db         *gorm.DB
	fallback   *CategoryFallback
	categories *CategoryStore
	tasks      *TaskStore
}

// setupStores opens a private in-memory database with both stores attached.
func setupStores(t *testing.T) testStores {
	t.Helper()

	db, err := NewDB(Options{Driver: DriverPureSQLite, DSN: ":memory:", LogLevel: logger.Silent})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	log := logging.Discard()
	fallback := NewCategoryFallback(db)
	return testStores{
		db:         db,
		fallback:   fallback,
		categories: NewCategoryStore(db, log, fallback),
		tasks:      NewTaskStore(db, log, fallback),
	}
}

// seedSentinels adds the deleted and common categories, in that order.
func seedSentinels(t *testing.T, s testStores) (deleted, common *model.Category) {
	t.Helper()
	ctx := context.Background()

	deleted, err := s.categories.Add(ctx, &model.Category{Name: DeletedCategoryName})
	require.NoError(t, err)
	common, err = s.categories.Add(ctx, &model.Category{Name: CommonCategoryName})
	require.NoError(t, err)
	return deleted, common
}

// failOn makes every statement of the given kind against table fail.
func failOn(t *testing.T, db *gorm.DB, kind, table string) {
	t.Helper()

	fail := func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Table == table {
			_ = tx.AddError(errInjected)
		}
	}

	var err error
	name := "test:fail_" + kind + "_" + table
	switch kind {
	case "create":
		err = db.Callback().Create().Before("gorm:create").Register(name, fail)
	case "update":
		err = db.Callback().Update().Before("gorm:update").Register(name, fail)
	case "delete":
		err = db.Callback().Delete().Before("gorm:delete").Register(name, fail)
	default:
		t.Fatalf("unknown callback kind %q", kind)
	}
	require.NoError(t, err)
}
