package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"casual-tasker/internal/cache"
	"casual-tasker/internal/logging"
	"casual-tasker/internal/repository"
)

// newDataRepository seeds an in-memory database and mirrors it.
func newDataRepository(t *testing.T) *cache.DataRepository {
	t.Helper()
	ctx := context.Background()

	db, err := repository.NewDB(repository.Options{
		Driver:   repository.DriverPureSQLite,
		DSN:      ":memory:",
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	log := logging.Discard()
	fallback := repository.NewCategoryFallback(db)
	categories := repository.NewCategoryStore(db, log, fallback)
	tasks := repository.NewTaskStore(db, log, fallback)
	require.NoError(t, repository.Seed(ctx, categories, tasks, fallback, log))

	repo, err := cache.NewDataRepository(ctx, categories, tasks, fallback, log)
	require.NoError(t, err)
	t.Cleanup(repo.Close)
	return repo
}
