package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"casual-tasker/internal/logging"
	"casual-tasker/internal/model"
	"casual-tasker/internal/repository"
)

var errStore = errors.New("store unavailable")

type fixture struct {
	db         *gorm.DB
	fallback   *repository.CategoryFallback
	categories *repository.CategoryStore
	tasks      *repository.TaskStore
	repo       *DataRepository
}

// newFixture seeds a private in-memory database and builds a DataRepository
// over it. The two fallback categories get ids 1 and 2.
func newFixture(t testing.TB) *fixture {
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
	f := &fixture{db: db, fallback: repository.NewCategoryFallback(db)}
	f.categories = repository.NewCategoryStore(db, log, f.fallback)
	f.tasks = repository.NewTaskStore(db, log, f.fallback)
	require.NoError(t, repository.Seed(ctx, f.categories, f.tasks, f.fallback, log))

	f.repo, err = NewDataRepository(ctx, f.categories, f.tasks, f.fallback, log)
	require.NoError(t, err)
	t.Cleanup(f.repo.Close)
	return f
}

// countingStore wraps a store, counts mutating calls and can be told to fail.
type countingStore[T any, PT model.EntityPtr[T]] struct {
	Store[T, PT]
	calls int
	fail  bool
}

func (s *countingStore[T, PT]) Add(ctx context.Context, item PT) (PT, error) {
	s.calls++
	if s.fail {
		return nil, errStore
	}
	return s.Store.Add(ctx, item)
}

func (s *countingStore[T, PT]) Update(ctx context.Context, item PT) (PT, error) {
	s.calls++
	if s.fail {
		return nil, errStore
	}
	return s.Store.Update(ctx, item)
}

func (s *countingStore[T, PT]) Delete(ctx context.Context, id uint) (bool, error) {
	s.calls++
	if s.fail {
		return false, errStore
	}
	return s.Store.Delete(ctx, id)
}

// recorder collects view notifications.
type recorder[PT any] struct {
	changes []Change[PT]
}

func (r *recorder[PT]) record(c Change[PT]) { r.changes = append(r.changes, c) }

func (r *recorder[PT]) kinds() []ChangeKind {
	out := make([]ChangeKind, len(r.changes))
	for i, c := range r.changes {
		out[i] = c.Kind
	}
	return out
}

// listenerFunc adapts two funcs to CategoryListener.
type listenerFunc struct {
	deleted func(*model.Category)
	updated func(*model.Category)
}

func (l listenerFunc) CategoryDeleted(_ context.Context, c *model.Category) {
	if l.deleted != nil {
		l.deleted(c)
	}
}

func (l listenerFunc) CategoryUpdated(_ context.Context, c *model.Category) {
	if l.updated != nil {
		l.updated(c)
	}
}
