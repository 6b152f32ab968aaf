package cache

import (
	"context"
	"log/slog"

	"casual-tasker/internal/model"
	"casual-tasker/internal/repository"
)

// DataRepository owns the two mirrors and the synchronizer that links them.
type DataRepository struct {
	Categories *CategoryCache
	Tasks      *TaskCache

	stopSync func()
}

// NewDataRepository loads both mirrors and starts synchronizing them.
func NewDataRepository(ctx context.Context, categories *repository.CategoryStore, tasks *repository.TaskStore, fallback *repository.CategoryFallback, logger *slog.Logger) (*DataRepository, error) {
	categoryCache, err := NewCategoryCache(ctx, categories, fallback, logger)
	if err != nil {
		return nil, err
	}
	taskCache, err := NewObservableCache[model.Task, *model.Task](ctx, "task", tasks, logger)
	if err != nil {
		return nil, err
	}

	sync := NewSynchronizer(taskCache, categoryCache, logger)
	return &DataRepository{
		Categories: categoryCache,
		Tasks:      taskCache,
		stopSync:   sync.Synchronize(),
	}, nil
}

// UpdateFromDB reloads categories, then tasks.
func (r *DataRepository) UpdateFromDB(ctx context.Context) error {
	if err := r.Categories.UpdateFromDB(ctx); err != nil {
		return err
	}
	return r.Tasks.UpdateFromDB(ctx)
}

func (r *DataRepository) Close() {
	r.stopSync()
}
