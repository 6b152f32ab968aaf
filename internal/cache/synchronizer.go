package cache

import (
	"context"
	"log/slog"

	"casual-tasker/internal/model"
)

// TaskCache is the task mirror.
type TaskCache = ObservableCache[model.Task, *model.Task]

// Synchronizer repairs the category references held by mirrored tasks when
// a category is renamed or deleted. The store already holds the right data by
// then, so every repair is mirror-only.
type Synchronizer struct {
	tasks      *TaskCache
	categories *CategoryCache
	logger     *slog.Logger
}

func NewSynchronizer(tasks *TaskCache, categories *CategoryCache, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		tasks:      tasks,
		categories: categories,
		logger:     logger.With("component", "synchronizer"),
	}
}

// Synchronize starts listening to the category cache. The returned func
// stops it.
func (s *Synchronizer) Synchronize() (stop func()) {
	return s.categories.Subscribe(s)
}

func (s *Synchronizer) CategoryDeleted(ctx context.Context, category *model.Category) {
	replacement, err := s.categories.DefaultDeletedEntity(ctx)
	if err != nil {
		s.logger.Error("resolve fallback category", "error", err)
		return
	}
	if replacement == nil {
		s.logger.Warn("fallback category missing, tasks left as they are", "entity", category)
		return
	}
	n := s.retarget(ctx, category.ID, replacement)
	s.logger.Info("tasks moved to fallback category", "from", category, "count", n)
}

func (s *Synchronizer) CategoryUpdated(ctx context.Context, category *model.Category) {
	n := s.retarget(ctx, category.ID, category)
	s.logger.Debug("task categories refreshed", "entity", category, "count", n)
}

func (s *Synchronizer) retarget(ctx context.Context, from uint, to *model.Category) int {
	var patched []*model.Task
	for _, task := range s.tasks.Entities() {
		if taskCategoryID(task) != from {
			continue
		}
		task.Category = to.Clone()
		task.CategoryID = to.ID
		patched = append(patched, task)
	}
	if len(patched) == 0 {
		return 0
	}
	return s.tasks.BatchUpdate(ctx, patched)
}

func taskCategoryID(t *model.Task) uint {
	if t.Category != nil {
		return t.Category.ID
	}
	return t.CategoryID
}
