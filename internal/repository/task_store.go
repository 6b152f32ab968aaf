package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"casual-tasker/internal/model"
)

// TaskStore persists tasks. Reads always carry the task's category.
type TaskStore struct {
	*EntityStore[model.Task, *model.Task]
	fallback *CategoryFallback
}

func NewTaskStore(db *gorm.DB, logger *slog.Logger, fallback *CategoryFallback) *TaskStore {
	return &TaskStore{
		EntityStore: NewEntityStore[model.Task](db, logger, "task", "Category"),
		fallback:    fallback,
	}
}

// Add resolves the task's category against the database before inserting it.
// A task without a category lands in the common category.
func (s *TaskStore) Add(ctx context.Context, item *model.Task) (*model.Task, error) {
	if err := s.validate("add", item); err != nil {
		return nil, err
	}
	if err := s.resolveCategory(ctx, item); err != nil {
		return nil, err
	}
	return s.add(ctx, item)
}

// Update applies the same category resolution as Add.
func (s *TaskStore) Update(ctx context.Context, item *model.Task) (*model.Task, error) {
	if err := s.validate("update", item); err != nil {
		return nil, err
	}
	if err := s.resolveCategory(ctx, item); err != nil {
		return nil, err
	}
	return s.update(ctx, item)
}

func (s *TaskStore) AddAsync(ctx context.Context, item *model.Task) <-chan Result[*model.Task] {
	return async(func() (*model.Task, error) { return s.Add(ctx, item) })
}

func (s *TaskStore) UpdateAsync(ctx context.Context, item *model.Task) <-chan Result[*model.Task] {
	return async(func() (*model.Task, error) { return s.Update(ctx, item) })
}

// resolveCategory replaces whatever category object the caller attached with
// the persisted row of the same id; fields set on the caller's copy are dropped.
func (s *TaskStore) resolveCategory(ctx context.Context, item *model.Task) error {
	id := item.CategoryID
	if item.Category != nil {
		id = item.Category.ID
	}

	var category *model.Category
	if id != 0 {
		found, err := s.findCategory(ctx, id)
		if err != nil {
			return err
		}
		if found == nil {
			s.logger.Warn("task category not found, using common category", "category_id", id, "entity", item)
		}
		category = found
	}

	if category == nil {
		common, err := s.fallback.CommonCategory(ctx)
		if err != nil {
			return err
		}
		if common == nil {
			return ErrSentinelMissing
		}
		s.logger.Debug("task gets common category", "entity", item)
		category = common
	}

	item.Category = category
	item.CategoryID = category.ID
	return nil
}

func (s *TaskStore) findCategory(ctx context.Context, id uint) (*model.Category, error) {
	var category model.Category
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&category).Error
	switch {
	case err == nil:
		return &category, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find category %d: %w", id, err)
	}
}
