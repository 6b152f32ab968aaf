package repository

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"casual-tasker/internal/model"
)

// CategoryStore persists categories and keeps tasks pointing at a live
// category when theirs is deleted.
type CategoryStore struct {
	*EntityStore[model.Category, *model.Category]
	fallback *CategoryFallback
}

func NewCategoryStore(db *gorm.DB, logger *slog.Logger, fallback *CategoryFallback) *CategoryStore {
	return &CategoryStore{
		EntityStore: NewEntityStore[model.Category](db, logger, "category"),
		fallback:    fallback,
	}
}

// Delete moves every task of category id to the deleted sentinel and removes
// the category, all in one transaction. Deleting the sentinel itself is
// refused with false.
func (s *CategoryStore) Delete(ctx context.Context, id uint) (bool, error) {
	return s.deleteWith(ctx, "delete", id, func(tx *gorm.DB) (bool, error) {
		return s.reassignTasks(ctx, tx, id)
	})
}

func (s *CategoryStore) DeleteAsync(ctx context.Context, id uint) <-chan Result[bool] {
	return async(func() (bool, error) { return s.Delete(ctx, id) })
}

func (s *CategoryStore) reassignTasks(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	sentinel, err := s.fallback.WithTx(tx).DeletedCategory(ctx)
	if err != nil {
		return false, err
	}
	if sentinel == nil {
		return false, ErrSentinelMissing
	}
	if sentinel.ID == id {
		s.logger.Warn("refusing to delete fallback category", "entity", sentinel)
		return false, nil
	}

	res := tx.Model(&model.Task{}).Where("category_id = ?", id).UpdateColumn("category_id", sentinel.ID)
	if res.Error != nil {
		return false, fmt.Errorf("reassign tasks: %w", res.Error)
	}
	s.logger.Info("tasks reassigned", "from", id, "to", sentinel.ID, "count", res.RowsAffected)
	return true, nil
}
