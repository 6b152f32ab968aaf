package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"casual-tasker/internal/model"
)

// Seed makes sure both fallback categories exist and, on an empty task
// table, adds a starter task. It is safe to run on every start.
func Seed(ctx context.Context, categories *CategoryStore, tasks *TaskStore, fallback *CategoryFallback, logger *slog.Logger) error {
	for _, sentinel := range []struct {
		name   string
		lookup func(context.Context) (*model.Category, error)
	}{
		{DeletedCategoryName, fallback.DeletedCategory},
		{CommonCategoryName, fallback.CommonCategory},
	} {
		existing, err := sentinel.lookup(ctx)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		created, err := categories.Add(ctx, &model.Category{Name: sentinel.name})
		if err != nil {
			return fmt.Errorf("seed category %q: %w", sentinel.name, err)
		}
		logger.Info("fallback category seeded", "entity", created)
	}

	count, err := tasks.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	starter, err := tasks.Add(ctx, &model.Task{
		Name:        "Начало",
		Description: "Начальная задача, созданная при создании базы",
		DueDate:     time.Now(),
		Status:      model.StatusInProgress,
	})
	if err != nil {
		return fmt.Errorf("seed starter task: %w", err)
	}
	logger.Info("starter task seeded", "entity", starter)
	return nil
}
