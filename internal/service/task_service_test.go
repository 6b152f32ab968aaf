package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casual-tasker/internal/model"
	"casual-tasker/internal/repository"
)

func TestTaskServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newDataRepository(t)
	categories := NewCategoryService(repo.Categories)
	svc := NewTaskService(repo.Tasks)

	work, err := categories.Create(ctx, "Work", "")
	require.NoError(t, err)

	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	task, err := svc.CreateTask(ctx, TaskInput{Name: " Report ", Description: "quarterly", CategoryID: work.ID, DueDate: due})
	require.NoError(t, err)
	assert.Equal(t, "Report", task.Name)
	assert.Equal(t, "Work", task.Category.Name)
	assert.Equal(t, model.StatusInProgress, task.Status)
	assert.True(t, due.Equal(task.DueDate))

	plain, err := svc.CreateTask(ctx, TaskInput{Name: "Plain"})
	require.NoError(t, err)
	assert.Equal(t, repository.CommonCategoryName, plain.Category.Name)

	_, err = svc.CreateTask(ctx, TaskInput{Name: "  "})
	assert.ErrorIs(t, err, ErrEmptyName)

	inWork := svc.ListTasks(work.ID)
	require.Len(t, inWork, 1)
	assert.Equal(t, task.ID, inWork[0].ID)
	assert.Len(t, svc.ListTasks(0), 3)

	done, err := svc.SetStatus(ctx, task.ID, model.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)

	_, err = svc.SetStatus(ctx, 999, model.StatusCompleted)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	require.NoError(t, svc.DeleteTask(ctx, task.ID))
	_, err = svc.GetTask(task.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
	assert.ErrorIs(t, svc.DeleteTask(ctx, task.ID), ErrTaskNotFound)
}
