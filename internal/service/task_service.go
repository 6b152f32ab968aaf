package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"casual-tasker/internal/cache"
	"casual-tasker/internal/model"
)

var ErrTaskNotFound = errors.New("task not found")

// TaskInput represents data required to create a task.
type TaskInput struct {
	Name        string
	Description string
	// CategoryID 0 puts the task into the common category.
	CategoryID uint
	DueDate    time.Time
}

// TaskService wraps task-related business logic.
type TaskService struct {
	tasks *cache.TaskCache
}

func NewTaskService(tasks *cache.TaskCache) *TaskService {
	return &TaskService{tasks: tasks}
}

func (s *TaskService) CreateTask(ctx context.Context, input TaskInput) (*model.Task, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, ErrEmptyName
	}

	task := &model.Task{
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		DueDate:     input.DueDate,
		Status:      model.StatusInProgress,
	}
	if input.CategoryID != 0 {
		task.Category = &model.Category{ID: input.CategoryID}
	}

	ok, err := s.tasks.Add(ctx, task)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("task %q was not added", task.Name)
	}
	return s.tasks.Get(task.ID), nil
}

// ListTasks narrows the task view to one category (0 shows all) and returns
// what it shows. The filter is shared view state: it stays set for later
// Items readers until the next call.
func (s *TaskService) ListTasks(categoryID uint) []*model.Task {
	if categoryID == 0 {
		return s.tasks.View().Filter(nil)
	}
	return s.tasks.View().Filter(func(t *model.Task) bool { return t.CategoryID == categoryID })
}

func (s *TaskService) GetTask(id uint) (*model.Task, error) {
	task := s.tasks.Get(id)
	if task == nil {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

func (s *TaskService) SetStatus(ctx context.Context, id uint, status model.TaskStatus) (*model.Task, error) {
	task, err := s.GetTask(id)
	if err != nil {
		return nil, err
	}

	task.Status = status
	ok, err := s.tasks.Update(ctx, task, true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTaskNotFound
	}
	return s.tasks.Get(id), nil
}

// DeleteTask removes a task completely.
func (s *TaskService) DeleteTask(ctx context.Context, id uint) error {
	task, err := s.GetTask(id)
	if err != nil {
		return err
	}
	ok, err := s.tasks.Delete(ctx, task)
	if err != nil {
		return err
	}
	if !ok {
		return ErrTaskNotFound
	}
	return nil
}
