package model

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
)

// TaskStatus tracks where a task is in its lifecycle.
type TaskStatus int

const (
	StatusInProgress TaskStatus = iota + 1
	StatusCompleted
	StatusPostponed
)

func (s TaskStatus) String() string {
	switch s {
	case StatusInProgress:
		return "inprogress"
	case StatusCompleted:
		return "completed"
	case StatusPostponed:
		return "postponed"
	default:
		return fmt.Sprintf("TaskStatus(%d)", int(s))
	}
}

// ParseTaskStatus accepts the String form, case-insensitively.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "inprogress", "in_progress", "in-progress":
		return StatusInProgress, nil
	case "completed", "done":
		return StatusCompleted, nil
	case "postponed":
		return StatusPostponed, nil
	default:
		return 0, fmt.Errorf("unknown task status %q", raw)
	}
}

// Task represents a single item in the planner.
type Task struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Description string
	DueDate     time.Time
	Status      TaskStatus `gorm:"not null"`
	CategoryID  uint       `gorm:"index"`
	Category    *Category
}

func (t *Task) GetID() uint     { return t.ID }
func (t *Task) GetName() string { return t.Name }

// Clone returns a copy of the task with its own copy of the category.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Category = t.Category.Clone()
	return &cp
}

// MergeFrom overwrites every field with the values of other, keeping t's identity.
// The category is copied, never shared.
func (t *Task) MergeFrom(other *Task) {
	if other == nil {
		return
	}
	t.ID = other.ID
	t.Name = other.Name
	t.Description = other.Description
	t.DueDate = other.DueDate
	t.Status = other.Status
	t.CategoryID = other.CategoryID
	t.Category = other.Category.Clone()
	if t.Category != nil {
		t.CategoryID = t.Category.ID
	}
}

// BeforeSave keeps the foreign key in line with the attached category.
func (t *Task) BeforeSave(tx *gorm.DB) error {
	if t.Category != nil {
		t.CategoryID = t.Category.ID
	}
	if t.Status == 0 {
		t.Status = StatusInProgress
	}
	return nil
}

func (t *Task) LogValue() slog.Value {
	if t == nil {
		return slog.StringValue("<nil>")
	}
	return slog.GroupValue(
		slog.Uint64("id", uint64(t.ID)),
		slog.String("name", t.Name),
		slog.String("status", t.Status.String()),
		slog.Uint64("category_id", uint64(t.CategoryID)),
	)
}
