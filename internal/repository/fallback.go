package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"casual-tasker/internal/model"
)

// Names of the two categories every database is seeded with.
const (
	DeletedCategoryName = "Удалено"
	CommonCategoryName  = "Общее"
)

// CategoryFallback resolves the sentinel categories by name on every call.
type CategoryFallback struct {
	db *gorm.DB
}

func NewCategoryFallback(db *gorm.DB) *CategoryFallback {
	return &CategoryFallback{db: db}
}

// WithTx returns a provider whose lookups run inside tx.
func (f *CategoryFallback) WithTx(tx *gorm.DB) *CategoryFallback {
	return &CategoryFallback{db: tx}
}

// DeletedCategory is the target of tasks whose category was removed.
// It returns nil when the database was never seeded.
func (f *CategoryFallback) DeletedCategory(ctx context.Context) (*model.Category, error) {
	return f.byName(ctx, DeletedCategoryName)
}

// CommonCategory is assigned to tasks created without a category.
// It returns nil when the database was never seeded.
func (f *CategoryFallback) CommonCategory(ctx context.Context) (*model.Category, error) {
	return f.byName(ctx, CommonCategoryName)
}

func (f *CategoryFallback) byName(ctx context.Context, name string) (*model.Category, error) {
	var category model.Category
	err := f.db.WithContext(ctx).Where("name = ?", name).Order("id").First(&category).Error
	switch {
	case err == nil:
		return &category, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find category %q: %w", name, err)
	}
}
