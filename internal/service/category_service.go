package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"casual-tasker/internal/cache"
	"casual-tasker/internal/model"
)

var (
	ErrCategoryNotFound  = errors.New("category not found")
	ErrCategoryProtected = errors.New("fallback category cannot be renamed or deleted")
	ErrInvalidColor      = errors.New("color must look like #RRGGBB")
	ErrEmptyName         = errors.New("name is required")
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// CategoryService provides helpers around categories.
type CategoryService struct {
	categories *cache.CategoryCache
}

func NewCategoryService(categories *cache.CategoryCache) *CategoryService {
	return &CategoryService{categories: categories}
}

// List returns the mirrored categories in creation order.
func (s *CategoryService) List() []*model.Category {
	return s.categories.Entities()
}

func (s *CategoryService) Get(id uint) (*model.Category, error) {
	category := s.categories.Get(id)
	if category == nil {
		return nil, ErrCategoryNotFound
	}
	return category, nil
}

// Create adds a category; an empty color gets the default one.
func (s *CategoryService) Create(ctx context.Context, name, color string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	color = strings.ToUpper(strings.TrimSpace(color))
	if color != "" && !colorPattern.MatchString(color) {
		return nil, ErrInvalidColor
	}

	category := &model.Category{Name: name, Color: color}
	ok, err := s.categories.Add(ctx, category)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("category %q was not added", name)
	}
	return s.categories.Get(category.ID), nil
}

func (s *CategoryService) Rename(ctx context.Context, id uint, name string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	category, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	fallback, err := s.categories.IsFallback(ctx, id)
	if err != nil {
		return nil, err
	}
	if fallback {
		return nil, ErrCategoryProtected
	}

	category.Name = name
	ok, err := s.categories.Update(ctx, category, true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCategoryNotFound
	}
	return s.categories.Get(id), nil
}

// Delete removes a category. Its tasks move to the deleted category.
func (s *CategoryService) Delete(ctx context.Context, id uint) error {
	category, err := s.Get(id)
	if err != nil {
		return err
	}
	sentinel, err := s.categories.DefaultDeletedEntity(ctx)
	if err != nil {
		return err
	}
	if sentinel != nil && sentinel.ID == id {
		return ErrCategoryProtected
	}

	ok, err := s.categories.Delete(ctx, category)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCategoryNotFound
	}
	return nil
}
