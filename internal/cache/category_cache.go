package cache

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"casual-tasker/internal/model"
	"casual-tasker/internal/repository"
)

// CategoryListener receives category changes from a CategoryCache. Calls are
// made synchronously on the goroutine that performed the change.
type CategoryListener interface {
	// CategoryDeleted fires once the store has removed the category and its
	// tasks were moved to the deleted sentinel.
	CategoryDeleted(ctx context.Context, category *model.Category)
	CategoryUpdated(ctx context.Context, category *model.Category)
}

// CategoryCache is the category mirror. It refuses to delete the deleted
// sentinel and tells its listeners about deletions and updates.
type CategoryCache struct {
	*ObservableCache[model.Category, *model.Category]
	fallback *repository.CategoryFallback

	mu        sync.Mutex
	listeners []*categorySubscription
}

type categorySubscription struct {
	listener CategoryListener
}

func NewCategoryCache(ctx context.Context, store *repository.CategoryStore, fallback *repository.CategoryFallback, logger *slog.Logger) (*CategoryCache, error) {
	base, err := NewObservableCache[model.Category, *model.Category](ctx, "category", store, logger)
	if err != nil {
		return nil, err
	}
	return &CategoryCache{ObservableCache: base, fallback: fallback}, nil
}

// DefaultDeletedEntity returns the deleted sentinel.
func (c *CategoryCache) DefaultDeletedEntity(ctx context.Context) (*model.Category, error) {
	return c.fallback.DeletedCategory(ctx)
}

// Delete removes category from the store. Listeners get CategoryDeleted after
// the store delete and before the entry leaves the mirror.
func (c *CategoryCache) Delete(ctx context.Context, category *model.Category) (bool, error) {
	if category == nil {
		return false, nil
	}
	sentinel, err := c.DefaultDeletedEntity(ctx)
	if err != nil {
		return false, err
	}
	if sentinel != nil && sentinel.ID == category.ID {
		c.logger.Warn("delete rejected: fallback category", "entity", sentinel)
		return false, nil
	}

	return c.deleteWith(ctx, category, func(deleted *model.Category) {
		for _, l := range c.subscribers() {
			l.CategoryDeleted(ctx, deleted.Clone())
		}
	})
}

// Update refuses to write a new name for either fallback category, since the
// fallback lookups go by name.
func (c *CategoryCache) Update(ctx context.Context, category *model.Category, writeThrough bool) (bool, error) {
	if writeThrough && category != nil {
		renamed, err := c.renamesFallback(ctx, category)
		if err != nil {
			return false, err
		}
		if renamed {
			c.logger.Warn("update rejected: fallback category rename", "entity", category)
			return false, nil
		}
	}

	updated, ok, err := c.update(ctx, category, writeThrough)
	if err != nil || !ok {
		return ok, err
	}
	for _, l := range c.subscribers() {
		l.CategoryUpdated(ctx, updated.Clone())
	}
	return true, nil
}

// IsFallback reports whether id belongs to the deleted or the common category.
func (c *CategoryCache) IsFallback(ctx context.Context, id uint) (bool, error) {
	fallback, err := c.fallbackByID(ctx, id)
	return fallback != nil, err
}

func (c *CategoryCache) renamesFallback(ctx context.Context, category *model.Category) (bool, error) {
	fallback, err := c.fallbackByID(ctx, category.ID)
	if err != nil || fallback == nil {
		return false, err
	}
	return strings.TrimSpace(category.Name) != fallback.Name, nil
}

func (c *CategoryCache) fallbackByID(ctx context.Context, id uint) (*model.Category, error) {
	for _, lookup := range []func(context.Context) (*model.Category, error){c.fallback.DeletedCategory, c.fallback.CommonCategory} {
		category, err := lookup(ctx)
		if err != nil {
			return nil, err
		}
		if category != nil && category.ID == id {
			return category, nil
		}
	}
	return nil, nil
}

// BatchUpdate is the mirror-only batch form of Update.
func (c *CategoryCache) BatchUpdate(ctx context.Context, categories []*model.Category) int {
	n := 0
	for _, category := range categories {
		if ok, _ := c.Update(ctx, category, false); ok {
			n++
		}
	}
	return n
}

// Subscribe adds l to the listeners and returns a func that removes it.
func (c *CategoryCache) Subscribe(l CategoryListener) (cancel func()) {
	sub := &categorySubscription{listener: l}

	c.mu.Lock()
	c.listeners = append(c.listeners, sub)
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.listeners {
			if s == sub {
				c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

func (c *CategoryCache) subscribers() []CategoryListener {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]CategoryListener, len(c.listeners))
	for i, s := range c.listeners {
		out[i] = s.listener
	}
	return out
}
