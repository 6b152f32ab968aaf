package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"casual-tasker/internal/model"
)

// Store is what a cache needs from its backing store.
type Store[T any, PT model.EntityPtr[T]] interface {
	Add(ctx context.Context, item PT) (PT, error)
	Update(ctx context.Context, item PT) (PT, error)
	Delete(ctx context.Context, id uint) (bool, error)
	GetByID(ctx context.Context, id uint) (PT, error)
	GetAll(ctx context.Context) ([]PT, error)
}

// ObservableCache mirrors a store in memory and keeps the mirror in step with
// every mutation it forwards to the store.
//
// Mutations return false for rejected input and for missing entities; an error
// means the store failed and the mirror was left as it was.
type ObservableCache[T any, PT model.EntityPtr[T]] struct {
	store  Store[T, PT]
	view   *View[T, PT]
	logger *slog.Logger
}

// NewObservableCache loads the mirror from store.
func NewObservableCache[T any, PT model.EntityPtr[T]](ctx context.Context, kind string, store Store[T, PT], logger *slog.Logger) (*ObservableCache[T, PT], error) {
	c := &ObservableCache[T, PT]{
		store:  store,
		view:   NewView[T, PT](),
		logger: logger.With("component", kind+"_cache"),
	}
	if err := c.UpdateFromDB(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Add persists e and appends the stored entity to the mirror. On success e
// carries the id the store assigned.
func (c *ObservableCache[T, PT]) Add(ctx context.Context, e PT) (bool, error) {
	if !c.valid(e) {
		c.logger.Warn("add rejected: empty entity")
		return false, nil
	}
	exists, err := c.EntityExists(ctx, e)
	if err != nil {
		return false, err
	}
	if exists {
		c.logger.Warn("add rejected: entity exists", "id", e.GetID())
		return false, nil
	}

	added, err := c.store.Add(ctx, e)
	if err != nil {
		return false, err
	}
	if added == nil {
		return false, nil
	}

	c.view.add(added)
	return true, nil
}

// Delete removes e from the store and then from the mirror.
func (c *ObservableCache[T, PT]) Delete(ctx context.Context, e PT) (bool, error) {
	return c.deleteWith(ctx, e, nil)
}

// deleteWith calls deleted with the stored entity after the store delete
// succeeded and before the mirror entry is dropped.
func (c *ObservableCache[T, PT]) deleteWith(ctx context.Context, e PT, deleted func(PT)) (bool, error) {
	if e == nil {
		return false, nil
	}
	stored, err := c.store.GetByID(ctx, e.GetID())
	if err != nil {
		return false, err
	}
	if stored == nil {
		c.logger.Warn("delete rejected: entity not found", "id", e.GetID())
		return false, nil
	}

	ok, err := c.store.Delete(ctx, e.GetID())
	if err != nil || !ok {
		return false, err
	}

	if deleted != nil {
		deleted(stored)
	}
	c.view.remove(e.GetID())
	return true, nil
}

// Update merges e into its mirror entry. With writeThrough the store is
// updated first and the stored entity is merged instead of e; without it
// only entries already in the mirror can be updated.
func (c *ObservableCache[T, PT]) Update(ctx context.Context, e PT, writeThrough bool) (bool, error) {
	_, ok, err := c.update(ctx, e, writeThrough)
	return ok, err
}

func (c *ObservableCache[T, PT]) update(ctx context.Context, e PT, writeThrough bool) (PT, bool, error) {
	if !c.valid(e) {
		c.logger.Warn("update rejected: empty entity")
		return nil, false, nil
	}

	if !writeThrough {
		merged, ok := c.view.merge(e, false)
		if !ok {
			c.logger.Debug("mirror update skipped: entity not mirrored", "id", e.GetID())
		}
		return merged, ok, nil
	}

	updated, err := c.store.Update(ctx, e)
	if err != nil {
		return nil, false, err
	}
	if updated == nil {
		c.logger.Warn("update rejected: entity not found", "id", e.GetID())
		return nil, false, nil
	}

	merged, _ := c.view.merge(updated, true)
	return merged, true, nil
}

// BatchUpdate merges every entity into the mirror without touching the store
// and returns how many entries were updated.
func (c *ObservableCache[T, PT]) BatchUpdate(ctx context.Context, es []PT) int {
	n := 0
	for _, e := range es {
		if ok, _ := c.Update(ctx, e, false); ok {
			n++
		}
	}
	return n
}

// UpdateFromDB replaces the mirror with a fresh read of the store.
func (c *ObservableCache[T, PT]) UpdateFromDB(ctx context.Context) error {
	items, err := c.store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("reload mirror: %w", err)
	}
	c.view.reset(items)
	c.logger.Debug("mirror reloaded", "count", len(items))
	return nil
}

// Get looks id up in the mirror only.
func (c *ObservableCache[T, PT]) Get(id uint) PT {
	return c.view.get(id)
}

// GetEntity looks e's id up in the mirror only.
func (c *ObservableCache[T, PT]) GetEntity(e PT) PT {
	if e == nil {
		return nil
	}
	return c.view.get(e.GetID())
}

// First returns the oldest mirror entry, or nil for an empty mirror.
func (c *ObservableCache[T, PT]) First() PT {
	return c.view.first()
}

// Entities returns a copy of the whole mirror, ignoring the view filter.
func (c *ObservableCache[T, PT]) Entities() []PT {
	return c.view.All()
}

func (c *ObservableCache[T, PT]) View() *View[T, PT] {
	return c.view
}

// DefaultDeletedEntity is the replacement for references to deleted entries.
// Plain caches have none.
func (c *ObservableCache[T, PT]) DefaultDeletedEntity(ctx context.Context) (PT, error) {
	return nil, nil
}

// EntityExists asks the store, not the mirror.
func (c *ObservableCache[T, PT]) EntityExists(ctx context.Context, e PT) (bool, error) {
	if e == nil || e.GetID() == 0 {
		return false, nil
	}
	stored, err := c.store.GetByID(ctx, e.GetID())
	if err != nil {
		return false, err
	}
	return stored != nil, nil
}

func (c *ObservableCache[T, PT]) valid(e PT) bool {
	return e != nil && strings.TrimSpace(e.GetName()) != ""
}
