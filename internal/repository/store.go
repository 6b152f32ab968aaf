package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"casual-tasker/internal/model"
)

// Result carries the outcome of an asynchronous store call.
type Result[R any] struct {
	Value R
	Err   error
}

func async[R any](fn func() (R, error)) <-chan Result[R] {
	ch := make(chan Result[R], 1)
	go func() {
		value, err := fn()
		ch <- Result[R]{Value: value, Err: err}
	}()
	return ch
}

// EntityStore is the transactional CRUD wrapper for one entity kind.
//
// Every mutating call validates its input, probes for the row outside of any
// transaction, runs the write inside its own transaction and re-reads the row
// afterwards, so the returned entity always reflects what was persisted.
type EntityStore[T any, PT model.EntityPtr[T]] struct {
	db       *gorm.DB
	logger   *slog.Logger
	kind     string
	preloads []string
}

// NewEntityStore builds a store for kind; preloads name associations that
// every read must eagerly include.
func NewEntityStore[T any, PT model.EntityPtr[T]](db *gorm.DB, logger *slog.Logger, kind string, preloads ...string) *EntityStore[T, PT] {
	return &EntityStore[T, PT]{
		db:       db,
		logger:   logger.With("component", kind+"_store"),
		kind:     kind,
		preloads: preloads,
	}
}

// Add inserts item unless a row with its id already exists, in which case the
// persisted row is returned untouched.
func (s *EntityStore[T, PT]) Add(ctx context.Context, item PT) (PT, error) {
	if err := s.validate("add", item); err != nil {
		return nil, err
	}
	return s.add(ctx, item)
}

// add is Add for an item that already passed validate.
func (s *EntityStore[T, PT]) add(ctx context.Context, item PT) (PT, error) {
	const op = "add"
	if item.GetID() != 0 {
		existing, err := s.probe(ctx, op, item.GetID())
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	err := s.inTx(ctx, op, item, func(tx *gorm.DB) error {
		return tx.Omit(clause.Associations).Create(item).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("entity added", "entity", item)
	return s.GetByID(ctx, item.GetID())
}

// Update saves every column of item. A missing row yields (nil, nil).
func (s *EntityStore[T, PT]) Update(ctx context.Context, item PT) (PT, error) {
	if err := s.validate("update", item); err != nil {
		return nil, err
	}
	return s.update(ctx, item)
}

func (s *EntityStore[T, PT]) update(ctx context.Context, item PT) (PT, error) {
	const op = "update"
	existing, err := s.probe(ctx, op, item.GetID())
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	err = s.inTx(ctx, op, item, func(tx *gorm.DB) error {
		return tx.Omit(clause.Associations).Save(item).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("entity updated", "entity", item)
	return s.GetByID(ctx, item.GetID())
}

// Delete removes the row with id and reports whether it existed.
func (s *EntityStore[T, PT]) Delete(ctx context.Context, id uint) (bool, error) {
	return s.deleteWith(ctx, "delete", id, nil)
}

// deleteWith runs before inside the delete transaction. When before reports
// false the row is kept and Delete returns false.
func (s *EntityStore[T, PT]) deleteWith(ctx context.Context, op string, id uint, before func(tx *gorm.DB) (bool, error)) (bool, error) {
	existing, err := s.probe(ctx, op, id)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}

	proceed := true
	err = s.inTx(ctx, op, existing, func(tx *gorm.DB) error {
		if before != nil {
			ok, err := before(tx)
			if err != nil {
				return err
			}
			if !ok {
				proceed = false
				return nil
			}
		}
		return tx.Delete(PT(new(T)), id).Error
	})
	if err != nil {
		return false, err
	}
	if !proceed {
		return false, nil
	}

	s.logger.Info("entity deleted", "entity", existing)
	return true, nil
}

// GetAll reads every row fresh from the backend, ordered by id.
func (s *EntityStore[T, PT]) GetAll(ctx context.Context) ([]PT, error) {
	var rows []T
	if err := s.query(s.session(ctx)).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", s.kind, err)
	}
	items := make([]PT, len(rows))
	for i := range rows {
		items[i] = &rows[i]
	}
	return items, nil
}

// GetByID returns nil when no row has id.
func (s *EntityStore[T, PT]) GetByID(ctx context.Context, id uint) (PT, error) {
	var row T
	err := s.query(s.session(ctx)).Where("id = ?", id).Take(&row).Error
	switch {
	case err == nil:
		return &row, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("get %s %d: %w", s.kind, id, err)
	}
}

// Count returns the number of stored rows.
func (s *EntityStore[T, PT]) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.session(ctx).Model(PT(new(T))).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", s.kind, err)
	}
	return n, nil
}

func (s *EntityStore[T, PT]) AddAsync(ctx context.Context, item PT) <-chan Result[PT] {
	return async(func() (PT, error) { return s.Add(ctx, item) })
}

func (s *EntityStore[T, PT]) UpdateAsync(ctx context.Context, item PT) <-chan Result[PT] {
	return async(func() (PT, error) { return s.Update(ctx, item) })
}

func (s *EntityStore[T, PT]) DeleteAsync(ctx context.Context, id uint) <-chan Result[bool] {
	return async(func() (bool, error) { return s.Delete(ctx, id) })
}

func (s *EntityStore[T, PT]) validate(op string, item PT) error {
	if item == nil || strings.TrimSpace(item.GetName()) == "" {
		s.logger.Error("invalid entity", "op", op, "kind", s.kind)
		return ErrValidation
	}
	return nil
}

func (s *EntityStore[T, PT]) probe(ctx context.Context, op string, id uint) (PT, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		s.logger.Info("entity not found", "op", op, "id", id)
	} else {
		s.logger.Debug("entity exists", "op", op, "entity", existing)
	}
	return existing, nil
}

// inTx runs fn in a transaction that is committed when fn returns nil and
// rolled back on error or panic.
func (s *EntityStore[T, PT]) inTx(ctx context.Context, op string, item any, fn func(tx *gorm.DB) error) error {
	logger := s.logger.With("op", op, "tx", uuid.NewString())
	logger.Debug("transaction opened")

	if err := s.session(ctx).Transaction(fn); err != nil {
		logger.Error("transaction rolled back", "entity", item, "error", err)
		return fmt.Errorf("%s %s: %w", op, s.kind, err)
	}

	logger.Debug("transaction committed")
	return nil
}

// session starts from a clean statement so no state leaks between calls.
func (s *EntityStore[T, PT]) session(ctx context.Context) *gorm.DB {
	return s.db.Session(&gorm.Session{NewDB: true, Context: ctx})
}

func (s *EntityStore[T, PT]) query(db *gorm.DB) *gorm.DB {
	for _, assoc := range s.preloads {
		db = db.Preload(assoc)
	}
	return db
}
