package repository

import "errors"

var (
	// ErrValidation is returned before any transaction is opened when the
	// entity is nil or its name is blank.
	ErrValidation = errors.New("item is nil or item name is empty")
	// ErrSentinelMissing means the fallback categories were never seeded.
	ErrSentinelMissing = errors.New("fallback category is not seeded")
)
