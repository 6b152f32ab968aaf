package model

import (
	"log/slog"

	"gorm.io/gorm"
)

// DefaultCategoryColor is assigned to categories saved without a color.
const DefaultCategoryColor = "#FFFF00"

// Category groups tasks by area (work, health, study, etc.).
type Category struct {
	ID    uint   `gorm:"primaryKey"`
	Name  string `gorm:"not null;index"`
	Color string `gorm:"not null"`
}

func (c *Category) GetID() uint     { return c.ID }
func (c *Category) GetName() string { return c.Name }

// Clone returns a detached copy of the category.
func (c *Category) Clone() *Category {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// MergeFrom overwrites every field with the values of other, keeping c's identity.
func (c *Category) MergeFrom(other *Category) {
	if other == nil {
		return
	}
	c.ID = other.ID
	c.Name = other.Name
	c.Color = other.Color
}

func (c *Category) BeforeSave(tx *gorm.DB) error {
	if c.Color == "" {
		c.Color = DefaultCategoryColor
	}
	return nil
}

func (c *Category) LogValue() slog.Value {
	if c == nil {
		return slog.StringValue("<nil>")
	}
	return slog.GroupValue(
		slog.Uint64("id", uint64(c.ID)),
		slog.String("name", c.Name),
		slog.String("color", c.Color),
	)
}
