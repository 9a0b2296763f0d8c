package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeremiapane/restaurant-momo/models"
	"gorm.io/gorm"
)

// Catalog resolves menu items for the order composer.
type Catalog interface {
	FindMenuItem(ctx context.Context, id uint) (*models.MenuItem, error)
}

// GormCatalog loads menu items with their combo components preloaded.
type GormCatalog struct {
	db *gorm.DB
}

func NewGormCatalog(db *gorm.DB) *GormCatalog {
	return &GormCatalog{db: db}
}

func (c *GormCatalog) FindMenuItem(ctx context.Context, id uint) (*models.MenuItem, error) {
	var item models.MenuItem
	err := c.db.WithContext(ctx).
		Preload("BaseItem").
		Preload("ProteinSource").
		First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMenuItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load menu item %d: %w", id, err)
	}
	return &item, nil
}
