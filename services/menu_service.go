package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/yeremiapane/restaurant-momo/models"
	"gorm.io/gorm"
)

// MenuItemInput carries the editable fields of a menu item. A nil Price means
// the item has no price of its own.
type MenuItemInput struct {
	Name                string           `json:"name"`
	Description         string           `json:"description"`
	CategoryID          *uint            `json:"category_id"`
	ItemType            string           `json:"item_type"`
	PricingType         string           `json:"pricing_type"`
	Price               *decimal.Decimal `json:"price"`
	CostPrice           decimal.Decimal  `json:"cost_price"`
	BaseItemID          *uint            `json:"base_item_id"`
	ProteinSourceID     *uint            `json:"protein_source_id"`
	CompatibleSourceIDs []uint           `json:"compatible_source_ids"`
	IsAvailable         *bool            `json:"is_available"`
	PreparationTime     int              `json:"preparation_time"`
}

type MenuFilter struct {
	ItemType      string
	AvailableOnly bool
}

type MenuService struct {
	db *gorm.DB
}

func NewMenuService(db *gorm.DB) *MenuService {
	return &MenuService{db: db}
}

func (in MenuItemInput) apply(item *models.MenuItem) {
	item.Name = in.Name
	item.Description = in.Description
	item.CategoryID = in.CategoryID
	item.ItemType = in.ItemType
	item.PricingType = in.PricingType
	item.Price = decimal.NullDecimal{}
	if in.Price != nil {
		item.Price = decimal.NewNullDecimal(*in.Price)
	}
	item.CostPrice = in.CostPrice
	item.BaseItemID = in.BaseItemID
	item.ProteinSourceID = in.ProteinSourceID
	item.IsAvailable = true
	if in.IsAvailable != nil {
		item.IsAvailable = *in.IsAvailable
	}
	if in.PreparationTime > 0 {
		item.PreparationTime = in.PreparationTime
	}
	if item.PreparationTime == 0 {
		item.PreparationTime = 15
	}
}

func (s *MenuService) CreateMenuItem(ctx context.Context, in MenuItemInput) (*models.MenuItem, error) {
	var item models.MenuItem
	in.apply(&item)
	if err := item.Validate(); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkComponents(tx, &item); err != nil {
			return err
		}
		if err := tx.Omit("Category", "BaseItem", "ProteinSource", "CompatibleSources").Create(&item).Error; err != nil {
			return fmt.Errorf("create menu item: %w", err)
		}
		// is_available has a database default, so false must be written explicitly
		if !item.IsAvailable {
			if err := tx.Model(&item).Update("is_available", false).Error; err != nil {
				return fmt.Errorf("update availability of menu item %d: %w", item.ID, err)
			}
		}
		return replaceCompatibleSources(tx, &item, in.CompatibleSourceIDs)
	})
	if err != nil {
		return nil, err
	}
	return s.GetMenuItem(ctx, item.ID)
}

func (s *MenuService) UpdateMenuItem(ctx context.Context, id uint, in MenuItemInput) (*models.MenuItem, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.MenuItem
		if err := tx.First(&item, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMenuItemNotFound
			}
			return fmt.Errorf("load menu item %d: %w", id, err)
		}

		in.apply(&item)
		if err := item.Validate(); err != nil {
			return err
		}
		if err := checkComponents(tx, &item); err != nil {
			return err
		}
		if err := tx.Omit("Category", "BaseItem", "ProteinSource", "CompatibleSources").Save(&item).Error; err != nil {
			return fmt.Errorf("save menu item %d: %w", id, err)
		}
		return replaceCompatibleSources(tx, &item, in.CompatibleSourceIDs)
	})
	if err != nil {
		return nil, err
	}
	return s.GetMenuItem(ctx, id)
}

func (s *MenuService) GetMenuItem(ctx context.Context, id uint) (*models.MenuItem, error) {
	var item models.MenuItem
	err := s.db.WithContext(ctx).
		Preload("Category").
		Preload("BaseItem").
		Preload("ProteinSource").
		Preload("CompatibleSources").
		First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMenuItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load menu item %d: %w", id, err)
	}
	return &item, nil
}

func (s *MenuService) ListMenu(ctx context.Context, filter MenuFilter) ([]models.MenuItem, error) {
	query := s.db.WithContext(ctx).
		Preload("Category").
		Preload("BaseItem").
		Preload("ProteinSource").
		Order("item_type ASC, name ASC")
	if filter.ItemType != "" {
		query = query.Where("item_type = ?", filter.ItemType)
	}
	if filter.AvailableOnly {
		query = query.Where("is_available = ?", true)
	}

	var items []models.MenuItem
	if err := query.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}
	return items, nil
}

// checkComponents makes sure a combo points at an existing base and source.
func checkComponents(tx *gorm.DB, item *models.MenuItem) error {
	check := func(id *uint, wantType, field string) error {
		if id == nil {
			return nil
		}
		var component models.MenuItem
		if err := tx.First(&component, *id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &models.ValidationError{Field: field, Message: fmt.Sprintf("menu item %d does not exist", *id)}
			}
			return fmt.Errorf("load %s %d: %w", field, *id, err)
		}
		if component.ItemType != wantType {
			return &models.ValidationError{Field: field, Message: fmt.Sprintf("menu item %d is not a %s item", *id, wantType)}
		}
		return nil
	}

	if err := check(item.BaseItemID, models.ItemTypeBase, "base_item"); err != nil {
		return err
	}
	return check(item.ProteinSourceID, models.ItemTypeSource, "protein_source")
}

func replaceCompatibleSources(tx *gorm.DB, item *models.MenuItem, ids []uint) error {
	var sources []models.MenuItem
	if len(ids) > 0 {
		if err := tx.Where("id IN ? AND item_type = ?", ids, models.ItemTypeSource).Find(&sources).Error; err != nil {
			return fmt.Errorf("load compatible sources: %w", err)
		}
		if len(sources) != len(ids) {
			return &models.ValidationError{Field: "compatible_source_ids", Message: "every compatible source must be an existing source item"}
		}
	}
	if err := tx.Model(item).Association("CompatibleSources").Replace(sources); err != nil {
		return fmt.Errorf("replace compatible sources of menu item %d: %w", item.ID, err)
	}
	return nil
}
