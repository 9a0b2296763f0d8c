package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Menu item types
const (
	ItemTypeBase     = "base"
	ItemTypeSource   = "source"
	ItemTypeCombo    = "combo"
	ItemTypeBeverage = "beverage"
	ItemTypeSide     = "side"
)

// Pricing modes
const (
	PricingDirect = "direct"
	PricingBase   = "base"
	PricingSource = "source"
	PricingCombo  = "combo"
)

// Base categories, derived from the price of a base item
const (
	BaseCategoryFree    = "free"
	BaseCategoryPremium = "premium"
)

var (
	itemTypes    = []string{ItemTypeBase, ItemTypeSource, ItemTypeCombo, ItemTypeBeverage, ItemTypeSide}
	pricingTypes = []string{PricingDirect, PricingBase, PricingSource, PricingCombo}
)

type MenuItem struct {
	ID              uint                `gorm:"primaryKey" json:"id"`
	Name            string              `gorm:"type:varchar(200);not null" json:"name"`
	Description     string              `gorm:"type:text" json:"description"`
	CategoryID      *uint               `gorm:"index" json:"category_id,omitempty"`
	Category        *MenuCategory       `gorm:"foreignKey:CategoryID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"category,omitempty"`
	ItemType        string              `gorm:"type:varchar(20);not null;default:'combo'" json:"item_type"`
	PricingType     string              `gorm:"type:varchar(20);not null;default:'direct'" json:"pricing_type"`
	BaseCategory    *string             `gorm:"type:varchar(20)" json:"base_category"`
	Price           decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"price"`
	CostPrice       decimal.Decimal     `gorm:"type:decimal(10,2);not null;default:0" json:"cost_price"`
	BaseItemID      *uint               `gorm:"index" json:"base_item_id,omitempty"`
	BaseItem        *MenuItem           `gorm:"foreignKey:BaseItemID" json:"base_item,omitempty"`
	ProteinSourceID *uint               `gorm:"index" json:"protein_source_id,omitempty"`
	ProteinSource   *MenuItem           `gorm:"foreignKey:ProteinSourceID" json:"protein_source,omitempty"`
	// Sources a base item may be paired with at order time
	CompatibleSources []MenuItem `gorm:"many2many:menu_item_compatible_sources;joinForeignKey:MenuItemID;joinReferences:SourceID" json:"compatible_sources,omitempty"`
	IsAvailable       bool       `gorm:"not null;default:true" json:"is_available"`
	PreparationTime   int        `gorm:"not null;default:15" json:"preparation_time"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// ActualPrice returns the sale price of the item. A combo with both components
// loaded is priced as the sum of its components, whatever its own price or
// pricing mode says. Every other item sells at its own price, or 0 when unset.
func (m *MenuItem) ActualPrice() decimal.Decimal {
	if m.ItemType == ItemTypeCombo && m.BaseItem != nil && m.ProteinSource != nil {
		return m.BaseItem.ActualPrice().Add(m.ProteinSource.ActualPrice())
	}
	if m.Price.Valid {
		return m.Price.Decimal
	}
	return decimal.Zero
}

// DisplayName -> "Rice with Chicken" for combos, own name otherwise
func (m *MenuItem) DisplayName() string {
	if m.ItemType == ItemTypeCombo && m.BaseItem != nil && m.ProteinSource != nil {
		return fmt.Sprintf("%s with %s", m.BaseItem.Name, m.ProteinSource.Name)
	}
	return m.Name
}

// DeriveBaseCategory returns free/premium for base items and nil for anything else.
func (m *MenuItem) DeriveBaseCategory() *string {
	if m.ItemType != ItemTypeBase {
		return nil
	}
	category := BaseCategoryFree
	if m.Price.Valid && m.Price.Decimal.IsPositive() {
		category = BaseCategoryPremium
	}
	return &category
}

// Validate checks the catalog rules an item must satisfy before it can be priced.
func (m *MenuItem) Validate() error {
	if m.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if !contains(itemTypes, m.ItemType) {
		return &ValidationError{Field: "item_type", Message: fmt.Sprintf("unknown item type %q", m.ItemType)}
	}
	if !contains(pricingTypes, m.PricingType) {
		return &ValidationError{Field: "pricing_type", Message: fmt.Sprintf("unknown pricing type %q", m.PricingType)}
	}
	if m.ItemType == ItemTypeCombo {
		if m.BaseItemID == nil && m.BaseItem == nil {
			return &ValidationError{Field: "base_item", Message: "combo items must have a base item"}
		}
		if m.ProteinSourceID == nil && m.ProteinSource == nil {
			return &ValidationError{Field: "protein_source", Message: "combo items must have a protein source"}
		}
	}
	if m.PricingType == PricingDirect && !m.Price.Valid {
		return &ValidationError{Field: "price", Message: "direct pricing requires a price"}
	}
	if m.Price.Valid && m.Price.Decimal.IsNegative() {
		return &ValidationError{Field: "price", Message: "price must not be negative"}
	}
	if m.CostPrice.IsNegative() {
		return &ValidationError{Field: "cost_price", Message: "cost price must not be negative"}
	}
	return nil
}

// BeforeSave keeps base_category in step with the price on every create and save.
func (m *MenuItem) BeforeSave(tx *gorm.DB) error {
	m.BaseCategory = m.DeriveBaseCategory()
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
