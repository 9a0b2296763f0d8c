package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderItem struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	OrderID uint `gorm:"not null;index" json:"order_id"`
	// Omitting Order field from JSON to avoid recursive nesting
	Order      *Order          `gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	MenuItemID uint            `gorm:"not null;index" json:"menu_item_id"`
	MenuItem   *MenuItem       `gorm:"foreignKey:MenuItemID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"menu_item,omitempty"`
	Quantity   int             `gorm:"not null;default:1" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	Notes      string          `gorm:"type:text" json:"notes"`

	IsCustomCombo         bool      `gorm:"not null;default:false" json:"is_custom_combo"`
	CustomBaseItemID      *uint     `json:"custom_base_item_id,omitempty"`
	CustomBaseItem        *MenuItem `gorm:"foreignKey:CustomBaseItemID;constraint:OnDelete:SET NULL" json:"custom_base_item,omitempty"`
	CustomProteinSourceID *uint     `json:"custom_protein_source_id,omitempty"`
	CustomProteinSource   *MenuItem `gorm:"foreignKey:CustomProteinSourceID;constraint:OnDelete:SET NULL" json:"custom_protein_source,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// Subtotal -> quantity * unit_price
func (oi *OrderItem) Subtotal() decimal.Decimal {
	return oi.UnitPrice.Mul(decimal.NewFromInt(int64(oi.Quantity)))
}

// DisplayName returns the label printed on tickets and receipts. Ad hoc lines
// carry their label in notes.
func (oi *OrderItem) DisplayName() string {
	if oi.IsCustomCombo && oi.Notes == "" && oi.CustomBaseItem != nil && oi.CustomProteinSource != nil {
		return fmt.Sprintf("%s with %s", oi.CustomBaseItem.Name, oi.CustomProteinSource.Name)
	}
	if oi.Notes != "" {
		return oi.Notes
	}
	if oi.MenuItem != nil {
		return oi.MenuItem.DisplayName()
	}
	return fmt.Sprintf("Item #%d", oi.MenuItemID)
}

func (oi OrderItem) MarshalJSON() ([]byte, error) {
	type alias OrderItem
	return json.Marshal(struct {
		alias
		Subtotal    decimal.Decimal `json:"subtotal"`
		DisplayName string          `json:"display_name"`
	}{
		alias:       alias(oi),
		Subtotal:    oi.Subtotal(),
		DisplayName: oi.DisplayName(),
	})
}

// AfterSave keeps the owning order's total equal to the sum of its items.
func (oi *OrderItem) AfterSave(tx *gorm.DB) error {
	return RecalculateOrderTotal(tx, oi.OrderID)
}

// AfterDelete mirrors AfterSave for removed lines.
func (oi *OrderItem) AfterDelete(tx *gorm.DB) error {
	return RecalculateOrderTotal(tx, oi.OrderID)
}

// RecalculateOrderTotal reloads the order's items and writes their sum as the
// authoritative total. Zero orderID is ignored (bulk deletes by condition).
func RecalculateOrderTotal(tx *gorm.DB, orderID uint) error {
	if orderID == 0 {
		return nil
	}

	var items []OrderItem
	if err := tx.Where("order_id = ?", orderID).Find(&items).Error; err != nil {
		return fmt.Errorf("load items for order %d: %w", orderID, err)
	}

	total := decimal.Zero
	for i := range items {
		total = total.Add(items[i].Subtotal())
	}

	if err := tx.Model(&Order{}).Where("id = ?", orderID).UpdateColumn("total_amount", total).Error; err != nil {
		return fmt.Errorf("update total for order %d: %w", orderID, err)
	}
	return nil
}
