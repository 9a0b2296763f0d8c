package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/yeremiapane/restaurant-momo/models"
)

// Cart line kinds
const (
	LineCatalog     = "catalog"
	LineProteinOnly = "protein_only"
	LineCustomCombo = "custom_combo"
	LineBaseOnly    = "base_only"
)

// CartLine is one requested line. Which ids matter depends on Kind:
// catalog uses MenuItemID, protein_only uses ProteinSourceID, custom_combo uses
// BaseItemIDs and ProteinSourceID, base_only uses BaseItemIDs.
type CartLine struct {
	Kind            string `json:"type"`
	MenuItemID      uint   `json:"menu_item_id"`
	ProteinSourceID uint   `json:"protein_source_id"`
	BaseItemIDs     []uint `json:"base_item_ids"`
	Quantity        int    `json:"quantity"`
	Notes           string `json:"notes"`
}

// kind fills in the line kind when the client left it out.
func (l CartLine) kind() string {
	if l.Kind != "" {
		return l.Kind
	}
	if l.MenuItemID != 0 {
		return LineCatalog
	}
	return LineCustomCombo
}

type Cart struct {
	Lines []CartLine `json:"items"`
}

// ComposedOrder holds the priced, not yet persisted, lines of an order.
type ComposedOrder struct {
	Items    []models.OrderItem
	Total    decimal.Decimal
	Warnings []string
}

type composer struct {
	ctx      context.Context
	catalog  Catalog
	line     int
	warnings []string
}

// ComposeOrder prices every cart line against the catalog. Lines that cannot be
// resolved are skipped and reported in Warnings; only catalog failures abort.
func ComposeOrder(ctx context.Context, cart Cart, catalog Catalog) (*ComposedOrder, error) {
	c := &composer{ctx: ctx, catalog: catalog}
	result := &ComposedOrder{Total: decimal.Zero}

	for i, line := range cart.Lines {
		c.line = i + 1

		if line.Quantity <= 0 {
			c.warnf("skipped, quantity must be at least 1 (got %d)", line.Quantity)
			continue
		}

		var (
			items []models.OrderItem
			err   error
		)
		switch line.kind() {
		case LineCatalog:
			items, err = c.catalogLine(line)
		case LineProteinOnly:
			items, err = c.proteinOnlyLine(line)
		case LineCustomCombo:
			items, err = c.customComboLine(line)
		case LineBaseOnly:
			items, err = c.baseOnlyLine(line)
		default:
			c.warnf("skipped, unknown line type %q", line.Kind)
			continue
		}
		if err != nil {
			return nil, err
		}

		for _, item := range items {
			result.Total = result.Total.Add(item.Subtotal())
			result.Items = append(result.Items, item)
		}
	}

	result.Warnings = c.warnings
	return result, nil
}

func (c *composer) warnf(format string, args ...interface{}) {
	c.warnings = append(c.warnings, fmt.Sprintf("line %d: ", c.line)+fmt.Sprintf(format, args...))
}

// lookup returns nil without error when the item is missing or unavailable.
func (c *composer) lookup(id uint, role string) (*models.MenuItem, error) {
	if id == 0 {
		c.warnf("skipped, no %s given", role)
		return nil, nil
	}
	item, err := c.catalog.FindMenuItem(c.ctx, id)
	if errors.Is(err, ErrMenuItemNotFound) {
		c.warnf("%s %d not found", role, id)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !item.IsAvailable {
		c.warnf("%s %q is not available", role, item.Name)
		return nil, nil
	}
	return item, nil
}

func (c *composer) lookupBases(ids []uint) ([]*models.MenuItem, error) {
	seen := make(map[uint]bool, len(ids))
	var bases []*models.MenuItem
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		base, err := c.lookup(id, "base item")
		if err != nil {
			return nil, err
		}
		if base != nil {
			bases = append(bases, base)
		}
	}
	return bases, nil
}

func (c *composer) catalogLine(line CartLine) ([]models.OrderItem, error) {
	item, err := c.lookup(line.MenuItemID, "menu item")
	if err != nil || item == nil {
		return nil, err
	}
	return []models.OrderItem{{
		MenuItemID: item.ID,
		MenuItem:   item,
		Quantity:   line.Quantity,
		UnitPrice:  item.ActualPrice(),
		Notes:      line.Notes,
	}}, nil
}

func (c *composer) proteinOnlyLine(line CartLine) ([]models.OrderItem, error) {
	source, err := c.lookup(line.ProteinSourceID, "protein source")
	if err != nil || source == nil {
		return nil, err
	}
	return []models.OrderItem{{
		MenuItemID:            source.ID,
		MenuItem:              source,
		Quantity:              line.Quantity,
		UnitPrice:             source.ActualPrice(),
		Notes:                 fmt.Sprintf("%s (Protein Only)", source.Name),
		CustomProteinSourceID: &source.ID,
		CustomProteinSource:   source,
	}}, nil
}

func (c *composer) customComboLine(line CartLine) ([]models.OrderItem, error) {
	bases, err := c.lookupBases(line.BaseItemIDs)
	if err != nil {
		return nil, err
	}
	source, err := c.lookup(line.ProteinSourceID, "protein source")
	if err != nil {
		return nil, err
	}
	if len(bases) == 0 || source == nil {
		c.warnf("custom combo skipped, it needs at least one base item and a protein source")
		return nil, nil
	}

	price := source.ActualPrice()
	names := make([]string, 0, len(bases))
	for _, base := range bases {
		price = price.Add(base.ActualPrice())
		names = append(names, base.Name)
	}

	// The first base stands in as the line's menu item; notes carry the real label.
	reference := bases[0]
	return []models.OrderItem{{
		MenuItemID:            reference.ID,
		MenuItem:              reference,
		Quantity:              line.Quantity,
		UnitPrice:             price,
		Notes:                 fmt.Sprintf("Custom: %s with %s", strings.Join(names, " + "), source.Name),
		IsCustomCombo:         true,
		CustomBaseItemID:      &reference.ID,
		CustomBaseItem:        reference,
		CustomProteinSourceID: &source.ID,
		CustomProteinSource:   source,
	}}, nil
}

func (c *composer) baseOnlyLine(line CartLine) ([]models.OrderItem, error) {
	bases, err := c.lookupBases(line.BaseItemIDs)
	if err != nil {
		return nil, err
	}

	var items []models.OrderItem
	for _, base := range bases {
		price := base.ActualPrice()
		// free bases come with a meal and are never billed on their own
		if !price.IsPositive() {
			continue
		}
		items = append(items, models.OrderItem{
			MenuItemID: base.ID,
			MenuItem:   base,
			Quantity:   line.Quantity,
			UnitPrice:  price,
			Notes:      fmt.Sprintf("%s (Base Only)", base.Name),
		})
	}
	return items, nil
}
