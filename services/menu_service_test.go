package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-momo/models"
)

func decimalPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestMenuService_CreateCombo(t *testing.T) {
	db := newTestDB(t)
	m := seedMenu(t, db)
	svc := NewMenuService(db)

	item, err := svc.CreateMenuItem(context.Background(), MenuItemInput{
		Name:            "Beef Combo",
		ItemType:        models.ItemTypeCombo,
		PricingType:     models.PricingCombo,
		BaseItemID:      &m.Chips.ID,
		ProteinSourceID: &m.Beef.ID,
	})
	require.NoError(t, err)

	require.NotNil(t, item.BaseItem)
	require.NotNil(t, item.ProteinSource)
	assertAmount(t, 8000, item.ActualPrice())
	assert.Equal(t, "Chips with Beef", item.DisplayName())
	assert.True(t, item.IsAvailable)
	assert.Equal(t, 15, item.PreparationTime)
	assert.Nil(t, item.BaseCategory)
}

func TestMenuService_CreateBaseDerivesCategory(t *testing.T) {
	db := newTestDB(t)
	m := seedMenu(t, db)
	svc := NewMenuService(db)
	unavailable := false

	item, err := svc.CreateMenuItem(context.Background(), MenuItemInput{
		Name:                "Posho",
		ItemType:            models.ItemTypeBase,
		PricingType:         models.PricingBase,
		Price:               decimalPtr(1000),
		CompatibleSourceIDs: []uint{m.Chicken.ID, m.Beef.ID},
		IsAvailable:         &unavailable,
	})
	require.NoError(t, err)

	require.NotNil(t, item.BaseCategory)
	assert.Equal(t, models.BaseCategoryPremium, *item.BaseCategory)
	assert.False(t, item.IsAvailable)
	assert.Len(t, item.CompatibleSources, 2)

	item, err = svc.UpdateMenuItem(context.Background(), item.ID, MenuItemInput{
		Name:                "Posho",
		ItemType:            models.ItemTypeBase,
		PricingType:         models.PricingBase,
		Price:               decimalPtr(0),
		CompatibleSourceIDs: []uint{m.Beef.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, models.BaseCategoryFree, *item.BaseCategory)
	assert.True(t, item.IsAvailable)
	require.Len(t, item.CompatibleSources, 1)
	assert.Equal(t, m.Beef.ID, item.CompatibleSources[0].ID)
}

func TestMenuService_RejectsBadComponents(t *testing.T) {
	db := newTestDB(t)
	m := seedMenu(t, db)
	svc := NewMenuService(db)
	ctx := context.Background()

	_, err := svc.CreateMenuItem(ctx, MenuItemInput{
		Name:            "Backwards Combo",
		ItemType:        models.ItemTypeCombo,
		PricingType:     models.PricingCombo,
		BaseItemID:      &m.Chicken.ID,
		ProteinSourceID: &m.Rice.ID,
	})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "base_item", verr.Field)

	_, err = svc.CreateMenuItem(ctx, MenuItemInput{
		Name:        "Juice",
		ItemType:    models.ItemTypeBeverage,
		PricingType: models.PricingDirect,
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "price", verr.Field)

	_, err = svc.CreateMenuItem(ctx, MenuItemInput{
		Name:                "Rice Bowl",
		ItemType:            models.ItemTypeBase,
		PricingType:         models.PricingBase,
		Price:               decimalPtr(0),
		CompatibleSourceIDs: []uint{m.Soda.ID},
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "compatible_source_ids", verr.Field)

	_, err = svc.UpdateMenuItem(ctx, 9999, MenuItemInput{Name: "x", ItemType: models.ItemTypeSide, PricingType: models.PricingDirect, Price: decimalPtr(1)})
	assert.ErrorIs(t, err, ErrMenuItemNotFound)
}

func TestMenuService_ListMenu(t *testing.T) {
	db := newTestDB(t)
	m := seedMenu(t, db)
	svc := NewMenuService(db)
	require.NoError(t, db.Model(m.Beef).Update("is_available", false).Error)

	sources, err := svc.ListMenu(context.Background(), MenuFilter{ItemType: models.ItemTypeSource})
	require.NoError(t, err)
	assert.Len(t, sources, 2)

	available, err := svc.ListMenu(context.Background(), MenuFilter{ItemType: models.ItemTypeSource, AvailableOnly: true})
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "Chicken", available[0].Name)

	all, err := svc.ListMenu(context.Background(), MenuFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 7)
}
