package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-momo/database"
	"github.com/yeremiapane/restaurant-momo/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory sqlite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func money(v int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(v))
}

func assertAmount(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, got.Equal(decimal.NewFromInt(want)), "expected %d, got %s", want, got.String())
}

type testMenu struct {
	Rice, Matooke, Chips *models.MenuItem
	Chicken, Beef        *models.MenuItem
	ChickenCombo, Soda   *models.MenuItem
}

func newTestMenu() testMenu {
	return testMenu{
		Rice:    &models.MenuItem{Name: "Rice", ItemType: models.ItemTypeBase, PricingType: models.PricingBase, Price: money(0), IsAvailable: true},
		Matooke: &models.MenuItem{Name: "Matooke", ItemType: models.ItemTypeBase, PricingType: models.PricingBase, Price: money(0), IsAvailable: true},
		Chips:   &models.MenuItem{Name: "Chips", ItemType: models.ItemTypeBase, PricingType: models.PricingBase, Price: money(2000), IsAvailable: true},
		Chicken: &models.MenuItem{Name: "Chicken", ItemType: models.ItemTypeSource, PricingType: models.PricingSource, Price: money(8000), IsAvailable: true},
		Beef:    &models.MenuItem{Name: "Beef", ItemType: models.ItemTypeSource, PricingType: models.PricingSource, Price: money(6000), IsAvailable: true},
		Soda:    &models.MenuItem{Name: "Soda", ItemType: models.ItemTypeBeverage, PricingType: models.PricingDirect, Price: money(1500), IsAvailable: true},
	}
}

// seedMenu stores the test menu and links the combo to its components.
func seedMenu(t *testing.T, db *gorm.DB) testMenu {
	t.Helper()
	m := newTestMenu()
	for _, item := range []*models.MenuItem{m.Rice, m.Matooke, m.Chips, m.Chicken, m.Beef, m.Soda} {
		require.NoError(t, db.Create(item).Error)
	}
	m.ChickenCombo = &models.MenuItem{
		Name:            "Chicken Combo",
		ItemType:        models.ItemTypeCombo,
		PricingType:     models.PricingCombo,
		BaseItemID:      &m.Rice.ID,
		ProteinSourceID: &m.Chicken.ID,
		IsAvailable:     true,
	}
	require.NoError(t, db.Omit("BaseItem", "ProteinSource").Create(m.ChickenCombo).Error)
	m.ChickenCombo.BaseItem = m.Rice
	m.ChickenCombo.ProteinSource = m.Chicken
	return m
}

// fakeCatalog serves menu items from memory.
type fakeCatalog map[uint]*models.MenuItem

// fakeMenu builds the test menu with fixed ids, served from memory.
func fakeMenu() (testMenu, fakeCatalog) {
	m := newTestMenu()
	catalog := fakeCatalog{}
	for i, item := range []*models.MenuItem{m.Rice, m.Matooke, m.Chips, m.Chicken, m.Beef, m.Soda} {
		item.ID = uint(i + 1)
		catalog[item.ID] = item
	}
	m.ChickenCombo = &models.MenuItem{
		ID:              100,
		Name:            "Chicken Combo",
		ItemType:        models.ItemTypeCombo,
		PricingType:     models.PricingCombo,
		BaseItemID:      &m.Rice.ID,
		BaseItem:        m.Rice,
		ProteinSourceID: &m.Chicken.ID,
		ProteinSource:   m.Chicken,
		IsAvailable:     true,
	}
	catalog[m.ChickenCombo.ID] = m.ChickenCombo
	return m, catalog
}

func (c fakeCatalog) FindMenuItem(_ context.Context, id uint) (*models.MenuItem, error) {
	item, ok := c[id]
	if !ok {
		return nil, ErrMenuItemNotFound
	}
	return item, nil
}

type notification struct {
	Type      string
	Recipient Recipient
	Data      map[string]string
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notification
}

func (r *recordingNotifier) SendNotification(_ context.Context, notificationType string, recipient Recipient, contextData map[string]string) []DeliveryResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, notification{Type: notificationType, Recipient: recipient, Data: contextData})
	return []DeliveryResult{{Channel: models.ChannelSMS, Recipient: recipient.Phone, Success: true}}
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type recordingBroadcaster struct {
	mu             sync.Mutex
	orders         []models.Order
	payments       []models.PaymentTransaction
	paymentSuccess []models.PaymentTransaction
}

func (r *recordingBroadcaster) BroadcastOrderUpdate(order models.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, order)
}

func (r *recordingBroadcaster) BroadcastPaymentUpdate(txn models.PaymentTransaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments = append(r.payments, txn)
}

func (r *recordingBroadcaster) BroadcastPaymentSuccess(_ models.Order, txn models.PaymentTransaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paymentSuccess = append(r.paymentSuccess, txn)
}

// fakeProvider answers initiation and status checks with canned values.
type fakeProvider struct {
	mu          sync.Mutex
	initiateOK  bool
	initiateMsg string
	status      string
	statusOK    bool
	initiated   []string
	checks      int
}

func (f *fakeProvider) InitiatePayment(_ context.Context, _ string, _ decimal.Decimal, transactionID, _ string) (bool, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initiated = append(f.initiated, transactionID)
	return f.initiateOK, f.initiateMsg
}

func (f *fakeProvider) CheckPaymentStatus(_ context.Context, _ string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return f.status, f.statusOK
}

func (f *fakeProvider) ParseCallback(payload map[string]interface{}) ProviderCallback {
	return ProviderCallback{
		Reference: payloadString(payload, "reference"),
		Status:    payloadString(payload, "status"),
	}
}

// createOrder stores a pending order with one line worth total.
func createOrder(t *testing.T, db *gorm.DB, menuItem *models.MenuItem, quantity int) *models.Order {
	t.Helper()
	svc := NewOrderService(db, NewGormCatalog(db), nil)
	order, warnings, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		OrderType:     models.OrderTypeTakeaway,
		CustomerPhone: "0772123456",
		Cart:          Cart{Lines: []CartLine{{MenuItemID: menuItem.ID, Quantity: quantity}}},
	})
	require.NoError(t, err)
	require.Empty(t, warnings)
	return order
}
