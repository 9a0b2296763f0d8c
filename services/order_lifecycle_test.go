package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-momo/models"
)

func TestOrderLifecycle_NotifiesOnlyOnChange(t *testing.T) {
	db := newTestDB(t)
	m := seedMenu(t, db)
	notifier := &recordingNotifier{}
	broadcaster := &recordingBroadcaster{}
	lifecycle := NewOrderLifecycle(db, notifier, broadcaster, "Momo Kitchen")
	ctx := context.Background()

	order := createOrder(t, db, m.ChickenCombo, 1)

	updated, err := lifecycle.SetStatus(ctx, order.ID, models.OrderStatusPreparing, "Jane (chef)")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPreparing, updated.Status)
	require.Equal(t, 1, notifier.count())
	call := notifier.calls[0]
	assert.Equal(t, models.NotificationOrderReady, call.Type)
	assert.Equal(t, "0772123456", call.Recipient.Phone)
	assert.Equal(t, "is now being prepared", call.Data["status_update"])
	assert.Equal(t, order.OrderNumber, call.Data["order_number"])
	assert.Equal(t, "UGX 8,000", call.Data["order_total"])

	// same status again is a no-op
	_, err = lifecycle.SetStatus(ctx, order.ID, models.OrderStatusPreparing, "Jane (chef)")
	require.NoError(t, err)
	assert.Equal(t, 1, notifier.count())
	assert.Len(t, broadcaster.orders, 1)

	var logs []models.OrderStatusLog
	require.NoError(t, db.Where("order_id = ?", order.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, models.OrderStatusPending, logs[0].FromStatus)
	assert.Equal(t, models.OrderStatusPreparing, logs[0].ToStatus)
	assert.Equal(t, "Jane (chef)", logs[0].ChangedBy)
}

func TestOrderLifecycle_SilentStatuses(t *testing.T) {
	db := newTestDB(t)
	m := seedMenu(t, db)
	notifier := &recordingNotifier{}
	lifecycle := NewOrderLifecycle(db, notifier, nil, "Momo Kitchen")

	order := createOrder(t, db, m.Soda, 1)
	_, err := lifecycle.SetStatus(context.Background(), order.ID, models.OrderStatusConfirmed, "system")
	require.NoError(t, err)
	_, err = lifecycle.SetStatus(context.Background(), order.ID, models.OrderStatusReady, "system")
	require.NoError(t, err)

	assert.Equal(t, 1, notifier.count())
	assert.Equal(t, "is ready for pickup", notifier.calls[0].Data["status_update"])
}

func TestOrderLifecycle_InvalidStatus(t *testing.T) {
	db := newTestDB(t)
	m := seedMenu(t, db)
	lifecycle := NewOrderLifecycle(db, &recordingNotifier{}, nil, "Momo Kitchen")

	order := createOrder(t, db, m.Soda, 1)
	_, err := lifecycle.SetStatus(context.Background(), order.ID, "teleported", "system")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	var stored models.Order
	require.NoError(t, db.First(&stored, order.ID).Error)
	assert.Equal(t, models.OrderStatusPending, stored.Status)

	_, err = lifecycle.SetStatus(context.Background(), 31337, models.OrderStatusReady, "system")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderLifecycle_MarkPaidOnce(t *testing.T) {
	db := newTestDB(t)
	m := seedMenu(t, db)
	lifecycle := NewOrderLifecycle(db, nil, nil, "Momo Kitchen")

	order := createOrder(t, db, m.Soda, 1)

	fired, err := lifecycle.MarkPaid(db, order.ID, "payment:TX1")
	require.NoError(t, err)
	assert.True(t, fired)

	fired, err = lifecycle.MarkPaid(db, order.ID, "payment:TX2")
	require.NoError(t, err)
	assert.False(t, fired)
}
