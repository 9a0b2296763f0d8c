package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-momo/models"
	"github.com/yeremiapane/restaurant-momo/utils"
	"gorm.io/gorm"
)

// statusPhrases are the customer-facing descriptions of states that notify.
var statusPhrases = map[string]string{
	models.OrderStatusPreparing: "is now being prepared",
	models.OrderStatusReady:     "is ready for pickup",
	models.OrderStatusServed:    "has been served",
}

// OrderLifecycle owns every order status change.
type OrderLifecycle struct {
	db             *gorm.DB
	notifier       NotificationDispatcher
	broadcaster    EventBroadcaster
	restaurantName string
}

func NewOrderLifecycle(db *gorm.DB, notifier NotificationDispatcher, broadcaster EventBroadcaster, restaurantName string) *OrderLifecycle {
	if broadcaster == nil {
		broadcaster = noopBroadcaster{}
	}
	return &OrderLifecycle{
		db:             db,
		notifier:       notifier,
		broadcaster:    broadcaster,
		restaurantName: restaurantName,
	}
}

// SetStatus moves the order to newStatus. Setting the status it already has is
// a no-op. Customer notifications are best effort and never undo the change.
func (l *OrderLifecycle) SetStatus(ctx context.Context, orderID uint, newStatus, actor string) (*models.Order, error) {
	if !models.IsValidOrderStatus(newStatus) {
		return nil, &InvalidStatusError{Status: newStatus}
	}

	var (
		previous string
		changed  bool
	)
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("load order %d: %w", orderID, err)
		}
		previous = order.Status

		var err error
		changed, err = transition(tx, orderID, previous, newStatus, actor)
		return err
	})
	if err != nil {
		return nil, err
	}

	order, err := l.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !changed {
		return order, nil
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_number": order.OrderNumber,
		"from":         previous,
		"to":           newStatus,
		"actor":        actor,
	}).Info("Order status changed")

	l.broadcaster.BroadcastOrderUpdate(*order)
	if phrase, ok := statusPhrases[newStatus]; ok {
		l.notifyCustomer(ctx, order, phrase)
	}
	return order, nil
}

// MarkPaid flips the order to paid inside the caller's transaction. It returns
// true only for the call that actually made the change, so the paid side
// effects run at most once per order.
func (l *OrderLifecycle) MarkPaid(tx *gorm.DB, orderID uint, actor string) (bool, error) {
	var order models.Order
	if err := tx.First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrOrderNotFound
		}
		return false, fmt.Errorf("load order %d: %w", orderID, err)
	}
	return transition(tx, orderID, order.Status, models.OrderStatusPaid, actor)
}

// transition writes the new status only when it differs from the stored one
// and records the change. The WHERE guard makes concurrent writers of the same
// status collapse into a single change.
func transition(tx *gorm.DB, orderID uint, from, to, actor string) (bool, error) {
	if from == to {
		return false, nil
	}

	res := tx.Model(&models.Order{}).
		Where("id = ? AND status <> ?", orderID, to).
		Update("status", to)
	if res.Error != nil {
		return false, fmt.Errorf("update status of order %d: %w", orderID, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	entry := models.OrderStatusLog{
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
		ChangedBy:  actor,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return false, fmt.Errorf("log status change of order %d: %w", orderID, err)
	}
	return true, nil
}

func (l *OrderLifecycle) loadOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	if err := l.db.WithContext(ctx).Preload("Customer").Preload("OrderItems").First(&order, orderID).Error; err != nil {
		return nil, fmt.Errorf("reload order %d: %w", orderID, err)
	}
	return &order, nil
}

func (l *OrderLifecycle) notifyCustomer(ctx context.Context, order *models.Order, phrase string) {
	if l.notifier == nil {
		return
	}
	phone := order.ContactPhone()
	if phone == "" {
		utils.InfoLogger.Debugf("Order %s has no customer phone, skipping notification", order.OrderNumber)
		return
	}

	results := l.notifier.SendNotification(ctx, models.NotificationOrderReady, Recipient{Phone: phone}, map[string]string{
		"user_name":     order.CustomerName(),
		"restaurant":    l.restaurantName,
		"order_number":  order.OrderNumber,
		"order_total":   utils.FormatUGX(order.TotalAmount),
		"status_update": phrase,
	})
	for _, r := range results {
		if !r.Success {
			utils.ErrorLogger.Warnf("Order %s notification via %s failed: %s", order.OrderNumber, r.Channel, r.Error)
		}
	}
}
