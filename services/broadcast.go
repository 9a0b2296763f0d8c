package services

import "github.com/yeremiapane/restaurant-momo/models"

// EventBroadcaster pushes order and payment events to staff screens and other
// listeners. Implementations must not block the caller for long.
type EventBroadcaster interface {
	BroadcastOrderUpdate(order models.Order)
	BroadcastPaymentUpdate(txn models.PaymentTransaction)
	BroadcastPaymentSuccess(order models.Order, txn models.PaymentTransaction)
}

// MultiBroadcaster fans each event out to every wrapped broadcaster.
type MultiBroadcaster []EventBroadcaster

func (m MultiBroadcaster) BroadcastOrderUpdate(order models.Order) {
	for _, b := range m {
		b.BroadcastOrderUpdate(order)
	}
}

func (m MultiBroadcaster) BroadcastPaymentUpdate(txn models.PaymentTransaction) {
	for _, b := range m {
		b.BroadcastPaymentUpdate(txn)
	}
}

func (m MultiBroadcaster) BroadcastPaymentSuccess(order models.Order, txn models.PaymentTransaction) {
	for _, b := range m {
		b.BroadcastPaymentSuccess(order, txn)
	}
}

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastOrderUpdate(models.Order)                                 {}
func (noopBroadcaster) BroadcastPaymentUpdate(models.PaymentTransaction)                  {}
func (noopBroadcaster) BroadcastPaymentSuccess(models.Order, models.PaymentTransaction) {}
