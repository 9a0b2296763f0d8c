package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusPreparing = "preparing"
	OrderStatusReady     = "ready"
	OrderStatusServed    = "served"
	OrderStatusPaid      = "paid"
	OrderStatusCancelled = "cancelled"
)

// Order types
const (
	OrderTypeDineIn   = "dine_in"
	OrderTypeTakeaway = "takeaway"
	OrderTypeDelivery = "delivery"
)

var (
	orderStatuses = []string{
		OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing, OrderStatusReady,
		OrderStatusServed, OrderStatusPaid, OrderStatusCancelled,
	}
	orderTypes = []string{OrderTypeDineIn, OrderTypeTakeaway, OrderTypeDelivery}
)

// IsValidOrderStatus reports whether status is one of the declared order statuses.
func IsValidOrderStatus(status string) bool {
	return contains(orderStatuses, status)
}

// IsValidOrderType reports whether t is dine_in, takeaway or delivery.
func IsValidOrderType(t string) bool {
	return contains(orderTypes, t)
}

type Order struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	OrderNumber     string          `gorm:"type:varchar(20);uniqueIndex;not null" json:"order_number"`
	CustomerID      *uint           `gorm:"index" json:"customer_id,omitempty"`
	Customer        *Customer       `gorm:"foreignKey:CustomerID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"customer,omitempty"`
	OrderType       string          `gorm:"type:varchar(20);not null;default:'dine_in'" json:"order_type"`
	Status          string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	TableNumber     *int            `json:"table_number,omitempty"`
	WaiterID        *uint           `gorm:"index" json:"waiter_id,omitempty"`
	Waiter          *User           `gorm:"foreignKey:WaiterID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"waiter,omitempty"`
	BranchID        *uint           `gorm:"index" json:"branch_id,omitempty"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_amount"`
	Notes           string          `gorm:"type:text" json:"notes"`
	DeliveryAddress *string         `gorm:"type:text" json:"delivery_address,omitempty"`
	CustomerPhone   string          `gorm:"type:varchar(20)" json:"customer_phone,omitempty"`
	CustomerEmail   string          `gorm:"type:varchar(255)" json:"customer_email,omitempty"`
	OrderItems      []OrderItem     `gorm:"foreignKey:OrderID" json:"order_items"`
	CreatedAt       time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null" json:"updated_at"`
}

// CalculateTotal sums the subtotals of the loaded items.
func (o *Order) CalculateTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.OrderItems {
		total = total.Add(item.Subtotal())
	}
	return total
}

// ContactPhone prefers the linked customer's phone over the contact snapshot.
func (o *Order) ContactPhone() string {
	if o.Customer != nil && o.Customer.Phone != "" {
		return o.Customer.Phone
	}
	return o.CustomerPhone
}

// ContactEmail prefers the linked customer's email over the contact snapshot.
func (o *Order) ContactEmail() string {
	if o.Customer != nil && o.Customer.Email != "" {
		return o.Customer.Email
	}
	return o.CustomerEmail
}

// CustomerName returns the customer's name or a generic greeting.
func (o *Order) CustomerName() string {
	if o.Customer != nil && o.Customer.Name != "" {
		return o.Customer.Name
	}
	return "Customer"
}

// OrderNumberSequence names the OrderSequence row behind ORD###### numbers.
const OrderNumberSequence = "order_number"

// OrderSequence is a named counter used to hand out order numbers atomically.
type OrderSequence struct {
	Name      string `gorm:"primaryKey;type:varchar(50)"`
	Value     int64  `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

// OrderStatusLog records each actual status change and who made it.
type OrderStatusLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	OrderID    uint      `gorm:"not null;index" json:"order_id"`
	FromStatus string    `gorm:"type:varchar(20);not null" json:"from_status"`
	ToStatus   string    `gorm:"type:varchar(20);not null" json:"to_status"`
	ChangedBy  string    `gorm:"type:varchar(100)" json:"changed_by"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
}
