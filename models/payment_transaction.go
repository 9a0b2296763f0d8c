package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment providers
const (
	ProviderYo     = "yo"
	ProviderMTN    = "mtn"
	ProviderAirtel = "airtel"
)

// Column widths for raw provider values
const (
	ProviderStatusMaxLength        = 50
	ProviderTransactionIDMaxLength = 100
)

// Canonical payment statuses
const (
	PaymentStatusInitiated  = "initiated"
	PaymentStatusPending    = "pending"
	PaymentStatusSuccessful = "successful"
	PaymentStatusFailed     = "failed"
	PaymentStatusCancelled  = "cancelled"
)

// PaymentTransaction is one attempt to collect payment for an order through a
// mobile-money provider.
type PaymentTransaction struct {
	ID                    uint            `gorm:"primaryKey" json:"id"`
	OrderID               uint            `gorm:"not null;index" json:"order_id"`
	Order                 *Order          `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"order,omitempty"`
	TransactionID         string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"transaction_id"`
	Provider              string          `gorm:"type:varchar(10);not null" json:"provider"`
	PhoneNumber           string          `gorm:"type:varchar(20);not null" json:"phone_number"`
	Amount                decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status                string          `gorm:"type:varchar(20);not null;default:'initiated';index" json:"status"`
	ProviderTransactionID *string         `gorm:"type:varchar(100)" json:"provider_transaction_id,omitempty"`
	ProviderStatus        *string         `gorm:"type:varchar(50)" json:"provider_status,omitempty"`
	ErrorMessage          *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// IsOpen reports whether the provider may still change the outcome.
func (p *PaymentTransaction) IsOpen() bool {
	return p.Status == PaymentStatusInitiated || p.Status == PaymentStatusPending
}
