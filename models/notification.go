package models

import (
	"time"
)

// Notification types
const (
	NotificationWelcome            = "welcome"
	NotificationReservationConfirm = "reservation_confirm"
	NotificationOrderReady         = "order_ready"
	NotificationOrderPreparing     = "order_preparing"
	NotificationOrderServed        = "order_served"
	NotificationTableReady         = "table_ready"
	NotificationPaymentConfirm     = "payment_confirm"
	NotificationLowStockAlert      = "low_stock_alert"
	NotificationSystemAlert        = "system_alert"
)

// Delivery channels and statuses
const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"

	NotificationStatusPending = "pending"
	NotificationStatusSent    = "sent"
	NotificationStatusFailed  = "failed"
)

type NotificationTemplate struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"type:varchar(100);not null" json:"name"`
	NotificationType string    `gorm:"type:varchar(30);uniqueIndex;not null" json:"notification_type"`
	SubjectTemplate  string    `gorm:"type:varchar(200);not null" json:"subject_template"`
	MessageTemplate  string    `gorm:"type:text;not null" json:"message_template"`
	SMSTemplate      *string   `gorm:"type:varchar(160)" json:"sms_template,omitempty"`
	IsActive         bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt        time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null" json:"updated_at"`
}

type NotificationLog struct {
	ID           uint                  `gorm:"primaryKey" json:"id"`
	TemplateID   *uint                 `gorm:"index" json:"template_id,omitempty"`
	Template     *NotificationTemplate `gorm:"foreignKey:TemplateID;constraint:OnDelete:SET NULL" json:"-"`
	Channel      string                `gorm:"type:varchar(10);not null" json:"channel"`
	Recipient    string                `gorm:"type:varchar(255);not null" json:"recipient"`
	Subject      string                `gorm:"type:varchar(200)" json:"subject"`
	Message      string                `gorm:"type:text;not null" json:"message"`
	Status       string                `gorm:"type:varchar(10);not null;default:'pending'" json:"status"`
	ErrorMessage string                `gorm:"type:text" json:"error_message,omitempty"`
	ContextData  map[string]string     `gorm:"serializer:json;type:text" json:"context_data"`
	SentAt       *time.Time            `json:"sent_at,omitempty"`
	CreatedAt    time.Time             `gorm:"not null" json:"created_at"`
}
