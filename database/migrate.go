package database

import (
	"errors"
	"fmt"

	"github.com/yeremiapane/restaurant-momo/models"
	"github.com/yeremiapane/restaurant-momo/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Models lists every table the service owns, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Customer{},
		&models.MenuCategory{},
		&models.MenuItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderSequence{},
		&models.OrderStatusLog{},
		&models.PaymentTransaction{},
		&models.NotificationTemplate{},
		&models.NotificationLog{},
	}
}

// Migrate creates or updates the schema and seeds the rows the service relies on.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := seedOrderSequence(db); err != nil {
		return err
	}
	if err := SeedNotificationTemplates(db); err != nil {
		return err
	}
	utils.InfoLogger.Info("AutoMigrate completed.")
	return nil
}

// seedOrderSequence creates the order number counter, starting after the
// highest existing order id so numbers keep counting from legacy data.
func seedOrderSequence(db *gorm.DB) error {
	var seq models.OrderSequence
	err := db.Where("name = ?", models.OrderNumberSequence).First(&seq).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("load order sequence: %w", err)
	}

	var maxID int64
	if err := db.Model(&models.Order{}).Select("COALESCE(MAX(id), 0)").Scan(&maxID).Error; err != nil {
		return fmt.Errorf("read max order id: %w", err)
	}

	seq = models.OrderSequence{Name: models.OrderNumberSequence, Value: maxID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seq).Error; err != nil {
		return fmt.Errorf("create order sequence: %w", err)
	}
	return nil
}

func strPtr(s string) *string { return &s }

// DefaultNotificationTemplates returns the templates a fresh install starts with.
func DefaultNotificationTemplates() []models.NotificationTemplate {
	return []models.NotificationTemplate{
		{
			Name:             "Welcome Message",
			NotificationType: models.NotificationWelcome,
			SubjectTemplate:  "Welcome to {{.restaurant}}!",
			MessageTemplate:  "Dear {{.user_name}},\n\nWelcome to {{.restaurant}}! We look forward to serving you.",
			SMSTemplate:      strPtr("Welcome to {{.restaurant}}, {{.user_name}}!"),
		},
		{
			Name:             "Reservation Confirmation",
			NotificationType: models.NotificationReservationConfirm,
			SubjectTemplate:  "Reservation Confirmed - {{.restaurant}}",
			MessageTemplate:  "Dear {{.user_name}},\n\nYour reservation for {{.party_size}} on {{.reservation_date}} at {{.reservation_time}} is confirmed.",
			SMSTemplate:      strPtr("{{.restaurant}}: reservation for {{.party_size}} on {{.reservation_date}} {{.reservation_time}} confirmed."),
		},
		{
			Name:             "Order Ready",
			NotificationType: models.NotificationOrderReady,
			SubjectTemplate:  "Order {{.order_number}} Update - {{.restaurant}}",
			MessageTemplate:  "Dear {{.user_name}},\n\nYour order {{.order_number}} {{.status_update}}.\nOrder total: {{.order_total}}\n\nThank you for choosing {{.restaurant}}!",
			SMSTemplate:      strPtr("{{.restaurant}}: Order {{.order_number}} {{.status_update}}. Total: {{.order_total}}"),
		},
		{
			Name:             "Order Preparing",
			NotificationType: models.NotificationOrderPreparing,
			SubjectTemplate:  "Order {{.order_number}} is being prepared",
			MessageTemplate:  "Dear {{.user_name}},\n\nYour order {{.order_number}} is now being prepared.",
			SMSTemplate:      strPtr("{{.restaurant}}: Order {{.order_number}} is now being prepared."),
		},
		{
			Name:             "Order Served",
			NotificationType: models.NotificationOrderServed,
			SubjectTemplate:  "Order {{.order_number}} served",
			MessageTemplate:  "Dear {{.user_name}},\n\nYour order {{.order_number}} has been served. Enjoy your meal!",
			SMSTemplate:      strPtr("{{.restaurant}}: Order {{.order_number}} has been served. Enjoy!"),
		},
		{
			Name:             "Table Ready",
			NotificationType: models.NotificationTableReady,
			SubjectTemplate:  "Your table is ready - {{.restaurant}}",
			MessageTemplate:  "Dear {{.user_name}},\n\nYour table {{.table_number}} is ready.",
			SMSTemplate:      strPtr("{{.restaurant}}: table {{.table_number}} is ready for you."),
		},
		{
			Name:             "Payment Confirmation",
			NotificationType: models.NotificationPaymentConfirm,
			SubjectTemplate:  "Payment received for {{.order_number}}",
			MessageTemplate:  "Dear {{.user_name}},\n\nWe received {{.amount}} for order {{.order_number}}. Reference: {{.transaction_id}}.",
			SMSTemplate:      strPtr("{{.restaurant}}: {{.amount}} received for {{.order_number}}. Ref {{.transaction_id}}"),
		},
		{
			Name:             "Low Stock Alert",
			NotificationType: models.NotificationLowStockAlert,
			SubjectTemplate:  "Low stock: {{.item_name}}",
			MessageTemplate:  "{{.item_name}} is running low ({{.current_stock}} left, minimum {{.minimum_stock}}).",
		},
		{
			Name:             "System Alert",
			NotificationType: models.NotificationSystemAlert,
			SubjectTemplate:  "System alert: {{.title}}",
			MessageTemplate:  "{{.message}}",
		},
	}
}

// SeedNotificationTemplates inserts the default templates that do not exist yet.
// Existing templates are left untouched so edits survive restarts.
func SeedNotificationTemplates(db *gorm.DB) error {
	templates := DefaultNotificationTemplates()
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "notification_type"}},
		DoNothing: true,
	}).Create(&templates).Error; err != nil {
		return fmt.Errorf("seed notification templates: %w", err)
	}
	return nil
}
