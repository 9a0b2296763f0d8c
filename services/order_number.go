package services

import (
	"fmt"

	"github.com/yeremiapane/restaurant-momo/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NextOrderNumber hands out the next ORD###### number. The increment is a
// single UPDATE on the counter row, so concurrent transactions serialize on
// that row instead of racing on max(id)+1. Must run inside the order's
// transaction so a rolled back order does not consume a visible number.
func NextOrderNumber(tx *gorm.DB) (string, error) {
	for attempt := 0; attempt < 2; attempt++ {
		res := tx.Model(&models.OrderSequence{}).
			Where("name = ?", models.OrderNumberSequence).
			UpdateColumn("value", gorm.Expr("value + 1"))
		if res.Error != nil {
			return "", fmt.Errorf("increment order sequence: %w", res.Error)
		}

		if res.RowsAffected == 1 {
			var seq models.OrderSequence
			if err := tx.Where("name = ?", models.OrderNumberSequence).First(&seq).Error; err != nil {
				return "", fmt.Errorf("read order sequence: %w", err)
			}
			return FormatOrderNumber(seq.Value), nil
		}

		// counter row missing, seed it from the existing orders and retry
		if err := seedSequence(tx); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("order sequence %q unavailable", models.OrderNumberSequence)
}

// FormatOrderNumber -> ORD000042
func FormatOrderNumber(n int64) string {
	return fmt.Sprintf("ORD%06d", n)
}

func seedSequence(tx *gorm.DB) error {
	var maxID int64
	if err := tx.Model(&models.Order{}).Select("COALESCE(MAX(id), 0)").Scan(&maxID).Error; err != nil {
		return fmt.Errorf("read max order id: %w", err)
	}
	seq := models.OrderSequence{Name: models.OrderNumberSequence, Value: maxID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seq).Error; err != nil {
		return fmt.Errorf("seed order sequence: %w", err)
	}
	return nil
}
