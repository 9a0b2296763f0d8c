package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-momo/models"
	"github.com/yeremiapane/restaurant-momo/utils"
	"gorm.io/gorm"
)

type NotificationController struct {
	DB *gorm.DB
}

func NewNotificationController(db *gorm.DB) *NotificationController {
	return &NotificationController{DB: db}
}

// GetNotificationLogs -> ?status=failed&channel=sms&limit=100, newest first
func (nc *NotificationController) GetNotificationLogs(c *gin.Context) {
	limit := 100
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= 500 {
		limit = l
	}

	query := nc.DB.WithContext(c.Request.Context()).Order("created_at DESC").Limit(limit)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if channel := c.Query("channel"); channel != "" {
		query = query.Where("channel = ?", channel)
	}

	var logs []models.NotificationLog
	if err := query.Find(&logs).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification logs", logs)
}

func (nc *NotificationController) GetTemplates(c *gin.Context) {
	var templates []models.NotificationTemplate
	if err := nc.DB.WithContext(c.Request.Context()).Order("notification_type").Find(&templates).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification templates", templates)
}
