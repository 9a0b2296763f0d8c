package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-momo/models"
	"github.com/yeremiapane/restaurant-momo/services"
	"github.com/yeremiapane/restaurant-momo/utils"
)

// respondServiceError maps service errors to HTTP codes. Anything unknown is
// logged and reported as 500.
func respondServiceError(c *gin.Context, err error) {
	var validation *models.ValidationError
	var unsupported *services.UnsupportedProviderError

	switch {
	case errors.As(err, &validation):
		utils.RespondValidationError(c, http.StatusBadRequest, validation.Field, err)
	case errors.As(err, &unsupported):
		utils.RespondError(c, http.StatusBadRequest, err)
	case errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrEmptyOrder):
		utils.RespondError(c, http.StatusBadRequest, err)
	case errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrOrderItemNotFound),
		errors.Is(err, services.ErrMenuItemNotFound),
		errors.Is(err, services.ErrTransactionNotFound):
		utils.RespondError(c, http.StatusNotFound, err)
	case errors.Is(err, services.ErrOrderAlreadyPaid),
		errors.Is(err, services.ErrOrderLocked):
		utils.RespondError(c, http.StatusConflict, err)
	default:
		utils.ErrorLogger.Errorf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		utils.RespondError(c, http.StatusInternalServerError, errors.New("internal server error"))
	}
}

// respondOrderError keeps the skipped cart lines visible when none survived.
func respondOrderError(c *gin.Context, err error, warnings []string) {
	if errors.Is(err, services.ErrEmptyOrder) && len(warnings) > 0 {
		utils.RespondJSON(c, http.StatusBadRequest, err.Error(), gin.H{"warnings": warnings})
		return
	}
	respondServiceError(c, err)
}

// parseID reads a positive numeric path parameter, answering 400 otherwise.
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid %s", name))
		return 0, false
	}
	return uint(id), true
}
