package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yeremiapane/restaurant-momo/kds"
	"github.com/yeremiapane/restaurant-momo/middlewares"
	"github.com/yeremiapane/restaurant-momo/models"
	"github.com/yeremiapane/restaurant-momo/utils"
)

var kdsRoles = map[string]bool{
	models.RoleAdmin:   true,
	models.RoleManager: true,
	models.RoleChef:    true,
	models.RoleWaiter:  true,
	models.RoleCashier: true,
}

type KDSController struct {
	Hub      *kds.Hub
	upgrader websocket.Upgrader
}

// NewKDSController accepts websocket upgrades from allowOrigin, or from any
// origin when it is "*" or empty.
func NewKDSController(hub *kds.Hub, allowOrigin string) *KDSController {
	return &KDSController{
		Hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return allowOrigin == "" || allowOrigin == "*" || r.Header.Get("Origin") == allowOrigin
			},
		},
	}
}

// KDSHandler -> websocket endpoint for kitchen and staff screens
func (kc *KDSController) KDSHandler(c *gin.Context) {
	role := c.GetString(middlewares.ContextRole)
	if role == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	if !kdsRoles[role] {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	ws, err := kc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.Warnf("Websocket upgrade failed: %v", err)
		return
	}

	kc.Hub.Register(ws, role)
	utils.InfoLogger.Infof("KDS client connected (role=%s, clients=%d)", role, kc.Hub.ClientCount())

	// screens only listen; reading detects the disconnect
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	kc.Hub.Unregister(ws)
}
