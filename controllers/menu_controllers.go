package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-momo/services"
	"github.com/yeremiapane/restaurant-momo/utils"
)

type MenuController struct {
	Menu *services.MenuService
}

func NewMenuController(menu *services.MenuService) *MenuController {
	return &MenuController{Menu: menu}
}

// GetAllMenus -> ?item_type=combo&available=true
func (mc *MenuController) GetAllMenus(c *gin.Context) {
	items, err := mc.Menu.ListMenu(c.Request.Context(), services.MenuFilter{
		ItemType:      c.Query("item_type"),
		AvailableOnly: c.Query("available") == "true",
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of menu items", items)
}

func (mc *MenuController) GetMenuByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	item, err := mc.Menu.GetMenuItem(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Menu item detail", item)
}

func (mc *MenuController) CreateMenu(c *gin.Context) {
	var body services.MenuItemInput
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	item, err := mc.Menu.CreateMenuItem(c.Request.Context(), body)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.InfoLogger.Infof("Menu item created: %s (%s)", item.Name, item.ItemType)
	utils.RespondJSON(c, http.StatusCreated, "Menu item created", item)
}

func (mc *MenuController) UpdateMenu(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var body services.MenuItemInput
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	item, err := mc.Menu.UpdateMenuItem(c.Request.Context(), id, body)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Menu item updated", item)
}
