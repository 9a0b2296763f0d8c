package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-momo/middlewares"
	"github.com/yeremiapane/restaurant-momo/models"
	"github.com/yeremiapane/restaurant-momo/services"
	"github.com/yeremiapane/restaurant-momo/utils"
)

type OrderController struct {
	Orders    *services.OrderService
	Lifecycle *services.OrderLifecycle
}

func NewOrderController(orders *services.OrderService, lifecycle *services.OrderLifecycle) *OrderController {
	return &OrderController{Orders: orders, Lifecycle: lifecycle}
}

// orderResponse wraps an order with the cart lines that were skipped.
func orderResponse(order *models.Order, warnings []string) gin.H {
	resp := gin.H{"order": order}
	if len(warnings) > 0 {
		resp["warnings"] = warnings
	}
	return resp
}

// GetAllOrders -> ?status=pending&order_type=delivery&limit=50
func (oc *OrderController) GetAllOrders(c *gin.Context) {
	filter := services.OrderFilter{
		Status:    c.Query("status"),
		OrderType: c.Query("order_type"),
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if branch, err := strconv.ParseUint(c.Query("branch_id"), 10, 32); err == nil {
		id := uint(branch)
		filter.BranchID = &id
	}

	orders, err := oc.Orders.ListOrders(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of orders", orders)
}

// CreateOrder -> staff-entered order. A waiter creating an order is recorded
// as its waiter unless another is named.
func (oc *OrderController) CreateOrder(c *gin.Context) {
	var body services.CreateOrderInput
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if body.WaiterID == nil && c.GetString(middlewares.ContextRole) == models.RoleWaiter {
		userID := c.GetUint(middlewares.ContextUserID)
		body.WaiterID = &userID
	}

	order, warnings, err := oc.Orders.CreateOrder(c.Request.Context(), body)
	if err != nil {
		respondOrderError(c, err, warnings)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Order created", orderResponse(order, warnings))
}

// CreateOnlineOrder -> public endpoint for delivery and takeaway customers
func (oc *OrderController) CreateOnlineOrder(c *gin.Context) {
	var body services.OnlineOrderInput
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, warnings, err := oc.Orders.CreateOnlineOrder(c.Request.Context(), body)
	if err != nil {
		respondOrderError(c, err, warnings)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Order placed", orderResponse(order, warnings))
}

func (oc *OrderController) GetOrderByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	order, err := oc.Orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order detail", order)
}

func (oc *OrderController) DeleteOrder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := oc.Orders.DeleteOrder(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order deleted", gin.H{"order_id": id})
}

func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondValidationError(c, http.StatusBadRequest, "status", err)
		return
	}

	order, err := oc.Lifecycle.SetStatus(c.Request.Context(), id, body.Status, middlewares.Actor(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order status updated", order)
}

// AddItems -> POST appends lines, PUT replaces them all
func (oc *OrderController) AddItems(c *gin.Context) {
	oc.changeItems(c, oc.Orders.AddItems, "Items added")
}

func (oc *OrderController) ReplaceItems(c *gin.Context) {
	oc.changeItems(c, oc.Orders.ReplaceItems, "Items replaced")
}

func (oc *OrderController) changeItems(c *gin.Context,
	apply func(ctx context.Context, orderID uint, cart services.Cart) (*models.Order, []string, error),
	message string) {

	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var body services.Cart
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, warnings, err := apply(c.Request.Context(), id, body)
	if err != nil {
		respondOrderError(c, err, warnings)
		return
	}
	utils.RespondJSON(c, http.StatusOK, message, orderResponse(order, warnings))
}

func (oc *OrderController) UpdateOrderItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Quantity int `json:"quantity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondValidationError(c, http.StatusBadRequest, "quantity", err)
		return
	}

	order, err := oc.Orders.UpdateItemQuantity(c.Request.Context(), id, body.Quantity)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order item updated", order)
}

func (oc *OrderController) DeleteOrderItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	order, err := oc.Orders.RemoveItem(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order item removed", order)
}

func (oc *OrderController) GetReceipt(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	receipt, err := oc.Orders.Receipt(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order receipt", receipt)
}
