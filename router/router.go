package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-momo/controllers"
	"github.com/yeremiapane/restaurant-momo/kds"
	"github.com/yeremiapane/restaurant-momo/middlewares"
	"github.com/yeremiapane/restaurant-momo/models"
	"github.com/yeremiapane/restaurant-momo/services"
	"gorm.io/gorm"
)

// Deps are the services the HTTP layer is built on.
type Deps struct {
	DB         *gorm.DB
	Menu       *services.MenuService
	Orders     *services.OrderService
	Lifecycle  *services.OrderLifecycle
	Payments   *services.PaymentManager
	Monitor    *services.PaymentMonitor
	Hub        *kds.Hub
	CORSOrigin string
	Production bool
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(middlewares.SecurityHeaders(d.Production))
	r.Use(middlewares.CORSMiddlewares(d.CORSOrigin))
	r.Use(middlewares.LoggerMiddleware())

	userCtrl := controllers.NewUserController(d.DB)
	categoryCtrl := controllers.NewMenuCategoryController(d.DB)
	menuCtrl := controllers.NewMenuController(d.Menu)
	orderCtrl := controllers.NewOrderController(d.Orders, d.Lifecycle)
	paymentCtrl := controllers.NewPaymentController(d.Payments, d.Orders, d.Monitor)
	notificationCtrl := controllers.NewNotificationController(d.DB)
	kdsCtrl := controllers.NewKDSController(d.Hub, d.CORSOrigin)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	r.POST("/login", middlewares.NewStrictRateLimiter(), userCtrl.Login)

	r.GET("/categories", categoryCtrl.GetAllCategories)
	r.GET("/menu", menuCtrl.GetAllMenus)
	r.GET("/menu/:id", menuCtrl.GetMenuByID)

	r.POST("/orders/online", middlewares.NewPaymentRateLimiter(), orderCtrl.CreateOnlineOrder)

	webhooks := r.Group("/payments/webhook")
	webhooks.Use(middlewares.LogPaymentRequest())
	{
		webhooks.POST("/:provider", paymentCtrl.Webhook)
	}

	r.GET("/ws", middlewares.WebSocketAuthMiddleware(), kdsCtrl.KDSHandler)

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	auth := r.Group("/admin")
	auth.Use(middlewares.AuthMiddleware())

	auth.GET("/profile", userCtrl.GetProfile)
	auth.GET("/users", middlewares.RequireRoles(models.RoleManager), userCtrl.GetAllUsers)
	auth.POST("/users", middlewares.RequireRoles(models.RoleAdmin), userCtrl.Register)

	// MENU (managers)
	menuAdmin := auth.Group("/")
	menuAdmin.Use(middlewares.RequireRoles(models.RoleManager))
	{
		menuAdmin.POST("/categories", categoryCtrl.CreateCategory)
		menuAdmin.POST("/menu-items", menuCtrl.CreateMenu)
		menuAdmin.PUT("/menu-items/:id", menuCtrl.UpdateMenu)
	}

	// ORDERS (floor staff)
	orders := auth.Group("/")
	orders.Use(middlewares.RequireRoles(models.RoleManager, models.RoleWaiter, models.RoleCashier, models.RoleChef))
	{
		orders.GET("/orders", orderCtrl.GetAllOrders)
		orders.GET("/orders/:id", orderCtrl.GetOrderByID)
		orders.PATCH("/orders/:id/status", orderCtrl.UpdateOrderStatus)
		orders.GET("/orders/:id/receipt", orderCtrl.GetReceipt)
	}

	orderEdits := auth.Group("/")
	orderEdits.Use(middlewares.RequireRoles(models.RoleManager, models.RoleWaiter, models.RoleCashier))
	{
		orderEdits.POST("/orders", orderCtrl.CreateOrder)
		orderEdits.POST("/orders/:id/items", orderCtrl.AddItems)
		orderEdits.PUT("/orders/:id/items", orderCtrl.ReplaceItems)
		orderEdits.PATCH("/order-items/:id", orderCtrl.UpdateOrderItem)
		orderEdits.DELETE("/order-items/:id", orderCtrl.DeleteOrderItem)
	}
	auth.DELETE("/orders/:id", middlewares.RequireRoles(models.RoleManager), orderCtrl.DeleteOrder)

	// PAYMENTS (cashiers)
	payments := auth.Group("/")
	payments.Use(
		middlewares.RequireRoles(models.RoleManager, models.RoleCashier),
		middlewares.PaymentSecurityHeaders(),
		middlewares.LogPaymentRequest(),
	)
	{
		payments.POST("/orders/:id/payments", middlewares.NewPaymentRateLimiter(), paymentCtrl.InitiatePayment)
		payments.GET("/orders/:id/payments", paymentCtrl.ListOrderPayments)
		payments.GET("/payments/providers", paymentCtrl.GetProviders)
		payments.GET("/payments/metrics", paymentCtrl.GetMetrics)
		payments.GET("/payments/:transaction_id", paymentCtrl.CheckStatus)
	}

	// NOTIFICATIONS (managers)
	auth.GET("/notifications", middlewares.RequireRoles(models.RoleManager), notificationCtrl.GetNotificationLogs)
	auth.GET("/notification-templates", middlewares.RequireRoles(models.RoleManager), notificationCtrl.GetTemplates)

	return r
}
