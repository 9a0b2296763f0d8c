package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/yeremiapane/restaurant-momo/services"
	"github.com/yeremiapane/restaurant-momo/utils"
)

type PaymentController struct {
	Payments *services.PaymentManager
	Orders   *services.OrderService
	Monitor  *services.PaymentMonitor
}

func NewPaymentController(payments *services.PaymentManager, orders *services.OrderService, monitor *services.PaymentMonitor) *PaymentController {
	return &PaymentController{Payments: payments, Orders: orders, Monitor: monitor}
}

// InitiatePayment -> asks the customer's provider to collect the order total.
// Phone and amount default to the order's contact phone and stored total.
func (pc *PaymentController) InitiatePayment(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Provider    string           `json:"provider" binding:"required"`
		PhoneNumber string           `json:"phone_number"`
		Amount      *decimal.Decimal `json:"amount"`
		Description string           `json:"description"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondValidationError(c, http.StatusBadRequest, "provider", err)
		return
	}

	ctx := c.Request.Context()
	order, err := pc.Orders.GetOrder(ctx, orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	phone := body.PhoneNumber
	if phone == "" {
		phone = order.ContactPhone()
	}
	amount := order.TotalAmount
	if body.Amount != nil {
		amount = *body.Amount
	}

	result, err := pc.Payments.InitiatePayment(ctx, strings.ToLower(body.Provider), phone, amount, order, body.Description)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	code := http.StatusCreated
	if !result.Success {
		code = http.StatusBadGateway
	}
	c.JSON(code, utils.JSONResponse{
		Status:  result.Success,
		Message: result.Message,
		Data:    result,
	})
}

func (pc *PaymentController) GetProviders(c *gin.Context) {
	utils.RespondJSON(c, http.StatusOK, "Available payment providers", pc.Payments.AvailableProviders())
}

// CheckStatus polls the provider while the transaction is still open.
func (pc *PaymentController) CheckStatus(c *gin.Context) {
	txn, err := pc.Payments.CheckTransactionStatus(c.Request.Context(), c.Param("transaction_id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payment status", txn)
}

func (pc *PaymentController) ListOrderPayments(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}
	txns, err := pc.Payments.ListTransactions(c.Request.Context(), orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payment transactions", txns)
}

func (pc *PaymentController) GetMetrics(c *gin.Context) {
	utils.RespondJSON(c, http.StatusOK, "Payment metrics", pc.Monitor.GetMetrics())
}

// Webhook receives provider callbacks. It always answers 200 so providers do
// not keep retrying a callback we cannot use; problems are reported in the body.
func (pc *PaymentController) Webhook(c *gin.Context) {
	provider := strings.ToLower(c.Param("provider"))

	payload, err := readCallbackPayload(c)
	if err != nil {
		utils.ErrorLogger.Warnf("Unreadable %s callback: %v", provider, err)
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": "invalid payload"})
		return
	}

	result, err := pc.Payments.HandleWebhook(c.Request.Context(), provider, payload)
	if err != nil {
		msg := err.Error()
		var unsupported *services.UnsupportedProviderError
		if !errors.Is(err, services.ErrTransactionNotFound) &&
			!errors.Is(err, services.ErrMissingReference) &&
			!errors.As(err, &unsupported) {
			msg = "callback could not be processed"
		}
		utils.ErrorLogger.Warnf("%s callback rejected: %v", provider, err)
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": msg})
		return
	}

	utils.InfoLogger.Infof("%s callback for %s applied (changed=%t, order_paid=%t)",
		provider, result.Transaction.TransactionID, result.Changed, result.OrderPaid)
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// readCallbackPayload accepts JSON bodies and urlencoded or multipart forms.
func readCallbackPayload(c *gin.Context) (map[string]interface{}, error) {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		payload := map[string]interface{}{}
		dec := json.NewDecoder(c.Request.Body)
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			return nil, err
		}
		return payload, nil
	}

	if err := c.Request.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, err
	}
	payload := make(map[string]interface{}, len(c.Request.PostForm))
	for key, values := range c.Request.PostForm {
		if len(values) > 0 {
			payload[key] = values[0]
		}
	}
	return payload, nil
}
