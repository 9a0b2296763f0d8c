package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-momo/models"
	"github.com/yeremiapane/restaurant-momo/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateOrderInput is a staff-entered order. TotalAmount is what the client
// displayed; it is stored only until the real total is computed.
type CreateOrderInput struct {
	CustomerID      *uint            `json:"customer_id"`
	OrderType       string           `json:"order_type"`
	TableNumber     *int             `json:"table_number"`
	WaiterID        *uint            `json:"waiter_id"`
	BranchID        *uint            `json:"branch_id"`
	Notes           string           `json:"notes"`
	DeliveryAddress *string          `json:"delivery_address"`
	CustomerPhone   string           `json:"customer_phone"`
	CustomerEmail   string           `json:"customer_email"`
	TotalAmount     *decimal.Decimal `json:"total_amount"`
	Cart
}

// OnlineOrderInput is a customer-placed delivery or takeaway order.
type OnlineOrderInput struct {
	CustomerName    string           `json:"customer_name"`
	CustomerPhone   string           `json:"customer_phone"`
	CustomerEmail   string           `json:"customer_email"`
	OrderType       string           `json:"order_type"`
	DeliveryAddress string           `json:"delivery_address"`
	BranchID        *uint            `json:"branch_id"`
	Notes           string           `json:"notes"`
	TotalAmount     *decimal.Decimal `json:"total_amount"`
	Cart
}

type OrderFilter struct {
	Status    string
	OrderType string
	BranchID  *uint
	Limit     int
}

// OrderService persists composed orders and keeps their totals authoritative.
type OrderService struct {
	db          *gorm.DB
	catalog     Catalog
	broadcaster EventBroadcaster
}

func NewOrderService(db *gorm.DB, catalog Catalog, broadcaster EventBroadcaster) *OrderService {
	if broadcaster == nil {
		broadcaster = noopBroadcaster{}
	}
	return &OrderService{db: db, catalog: catalog, broadcaster: broadcaster}
}

// CreateOrder composes the cart, numbers the order and stores it with a
// server-computed total. Warnings list the cart lines that were skipped.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, []string, error) {
	if in.OrderType == "" {
		in.OrderType = models.OrderTypeDineIn
	}
	if !models.IsValidOrderType(in.OrderType) {
		return nil, nil, &models.ValidationError{Field: "order_type", Message: fmt.Sprintf("unknown order type %q", in.OrderType)}
	}

	composed, err := ComposeOrder(ctx, in.Cart, s.catalog)
	if err != nil {
		return nil, nil, err
	}
	if len(composed.Items) == 0 {
		return nil, composed.Warnings, ErrEmptyOrder
	}

	order := models.Order{
		CustomerID:      in.CustomerID,
		OrderType:       in.OrderType,
		Status:          models.OrderStatusPending,
		TableNumber:     in.TableNumber,
		WaiterID:        in.WaiterID,
		BranchID:        in.BranchID,
		Notes:           in.Notes,
		DeliveryAddress: in.DeliveryAddress,
		CustomerPhone:   in.CustomerPhone,
		CustomerEmail:   in.CustomerEmail,
		TotalAmount:     decimal.Zero,
	}
	if in.TotalAmount != nil {
		order.TotalAmount = *in.TotalAmount
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := NextOrderNumber(tx)
		if err != nil {
			return err
		}
		order.OrderNumber = number

		if err := tx.Omit(clause.Associations).Create(&order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if err := insertItems(tx, order.ID, composed.Items); err != nil {
			return err
		}
		return models.RecalculateOrderTotal(tx, order.ID)
	})
	if err != nil {
		return nil, composed.Warnings, err
	}

	created, err := s.GetOrder(ctx, order.ID)
	if err != nil {
		return nil, composed.Warnings, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_number": created.OrderNumber,
		"items":        len(created.OrderItems),
		"total":        created.TotalAmount.String(),
		"skipped":      len(composed.Warnings),
	}).Info("Order created")
	if in.TotalAmount != nil && !in.TotalAmount.Equal(created.TotalAmount) {
		utils.ErrorLogger.Warnf("Order %s: client total %s replaced by computed total %s",
			created.OrderNumber, in.TotalAmount.String(), created.TotalAmount.String())
	}

	s.broadcaster.BroadcastOrderUpdate(*created)
	return created, composed.Warnings, nil
}

// CreateOnlineOrder finds or creates the customer by phone and places the order
// on their behalf.
func (s *OrderService) CreateOnlineOrder(ctx context.Context, in OnlineOrderInput) (*models.Order, []string, error) {
	if in.OrderType == "" {
		in.OrderType = models.OrderTypeDelivery
	}
	if in.OrderType != models.OrderTypeDelivery && in.OrderType != models.OrderTypeTakeaway {
		return nil, nil, &models.ValidationError{Field: "order_type", Message: "online orders are delivery or takeaway"}
	}
	phone := strings.TrimSpace(in.CustomerPhone)
	if phone == "" {
		return nil, nil, &models.ValidationError{Field: "customer_phone", Message: "phone number is required"}
	}
	if strings.TrimSpace(in.CustomerName) == "" {
		return nil, nil, &models.ValidationError{Field: "customer_name", Message: "name is required"}
	}
	address := strings.TrimSpace(in.DeliveryAddress)
	if in.OrderType == models.OrderTypeDelivery && address == "" {
		return nil, nil, &models.ValidationError{Field: "delivery_address", Message: "delivery orders need an address"}
	}

	customer := models.Customer{}
	err := s.db.WithContext(ctx).
		Where(models.Customer{Phone: phone}).
		Attrs(models.Customer{Name: in.CustomerName, Email: in.CustomerEmail, Address: address}).
		FirstOrCreate(&customer).Error
	if err != nil {
		return nil, nil, fmt.Errorf("find or create customer: %w", err)
	}

	input := CreateOrderInput{
		CustomerID:    &customer.ID,
		OrderType:     in.OrderType,
		BranchID:      in.BranchID,
		Notes:         in.Notes,
		CustomerPhone: phone,
		CustomerEmail: in.CustomerEmail,
		TotalAmount:   in.TotalAmount,
		Cart:          in.Cart,
	}
	if address != "" {
		input.DeliveryAddress = &address
	}
	return s.CreateOrder(ctx, input)
}

// AddItems composes extra lines onto an open order.
func (s *OrderService) AddItems(ctx context.Context, orderID uint, cart Cart) (*models.Order, []string, error) {
	composed, err := ComposeOrder(ctx, cart, s.catalog)
	if err != nil {
		return nil, nil, err
	}
	if len(composed.Items) == 0 {
		return nil, composed.Warnings, ErrEmptyOrder
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadOpenOrder(tx, orderID); err != nil {
			return err
		}
		if err := insertItems(tx, orderID, composed.Items); err != nil {
			return err
		}
		return models.RecalculateOrderTotal(tx, orderID)
	})
	if err != nil {
		return nil, composed.Warnings, err
	}
	return s.reloadAndBroadcast(ctx, orderID, composed.Warnings)
}

// ReplaceItems drops every line of the order and composes the cart from scratch.
func (s *OrderService) ReplaceItems(ctx context.Context, orderID uint, cart Cart) (*models.Order, []string, error) {
	composed, err := ComposeOrder(ctx, cart, s.catalog)
	if err != nil {
		return nil, nil, err
	}
	if len(composed.Items) == 0 {
		return nil, composed.Warnings, ErrEmptyOrder
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadOpenOrder(tx, orderID); err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", orderID).Delete(&models.OrderItem{}).Error; err != nil {
			return fmt.Errorf("clear items of order %d: %w", orderID, err)
		}
		if err := insertItems(tx, orderID, composed.Items); err != nil {
			return err
		}
		return models.RecalculateOrderTotal(tx, orderID)
	})
	if err != nil {
		return nil, composed.Warnings, err
	}
	return s.reloadAndBroadcast(ctx, orderID, composed.Warnings)
}

// UpdateItemQuantity changes one line's quantity; the unit price stays frozen.
func (s *OrderService) UpdateItemQuantity(ctx context.Context, itemID uint, quantity int) (*models.Order, error) {
	if quantity < 1 {
		return nil, &models.ValidationError{Field: "quantity", Message: "quantity must be at least 1"}
	}

	var orderID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := loadItem(tx, itemID)
		if err != nil {
			return err
		}
		if _, err := loadOpenOrder(tx, item.OrderID); err != nil {
			return err
		}
		orderID = item.OrderID

		item.Quantity = quantity
		if err := tx.Omit(clause.Associations).Save(item).Error; err != nil {
			return fmt.Errorf("update item %d: %w", itemID, err)
		}
		return models.RecalculateOrderTotal(tx, orderID)
	})
	if err != nil {
		return nil, err
	}
	order, _, err := s.reloadAndBroadcast(ctx, orderID, nil)
	return order, err
}

// RemoveItem deletes one line and recomputes the total.
func (s *OrderService) RemoveItem(ctx context.Context, itemID uint) (*models.Order, error) {
	var orderID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := loadItem(tx, itemID)
		if err != nil {
			return err
		}
		if _, err := loadOpenOrder(tx, item.OrderID); err != nil {
			return err
		}
		orderID = item.OrderID

		if err := tx.Delete(item).Error; err != nil {
			return fmt.Errorf("delete item %d: %w", itemID, err)
		}
		return models.RecalculateOrderTotal(tx, orderID)
	})
	if err != nil {
		return nil, err
	}
	order, _, err := s.reloadAndBroadcast(ctx, orderID, nil)
	return order, err
}

// DeleteOrder removes the order together with its items, payment attempts and status history.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		for _, model := range []interface{}{&models.OrderItem{}, &models.PaymentTransaction{}, &models.OrderStatusLog{}} {
			if err := tx.Where("order_id = ?", orderID).Delete(model).Error; err != nil {
				return fmt.Errorf("delete children of order %d: %w", orderID, err)
			}
		}
		if err := tx.Delete(&order).Error; err != nil {
			return fmt.Errorf("delete order %d: %w", orderID, err)
		}
		utils.InfoLogger.Infof("Order %s deleted", order.OrderNumber)
		return nil
	})
}

// GetOrder loads an order with everything needed to display its lines.
func (s *OrderService) GetOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	err := preloadOrder(s.db.WithContext(ctx)).First(&order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", orderID, err)
	}
	return &order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	query := s.db.WithContext(ctx).Preload("Customer").Preload("OrderItems").Order("created_at DESC")
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.OrderType != "" {
		query = query.Where("order_type = ?", filter.OrderType)
	}
	if filter.BranchID != nil {
		query = query.Where("branch_id = ?", *filter.BranchID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) reloadAndBroadcast(ctx context.Context, orderID uint, warnings []string) (*models.Order, []string, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, warnings, err
	}
	s.broadcaster.BroadcastOrderUpdate(*order)
	return order, warnings, nil
}

func preloadOrder(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Customer").
		Preload("Waiter").
		Preload("OrderItems", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("OrderItems.MenuItem.BaseItem").
		Preload("OrderItems.MenuItem.ProteinSource").
		Preload("OrderItems.CustomBaseItem").
		Preload("OrderItems.CustomProteinSource")
}

func insertItems(tx *gorm.DB, orderID uint, items []models.OrderItem) error {
	rows := make([]models.OrderItem, len(items))
	for i, item := range items {
		rows[i] = item
		rows[i].ID = 0
		rows[i].OrderID = orderID
	}
	if err := tx.Omit(clause.Associations).Create(&rows).Error; err != nil {
		return fmt.Errorf("create items for order %d: %w", orderID, err)
	}
	return nil
}

func loadItem(tx *gorm.DB, itemID uint) (*models.OrderItem, error) {
	var item models.OrderItem
	err := tx.First(&item, itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load order item %d: %w", itemID, err)
	}
	return &item, nil
}

// loadOpenOrder returns ErrOrderLocked for paid and cancelled orders.
func loadOpenOrder(tx *gorm.DB, orderID uint) (*models.Order, error) {
	var order models.Order
	err := tx.First(&order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", orderID, err)
	}
	if order.Status == models.OrderStatusPaid || order.Status == models.OrderStatusCancelled {
		return nil, ErrOrderLocked
	}
	return &order, nil
}

// ReceiptLine is one printed line of a receipt.
type ReceiptLine struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Receipt is a read-only rendering of an order. Total is the stored
// total_amount, never a re-summed figure.
type Receipt struct {
	OrderNumber    string          `json:"order_number"`
	OrderType      string          `json:"order_type"`
	Status         string          `json:"status"`
	CustomerName   string          `json:"customer_name"`
	TableNumber    *int            `json:"table_number,omitempty"`
	Lines          []ReceiptLine   `json:"lines"`
	Total          decimal.Decimal `json:"total"`
	FormattedTotal string          `json:"formatted_total"`
	PaymentRef     string          `json:"payment_reference,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (s *OrderService) Receipt(ctx context.Context, orderID uint) (*Receipt, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{
		OrderNumber:    order.OrderNumber,
		OrderType:      order.OrderType,
		Status:         order.Status,
		CustomerName:   order.CustomerName(),
		TableNumber:    order.TableNumber,
		Total:          order.TotalAmount,
		FormattedTotal: utils.FormatUGX(order.TotalAmount),
		CreatedAt:      order.CreatedAt,
	}
	for i := range order.OrderItems {
		item := &order.OrderItems[i]
		receipt.Lines = append(receipt.Lines, ReceiptLine{
			Name:      item.DisplayName(),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal(),
		})
	}

	var paid models.PaymentTransaction
	err = s.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, models.PaymentStatusSuccessful).
		Order("updated_at ASC").
		Limit(1).
		Find(&paid).Error
	if err != nil {
		return nil, fmt.Errorf("load payment for order %d: %w", orderID, err)
	}
	receipt.PaymentRef = paid.TransactionID
	return receipt, nil
}
