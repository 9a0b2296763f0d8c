package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-momo/models"
	"github.com/yeremiapane/restaurant-momo/utils"
	"gorm.io/gorm"
)

// InitiateResult is returned for every initiation that got as far as creating
// a transaction, successful or not.
type InitiateResult struct {
	Success       bool                       `json:"success"`
	TransactionID string                     `json:"transaction_id"`
	Message       string                     `json:"message"`
	Transaction   *models.PaymentTransaction `json:"transaction"`
}

// ProviderUpdate is a provider-reported status for one of our transactions,
// from either a status poll or a webhook.
type ProviderUpdate struct {
	TransactionID         string
	Provider              string
	Code                  string
	ProviderTransactionID string
}

type ReconcileResult struct {
	Transaction    *models.PaymentTransaction `json:"transaction"`
	PreviousStatus string                     `json:"previous_status"`
	Changed        bool                       `json:"changed"`
	OrderPaid      bool                       `json:"order_paid"`
}

// PaymentManager routes payments to the registered providers and applies
// their results to transactions and orders.
type PaymentManager struct {
	db          *gorm.DB
	lifecycle   *OrderLifecycle
	broadcaster EventBroadcaster

	mu        sync.RWMutex
	providers map[string]PaymentProvider
	observers []func(StatusChange)

	now func() time.Time
}

func NewPaymentManager(db *gorm.DB, lifecycle *OrderLifecycle, broadcaster EventBroadcaster) *PaymentManager {
	if broadcaster == nil {
		broadcaster = noopBroadcaster{}
	}
	return &PaymentManager{
		db:          db,
		lifecycle:   lifecycle,
		broadcaster: broadcaster,
		providers:   make(map[string]PaymentProvider),
		now:         time.Now,
	}
}

// Register adds or replaces the adapter for a provider id.
func (m *PaymentManager) Register(name string, provider PaymentProvider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[name] = provider
}

// AvailableProviders returns the registered provider ids, sorted.
func (m *PaymentManager) AvailableProviders() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StatusChange describes one persisted transaction status change. New marks
// the first status stored for a freshly initiated transaction.
type StatusChange struct {
	TransactionID string
	Status        string
	New           bool
}

// OnStatusChange registers a callback run after every persisted status change.
func (m *PaymentManager) OnStatusChange(fn func(StatusChange)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

func (m *PaymentManager) notifyObservers(change StatusChange) {
	m.mu.RLock()
	observers := append([]func(StatusChange){}, m.observers...)
	m.mu.RUnlock()
	for _, fn := range observers {
		fn(change)
	}
}

func (m *PaymentManager) provider(name string) (PaymentProvider, error) {
	m.mu.RLock()
	p, ok := m.providers[name]
	m.mu.RUnlock()
	if !ok {
		return nil, &UnsupportedProviderError{Provider: name, Available: m.AvailableProviders()}
	}
	return p, nil
}

// NewTransactionID -> TX1718000000A1B2C3
func NewTransactionID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("TX%d%s", now.Unix(), strings.ToUpper(suffix))
}

// InitiatePayment records a new attempt and asks the provider to collect it.
// A provider refusal is not an error: the result carries Success=false, the
// message and the id of the failed transaction.
func (m *PaymentManager) InitiatePayment(ctx context.Context, providerName, phone string, amount decimal.Decimal, order *models.Order, description string) (*InitiateResult, error) {
	adapter, err := m.provider(providerName)
	if err != nil {
		return nil, err
	}
	if order.Status == models.OrderStatusPaid {
		return nil, ErrOrderAlreadyPaid
	}
	if order.Status == models.OrderStatusCancelled {
		return nil, ErrOrderLocked
	}
	if strings.TrimSpace(phone) == "" {
		return nil, &models.ValidationError{Field: "phone_number", Message: "phone number is required"}
	}
	if !amount.IsPositive() {
		return nil, &models.ValidationError{Field: "amount", Message: "amount must be greater than zero"}
	}
	if description == "" {
		description = fmt.Sprintf("Payment for Order #%s", order.OrderNumber)
	}

	txn := models.PaymentTransaction{
		OrderID:       order.ID,
		TransactionID: NewTransactionID(m.now()),
		Provider:      providerName,
		PhoneNumber:   phone,
		Amount:        amount,
		Status:        models.PaymentStatusInitiated,
	}
	db := m.db.WithContext(ctx)
	if err := db.Create(&txn).Error; err != nil {
		return nil, fmt.Errorf("create payment transaction: %w", err)
	}

	ok, message := adapter.InitiatePayment(ctx, phone, amount, txn.TransactionID, description)

	updates := map[string]interface{}{"status": models.PaymentStatusPending}
	if !ok {
		updates = map[string]interface{}{
			"status":        models.PaymentStatusFailed,
			"error_message": message,
		}
	}
	// a webhook may already have settled the transaction while we waited
	if err := db.Model(&models.PaymentTransaction{}).
		Where("id = ? AND status = ?", txn.ID, models.PaymentStatusInitiated).
		Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update payment transaction %s: %w", txn.TransactionID, err)
	}
	if err := db.First(&txn, txn.ID).Error; err != nil {
		return nil, fmt.Errorf("reload payment transaction %s: %w", txn.TransactionID, err)
	}

	entry := utils.InfoLogger.WithFields(logrus.Fields{
		"transaction_id": txn.TransactionID,
		"provider":       providerName,
		"order_number":   order.OrderNumber,
		"amount":         amount.String(),
	})
	if ok {
		entry.Info("Payment initiated")
	} else {
		entry.WithField("error", message).Warn("Payment initiation failed")
	}

	m.notifyObservers(StatusChange{TransactionID: txn.TransactionID, Status: txn.Status, New: true})
	m.broadcaster.BroadcastPaymentUpdate(txn)
	return &InitiateResult{
		Success:       ok,
		TransactionID: txn.TransactionID,
		Message:       message,
		Transaction:   &txn,
	}, nil
}

// Reconcile applies a provider status to a transaction. Re-applying the same
// status writes nothing, and the order is marked paid at most once however
// many transactions or callbacks report success.
func (m *PaymentManager) Reconcile(ctx context.Context, update ProviderUpdate) (*ReconcileResult, error) {
	tx := m.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("begin reconciliation: %w", tx.Error)
	}

	var txn models.PaymentTransaction
	if err := tx.Where("transaction_id = ?", update.TransactionID).First(&txn).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("load transaction %s: %w", update.TransactionID, err)
	}

	provider := update.Provider
	if provider == "" {
		provider = txn.Provider
	} else if provider != txn.Provider {
		utils.ErrorLogger.Warnf("Transaction %s belongs to %s but was reported by %s", txn.TransactionID, txn.Provider, provider)
	}

	result := &ReconcileResult{PreviousStatus: txn.Status}
	newStatus := NormalizeStatus(provider, update.Code)
	if newStatus == txn.Status {
		tx.Rollback()
		result.Transaction = &txn
		return result, nil
	}

	// raw provider values are unvalidated, keep them within their columns
	updates := map[string]interface{}{
		"status":          newStatus,
		"provider_status": truncateRunes(update.Code, models.ProviderStatusMaxLength),
	}
	if update.ProviderTransactionID != "" {
		updates["provider_transaction_id"] = truncateRunes(update.ProviderTransactionID, models.ProviderTransactionIDMaxLength)
	}
	res := tx.Model(&models.PaymentTransaction{}).
		Where("id = ? AND status <> ?", txn.ID, newStatus).
		Updates(updates)
	if res.Error != nil {
		tx.Rollback()
		return nil, fmt.Errorf("update transaction %s: %w", txn.TransactionID, res.Error)
	}
	if res.RowsAffected == 0 {
		// a concurrent reconciliation stored the same status first
		tx.Rollback()
		result.Transaction = &txn
		return result, nil
	}

	if newStatus == models.PaymentStatusSuccessful {
		fired, err := m.lifecycle.MarkPaid(tx, txn.OrderID, "payment:"+txn.TransactionID)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		result.OrderPaid = fired
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("commit reconciliation of %s: %w", txn.TransactionID, err)
	}
	result.Changed = true

	if err := m.db.WithContext(ctx).Preload("Order").First(&txn, txn.ID).Error; err != nil {
		return nil, fmt.Errorf("reload transaction %s: %w", txn.TransactionID, err)
	}
	result.Transaction = &txn

	utils.InfoLogger.WithFields(logrus.Fields{
		"transaction_id": txn.TransactionID,
		"provider":       provider,
		"code":           update.Code,
		"from":           result.PreviousStatus,
		"to":             newStatus,
		"order_paid":     result.OrderPaid,
	}).Info("Payment reconciled")

	m.notifyObservers(StatusChange{TransactionID: txn.TransactionID, Status: newStatus})
	m.broadcaster.BroadcastPaymentUpdate(txn)
	if result.OrderPaid && txn.Order != nil {
		m.broadcaster.BroadcastPaymentSuccess(*txn.Order, txn)
	}
	return result, nil
}

// CheckTransactionStatus polls the provider for an open transaction and
// reconciles the answer. Settled transactions are returned as stored.
func (m *PaymentManager) CheckTransactionStatus(ctx context.Context, transactionID string) (*models.PaymentTransaction, error) {
	txn, err := m.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !txn.IsOpen() {
		return txn, nil
	}

	adapter, err := m.provider(txn.Provider)
	if err != nil {
		return nil, err
	}

	code, ok := adapter.CheckPaymentStatus(ctx, txn.TransactionID)
	if !ok {
		utils.ErrorLogger.Warnf("Status check for %s via %s returned nothing", txn.TransactionID, txn.Provider)
		return txn, nil
	}

	result, err := m.Reconcile(ctx, ProviderUpdate{
		TransactionID: txn.TransactionID,
		Provider:      txn.Provider,
		Code:          code,
	})
	if err != nil {
		return nil, err
	}
	return result.Transaction, nil
}

// HandleWebhook parses a provider callback and reconciles it.
func (m *PaymentManager) HandleWebhook(ctx context.Context, providerName string, payload map[string]interface{}) (*ReconcileResult, error) {
	adapter, err := m.provider(providerName)
	if err != nil {
		return nil, err
	}
	parser, ok := adapter.(CallbackParser)
	if !ok {
		return nil, fmt.Errorf("provider %s does not accept callbacks", providerName)
	}

	callback := parser.ParseCallback(payload)
	if callback.Reference == "" {
		return nil, ErrMissingReference
	}

	return m.Reconcile(ctx, ProviderUpdate{
		TransactionID:         callback.Reference,
		Provider:              providerName,
		Code:                  callback.Status,
		ProviderTransactionID: callback.ProviderTransactionID,
	})
}

// CancelStale closes an open transaction the provider never settled.
func (m *PaymentManager) CancelStale(ctx context.Context, transactionID, reason string) (bool, error) {
	res := m.db.WithContext(ctx).Model(&models.PaymentTransaction{}).
		Where("transaction_id = ? AND status IN ?", transactionID,
			[]string{models.PaymentStatusInitiated, models.PaymentStatusPending}).
		Updates(map[string]interface{}{
			"status":        models.PaymentStatusCancelled,
			"error_message": reason,
		})
	if res.Error != nil {
		return false, fmt.Errorf("cancel transaction %s: %w", transactionID, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	m.notifyObservers(StatusChange{TransactionID: transactionID, Status: models.PaymentStatusCancelled})

	txn, err := m.GetTransaction(ctx, transactionID)
	if err != nil {
		return true, err
	}
	m.broadcaster.BroadcastPaymentUpdate(*txn)
	return true, nil
}

func (m *PaymentManager) GetTransaction(ctx context.Context, transactionID string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := m.db.WithContext(ctx).Preload("Order").Where("transaction_id = ?", transactionID).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load transaction %s: %w", transactionID, err)
	}
	return &txn, nil
}

func (m *PaymentManager) ListTransactions(ctx context.Context, orderID uint) ([]models.PaymentTransaction, error) {
	var txns []models.PaymentTransaction
	if err := m.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at DESC").Find(&txns).Error; err != nil {
		return nil, fmt.Errorf("list transactions for order %d: %w", orderID, err)
	}
	return txns, nil
}

// openTransactions returns initiated/pending transactions created before cutoff.
func (m *PaymentManager) openTransactions(ctx context.Context, cutoff time.Time) ([]models.PaymentTransaction, error) {
	var txns []models.PaymentTransaction
	err := m.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?", []string{models.PaymentStatusInitiated, models.PaymentStatusPending}, cutoff).
		Order("created_at ASC").
		Find(&txns).Error
	if err != nil {
		return nil, fmt.Errorf("list open transactions: %w", err)
	}
	return txns, nil
}
