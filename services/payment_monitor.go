package services

import (
	"context"
	"sync"
	"time"

	"github.com/yeremiapane/restaurant-momo/models"
	"github.com/yeremiapane/restaurant-momo/utils"
)

// PaymentMetrics counts initiated transactions and stored status changes
// since start. The per-status counters count changes into that status.
type PaymentMetrics struct {
	TotalTransactions  int64     `json:"total_transactions"`
	StatusChanges      int64     `json:"status_changes"`
	SuccessfulPayments int64     `json:"successful_payments"`
	FailedPayments     int64     `json:"failed_payments"`
	PendingPayments    int64     `json:"pending_payments"`
	CancelledPayments  int64     `json:"cancelled_payments"`
	Sweeps             int64     `json:"sweeps"`
	LastSweep          time.Time `json:"last_sweep"`
}

// PaymentMonitor polls providers for transactions no webhook has settled and
// cancels the ones that stay open past the pending timeout.
type PaymentMonitor struct {
	manager        *PaymentManager
	pollInterval   time.Duration
	pendingTimeout time.Duration

	metrics PaymentMetrics
	mutex   sync.Mutex

	stopChan chan struct{}
	done     chan struct{}
	now      func() time.Time
}

func NewPaymentMonitor(manager *PaymentManager, pollInterval, pendingTimeout time.Duration) *PaymentMonitor {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Minute
	}
	if pendingTimeout <= 0 {
		pendingTimeout = 30 * time.Minute
	}
	pm := &PaymentMonitor{
		manager:        manager,
		pollInterval:   pollInterval,
		pendingTimeout: pendingTimeout,
		now:            time.Now,
	}
	manager.OnStatusChange(pm.updateMetrics)
	return pm
}

// Start runs sweeps every poll interval until Stop or ctx is done.
func (pm *PaymentMonitor) Start(ctx context.Context) {
	pm.mutex.Lock()
	if pm.stopChan != nil {
		pm.mutex.Unlock()
		return
	}
	pm.stopChan = make(chan struct{})
	pm.done = make(chan struct{})
	stop, done := pm.stopChan, pm.done
	pm.mutex.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(pm.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				pm.Sweep(ctx)
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	utils.InfoLogger.Infof("Payment monitor started, polling every %s", pm.pollInterval)
}

// Stop ends the loop and waits for a running sweep to finish.
func (pm *PaymentMonitor) Stop() {
	pm.mutex.Lock()
	stop, done := pm.stopChan, pm.done
	pm.stopChan = nil
	pm.mutex.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	utils.InfoLogger.Info("Payment monitor stopped")
}

// Sweep checks every open transaction older than one poll interval once.
func (pm *PaymentMonitor) Sweep(ctx context.Context) {
	now := pm.now()
	open, err := pm.manager.openTransactions(ctx, now.Add(-pm.pollInterval))
	if err != nil {
		utils.ErrorLogger.Errorf("Payment sweep failed: %v", err)
		return
	}

	for _, txn := range open {
		if ctx.Err() != nil {
			return
		}

		current, err := pm.manager.CheckTransactionStatus(ctx, txn.TransactionID)
		if err != nil {
			utils.ErrorLogger.Errorf("Status check for %s failed: %v", txn.TransactionID, err)
			current = &txn
		}
		if !current.IsOpen() {
			continue
		}

		if now.Sub(txn.CreatedAt) >= pm.pendingTimeout {
			cancelled, err := pm.manager.CancelStale(ctx, txn.TransactionID, "payment timed out")
			if err != nil {
				utils.ErrorLogger.Errorf("Cancel of %s failed: %v", txn.TransactionID, err)
				continue
			}
			if cancelled {
				utils.InfoLogger.Infof("Cancelled stale payment %s after %s", txn.TransactionID, pm.pendingTimeout)
			}
		}
	}

	pm.mutex.Lock()
	pm.metrics.Sweeps++
	pm.metrics.LastSweep = now
	pm.mutex.Unlock()
}

func (pm *PaymentMonitor) updateMetrics(change StatusChange) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if change.New {
		pm.metrics.TotalTransactions++
	}
	pm.metrics.StatusChanges++

	switch change.Status {
	case models.PaymentStatusSuccessful:
		pm.metrics.SuccessfulPayments++
	case models.PaymentStatusFailed:
		pm.metrics.FailedPayments++
	case models.PaymentStatusCancelled:
		pm.metrics.CancelledPayments++
	case models.PaymentStatusPending:
		pm.metrics.PendingPayments++
	}
}

func (pm *PaymentMonitor) GetMetrics() PaymentMetrics {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	return pm.metrics
}
