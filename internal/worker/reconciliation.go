package worker

import (
	"context"
	"log/slog"
	"storefront/internal/infrastructure/payment"
	"storefront/internal/repo"
	"storefront/internal/service"
	"time"
)

// ReconciliationWorker periodically asks the payment provider about intents
// that are still PENDING locally. A webhook lost in transit leaves a paid
// order looking unpaid; this loop closes that gap.
type ReconciliationWorker struct {
	payments  repo.PaymentRepo
	provider  payment.Provider
	settler   service.PaymentService
	interval  time.Duration
	olderThan time.Duration
}

func NewReconciliationWorker(
	payments repo.PaymentRepo,
	provider payment.Provider,
	settler service.PaymentService,
	interval, olderThan time.Duration,
) *ReconciliationWorker {
	return &ReconciliationWorker{
		payments:  payments,
		provider:  provider,
		settler:   settler,
		interval:  interval,
		olderThan: olderThan,
	}
}

func (w *ReconciliationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	slog.Info("reconciliation_worker_started",
		slog.Duration("interval", w.interval),
		slog.Duration("older_than", w.olderThan),
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("reconciliation_worker_stopped")
			return
		case <-ticker.C:
			if err := w.process(ctx); err != nil {
				slog.Error("reconciliation_failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (w *ReconciliationWorker) process(ctx context.Context) error {
	stale, err := w.payments.FindStalePending(ctx, w.olderThan)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	slog.Info("reconciling_stale_payments", slog.Int("count", len(stale)))

	for _, txn := range stale {
		state, err := w.provider.IntentState(ctx, txn.IntentID)
		if err != nil {
			slog.Warn("intent_state_check_failed",
				slog.String("intent_id", txn.IntentID),
				slog.String("error", err.Error()),
			)
			continue // next sweep retries
		}

		if state == payment.IntentPending {
			continue // the provider has not decided yet
		}

		reason := ""
		if state == payment.IntentFailed {
			reason = "reconciled: provider reports failure"
		}
		if err := w.settler.SettleIntent(ctx, txn.IntentID, state, reason); err != nil {
			slog.Error("reconcile_settle_failed",
				slog.String("intent_id", txn.IntentID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}
