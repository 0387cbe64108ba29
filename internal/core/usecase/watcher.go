package usecase

import (
	"context"
	"log/slog"

	"github.com/hadassahlevi/tiktax-client/internal/core/domain"
	"github.com/hadassahlevi/tiktax-client/internal/infrastructure/resilience"
	"github.com/hadassahlevi/tiktax-client/internal/observability/metrics"
)

// InterpretationWatcher observes the server-side interpretation of a
// receipt by re-fetching it on a bounded exponential schedule. The
// remote service gives no push notification; polling is the explicit,
// bounded observation mechanism, never an unbounded loop.
type InterpretationWatcher struct {
	store   *ReceiptStore
	backoff resilience.Backoff
	metrics *metrics.ClientMetrics
}

func NewInterpretationWatcher(store *ReceiptStore, backoff resilience.Backoff, m *metrics.ClientMetrics) *InterpretationWatcher {
	return &InterpretationWatcher{store: store, backoff: backoff, metrics: m}
}

// Watch polls the receipt until interpretation has concluded or the
// schedule is exhausted, applying every observation to the store. It
// returns the last observed state; on cutoff the receipt is simply left
// as last seen.
func (w *InterpretationWatcher) Watch(ctx context.Context, id string) (*domain.Receipt, error) {
	var last *domain.Receipt

	for attempt := 1; ; attempt++ {
		receipt, err := w.store.gateway.Get(ctx, id)
		switch {
		case err == nil:
			w.metrics.RecordInterpretationPoll(string(receipt.Status))
			last = receipt
			w.store.observe(*receipt)
			if interpretationConcluded(*receipt) {
				return last, nil
			}
		case transient(err):
			slog.Warn("interpretation_poll_failed", "receipt_id", id, "attempt", attempt, "error", err)
		default:
			return last, err
		}

		if !w.backoff.Sleep(ctx, attempt) {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			slog.Warn("interpretation_watch_cutoff", "receipt_id", id, "attempts", attempt)
			return last, nil
		}
	}
}

// interpretationConcluded reports whether further polling can tell us
// anything new: a terminal status, or a processing receipt whose fields
// the server has already filled in (ready for review).
func interpretationConcluded(r domain.Receipt) bool {
	if r.Status.Terminal() {
		return true
	}
	return r.Status == domain.StatusProcessing && r.Vendor != ""
}

func transient(err error) bool {
	return domain.IsKind(err, domain.ErrNetworkUnavailable) ||
		domain.IsKind(err, domain.ErrServerError) ||
		domain.IsKind(err, domain.ErrServiceUnavailable)
}
