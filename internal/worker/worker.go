// Package worker provides async consumers for the event bus: the alert
// worker persists critical-band alerts published during analyzer passes so
// they survive engine restarts.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/open-utility/kestrel/internal/domain"
)

// AlertWorker subscribes to the alert topic and writes each alert through
// the repository.
type AlertWorker struct {
	bus  domain.EventBus
	repo domain.Repository

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewAlertWorker creates an alert worker.
func NewAlertWorker(bus domain.EventBus, repo domain.Repository) *AlertWorker {
	ctx, cancel := context.WithCancel(context.Background())
	return &AlertWorker{
		bus:    bus,
		repo:   repo,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the alert topic.
func (w *AlertWorker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicAlert, w.handleAlert)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("alert worker started", "topic", domain.TopicAlert)
	return nil
}

func (w *AlertWorker) handleAlert(ctx context.Context, msg *domain.Message) error {
	var alert domain.Alert
	if err := json.Unmarshal(msg.Payload, &alert); err != nil {
		slog.Error("failed to parse alert message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if w.repo != nil {
		if err := w.repo.SaveAlert(ctx, &alert); err != nil {
			slog.Error("failed to save alert",
				"alert_id", alert.ID,
				"tesisat_no", alert.TesisatNo,
				"error", err,
			)
			return err
		}
	}

	slog.Info("alert recorded",
		"alert_id", alert.ID,
		"session_id", alert.SessionID,
		"tesisat_no", alert.TesisatNo,
		"score", alert.TotalScore,
	)
	return nil
}

// Stop gracefully stops the worker.
func (w *AlertWorker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("alert worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *AlertWorker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
