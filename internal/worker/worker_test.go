package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/open-utility/kestrel/internal/bus"
	"github.com/open-utility/kestrel/internal/domain"
)

// memoryRepo records saved alerts; other methods are unused here.
type memoryRepo struct {
	domain.Repository
	mu     sync.Mutex
	alerts []*domain.Alert
}

func (r *memoryRepo) SaveAlert(ctx context.Context, alert *domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
	return nil
}

func (r *memoryRepo) saved() []*domain.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.Alert(nil), r.alerts...)
}

func TestAlertWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	repo := &memoryRepo{}
	worker := NewAlertWorker(eventBus, repo)

	t.Run("StartAndStop", func(t *testing.T) {
		if err := worker.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := worker.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
		}
		if stats.Topics[0] != domain.TopicAlert {
			t.Errorf("expected alert topic, got %s", stats.Topics[0])
		}

		if err := worker.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}

		stats = worker.GetStats()
		if stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("PersistsAlert", func(t *testing.T) {
		w := NewAlertWorker(eventBus, repo)
		if err := w.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer w.Stop()

		time.Sleep(20 * time.Millisecond)

		alert := domain.Alert{
			ID:         "alert-001",
			SessionID:  "session-001",
			TesisatNo:  "T-1",
			TotalScore: 90,
			RiskLevel:  domain.LevelKritik,
			Reasons:    "RİSKLİ ABONE (Kara Liste)",
			CreatedAt:  time.Now().UTC(),
		}
		payload, _ := json.Marshal(alert)

		if err := eventBus.Publish(context.Background(), domain.TopicAlert, payload); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		deadline := time.After(time.Second)
		for {
			if alerts := repo.saved(); len(alerts) > 0 {
				if alerts[0].TesisatNo != "T-1" {
					t.Errorf("expected alert for T-1, got %s", alerts[0].TesisatNo)
				}
				if alerts[0].RiskLevel != domain.LevelKritik {
					t.Errorf("expected kritik alert, got %s", alerts[0].RiskLevel)
				}
				return
			}
			select {
			case <-deadline:
				t.Fatal("timeout waiting for alert persistence")
			case <-time.After(10 * time.Millisecond):
			}
		}
	})

	t.Run("IgnoresMalformedPayload", func(t *testing.T) {
		w := NewAlertWorker(eventBus, repo)
		if err := w.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer w.Stop()

		time.Sleep(20 * time.Millisecond)

		before := len(repo.saved())
		eventBus.Publish(context.Background(), domain.TopicAlert, []byte("not json"))
		time.Sleep(50 * time.Millisecond)

		if len(repo.saved()) != before {
			t.Error("malformed payload must not be persisted")
		}
	})
}
