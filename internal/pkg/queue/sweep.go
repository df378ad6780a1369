package queue

import (
	"context"
	"time"

	"github.com/LucaWinkler/FlohMarkt/app/repository"
	"github.com/gofiber/fiber/v2/log"
	"github.com/hibiken/asynq"
)

// Sweeper executes the recurring maintenance tasks.
type Sweeper struct {
	offers     repository.OfferRepository
	events     repository.WebhookEventRepository
	manager    *Manager
	stuckAfter time.Duration
	batchSize  int
}

// NewSweeper creates a sweeper over the given repositories. Re-enqueued
// events go back through the given manager.
func NewSweeper(offers repository.OfferRepository, events repository.WebhookEventRepository, manager *Manager) *Sweeper {
	return &Sweeper{
		offers:     offers,
		events:     events,
		manager:    manager,
		stuckAfter: time.Duration(intervalFromEnv("WEBHOOK_STUCK_AFTER_MINUTES", 15)) * time.Minute,
		batchSize:  100,
	}
}

// HandleOfferSweepTask expires all pending offers whose deadline passed
func (s *Sweeper) HandleOfferSweepTask(ctx context.Context, _ *asynq.Task) error {
	n, err := s.offers.ExpireDue(time.Now())
	if err != nil {
		return err
	}
	if n > 0 {
		log.Infof("[Sweeper] expired %d overdue offers", n)
	}
	return nil
}

// HandleWebhookReconcileTask re-enqueues events that sat in received or
// processing past the stuck threshold. This recovers events whose enqueue
// failed after the durable insert, or whose worker died mid-processing.
func (s *Sweeper) HandleWebhookReconcileTask(ctx context.Context, _ *asynq.Task) error {
	cutoff := time.Now().Add(-s.stuckAfter)
	events, err := s.events.FindStuck(cutoff, s.batchSize)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if err := s.manager.EnqueueWebhookProcess(ev.ID, ev.Provider); err != nil {
			log.Errorf("[Sweeper] re-enqueue of event %d failed: %v", ev.ID, err)
			continue
		}
		log.Warnf("[Sweeper] re-enqueued stuck event %d (provider=%s status=%s)", ev.ID, ev.Provider, ev.Status)
	}
	return nil
}
