package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LucaWinkler/FlohMarkt/app/models"
	"github.com/LucaWinkler/FlohMarkt/app/repository"
)

type fakeOfferRepo struct {
	expired int64
	err     error
	lastNow time.Time
}

func (f *fakeOfferRepo) Create(offer *models.Offer) error       { return nil }
func (f *fakeOfferRepo) GetByID(id uint) (*models.Offer, error) { return nil, nil }

func (f *fakeOfferRepo) ExpireDue(now time.Time) (int64, error) {
	f.lastNow = now
	return f.expired, f.err
}

func TestHandleOfferSweepTask_ExpiresDueOffers(t *testing.T) {
	offers := &fakeOfferRepo{expired: 3}
	s := &Sweeper{offers: offers}

	if err := s.HandleOfferSweepTask(context.Background(), NewOfferSweepTask()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if offers.lastNow.IsZero() {
		t.Fatalf("expected ExpireDue to be called with the current time")
	}
}

func TestHandleOfferSweepTask_PropagatesRepositoryError(t *testing.T) {
	offers := &fakeOfferRepo{err: errors.New("deadlock")}
	s := &Sweeper{offers: offers}

	if err := s.HandleOfferSweepTask(context.Background(), NewOfferSweepTask()); err == nil {
		t.Fatalf("expected repository error to propagate")
	}
}

type noStuckEventsRepo struct {
	repository.WebhookEventRepository
}

func (noStuckEventsRepo) FindStuck(olderThan time.Time, limit int) ([]models.WebhookEvent, error) {
	return nil, nil
}

type stuckLookupFailsRepo struct {
	repository.WebhookEventRepository
}

func (stuckLookupFailsRepo) FindStuck(olderThan time.Time, limit int) ([]models.WebhookEvent, error) {
	return nil, errors.New("db gone")
}

func TestHandleWebhookReconcileTask_NoStuckEventsIsNoop(t *testing.T) {
	s := &Sweeper{events: noStuckEventsRepo{}, stuckAfter: 15 * time.Minute, batchSize: 100}

	if err := s.HandleWebhookReconcileTask(context.Background(), NewWebhookReconcileTask()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHandleWebhookReconcileTask_PropagatesLookupError(t *testing.T) {
	s := &Sweeper{events: stuckLookupFailsRepo{}, stuckAfter: 15 * time.Minute, batchSize: 100}

	if err := s.HandleWebhookReconcileTask(context.Background(), NewWebhookReconcileTask()); err == nil {
		t.Fatalf("expected lookup error to propagate")
	}
}
