package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/LucaWinkler/FlohMarkt/app/models"
	"github.com/LucaWinkler/FlohMarkt/app/repository"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/chatstream"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/finix"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/datatypes"
)

// ErrBadPayload marks deliveries that failed decoding or validation.
// The ingress maps it to a client error so the provider stops retrying.
var ErrBadPayload = errors.New("bad payload")

// Enqueuer schedules processing for a stored event. The queue manager
// implements it; injected so the service stays testable without Redis.
type Enqueuer interface {
	EnqueueWebhookProcess(eventID uint, provider string) error
}

// Service is the ingest side of the event store. It records inbound
// payloads idempotently and schedules their processing exactly once.
type Service struct {
	events      repository.WebhookEventRepository
	finixEvents repository.FinixEventRepository
	chatEvents  repository.ChatEventRepository
	queue       Enqueuer
}

// NewService creates the ingest service over the event repositories.
func NewService(repos *repository.Repositories, queue Enqueuer) *Service {
	return &Service{
		events:      repos.WebhookEvent,
		finixEvents: repos.FinixEvent,
		chatEvents:  repos.ChatEvent,
		queue:       queue,
	}
}

// IngestFinix records a payment gateway payload and schedules processing.
// Returns the stored event and whether this delivery created it. Duplicate
// deliveries resolve to the stored record without a second enqueue.
func (s *Service) IngestFinix(payload []byte) (*models.WebhookEvent, bool, error) {
	// Only parseability is checked here. Structural validation happens at
	// dispatch so a malformed delivery still leaves an auditable record
	// and a visible failed job instead of silently bouncing.
	envelope, err := finix.DecodeEnvelope(payload)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	eventID := envelope.ID
	if eventID == "" {
		eventID = hashEventID(payload)
	}

	created, stored, err := s.events.CreateIfNotExists(&models.WebhookEvent{
		Provider:   models.WebhookProviderPaymentGateway,
		EventID:    eventID,
		EventType:  envelope.EventKey(),
		Status:     models.WebhookStatusReceived,
		RawPayload: datatypes.JSON(payload),
	})
	if err != nil {
		return nil, false, err
	}

	// The twin is written even on a duplicate so a crash between the two
	// inserts heals on redelivery.
	if _, _, err := s.finixEvents.CreateIfNotExists(&models.FinixWebhookEvent{
		EventID:    eventID,
		Entity:     envelope.Entity,
		Type:       envelope.Type,
		Status:     models.WebhookStatusReceived,
		RawPayload: datatypes.JSON(payload),
	}); err != nil {
		return nil, false, err
	}

	if !created {
		log.Infof("[Webhook] duplicate gateway event %s ignored", eventID)
		return stored, false, nil
	}

	if err := s.queue.EnqueueWebhookProcess(stored.ID, stored.Provider); err != nil {
		// The event is durable; the reconcile sweep picks it up if the
		// provider does not redeliver.
		return stored, true, fmt.Errorf("enqueue event %d: %w", stored.ID, err)
	}
	return stored, true, nil
}

// IngestChat records a chat provider payload and schedules processing.
// The provider sends no event id, so deliveries are deduplicated by a
// hash of the payload bytes.
func (s *Service) IngestChat(payload []byte) (*models.WebhookEvent, bool, error) {
	ev, err := chatstream.DecodeEvent(payload)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	eventID := hashEventID(payload)

	created, stored, err := s.events.CreateIfNotExists(&models.WebhookEvent{
		Provider:   models.WebhookProviderChat,
		EventID:    eventID,
		EventType:  ev.Type,
		Status:     models.WebhookStatusReceived,
		RawPayload: datatypes.JSON(payload),
	})
	if err != nil {
		return nil, false, err
	}

	if _, _, err := s.chatEvents.CreateIfNotExists(&models.ChatWebhookEvent{
		EventID:    eventID,
		Type:       ev.Type,
		ChannelID:  ev.ChannelID,
		MessageID:  ev.MessageID(),
		Status:     models.WebhookStatusReceived,
		RawPayload: datatypes.JSON(payload),
	}); err != nil {
		return nil, false, err
	}

	if !created {
		log.Infof("[Webhook] duplicate chat event %s ignored", eventID)
		return stored, false, nil
	}

	if err := s.queue.EnqueueWebhookProcess(stored.ID, stored.Provider); err != nil {
		return stored, true, fmt.Errorf("enqueue event %d: %w", stored.ID, err)
	}
	return stored, true, nil
}

// hashEventID derives a stable identity for payloads without a provider
// assigned event id.
func hashEventID(payload []byte) string {
	sum := sha256.Sum256(payload)
	return "hash:" + hex.EncodeToString(sum[:])
}
