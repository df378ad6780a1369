package webhook

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/LucaWinkler/FlohMarkt/app/models"
	"github.com/LucaWinkler/FlohMarkt/app/repository"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/chatstream"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/finix"
	metrics "github.com/LucaWinkler/FlohMarkt/internal/pkg/metrics/counter"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/queue"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/sideeffect"
	"github.com/gofiber/fiber/v2/log"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

// FinixHandler processes one decoded gateway envelope and returns a human
// readable outcome.
type FinixHandler interface {
	Handle(ctx context.Context, envelope *finix.Envelope) (string, error)
}

// ChatHandler processes one decoded chat event and returns a human
// readable outcome.
type ChatHandler interface {
	Handle(ctx context.Context, event *chatstream.Event) (string, error)
}

// FinixHandlerFunc adapts a function to the FinixHandler interface.
type FinixHandlerFunc func(ctx context.Context, envelope *finix.Envelope) (string, error)

func (f FinixHandlerFunc) Handle(ctx context.Context, envelope *finix.Envelope) (string, error) {
	return f(ctx, envelope)
}

// ChatHandlerFunc adapts a function to the ChatHandler interface.
type ChatHandlerFunc func(ctx context.Context, event *chatstream.Event) (string, error)

func (f ChatHandlerFunc) Handle(ctx context.Context, event *chatstream.Event) (string, error) {
	return f(ctx, event)
}

// PayloadArchiver stores raw payloads of processed events outside the
// database. Archiving is best-effort.
type PayloadArchiver interface {
	ArchiveEvent(ctx context.Context, provider, eventID string, payload []byte) error
}

// Dispatcher routes dequeued events to their registered handler and owns
// every event store status transition. Handlers never touch event rows.
type Dispatcher struct {
	events        repository.WebhookEventRepository
	finixEvents   repository.FinixEventRepository
	chatEvents    repository.ChatEventRepository
	finixHandlers map[string]FinixHandler
	chatHandlers  map[string]ChatHandler
	archiver      PayloadArchiver
}

// NewDispatcher creates a dispatcher with an empty handler registry.
func NewDispatcher(repos *repository.Repositories) *Dispatcher {
	return &Dispatcher{
		events:        repos.WebhookEvent,
		finixEvents:   repos.FinixEvent,
		chatEvents:    repos.ChatEvent,
		finixHandlers: make(map[string]FinixHandler),
		chatHandlers:  make(map[string]ChatHandler),
	}
}

// RegisterFinixHandler routes gateway events of the given entity and type
// to h. Registration happens at startup, before the workers run.
func (d *Dispatcher) RegisterFinixHandler(entity, eventType string, h FinixHandler) {
	d.finixHandlers[entity+"."+eventType] = h
}

// RegisterChatHandler routes chat events of the given type to h.
func (d *Dispatcher) RegisterChatHandler(eventType string, h ChatHandler) {
	d.chatHandlers[eventType] = h
}

// SetArchiver enables payload archiving for processed events.
func (d *Dispatcher) SetArchiver(a PayloadArchiver) {
	d.archiver = a
}

// HandleWebhookTask is the worker entry point for webhook:process tasks.
// The returned error classification decides the retry: a FatalError sends
// the task to the dead letter archive, everything else is retried with
// backoff.
func (d *Dispatcher) HandleWebhookTask(ctx context.Context, t *asynq.Task) error {
	var p queue.WebhookProcessPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return Fatalf("unmarshal task payload: %v", err)
	}

	event, err := d.events.GetByID(p.EventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Fatalf("event %d not found", p.EventID)
		}
		return err
	}

	// Failed events stay replayable, only processed is final here.
	if event.Status == models.WebhookStatusProcessed {
		log.Infof("[Dispatcher] event %d already processed, skipping", event.ID)
		return nil
	}

	if err := d.events.MarkProcessing(event.ID); err != nil {
		return err
	}

	outcome, procErr := d.process(ctx, event)
	if procErr != nil {
		d.finalizeFailure(event, procErr)
		return procErr
	}
	d.finalizeSuccess(ctx, event, outcome)
	return nil
}

func (d *Dispatcher) process(ctx context.Context, event *models.WebhookEvent) (string, error) {
	switch event.Provider {
	case models.WebhookProviderPaymentGateway:
		return d.processFinix(ctx, event)
	case models.WebhookProviderChat:
		return d.processChat(ctx, event)
	default:
		return "", Fatalf("no handlers for provider %s", event.Provider)
	}
}

func (d *Dispatcher) processFinix(ctx context.Context, event *models.WebhookEvent) (string, error) {
	if _, err := d.finixEvents.GetByEventID(event.EventID); err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", err
		}
		log.Warnf("[Dispatcher] no gateway twin for event %s, continuing", event.EventID)
	} else if err := d.finixEvents.MarkProcessing(event.EventID); err != nil {
		return "", err
	}

	envelope, err := finix.DecodeEnvelope(event.RawPayload)
	if err != nil {
		return "", Fatal(err)
	}
	if err := envelope.Validate(); err != nil {
		return "", Fatalf("invalid gateway payload: %v", err)
	}

	handler, ok := d.finixHandlers[envelope.EventKey()]
	if !ok {
		log.Infof("[Dispatcher] no handler for gateway event %s", envelope.EventKey())
		return "unhandled event type " + envelope.EventKey(), nil
	}
	return handler.Handle(ctx, envelope)
}

func (d *Dispatcher) processChat(ctx context.Context, event *models.WebhookEvent) (string, error) {
	if _, err := d.chatEvents.GetByEventID(event.EventID); err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", err
		}
		log.Warnf("[Dispatcher] no chat twin for event %s, continuing", event.EventID)
	} else if err := d.chatEvents.MarkProcessing(event.EventID); err != nil {
		return "", err
	}

	ev, err := chatstream.DecodeEvent(event.RawPayload)
	if err != nil {
		return "", Fatal(err)
	}
	if err := ev.Validate(); err != nil {
		return "", Fatalf("invalid chat payload: %v", err)
	}

	handler, ok := d.chatHandlers[ev.Type]
	if !ok {
		log.Infof("[Dispatcher] no handler for chat event %s", ev.Type)
		return "unhandled event type " + ev.Type, nil
	}
	return handler.Handle(ctx, ev)
}

// finalizeSuccess moves both event records to processed and runs the
// best-effort bookkeeping.
func (d *Dispatcher) finalizeSuccess(ctx context.Context, event *models.WebhookEvent, outcome string) {
	if err := d.events.MarkProcessed(event.ID); err != nil {
		log.Errorf("[Dispatcher] could not mark event %d processed: %v", event.ID, err)
	}
	switch event.Provider {
	case models.WebhookProviderPaymentGateway:
		if err := d.finixEvents.MarkProcessed(event.EventID, outcome); err != nil {
			log.Errorf("[Dispatcher] could not mark gateway twin %s processed: %v", event.EventID, err)
		}
	case models.WebhookProviderChat:
		if err := d.chatEvents.MarkProcessed(event.EventID, outcome); err != nil {
			log.Errorf("[Dispatcher] could not mark chat twin %s processed: %v", event.EventID, err)
		}
	}

	sideeffect.Observe("processed counter", func() error {
		return metrics.IncProcessed(event.Provider)
	})
	if d.archiver != nil {
		sideeffect.Observe("payload archive", func() error {
			return d.archiver.ArchiveEvent(ctx, event.Provider, event.EventID, event.RawPayload)
		})
	}
	log.Infof("[Dispatcher] event %d processed: %s", event.ID, outcome)
}

// finalizeFailure moves both event records to failed with the error
// attached. The caller re-throws so the queue schedules the retry.
func (d *Dispatcher) finalizeFailure(event *models.WebhookEvent, procErr error) {
	if err := d.events.MarkFailed(event.ID, procErr.Error()); err != nil {
		log.Errorf("[Dispatcher] could not mark event %d failed: %v", event.ID, err)
	}
	switch event.Provider {
	case models.WebhookProviderPaymentGateway:
		if err := d.finixEvents.MarkFailed(event.EventID, procErr.Error()); err != nil {
			log.Errorf("[Dispatcher] could not mark gateway twin %s failed: %v", event.EventID, err)
		}
	case models.WebhookProviderChat:
		if err := d.chatEvents.MarkFailed(event.EventID, procErr.Error()); err != nil {
			log.Errorf("[Dispatcher] could not mark chat twin %s failed: %v", event.EventID, err)
		}
	}

	sideeffect.Observe("failure counter", func() error {
		return metrics.IncFailed(event.Provider)
	})
	log.Warnf("[Dispatcher] event %d failed: %v", event.ID, procErr)
}
