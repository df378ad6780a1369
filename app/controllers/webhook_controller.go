package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/LucaWinkler/FlohMarkt/internal/pkg/webhook"
)

// WebhookController terminates the provider webhook endpoints. Providers
// redeliver on non-2xx, so a delivery only bounces when it could not be
// stored. A stored event whose enqueue failed is still acknowledged, the
// reconcile sweep schedules it later.
type WebhookController struct {
	service *webhook.Service
}

// NewWebhookController creates the ingress controller over the ingest service.
func NewWebhookController(service *webhook.Service) *WebhookController {
	return &WebhookController{service: service}
}

// HandleFinixWebhook ingests one payment gateway delivery.
func (wc *WebhookController) HandleFinixWebhook(c *fiber.Ctx) error {
	event, created, err := wc.service.IngestFinix(c.Body())
	return wc.respond(c, event != nil, created, err)
}

// HandleChatWebhook ingests one chat provider delivery.
func (wc *WebhookController) HandleChatWebhook(c *fiber.Ctx) error {
	event, created, err := wc.service.IngestChat(c.Body())
	return wc.respond(c, event != nil, created, err)
}

func (wc *WebhookController) respond(c *fiber.Ctx, stored, created bool, err error) error {
	if err != nil {
		if errors.Is(err, webhook.ErrBadPayload) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
		}
		if !stored {
			log.Errorf("[Webhook] ingest failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Event could not be stored"})
		}
		// Stored but not enqueued. Acknowledge so the provider stops
		// redelivering, the sweep picks the event up.
		log.Errorf("[Webhook] stored event could not be enqueued: %v", err)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "accepted", "queued": false})
	}

	if !created {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "duplicate"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "accepted", "queued": true})
}
