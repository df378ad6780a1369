package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"github.com/LucaWinkler/FlohMarkt/app/models"
	"github.com/LucaWinkler/FlohMarkt/app/repository"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/queue"
)

// OpsController is the operator surface over the event store and the job
// queue: inspect events, inspect and replay dead letters, read the daily
// throughput counters. Everything here sits behind the ops API key.
type OpsController struct {
	repos   *repository.Repositories
	manager *queue.Manager
}

// NewOpsController creates the operator controller.
func NewOpsController(repos *repository.Repositories, manager *queue.Manager) *OpsController {
	return &OpsController{repos: repos, manager: manager}
}

// HandleListEvents lists event store records, filterable by status and
// provider.
func (oc *OpsController) HandleListEvents(c *fiber.Ctx) error {
	status := strings.TrimSpace(c.Query("status"))
	provider := strings.TrimSpace(c.Query("provider"))
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	events, err := oc.repos.WebhookEvent.ListByStatus(status, provider, (page-1)*limit, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to list events"})
	}
	total, err := oc.repos.WebhookEvent.CountByStatus(status, provider)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to count events"})
	}

	return c.JSON(fiber.Map{
		"events": events,
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

// HandleGetEvent returns one event together with its provider twin.
func (oc *OpsController) HandleGetEvent(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid event id"})
	}

	event, err := oc.repos.WebhookEvent.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Event not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load event"})
	}

	response := fiber.Map{"event": event}
	switch event.Provider {
	case models.WebhookProviderPaymentGateway:
		if twin, err := oc.repos.FinixEvent.GetByEventID(event.EventID); err == nil {
			response["gateway_event"] = twin
		}
	case models.WebhookProviderChat:
		if twin, err := oc.repos.ChatEvent.GetByEventID(event.EventID); err == nil {
			response["chat_event"] = twin
		}
	}
	return c.JSON(response)
}

// HandleReplayEvent schedules a stored event for another processing run.
// A retained or archived queue task holding the task id is removed first
// so the fresh enqueue cannot collide with it.
func (oc *OpsController) HandleReplayEvent(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid event id"})
	}

	event, err := oc.repos.WebhookEvent.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Event not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load event"})
	}

	taskID := queue.WebhookProcessTaskID(event.ID)
	if err := oc.manager.Inspector().DeleteTask(queue.QueueWebhooks, taskID); err != nil &&
		!errors.Is(err, asynq.ErrTaskNotFound) && !errors.Is(err, asynq.ErrQueueNotFound) {
		log.Warnf("[Ops] could not clear previous task %s: %v", taskID, err)
	}

	if err := oc.manager.EnqueueWebhookProcess(event.ID, event.Provider); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to enqueue event"})
	}

	log.Infof("[Ops] event %d scheduled for replay", event.ID)
	return c.JSON(fiber.Map{"status": "scheduled", "event_id": event.ID})
}

// HandleListGatewayEvents lists the payment gateway twin records.
func (oc *OpsController) HandleListGatewayEvents(c *fiber.Ctx) error {
	status := strings.TrimSpace(c.Query("status"))
	entity := strings.TrimSpace(c.Query("entity"))
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	events, err := oc.repos.FinixEvent.ListByStatus(status, entity, (page-1)*limit, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to list gateway events"})
	}
	return c.JSON(fiber.Map{"events": events, "page": page, "limit": limit})
}

// HandleListOnboardings lists the identity correlation records,
// filterable by onboarding state.
func (oc *OpsController) HandleListOnboardings(c *fiber.Ctx) error {
	state := strings.ToUpper(strings.TrimSpace(c.Query("state")))
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	records, err := oc.repos.MerchantOnboarding.List(state, (page-1)*limit, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to list onboardings"})
	}
	return c.JSON(fiber.Map{"onboardings": records, "page": page, "limit": limit})
}

// HandleQueueStats reports per-queue counters from the job queue.
func (oc *OpsController) HandleQueueStats(c *fiber.Ctx) error {
	inspector := oc.manager.Inspector()
	stats := make([]fiber.Map, 0, 3)
	for _, name := range []string{queue.QueueWebhooks, queue.QueueDefault, queue.QueueMaintenance} {
		info, err := inspector.GetQueueInfo(name)
		if err != nil {
			if errors.Is(err, asynq.ErrQueueNotFound) {
				continue
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to inspect queue " + name})
		}
		stats = append(stats, fiber.Map{
			"queue":     info.Queue,
			"size":      info.Size,
			"pending":   info.Pending,
			"active":    info.Active,
			"scheduled": info.Scheduled,
			"retry":     info.Retry,
			"archived":  info.Archived,
			"completed": info.Completed,
			"processed": info.Processed,
			"failed":    info.Failed,
			"paused":    info.Paused,
		})
	}
	return c.JSON(fiber.Map{"queues": stats})
}

// HandleListDeadLetters lists archived tasks, the terminal state after
// all retries were used up.
func (oc *OpsController) HandleListDeadLetters(c *fiber.Ctx) error {
	qname := strings.TrimSpace(c.Query("queue"))
	if qname == "" {
		qname = queue.QueueWebhooks
	}
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	tasks, err := oc.manager.Inspector().ListArchivedTasks(qname, asynq.PageSize(limit), asynq.Page(page))
	if err != nil {
		if errors.Is(err, asynq.ErrQueueNotFound) {
			return c.JSON(fiber.Map{"tasks": []fiber.Map{}, "queue": qname})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to list archived tasks"})
	}

	items := make([]fiber.Map, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, fiber.Map{
			"id":             t.ID,
			"type":           t.Type,
			"payload":        string(t.Payload),
			"retried":        t.Retried,
			"max_retry":      t.MaxRetry,
			"last_error":     t.LastErr,
			"last_failed_at": t.LastFailedAt.UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(fiber.Map{"tasks": items, "queue": qname, "page": page, "limit": limit})
}

// HandleReplayDeadLetter moves one archived task back into its queue.
func (oc *OpsController) HandleReplayDeadLetter(c *fiber.Ctx) error {
	qname := c.Params("queue")
	taskID := c.Params("id")
	if qname == "" || taskID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Queue and task id are required"})
	}

	if err := oc.manager.Inspector().RunTask(qname, taskID); err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Task not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to run task"})
	}

	log.Infof("[Ops] archived task %s on queue %s scheduled to run", taskID, qname)
	return c.JSON(fiber.Map{"status": "scheduled", "task_id": taskID})
}

// HandleDeleteDeadLetter drops one archived task for good.
func (oc *OpsController) HandleDeleteDeadLetter(c *fiber.Ctx) error {
	qname := c.Params("queue")
	taskID := c.Params("id")
	if qname == "" || taskID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Queue and task id are required"})
	}

	if err := oc.manager.Inspector().DeleteTask(qname, taskID); err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Task not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to delete task"})
	}

	log.Infof("[Ops] archived task %s on queue %s deleted", taskID, qname)
	return c.JSON(fiber.Map{"status": "deleted", "task_id": taskID})
}

// HandleDailyStats returns the per-provider processed/failed counters.
// Defaults to the last seven days.
func (oc *OpsController) HandleDailyStats(c *fiber.Ctx) error {
	to := strings.TrimSpace(c.Query("to"))
	from := strings.TrimSpace(c.Query("from"))
	if to == "" {
		to = time.Now().Format("2006-01-02")
	}
	if from == "" {
		from = time.Now().AddDate(0, 0, -7).Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", from); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid from date"})
	}
	if _, err := time.Parse("2006-01-02", to); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid to date"})
	}

	stats, err := oc.repos.WebhookEvent.GetDailyStats(from, to)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load daily stats"})
	}
	return c.JSON(fiber.Map{"stats": stats, "from": from, "to": to})
}
