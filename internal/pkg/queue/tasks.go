// Package queue wraps the asynq client, server and scheduler behind a
// manager that owns enqueueing, worker lifecycle and the recurring
// maintenance jobs.
package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task type names.
const (
	TypeWebhookProcess   = "webhook:process"
	TypeWebhookReconcile = "webhook:reconcile"
	TypeOfferSweep       = "offers:sweep"
)

// Queue names, drained by priority.
const (
	QueueWebhooks    = "webhooks"
	QueueDefault     = "default"
	QueueMaintenance = "maintenance"
)

// WebhookProcessPayload identifies the stored event a worker should process.
type WebhookProcessPayload struct {
	EventID  uint   `json:"event_id"`
	Provider string `json:"provider"`
}

// WebhookProcessTaskID derives the unique task id for a stored event so a
// second enqueue of the same event is rejected while the first still lives.
func WebhookProcessTaskID(eventID uint) string {
	return fmt.Sprintf("%s:%d", TypeWebhookProcess, eventID)
}

// NewWebhookProcessTask builds the processing task for one stored event
func NewWebhookProcessTask(eventID uint, provider string) (*asynq.Task, error) {
	payload, err := json.Marshal(WebhookProcessPayload{EventID: eventID, Provider: provider})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeWebhookProcess, payload), nil
}

// NewWebhookReconcileTask builds the recurring task that re-enqueues
// events stuck between the durable insert and the enqueue
func NewWebhookReconcileTask() *asynq.Task {
	return asynq.NewTask(TypeWebhookReconcile, nil)
}

// NewOfferSweepTask builds the recurring task that expires overdue offers
func NewOfferSweepTask() *asynq.Task {
	return asynq.NewTask(TypeOfferSweep, nil)
}
