package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	WebhookProviderPaymentGateway = "payment_gateway"
	WebhookProviderIdentity       = "identity_provider"
	WebhookProviderChat           = "chat_provider"

	WebhookStatusReceived   = "received"
	WebhookStatusProcessing = "processing"
	WebhookStatusProcessed  = "processed"
	WebhookStatusFailed     = "failed"
)

// WebhookEvent stores every inbound provider event with deduplication
// metadata for idempotent processing. Rows are mutated only by the
// dispatcher and never deleted (audit trail).
type WebhookEvent struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Provider     string         `gorm:"type:varchar(20);not null;index:ux_webhook_events_provider_event,unique,priority:1;index" json:"provider"`
	EventID      string         `gorm:"type:varchar(191);not null;default:'';index:ux_webhook_events_provider_event,unique,priority:2" json:"event_id"`
	EventType    string         `gorm:"type:varchar(100);not null;index" json:"event_type"`
	Status       string         `gorm:"type:varchar(20);not null;default:'received';index" json:"status"`
	AttemptCount int            `gorm:"not null;default:0" json:"attempt_count"`
	RawPayload   datatypes.JSON `gorm:"type:json" json:"raw_payload"`
	LastError    string         `gorm:"type:text" json:"last_error"`
	ProcessedAt  *time.Time     `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	CreatedAt    time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the event reached a final processing state.
func (e *WebhookEvent) IsTerminal() bool {
	return e.Status == WebhookStatusProcessed || e.Status == WebhookStatusFailed
}
