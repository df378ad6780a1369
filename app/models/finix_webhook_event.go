package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	FinixEntityOnboardingForm = "onboarding_form"
	FinixEntityMerchant       = "merchant"
	FinixEntityVerification   = "verification"
	FinixEntityTransfer       = "transfer"
	FinixEntityDispute        = "dispute"
	FinixEntityAuthorization  = "authorization"

	FinixTypeCreated      = "created"
	FinixTypeUpdated      = "updated"
	FinixTypeUnderwritten = "underwritten"
	FinixType3DSComplete  = "3ds_authentication_complete"
)

// FinixWebhookEvent is the payment-gateway twin of WebhookEvent. It carries
// the entity/type discriminator and the handler outcome so gateway events
// can be queried on their own ("all failed transfer events"). Twin and
// generic record are updated consistently through every status transition.
type FinixWebhookEvent struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	EventID      string         `gorm:"type:varchar(191);not null;uniqueIndex" json:"event_id"`
	Entity       string         `gorm:"type:varchar(40);not null;index" json:"entity"`
	Type         string         `gorm:"type:varchar(40);not null;index" json:"type"`
	Status       string         `gorm:"type:varchar(20);not null;default:'received';index" json:"status"`
	AttemptCount int            `gorm:"not null;default:0" json:"attempt_count"`
	Outcome      string         `gorm:"type:varchar(255)" json:"outcome"`
	LastError    string         `gorm:"type:text" json:"last_error"`
	RawPayload   datatypes.JSON `gorm:"type:json" json:"raw_payload"`
	ProcessedAt  *time.Time     `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	CreatedAt    time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
