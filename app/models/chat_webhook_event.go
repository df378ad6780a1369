package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ChatTypeMessageNew      = "message.new"
	ChatTypeMessageUpdated  = "message.updated"
	ChatTypeMessageDeleted  = "message.deleted"
	ChatTypeMessageRead     = "message.read"
	ChatTypeChannelCreated  = "channel.created"
	ChatTypeChannelUpdated  = "channel.updated"
	ChatTypeReactionNew     = "reaction.new"
	ChatTypeReactionDeleted = "reaction.deleted"
)

// ChatWebhookEvent is the chat-provider twin of WebhookEvent.
type ChatWebhookEvent struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	EventID      string         `gorm:"type:varchar(191);not null;uniqueIndex" json:"event_id"`
	Type         string         `gorm:"type:varchar(40);not null;index" json:"type"`
	ChannelID    string         `gorm:"type:varchar(191);index" json:"channel_id"`
	MessageID    string         `gorm:"type:varchar(191);index" json:"message_id"`
	Status       string         `gorm:"type:varchar(20);not null;default:'received';index" json:"status"`
	AttemptCount int            `gorm:"not null;default:0" json:"attempt_count"`
	Outcome      string         `gorm:"type:varchar(255)" json:"outcome"`
	LastError    string         `gorm:"type:text" json:"last_error"`
	RawPayload   datatypes.JSON `gorm:"type:json" json:"raw_payload"`
	ProcessedAt  *time.Time     `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	CreatedAt    time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
