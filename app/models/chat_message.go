package models

import (
	"time"

	"gorm.io/datatypes"
)

// ChatMessage mirrors an externally-authored message for audit/analytics.
// Deletes are soft (flag + timestamp), the row is never physically removed.
type ChatMessage struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	MessageID   string            `gorm:"type:varchar(191);not null;uniqueIndex" json:"message_id"`
	ChannelID   string            `gorm:"type:varchar(191);not null;index" json:"channel_id"`
	SenderID    string            `gorm:"type:varchar(64);index" json:"sender_id"` // provider user id
	Text        string            `gorm:"type:text" json:"text"`
	Attachments datatypes.JSON    `gorm:"type:json" json:"attachments"`
	IsDeleted   bool              `gorm:"default:false;index" json:"is_deleted"`
	DeletedAt   *time.Time        `gorm:"type:timestamp;default:null" json:"deleted_at,omitempty"`
	ReadAt      *time.Time        `gorm:"type:timestamp;default:null" json:"read_at,omitempty"`
	SentAt      *time.Time        `gorm:"type:timestamp;default:null" json:"sent_at,omitempty"`
	Reactions   []MessageReaction `gorm:"foreignKey:MessageID;references:MessageID" json:"reactions,omitempty"`
	CreatedAt   time.Time         `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// MessageReaction is one reaction on a mirrored message. Reaction events
// add or remove single rows, never replace the whole set.
type MessageReaction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MessageID string    `gorm:"type:varchar(191);not null;index:ux_message_reactions_key,unique,priority:1" json:"message_id"`
	UserID    string    `gorm:"type:varchar(64);not null;index:ux_message_reactions_key,unique,priority:2" json:"user_id"`
	Type      string    `gorm:"type:varchar(50);not null;index:ux_message_reactions_key,unique,priority:3" json:"type"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
