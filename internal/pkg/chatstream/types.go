// Package chatstream models the webhook payload of the external chat
// provider. The provider pushes every channel, message and reaction
// mutation so we can mirror conversations for audit and analytics.
package chatstream

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Event types pushed by the chat provider.
const (
	EventMessageNew      = "message.new"
	EventMessageUpdated  = "message.updated"
	EventMessageDeleted  = "message.deleted"
	EventMessageRead     = "message.read"
	EventChannelCreated  = "channel.created"
	EventChannelUpdated  = "channel.updated"
	EventReactionNew     = "reaction.new"
	EventReactionDeleted = "reaction.deleted"
)

// Event is the outer chat webhook payload. Which nested blocks are set
// depends on the event type.
type Event struct {
	Type        string     `json:"type" validate:"required"`
	ChannelID   string     `json:"channel_id"`
	ChannelType string     `json:"channel_type"`
	Message     *Message   `json:"message,omitempty"`
	Reaction    *Reaction  `json:"reaction,omitempty"`
	User        *User      `json:"user,omitempty"`
	Channel     *Channel   `json:"channel,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

// Message carries the chat message fields we mirror locally.
type Message struct {
	ID          string       `json:"id"`
	Text        string       `json:"text"`
	User        *User        `json:"user,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   *time.Time   `json:"created_at,omitempty"`
	UpdatedAt   *time.Time   `json:"updated_at,omitempty"`
}

// Attachment is a file or media reference on a message.
type Attachment struct {
	Type     string `json:"type"`
	AssetURL string `json:"asset_url"`
	Title    string `json:"title"`
}

// User identifies the chat participant who triggered the event.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Reaction is an emoji reaction on a message.
type Reaction struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	User      *User  `json:"user,omitempty"`
}

// Channel is the optional channel metadata block. The marketplace
// correlation ids are written into the channel as custom data when the
// conversation is opened from a listing, offer or order.
type Channel struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	ListingID *uint  `json:"listing_id,omitempty"`
	OfferID   *uint  `json:"offer_id,omitempty"`
	OrderID   *uint  `json:"order_id,omitempty"`
}

// DecodeEvent parses and normalizes a raw chat webhook payload.
func DecodeEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("invalid chat payload: %w", err)
	}
	ev.Type = strings.ToLower(strings.TrimSpace(ev.Type))
	ev.ChannelID = strings.TrimSpace(ev.ChannelID)
	return &ev, nil
}

// Validate checks the event against its tags.
func (e *Event) Validate() error {
	v := validator.New()
	return v.Struct(e)
}

// MessageID returns the provider message id the event refers to, looking
// at the message block first and the reaction block second.
func (e *Event) MessageID() string {
	if e.Message != nil && e.Message.ID != "" {
		return e.Message.ID
	}
	if e.Reaction != nil && e.Reaction.MessageID != "" {
		return e.Reaction.MessageID
	}
	return ""
}

// SenderID returns the id of the acting chat user, preferring the message
// author over the event-level user.
func (e *Event) SenderID() string {
	if e.Message != nil && e.Message.User != nil && e.Message.User.ID != "" {
		return e.Message.User.ID
	}
	if e.User != nil {
		return e.User.ID
	}
	return ""
}
