// Package chatmirror keeps a local copy of chat-provider conversations
// for audit and analytics. Every write is an idempotent upsert keyed by
// the provider id, updates for unknown records resolve as a logged
// outcome, and deletes only flag the row.
package chatmirror

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/LucaWinkler/FlohMarkt/app/models"
	"github.com/LucaWinkler/FlohMarkt/app/repository"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/chatstream"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/datatypes"
)

// Handler mirrors channel, message and reaction events.
type Handler struct {
	channels repository.ChatChannelRepository
	messages repository.ChatMessageRepository
}

// NewHandler creates the chat mirror handler over the injected repositories.
func NewHandler(repos *repository.Repositories) *Handler {
	return &Handler{
		channels: repos.ChatChannel,
		messages: repos.ChatMessage,
	}
}

// HandleMessageNew mirrors a freshly sent message. Replays of the same
// message id leave the existing row untouched.
func (h *Handler) HandleMessageNew(ctx context.Context, event *chatstream.Event) (string, error) {
	msg := event.Message
	if msg == nil || msg.ID == "" {
		log.Warnf("[ChatMirror] %s event without message id on channel %s", event.Type, event.ChannelID)
		return "event carries no message id", nil
	}

	if err := h.ensureChannel(event); err != nil {
		return "", err
	}

	row := &models.ChatMessage{
		MessageID: msg.ID,
		ChannelID: event.ChannelID,
		SenderID:  event.SenderID(),
		Text:      msg.Text,
		SentAt:    msg.CreatedAt,
	}
	if att, err := marshalAttachments(msg.Attachments); err == nil {
		row.Attachments = att
	}

	created, err := h.messages.CreateIfNotExists(row)
	if err != nil {
		return "", err
	}
	if !created {
		return fmt.Sprintf("message %s already mirrored", msg.ID), nil
	}
	return fmt.Sprintf("message %s mirrored", msg.ID), nil
}

// HandleMessageUpdated replaces the mirrored text and attachments.
func (h *Handler) HandleMessageUpdated(ctx context.Context, event *chatstream.Event) (string, error) {
	msg := event.Message
	if msg == nil || msg.ID == "" {
		log.Warnf("[ChatMirror] %s event without message id on channel %s", event.Type, event.ChannelID)
		return "event carries no message id", nil
	}

	updates := map[string]interface{}{
		"text": msg.Text,
	}
	if att, err := marshalAttachments(msg.Attachments); err == nil && att != nil {
		updates["attachments"] = att
	}

	rows, err := h.messages.UpdateByMessageID(msg.ID, updates)
	if err != nil {
		return "", err
	}
	if rows == 0 {
		log.Warnf("[ChatMirror] update for unknown message %s", msg.ID)
		return fmt.Sprintf("message %s not found", msg.ID), nil
	}
	return fmt.Sprintf("message %s updated", msg.ID), nil
}

// HandleMessageDeleted flags the mirrored message as deleted. The row
// stays in place for audit.
func (h *Handler) HandleMessageDeleted(ctx context.Context, event *chatstream.Event) (string, error) {
	messageID := event.MessageID()
	if messageID == "" {
		log.Warnf("[ChatMirror] %s event without message id on channel %s", event.Type, event.ChannelID)
		return "event carries no message id", nil
	}

	rows, err := h.messages.SoftDelete(messageID, time.Now())
	if err != nil {
		return "", err
	}
	if rows == 0 {
		return fmt.Sprintf("message %s not found or already deleted", messageID), nil
	}
	return fmt.Sprintf("message %s marked deleted", messageID), nil
}

// HandleMessageRead stamps every unread message in the channel that was
// not authored by the reading user.
func (h *Handler) HandleMessageRead(ctx context.Context, event *chatstream.Event) (string, error) {
	if event.ChannelID == "" {
		return "event carries no channel id", nil
	}
	reader := ""
	if event.User != nil {
		reader = event.User.ID
	}
	if reader == "" {
		log.Warnf("[ChatMirror] read event without user on channel %s", event.ChannelID)
		return "event carries no reading user", nil
	}

	rows, err := h.messages.MarkRead(event.ChannelID, reader, time.Now())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d messages in channel %s marked read by %s", rows, event.ChannelID, reader), nil
}

// HandleChannelEvent mirrors the channel shell and its marketplace
// correlation ids.
func (h *Handler) HandleChannelEvent(ctx context.Context, event *chatstream.Event) (string, error) {
	channelID := event.ChannelID
	if channelID == "" && event.Channel != nil {
		channelID = event.Channel.ID
	}
	if channelID == "" {
		log.Warnf("[ChatMirror] %s event without channel id", event.Type)
		return "event carries no channel id", nil
	}

	if err := h.upsertChannel(event); err != nil {
		return "", err
	}
	return fmt.Sprintf("channel %s mirrored", channelID), nil
}

// HandleReactionNew records one reaction row. Replays are absorbed by
// the unique key over message, user and reaction type.
func (h *Handler) HandleReactionNew(ctx context.Context, event *chatstream.Event) (string, error) {
	r := event.Reaction
	if r == nil || r.MessageID == "" || r.User == nil || r.User.ID == "" {
		log.Warnf("[ChatMirror] incomplete reaction event on channel %s", event.ChannelID)
		return "event carries no usable reaction", nil
	}

	created, err := h.messages.AddReaction(&models.MessageReaction{
		MessageID: r.MessageID,
		UserID:    r.User.ID,
		Type:      r.Type,
	})
	if err != nil {
		return "", err
	}
	if !created {
		return fmt.Sprintf("reaction %s on message %s already recorded", r.Type, r.MessageID), nil
	}
	return fmt.Sprintf("reaction %s on message %s recorded", r.Type, r.MessageID), nil
}

// HandleReactionDeleted removes exactly one reaction row.
func (h *Handler) HandleReactionDeleted(ctx context.Context, event *chatstream.Event) (string, error) {
	r := event.Reaction
	if r == nil || r.MessageID == "" || r.User == nil || r.User.ID == "" {
		log.Warnf("[ChatMirror] incomplete reaction event on channel %s", event.ChannelID)
		return "event carries no usable reaction", nil
	}

	rows, err := h.messages.RemoveReaction(r.MessageID, r.User.ID, r.Type)
	if err != nil {
		return "", err
	}
	if rows == 0 {
		return fmt.Sprintf("reaction %s on message %s not found", r.Type, r.MessageID), nil
	}
	return fmt.Sprintf("reaction %s on message %s removed", r.Type, r.MessageID), nil
}

// upsertChannel writes the channel shell together with the correlation
// ids of the metadata block. Only channel events call this, their payload
// is the authoritative source for those fields.
func (h *Handler) upsertChannel(event *chatstream.Event) error {
	row, ok := channelRow(event)
	if !ok {
		return nil
	}
	return h.channels.Upsert(row)
}

// ensureChannel creates the channel shell when a message arrives before
// its channel event. An existing row is left untouched so the metadata
// written by a channel event cannot be cleared by a plain message.
func (h *Handler) ensureChannel(event *chatstream.Event) error {
	row, ok := channelRow(event)
	if !ok {
		return nil
	}
	return h.channels.EnsureExists(row)
}

func channelRow(event *chatstream.Event) (*models.ChatChannel, bool) {
	channelID := event.ChannelID
	if channelID == "" && event.Channel != nil {
		channelID = event.Channel.ID
	}
	if channelID == "" {
		return nil, false
	}

	row := &models.ChatChannel{
		ChannelID:   channelID,
		ChannelType: event.ChannelType,
	}
	if c := event.Channel; c != nil {
		if row.ChannelType == "" {
			row.ChannelType = c.Type
		}
		row.ListingID = c.ListingID
		row.OfferID = c.OfferID
		row.OrderID = c.OrderID
		if raw, err := json.Marshal(c); err == nil {
			row.CustomData = datatypes.JSON(raw)
		}
	}
	return row, true
}

func marshalAttachments(attachments []chatstream.Attachment) (datatypes.JSON, error) {
	if len(attachments) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(attachments)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
