package chatmirror

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/LucaWinkler/FlohMarkt/app/models"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/chatstream"
)

type fakeChannels struct {
	channels    map[string]*models.ChatChannel
	upsertCalls int
	ensureCalls int
}

func newFakeChannels() *fakeChannels {
	return &fakeChannels{channels: make(map[string]*models.ChatChannel)}
}

func (f *fakeChannels) Upsert(channel *models.ChatChannel) error {
	f.upsertCalls++
	if existing, ok := f.channels[channel.ChannelID]; ok {
		existing.ChannelType = channel.ChannelType
		existing.ListingID = channel.ListingID
		existing.OfferID = channel.OfferID
		existing.OrderID = channel.OrderID
		existing.CustomData = channel.CustomData
		return nil
	}
	f.channels[channel.ChannelID] = channel
	return nil
}

func (f *fakeChannels) EnsureExists(channel *models.ChatChannel) error {
	f.ensureCalls++
	if _, ok := f.channels[channel.ChannelID]; ok {
		return nil
	}
	f.channels[channel.ChannelID] = channel
	return nil
}

func (f *fakeChannels) GetByChannelID(channelID string) (*models.ChatChannel, error) {
	if c, ok := f.channels[channelID]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeMessages struct {
	messages  map[string]*models.ChatMessage
	reactions []models.MessageReaction
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{messages: make(map[string]*models.ChatMessage)}
}

func (f *fakeMessages) CreateIfNotExists(msg *models.ChatMessage) (bool, error) {
	if _, ok := f.messages[msg.MessageID]; ok {
		return false, nil
	}
	f.messages[msg.MessageID] = msg
	return true, nil
}

func (f *fakeMessages) GetByMessageID(messageID string) (*models.ChatMessage, error) {
	if m, ok := f.messages[messageID]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeMessages) UpdateByMessageID(messageID string, updates map[string]interface{}) (int64, error) {
	m, ok := f.messages[messageID]
	if !ok {
		return 0, nil
	}
	for k, v := range updates {
		switch k {
		case "text":
			m.Text = v.(string)
		case "attachments":
			m.Attachments = v.(datatypes.JSON)
		}
	}
	return 1, nil
}

func (f *fakeMessages) SoftDelete(messageID string, deletedAt time.Time) (int64, error) {
	m, ok := f.messages[messageID]
	if !ok || m.IsDeleted {
		return 0, nil
	}
	m.IsDeleted = true
	m.DeletedAt = &deletedAt
	return 1, nil
}

func (f *fakeMessages) MarkRead(channelID, readerID string, readAt time.Time) (int64, error) {
	var n int64
	for _, m := range f.messages {
		if m.ChannelID == channelID && m.SenderID != readerID && m.ReadAt == nil && !m.IsDeleted {
			m.ReadAt = &readAt
			n++
		}
	}
	return n, nil
}

func (f *fakeMessages) AddReaction(reaction *models.MessageReaction) (bool, error) {
	for _, r := range f.reactions {
		if r.MessageID == reaction.MessageID && r.UserID == reaction.UserID && r.Type == reaction.Type {
			return false, nil
		}
	}
	f.reactions = append(f.reactions, *reaction)
	return true, nil
}

func (f *fakeMessages) RemoveReaction(messageID, userID, reactionType string) (int64, error) {
	for i, r := range f.reactions {
		if r.MessageID == messageID && r.UserID == userID && r.Type == reactionType {
			f.reactions = append(f.reactions[:i], f.reactions[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func newTestHandler(channels *fakeChannels, messages *fakeMessages) *Handler {
	return &Handler{channels: channels, messages: messages}
}

func messageEvent(eventType, channelID string, msg *chatstream.Message) *chatstream.Event {
	return &chatstream.Event{
		Type:      eventType,
		ChannelID: channelID,
		Message:   msg,
	}
}

func TestHandleMessageNew_MirrorsMessage(t *testing.T) {
	channels := newFakeChannels()
	messages := newFakeMessages()
	h := newTestHandler(channels, messages)

	sent := time.Now()
	outcome, err := h.HandleMessageNew(context.Background(), messageEvent(chatstream.EventMessageNew, "listing-42", &chatstream.Message{
		ID:        "m1",
		Text:      "is this still available?",
		User:      &chatstream.User{ID: "buyer-9"},
		CreatedAt: &sent,
		Attachments: []chatstream.Attachment{
			{Type: "image", AssetURL: "https://cdn.example/img.jpg"},
		},
	}))

	require.NoError(t, err)
	assert.Contains(t, outcome, "mirrored")

	stored := messages.messages["m1"]
	require.NotNil(t, stored)
	assert.Equal(t, "listing-42", stored.ChannelID)
	assert.Equal(t, "buyer-9", stored.SenderID)
	assert.Equal(t, "is this still available?", stored.Text)
	assert.NotNil(t, stored.Attachments)
	assert.Equal(t, &sent, stored.SentAt)

	// a message creates the channel shell without claiming its metadata
	assert.Equal(t, 1, channels.ensureCalls)
	assert.Zero(t, channels.upsertCalls)
}

func TestHandleMessageNew_ReplayLeavesRowUntouched(t *testing.T) {
	messages := newFakeMessages()
	h := newTestHandler(newFakeChannels(), messages)

	ev := messageEvent(chatstream.EventMessageNew, "listing-42", &chatstream.Message{ID: "m1", Text: "first"})
	_, err := h.HandleMessageNew(context.Background(), ev)
	require.NoError(t, err)

	replay := messageEvent(chatstream.EventMessageNew, "listing-42", &chatstream.Message{ID: "m1", Text: "changed"})
	outcome, err := h.HandleMessageNew(context.Background(), replay)
	require.NoError(t, err)

	assert.Contains(t, outcome, "already mirrored")
	assert.Equal(t, "first", messages.messages["m1"].Text)
}

func TestHandleMessageNew_WithoutMessageIDResolvesAsOutcome(t *testing.T) {
	h := newTestHandler(newFakeChannels(), newFakeMessages())

	outcome, err := h.HandleMessageNew(context.Background(), messageEvent(chatstream.EventMessageNew, "listing-42", nil))

	require.NoError(t, err)
	assert.Contains(t, outcome, "no message id")
}

func TestChannelMetadataSurvivesLaterMessages(t *testing.T) {
	channels := newFakeChannels()
	h := newTestHandler(channels, newFakeMessages())

	listingID := uint(3)
	_, err := h.HandleChannelEvent(context.Background(), &chatstream.Event{
		Type:      chatstream.EventChannelCreated,
		ChannelID: "listing-3",
		Channel: &chatstream.Channel{
			ID:        "listing-3",
			Type:      "listing",
			ListingID: &listingID,
		},
	})
	require.NoError(t, err)
	require.NotNil(t, channels.channels["listing-3"].ListingID)

	// a plain message event carries no channel block
	_, err = h.HandleMessageNew(context.Background(), messageEvent(chatstream.EventMessageNew, "listing-3", &chatstream.Message{
		ID: "m2", Text: "hi",
	}))
	require.NoError(t, err)

	stored := channels.channels["listing-3"]
	require.NotNil(t, stored.ListingID)
	assert.Equal(t, uint(3), *stored.ListingID)
	assert.Equal(t, "listing", stored.ChannelType)
}

func TestHandleChannelEvent_UpdatesCorrelationIDs(t *testing.T) {
	channels := newFakeChannels()
	h := newTestHandler(channels, newFakeMessages())

	orderID := uint(7)
	outcome, err := h.HandleChannelEvent(context.Background(), &chatstream.Event{
		Type: chatstream.EventChannelUpdated,
		Channel: &chatstream.Channel{
			ID:      "order-7",
			Type:    "order",
			OrderID: &orderID,
		},
	})

	require.NoError(t, err)
	assert.Contains(t, outcome, "order-7")

	stored := channels.channels["order-7"]
	require.NotNil(t, stored)
	assert.Equal(t, "order", stored.ChannelType)
	require.NotNil(t, stored.OrderID)
	assert.Equal(t, uint(7), *stored.OrderID)
	assert.NotNil(t, stored.CustomData)
}

func TestHandleMessageUpdated_ReplacesText(t *testing.T) {
	messages := newFakeMessages()
	messages.messages["m1"] = &models.ChatMessage{MessageID: "m1", ChannelID: "c1", Text: "old"}
	h := newTestHandler(newFakeChannels(), messages)

	outcome, err := h.HandleMessageUpdated(context.Background(), messageEvent(chatstream.EventMessageUpdated, "c1", &chatstream.Message{
		ID: "m1", Text: "corrected",
	}))

	require.NoError(t, err)
	assert.Contains(t, outcome, "updated")
	assert.Equal(t, "corrected", messages.messages["m1"].Text)
}

func TestHandleMessageUpdated_UnknownMessageResolvesAsOutcome(t *testing.T) {
	h := newTestHandler(newFakeChannels(), newFakeMessages())

	outcome, err := h.HandleMessageUpdated(context.Background(), messageEvent(chatstream.EventMessageUpdated, "c1", &chatstream.Message{
		ID: "m_ghost", Text: "hello?",
	}))

	require.NoError(t, err)
	assert.Contains(t, outcome, "not found")
}

func TestHandleMessageDeleted_FlagsRow(t *testing.T) {
	messages := newFakeMessages()
	messages.messages["m1"] = &models.ChatMessage{MessageID: "m1", ChannelID: "c1", Text: "remove me"}
	h := newTestHandler(newFakeChannels(), messages)

	outcome, err := h.HandleMessageDeleted(context.Background(), messageEvent(chatstream.EventMessageDeleted, "c1", &chatstream.Message{ID: "m1"}))

	require.NoError(t, err)
	assert.Contains(t, outcome, "deleted")

	stored := messages.messages["m1"]
	assert.True(t, stored.IsDeleted)
	assert.NotNil(t, stored.DeletedAt)
	// the row itself stays
	assert.Equal(t, "remove me", stored.Text)
}

func TestHandleMessageDeleted_ReplayKeepsFirstTimestamp(t *testing.T) {
	messages := newFakeMessages()
	messages.messages["m1"] = &models.ChatMessage{MessageID: "m1", ChannelID: "c1"}
	h := newTestHandler(newFakeChannels(), messages)

	ev := messageEvent(chatstream.EventMessageDeleted, "c1", &chatstream.Message{ID: "m1"})

	_, err := h.HandleMessageDeleted(context.Background(), ev)
	require.NoError(t, err)
	first := messages.messages["m1"].DeletedAt

	outcome, err := h.HandleMessageDeleted(context.Background(), ev)
	require.NoError(t, err)
	assert.Contains(t, outcome, "already deleted")
	assert.Equal(t, first, messages.messages["m1"].DeletedAt)
}

func TestHandleMessageRead_StampsForeignUnreadMessages(t *testing.T) {
	messages := newFakeMessages()
	messages.messages["m1"] = &models.ChatMessage{MessageID: "m1", ChannelID: "c1", SenderID: "seller-1"}
	messages.messages["m2"] = &models.ChatMessage{MessageID: "m2", ChannelID: "c1", SenderID: "buyer-2"}
	messages.messages["m3"] = &models.ChatMessage{MessageID: "m3", ChannelID: "other", SenderID: "seller-1"}
	h := newTestHandler(newFakeChannels(), messages)

	outcome, err := h.HandleMessageRead(context.Background(), &chatstream.Event{
		Type:      chatstream.EventMessageRead,
		ChannelID: "c1",
		User:      &chatstream.User{ID: "buyer-2"},
	})

	require.NoError(t, err)
	assert.Contains(t, outcome, "1 messages")
	assert.NotNil(t, messages.messages["m1"].ReadAt)
	// own messages and other channels stay unread
	assert.Nil(t, messages.messages["m2"].ReadAt)
	assert.Nil(t, messages.messages["m3"].ReadAt)
}

func TestHandleMessageRead_WithoutUserResolvesAsOutcome(t *testing.T) {
	h := newTestHandler(newFakeChannels(), newFakeMessages())

	outcome, err := h.HandleMessageRead(context.Background(), &chatstream.Event{
		Type:      chatstream.EventMessageRead,
		ChannelID: "c1",
	})

	require.NoError(t, err)
	assert.Contains(t, outcome, "no reading user")
}

func reactionEvent(eventType string, r *chatstream.Reaction) *chatstream.Event {
	return &chatstream.Event{Type: eventType, ChannelID: "c1", Reaction: r}
}

func TestHandleReactionNew_RecordsOnce(t *testing.T) {
	messages := newFakeMessages()
	h := newTestHandler(newFakeChannels(), messages)

	ev := reactionEvent(chatstream.EventReactionNew, &chatstream.Reaction{
		Type: "like", MessageID: "m1", User: &chatstream.User{ID: "buyer-2"},
	})

	outcome, err := h.HandleReactionNew(context.Background(), ev)
	require.NoError(t, err)
	assert.Contains(t, outcome, "recorded")
	assert.Len(t, messages.reactions, 1)

	outcome, err = h.HandleReactionNew(context.Background(), ev)
	require.NoError(t, err)
	assert.Contains(t, outcome, "already recorded")
	assert.Len(t, messages.reactions, 1)
}

func TestHandleReactionNew_IncompleteEventResolvesAsOutcome(t *testing.T) {
	h := newTestHandler(newFakeChannels(), newFakeMessages())

	outcome, err := h.HandleReactionNew(context.Background(), reactionEvent(chatstream.EventReactionNew, &chatstream.Reaction{
		Type: "like", MessageID: "m1",
	}))

	require.NoError(t, err)
	assert.Contains(t, outcome, "no usable reaction")
}

func TestHandleReactionDeleted_RemovesExactlyOne(t *testing.T) {
	messages := newFakeMessages()
	messages.reactions = []models.MessageReaction{
		{MessageID: "m1", UserID: "buyer-2", Type: "like"},
		{MessageID: "m1", UserID: "buyer-2", Type: "wow"},
		{MessageID: "m1", UserID: "seller-1", Type: "like"},
	}
	h := newTestHandler(newFakeChannels(), messages)

	outcome, err := h.HandleReactionDeleted(context.Background(), reactionEvent(chatstream.EventReactionDeleted, &chatstream.Reaction{
		Type: "like", MessageID: "m1", User: &chatstream.User{ID: "buyer-2"},
	}))

	require.NoError(t, err)
	assert.Contains(t, outcome, "removed")
	assert.Len(t, messages.reactions, 2)
}

func TestHandleReactionDeleted_UnknownReactionResolvesAsOutcome(t *testing.T) {
	h := newTestHandler(newFakeChannels(), newFakeMessages())

	outcome, err := h.HandleReactionDeleted(context.Background(), reactionEvent(chatstream.EventReactionDeleted, &chatstream.Reaction{
		Type: "like", MessageID: "m1", User: &chatstream.User{ID: "nobody"},
	}))

	require.NoError(t, err)
	assert.Contains(t, outcome, "not found")
}
